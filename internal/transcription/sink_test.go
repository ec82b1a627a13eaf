package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yegors/class-transcribe/internal/templating"
	"github.com/yegors/class-transcribe/pkg/logger"
)

type memArchive struct {
	paths    []string
	contents []string
	err      error
}

func (a *memArchive) StoreTranscript(_ context.Context, _ Transcript, path, content string) (int64, error) {
	a.paths = append(a.paths, path)
	a.contents = append(a.contents, content)
	return int64(len(a.paths)), a.err
}

func newSink(t *testing.T, archive Archive) (*FileSink, string) {
	t.Helper()
	names := templating.NewEngine(logger.NewNop())
	if err := names.Parse(templating.TranscriptFileName, templating.DefaultTranscriptFileName); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "transcripts")
	return NewFileSink(dir, names, archive, logger.NewNop()), dir
}

func save(t *testing.T, s *FileSink, tr Transcript) (string, error) {
	t.Helper()
	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	s.Save(context.Background(), tr, func(path string, err error) { done <- result{path, err} })
	select {
	case r := <-done:
		return r.path, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("save never finished")
		return "", nil
	}
}

func TestFileSinkWritesVTTAndArchives(t *testing.T) {
	archive := &memArchive{}
	s, dir := newSink(t, archive)

	tr := Transcript{
		JobID:     "job-1",
		Title:     "CS 101: Intro",
		CreatedAt: time.Date(2024, 9, 2, 10, 15, 0, 0, time.UTC),
		Segments:  []Segment{{Start: 0, End: time.Second, Text: "Hello class"}},
	}
	path, err := save(t, s, tr)
	if err != nil {
		t.Fatalf("Save() = %v", err)
	}
	if want := filepath.Join(dir, "2024-09-02 1015 CS 101- Intro.vtt"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "WEBVTT\n") || !strings.Contains(string(data), "Hello class") {
		t.Fatalf("file = %q", data)
	}
	if len(archive.paths) != 1 || archive.paths[0] != path || archive.contents[0] != "Hello class" {
		t.Fatalf("archive = %+v", archive)
	}

	second, err := save(t, s, tr)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "2024-09-02 1015 CS 101- Intro (2).vtt"); second != want {
		t.Fatalf("second path = %q, want %q", second, want)
	}
	s.Wait()
}

func TestFileSinkIgnoresArchiveErrors(t *testing.T) {
	s, _ := newSink(t, &memArchive{err: errors.New("database is locked")})
	if _, err := save(t, s, Transcript{Title: "x", Segments: []Segment{{Text: "y"}}}); err != nil {
		t.Fatalf("Save() = %v", err)
	}
}

func TestFileSinkReportsUnwritableDirectory(t *testing.T) {
	names := templating.NewEngine(logger.NewNop())
	names.Parse(templating.TranscriptFileName, templating.DefaultTranscriptFileName)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileSink(filepath.Join(blocker, "sub"), names, nil, logger.NewNop())
	if _, err := save(t, s, Transcript{Title: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCleanFileName(t *testing.T) {
	if got := cleanFileName("  a/b:c  "); got != "a-b-c" {
		t.Errorf("cleanFileName() = %q", got)
	}
	if got := cleanFileName(" "); got != "transcript" {
		t.Errorf("cleanFileName(blank) = %q", got)
	}
}
