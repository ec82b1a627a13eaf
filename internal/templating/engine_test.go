package templating

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yegors/class-transcribe/pkg/logger"
)

func TestDefaultPrompt(t *testing.T) {
	e := NewEngine(logger.NewNop())
	if err := e.Parse(TranscriptionPrompt, DefaultTranscriptionPrompt); err != nil {
		t.Fatalf("Parse() = %v", err)
	}

	got, err := e.Render(TranscriptionPrompt, PromptData{
		Title:      "CS 101",
		Language:   "English",
		ChunkIndex: 2,
		ChunkCount: 3,
		ChunkStart: time.Minute,
	})
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	for _, want := range []string{`titled "CS 101"`, "language is English", "part 2 of 3", "1m0s"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}

	bare, err := e.Render(TranscriptionPrompt, PromptData{ChunkIndex: 1, ChunkCount: 1})
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if strings.Contains(bare, "titled") || strings.Contains(bare, "language is") {
		t.Errorf("optional fields rendered when empty:\n%s", bare)
	}
}

func TestFileNameTemplate(t *testing.T) {
	e := NewEngine(logger.NewNop())
	if err := e.Parse(TranscriptFileName, DefaultTranscriptFileName); err != nil {
		t.Fatal(err)
	}
	got, err := e.Render(TranscriptFileName, NewFileNameData("CS 101", "abc", time.Date(2024, 9, 2, 9, 5, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if got != "2024-09-02 0905 CS 101" {
		t.Fatalf("Render() = %q", got)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	e := NewEngine(logger.NewNop())
	if _, err := e.Render("missing", nil); err == nil {
		t.Fatal("expected error for unregistered template")
	}
	if e.Has("missing") {
		t.Fatal("Has() = true for unregistered template")
	}
}

func TestParseRejectsBadSyntax(t *testing.T) {
	e := NewEngine(logger.NewNop())
	if err := e.Parse("bad", "{{.Title"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadFileAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.tmpl")
	if err := os.WriteFile(path, []byte("v1 {{.Title | upper}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(logger.NewNop())
	if err := e.LoadFile(TranscriptionPrompt, path); err != nil {
		t.Fatalf("LoadFile() = %v", err)
	}
	got, _ := e.Render(TranscriptionPrompt, PromptData{Title: "bio"})
	if got != "v1 BIO" {
		t.Fatalf("Render() = %q", got)
	}

	if err := os.WriteFile(path, []byte("v2 {{.Title}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.ReloadAllTemplates(); err != nil {
		t.Fatalf("ReloadAllTemplates() = %v", err)
	}
	got, _ = e.Render(TranscriptionPrompt, PromptData{Title: "bio"})
	if got != "v2 bio" {
		t.Fatalf("Render() after reload = %q", got)
	}
}

func TestMissingFieldIsAnError(t *testing.T) {
	e := NewEngine(logger.NewNop())
	if err := e.Parse("x", "{{.Nope}}"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Render("x", map[string]any{}); err == nil {
		t.Fatal("expected error for missing key")
	}
}
