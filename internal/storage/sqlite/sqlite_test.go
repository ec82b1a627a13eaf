package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yegors/class-transcribe/internal/job"
	"github.com/yegors/class-transcribe/internal/meeting"
	"github.com/yegors/class-transcribe/internal/transcription"
	"github.com/yegors/class-transcribe/pkg/logger"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "test.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestJobStorageUpsert(t *testing.T) {
	ctx := context.Background()
	s, err := NewJobStorage(openTestDB(t), logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	created := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)
	snap := job.Snapshot{
		ID:        "a",
		Kind:      job.KindRecording,
		State:     job.StateRecording,
		Meeting:   &meeting.Meeting{Title: "CS 101", Start: created, DurationMinutes: 50},
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := s.UpsertJob(ctx, snap); err != nil {
		t.Fatalf("UpsertJob() = %v", err)
	}

	snap.State = job.StateComplete
	snap.TranscriptPath = "/t/cs101.vtt"
	snap.UpdatedAt = created.Add(time.Hour)
	if err := s.UpsertJob(ctx, snap); err != nil {
		t.Fatalf("UpsertJob() update = %v", err)
	}

	got, err := s.GetJob(ctx, "a")
	if err != nil {
		t.Fatalf("GetJob() = %v", err)
	}
	if got.State != "complete" || got.Kind != "recording" || got.Title != "CS 101" || got.TranscriptPath != "/t/cs101.vtt" {
		t.Fatalf("GetJob() = %+v", got)
	}
	if got.MeetingStart == nil || !got.MeetingStart.Equal(created) {
		t.Fatalf("meeting start = %v, want %v", got.MeetingStart, created)
	}
	if !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(created.Add(time.Hour)) {
		t.Fatalf("timestamps = %v / %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestJobStorageHistory(t *testing.T) {
	ctx := context.Background()
	s, err := NewJobStorage(openTestDB(t), logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		at := base.Add(time.Duration(i) * time.Hour)
		snap := job.Snapshot{
			ID: id, Kind: job.KindTranscribeOnly, State: job.StateFailed,
			SourcePath: "/in/" + id + ".mp3", CreatedAt: at, UpdatedAt: at,
			Error: &job.ErrorInfo{Code: "canceled", Message: "job canceled"},
		}
		if err := s.UpsertJob(ctx, snap); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.GetJobs(ctx, 2, 0)
	if err != nil {
		t.Fatalf("GetJobs() = %v", err)
	}
	if len(page) != 2 || page[0].ID != "new" || page[1].ID != "mid" {
		t.Fatalf("first page = %+v", page)
	}
	if page[0].ErrorCode != "canceled" || page[0].Title != "new" || page[0].MeetingStart != nil {
		t.Fatalf("record = %+v", page[0])
	}

	rest, err := s.GetJobs(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].ID != "old" {
		t.Fatalf("second page = %+v", rest)
	}

	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestTranscriptStorage(t *testing.T) {
	ctx := context.Background()
	s, err := NewTranscriptStorage(openTestDB(t), logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	at := time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
	first, err := s.StoreTranscript(ctx, transcription.Transcript{
		JobID: "a", Title: "CS 101", CreatedAt: at,
		Segments: []transcription.Segment{{Text: "hi"}, {Text: "there"}},
	}, "/t/a.vtt", "hi\nthere")
	if err != nil {
		t.Fatalf("StoreTranscript() = %v", err)
	}
	if _, err := s.StoreTranscript(ctx, transcription.Transcript{JobID: "b", Title: "BIO 110", CreatedAt: at.Add(time.Hour)}, "/t/b.vtt", ""); err != nil {
		t.Fatal(err)
	}

	all, err := s.GetTranscripts(ctx, 10, 0, "")
	if err != nil {
		t.Fatalf("GetTranscripts() = %v", err)
	}
	if len(all) != 2 || all[0].JobID != "b" {
		t.Fatalf("GetTranscripts() = %+v", all)
	}

	cs, err := s.GetTranscripts(ctx, 10, 0, "CS 101")
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 1 || cs[0].ID != first || cs[0].SegmentCount != 2 || cs[0].Content != "hi\nthere" {
		t.Fatalf("filtered = %+v", cs)
	}

	got, err := s.GetTranscript(ctx, first)
	if err != nil {
		t.Fatalf("GetTranscript() = %v", err)
	}
	if got.Path != "/t/a.vtt" || !got.CreatedAt.Equal(at) {
		t.Fatalf("GetTranscript() = %+v", got)
	}
	if _, err := s.GetTranscript(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetTranscript(999) = %v, want ErrNotFound", err)
	}
}
