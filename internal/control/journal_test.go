package control

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yegors/class-transcribe/internal/job"
	"github.com/yegors/class-transcribe/pkg/logger"
)

type memStore struct {
	mu    sync.Mutex
	snaps []job.Snapshot
	err   error
}

func (m *memStore) UpsertJob(_ context.Context, snap job.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.snaps = append(m.snaps, snap)
	return nil
}

func TestAsyncJournalDrainsOnStop(t *testing.T) {
	store := &memStore{}
	j := NewAsyncJournal(store, 8, logger.NewNop())
	if err := j.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	for _, id := range []string{"a", "b", "c"} {
		j.Record(job.Snapshot{ID: id, State: job.StateTranscribing})
	}
	if err := j.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.snaps) != 3 {
		t.Fatalf("stored %d snapshots, want 3", len(store.snaps))
	}
	for i, id := range []string{"a", "b", "c"} {
		if store.snaps[i].ID != id {
			t.Fatalf("snapshot %d = %q, want %q", i, store.snaps[i].ID, id)
		}
	}
}

func TestAsyncJournalDropsWhenFull(t *testing.T) {
	store := &memStore{}
	j := NewAsyncJournal(store, 1, logger.NewNop())

	// Not started, so nothing drains the queue.
	j.Record(job.Snapshot{ID: "kept"})
	j.Record(job.Snapshot{ID: "dropped"})

	if err := j.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if err := j.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	if len(store.snaps) != 1 || store.snaps[0].ID != "kept" {
		t.Fatalf("stored = %+v", store.snaps)
	}
}

func TestAsyncJournalSurvivesStoreErrors(t *testing.T) {
	store := &memStore{err: errors.New("database is locked")}
	j := NewAsyncJournal(store, 4, logger.NewNop())
	j.Start()
	j.Record(job.Snapshot{ID: "a"})
	if err := j.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	if err := j.Stop(); err != nil {
		t.Fatalf("second Stop() = %v", err)
	}
}
