package control

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/class-transcribe/internal/job"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// JobStore persists job snapshots
type JobStore interface {
	UpsertJob(ctx context.Context, snap job.Snapshot) error
}

// AsyncJournal writes job snapshots to a JobStore from its own goroutine so
// the event loop never waits on the database.
type AsyncJournal struct {
	store   JobStore
	entries chan job.Snapshot
	timeout time.Duration
	logger  *logger.Logger

	// Service lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewAsyncJournal creates a journal with room for buffer pending entries
func NewAsyncJournal(store JobStore, buffer int, log *logger.Logger) *AsyncJournal {
	if buffer <= 0 {
		buffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncJournal{
		store:   store,
		entries: make(chan job.Snapshot, buffer),
		timeout: 5 * time.Second,
		logger:  log.Named("journal"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins draining entries
func (a *AsyncJournal) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.drain()
	}()

	a.started = true
	return nil
}

// Stop writes whatever is still queued and waits for the writer to exit
func (a *AsyncJournal) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}

	a.cancel()
	a.wg.Wait()
	a.started = false
	a.logger.Info("Job journal stopped")
	return nil
}

// Record queues snap. It never blocks; when the queue is full the entry is
// dropped and a warning logged.
func (a *AsyncJournal) Record(snap job.Snapshot) {
	select {
	case a.entries <- snap:
	default:
		a.logger.Warn("Journal queue full, dropping entry",
			logger.String("job_id", snap.ID),
			logger.String("state", snap.State.String()))
	}
}

func (a *AsyncJournal) drain() {
	for {
		select {
		case snap := <-a.entries:
			a.write(snap)
		case <-a.ctx.Done():
			for {
				select {
				case snap := <-a.entries:
					a.write(snap)
				default:
					return
				}
			}
		}
	}
}

func (a *AsyncJournal) write(snap job.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.store.UpsertJob(ctx, snap); err != nil {
		a.logger.Error("Failed to journal job",
			logger.String("job_id", snap.ID),
			logger.Error(err))
	}
}
