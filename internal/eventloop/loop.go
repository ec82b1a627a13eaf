package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yegors/class-transcribe/pkg/logger"
)

// ErrStopped is returned by Call once the loop has shut down
var ErrStopped = errors.New("event loop stopped")

// Poster enqueues work for the goroutine that owns scheduler and
// coordinator state
type Poster interface {
	Post(fn func())
}

// Inline runs posted work immediately on the caller's goroutine
type Inline struct{}

func (Inline) Post(fn func()) { fn() }

// Loop runs posted functions one at a time on a single goroutine
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	logger *logger.Logger
}

// New creates a loop with the given queue depth
func New(buffer int, log *logger.Logger) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks:  make(chan func(), buffer),
		done:   make(chan struct{}),
		logger: log.Named("loop"),
	}
}

// Post enqueues fn. It blocks while the queue is full and drops fn once the
// loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Call runs fn on the loop and waits for it to finish
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes tasks until ctx is canceled
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("Event loop started")
	defer l.once.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Event loop stopped")
			return
		case fn := <-l.tasks:
			l.execute(fn)
		}
	}
}

// Done is closed when Run returns
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered panic in event loop task",
				logger.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}
