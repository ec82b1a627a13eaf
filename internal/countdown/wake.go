package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/class-transcribe/pkg/logger"
)

// WakeDetector notices when the machine resumes from sleep. Coarse timers
// stall while suspended, so a resume has to trigger a reschedule.
type WakeDetector struct {
	interval  time.Duration
	tolerance time.Duration
	onWake    func(gap time.Duration)
	logger    *logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewWakeDetector checks every interval and calls onWake when the wall time
// between two checks exceeds interval + tolerance. onWake runs on the
// detector's goroutine.
func NewWakeDetector(interval, tolerance time.Duration, onWake func(gap time.Duration), log *logger.Logger) *WakeDetector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if tolerance <= 0 {
		tolerance = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WakeDetector{
		interval:  interval,
		tolerance: tolerance,
		onWake:    onWake,
		logger:    log.Named("wake"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins polling
func (w *WakeDetector) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}

	w.logger.Info("Starting wake detector",
		logger.Duration("interval", w.interval),
		logger.Duration("tolerance", w.tolerance))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.watch()
	}()

	w.started = true
	return nil
}

// Stop halts polling and waits for the goroutine to exit
func (w *WakeDetector) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.started = false
	w.logger.Info("Wake detector stopped")
}

func (w *WakeDetector) watch() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	prev := time.Now()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if gap, slept := Slept(prev, now, w.interval, w.tolerance); slept {
				w.logger.Info("System wake detected", logger.Duration("gap", gap))
				w.onWake(gap)
			}
			prev = now
		}
	}
}

// Slept reports whether the wall-clock gap between two checks is too long
// to be explained by the check interval. The monotonic reading is stripped
// because it does not advance while the machine is suspended on every OS.
func Slept(prev, now time.Time, interval, tolerance time.Duration) (time.Duration, bool) {
	gap := now.Round(0).Sub(prev.Round(0))
	return gap, gap > interval+tolerance
}
