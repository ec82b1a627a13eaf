package clock

import "time"

// Handle identifies one timer created through a Group
type Handle struct {
	run uint64
	id  uint64
}

// Run returns the scheduling run the handle belongs to
func (h Handle) Run() uint64 { return h.run }

// Group is an arena of timers keyed by scheduling run. Cancel stops every
// timer of the current run and starts a new run, so callbacks that were
// already queued for delivery find their handle gone and do nothing.
//
// Group is not safe for concurrent use. All methods, and every callback,
// execute on the goroutine behind post.
type Group struct {
	clock   Clock
	post    func(func())
	run     uint64
	nextID  uint64
	entries map[uint64]Timer
}

// NewGroup creates a timer group whose callbacks are delivered through post
func NewGroup(c Clock, post func(func())) *Group {
	return &Group{
		clock:   c,
		post:    post,
		run:     1,
		entries: make(map[uint64]Timer),
	}
}

// At runs fn once at the given instant. Instants in the past fire as soon
// as possible.
func (g *Group) At(at time.Time, fn func()) Handle {
	h := g.newHandle()
	g.arm(h, at, fn)
	return h
}

// Repeat runs fn count times, the i-th call (1-based) at start + i*interval.
// Deadlines are absolute so late deliveries do not accumulate drift.
func (g *Group) Repeat(start time.Time, interval time.Duration, count int, fn func(i int)) Handle {
	h := g.newHandle()
	if count > 0 {
		g.armRepeat(h, start, interval, 1, count, fn)
	}
	return h
}

// Cancel stops every outstanding timer and invalidates the current run.
// Calling it with nothing pending is a no-op apart from the run bump.
func (g *Group) Cancel() {
	for id, t := range g.entries {
		t.Stop()
		delete(g.entries, id)
	}
	g.run++
}

// Pending returns the number of live timers in the current run
func (g *Group) Pending() int {
	return len(g.entries)
}

// Active reports whether the handle still has a timer waiting
func (g *Group) Active(h Handle) bool {
	if h.run != g.run {
		return false
	}
	_, ok := g.entries[h.id]
	return ok
}

// CurrentRun returns the id of the run new handles are created in
func (g *Group) CurrentRun() uint64 {
	return g.run
}

func (g *Group) newHandle() Handle {
	g.nextID++
	return Handle{run: g.run, id: g.nextID}
}

func (g *Group) armRepeat(h Handle, start time.Time, interval time.Duration, i, count int, fn func(int)) {
	at := start.Add(time.Duration(i) * interval)
	g.arm(h, at, func() {
		fn(i)
		if i < count && h.run == g.run {
			g.armRepeat(h, start, interval, i+1, count, fn)
		}
	})
}

func (g *Group) arm(h Handle, at time.Time, fn func()) {
	delay := at.Sub(g.clock.Now())
	if delay < 0 {
		delay = 0
	}
	g.entries[h.id] = g.clock.AfterFunc(delay, func() {
		g.post(func() { g.fire(h, fn) })
	})
}

func (g *Group) fire(h Handle, fn func()) {
	if h.run != g.run {
		return
	}
	if _, ok := g.entries[h.id]; !ok {
		return
	}
	delete(g.entries, h.id)
	fn()
}
