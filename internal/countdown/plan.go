package countdown

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the tick unit of a countdown segment
type Granularity int

const (
	Second Granularity = iota
	Minute
	Hour
	Day
)

// Unit returns the duration of one tick
func (g Granularity) Unit() time.Duration {
	switch g {
	case Day:
		return 24 * time.Hour
	case Hour:
		return time.Hour
	case Minute:
		return time.Minute
	default:
		return time.Second
	}
}

func (g Granularity) String() string {
	switch g {
	case Day:
		return "day"
	case Hour:
		return "hour"
	case Minute:
		return "minute"
	default:
		return "second"
	}
}

func (g Granularity) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// Segment is Count ticks of one granularity. Alignment segments are a single
// silent wait of Count units that moves later segments onto round boundaries.
type Segment struct {
	Granularity Granularity `json:"granularity"`
	Count       int         `json:"count"`
	Align       bool        `json:"align"`
}

// Duration returns the wall time the segment covers
func (s Segment) Duration() time.Duration {
	return time.Duration(s.Count) * s.Granularity.Unit()
}

func (s Segment) String() string {
	if s.Align {
		return fmt.Sprintf("align %d %s(s)", s.Count, s.Granularity)
	}
	return fmt.Sprintf("%d x %s", s.Count, s.Granularity)
}

// Plan is the decomposition of one wait into segments
type Plan struct {
	TotalSeconds int       `json:"total_seconds"`
	Segments     []Segment `json:"segments"`
}

// Duration returns the sum of all segment durations
func (p Plan) Duration() time.Duration {
	var d time.Duration
	for _, s := range p.Segments {
		d += s.Duration()
	}
	return d
}

func (p Plan) String() string {
	parts := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		parts[i] = s.String()
	}
	return fmt.Sprintf("%ds: %s", p.TotalSeconds, strings.Join(parts, ", "))
}

const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	secondsPerDay    = 86400

	// The last quarter hour is always counted down second by second
	finalWindowSeconds = 15 * secondsPerMinute
)

// BuildPlan decomposes a wait of total seconds. Coarse segments hand over to
// finer ones on round boundaries and the final 15 minutes tick every second.
// Zero-count segments are omitted.
func BuildPlan(total int) Plan {
	p := Plan{TotalSeconds: total}
	if total <= 0 {
		return p
	}

	hours := total / secondsPerHour
	align := 0
	switch {
	case hours > 24:
		align = total % secondsPerDay
	case hours > 1:
		align = total % secondsPerHour
	case total > finalWindowSeconds:
		align = total % secondsPerMinute
	}

	add := func(g Granularity, count int, isAlign bool) {
		if count > 0 {
			p.Segments = append(p.Segments, Segment{Granularity: g, Count: count, Align: isAlign})
		}
	}
	add(Second, align, true)

	seconds := total - align
	hours = seconds / secondsPerHour
	switch {
	case hours > 24:
		add(Day, seconds/secondsPerDay-1, false)
		add(Hour, 11, true)
		add(Hour, 12, false)
		add(Minute, 45, false)
		add(Second, finalWindowSeconds, false)
	case hours > 12:
		add(Hour, hours-13, true)
		add(Hour, 12, false)
		add(Minute, 45, false)
		add(Second, finalWindowSeconds, false)
	case hours > 1:
		add(Hour, hours-1, false)
		add(Minute, 45, false)
		add(Second, finalWindowSeconds, false)
	case seconds > finalWindowSeconds:
		add(Minute, seconds/secondsPerMinute-15, false)
		add(Second, finalWindowSeconds, false)
	default:
		add(Second, seconds, false)
	}
	return p
}
