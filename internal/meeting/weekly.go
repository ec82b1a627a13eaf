package meeting

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Slot is one recurring weekly class time
type Slot struct {
	Title           string       `json:"title"`
	Weekday         time.Weekday `json:"weekday"`
	Hour            int          `json:"hour"`
	Minute          int          `json:"minute"`
	DurationMinutes int          `json:"duration_minutes"`
}

// Clock returns the slot's start as "HH:MM"
func (s Slot) Clock() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// Validate checks the slot's fields
func (s Slot) Validate() error {
	if s.Title == "" {
		return fmt.Errorf("meeting title is required")
	}
	if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
		return fmt.Errorf("meeting %q has invalid weekday %d", s.Title, s.Weekday)
	}
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("meeting %q has invalid start %s", s.Title, s.Clock())
	}
	if s.DurationMinutes < 0 {
		return fmt.Errorf("meeting %q has negative duration", s.Title)
	}
	return nil
}

// Weekly is a Source backed by a recurring weekly timetable. It is safe for
// concurrent use; edits come from the HTTP API while the scheduler reads.
type Weekly struct {
	mu       sync.RWMutex
	enabled  bool
	location *time.Location
	days     [7][]Slot
}

// NewWeekly creates a weekly source evaluated in loc (local time if nil)
func NewWeekly(loc *time.Location, enabled bool, slots []Slot) (*Weekly, error) {
	if loc == nil {
		loc = time.Local
	}
	w := &Weekly{location: loc, enabled: enabled}
	if err := w.Replace(slots); err != nil {
		return nil, err
	}
	return w, nil
}

// Replace swaps the whole timetable
func (w *Weekly) Replace(slots []Slot) error {
	var days [7][]Slot
	for _, s := range slots {
		if err := s.Validate(); err != nil {
			return err
		}
		days[s.Weekday] = append(days[s.Weekday], s)
	}
	for d := range days {
		sort.SliceStable(days[d], func(i, j int) bool {
			a, b := days[d][i], days[d][j]
			return a.Hour*60+a.Minute < b.Hour*60+b.Minute
		})
	}

	w.mu.Lock()
	w.days = days
	w.mu.Unlock()
	return nil
}

// SetEnabled toggles automatic scheduling
func (w *Weekly) SetEnabled(enabled bool) {
	w.mu.Lock()
	w.enabled = enabled
	w.mu.Unlock()
}

// Slots returns a copy of the timetable ordered by weekday then time
func (w *Weekly) Slots() []Slot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []Slot
	for _, day := range w.days {
		out = append(out, day...)
	}
	return out
}

// Location returns the time zone slots are interpreted in
func (w *Weekly) Location() *time.Location {
	return w.location
}

func (w *Weekly) IsScheduleEnabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

func (w *Weekly) IsScheduleEmpty() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, day := range w.days {
		if len(day) > 0 {
			return false
		}
	}
	return true
}

// NextMeeting scans today and the following seven days. The seventh day
// covers slots earlier today, which recur next week.
func (w *Weekly) NextMeeting(now time.Time) (Meeting, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	local := now.In(w.location)
	for offset := 0; offset <= 7; offset++ {
		day := time.Date(local.Year(), local.Month(), local.Day()+offset, 0, 0, 0, 0, w.location)
		for _, s := range w.days[day.Weekday()] {
			start := time.Date(day.Year(), day.Month(), day.Day(), s.Hour, s.Minute, 0, 0, w.location)
			if start.After(now) {
				return Meeting{Title: s.Title, Start: start, DurationMinutes: s.DurationMinutes}, true
			}
		}
	}
	return Meeting{}, false
}
