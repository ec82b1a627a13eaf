package meeting

import (
	"testing"
	"time"
)

// Wednesday 2024-09-04 10:00 UTC
var wednesday = time.Date(2024, time.September, 4, 10, 0, 0, 0, time.UTC)

func mustWeekly(t *testing.T, slots ...Slot) *Weekly {
	t.Helper()
	w, err := NewWeekly(time.UTC, true, slots)
	if err != nil {
		t.Fatalf("NewWeekly() error = %v", err)
	}
	return w
}

func TestNextMeeting(t *testing.T) {
	w := mustWeekly(t,
		Slot{Title: "Algorithms", Weekday: time.Wednesday, Hour: 9, Minute: 0, DurationMinutes: 50},
		Slot{Title: "Compilers", Weekday: time.Wednesday, Hour: 14, Minute: 30, DurationMinutes: 75},
		Slot{Title: "Databases", Weekday: time.Wednesday, Hour: 11, Minute: 0, DurationMinutes: 50},
		Slot{Title: "Networks", Weekday: time.Friday, Hour: 8, Minute: 15, DurationMinutes: 50},
	)

	tests := []struct {
		name      string
		now       time.Time
		wantTitle string
		wantStart time.Time
	}{
		{"later today picks earliest", wednesday, "Databases", time.Date(2024, 9, 4, 11, 0, 0, 0, time.UTC)},
		{"exact start is not next", time.Date(2024, 9, 4, 11, 0, 0, 0, time.UTC), "Compilers", time.Date(2024, 9, 4, 14, 30, 0, 0, time.UTC)},
		{"rolls to another day", time.Date(2024, 9, 4, 15, 0, 0, 0, time.UTC), "Networks", time.Date(2024, 9, 6, 8, 15, 0, 0, time.UTC)},
		{"wraps to next week", time.Date(2024, 9, 6, 9, 0, 0, 0, time.UTC), "Algorithms", time.Date(2024, 9, 11, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := w.NextMeeting(tt.now)
			if !ok {
				t.Fatalf("NextMeeting() ok = false")
			}
			if m.Title != tt.wantTitle || !m.Start.Equal(tt.wantStart) {
				t.Fatalf("NextMeeting() = %s at %v, want %s at %v", m.Title, m.Start, tt.wantTitle, tt.wantStart)
			}
		})
	}
}

func TestNextMeetingSameSlotNextWeek(t *testing.T) {
	w := mustWeekly(t, Slot{Title: "Seminar", Weekday: time.Wednesday, Hour: 9, Minute: 0})
	m, ok := w.NextMeeting(wednesday)
	if !ok {
		t.Fatalf("NextMeeting() ok = false")
	}
	if want := time.Date(2024, 9, 11, 9, 0, 0, 0, time.UTC); !m.Start.Equal(want) {
		t.Fatalf("Start = %v, want %v", m.Start, want)
	}
}

func TestEmptySchedule(t *testing.T) {
	w := mustWeekly(t)
	if !w.IsScheduleEmpty() {
		t.Fatalf("IsScheduleEmpty() = false")
	}
	if _, ok := w.NextMeeting(wednesday); ok {
		t.Fatalf("NextMeeting() ok = true on empty schedule")
	}
}

func TestReplaceAndEnable(t *testing.T) {
	w := mustWeekly(t)
	if err := w.Replace([]Slot{{Title: "", Weekday: time.Monday}}); err == nil {
		t.Fatalf("Replace() accepted a slot without a title")
	}
	if err := w.Replace([]Slot{{Title: "Physics", Weekday: time.Thursday, Hour: 13}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if w.IsScheduleEmpty() {
		t.Fatalf("IsScheduleEmpty() = true after Replace")
	}
	w.SetEnabled(false)
	if w.IsScheduleEnabled() {
		t.Fatalf("IsScheduleEnabled() = true after SetEnabled(false)")
	}
}

func TestParseHelpers(t *testing.T) {
	if d, err := ParseWeekday("tue"); err != nil || d != time.Tuesday {
		t.Fatalf("ParseWeekday(tue) = %v, %v", d, err)
	}
	if d, err := ParseWeekday("Saturday"); err != nil || d != time.Saturday {
		t.Fatalf("ParseWeekday(Saturday) = %v, %v", d, err)
	}
	if _, err := ParseWeekday("someday"); err == nil {
		t.Fatalf("ParseWeekday(someday) returned nil error")
	}
	if h, m, err := ParseClock("09:05"); err != nil || h != 9 || m != 5 {
		t.Fatalf("ParseClock(09:05) = %d, %d, %v", h, m, err)
	}
	for _, bad := range []string{"9", "24:00", "12:60", "ab:cd"} {
		if _, _, err := ParseClock(bad); err == nil {
			t.Fatalf("ParseClock(%q) returned nil error", bad)
		}
	}
}
