package meeting

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Meeting is one scheduled class occurrence
type Meeting struct {
	Title           string    `json:"title"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

// End returns the instant the meeting is scheduled to finish
func (m Meeting) End() time.Time {
	return m.Start.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

// Source supplies upcoming meetings
type Source interface {
	// NextMeeting returns the first meeting starting strictly after now.
	// ok is false when nothing is scheduled.
	NextMeeting(now time.Time) (m Meeting, ok bool)
	IsScheduleEnabled() bool
	IsScheduleEmpty() bool
}

// ParseWeekday accepts full or three-letter English day names
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// ParseClock parses a 24-hour "HH:MM" time of day
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
