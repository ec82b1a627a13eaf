package countdown

import (
	"fmt"
	"time"
)

// FormatRemaining renders the time left at the given granularity, rounding
// coarse units up so "1 hour" is shown until the hour has fully elapsed
func FormatRemaining(g Granularity, remaining time.Duration) string {
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}

	switch g {
	case Day:
		return plural(ceilDiv(secs, secondsPerDay), "day", "days")
	case Hour:
		return plural(ceilDiv(secs, secondsPerHour), "hour", "hours")
	case Minute:
		return plural(ceilDiv(secs, secondsPerMinute), "min", "mins")
	default:
		return fmt.Sprintf("%d:%02d", secs/secondsPerMinute, secs%secondsPerMinute)
	}
}

// InitialLabel picks the granularity a fresh countdown is first shown in
func InitialLabel(remaining time.Duration) string {
	return FormatRemaining(displayGranularity(remaining), remaining)
}

func displayGranularity(remaining time.Duration) Granularity {
	switch {
	case remaining > 12*time.Hour:
		return Day
	case remaining >= time.Hour:
		return Hour
	case remaining > finalWindowSeconds*time.Second:
		return Minute
	default:
		return Second
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
