package transcription

import (
	"fmt"
	"strings"
	"time"
)

// FormatVTT renders segments as a WebVTT document
func FormatVTT(segments []Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	n := 0
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		n++
		end := s.End
		if end < s.Start {
			end = s.Start
		}
		fmt.Fprintf(&b, "\n%d\n%s --> %s\n%s\n", n, vttTimestamp(s.Start), vttTimestamp(end), text)
	}
	return b.String()
}

// PlainText joins segment text with newlines
func PlainText(segments []Segment) string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

func vttTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3600000
	m := ms / 60000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}
