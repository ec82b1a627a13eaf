package transcription

import (
	"strings"
	"testing"
	"time"

	"github.com/yegors/class-transcribe/internal/templating"
	"github.com/yegors/class-transcribe/pkg/logger"
)

func TestParseSegmentsJSON(t *testing.T) {
	text := "```json\n" + `[
		{"start": 0, "end": 1.5, "text": "Welcome back."},
		{"start": -1, "end": 0.2, "text": "  "},
		{"start": 50, "end": 70, "text": "Past the end"},
		{"start": 3, "end": 2, "text": "Reversed"}
	]` + "\n```"

	got, err := parseSegmentsJSON(text, 60*time.Second)
	if err != nil {
		t.Fatalf("parseSegmentsJSON() = %v", err)
	}
	want := []Segment{
		{Start: 0, End: 1500 * time.Millisecond, Text: "Welcome back."},
		{Start: 50 * time.Second, End: 60 * time.Second, Text: "Past the end"},
		{Start: 3 * time.Second, End: 3 * time.Second, Text: "Reversed"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseSegmentsJSONEmptyAndInvalid(t *testing.T) {
	if got, err := parseSegmentsJSON("  ", time.Minute); err != nil || got != nil {
		t.Fatalf("empty answer = %v, %v", got, err)
	}
	if _, err := parseSegmentsJSON("Sorry, I can't help.", time.Minute); err == nil {
		t.Fatal("expected error for prose answer")
	}
}

func TestRenderPrompt(t *testing.T) {
	e := templating.NewEngine(logger.NewNop())
	if err := RegisterPrompt(e, Config{}); err != nil {
		t.Fatal(err)
	}
	got, err := renderPrompt(e, Config{Language: "French", Prompt: "Speaker is Dr. Roy."}, Chunk{Index: 1, Count: 2, Title: "FR 210"})
	if err != nil {
		t.Fatalf("renderPrompt() = %v", err)
	}
	for _, want := range []string{`"FR 210"`, "French", "part 1 of 2", "Dr. Roy."} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}
