package transcription

import (
	"context"
	"time"
)

// Segment is one timed piece of transcript text
type Segment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Input is the audio handed to an engine: either decoded samples or a file
// that still has to be converted
type Input struct {
	Samples    []float32
	SampleRate int
	Path       string
	// Title is passed to backends as context for the prompt
	Title string
}

// Engine transcribes audio asynchronously. onProgress receives values in
// [0, 1]; onDone is called exactly once. Both may run on any goroutine.
type Engine interface {
	Transcribe(ctx context.Context, in Input, onProgress func(float64), onDone func([]Segment, error))
}

// Transcript is a finished transcription ready to be stored
type Transcript struct {
	JobID        string
	Title        string
	MeetingStart time.Time
	SourcePath   string
	CreatedAt    time.Time
	Segments     []Segment
}

// Destination persists transcripts. onDone is called exactly once with the
// location written.
type Destination interface {
	Save(ctx context.Context, t Transcript, onDone func(path string, err error))
}
