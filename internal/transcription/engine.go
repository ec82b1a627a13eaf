package transcription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yegors/class-transcribe/internal/audio"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// ErrNoAudio is returned when there is nothing to transcribe
var ErrNoAudio = errors.New("no audio to transcribe")

// Chunk is the unit of work handed to a Backend
type Chunk struct {
	Samples    []float32
	SampleRate int
	// Index is 1-based
	Index  int
	Count  int
	Offset time.Duration
	Title  string
}

// Length returns the duration of the chunk's audio
func (c Chunk) Length() time.Duration {
	return audio.Duration(len(c.Samples), c.SampleRate)
}

// Backend transcribes a single chunk, blocking until done. Segment times are
// relative to the start of the chunk.
type Backend interface {
	Name() string
	TranscribeChunk(ctx context.Context, c Chunk) ([]Segment, error)
}

// Loader turns a media file into normalized mono samples
type Loader interface {
	Load(ctx context.Context, path string) ([]float32, error)
	SampleRate() int
}

// Span is a half-open range of sample indexes
type Span struct {
	Start, End int
}

// Chunks splits n samples into spans of at most size
func Chunks(n, rate int, size time.Duration) []Span {
	if n <= 0 {
		return nil
	}
	per := int(int64(rate) * int64(size) / int64(time.Second))
	if per <= 0 || per >= n {
		return []Span{{0, n}}
	}
	spans := make([]Span, 0, (n+per-1)/per)
	for start := 0; start < n; start += per {
		spans = append(spans, Span{start, min(start+per, n)})
	}
	return spans
}

// Runner adapts a blocking Backend to the asynchronous Engine contract. Each
// Transcribe call runs on its own goroutine; at most MaxConcurrent of them
// talk to the backend at once.
type Runner struct {
	backend Backend
	loader  Loader
	chunk   time.Duration
	sem     chan struct{}
	wg      sync.WaitGroup
	logger  *logger.Logger
}

// NewRunner creates a new runner
func NewRunner(backend Backend, loader Loader, cfg Config, log *logger.Logger) *Runner {
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	return &Runner{
		backend: backend,
		loader:  loader,
		chunk:   cfg.ChunkLength(),
		sem:     make(chan struct{}, limit),
		logger:  log.Named("transcription"),
	}
}

// Transcribe implements Engine
func (r *Runner) Transcribe(ctx context.Context, in Input, onProgress func(float64), onDone func([]Segment, error)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		segments, err := r.run(ctx, in, onProgress)
		onDone(segments, err)
	}()
}

// Wait blocks until every running transcription has reported
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, in Input, onProgress func(float64)) ([]Segment, error) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.sem }()

	samples, rate := in.Samples, in.SampleRate
	if len(samples) == 0 && in.Path != "" {
		if r.loader == nil {
			return nil, fmt.Errorf("no loader configured for %s", in.Path)
		}
		var err error
		if samples, err = r.loader.Load(ctx, in.Path); err != nil {
			return nil, fmt.Errorf("failed to load audio: %w", err)
		}
		rate = r.loader.SampleRate()
	}
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}
	if len(samples) == 0 {
		return nil, ErrNoAudio
	}

	spans := Chunks(len(samples), rate, r.chunk)
	r.logger.Info("Transcribing audio",
		logger.String("backend", r.backend.Name()),
		logger.String("title", in.Title),
		logger.Duration("audio", audio.Duration(len(samples), rate)),
		logger.Int("chunks", len(spans)))
	onProgress(0)

	var out []Segment
	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		offset := audio.Duration(span.Start, rate)
		segments, err := r.backend.TranscribeChunk(ctx, Chunk{
			Samples:    samples[span.Start:span.End],
			SampleRate: rate,
			Index:      i + 1,
			Count:      len(spans),
			Offset:     offset,
			Title:      in.Title,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to transcribe chunk %d of %d: %w", i+1, len(spans), err)
		}
		for _, s := range segments {
			s.Start += offset
			s.End += offset
			out = append(out, s)
		}
		r.logger.Debug("Chunk transcribed",
			logger.Int("chunk", i+1),
			logger.Int("segments", len(segments)))
		onProgress(float64(i+1) / float64(len(spans)))
	}
	return out, nil
}
