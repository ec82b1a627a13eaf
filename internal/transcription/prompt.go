package transcription

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yegors/class-transcribe/internal/templating"
)

// RegisterPrompt installs the transcription prompt, from cfg.PromptTemplatePath
// when set, otherwise the built-in default
func RegisterPrompt(e *templating.Engine, cfg Config) error {
	if cfg.PromptTemplatePath != "" {
		return e.LoadFile(templating.TranscriptionPrompt, cfg.PromptTemplatePath)
	}
	return e.Parse(templating.TranscriptionPrompt, templating.DefaultTranscriptionPrompt)
}

func renderPrompt(e *templating.Engine, cfg Config, c Chunk) (string, error) {
	return e.Render(templating.TranscriptionPrompt, templating.PromptData{
		Title:      c.Title,
		Language:   cfg.Language,
		ChunkIndex: c.Index,
		ChunkCount: c.Count,
		ChunkStart: c.Offset,
		Extra:      cfg.Prompt,
	})
}

type jsonSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// parseSegmentsJSON reads the model's JSON answer. Times are seconds from the
// start of the chunk and are clamped to [0, limit].
func parseSegmentsJSON(text string, limit time.Duration) ([]Segment, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var raw []jsonSegment
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse segments: %w", err)
	}
	return toSegments(raw, limit), nil
}

func toSegments(raw []jsonSegment, limit time.Duration) []Segment {
	out := make([]Segment, 0, len(raw))
	for _, r := range raw {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		start := clampSeconds(r.Start, limit)
		end := clampSeconds(r.End, limit)
		if end < start {
			end = start
		}
		out = append(out, Segment{Start: start, End: end, Text: text})
	}
	return out
}

func clampSeconds(s float64, limit time.Duration) time.Duration {
	d := time.Duration(s * float64(time.Second))
	if d < 0 {
		return 0
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
