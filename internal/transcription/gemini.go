package transcription

import (
	"context"
	"fmt"

	"github.com/yegors/class-transcribe/internal/audio"
	"github.com/yegors/class-transcribe/internal/templating"
	"github.com/yegors/class-transcribe/pkg/logger"
	"google.golang.org/genai"
)

// segmentSchema constrains Gemini's answer to a list of timed segments
var segmentSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"start": {Type: genai.TypeNumber},
			"end":   {Type: genai.TypeNumber},
			"text":  {Type: genai.TypeString},
		},
		Required: []string{"start", "end", "text"},
	},
}

// GeminiBackend sends WAV chunks to the Gemini API with a JSON response schema
type GeminiBackend struct {
	client  *genai.Client
	cfg     Config
	prompts *templating.Engine
	logger  *logger.Logger
}

// NewGeminiBackend creates a new Gemini backend. prompts must have the
// transcription prompt registered.
func NewGeminiBackend(ctx context.Context, cfg Config, prompts *templating.Engine, log *logger.Logger) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		log.Warn("Gemini API key is empty - transcription will not work")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiBackend{
		client:  client,
		cfg:     cfg,
		prompts: prompts,
		logger:  log.Named("gemini"),
	}, nil
}

// Name implements Backend
func (b *GeminiBackend) Name() string { return ProviderGemini }

// TranscribeChunk implements Backend
func (b *GeminiBackend) TranscribeChunk(ctx context.Context, c Chunk) ([]Segment, error) {
	prompt, err := renderPrompt(b.prompts, b.cfg, c)
	if err != nil {
		return nil, err
	}
	wav, err := audio.EncodeWAVBytes(c.Samples, c.SampleRate)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout())
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(wav, "audio/wav"),
		}, genai.RoleUser),
	}
	resp, err := b.client.Models.GenerateContent(ctx, b.cfg.Model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   segmentSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	segments, err := parseSegmentsJSON(resp.Text(), c.Length())
	if err != nil {
		return nil, err
	}
	b.logger.Debug("Chunk answered",
		logger.Int("chunk", c.Index),
		logger.Int("segments", len(segments)))
	return segments, nil
}
