package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/yegors/class-transcribe/internal/audio"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// DefaultOpenAIBase is used when neither the configuration nor the
// environment names an endpoint
var DefaultOpenAIBase = "https://api.openai.com"

// OpenAIBackend posts WAV chunks to an OpenAI-compatible
// /v1/audio/transcriptions endpoint
type OpenAIBackend struct {
	apiKey     string
	cfg        Config
	httpClient *http.Client
	logger     *logger.Logger
	// baseURL allows overriding the default OpenAI API endpoint (e.g. for
	// proxies or a local whisper server). Stored without a trailing slash.
	baseURL string
}

// NewOpenAIBackend creates a new OpenAI backend.
// The base URL is chosen in the following order:
// 1. cfg.BaseURL, if set.
// 2. The environment variable OPENAI_API_BASE, if set.
// 3. DefaultOpenAIBase.
func NewOpenAIBackend(cfg Config, log *logger.Logger) *OpenAIBackend {
	if cfg.APIKey == "" {
		log.Warn("OpenAI API key is empty - transcription will not work")
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		if env := os.Getenv("OPENAI_API_BASE"); env != "" {
			base = env
		} else {
			base = DefaultOpenAIBase
		}
	}

	return &OpenAIBackend{
		apiKey:  cfg.APIKey,
		cfg:     cfg,
		logger:  log.Named("openai"),
		baseURL: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

// Name implements Backend
func (b *OpenAIBackend) Name() string { return ProviderOpenAI }

type verboseTranscription struct {
	Text     string        `json:"text"`
	Segments []jsonSegment `json:"segments"`
}

// TranscribeChunk implements Backend
func (b *OpenAIBackend) TranscribeChunk(ctx context.Context, c Chunk) ([]Segment, error) {
	wav, err := audio.EncodeWAVBytes(c.Samples, c.SampleRate)
	if err != nil {
		return nil, err
	}

	body, contentType, err := b.form(c, wav)
	if err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}

	apiURL := b.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", b.apiKey))

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(bodyBytes))
	}

	var result verboseTranscription
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	limit := c.Length()
	if len(result.Segments) == 0 {
		if text := strings.TrimSpace(result.Text); text != "" {
			return []Segment{{Start: 0, End: limit, Text: text}}, nil
		}
		return nil, nil
	}
	return toSegments(result.Segments, limit), nil
}

func (b *OpenAIBackend) form(c Chunk, wav []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", fmt.Sprintf("chunk-%03d.wav", c.Index))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"model", b.cfg.Model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
		{"temperature", "0"},
	}
	if b.cfg.Language != "" {
		fields = append(fields, [2]string{"language", b.cfg.Language})
	}
	if prompt := whisperPrompt(b.cfg.Prompt, c.Title); prompt != "" {
		fields = append(fields, [2]string{"prompt", prompt})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// whisperPrompt is vocabulary context, not an instruction
func whisperPrompt(extra, title string) string {
	switch {
	case extra != "" && title != "":
		return title + ". " + extra
	case extra != "":
		return extra
	default:
		return title
	}
}
