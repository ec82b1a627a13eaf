package transcription

import (
	"context"
	"fmt"

	"github.com/yegors/class-transcribe/internal/templating"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// NewBackend creates the backend named by cfg.Provider
func NewBackend(ctx context.Context, cfg Config, prompts *templating.Engine, log *logger.Logger) (Backend, error) {
	switch cfg.Provider {
	case ProviderGemini:
		return NewGeminiBackend(ctx, cfg, prompts, log)
	case ProviderOpenAI:
		return NewOpenAIBackend(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}
