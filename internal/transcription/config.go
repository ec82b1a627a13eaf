package transcription

import (
	"fmt"
	"time"
)

// Providers understood by NewBackend
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config contains configuration for transcription
type Config struct {
	Provider string `toml:"provider"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
	// Prompt is appended to the rendered transcription prompt
	Prompt string `toml:"prompt"`
	// PromptTemplatePath replaces the built-in prompt template when set
	PromptTemplatePath string `toml:"prompt_template_path"`
	ChunkSeconds       int    `toml:"chunk_seconds"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	MaxConcurrent      int    `toml:"max_concurrent"`
}

// DefaultConfig returns the configuration used when the file leaves fields unset
func DefaultConfig() Config {
	return Config{
		Provider:       ProviderGemini,
		Model:          "gemini-2.5-flash",
		ChunkSeconds:   60,
		TimeoutSeconds: 120,
		MaxConcurrent:  2,
	}
}

// ChunkLength returns the chunk size as a duration
func (c Config) ChunkLength() time.Duration {
	if c.ChunkSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.ChunkSeconds) * time.Second
}

// Timeout returns the per-request timeout
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks the provider settings
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown transcription provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("transcription model must be set")
	}
	if c.ChunkSeconds < 0 || c.TimeoutSeconds < 0 || c.MaxConcurrent < 0 {
		return fmt.Errorf("transcription limits must not be negative")
	}
	return nil
}
