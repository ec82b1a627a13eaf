package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// ErrUnsupportedMedia is returned for files that carry no audio track
var ErrUnsupportedMedia = errors.New("unsupported media type")

// DetectMedia sniffs path and returns its MIME type. Only audio and video
// containers are accepted.
func DetectMedia(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	for m := mt; m != nil; m = m.Parent() {
		s := m.String()
		if strings.HasPrefix(s, "audio/") || strings.HasPrefix(s, "video/") {
			return mt.String(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, mt.String())
}

// ConverterConfig contains configuration for the converter
type ConverterConfig struct {
	FFmpegPath string
	SampleRate int
}

// Converter loads arbitrary recordings as normalized mono samples. WAV
// files already at the target rate are decoded directly; everything else
// is piped through ffmpeg.
type Converter struct {
	ffmpegPath string
	sampleRate int
	logger     *logger.Logger
}

// NewConverter creates a converter
func NewConverter(cfg ConverterConfig, log *logger.Logger) *Converter {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	return &Converter{
		ffmpegPath: cfg.FFmpegPath,
		sampleRate: cfg.SampleRate,
		logger:     log.Named("converter"),
	}
}

// SampleRate returns the rate Load produces
func (c *Converter) SampleRate() int {
	return c.sampleRate
}

// Load reads path into samples at the converter's rate
func (c *Converter) Load(ctx context.Context, path string) ([]float32, error) {
	mime, err := DetectMedia(path)
	if err != nil {
		return nil, err
	}

	if mime == "audio/wav" {
		clip, err := ReadWAVFile(path)
		if err == nil && clip.SampleRate == c.sampleRate {
			c.logger.Debug("Decoded wav directly",
				logger.String("path", path),
				logger.Int("samples", len(clip.Samples)))
			return clip.Samples, nil
		}
	}

	return c.transcode(ctx, path)
}

// transcode runs ffmpeg and reads raw PCM from its stdout
func (c *Converter) transcode(ctx context.Context, path string) ([]float32, error) {
	args := []string{
		"-loglevel", "error", // Minimal logging
		"-nostdin",
		"-i", path, // Input file
		"-vn", // Drop any video track
		"-f", "s16le", // Raw PCM
		"-acodec", "pcm_s16le", // Audio codec
		"-ac", "1", // Mono
		"-ar", fmt.Sprintf("%d", c.sampleRate), // Sample rate
		"pipe:1", // Output to stdout
	}

	c.logger.Debug("Starting ffmpeg conversion",
		logger.String("path", path),
		logger.String("ffmpeg", c.ffmpegPath))

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	raw, readErr := io.ReadAll(stdout)
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read ffmpeg output: %w", readErr)
	}

	samples := FromS16LE(raw)
	c.logger.Info("Converted recording",
		logger.String("path", path),
		logger.Duration("audio", Duration(len(samples), c.sampleRate)))
	return samples, nil
}
