//go:build !portaudio

package capture

import "github.com/yegors/class-transcribe/pkg/logger"

// PortAudioConfig contains configuration for the PortAudio device
type PortAudioConfig struct {
	SampleRate    int
	RecordingsDir string
}

// PortAudioDevice is unavailable in this build
type PortAudioDevice struct{}

// NewPortAudioDevice always fails in this build
func NewPortAudioDevice(PortAudioConfig, *logger.Logger) (*PortAudioDevice, error) {
	return nil, ErrPortAudioUnavailable
}

func (d *PortAudioDevice) Close() error     { return nil }
func (d *PortAudioDevice) Permitted() error { return ErrPortAudioUnavailable }

func (d *PortAudioDevice) Start(string, func([]float32, error)) (Handle, error) {
	return nil, ErrPortAudioUnavailable
}
