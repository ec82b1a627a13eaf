//go:build portaudio

package capture

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/yegors/class-transcribe/internal/audio"
	"github.com/yegors/class-transcribe/pkg/logger"
)

const framesPerBuffer = 1024

// PortAudioConfig contains configuration for the PortAudio device
type PortAudioConfig struct {
	SampleRate    int
	RecordingsDir string
}

// PortAudioDevice reads the default input device through PortAudio
type PortAudioDevice struct {
	config PortAudioConfig
	paths  *FFmpegDevice
	logger *logger.Logger
}

// NewPortAudioDevice initializes PortAudio. Call Close when done.
func NewPortAudioDevice(cfg PortAudioConfig, log *logger.Logger) (*PortAudioDevice, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init error: %w", err)
	}
	return &PortAudioDevice{
		config: cfg,
		paths:  NewFFmpegDevice(FFmpegConfig{RecordingsDir: cfg.RecordingsDir}, log),
		logger: log.Named("capture"),
	}, nil
}

// Close releases PortAudio
func (d *PortAudioDevice) Close() error {
	return portaudio.Terminate()
}

// Permitted checks there is an input device to read from
func (d *PortAudioDevice) Permitted() error {
	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil {
		return fmt.Errorf("%w: no default input device: %v", ErrNotPermitted, err)
	}
	if err := os.MkdirAll(d.config.RecordingsDir, 0755); err != nil {
		return fmt.Errorf("%w: recordings directory: %v", ErrNotPermitted, err)
	}
	return nil
}

// Start opens the default input stream and reads it until stopped
func (d *PortAudioDevice) Start(name string, onComplete func([]float32, error)) (Handle, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(d.config.SampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PA stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start PA stream: %w", err)
	}

	path := d.paths.Path(time.Now(), name)
	h := &portaudioHandle{stop: make(chan struct{})}
	d.logger.Info("Recording from default input", logger.Int("sample_rate", d.config.SampleRate))

	go func() {
		var pcm []int
		for {
			select {
			case <-h.stop:
				stream.Stop()
				stream.Close()
				onComplete(d.finish(path, pcm))
				return
			default:
			}
			if err := stream.Read(); err != nil && err != portaudio.InputOverflowed {
				stream.Close()
				onComplete(nil, fmt.Errorf("PortAudio read error: %w", err))
				return
			}
			for _, s := range buf {
				pcm = append(pcm, int(s))
			}
		}
	}()
	return h, nil
}

func (d *PortAudioDevice) finish(path string, pcm []int) ([]float32, error) {
	samples := audio.Normalize(pcm, 16, 1)
	if err := audio.WriteWAVFile(path, samples, d.config.SampleRate); err != nil {
		d.logger.Warn("Failed to keep recording on disk", logger.Error(err))
	} else {
		d.logger.Info("Recording finished",
			logger.String("path", path),
			logger.Duration("audio", audio.Duration(len(samples), d.config.SampleRate)))
	}
	return samples, nil
}

type portaudioHandle struct {
	once sync.Once
	stop chan struct{}
}

func (h *portaudioHandle) Stop() {
	h.once.Do(func() { close(h.stop) })
}
