package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/yegors/class-transcribe/internal/audio"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// FFmpegConfig contains configuration for the ffmpeg capture device
type FFmpegConfig struct {
	FFmpegPath    string
	InputFormat   string // avfoundation, pulse, alsa, dshow; empty picks one for the OS
	InputDevice   string
	SampleRate    int
	RecordingsDir string
	// StopTimeout is how long ffmpeg gets to finalize the file after "q"
	StopTimeout time.Duration
}

// FFmpegDevice records the microphone with an ffmpeg child process. Each
// recording is kept as a WAV file in the recordings directory.
type FFmpegDevice struct {
	config FFmpegConfig
	now    func() time.Time
	logger *logger.Logger
}

// NewFFmpegDevice creates an ffmpeg capture device
func NewFFmpegDevice(cfg FFmpegConfig, log *logger.Logger) *FFmpegDevice {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.InputFormat == "" || cfg.InputDevice == "" {
		format, device := defaultInput()
		if cfg.InputFormat == "" {
			cfg.InputFormat = format
		}
		if cfg.InputDevice == "" {
			cfg.InputDevice = device
		}
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	return &FFmpegDevice{
		config: cfg,
		now:    time.Now,
		logger: log.Named("capture"),
	}
}

func defaultInput() (format, device string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":default"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

// Permitted checks that ffmpeg is installed and recordings can be written
func (d *FFmpegDevice) Permitted() error {
	if _, err := exec.LookPath(d.config.FFmpegPath); err != nil {
		return fmt.Errorf("%w: ffmpeg not found at %q", ErrNotPermitted, d.config.FFmpegPath)
	}
	if err := os.MkdirAll(d.config.RecordingsDir, 0755); err != nil {
		return fmt.Errorf("%w: recordings directory: %v", ErrNotPermitted, err)
	}
	return nil
}

// Path returns where a recording started at t with the given name is saved
func (d *FFmpegDevice) Path(t time.Time, name string) string {
	return filepath.Join(d.config.RecordingsDir, fmt.Sprintf("%s %s.wav", t.Format("2006-01-02 150405"), sanitize(name)))
}

// Start launches ffmpeg. The returned handle stops it by sending "q" on
// stdin so the WAV header is finalized.
func (d *FFmpegDevice) Start(name string, onComplete func([]float32, error)) (Handle, error) {
	path := d.Path(d.now(), name)
	args := []string{
		"-loglevel", "error", // Minimal logging
		"-f", d.config.InputFormat, // Capture backend
		"-i", d.config.InputDevice, // Input device
		"-ac", "1", // Mono
		"-ar", fmt.Sprintf("%d", d.config.SampleRate), // Sample rate
		"-acodec", "pcm_s16le", // Audio codec
		"-y",
		path,
	}

	cmd := exec.Command(d.config.FFmpegPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	d.logger.Info("Recording to file",
		logger.String("path", path),
		logger.String("input", d.config.InputFormat+" "+d.config.InputDevice))

	h := &ffmpegHandle{
		stdin:   stdin,
		cmd:     cmd,
		timeout: d.config.StopTimeout,
		exited:  make(chan struct{}),
		logger:  d.logger,
	}
	go func() {
		waitErr := cmd.Wait()
		close(h.exited)
		onComplete(d.finish(path, waitErr, h.wasStopped(), stderr.String()))
	}()
	return h, nil
}

// finish turns the ffmpeg exit into samples. A stop request makes a non-zero
// exit acceptable as long as a readable file was produced.
func (d *FFmpegDevice) finish(path string, waitErr error, stopped bool, stderr string) ([]float32, error) {
	if waitErr != nil && !stopped {
		return nil, fmt.Errorf("ffmpeg exited: %w: %s", waitErr, strings.TrimSpace(stderr))
	}

	clip, err := audio.ReadWAVFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, audio.ErrInvalidWAV) {
			return nil, fmt.Errorf("no recording produced: %w", err)
		}
		return nil, err
	}

	d.logger.Info("Recording finished",
		logger.String("path", path),
		logger.Duration("audio", audio.Duration(len(clip.Samples), clip.SampleRate)))
	return clip.Samples, nil
}

type ffmpegHandle struct {
	stdin   io.WriteCloser
	cmd     *exec.Cmd
	timeout time.Duration
	exited  chan struct{}
	logger  *logger.Logger

	mu      sync.Mutex
	stopped bool
}

func (h *ffmpegHandle) wasStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Stop asks ffmpeg to quit and kills it if it does not within the timeout
func (h *ffmpegHandle) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	if _, err := io.WriteString(h.stdin, "q"); err != nil {
		h.logger.Debug("ffmpeg stdin already closed", logger.Error(err))
	}
	_ = h.stdin.Close()

	go func() {
		select {
		case <-h.exited:
		case <-time.After(h.timeout):
			h.logger.Warn("ffmpeg did not exit after stop, killing")
			_ = h.cmd.Process.Kill()
		}
	}()
}

func sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "recording"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, name)
}
