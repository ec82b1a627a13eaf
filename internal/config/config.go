package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/yegors/class-transcribe/internal/meeting"
	"github.com/yegors/class-transcribe/internal/transcription"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server        ServerConfig         `toml:"server"`        // HTTP server settings
	Logging       LoggingConfig        `toml:"logging"`       // Application logging settings
	Storage       StorageConfig        `toml:"storage"`       // Data persistence settings
	Schedule      ScheduleConfig       `toml:"schedule"`      // Weekly class timetable and countdown settings
	Capture       CaptureConfig        `toml:"capture"`       // Microphone capture settings
	Transcription transcription.Config `toml:"transcription"` // Speech-to-text provider settings
	Notifications NotificationsConfig  `toml:"notifications"` // User-facing alert settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the API
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, recommended for websockets)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLitePath             string `toml:"sqlite_path"`              // Path of the job history and transcript archive database
	RecordingsDir          string `toml:"recordings_dir"`           // Where captured WAV files are kept
	TranscriptsDir         string `toml:"transcripts_dir"`          // Where WebVTT transcripts are written
	TranscriptFileTemplate string `toml:"transcript_file_template"` // text/template for transcript file names ({{.Date}}, {{.Time}}, {{.Title}}, {{.JobID}})
}

// ScheduleConfig contains the weekly timetable
type ScheduleConfig struct {
	Enabled               bool            `toml:"enabled"`                     // Start recordings automatically at scheduled meetings
	Timezone              string          `toml:"timezone"`                    // IANA zone the timetable is written in ("" or "Local" for the system zone)
	AutoStop              bool            `toml:"auto_stop"`                   // Stop scheduled recordings after the meeting's duration
	WakeCheckIntervalSecs int             `toml:"wake_check_interval_seconds"` // How often to look for a suspend/resume gap
	WakeToleranceSecs     int             `toml:"wake_tolerance_seconds"`      // Extra delay between checks treated as a suspend
	Meetings              []MeetingConfig `toml:"meetings"`                    // Recurring weekly meetings
}

// MeetingConfig is one [[schedule.meetings]] entry
type MeetingConfig struct {
	Title           string `toml:"title"`            // Course name, used for alerts and file names
	Weekday         string `toml:"weekday"`          // "monday" or "mon"
	Start           string `toml:"start"`            // 24-hour "HH:MM"
	DurationMinutes int    `toml:"duration_minutes"` // Length of the meeting; 0 disables auto-stop for it
}

// CaptureConfig contains microphone capture settings
type CaptureConfig struct {
	Backend     string `toml:"backend"`      // "ffmpeg" or "portaudio" (requires the portaudio build tag)
	FFmpegPath  string `toml:"ffmpeg_path"`  // Path to the ffmpeg binary
	InputFormat string `toml:"input_format"` // ffmpeg input format (avfoundation, dshow, pulse, alsa); empty picks the platform default
	InputDevice string `toml:"input_device"` // ffmpeg input device; empty picks the platform default
	SampleRate  int    `toml:"sample_rate"`  // Capture sample rate in Hz
	Channels    int    `toml:"channels"`     // Number of audio channels (only mono is supported)
}

// NotificationsConfig contains user-facing alert settings
type NotificationsConfig struct {
	Desktop bool   `toml:"desktop"`  // Show OS notifications
	AppName string `toml:"app_name"` // Prefix for desktop notification titles
}

// Capture backends
const (
	BackendFFmpeg    = "ffmpeg"
	BackendPortAudio = "portaudio"
)

// Default returns the configuration used for any field a file leaves unset
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:             8000,
			Host:             "127.0.0.1",
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 0,
			IdleTimeoutSecs:  120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			SQLitePath:             "data/class-transcribe.db",
			RecordingsDir:          "data/recordings",
			TranscriptsDir:         "data/transcripts",
			TranscriptFileTemplate: "{{.Date}} {{.Time}} {{.Title}}",
		},
		Schedule: ScheduleConfig{
			Enabled:               true,
			AutoStop:              true,
			WakeCheckIntervalSecs: 30,
			WakeToleranceSecs:     60,
		},
		Capture: CaptureConfig{
			Backend:    BackendFFmpeg,
			FFmpegPath: "ffmpeg",
			SampleRate: 16000,
			Channels:   1,
		},
		Transcription: transcription.DefaultConfig(),
		Notifications: NotificationsConfig{
			Desktop: true,
			AppName: "Class Transcribe",
		},
	}
}

// Load loads the configuration from the specified file path. Defaults are
// applied first so partial files work; environment overrides are applied last.
func Load(path string) (*Config, error) {
	config := Default()

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// LoadDotEnv loads KEY=value files into the process environment. Missing
// files are skipped; variables already set are kept.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	switch c.Transcription.Provider {
	case transcription.ProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.Transcription.APIKey = key
		}
	case transcription.ProviderOpenAI:
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.Transcription.APIKey = key
		}
	}
	if key := os.Getenv("CLASSTRANSCRIBE_API_KEY"); key != "" {
		c.Transcription.APIKey = key
	}
	if level := os.Getenv("CLASSTRANSCRIBE_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	if c.Storage.SQLitePath == "" || c.Storage.RecordingsDir == "" || c.Storage.TranscriptsDir == "" {
		return fmt.Errorf("storage sqlite_path, recordings_dir and transcripts_dir are required")
	}

	switch c.Capture.Backend {
	case BackendFFmpeg, BackendPortAudio:
	default:
		return fmt.Errorf("invalid capture backend: %q", c.Capture.Backend)
	}
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("invalid capture sample_rate: %d", c.Capture.SampleRate)
	}
	if c.Capture.Channels != 1 {
		return fmt.Errorf("capture channels must be 1, got %d", c.Capture.Channels)
	}

	if c.Schedule.WakeCheckIntervalSecs <= 0 {
		return fmt.Errorf("wake_check_interval_seconds must be greater than 0: %d", c.Schedule.WakeCheckIntervalSecs)
	}
	if c.Schedule.WakeToleranceSecs < 0 {
		return fmt.Errorf("wake_tolerance_seconds must not be negative: %d", c.Schedule.WakeToleranceSecs)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Meetings(); err != nil {
		return err
	}

	if err := c.Transcription.Validate(); err != nil {
		return err
	}
	return nil
}

// Location returns the time zone the timetable is written in
func (c *Config) Location() (*time.Location, error) {
	switch c.Schedule.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

// Meetings converts the configured timetable into weekly slots
func (c *Config) Meetings() ([]meeting.Slot, error) {
	slots := make([]meeting.Slot, 0, len(c.Schedule.Meetings))
	for i, m := range c.Schedule.Meetings {
		slot, err := m.Slot()
		if err != nil {
			return nil, fmt.Errorf("schedule.meetings[%d]: %w", i, err)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// Slot parses the entry
func (m MeetingConfig) Slot() (meeting.Slot, error) {
	day, err := meeting.ParseWeekday(m.Weekday)
	if err != nil {
		return meeting.Slot{}, err
	}
	hour, minute, err := meeting.ParseClock(m.Start)
	if err != nil {
		return meeting.Slot{}, err
	}
	slot := meeting.Slot{
		Title:           m.Title,
		Weekday:         day,
		Hour:            hour,
		Minute:          minute,
		DurationMinutes: m.DurationMinutes,
	}
	return slot, slot.Validate()
}

// WakeCheckInterval returns the wake detector's tick interval
func (c *Config) WakeCheckInterval() time.Duration {
	return time.Duration(c.Schedule.WakeCheckIntervalSecs) * time.Second
}

// WakeTolerance returns the extra delay treated as a suspend
func (c *Config) WakeTolerance() time.Duration {
	return time.Duration(c.Schedule.WakeToleranceSecs) * time.Second
}

// Addr returns the HTTP listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
