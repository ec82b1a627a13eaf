package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/class-transcribe/internal/api"
	"github.com/yegors/class-transcribe/internal/audio"
	"github.com/yegors/class-transcribe/internal/capture"
	"github.com/yegors/class-transcribe/internal/clock"
	"github.com/yegors/class-transcribe/internal/config"
	"github.com/yegors/class-transcribe/internal/control"
	"github.com/yegors/class-transcribe/internal/countdown"
	"github.com/yegors/class-transcribe/internal/eventloop"
	"github.com/yegors/class-transcribe/internal/meeting"
	"github.com/yegors/class-transcribe/internal/notify"
	"github.com/yegors/class-transcribe/internal/status"
	"github.com/yegors/class-transcribe/internal/storage/sqlite"
	"github.com/yegors/class-transcribe/internal/templating"
	"github.com/yegors/class-transcribe/internal/transcription"
	"github.com/yegors/class-transcribe/internal/websocket"
	"github.com/yegors/class-transcribe/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	envPath := flag.String("env", ".env", "Path to a dotenv file with API keys (skipped when missing)")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading environment: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Class Transcribe server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.String("provider", cfg.Transcription.Provider))

	if err := run(cfg, log); err != nil {
		log.Error("Server failed", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Server fully stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	db, err := sqlite.Open(cfg.Storage.SQLitePath, log)
	if err != nil {
		return err
	}
	defer db.Close()

	jobStorage, err := sqlite.NewJobStorage(db, log)
	if err != nil {
		return fmt.Errorf("failed to create job storage: %w", err)
	}
	transcriptStorage, err := sqlite.NewTranscriptStorage(db, log)
	if err != nil {
		return fmt.Errorf("failed to create transcript storage: %w", err)
	}

	// Websocket fan-out
	wsServer := websocket.NewServer(log)
	go wsServer.Run(ctx)

	// Schedule
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	slots, err := cfg.Meetings()
	if err != nil {
		return err
	}
	weekly, err := meeting.NewWeekly(loc, cfg.Schedule.Enabled, slots)
	if err != nil {
		return fmt.Errorf("failed to build schedule: %w", err)
	}

	center := notify.NewCenter(notify.Config{
		Desktop: cfg.Notifications.Desktop,
		AppName: cfg.Notifications.AppName,
	}, wsServer, log)
	board := status.NewBoard(wsServer, log)

	loop := eventloop.New(256, log)
	go loop.Run(ctx)

	scheduler := countdown.NewScheduler(clock.Real{}, loop.Post, weekly, center, log)

	// Capture
	device, closeDevice, err := newCaptureDevice(cfg, log)
	if err != nil {
		return err
	}
	defer closeDevice()

	// Transcription
	templates := templating.NewEngine(log)
	if err := transcription.RegisterPrompt(templates, cfg.Transcription); err != nil {
		return fmt.Errorf("failed to load transcription prompt: %w", err)
	}
	if err := templates.Parse(templating.TranscriptFileName, cfg.Storage.TranscriptFileTemplate); err != nil {
		return fmt.Errorf("failed to parse transcript file template: %w", err)
	}

	backend, err := transcription.NewBackend(ctx, cfg.Transcription, templates, log)
	if err != nil {
		return fmt.Errorf("failed to create transcription backend: %w", err)
	}
	converter := audio.NewConverter(audio.ConverterConfig{
		FFmpegPath: cfg.Capture.FFmpegPath,
		SampleRate: cfg.Capture.SampleRate,
	}, log)
	runner := transcription.NewRunner(backend, converter, cfg.Transcription, log)
	sink := transcription.NewFileSink(cfg.Storage.TranscriptsDir, templates, transcriptStorage, log)

	journal := control.NewAsyncJournal(jobStorage, 256, log)
	if err := journal.Start(); err != nil {
		return fmt.Errorf("failed to start job journal: %w", err)
	}

	coord := control.NewCoordinator(control.Config{
		AutoStop:   cfg.Schedule.AutoStop,
		SampleRate: cfg.Capture.SampleRate,
	}, control.Deps{
		Clock:       clock.Real{},
		Poster:      loop,
		Scheduler:   scheduler,
		Source:      weekly,
		Status:      board,
		Notifier:    center,
		Capture:     device,
		Engine:      runner,
		Destination: sink,
		Journal:     journal,
		Publisher:   wsServer,
		Logger:      log,
	})
	scheduler.SetListener(coord)
	loop.Post(coord.Start)

	wake := countdown.NewWakeDetector(cfg.WakeCheckInterval(), cfg.WakeTolerance(), func(gap time.Duration) {
		log.Info("Detected suspend gap", logger.Duration("gap", gap))
		loop.Post(coord.Woke)
	}, log)
	if err := wake.Start(); err != nil {
		return fmt.Errorf("failed to start wake detector: %w", err)
	}

	// HTTP
	handler := api.NewHandler(api.Deps{
		Loop:        loop,
		Coordinator: coord,
		Schedule:    weekly,
		History:     jobStorage,
		Transcripts: transcriptStorage,
		WS:          wsServer,
		Logger:      log,
	})
	wsServer.SetMessageHandler(handler)
	router := api.NewRouter(handler, cfg.Server.CORSAllowedOrigins, log)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("Shutting down server...", logger.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server error", logger.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	wake.Stop()
	if err := loop.Call(shutdownCtx, coord.Shutdown); err != nil {
		log.Warn("Coordinator did not shut down cleanly", logger.Error(err))
	}

	log.Info("Waiting for transcriptions to finish...")
	runner.Wait()
	sink.Wait()

	cancel()
	<-loop.Done()

	if err := journal.Stop(); err != nil {
		log.Error("Failed to stop job journal", logger.Error(err))
	}
	return nil
}

// newCaptureDevice builds the configured microphone backend
func newCaptureDevice(cfg *config.Config, log *logger.Logger) (capture.Device, func() error, error) {
	switch cfg.Capture.Backend {
	case config.BackendPortAudio:
		d, err := capture.NewPortAudioDevice(capture.PortAudioConfig{
			SampleRate:    cfg.Capture.SampleRate,
			RecordingsDir: cfg.Storage.RecordingsDir,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open portaudio: %w", err)
		}
		return d, d.Close, nil
	default:
		d := capture.NewFFmpegDevice(capture.FFmpegConfig{
			FFmpegPath:    cfg.Capture.FFmpegPath,
			InputFormat:   cfg.Capture.InputFormat,
			InputDevice:   cfg.Capture.InputDevice,
			SampleRate:    cfg.Capture.SampleRate,
			RecordingsDir: cfg.Storage.RecordingsDir,
		}, log)
		return d, func() error { return nil }, nil
	}
}
