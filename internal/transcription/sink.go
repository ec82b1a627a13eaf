package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yegors/class-transcribe/internal/templating"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// Archive keeps a searchable copy of saved transcripts
type Archive interface {
	StoreTranscript(ctx context.Context, t Transcript, path, content string) (int64, error)
}

// FileSink writes transcripts as WebVTT files and archives their text
type FileSink struct {
	dir     string
	names   *templating.Engine
	archive Archive
	now     func() time.Time
	wg      sync.WaitGroup
	logger  *logger.Logger
}

// NewFileSink creates a new file sink. names must have the transcript file
// name template registered; archive may be nil.
func NewFileSink(dir string, names *templating.Engine, archive Archive, log *logger.Logger) *FileSink {
	return &FileSink{
		dir:     dir,
		names:   names,
		archive: archive,
		now:     time.Now,
		logger:  log.Named("transcripts"),
	}
}

// Save implements Destination
func (s *FileSink) Save(ctx context.Context, t Transcript, onDone func(path string, err error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		onDone(s.write(ctx, t))
	}()
}

// Wait blocks until pending writes have finished
func (s *FileSink) Wait() {
	s.wg.Wait()
}

func (s *FileSink) write(ctx context.Context, t Transcript) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create transcripts directory: %w", err)
	}

	created := t.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	name, err := s.names.Render(templating.TranscriptFileName, templating.NewFileNameData(t.Title, t.JobID, created))
	if err != nil {
		return "", err
	}

	path, err := createUnique(s.dir, cleanFileName(name), ".vtt", []byte(FormatVTT(t.Segments)))
	if err != nil {
		return "", err
	}
	s.logger.Info("Transcript written",
		logger.String("job_id", t.JobID),
		logger.String("path", path),
		logger.Int("segments", len(t.Segments)))

	if s.archive != nil {
		if _, err := s.archive.StoreTranscript(ctx, t, path, PlainText(t.Segments)); err != nil {
			s.logger.Warn("Failed to archive transcript",
				logger.String("job_id", t.JobID),
				logger.Error(err))
		}
	}
	return path, nil
}

// createUnique writes data to dir/base+ext, adding " (2)", " (3)", ... when
// the name is taken
func createUnique(dir, base, ext string, data []byte) (string, error) {
	for i := 1; ; i++ {
		name := base
		if i > 1 {
			name = fmt.Sprintf("%s (%d)", base, i)
		}
		path := filepath.Join(dir, name+ext)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create transcript file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write transcript file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close transcript file: %w", err)
		}
		return path, nil
	}
}

func cleanFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) || r < 0x20 {
			return '-'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		return "transcript"
	}
	return name
}
