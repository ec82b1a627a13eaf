package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/class-transcribe/internal/transcription"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// TranscriptRecord represents an archived transcript
type TranscriptRecord struct {
	ID           int64     `json:"id"`
	JobID        string    `json:"job_id"`
	MeetingTitle string    `json:"meeting_title"`
	Path         string    `json:"path"`
	Content      string    `json:"text"`
	SegmentCount int       `json:"segment_count"`
	CreatedAt    time.Time `json:"timestamp"`
}

// TranscriptStorage handles storage of transcript records
type TranscriptStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTranscriptStorage creates a new SQLite transcript storage
func NewTranscriptStorage(db *sql.DB, log *logger.Logger) (*TranscriptStorage, error) {
	s := &TranscriptStorage{
		db:     db,
		logger: log.Named("storage-tx"),
	}
	if err := s.initDB(); err != nil {
		return nil, err
	}
	return s, nil
}

// initDB initializes the database tables
func (s *TranscriptStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			meeting_title TEXT NOT NULL,
			path TEXT NOT NULL,
			content TEXT NOT NULL,
			segment_count INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transcripts table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_transcripts_job_id ON transcripts(job_id)`)
	if err != nil {
		return fmt.Errorf("failed to create job_id index: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_transcripts_meeting_title ON transcripts(meeting_title)`)
	if err != nil {
		return fmt.Errorf("failed to create meeting_title index: %w", err)
	}

	return nil
}

// StoreTranscript archives a saved transcript
func (s *TranscriptStorage) StoreTranscript(ctx context.Context, t transcription.Transcript, path, content string) (int64, error) {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts
		(job_id, meeting_title, path, content, segment_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.JobID,
		t.Title,
		path,
		content,
		len(t.Segments),
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transcript: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	s.logger.Debug("Transcript archived",
		logger.Int64("id", id),
		logger.String("job_id", t.JobID))
	return id, nil
}

const transcriptColumns = `id, job_id, meeting_title, path, content, segment_count, created_at`

// GetTranscripts returns transcripts newest first with pagination. A
// non-empty meeting restricts the result to that meeting title.
func (s *TranscriptStorage) GetTranscripts(ctx context.Context, limit, offset int, meeting string) ([]*TranscriptRecord, error) {
	query := `SELECT ` + transcriptColumns + ` FROM transcripts`
	args := []any{}
	if meeting != "" {
		query += ` WHERE meeting_title = ?`
		args = append(args, meeting)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	records := []*TranscriptRecord{}
	for rows.Next() {
		record, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcripts: %w", err)
	}
	return records, nil
}

// GetTranscript returns a single transcript
func (s *TranscriptStorage) GetTranscript(ctx context.Context, id int64) (*TranscriptRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transcriptColumns+` FROM transcripts WHERE id = ?`, id)
	record, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return record, err
}

func scanTranscript(row scanner) (*TranscriptRecord, error) {
	var record TranscriptRecord
	var createdAt string
	if err := row.Scan(
		&record.ID,
		&record.JobID,
		&record.MeetingTitle,
		&record.Path,
		&record.Content,
		&record.SegmentCount,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transcript: %w", err)
	}

	var err error
	if record.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &record, nil
}
