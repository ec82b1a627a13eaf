package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/class-transcribe/internal/job"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// JobRecord is a job as it was last journaled
type JobRecord struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	State          string     `json:"state"`
	Title          string     `json:"title"`
	MeetingTitle   string     `json:"meeting_title,omitempty"`
	MeetingStart   *time.Time `json:"meeting_start,omitempty"`
	SourcePath     string     `json:"source_path,omitempty"`
	ErrorCode      string     `json:"error_code,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	TranscriptPath string     `json:"transcript_path,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// JobStorage keeps the history of every job the coordinator ran
type JobStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewJobStorage creates a new SQLite job storage
func NewJobStorage(db *sql.DB, log *logger.Logger) (*JobStorage, error) {
	s := &JobStorage{
		db:     db,
		logger: log.Named("storage-jobs"),
	}
	if err := s.initDB(); err != nil {
		return nil, err
	}
	return s, nil
}

// initDB initializes the database tables
func (s *JobStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			state TEXT NOT NULL,
			title TEXT NOT NULL,
			meeting_title TEXT,
			meeting_start TIMESTAMP,
			source_path TEXT,
			error_code TEXT,
			error_message TEXT,
			transcript_path TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}

	return nil
}

// UpsertJob records the latest state of a job
func (s *JobStorage) UpsertJob(ctx context.Context, snap job.Snapshot) error {
	var meetingTitle, meetingStart sql.NullString
	if snap.Meeting != nil {
		meetingTitle = sql.NullString{String: snap.Meeting.Title, Valid: true}
		meetingStart = sql.NullString{String: snap.Meeting.Start.UTC().Format(time.RFC3339), Valid: true}
	}
	var errorCode, errorMessage sql.NullString
	if snap.Error != nil {
		errorCode = sql.NullString{String: snap.Error.Code, Valid: true}
		errorMessage = sql.NullString{String: snap.Error.Message, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs
		(id, kind, state, title, meeting_title, meeting_start, source_path, error_code, error_message, transcript_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			title = excluded.title,
			error_code = excluded.error_code,
			error_message = excluded.error_message,
			transcript_path = excluded.transcript_path,
			updated_at = excluded.updated_at`,
		snap.ID,
		snap.Kind.String(),
		snap.State.String(),
		snap.Title(),
		meetingTitle,
		meetingStart,
		nullString(snap.SourcePath),
		errorCode,
		errorMessage,
		nullString(snap.TranscriptPath),
		snap.CreatedAt.UTC().Format(time.RFC3339),
		snap.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}
	return nil
}

const jobColumns = `id, kind, state, title, meeting_title, meeting_start, source_path, error_code, error_message, transcript_path, created_at, updated_at`

// GetJobs returns jobs newest first with pagination
func (s *JobStorage) GetJobs(ctx context.Context, limit, offset int) ([]*JobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+`
		FROM jobs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	records := []*JobRecord{}
	for rows.Next() {
		record, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return records, nil
}

// GetJob returns a single job
func (s *JobStorage) GetJob(ctx context.Context, id string) (*JobRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	record, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return record, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*JobRecord, error) {
	var record JobRecord
	var createdAt, updatedAt string
	var meetingTitle, meetingStart, sourcePath, errorCode, errorMessage, transcriptPath sql.NullString

	if err := row.Scan(
		&record.ID,
		&record.Kind,
		&record.State,
		&record.Title,
		&meetingTitle,
		&meetingStart,
		&sourcePath,
		&errorCode,
		&errorMessage,
		&transcriptPath,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	var err error
	if record.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if record.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if meetingStart.Valid {
		t, err := time.Parse(time.RFC3339, meetingStart.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse meeting_start: %w", err)
		}
		record.MeetingStart = &t
	}

	// Handle nullable fields
	record.MeetingTitle = meetingTitle.String
	record.SourcePath = sourcePath.String
	record.ErrorCode = errorCode.String
	record.ErrorMessage = errorMessage.String
	record.TranscriptPath = transcriptPath.String

	return &record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
