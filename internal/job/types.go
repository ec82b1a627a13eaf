package job

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/yegors/class-transcribe/internal/meeting"
)

// Kind distinguishes live recordings from imported files
type Kind int

const (
	KindRecording Kind = iota
	KindTranscribeOnly
)

func (k Kind) String() string {
	switch k {
	case KindRecording:
		return "recording"
	case KindTranscribeOnly:
		return "transcribe_only"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// State is the lifecycle stage of a job. Lower values dominate the status
// display; Complete and Failed are terminal.
type State int

const (
	StateRecording State = iota
	StateTranscribing
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Snapshot is a read-only copy of a job's state
type Snapshot struct {
	ID                    string           `json:"id"`
	Kind                  Kind             `json:"kind"`
	State                 State            `json:"state"`
	Seq                   uint64           `json:"seq"`
	Meeting               *meeting.Meeting `json:"meeting,omitempty"`
	Name                  string           `json:"name,omitempty"`
	Progress              float64          `json:"progress"`
	HasProgress           bool             `json:"has_progress"`
	Error                 *ErrorInfo       `json:"error,omitempty"`
	PendingNotificationID string           `json:"pending_notification_id,omitempty"`
	SourcePath            string           `json:"source_path,omitempty"`
	TranscriptPath        string           `json:"transcript_path,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Title names what the job is working on
func (s Snapshot) Title() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Meeting != nil && s.Meeting.Title != "":
		return s.Meeting.Title
	case s.SourcePath != "":
		return strings.TrimSuffix(filepath.Base(s.SourcePath), filepath.Ext(s.SourcePath))
	case s.Kind == KindRecording:
		return "Manual recording"
	default:
		return "Transcription"
	}
}

// PercentageText renders progress for the status line
func (s Snapshot) PercentageText() string {
	if s.State != StateTranscribing || !s.HasProgress {
		return "..."
	}
	return fmt.Sprintf("%d%%", int(s.Progress*100+0.5))
}
