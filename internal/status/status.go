package status

import (
	"sync"
	"time"

	"github.com/yegors/class-transcribe/pkg/logger"
)

// MessageTypeStatus is the websocket message carrying status changes
const MessageTypeStatus = "status"

// Tag is the coarse state shown to the user
type Tag string

const (
	TagIdle         Tag = "idle"
	TagWaiting      Tag = "waiting"
	TagRecording    Tag = "recording"
	TagTranscribing Tag = "transcribing"
)

// Label is one status line: state, progress text and what it applies to
type Label struct {
	Tag        Tag    `json:"state"`
	Percentage string `json:"percentage"`
	Operation  string `json:"operation"`
}

// Idle is the label shown when nothing is scheduled or running
var Idle = Label{Tag: TagIdle}

// Sink receives the status line
type Sink interface {
	SetStatus(label Label)
}

// Publisher fans messages out to connected clients
type Publisher interface {
	Publish(messageType string, data map[string]any)
}

// Board is a Sink that remembers the current label, logs changes and
// forwards them to websocket clients
type Board struct {
	mu        sync.RWMutex
	current   Label
	changedAt time.Time
	publisher Publisher
	logger    *logger.Logger
}

// NewBoard creates a status board. publisher may be nil.
func NewBoard(publisher Publisher, log *logger.Logger) *Board {
	return &Board{
		current:   Idle,
		changedAt: time.Now(),
		publisher: publisher,
		logger:    log.Named("status"),
	}
}

// SetStatus updates the label. Repeats of the current label are dropped.
func (b *Board) SetStatus(label Label) {
	b.mu.Lock()
	if label == b.current {
		b.mu.Unlock()
		return
	}
	previous := b.current
	b.current = label
	b.changedAt = time.Now()
	changedAt := b.changedAt
	b.mu.Unlock()

	if previous.Tag != label.Tag {
		b.logger.Info("Status changed",
			logger.String("state", string(label.Tag)),
			logger.String("operation", label.Operation))
	} else {
		b.logger.Debug("Status updated",
			logger.String("state", string(label.Tag)),
			logger.String("percentage", label.Percentage))
	}

	if b.publisher != nil {
		b.publisher.Publish(MessageTypeStatus, map[string]any{
			"state":      label.Tag,
			"percentage": label.Percentage,
			"operation":  label.Operation,
			"timestamp":  changedAt,
		})
	}
}

// Current returns the label last set and when it changed
func (b *Board) Current() (Label, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current, b.changedAt
}
