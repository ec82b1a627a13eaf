package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/google/uuid"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// Websocket message types emitted by the notification center
const (
	MessageTypePosted    = "notification_posted"
	MessageTypeRetracted = "notification_retracted"
)

// Notifier posts and retracts user-facing alerts
type Notifier interface {
	Post(title, body string) string
	Retract(id string)
}

// Publisher fans messages out to connected clients
type Publisher interface {
	Publish(messageType string, data map[string]any)
}

// Notification is an alert that has been posted and not yet retracted
type Notification struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	PostedAt time.Time `json:"posted_at"`
}

// Config controls how alerts are delivered
type Config struct {
	Desktop bool   // show OS notifications through beeep
	AppName string // prefixed to desktop notification titles
}

// Center delivers alerts to the desktop and to websocket clients, and keeps
// the set of outstanding alerts so they can be listed and retracted
type Center struct {
	mu        sync.Mutex
	active    map[string]Notification
	config    Config
	publisher Publisher
	desktop   func(title, body string) error
	now       func() time.Time
	logger    *logger.Logger
}

// NewCenter creates a notification center. publisher may be nil.
func NewCenter(cfg Config, publisher Publisher, log *logger.Logger) *Center {
	return &Center{
		active:    make(map[string]Notification),
		config:    cfg,
		publisher: publisher,
		desktop: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
		now:    time.Now,
		logger: log.Named("notify"),
	}
}

// Post records and delivers an alert, returning its id
func (c *Center) Post(title, body string) string {
	n := Notification{
		ID:       uuid.NewString(),
		Title:    title,
		Body:     body,
		PostedAt: c.now(),
	}

	c.mu.Lock()
	c.active[n.ID] = n
	c.mu.Unlock()

	c.logger.Info("Notification posted",
		logger.String("id", n.ID),
		logger.String("title", title))

	if c.config.Desktop {
		desktopTitle := title
		if c.config.AppName != "" {
			desktopTitle = c.config.AppName + ": " + title
		}
		// beeep hands off to the OS and may block briefly on dbus
		go func() {
			if err := c.desktop(desktopTitle, body); err != nil {
				c.logger.Warn("Desktop notification failed", logger.Error(err))
			}
		}()
	}

	if c.publisher != nil {
		c.publisher.Publish(MessageTypePosted, map[string]any{
			"id":        n.ID,
			"title":     n.Title,
			"body":      n.Body,
			"timestamp": n.PostedAt,
		})
	}
	return n.ID
}

// Retract withdraws an alert. Unknown or empty ids are ignored. Desktop
// notifications cannot be withdrawn once shown; clients are told to drop it.
func (c *Center) Retract(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	_, ok := c.active[id]
	delete(c.active, id)
	c.mu.Unlock()
	if !ok {
		return
	}

	c.logger.Debug("Notification retracted", logger.String("id", id))
	if c.publisher != nil {
		c.publisher.Publish(MessageTypeRetracted, map[string]any{"id": id})
	}
}

// Active lists outstanding alerts, oldest first
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, 0, len(c.active))
	for _, n := range c.active {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostedAt.Before(out[j].PostedAt) })
	return out
}
