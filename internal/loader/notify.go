package loader

import (
	"sync"

	"github.com/rs/zerolog"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a user-facing status message produced during a load.
type Notification struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

type Notifier interface {
	Notify(Notification)
}

// LogNotifier writes notifications to a zerolog logger. Destructive
// notifications are logged at warn level.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(msg Notification) {
	ev := n.Log.Info()
	if msg.Variant == VariantDestructive {
		ev = n.Log.Warn()
	}
	ev.Str("title", msg.Title).Str("description", msg.Description).Msg("notification")
}

// Collector keeps notifications in memory so they can be returned to a client.
type Collector struct {
	mu    sync.Mutex
	items []Notification
}

func (c *Collector) Notify(msg Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, msg)
}

func (c *Collector) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(msg Notification) {
	for _, n := range m {
		if n != nil {
			n.Notify(msg)
		}
	}
}
