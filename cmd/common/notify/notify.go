// Package notify collects transient user-facing banners. It is purely
// cosmetic: nothing in here may affect another component's control flow.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// Kind styles a banner.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// DefaultTTL is how long a transient banner stays up.
const DefaultTTL = 3 * time.Second

// Banner is one visible notification. Urgent banners never expire on their
// own; they stay until explicitly dismissed.
type Banner struct {
	ID      int
	Message string
	Kind    Kind
	Urgent  bool
}

// Center owns the active banner stack. Concurrent Show calls stack; there is
// no deduplication.
type Center struct {
	// OnChange fires with the full banner stack after every mutation.
	// Optional. Called without internal locks held.
	OnChange func(banners []Banner)

	// TTL overrides the transient banner lifetime. DefaultTTL when zero.
	TTL time.Duration

	// Desktop additionally sends urgent banners to the OS notification
	// daemon, best-effort.
	Desktop bool

	mu      sync.Mutex
	nextID  int
	banners []Banner
	timers  map[int]*time.Timer
	closed  bool
}

// NewCenter returns an empty notification center.
func NewCenter() *Center {
	return &Center{timers: map[int]*time.Timer{}}
}

// Show enqueues a transient banner, auto-removed after the TTL.
func (c *Center) Show(message string, kind Kind) {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	id := c.addLocked(Banner{Message: message, Kind: kind})
	c.timers[id] = time.AfterFunc(ttl, func() { c.Dismiss(id) })
	c.mu.Unlock()

	c.changed()
}

// ShowUrgent enqueues a persistent banner that stays until dismissed, for
// failures the user must not miss (e.g. losing the push channel). With
// Desktop enabled it also raises an OS notification.
func (c *Center) ShowUrgent(message string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.addLocked(Banner{Message: message, Kind: KindError, Urgent: true})
	desktop := c.Desktop
	c.mu.Unlock()

	c.changed()

	if desktop {
		if err := beeep.Alert("auxroom", message, ""); err != nil {
			slog.Debug("desktop notification failed", "error", err)
		}
	}
}

func (c *Center) addLocked(b Banner) int {
	c.nextID++
	b.ID = c.nextID
	c.banners = append(c.banners, b)
	return b.ID
}

// Dismiss removes a banner by id. Unknown ids are a no-op.
func (c *Center) Dismiss(id int) {
	c.mu.Lock()
	if t := c.timers[id]; t != nil {
		t.Stop()
		delete(c.timers, id)
	}
	removed := false
	for i, b := range c.banners {
		if b.ID == id {
			c.banners = append(c.banners[:i], c.banners[i+1:]...)
			removed = true
			break
		}
	}
	c.mu.Unlock()

	if removed {
		c.changed()
	}
}

// Banners returns a copy of the visible banner stack, oldest first.
func (c *Center) Banners() []Banner {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Banner(nil), c.banners...)
}

// Close stops all pending expiry timers and drops further banners.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Center) changed() {
	if c.OnChange != nil {
		c.OnChange(c.Banners())
	}
}
