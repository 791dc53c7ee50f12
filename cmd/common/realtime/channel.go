// Package realtime maintains the push connection to the room server and the
// periodic poll that backstops it when push messages get lost.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrChannelClosed reports that the push connection was lost. There is no
// automatic reconnect; the caller decides whether to dial again.
var ErrChannelClosed = errors.New("push channel closed")

// Handler receives remote-control commands from the room server. Commands are
// dispatched one at a time, strictly in arrival order, from the read loop.
type Handler interface {
	Next()
	Previous()
	// TogglePause handles the "pause" command, which toggles rather than
	// unconditionally pausing: an already-paused player resumes.
	TogglePause()
	ToggleShuffle()
	SetVolume(value float64)
	// ReportNow handles the "now" command, reserved for reporting the current
	// track back to the server. Not implemented server-side yet.
	ReportNow()
	Notify(message string)
}

// State of the push connection.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateReceiving  State = "receiving"
	StateClosed     State = "closed"
)

// command is the wire shape of a push message: a type discriminator plus
// type-specific fields.
type command struct {
	Type    string   `json:"type"`
	Value   *float64 `json:"value,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Channel is a client for the room's push connection.
type Channel struct {
	url     string
	handler Handler

	// OnOpen fires after a successful handshake, OnClosed once on any
	// disconnect not caused by the caller's context. Both optional.
	OnOpen   func()
	OnClosed func(err error)

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewChannel prepares a channel for the given websocket URL. Nothing is
// dialed until Run.
func NewChannel(url string, handler Handler) *Channel {
	return &Channel{
		url:     url,
		handler: handler,
		state:   StateConnecting,
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run dials the server and reads commands until the connection drops or ctx
// is cancelled. It blocks; run it in its own goroutine. On disconnect it
// reports ErrChannelClosed and does not reconnect.
func (c *Channel) Run(ctx context.Context) error {
	c.setState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(StateClosed)
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	if c.OnOpen != nil {
		c.OnOpen()
	}
	slog.Debug("push channel open", "url", c.url)

	// ReadMessage has no context support; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.setState(StateReceiving)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.setState(StateClosed)
			conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("push channel lost", "error", err)
			if c.OnClosed != nil {
				c.OnClosed(err)
			}
			return fmt.Errorf("%w: %v", ErrChannelClosed, err)
		}
		c.dispatch(data)
	}
}

// dispatch decodes one inbound message and calls the matching handler method.
// Unknown types are ignored without error.
func (c *Channel) dispatch(data []byte) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		slog.Warn("discarding malformed push message", "error", err)
		return
	}

	switch cmd.Type {
	case "next":
		c.handler.Next()
	case "prev":
		c.handler.Previous()
	case "pause":
		c.handler.TogglePause()
	case "shuffle":
		c.handler.ToggleShuffle()
	case "volume":
		if cmd.Value != nil {
			c.handler.SetVolume(*cmd.Value)
		}
	case "now":
		c.handler.ReportNow()
	case "notification":
		c.handler.Notify(cmd.Message)
	default:
		slog.Debug("ignoring unknown push command", "type", cmd.Type)
	}
}

// SendNotification broadcasts a plain message to the other listeners in the
// room. Best-effort: fails when the channel is not connected.
func (c *Channel) SendNotification(message string) error {
	return c.send(command{Type: "notification", Message: message})
}

func (c *Channel) send(cmd command) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if conn == nil || state == StateClosed || state == StateConnecting {
		return ErrChannelClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Type, err)
	}
	return nil
}
