package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Event names emitted on the live stream
const (
	EventConnected         = "connected"
	EventPing              = "ping"
	EventNotification      = "notification"
	EventNotificationCount = "notification_count"
	EventPresenceUpdate    = "presence_update"
	EventUnreadCount       = "messenger_unread_count"
)

var (
	ErrSinkClosed = errors.New("sink closed")
	ErrSinkFull   = errors.New("sink buffer full")
)

// Event is one named frame pushed to a connection.
// Data is marshalled once and shared by every sink of a fan-out.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// NewEvent marshals payload into an Event
func NewEvent(name string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s event: %w", name, err)
	}
	return Event{Name: name, Data: data}, nil
}

// Sink is a destination able to receive pushed events.
// Push must not block: it either hands the event over or returns an error,
// in which case the registry treats the connection as dead.
// Close is the cancellation hook, it must be safe to call more than once.
type Sink interface {
	Push(ev Event) error
	Close()
}

// WriteFrame writes ev in text/event-stream framing
func WriteFrame(w io.Writer, ev Event) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
	return err
}

type connectedPayload struct {
	Status       string `json:"status"`
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
	Timestamp    int64  `json:"timestamp"`
}

type pingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

func connectedEvent(userID, connectionID string, at time.Time) Event {
	ev, _ := NewEvent(EventConnected, connectedPayload{
		Status:       "connected",
		UserID:       userID,
		ConnectionID: connectionID,
		Timestamp:    at.UnixMilli(),
	})
	return ev
}

func pingEvent(at time.Time) Event {
	ev, _ := NewEvent(EventPing, pingPayload{Timestamp: at.UnixMilli()})
	return ev
}
