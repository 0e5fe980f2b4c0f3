package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const sseBufferSize = 64 // events queued per stream before the connection counts as stuck

// SSESink queues events for one text/event-stream response.
// The gin handler owning the response drains Events() and writes the frames.
type SSESink struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewSSESink creates a sink with a bounded queue
func NewSSESink(buffer int) *SSESink {
	return &SSESink{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Push enqueues ev without blocking. A full queue means the writer is stuck
// on a dead peer, the registry evicts the connection on that error.
func (s *SSESink) Push(ev Event) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.events <- ev:
		return nil
	default:
		return ErrSinkFull
	}
}

// Close ends the stream, safe to call more than once
func (s *SSESink) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Events is the queue drained by the response writer
func (s *SSESink) Events() <-chan Event {
	return s.events
}

// Done is closed once the sink has been closed
func (s *SSESink) Done() <-chan struct{} {
	return s.done
}

// ConnectHook runs right after a connection has been registered, e.g. to
// replay the unread count. It must not block for long.
type ConnectHook func(ctx context.Context, userID string)

// StreamHandler serves the live notification stream for the authenticated user
func StreamHandler(registry *Registry, onConnect ConnectHook) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no") // disable proxy buffering (nginx)
		c.Status(http.StatusOK)

		sink := NewSSESink(sseBufferSize)
		connID := registry.AddConnection(userID, sink)
		defer registry.RemoveConnection(connID)

		// connected goes straight to the writer, before anything queued by the hook
		if err := WriteFrame(c.Writer, connectedEvent(userID, connID, time.Now())); err != nil {
			return
		}
		c.Writer.Flush()

		if onConnect != nil {
			onConnect(c.Request.Context(), userID)
		}

		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sink.Done():
				return
			case ev := <-sink.Events():
				if err := WriteFrame(c.Writer, ev); err != nil {
					return
				}
				c.Writer.Flush()
			}
		}
	}
}

// StatsHandler exposes registry stats
func StatsHandler(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, registry.Stats())
	}
}
