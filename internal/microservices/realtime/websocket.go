package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer => no pong = no connection
	PingPeriod     = (PongWait * 9) / 10 // 90% of pong wait, leaves room for network jitter
	MaxMessageSize = 512                 // maximum message size allowed from peer
)

// client -> server message types
const (
	ClientPresenceJoin  = "presence_join"
	ClientPresenceLeave = "presence_leave"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin checks happen in the CORS layer in front of us
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PresenceController receives presence changes sent by websocket clients
type PresenceController interface {
	MarkPresent(ctx context.Context, conversationID, userID string) (bool, error)
	MarkAbsent(ctx context.Context, conversationID, userID string) (bool, error)
}

// ClientMessage is what a websocket client may send us
type ClientMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// WSSink adapts a websocket connection to the Sink contract.
// Frames are written by WritePump, Push only enqueues.
type WSSink struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

// NewWSSink wraps conn
func NewWSSink(conn *websocket.Conn) *WSSink {
	return &WSSink{
		conn: conn,
		send: make(chan Event, sseBufferSize),
		done: make(chan struct{}),
	}
}

// Push enqueues ev for the write pump
func (s *WSSink) Push(ev Event) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.send <- ev:
		return nil
	default:
		return ErrSinkFull
	}
}

// Close stops the pumps and closes the socket
func (s *WSSink) Close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// ReportsLiveness: websocket liveness comes from pongs, not from accepted pushes
func (s *WSSink) ReportsLiveness() bool {
	return true
}

// WritePump writes queued events and periodic pings until the sink closes
func (s *WSSink) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(WriteWait))
			return
		case ev := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := s.conn.WriteJSON(ev); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}

// WSHandler upgrades the request and registers the socket as a connection.
// Presence messages from the client are forwarded to presence (may be nil).
func WSHandler(registry *Registry, presence PresenceController, onConnect ConnectHook) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// upgrader already replied with an HTTP error
			slog.Warn("websocket_upgrade_failed", "user_id", userID, "error", err.Error())
			return
		}

		sink := NewWSSink(conn)
		connID := registry.AddConnection(userID, sink)
		go sink.WritePump()

		sink.Push(connectedEvent(userID, connID, time.Now()))
		// the request context dies with the hijacked connection, keep our own
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if onConnect != nil {
			onConnect(ctx, userID)
		}

		readPump(ctx, registry, presence, sink, connID, userID)
	}
}

// readPump handles pongs and client messages, it returns when the peer goes away
func readPump(ctx context.Context, registry *Registry, presence PresenceController, sink *WSSink, connID, userID string) {
	defer registry.RemoveConnection(connID)

	conn := sink.conn
	conn.SetReadLimit(MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(PongWait))
		registry.Touch(connID)
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket_read_error", "connection_id", connID, "error", err.Error())
			}
			return
		}
		registry.Touch(connID)

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid_json_received", "connection_id", connID, "error", err.Error())
			continue
		}
		handleClientMessage(ctx, presence, msg, connID, userID)
	}
}

func handleClientMessage(ctx context.Context, presence PresenceController, msg ClientMessage, connID, userID string) {
	switch msg.Type {
	case ClientPresenceJoin, ClientPresenceLeave:
		if presence == nil || msg.ConversationID == "" {
			return
		}
		var err error
		if msg.Type == ClientPresenceJoin {
			_, err = presence.MarkPresent(ctx, msg.ConversationID, userID)
		} else {
			_, err = presence.MarkAbsent(ctx, msg.ConversationID, userID)
		}
		if err != nil {
			slog.Warn("presence_update_failed",
				"connection_id", connID,
				"conversation_id", msg.ConversationID,
				"error", err.Error(),
			)
		}
	case "pong":
		// liveness already refreshed by the read
	default:
		slog.Debug("unknown_client_message", "connection_id", connID, "type", msg.Type)
	}
}
