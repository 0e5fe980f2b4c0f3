package client

// ws_client.go = websocket variant of the live stream, which also lets the
// CLI announce presence in conversations.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
)

// wsURL turns the API base URL into the websocket endpoint
func wsURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid API URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/notifications/ws"
	return u.String(), nil
}

// ListenWS connects over websocket, joins the given conversations and calls
// fn for each event until ctx ends. Presence is left on the way out.
func (c *HTTPClient) ListenWS(ctx context.Context, conversations []string, fn func(StreamEvent) error) error {
	endpoint, err := wsURL(c.baseURL)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Add("Authorization", "Bearer "+c.token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	for _, conv := range conversations {
		if err := conn.WriteJSON(map[string]string{"type": "presence_join", "conversation_id": conv}); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		for {
			var ev StreamEvent
			if err := conn.ReadJSON(&ev); err != nil {
				errCh <- err
				return
			}
			if err := fn(ev); err != nil {
				errCh <- err
				return
			}
		}
	}()

	select {
	case err := <-errCh:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	for _, conv := range conversations {
		conn.WriteJSON(map[string]string{"type": "presence_leave", "conversation_id": conv})
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return nil
}

// PrintEvent renders one stream event for the terminal
func PrintEvent(ev StreamEvent) error {
	switch ev.Name {
	case "connected":
		color.Green("✅ connected")
	case "ping":
		// keep quiet
	case "notification":
		var n struct {
			ID       string `json:"id"`
			Kind     string `json:"type"`
			Category string `json:"category"`
			Title    string `json:"title"`
			Message  string `json:"message"`
		}
		if err := decode(ev, &n); err != nil {
			return err
		}
		kindColor(n.Kind).Printf("🔔 [%s] %s\n", n.Kind, n.Title)
		fmt.Printf("   %s\n", n.Message)
		color.HiBlack("   id=%s category=%s", n.ID, n.Category)
	case "notification_count":
		var p struct {
			UnreadCount int64 `json:"unreadCount"`
		}
		if err := decode(ev, &p); err != nil {
			return err
		}
		color.Cyan("📬 %d unread notifications", p.UnreadCount)
	case "messenger_unread_count":
		var p struct {
			UnreadCount       int `json:"unreadCount"`
			ConversationCount int `json:"conversationCount"`
		}
		if err := decode(ev, &p); err != nil {
			return err
		}
		color.Cyan("💬 %d unread messages in %d conversations", p.UnreadCount, p.ConversationCount)
	case "presence_update":
		var p struct {
			ConversationID string   `json:"conversationId"`
			UserID         string   `json:"userId"`
			Status         string   `json:"status"`
			PresentUsers   []string `json:"presentUsers"`
		}
		if err := decode(ev, &p); err != nil {
			return err
		}
		color.Magenta("👥 %s %s %s (present: %s)", p.UserID, p.Status, p.ConversationID, strings.Join(p.PresentUsers, ", "))
	default:
		color.HiBlack("%s %s", ev.Name, string(ev.Data))
	}
	return nil
}

func kindColor(kind string) *color.Color {
	switch kind {
	case "SUCCESS":
		return color.New(color.FgGreen, color.Bold)
	case "WARNING":
		return color.New(color.FgYellow, color.Bold)
	case "ERROR":
		return color.New(color.FgRed, color.Bold)
	case "SYSTEM":
		return color.New(color.FgMagenta, color.Bold)
	default:
		return color.New(color.FgBlue, color.Bold)
	}
}

func decode(ev StreamEvent, v any) error {
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return fmt.Errorf("bad %s payload: %w", ev.Name, err)
	}
	return nil
}
