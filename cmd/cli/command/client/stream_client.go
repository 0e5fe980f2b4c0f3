package client

// stream_client.go = reads the live notification stream (SSE).

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// StreamEvent is one frame of the live stream, SSE or websocket
type StreamEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// Listen opens the SSE stream and calls fn for each event until ctx ends
// or the server closes the stream
func (c *HTTPClient) Listen(ctx context.Context, fn func(StreamEvent) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/notifications/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// the default client timeout would cut the stream
	streaming := &http.Client{Transport: c.httpClient.Transport}
	response, err := streaming.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return &APIError{Status: response.StatusCode, Message: response.Status}
	}
	err = ReadSSE(response.Body, fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ReadSSE parses text/event-stream framing. Comment lines and unknown
// fields are ignored; multi-line data is joined with newlines.
func ReadSSE(r io.Reader, fn func(StreamEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var name string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				ev := StreamEvent{Name: name, Data: json.RawMessage(strings.Join(data, "\n"))}
				if ev.Name == "" {
					ev.Name = "message"
				}
				if err := fn(ev); err != nil {
					return err
				}
			}
			name, data = "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}
