package client

// http_client.go = REST calls of notifyctl against the notification API.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"conventionhub/internal/microservices/http-api/dto"
	"conventionhub/internal/microservices/http-api/models"
)

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Message)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func NewHTTPClient(apiURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

// ListOptions mirror the list endpoint's query parameters
type ListOptions struct {
	UnreadOnly bool
	Category   string
	Limit      int
	Offset     int
}

func (c *HTTPClient) ListNotifications(ctx context.Context, opts ListOptions) (*dto.NotificationListResponse, error) {
	q := url.Values{}
	if opts.UnreadOnly {
		q.Set("is_read", "false")
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	var out dto.NotificationListResponse
	if err := c.do(ctx, http.MethodGet, "/api/notifications", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil)
}

func (c *HTTPClient) MarkUnread(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/api/notifications/"+url.PathEscape(id)+"/unread", nil, nil, nil)
}

func (c *HTTPClient) MarkAllRead(ctx context.Context, category string) (int64, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	var out dto.MarkAllReadResponse
	if err := c.do(ctx, http.MethodPatch, "/api/notifications/read-all", q, nil, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

func (c *HTTPClient) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTPClient) Stats(ctx context.Context) (*models.NotificationStats, error) {
	var out models.NotificationStats
	if err := c.do(ctx, http.MethodGet, "/api/notifications/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UnreadCount(ctx context.Context) (int64, error) {
	var out dto.UnreadCountResponse
	if err := c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

func (c *HTTPClient) MessengerUnread(ctx context.Context) (*models.UnreadCount, error) {
	var out models.UnreadCount
	if err := c.do(ctx, http.MethodGet, "/api/messenger/unread-count", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetPreferences(ctx context.Context) (*dto.PreferencesResponse, error) {
	var out dto.PreferencesResponse
	if err := c.do(ctx, http.MethodGet, "/api/notification-preferences", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdatePreferences(ctx context.Context, req dto.UpdatePreferencesRequest) (*dto.PreferencesResponse, error) {
	var out dto.PreferencesResponse
	if err := c.do(ctx, http.MethodPut, "/api/notification-preferences", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) JoinPresence(ctx context.Context, conversationID string) (*dto.PresenceResponse, error) {
	return c.presence(ctx, http.MethodPost, conversationID)
}

func (c *HTTPClient) LeavePresence(ctx context.Context, conversationID string) (*dto.PresenceResponse, error) {
	return c.presence(ctx, http.MethodDelete, conversationID)
}

func (c *HTTPClient) PresentUsers(ctx context.Context, conversationID string) (*dto.PresenceResponse, error) {
	return c.presence(ctx, http.MethodGet, conversationID)
}

func (c *HTTPClient) presence(ctx context.Context, method, conversationID string) (*dto.PresenceResponse, error) {
	var out dto.PresenceResponse
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/presence"
	if err := c.do(ctx, method, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends body as JSON and decodes a JSON answer into out when both are set
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close() // Ensure the response body is closed

	if response.StatusCode < 200 || response.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(response.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = response.Status
		}
		return &APIError{Status: response.StatusCode, Message: payload.Error}
	}

	if out == nil || response.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
