package handler

import (
    "context"
    "errors"
    "log/slog"
    "net/http"
    "time"

    "conventionhub/internal/microservices/http-api/dto"
    "conventionhub/internal/microservices/http-api/models"
    "conventionhub/internal/microservices/http-api/service"

    "github.com/gin-gonic/gin"
)

type NotificationHandler struct {
    svc service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
    return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
    rg.GET("", h.List)
    rg.GET("/unread-count", h.UnreadCount)
    rg.GET("/stats", h.Stats)
    rg.PATCH("/read-all", h.MarkAllAsRead)
    rg.PATCH("/:id/read", h.MarkAsRead)
    rg.PATCH("/:id/unread", h.MarkAsUnread)
    rg.DELETE("/:id", h.Delete)
}

// RegisterAdminRoutes mounts the fan-out endpoint, behind RequireAdmin
func (h *NotificationHandler) RegisterAdminRoutes(rg *gin.RouterGroup) {
    rg.POST("", h.Send)
}

// List returns the caller's notifications, newest first
func (h *NotificationHandler) List(c *gin.Context) {
    userID, ok := currentUser(c)
    if !ok {
        return
    }

    var q dto.ListNotificationsQuery
    if err := c.ShouldBindQuery(&q); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }

    ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
    defer cancel()

    filter := models.NotificationFilter{
        UserID:   userID,
        IsRead:   q.IsRead,
        Category: q.Category,
        Limit:    q.Limit,
        Offset:   q.Offset,
    }
    notifications, err := h.svc.GetForUser(ctx, filter)
    if err != nil {
        writeError(c, err)
        return
    }
    if notifications == nil {
        notifications = []models.Notification{}
    }

    c.JSON(http.StatusOK, dto.NotificationListResponse{
        Notifications: notifications,
        Limit:         q.Limit,
        Offset:        q.Offset,
    })
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
    userID, ok := currentUser(c)
    if !ok {
        return
    }

    ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
    defer cancel()

    count, err := h.svc.GetUnreadCount(ctx, userID, optionalQuery(c, "category"))
    if err != nil {
        writeError(c, err)
        return
    }
    c.JSON(http.StatusOK, dto.UnreadCountResponse{UnreadCount: count})
}

func (h *NotificationHandler) Stats(c *gin.Context) {
    userID, ok := currentUser(c)
    if !ok {
        return
    }

    ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
    defer cancel()

    stats, err := h.svc.GetStats(ctx, userID)
    if err != nil {
        writeError(c, err)
        return
    }
    c.JSON(http.StatusOK, stats)
}

// MarkAsRead marks a specific notification as read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
    h.setRead(c, h.svc.MarkAsRead)
}

func (h *NotificationHandler) MarkAsUnread(c *gin.Context) {
    h.setRead(c, h.svc.MarkAsUnread)
}

func (h *NotificationHandler) setRead(c *gin.Context, op func(ctx context.Context, id, userID string) error) {
    userID, ok := currentUser(c)
    if !ok {
        return
    }

    ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
    defer cancel()

    if err := op(ctx, c.Param("id"), userID); err != nil {
        writeError(c, err)
        return
    }
    c.Status(http.StatusNoContent)
}

// MarkAllAsRead marks all notifications as read for the user, optionally one category
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
    userID, ok := currentUser(c)
    if !ok {
        return
    }

    ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
    defer cancel()

    updated, err := h.svc.MarkAllAsRead(ctx, userID, optionalQuery(c, "category"))
    if err != nil {
        writeError(c, err)
        return
    }
    c.JSON(http.StatusOK, dto.MarkAllReadResponse{Updated: updated})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
    userID, ok := currentUser(c)
    if !ok {
        return
    }

    ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
    defer cancel()

    if err := h.svc.Delete(ctx, c.Param("id"), userID); err != nil {
        writeError(c, err)
        return
    }
    c.Status(http.StatusNoContent)
}

// Send creates one notification per listed user. Users who muted the
// category are counted as suppressed; per-user failures don't stop the rest.
func (h *NotificationHandler) Send(c *gin.Context) {
    var req dto.SendNotificationRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }

    in, err := buildInput(req)
    if err != nil {
        writeError(c, err)
        return
    }

    ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
    defer cancel()

    created, err := h.svc.CreateForUsers(ctx, req.UserIDs, in)
    if err != nil && len(created) == 0 && errors.Is(err, service.ErrInvalidInput) {
        writeError(c, err)
        return
    }

    resp := dto.SendNotificationResponse{Created: len(created), IDs: make([]string, 0, len(created))}
    for _, n := range created {
        resp.IDs = append(resp.IDs, n.ID)
    }
    if err != nil {
        resp.Errors = splitJoined(err)
    }
    resp.Suppressed = uniqueCount(req.UserIDs) - resp.Created - len(resp.Errors)

    status := http.StatusCreated
    if len(resp.Errors) > 0 {
        status = http.StatusMultiStatus
    }
    c.JSON(status, resp)
}

func buildInput(req dto.SendNotificationRequest) (service.CreateInput, error) {
    if req.Title == "" && req.Message == "" && req.Category != "" {
        in, err := service.FromTemplate(service.TemplateInput{
            Category:   req.Category,
            Params:     req.Params,
            EntityType: req.EntityType,
            EntityID:   req.EntityID,
            ActionURL:  req.ActionURL,
        })
        if err != nil {
            return in, err
        }
        if req.Kind != "" {
            in.Kind = models.Kind(req.Kind)
        }
        return in, nil
    }

    content := models.LiteralContent(req.Title, req.Message).WithAction("", req.ActionText)
    return service.CreateInput{
        Kind:       models.Kind(req.Kind),
        Category:   req.Category,
        EntityType: req.EntityType,
        EntityID:   req.EntityID,
        ActionURL:  req.ActionURL,
        Content:    content,
    }, nil
}

// splitJoined flattens an errors.Join result into messages
func splitJoined(err error) []string {
    if joined, ok := err.(interface{ Unwrap() []error }); ok {
        var out []string
        for _, e := range joined.Unwrap() {
            out = append(out, e.Error())
        }
        return out
    }
    return []string{err.Error()}
}

func uniqueCount(ids []string) int {
    seen := make(map[string]struct{}, len(ids))
    for _, id := range ids {
        seen[id] = struct{}{}
    }
    return len(seen)
}

// currentUser reads the id set by the auth middleware, replying 401 when absent
func currentUser(c *gin.Context) (string, bool) {
    userID := c.GetString("userID")
    if userID == "" {
        c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
        return "", false
    }
    return userID, true
}

func optionalQuery(c *gin.Context, key string) *string {
    if v, ok := c.GetQuery(key); ok && v != "" {
        return &v
    }
    return nil
}

// writeError maps domain errors to status codes; anything unknown is a 500
// and its detail stays in the log
func writeError(c *gin.Context, err error) {
    switch {
    case errors.Is(err, service.ErrInvalidInput):
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    case errors.Is(err, service.ErrNotificationNotFound):
        c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
    case errors.Is(err, context.DeadlineExceeded):
        c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
    default:
        slog.Error("request_failed", "path", c.FullPath(), "error", err)
        c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
    }
}
