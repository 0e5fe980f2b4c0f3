package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"conventionhub/internal/microservices/http-api/dto"
	"conventionhub/internal/microservices/presence"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PresenceTracker is the part of *presence.Tracker the HTTP surface needs
type PresenceTracker interface {
	MarkPresent(ctx context.Context, conversationID, userID string) (bool, error)
	MarkAbsent(ctx context.Context, conversationID, userID string) (bool, error)
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
	GetPresentUsers(conversationID string) []string
}

// OnlineChecker reports whether a user holds a live stream. *realtime.Registry implements it.
type OnlineChecker interface {
	IsOnline(userID string) bool
}

type PresenceHandler struct {
	tracker PresenceTracker
	online  OnlineChecker
}

func NewPresenceHandler(tracker PresenceTracker, online OnlineChecker) *PresenceHandler {
	return &PresenceHandler{tracker: tracker, online: online}
}

// RegisterRoutes mounts under /api/conversations
func (h *PresenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/presence", h.Join)
	rg.DELETE("/:id/presence", h.Leave)
	rg.GET("/:id/presence", h.List)
}

// Join needs an open stream: presence is only cleared when the user's last
// stream goes away
func (h *PresenceHandler) Join(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if !h.online.IsOnline(userID) {
		c.JSON(http.StatusConflict, gin.H{"error": "open a notification stream before joining"})
		return
	}
	h.change(c, h.tracker.MarkPresent)
}

func (h *PresenceHandler) Leave(c *gin.Context) {
	h.change(c, h.tracker.MarkAbsent)
}

func (h *PresenceHandler) change(c *gin.Context, op func(ctx context.Context, conversationID, userID string) (bool, error)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := conversationID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	changed, err := op(ctx, convID, userID)
	if err != nil {
		if errors.Is(err, presence.ErrNotParticipant) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		// a leave that was recorded but not announced still counts
		if !changed {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, h.snapshot(convID, &changed))
}

// List returns who is present; only participants may look
func (h *PresenceHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := conversationID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	member, err := h.tracker.IsMember(ctx, convID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": presence.ErrNotParticipant.Error()})
		return
	}
	c.JSON(http.StatusOK, h.snapshot(convID, nil))
}

// conversationID rejects ids the store could never match
func conversationID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return "", false
	}
	return id, true
}

func (h *PresenceHandler) snapshot(convID string, changed *bool) dto.PresenceResponse {
	users := h.tracker.GetPresentUsers(convID)
	return dto.PresenceResponse{
		ConversationID: convID,
		PresentUsers:   users,
		Count:          len(users),
		Changed:        changed,
	}
}
