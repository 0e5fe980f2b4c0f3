package handler

import (
	"context"
	"net/http"
	"time"

	"conventionhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type UnreadHandler struct {
	svc service.UnreadService
}

func NewUnreadHandler(svc service.UnreadService) *UnreadHandler {
	return &UnreadHandler{svc: svc}
}

// GetUnreadCount serves the messenger badge for the caller
func (h *UnreadHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	count, err := h.svc.GetUnreadCount(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, count)
}
