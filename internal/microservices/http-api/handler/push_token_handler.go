package handler

import (
	"context"
	"net/http"
	"time"

	"conventionhub/internal/microservices/http-api/dto"
	"conventionhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type PushTokenHandler struct {
	svc service.PushTokenService
}

func NewPushTokenHandler(svc service.PushTokenService) *PushTokenHandler {
	return &PushTokenHandler{svc: svc}
}

func (h *PushTokenHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Register)
	rg.DELETE("", h.Unregister)
}

func (h *PushTokenHandler) Register(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.PushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.svc.Register(ctx, userID, req.Token, req.Platform); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *PushTokenHandler) Unregister(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.PushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.svc.Unregister(ctx, userID, req.Token); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
