package handlers

import (
	"errors"
	"net/http"

	"spellingbee/internal/domain"
	"spellingbee/internal/http/middleware"
	"spellingbee/internal/identity"
	"spellingbee/internal/logger"
	"spellingbee/internal/repository"
	"spellingbee/internal/service"

	"github.com/gin-gonic/gin"
)

// HandlerConfig holds request limits for the handlers.
type HandlerConfig struct {
	MaxUploadBytes int64
}

type Handler struct {
	Coordinator *service.Coordinator
	Identity    *identity.Gateway
	Plays       repository.PlayResultStore
	cfg         HandlerConfig
}

func NewHandler(coord *service.Coordinator, gw *identity.Gateway, plays repository.PlayResultStore) *Handler {
	return NewHandlerWithConfig(coord, gw, plays, HandlerConfig{})
}

// NewHandlerWithConfig creates a handler with custom limits.
func NewHandlerWithConfig(coord *service.Coordinator, gw *identity.Gateway, plays repository.PlayResultStore, cfg HandlerConfig) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	return &Handler{Coordinator: coord, Identity: gw, Plays: plays, cfg: cfg}
}

// currentUser resolves the authenticated user in the registry.
func (h *Handler) currentUser(c *gin.Context) (domain.User, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return domain.User{}, false
	}
	u, err := h.Coordinator.User(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not registered"})
		return domain.User{}, false
	}
	return u, true
}

// respondError maps the error taxonomy to status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrAlreadyStarted):
		c.JSON(http.StatusConflict, gin.H{"error": "session already started"})
	case errors.Is(err, domain.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrTransferFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": "transfer failed"})
	default:
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
