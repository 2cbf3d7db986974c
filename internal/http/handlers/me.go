package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Me(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// Users lists everyone a session can be created with.
func (h *Handler) Users(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": h.Coordinator.Users()})
}

// MyPlays returns the caller's finished play-throughs, newest first.
func (h *Handler) MyPlays(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 100)
		}
	}

	plays, err := h.Plays.ListByUser(c.Request.Context(), user.ID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plays": plays})
}
