package handlers

import (
	"errors"
	"net/http"

	"spellingbee/internal/domain"
	"spellingbee/internal/http/middleware"
	"spellingbee/internal/identity"
	"spellingbee/internal/service"

	"github.com/gin-gonic/gin"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	p, err := h.Identity.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrInvalidUsername):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		respondError(c, err)
		return
	}

	h.signIn(c, http.StatusCreated, p)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	p, err := h.Identity.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	h.signIn(c, http.StatusOK, p)
}

// signIn registers the principal on first sighting and issues a token.
func (h *Handler) signIn(c *gin.Context, status int, p domain.Principal) {
	user, err := h.Coordinator.RegisterUser(c.Request.Context(), p.User())
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := service.GenerateJWT(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	c.JSON(status, gin.H{
		"token": token,
		"user":  user,
	})
}

func (h *Handler) SignOut(c *gin.Context) {
	if err := h.Identity.SignOut(c.Request.Context(), middleware.Token(c)); err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
