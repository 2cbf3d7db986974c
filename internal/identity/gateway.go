// Package identity registers and authenticates players with email and
// password, and revokes access tokens on sign-out.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"spellingbee/internal/domain"
	"spellingbee/internal/logger"
	"spellingbee/internal/repository"
	"spellingbee/internal/service"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidUsername    = errors.New("username must be 1..32 characters")
)

const (
	minPasswordLen = 8
	maxUsernameLen = 32
	saltLen        = 16
)

func hashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
}

// Gateway produces principals for the coordinator's user registry.
type Gateway struct {
	creds   repository.CredentialStore
	revoker Revoker
}

func NewGateway(creds repository.CredentialStore, revoker Revoker) *Gateway {
	return &Gateway{creds: creds, revoker: revoker}
}

func (g *Gateway) Register(ctx context.Context, username, email, password string) (domain.Principal, error) {
	username = strings.TrimSpace(username)
	if username == "" || len([]rune(username)) > maxUsernameLen {
		return domain.Principal{}, ErrInvalidUsername
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return domain.Principal{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return domain.Principal{}, ErrWeakPassword
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return domain.Principal{}, fmt.Errorf("identity: salt: %w", err)
	}

	c := &repository.Credential{
		UserID:       uuid.NewString(),
		Email:        strings.ToLower(addr.Address),
		DisplayName:  username,
		PasswordHash: hashPassword(password, salt),
		Salt:         salt,
	}
	if err := g.creds.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Principal{}, ErrEmailTaken
		}
		return domain.Principal{}, fmt.Errorf("identity: register: %w", err)
	}

	logger.Info("account registered", "user_id", c.UserID)
	return domain.Principal{ID: c.UserID, DisplayName: c.DisplayName, Email: c.Email}, nil
}

func (g *Gateway) Login(ctx context.Context, email, password string) (domain.Principal, error) {
	c, err := g.creds.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, ErrInvalidCredentials
		}
		return domain.Principal{}, fmt.Errorf("identity: login: %w", err)
	}

	if subtle.ConstantTimeCompare(hashPassword(password, c.Salt), c.PasswordHash) != 1 {
		logger.Warn("login failed", "user_id", c.UserID)
		return domain.Principal{}, ErrInvalidCredentials
	}
	return domain.Principal{ID: c.UserID, DisplayName: c.DisplayName, Email: c.Email}, nil
}

// SignOut revokes the token until it would have expired anyway.
func (g *Gateway) SignOut(ctx context.Context, token string) error {
	claims, err := service.ParseJWT(token)
	if err != nil {
		return ErrInvalidCredentials
	}
	if claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := g.revoker.Revoke(ctx, claims.JTI, ttl); err != nil {
		return fmt.Errorf("identity: sign out: %w", err)
	}
	logger.Info("signed out", "user_id", claims.UserID)
	return nil
}

// Revoker returns the revocation list checked by the auth middleware.
func (g *Gateway) Revoker() Revoker {
	return g.revoker
}
