package repository

import (
	"context"
	"errors"

	"spellingbee/internal/domain"

	"github.com/google/uuid"
)

// Document namespaces.
const (
	UsersCollection = "users"
	GamesCollection = "games"
)

// ErrDuplicate is returned when a unique key (e.g. an email) is already taken.
var ErrDuplicate = errors.New("duplicate key")

// SessionStore is the durable mirror of the coordinator's sessions.
// GetSession returns domain.ErrNotFound for unknown ids.
type SessionStore interface {
	ListSessions(ctx context.Context) ([]domain.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (domain.Session, error)
	PutSession(ctx context.Context, s domain.Session) error
}

// UserStore persists the user registry.
type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	PutUser(ctx context.Context, u domain.User) error
}

// DocumentStore is implemented by every backend selectable with STORE_DRIVER.
type DocumentStore interface {
	SessionStore
	UserStore
	Ping(ctx context.Context) error
}

func docKey(collection, id string) string {
	return collection + "/" + id
}
