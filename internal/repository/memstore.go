package repository

import (
	"context"
	"fmt"
	"sync"

	"spellingbee/internal/domain"

	"github.com/google/uuid"
)

var _ DocumentStore = (*MemStore)(nil)

// MemStore is a thread-safe in-memory DocumentStore used for development
// and tests. Values are cloned on the way in and out.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]domain.Session
	users    map[string]domain.User
}

func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[uuid.UUID]domain.Session),
		users:    make(map[string]domain.User),
	}
}

func (s *MemStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		res = append(res, sess.Clone())
	}
	return res, nil
}

func (s *MemStore) GetSession(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("%s: %w", docKey(GamesCollection, id.String()), domain.ErrNotFound)
	}
	return sess.Clone(), nil
}

func (s *MemStore) PutSession(ctx context.Context, sess domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		res = append(res, u)
	}
	return res, nil
}

func (s *MemStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("%s: %w", docKey(UsersCollection, id), domain.ErrNotFound)
	}
	return u, nil
}

func (s *MemStore) PutUser(ctx context.Context, u domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
