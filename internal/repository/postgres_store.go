package repository

import (
	"context"

	"spellingbee/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ DocumentStore = (*PostgresStore)(nil)

// PostgresStore adapts the users/games repositories to DocumentStore.
type PostgresStore struct {
	db    *pgxpool.Pool
	games *GameRepository
	users *UserRepository
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		db:    db,
		games: NewGameRepository(db),
		users: NewUserRepository(db),
	}
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return s.games.List(ctx)
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	return s.games.GetByID(ctx, id)
}

func (s *PostgresStore) PutSession(ctx context.Context, sess domain.Session) error {
	return s.games.Put(ctx, sess)
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *PostgresStore) PutUser(ctx context.Context, u domain.User) error {
	return s.users.Put(ctx, u)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
