package repository

import (
	"context"
	"errors"
	"fmt"

	"spellingbee/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, COALESCE(display_name, ''), COALESCE(email, '')
		 FROM users
		 WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.DisplayName, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("%s: %w", docKey(UsersCollection, id), domain.ErrNotFound)
	}
	return u, err
}

// Put upserts the user by id.
func (r *UserRepository) Put(ctx context.Context, u domain.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, display_name, email)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET display_name = EXCLUDED.display_name, email = EXCLUDED.email`,
		u.ID,
		u.DisplayName,
		u.Email,
	)
	return err
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, COALESCE(display_name, ''), COALESCE(email, '')
		 FROM users
		 ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Email); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
