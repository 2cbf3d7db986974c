package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"spellingbee/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GameRepository stores sessions as JSONB documents in the games table.
type GameRepository struct {
	db *pgxpool.Pool
}

func NewGameRepository(db *pgxpool.Pool) *GameRepository {
	return &GameRepository{db: db}
}

// Put upserts the full session record.
func (r *GameRepository) Put(ctx context.Context, s domain.Session) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO games (id, creator_id, is_started, doc, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET is_started = EXCLUDED.is_started, doc = EXCLUDED.doc, updated_at = now()`,
		s.ID,
		s.CreatorID,
		s.IsStarted,
		doc,
		s.CreatedAt,
	)
	return err
}

func (r *GameRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT doc FROM games WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, fmt.Errorf("%s: %w", docKey(GamesCollection, id.String()), domain.ErrNotFound)
	}
	if err != nil {
		return domain.Session{}, err
	}

	var s domain.Session
	if err := json.Unmarshal(doc, &s); err != nil {
		return domain.Session{}, fmt.Errorf("decode game %s: %w", id, err)
	}
	return s, nil
}

func (r *GameRepository) List(ctx context.Context) ([]domain.Session, error) {
	rows, err := r.db.Query(ctx, `SELECT doc FROM games ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Session
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var s domain.Session
		if err := json.Unmarshal(doc, &s); err != nil {
			// one corrupt document must not hide the rest
			continue
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ListByUser returns sessions the user created or joined.
func (r *GameRepository) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT doc FROM games
		 WHERE creator_id = $1 OR doc->'participant_ids' ? $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Session
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var s domain.Session
		if err := json.Unmarshal(doc, &s); err != nil {
			continue
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
