package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"spellingbee/internal/domain"

	"github.com/google/uuid"
)

var _ DocumentStore = (*SQLiteStore)(nil)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		doc        TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		user_id       TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL,
		password_hash BLOB NOT NULL,
		salt          BLOB NOT NULL,
		created_at    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS play_results (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		total      INTEGER NOT NULL,
		words      TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_play_results_user ON play_results (user_id, id)`,
}

// MigrateSQLite creates the tables used by the SQLite stores.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}

// SQLiteStore is a single-file document store for local runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the tables if needed.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if err := MigrateSQLite(ctx, db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) put(ctx context.Context, collection, id string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES (?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET doc = excluded.doc, updated_at = CURRENT_TIMESTAMP`,
		collection, id, string(b),
	)
	return err
}

func (s *SQLiteStore) get(ctx context.Context, collection, id string, v any) error {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", docKey(collection, id), domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(doc), v)
}

func (s *SQLiteStore) list(ctx context.Context, collection string, each func(doc []byte) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM documents WHERE collection = ? ORDER BY updated_at`, collection)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return err
		}
		if err := each([]byte(doc)); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var res []domain.Session
	err := s.list(ctx, GamesCollection, func(doc []byte) error {
		var sess domain.Session
		if err := json.Unmarshal(doc, &sess); err == nil {
			res = append(res, sess)
		}
		return nil
	})
	return res, err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	var sess domain.Session
	if err := s.get(ctx, GamesCollection, id.String(), &sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *SQLiteStore) PutSession(ctx context.Context, sess domain.Session) error {
	return s.put(ctx, GamesCollection, sess.ID.String(), sess)
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var res []domain.User
	err := s.list(ctx, UsersCollection, func(doc []byte) error {
		var u domain.User
		if err := json.Unmarshal(doc, &u); err == nil {
			res = append(res, u)
		}
		return nil
	})
	return res, err
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	if err := s.get(ctx, UsersCollection, id, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *SQLiteStore) PutUser(ctx context.Context, u domain.User) error {
	return s.put(ctx, UsersCollection, u.ID, u)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
