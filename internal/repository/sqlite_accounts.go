package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"spellingbee/internal/domain"
)

var (
	_ CredentialStore = (*SQLiteCredentials)(nil)
	_ PlayResultStore = (*SQLitePlayResults)(nil)
)

// SQLiteCredentials keeps login records next to the SQLite document store.
// Tables come from MigrateSQLite.
type SQLiteCredentials struct {
	db *sql.DB
}

func NewSQLiteCredentials(db *sql.DB) *SQLiteCredentials {
	return &SQLiteCredentials{db: db}
}

func (r *SQLiteCredentials) Create(ctx context.Context, c *Credential) error {
	c.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, email, display_name, password_hash, salt, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.UserID, strings.ToLower(c.Email), c.DisplayName, c.PasswordHash, c.Salt, c.CreatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("email %s: %w", c.Email, ErrDuplicate)
	}
	return err
}

func (r *SQLiteCredentials) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	var c Credential
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, email, display_name, password_hash, salt, created_at
		 FROM credentials WHERE email = ?`,
		strings.ToLower(email),
	).Scan(&c.UserID, &c.Email, &c.DisplayName, &c.PasswordHash, &c.Salt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential %s: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SQLitePlayResults is the SQLite PlayResultStore.
type SQLitePlayResults struct {
	db *sql.DB
}

func NewSQLitePlayResults(db *sql.DB) *SQLitePlayResults {
	return &SQLitePlayResults{db: db}
}

func (r *SQLitePlayResults) Create(ctx context.Context, pr *domain.PlayResult) error {
	wordsJSON, err := json.Marshal(pr.Words)
	if err != nil {
		wordsJSON = []byte("[]")
	}
	pr.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO play_results (session_id, user_id, total, words, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		pr.SessionID.String(), pr.UserID, pr.Total, string(wordsJSON), pr.CreatedAt,
	)
	if err != nil {
		return err
	}
	pr.ID, err = res.LastInsertId()
	return err
}

func (r *SQLitePlayResults) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.PlayResult, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, total, words, created_at
		 FROM play_results
		 WHERE user_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.PlayResult
	for rows.Next() {
		var (
			pr        domain.PlayResult
			sessionID string
			words     string
		)
		if err := rows.Scan(&pr.ID, &sessionID, &pr.UserID, &pr.Total, &words, &pr.CreatedAt); err != nil {
			return nil, err
		}
		if err := pr.SessionID.UnmarshalText([]byte(sessionID)); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(words), &pr.Words)
		res = append(res, &pr)
	}
	return res, rows.Err()
}
