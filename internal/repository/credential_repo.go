package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"spellingbee/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Credential is the identity gateway's login record. Email is stored lower-cased.
type Credential struct {
	UserID       string
	Email        string
	DisplayName  string
	PasswordHash []byte
	Salt         []byte
	CreatedAt    time.Time
}

// CredentialStore returns ErrDuplicate on a taken email and
// domain.ErrNotFound for unknown emails.
type CredentialStore interface {
	Create(ctx context.Context, c *Credential) error
	GetByEmail(ctx context.Context, email string) (*Credential, error)
}

type CredentialRepository struct {
	db *pgxpool.Pool
}

func NewCredentialRepository(db *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Create(ctx context.Context, c *Credential) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO credentials (user_id, email, display_name, password_hash, salt)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		c.UserID,
		strings.ToLower(c.Email),
		c.DisplayName,
		c.PasswordHash,
		c.Salt,
	).Scan(&c.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("email %s: %w", c.Email, ErrDuplicate)
	}
	return err
}

func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	var c Credential
	err := r.db.QueryRow(ctx,
		`SELECT user_id, email, display_name, password_hash, salt, created_at
		 FROM credentials
		 WHERE email = $1`,
		strings.ToLower(email),
	).Scan(&c.UserID, &c.Email, &c.DisplayName, &c.PasswordHash, &c.Salt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("credential %s: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MemCredentials is the in-memory CredentialStore.
type MemCredentials struct {
	mu      sync.RWMutex
	byEmail map[string]Credential
}

func NewMemCredentials() *MemCredentials {
	return &MemCredentials{byEmail: make(map[string]Credential)}
}

func (m *MemCredentials) Create(ctx context.Context, c *Credential) error {
	email := strings.ToLower(c.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[email]; ok {
		return fmt.Errorf("email %s: %w", email, ErrDuplicate)
	}
	c.CreatedAt = time.Now().UTC()
	cp := *c
	cp.Email = email
	m.byEmail[email] = cp
	return nil
}

func (m *MemCredentials) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("credential %s: %w", email, domain.ErrNotFound)
	}
	return &c, nil
}
