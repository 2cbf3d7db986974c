package repository

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"spellingbee/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayResultStore keeps finished play-throughs per user.
type PlayResultStore interface {
	Create(ctx context.Context, pr *domain.PlayResult) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.PlayResult, error)
}

type PlayResultRepository struct {
	db *pgxpool.Pool
}

func NewPlayResultRepository(db *pgxpool.Pool) *PlayResultRepository {
	return &PlayResultRepository{db: db}
}

// Create сохраняет результат прохождения
func (r *PlayResultRepository) Create(ctx context.Context, pr *domain.PlayResult) error {
	wordsJSON, err := json.Marshal(pr.Words)
	if err != nil {
		wordsJSON = []byte("[]")
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO play_results (session_id, user_id, total, words)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		pr.SessionID,
		pr.UserID,
		pr.Total,
		wordsJSON,
	).Scan(&pr.ID, &pr.CreatedAt)
}

// ListByUser возвращает последние прохождения пользователя
func (r *PlayResultRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.PlayResult, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, user_id, total, words, created_at
		 FROM play_results
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

func (r *PlayResultRepository) scanRows(rows pgx.Rows) ([]*domain.PlayResult, error) {
	var res []*domain.PlayResult
	for rows.Next() {
		var pr domain.PlayResult
		var wordsBytes []byte
		if err := rows.Scan(&pr.ID, &pr.SessionID, &pr.UserID, &pr.Total, &wordsBytes, &pr.CreatedAt); err != nil {
			return nil, err
		}
		if len(wordsBytes) > 0 {
			_ = json.Unmarshal(wordsBytes, &pr.Words)
		}
		res = append(res, &pr)
	}
	return res, rows.Err()
}

// MemPlayResults is the in-memory PlayResultStore used without DATABASE_URL.
type MemPlayResults struct {
	mu     sync.Mutex
	seq    int64
	byUser map[string][]*domain.PlayResult
}

func NewMemPlayResults() *MemPlayResults {
	return &MemPlayResults{byUser: make(map[string][]*domain.PlayResult)}
}

func (m *MemPlayResults) Create(ctx context.Context, pr *domain.PlayResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	pr.ID = m.seq
	pr.CreatedAt = time.Now().UTC()
	cp := *pr
	cp.Words = slices.Clone(pr.Words)
	m.byUser[pr.UserID] = append(m.byUser[pr.UserID], &cp)
	return nil
}

func (m *MemPlayResults) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.PlayResult, error) {
	if limit <= 0 {
		limit = 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.byUser[userID]
	res := make([]*domain.PlayResult, 0, min(limit, len(all)))
	// newest first
	for i := len(all) - 1; i >= 0 && len(res) < limit; i-- {
		cp := *all[i]
		res = append(res, &cp)
	}
	return res, nil
}
