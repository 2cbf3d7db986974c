package domain

import (
	"time"

	"github.com/google/uuid"
)

// WordScore - результат одного слова в прохождении
type WordScore struct {
	WordID   uuid.UUID     `json:"word_id"`
	Target   string        `json:"target"`
	Input    string        `json:"input"`
	Correct  bool          `json:"correct"`
	Points   int           `json:"points"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	TimedOut bool          `json:"timed_out"`
}

// PlayResult - запись завершённого прохождения игры одним игроком
type PlayResult struct {
	ID        int64       `db:"id" json:"id"`
	SessionID uuid.UUID   `db:"session_id" json:"session_id"`
	UserID    string      `db:"user_id" json:"user_id"`
	Total     int         `db:"total" json:"total"`
	Words     []WordScore `db:"words" json:"words"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}
