package ws

import "github.com/google/uuid"

// client → server
type InputPayload struct {
	Text string `json:"text"`
}

// server → client
type WordPayload struct {
	Index    int       `json:"index"`
	Total    int       `json:"total"`
	WordID   uuid.UUID `json:"word_id"`
	AudioURL string    `json:"audio_url"`
	Level    int       `json:"level"`
}

type RecordingPayload struct {
	TimeLimitMs int64 `json:"time_limit_ms"`
}

type ResultPayload struct {
	Target    string `json:"target"`
	Input     string `json:"input"`
	Correct   bool   `json:"correct"`
	Points    int    `json:"points"`
	ElapsedMs int64  `json:"elapsed_ms"`
	TimedOut  bool   `json:"timed_out"`
	Total     int    `json:"total"`
}

type CompletePayload struct {
	Total int `json:"total"`
	Words int `json:"words"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
