package domain

import "github.com/google/uuid"

// DefaultWordLevel is used when a recording carries no explicit level.
const DefaultWordLevel = 1

// WordEntry - одно записанное слово участника
type WordEntry struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	AudioRef  *string   `json:"audio_ref,omitempty"` // set only after a successful upload
	Level     int       `json:"level"`
	AuthorID  string    `json:"author_id"`
	SessionID uuid.UUID `json:"session_id"`
}

// NewWordEntry builds an entry for an uploaded recording.
func NewWordEntry(sessionID uuid.UUID, authorID, text, audioRef string, level int) WordEntry {
	if level <= 0 {
		level = DefaultWordLevel
	}
	ref := audioRef
	return WordEntry{
		ID:        uuid.New(),
		Text:      text,
		AudioRef:  &ref,
		Level:     level,
		AuthorID:  authorID,
		SessionID: sessionID,
	}
}

func (w WordEntry) HasAudio() bool {
	return w.AudioRef != nil && *w.AudioRef != ""
}
