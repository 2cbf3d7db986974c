package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// WordsPerParticipant - сколько слов нужно участнику, чтобы считаться готовым
const WordsPerParticipant = 5

// Session - одна игра: создатель, участники, пул слов и флаг старта.
// Stored under games/{id}; field names are stable across reads and writes.
type Session struct {
	ID             uuid.UUID   `json:"id"`
	CreatorID      string      `json:"creator_id"`
	ParticipantIDs []string    `json:"participant_ids"` // sorted, unique, contains CreatorID
	Words          []WordEntry `json:"words"`
	IsStarted      bool        `json:"is_started"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewSession builds a session whose participant set always includes the creator.
func NewSession(creatorID string, participantIDs []string, now time.Time) Session {
	ids := make([]string, 0, len(participantIDs)+1)
	ids = append(ids, creatorID)
	for _, id := range participantIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	return Session{
		ID:             uuid.New(),
		CreatorID:      creatorID,
		ParticipantIDs: ids,
		Words:          []WordEntry{},
		CreatedAt:      now.UTC(),
	}
}

func (s Session) HasParticipant(userID string) bool {
	_, found := slices.BinarySearch(s.ParticipantIDs, userID)
	return found
}

// Involves reports whether the user created or participates in the session.
func (s Session) Involves(userID string) bool {
	return s.CreatorID == userID || s.HasParticipant(userID)
}

// WordsBy returns the author's words in submission order.
func (s Session) WordsBy(authorID string) []WordEntry {
	var res []WordEntry
	for _, w := range s.Words {
		if w.AuthorID == authorID {
			res = append(res, w)
		}
	}
	return res
}

// WordsToSpell returns the words the player has to spell: everything
// authored by someone else, in session order.
func (s Session) WordsToSpell(playerID string) []WordEntry {
	var res []WordEntry
	for _, w := range s.Words {
		if w.AuthorID != playerID {
			res = append(res, w)
		}
	}
	return res
}

// Readiness maps every participant to the number of words they submitted.
func (s Session) Readiness() map[string]int {
	counts := make(map[string]int, len(s.ParticipantIDs))
	for _, id := range s.ParticipantIDs {
		counts[id] = 0
	}
	for _, w := range s.Words {
		counts[w.AuthorID]++
	}
	return counts
}

func (s Session) IsReady(userID string) bool {
	return s.Readiness()[userID] >= WordsPerParticipant
}

// Clone returns a deep copy so callers never share slices with the registry.
func (s Session) Clone() Session {
	c := s
	c.ParticipantIDs = slices.Clone(s.ParticipantIDs)
	c.Words = make([]WordEntry, len(s.Words))
	for i, w := range s.Words {
		if w.AudioRef != nil {
			ref := *w.AudioRef
			w.AudioRef = &ref
		}
		c.Words[i] = w
	}
	return c
}
