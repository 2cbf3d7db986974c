package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"spellingbee/internal/domain"
	"spellingbee/internal/game"
	"spellingbee/internal/logger"
	"spellingbee/internal/service"
)

// PlayRoom drives one player's play-through over a websocket. Client
// messages and the timeout callback are serialized by mu.
type PlayRoom struct {
	ID        string
	client    *Client
	session   domain.Session
	play      *game.PlayThrough
	hub       *Hub
	log       *slog.Logger
	createdAt time.Time

	mu       sync.Mutex
	finished bool
}

func newPlayRoom(hub *Hub, c *Client, s domain.Session) *PlayRoom {
	r := &PlayRoom{
		ID:        roomKey(s.ID.String(), c.UserID),
		client:    c,
		session:   s,
		hub:       hub,
		log:       logger.Session(s.ID.String()).With("user_id", c.UserID),
		createdAt: time.Now(),
	}

	opts := []game.Option{game.OnTimeout(r.onTimeout)}
	if hub.clock != nil {
		opts = append(opts, game.WithClock(hub.clock))
	}
	r.play = game.NewPlayThrough(s, c.UserID, opts...)
	return r
}

func roomKey(sessionID, userID string) string {
	return sessionID + ":" + userID
}

// Start sends the first word, or completes straight away when there is
// nothing to spell.
func (r *PlayRoom) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Info("play started")
	r.advanceLocked()
}

func (r *PlayRoom) HandleMessage(c *Client, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.send(Message{Type: MsgError, Value: ErrorPayload{Message: "invalid message"}})
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch msg.Type {
	case MsgPing:
		c.send(Message{Type: MsgPong})

	case MsgPlayed:
		if err := r.play.BeginRecording(); err != nil {
			r.sendStateError(err)
			return
		}
		c.send(Message{Type: MsgRecording, Value: RecordingPayload{TimeLimitMs: game.TimeLimit.Milliseconds()}})

	case MsgInput:
		var p InputPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			c.send(Message{Type: MsgError, Value: ErrorPayload{Message: "invalid input"}})
			return
		}
		if err := r.play.SetInput(p.Text); err != nil {
			r.sendStateError(err)
		}

	case MsgSpell:
		var p InputPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			c.send(Message{Type: MsgError, Value: ErrorPayload{Message: "invalid input"}})
			return
		}
		score, err := r.play.Submit(p.Text)
		if err != nil {
			// a timeout may have scored the word a moment earlier
			r.sendStateError(err)
			return
		}
		r.scoredLocked(score)

	default:
		c.send(Message{Type: MsgError, Value: ErrorPayload{Message: "unknown message type"}})
	}
}

func (r *PlayRoom) onTimeout(score domain.WordScore) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Debug("word timed out", "word_id", score.WordID)
	r.scoredLocked(score)
}

func (r *PlayRoom) scoredLocked(score domain.WordScore) {
	service.ObserveScore(score.Correct, score.TimedOut, score.Points)
	r.client.send(Message{Type: MsgResult, Value: ResultPayload{
		Target:    score.Target,
		Input:     score.Input,
		Correct:   score.Correct,
		Points:    score.Points,
		ElapsedMs: score.Elapsed.Milliseconds(),
		TimedOut:  score.TimedOut,
		Total:     r.play.Total(),
	}})

	if _, err := r.play.Next(); err != nil {
		r.log.Warn("advance failed", "error", err)
		return
	}
	r.advanceLocked()
}

func (r *PlayRoom) advanceLocked() {
	w, ok := r.play.Current()
	if !ok {
		r.finishLocked()
		return
	}

	idx, total := r.play.Position()
	audio := ""
	if w.AudioRef != nil {
		audio = *w.AudioRef
	}
	r.client.send(Message{Type: MsgWord, Value: WordPayload{
		Index:    idx,
		Total:    total,
		WordID:   w.ID,
		AudioURL: audio,
		Level:    w.Level,
	}})
}

func (r *PlayRoom) finishLocked() {
	if r.finished {
		return
	}
	r.finished = true

	res := r.play.Result()
	r.log.Info("play complete", "total", res.Total, "words", len(res.Words))

	if r.hub.plays != nil && len(res.Words) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.hub.plays.Create(ctx, &res); err != nil {
			r.log.Error("store play result failed", "error", err)
		}
		cancel()
	}

	r.client.send(Message{Type: MsgComplete, Value: CompletePayload{Total: res.Total, Words: len(res.Words)}})
}

func (r *PlayRoom) sendStateError(err error) {
	text := "action not allowed now"
	if errors.Is(err, game.ErrClosed) {
		text = "play closed"
	}
	r.client.send(Message{Type: MsgError, Value: ErrorPayload{Message: text}})
}

// Close stops the timer; an unfinished play-through is discarded.
func (r *PlayRoom) Close() {
	r.play.Close()

	r.mu.Lock()
	done := r.finished
	r.mu.Unlock()
	if !done {
		r.log.Info("play abandoned")
	}
}
