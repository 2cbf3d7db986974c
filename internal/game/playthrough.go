package game

import (
	"errors"
	"slices"
	"sync"
	"time"

	"spellingbee/internal/domain"

	"github.com/google/uuid"
)

// State of a play-through.
type State string

const (
	StateAwaitingPlayback State = "awaiting_playback"
	StateRecording        State = "recording"
	StateScored           State = "scored"
	StateComplete         State = "complete"
)

var (
	ErrWrongState = errors.New("action not allowed in current state")
	ErrClosed     = errors.New("play-through closed")
)

// Timer is the part of *time.Timer the play-through needs.
type Timer interface {
	Stop() bool
}

// Clock lets tests drive time and timers by hand.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*PlayThrough)

func WithClock(c Clock) Option {
	return func(p *PlayThrough) { p.clock = c }
}

// OnTimeout registers a callback invoked (outside the lock) when the time
// limit forces a submit.
func OnTimeout(f func(domain.WordScore)) Option {
	return func(p *PlayThrough) { p.onTimeout = f }
}

// PlayThrough is one player's pass over the words authored by opponents.
//
//	AwaitingPlayback -> Recording -> Scored -> AwaitingPlayback | Complete
//
// The timer starts when Recording is entered and forces a submit with the
// last entered input once TimeLimit is reached.
type PlayThrough struct {
	mu sync.Mutex

	sessionID uuid.UUID
	playerID  string
	words     []domain.WordEntry
	idx       int
	state     State
	closed    bool

	clock     Clock
	onTimeout func(domain.WordScore)
	started   time.Time
	input     string
	timer     Timer
	gen       uint64 // bumped whenever a pending timer becomes stale

	results []domain.WordScore
	total   int
}

func NewPlayThrough(s domain.Session, playerID string, opts ...Option) *PlayThrough {
	p := &PlayThrough{
		sessionID: s.ID,
		playerID:  playerID,
		words:     s.WordsToSpell(playerID),
		state:     StateAwaitingPlayback,
		clock:     realClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if len(p.words) == 0 {
		p.state = StateComplete
	}
	return p
}

func (p *PlayThrough) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Current returns the word being played; false once complete.
func (p *PlayThrough) Current() (domain.WordEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateComplete || p.idx >= len(p.words) {
		return domain.WordEntry{}, false
	}
	return p.words[p.idx], true
}

// Position returns the zero-based index of the current word and the word count.
func (p *PlayThrough) Position() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idx, len(p.words)
}

// BeginRecording is called once playback of the current word finished.
func (p *PlayThrough) BeginRecording() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(StateAwaitingPlayback); err != nil {
		return err
	}

	p.state = StateRecording
	p.input = ""
	p.started = p.clock.Now()
	p.gen++
	gen := p.gen
	p.timer = p.clock.AfterFunc(TimeLimit, func() { p.expire(gen) })
	return nil
}

// SetInput records what the player has typed so far; a timeout submits it.
func (p *PlayThrough) SetInput(input string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(StateRecording); err != nil {
		return err
	}
	p.input = input
	return nil
}

// Submit scores the attempt and moves to Scored.
func (p *PlayThrough) Submit(input string) (domain.WordScore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(StateRecording); err != nil {
		return domain.WordScore{}, err
	}
	p.input = input
	return p.scoreLocked(p.clock.Now().Sub(p.started), false), nil
}

// Next leaves Scored for the next word or Complete.
func (p *PlayThrough) Next() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.check(StateScored); err != nil {
		return p.state, err
	}

	p.idx++
	if p.idx >= len(p.words) {
		p.state = StateComplete
	} else {
		p.state = StateAwaitingPlayback
	}
	return p.state, nil
}

// Close cancels any running timer. Safe to call more than once.
func (p *PlayThrough) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.stopTimerLocked()
}

func (p *PlayThrough) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

func (p *PlayThrough) Results() []domain.WordScore {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.results)
}

// Result summarizes the play-through for storage.
func (p *PlayThrough) Result() domain.PlayResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	return domain.PlayResult{
		SessionID: p.sessionID,
		UserID:    p.playerID,
		Total:     p.total,
		Words:     slices.Clone(p.results),
	}
}

func (p *PlayThrough) check(want State) error {
	if p.closed {
		return ErrClosed
	}
	if p.state != want {
		return ErrWrongState
	}
	return nil
}

func (p *PlayThrough) expire(gen uint64) {
	p.mu.Lock()
	if p.closed || gen != p.gen || p.state != StateRecording {
		p.mu.Unlock()
		return
	}
	score := p.scoreLocked(TimeLimit, true)
	cb := p.onTimeout
	p.mu.Unlock()

	if cb != nil {
		cb(score)
	}
}

func (p *PlayThrough) scoreLocked(elapsed time.Duration, timedOut bool) domain.WordScore {
	p.stopTimerLocked()

	elapsed = min(max(elapsed, 0), TimeLimit)
	word := p.words[p.idx]
	correct := IsCorrect(p.input, word.Text)
	score := domain.WordScore{
		WordID:   word.ID,
		Target:   word.Text,
		Input:    p.input,
		Correct:  correct,
		Points:   Points(elapsed, correct),
		Elapsed:  elapsed,
		TimedOut: timedOut,
	}

	p.results = append(p.results, score)
	p.total += score.Points
	p.state = StateScored
	return score
}

func (p *PlayThrough) stopTimerLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
