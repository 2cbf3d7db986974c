package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"spellingbee/internal/blob"
	"spellingbee/internal/domain"
	"spellingbee/internal/logger"
	"spellingbee/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CoordinatorConfig holds the upload limits used by SubmitRecordings.
type CoordinatorConfig struct {
	UploadTimeout     time.Duration
	UploadConcurrency int
}

// Coordinator owns the canonical in-memory users and sessions. The store is
// a durable mirror written after every change; the in-memory copy wins.
type Coordinator struct {
	store    repository.DocumentStore
	transfer blob.Transfer
	cfg      CoordinatorConfig
	now      func() time.Time

	mu         sync.RWMutex
	users      map[string]domain.User
	sessions   map[uuid.UUID]domain.Session
	locks      map[uuid.UUID]*sync.Mutex
	dirty      map[uuid.UUID]struct{}
	dirtyUsers map[string]struct{}

	subMu  sync.RWMutex
	subs   map[int]chan Event
	subSeq int
}

func NewCoordinator(store repository.DocumentStore, transfer blob.Transfer, cfg CoordinatorConfig) *Coordinator {
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = domain.WordsPerParticipant
	}
	return &Coordinator{
		store:      store,
		transfer:   transfer,
		cfg:        cfg,
		now:        time.Now,
		users:      make(map[string]domain.User),
		sessions:   make(map[uuid.UUID]domain.Session),
		locks:      make(map[uuid.UUID]*sync.Mutex),
		dirty:      make(map[uuid.UUID]struct{}),
		dirtyUsers: make(map[string]struct{}),
		subs:       make(map[int]chan Event),
	}
}

// Load reads users and sessions from the store concurrently. Records already
// known in memory are kept as they are.
func (c *Coordinator) Load(ctx context.Context) error {
	var (
		users    []domain.User
		sessions []domain.Session
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = c.store.ListUsers(gctx)
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sessions, err = c.store.ListSessions(gctx)
		if err != nil {
			return fmt.Errorf("load sessions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range users {
		if _, ok := c.users[u.ID]; !ok && u.Valid() {
			c.users[u.ID] = u
		}
	}
	for _, s := range sessions {
		if _, ok := c.sessions[s.ID]; !ok {
			c.sessions[s.ID] = s.Clone()
		}
	}

	logger.Info("registry loaded", "users", len(users), "sessions", len(sessions))
	return nil
}

// RegisterUser adds the user on first sighting. Registering an id again
// returns the existing entry unchanged.
func (c *Coordinator) RegisterUser(ctx context.Context, u domain.User) (domain.User, error) {
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	if !u.Valid() {
		return domain.User{}, fmt.Errorf("user id is empty: %w", domain.ErrInvalidArgument)
	}

	c.mu.Lock()
	if existing, ok := c.users[u.ID]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.users[u.ID] = u
	c.mu.Unlock()

	if err := c.store.PutUser(ctx, u); err != nil {
		c.mu.Lock()
		c.dirtyUsers[u.ID] = struct{}{}
		c.mu.Unlock()
		PersistenceFailures.WithLabelValues(repository.UsersCollection).Inc()
		logger.Error("persist user failed", "user_id", u.ID, "error", err)
	}

	logger.Info("user registered", "user_id", u.ID)
	return u, nil
}

// Users returns all registered users ordered by display name.
func (c *Coordinator) Users() []domain.User {
	c.mu.RLock()
	res := make([]domain.User, 0, len(c.users))
	for _, u := range c.users {
		res = append(res, u)
	}
	c.mu.RUnlock()

	slices.SortFunc(res, func(a, b domain.User) int {
		if n := strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return res
}

func (c *Coordinator) User(id string) (domain.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	u, ok := c.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

// CreateSession creates a session owned by creator. The creator must be registered.
func (c *Coordinator) CreateSession(ctx context.Context, creator domain.User, participants []domain.User) (domain.Session, error) {
	c.mu.RLock()
	_, registered := c.users[creator.ID]
	c.mu.RUnlock()
	if !creator.Valid() || !registered {
		return domain.Session{}, fmt.Errorf("creator %q is not registered: %w", creator.ID, domain.ErrInvalidArgument)
	}

	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}
	s := domain.NewSession(creator.ID, ids, c.now())

	lock := c.lockSession(s.ID)
	defer lock.Unlock()

	c.mu.Lock()
	c.sessions[s.ID] = s
	c.mu.Unlock()

	c.persistLocked(ctx, s)
	logger.Session(s.ID.String()).Info("session created", "creator_id", s.CreatorID, "participants", len(s.ParticipantIDs))
	c.publish(Event{Type: EventSessionCreated, Session: s})
	return s.Clone(), nil
}

// SubmitWords appends words to a session that has not started. Calling it
// twice with the same words appends them twice.
func (c *Coordinator) SubmitWords(ctx context.Context, sessionID uuid.UUID, words []domain.WordEntry) (domain.Session, error) {
	lock := c.lockSession(sessionID)
	defer lock.Unlock()

	s, err := c.sessionLocked(sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if s.IsStarted {
		return domain.Session{}, fmt.Errorf("submit words to %s: %w", sessionID, domain.ErrAlreadyStarted)
	}
	if len(words) == 0 {
		return s, nil
	}

	added := make([]domain.WordEntry, 0, len(words))
	for _, w := range words {
		if strings.TrimSpace(w.Text) == "" {
			return domain.Session{}, fmt.Errorf("empty word: %w", domain.ErrInvalidArgument)
		}
		if !s.HasParticipant(w.AuthorID) {
			return domain.Session{}, fmt.Errorf("author %q is not a participant of %s: %w", w.AuthorID, sessionID, domain.ErrInvalidArgument)
		}
		if w.ID == uuid.Nil {
			w.ID = uuid.New()
		}
		if w.Level <= 0 {
			w.Level = domain.DefaultWordLevel
		}
		w.SessionID = sessionID
		added = append(added, w)
	}

	s.Words = append(s.Words, added...)
	c.mu.Lock()
	c.sessions[sessionID] = s
	c.mu.Unlock()

	c.persistLocked(ctx, s)
	SubmissionsTotal.Inc()
	logger.Session(sessionID.String()).Info("words submitted", "added", len(added), "total", len(s.Words))
	c.publish(Event{Type: EventWordsAdded, Session: s, Added: len(added)})
	return s.Clone(), nil
}

// StartSession flips IsStarted. Starting a started session returns it as is.
// Authorization is left to the caller.
func (c *Coordinator) StartSession(ctx context.Context, sessionID uuid.UUID) (domain.Session, error) {
	lock := c.lockSession(sessionID)
	defer lock.Unlock()

	s, err := c.sessionLocked(sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if s.IsStarted {
		return s, nil
	}

	s.IsStarted = true
	c.mu.Lock()
	c.sessions[sessionID] = s
	c.mu.Unlock()

	c.persistLocked(ctx, s)
	logger.Session(sessionID.String()).Info("session started", "words", len(s.Words))
	c.publish(Event{Type: EventSessionStarted, Session: s})
	return s.Clone(), nil
}

// Session returns a copy of one session.
func (c *Coordinator) Session(sessionID uuid.UUID) (domain.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return domain.Session{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return s.Clone(), nil
}

// ListSessionsFor returns the sessions the user created or joined, newest first.
func (c *Coordinator) ListSessionsFor(userID string) []domain.Session {
	c.mu.RLock()
	var res []domain.Session
	for _, s := range c.sessions {
		if s.Involves(userID) {
			res = append(res, s.Clone())
		}
	}
	c.mu.RUnlock()

	slices.SortFunc(res, func(a, b domain.Session) int {
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return res
}

// OwnWords is what a participant already recorded in a session.
type OwnWords struct {
	Words    []domain.WordEntry `json:"words"`
	NextSlot int                `json:"next_slot"`
}

// OwnWords returns the user's words in submission order (at most
// WordsPerParticipant) and the slot the next recording goes into.
func (c *Coordinator) OwnWords(sessionID uuid.UUID, userID string) (OwnWords, error) {
	s, err := c.Session(sessionID)
	if err != nil {
		return OwnWords{}, err
	}

	words := s.WordsBy(userID)
	if len(words) > domain.WordsPerParticipant {
		words = words[:domain.WordsPerParticipant]
	}
	if words == nil {
		words = []domain.WordEntry{}
	}
	return OwnWords{
		Words:    words,
		NextSlot: min(len(words), domain.WordsPerParticipant-1),
	}, nil
}

// ParticipantNames returns display names of the session participants.
// Unknown users are skipped.
func (c *Coordinator) ParticipantNames(s domain.Session) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(s.ParticipantIDs))
	for _, id := range s.ParticipantIDs {
		if u, ok := c.users[id]; ok {
			names = append(names, u.DisplayName)
		}
	}
	return names
}

// CreatorName returns the creator's display name; false if unknown.
func (c *Coordinator) CreatorName(s domain.Session) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	u, ok := c.users[s.CreatorID]
	return u.DisplayName, ok
}

// DownloadAudio fetches the recording of a word in the session and returns a
// local path.
func (c *Coordinator) DownloadAudio(ctx context.Context, sessionID uuid.UUID, word string) (string, error) {
	s, err := c.Session(sessionID)
	if err != nil {
		return "", err
	}

	found := false
	for _, w := range s.Words {
		if w.Text == word && w.HasAudio() {
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("recording of %q in %s: %w", word, sessionID, domain.ErrNotFound)
	}

	path, err := c.transfer.Download(ctx, blob.Key(sessionID, word))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("download %q: %w", word, errors.Join(domain.ErrTransferFailure, err))
	}
	return path, nil
}

// Dirty reports how many records still wait for a successful store write.
func (c *Coordinator) Dirty() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dirty) + len(c.dirtyUsers)
}

// Flush retries every store write that failed earlier. It returns the first
// error seen; records that still fail stay dirty.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.RLock()
	sessionIDs := make([]uuid.UUID, 0, len(c.dirty))
	for id := range c.dirty {
		sessionIDs = append(sessionIDs, id)
	}
	userIDs := make([]string, 0, len(c.dirtyUsers))
	for id := range c.dirtyUsers {
		userIDs = append(userIDs, id)
	}
	c.mu.RUnlock()

	var firstErr error
	for _, id := range userIDs {
		u, err := c.User(id)
		if err != nil {
			continue
		}
		if err := c.store.PutUser(ctx, u); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("flush user %s: %w", id, errors.Join(domain.ErrPersistenceFailure, err))
			}
			continue
		}
		c.mu.Lock()
		delete(c.dirtyUsers, id)
		c.mu.Unlock()
	}

	for _, id := range sessionIDs {
		if err := c.flushSession(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Coordinator) flushSession(ctx context.Context, id uuid.UUID) error {
	lock := c.lockSession(id)
	defer lock.Unlock()

	c.mu.RLock()
	s, ok := c.sessions[id]
	_, dirty := c.dirty[id]
	c.mu.RUnlock()
	if !ok || !dirty {
		return nil
	}

	if err := c.store.PutSession(ctx, s); err != nil {
		return fmt.Errorf("flush session %s: %w", id, errors.Join(domain.ErrPersistenceFailure, err))
	}
	c.mu.Lock()
	delete(c.dirty, id)
	c.mu.Unlock()
	logger.Session(id.String()).Info("session flushed")
	return nil
}

// StartFlusher runs Flush every interval until ctx is done.
func (c *Coordinator) StartFlusher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.Dirty() == 0 {
					continue
				}
				if err := c.Flush(ctx); err != nil {
					logger.Warn("flush failed", "error", err, "dirty", c.Dirty())
				}
			}
		}
	}()
}

// lockSession returns the held per-session mutex. Callers unlock it.
func (c *Coordinator) lockSession(id uuid.UUID) *sync.Mutex {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l
}

// sessionLocked reads the latest state; the session lock must be held.
func (c *Coordinator) sessionLocked(id uuid.UUID) (domain.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s.Clone(), nil
}

// persistLocked pushes the full record. A failed write is logged and left
// for the flusher; it never fails the operation.
func (c *Coordinator) persistLocked(ctx context.Context, s domain.Session) {
	err := c.store.PutSession(ctx, s)

	c.mu.Lock()
	if err != nil {
		c.dirty[s.ID] = struct{}{}
	} else {
		delete(c.dirty, s.ID)
	}
	c.mu.Unlock()

	if err != nil {
		PersistenceFailures.WithLabelValues(repository.GamesCollection).Inc()
		logger.Session(s.ID.String()).Error("persist session failed",
			"error", fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err))
	}
}
