package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"spellingbee/internal/domain"
	"spellingbee/internal/game"
	"spellingbee/internal/logger"
	"spellingbee/internal/repository"
	"spellingbee/internal/service"

	"github.com/google/uuid"
)

var (
	ErrNotStarted    = errors.New("session not started")
	ErrAlreadyInPlay = errors.New("already playing this session")
	ErrForbidden     = errors.New("not a participant")
)

// Hub tracks play rooms and the clients watching registry events.
type Hub struct {
	coord *service.Coordinator
	plays repository.PlayResultStore
	clock game.Clock

	mu       sync.RWMutex
	rooms    map[string]*PlayRoom
	watchers map[*Client]struct{}
}

func NewHub(coord *service.Coordinator, plays repository.PlayResultStore) *Hub {
	return &Hub{
		coord:    coord,
		plays:    plays,
		rooms:    make(map[string]*PlayRoom),
		watchers: make(map[*Client]struct{}),
	}
}

// Run forwards coordinator events to watchers involved in the session
// until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	events, cancel := h.coord.Subscribe(256)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				h.dispatch(ev)
			}
		}
	}()
}

func (h *Hub) dispatch(ev service.Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.watchers))
	for c := range h.watchers {
		if ev.Session.Involves(c.UserID) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(Message{Type: MsgEvent, Value: ev})
	}
}

// OpenPlay attaches a play room for the client to a started session. One
// room per player and session at a time.
func (h *Hub) OpenPlay(c *Client, sessionID uuid.UUID) (*PlayRoom, error) {
	s, err := h.coord.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if !s.HasParticipant(c.UserID) {
		return nil, ErrForbidden
	}
	if !s.IsStarted {
		return nil, ErrNotStarted
	}

	key := roomKey(sessionID.String(), c.UserID)

	h.mu.Lock()
	if _, busy := h.rooms[key]; busy {
		h.mu.Unlock()
		return nil, ErrAlreadyInPlay
	}
	room := newPlayRoom(h, c, s)
	h.rooms[key] = room
	h.mu.Unlock()

	c.onStart = func(*Client) { room.Start() }
	c.onMessage = room.HandleMessage
	c.onClose = func(c *Client) { h.closeRoom(room) }

	logger.Info("play room opened", "room", room.ID, "rooms", h.RoomCount())
	return room, nil
}

func (h *Hub) closeRoom(room *PlayRoom) {
	room.Close()

	h.mu.Lock()
	if h.rooms[room.ID] == room {
		delete(h.rooms, room.ID)
	}
	h.mu.Unlock()
}

// Watch subscribes the client to events of the sessions it is involved in.
func (h *Hub) Watch(c *Client) {
	h.mu.Lock()
	h.watchers[c] = struct{}{}
	h.mu.Unlock()

	c.onMessage = func(c *Client, raw []byte) {
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err == nil && msg.Type == MsgPing {
			c.send(Message{Type: MsgPong})
		}
	}
	c.onClose = h.unwatch
}

func (h *Hub) unwatch(c *Client) {
	h.mu.Lock()
	delete(h.watchers, c)
	h.mu.Unlock()
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) WatcherCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

// openError maps OpenPlay failures to client-facing text.
func openError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "session not found"
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotStarted), errors.Is(err, ErrAlreadyInPlay):
		return err.Error()
	default:
		return fmt.Sprintf("cannot open play: %v", err)
	}
}
