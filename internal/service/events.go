package service

import (
	"spellingbee/internal/domain"
)

type EventType string

const (
	EventSessionCreated EventType = "session_created"
	EventWordsAdded     EventType = "words_added"
	EventSessionStarted EventType = "session_started"
)

// Event is emitted after the registry changed and the change was applied in memory.
type Event struct {
	Type    EventType      `json:"type"`
	Session domain.Session `json:"session"`
	Added   int            `json:"added,omitempty"`
}

// Subscribe returns a channel receiving every registry change. Slow
// subscribers lose events rather than block the coordinator. The returned
// func unsubscribes and closes the channel.
func (c *Coordinator) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	c.subMu.Lock()
	c.subSeq++
	id := c.subSeq
	c.subs[id] = ch
	c.subMu.Unlock()

	var once bool
	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if once {
			return
		}
		once = true
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Coordinator) publish(ev Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, ch := range c.subs {
		select {
		case ch <- ev.clone():
		default:
			EventsDropped.Inc()
		}
	}
}

func (ev Event) clone() Event {
	ev.Session = ev.Session.Clone()
	return ev
}
