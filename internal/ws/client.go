package ws

import (
	"encoding/json"
	"sync"
	"time"

	"spellingbee/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	sendWait   = 2 * time.Second
)

// Client is one websocket connection. onStart runs after the ready
// handshake is queued, the read pump hands every message to onMessage, and
// onClose runs once after the connection is gone.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	Done   chan struct{}

	onStart   func(*Client)
	onMessage func(*Client, []byte)
	onClose   func(*Client)
	closeOnce sync.Once
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		Done:   make(chan struct{}),
	}
}

// Run starts the pumps and blocks until the peer disconnects.
func (c *Client) Run() {
	go c.writePump()
	c.send(Message{Type: MsgReady})
	if c.onStart != nil {
		c.onStart(c)
	}
	c.readPump()
}

// send marshals msg and queues it; a client that stops reading is dropped.
func (c *Client) send(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("ws marshal failed", "type", msg.Type, "error", err)
		return false
	}

	select {
	case <-c.Done:
		return false
	default:
	}

	select {
	case c.Send <- data:
		return true
	case <-c.Done:
		return false
	case <-time.After(sendWait):
		logger.Warn("ws send timeout", "user_id", c.UserID, "type", msg.Type)
		return false
	}
}

func (c *Client) readPump() {
	defer c.close()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "user_id", c.UserID, "error", err)
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.onMessage != nil {
			c.onMessage(c, msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "user_id", c.UserID, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.Done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			// flush what was queued before the close
			for n := len(c.Send); n > 0; n-- {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.Done)
		if c.onClose != nil {
			c.onClose(c)
		}
		// writePump flushes and closes the connection
	})
}
