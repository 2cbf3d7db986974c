package ws

import (
	"context"
	"net/http"
	"os"

	"spellingbee/internal/logger"
	"spellingbee/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// RevocationChecker reports signed-out token ids.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

func upgrader() websocket.Upgrader {
	allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
}

// authenticate reads the JWT from the query; browsers cannot set headers
// on websocket requests.
func authenticate(c *gin.Context, revoked RevocationChecker) (string, bool) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return "", false
	}

	claims, err := service.ParseJWT(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return "", false
	}
	if revoked != nil && claims.JTI != "" {
		if ok, err := revoked.IsRevoked(c.Request.Context(), claims.JTI); err == nil && ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
			return "", false
		}
	}
	return claims.UserID, true
}

// HandlePlay serves /ws/play?token=&session=.
func HandlePlay(hub *Hub, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := authenticate(c, revoked)
		if !ok {
			return
		}
		sessionID, err := uuid.Parse(c.Query("session"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}

		up := upgrader()
		conn, err := up.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(userID, conn)
		if _, err := hub.OpenPlay(client, sessionID); err != nil {
			// report over the socket so the client sees why
			client.onStart = func(c *Client) {
				c.send(Message{Type: MsgError, Value: ErrorPayload{Message: openError(err)}})
				c.close()
			}
		}
		go client.Run()
	}
}

// HandleEvents serves /ws/events?token=, a feed of registry changes for the
// sessions the user is involved in.
func HandleEvents(hub *Hub, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := authenticate(c, revoked)
		if !ok {
			return
		}

		up := upgrader()
		conn, err := up.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(userID, conn)
		hub.Watch(client)
		go client.Run()
	}
}
