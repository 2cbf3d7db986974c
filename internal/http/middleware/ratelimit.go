package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type clientInfo struct {
	last  time.Time
	count int
}

// windowCounter is a fixed-window counter kept in process memory.
type windowCounter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
	window  time.Duration
}

func newWindowCounter(window time.Duration) *windowCounter {
	return &windowCounter{clients: make(map[string]*clientInfo), window: window}
}

// hit counts one request for key and returns the count in the current window.
func (w *windowCounter) hit(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	ci, ok := w.clients[key]
	if !ok || now.Sub(ci.last) > w.window {
		if len(w.clients) > 10000 {
			w.sweep(now)
		}
		w.clients[key] = &clientInfo{last: now, count: 1}
		return 1
	}
	ci.count++
	return ci.count
}

func (w *windowCounter) sweep(now time.Time) {
	for k, ci := range w.clients {
		if now.Sub(ci.last) > w.window {
			delete(w.clients, k)
		}
	}
}

// SimpleRateLimit blocks clients that send more than maxRequests per window.
// Used when Redis is not configured; limits are per process.
func SimpleRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	counter := newWindowCounter(window)
	return func(c *gin.Context) {
		if counter.hit(c.ClientIP()) > maxRequests {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// RateLimit picks the Redis limiter when a client is configured and the
// in-process one otherwise.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient == nil {
		return SimpleRateLimit(maxRequests, window)
	}
	return RedisRateLimit(maxRequests, window)
}
