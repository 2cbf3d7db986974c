package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisRateLimitIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	pass := os.Getenv("REDIS_PASSWORD")
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			db = n
		}
	}

	InitRedisRateLimiter(addr, pass, db)
	if redisClient == nil {
		t.Skip("redis unavailable")
	}
	defer UseRedis(nil)

	// odd window so keys from earlier runs do not collide
	w := 3 * time.Second
	limit := 2

	r := gin.New()
	r.GET("/test", RedisRateLimit(limit, w), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	client := &http.Client{}
	for i := 0; i < limit; i++ {
		res, err := client.Get(srv.URL + "/test")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		res.Body.Close()
		if res.StatusCode != 200 {
			t.Fatalf("expected 200 got %d", res.StatusCode)
		}
	}

	res, err := client.Get(srv.URL + "/test")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != 429 {
		t.Fatalf("expected 429 got %d", res.StatusCode)
	}
}

func TestRedisRateLimitFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	defer UseRedis(nil)

	// nothing listens on port 1, so every INCR errors
	unreachable := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer unreachable.Close()

	tests := []struct {
		name      string
		client    *redis.Client
		errHeader string
	}{
		{"no client", nil, ""},
		{"redis error", unreachable, "redis-error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			UseRedis(tc.client)

			r := gin.New()
			r.GET("/test", RedisRateLimit(1, time.Minute), func(c *gin.Context) {
				c.JSON(200, gin.H{"ok": true})
			})

			// well past the limit of one, every request still goes through
			for i := 0; i < 3; i++ {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
				if w.Code != http.StatusOK {
					t.Fatalf("request %d: expected 200 got %d", i, w.Code)
				}
				if got := w.Header().Get("X-RateLimit-Error"); got != tc.errHeader {
					t.Fatalf("request %d: X-RateLimit-Error = %q, want %q", i, got, tc.errHeader)
				}
			}
		})
	}
}
