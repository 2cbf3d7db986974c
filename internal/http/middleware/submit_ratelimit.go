package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// SubmitRateLimit limits word submissions per user (not per IP).
// Requires JWT middleware to run before this.
func SubmitRateLimit(maxSubmits int, window time.Duration) gin.HandlerFunc {
	local := newWindowCounter(window)

	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var val int64
		if redisClient != nil {
			key := "submit_rl:" + userID + ":" + strconv.FormatInt(int64(window.Seconds()), 10)
			n, err := incrWindow(c.Request.Context(), key, window)
			if err != nil {
				c.Header("X-SubmitRateLimit-Error", "redis-error")
				c.Next()
				return
			}
			val = n
		} else {
			val = int64(local.hit(userID))
		}

		c.Header("X-SubmitRateLimit-Limit", strconv.Itoa(maxSubmits))
		c.Header("X-SubmitRateLimit-Remaining", strconv.FormatInt(max(0, int64(maxSubmits)-val), 10))

		if val > int64(maxSubmits) {
			RLBlocked.WithLabelValues("submit:" + c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "submit rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues("submit:" + c.FullPath()).Inc()
		c.Next()
	}
}
