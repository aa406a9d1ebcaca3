package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/c360-copilot/backend/internal/cache"
)

// RateLimit allows perMinute requests per token subject (or client IP) in a
// fixed one-minute window. Counter failures let the request through.
func RateLimit(store cache.Cache, perMinute int, logger zerolog.Logger) gin.HandlerFunc {
	return rateLimit(store, perMinute, logger, time.Now)
}

func rateLimit(store cache.Cache, perMinute int, logger zerolog.Logger, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		if perMinute <= 0 || store == nil {
			c.Next()
			return
		}
		subject := "ip:" + c.ClientIP()
		if claims, ok := ClaimsFrom(c); ok {
			subject = "sub:" + claims.Subject
		}

		t := now()
		count, err := store.IncrWithExpiry(c.Request.Context(), cache.RateLimitKey(subject, t), time.Minute)
		if err != nil {
			logger.Warn().Err(err).Str("subject", subject).Msg("rate limit counter unavailable")
			c.Next()
			return
		}

		remaining := perMinute - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if int(count) > perMinute {
			reset := t.Truncate(time.Minute).Add(time.Minute).Sub(t)
			c.Header("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
			abort(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests")
			return
		}
		c.Next()
	}
}
