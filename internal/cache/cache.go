package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is shared by the generation cache and the rate limiter.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

func GenerationKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return "c360:gen:" + hex.EncodeToString(sum[:])
}

// RateLimitKey buckets requests per subject per minute window.
func RateLimitKey(subject string, now time.Time) string {
	return "c360:rl:" + subject + ":" + now.UTC().Format("200601021504")
}
