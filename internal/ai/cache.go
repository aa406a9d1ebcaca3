package ai

import (
	"context"
	"time"

	"github.com/c360-copilot/backend/internal/cache"
	"github.com/rs/zerolog"
)

// CachingGenerator memoises successful generations by prompt. Cache errors
// are logged and otherwise ignored.
type CachingGenerator struct {
	Next   Generator
	Cache  cache.Cache
	Model  string
	TTL    time.Duration
	Logger zerolog.Logger
}

func (g CachingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	key := cache.GenerationKey(g.Model, prompt)
	if b, ok, err := g.Cache.Get(ctx, key); err != nil {
		g.Logger.Warn().Err(err).Msg("generation cache read failed")
	} else if ok {
		return string(b), nil
	}

	out, err := g.Next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := g.Cache.Set(ctx, key, []byte(out), g.TTL); err != nil {
		g.Logger.Warn().Err(err).Msg("generation cache write failed")
	}
	return out, nil
}
