package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyResponse = errors.New("empty generation response")
	ErrNoJSONObject  = errors.New("no JSON object in response")
)

// Generator sends one prompt to the language model and returns the raw text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (r RateLimitError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", r.RetryAfter)
	}
	return "rate limited"
}
