package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/c360-copilot/backend/internal/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachingGenerator_HitsCache(t *testing.T) {
	calls := 0
	next := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "answer:" + prompt, nil
	})
	g := CachingGenerator{Next: next, Cache: cache.NewMemoryCache(), Model: "m", TTL: time.Minute, Logger: zerolog.Nop()}

	for i := 0; i < 3; i++ {
		out, err := g.Generate(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "answer:p", out)
	}
	assert.Equal(t, 1, calls)
}

func TestCachingGenerator_DoesNotCacheErrors(t *testing.T) {
	calls := 0
	next := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", errors.New("boom")
	})
	g := CachingGenerator{Next: next, Cache: cache.NewMemoryCache(), Model: "m", Logger: zerolog.Nop()}

	_, err := g.Generate(context.Background(), "p")
	assert.Error(t, err)
	_, err = g.Generate(context.Background(), "p")
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestMockGenerator_ShapesByPrompt(t *testing.T) {
	m := MockGenerator{ModelVersion: "mock-1"}
	ctx := context.Background()

	out, err := m.Generate(ctx, "Case ID: 500X\nSubject: Login failure\nreturn \"next_actions\" ...")
	require.NoError(t, err)
	var analysis struct {
		Summary     string   `json:"summary"`
		NextActions []string `json:"next_actions"`
	}
	require.NoError(t, DecodeObject(out, &analysis))
	assert.Contains(t, analysis.Summary, "500X")
	assert.Len(t, analysis.NextActions, 3)

	out, err = m.Generate(ctx, "Original Summary:\nmail bob@corp.io\nSensitive Data Patterns\n\"sanitized_summary\"")
	require.NoError(t, err)
	var san struct {
		Sanitized string `json:"sanitized_summary"`
	}
	require.NoError(t, DecodeObject(out, &san))
	assert.Equal(t, "mail [EMAIL]", san.Sanitized)

	out, err = m.Generate(ctx, "Batch 2 of 3\nRecord count: 50\n\"batch_summary\"")
	require.NoError(t, err)
	var chunk struct {
		Summary string `json:"batch_summary"`
	}
	require.NoError(t, DecodeObject(out, &chunk))
	assert.True(t, strings.HasPrefix(chunk.Summary, "Batch 2 covered 50"))
}

func TestMockGenerator_Deterministic(t *testing.T) {
	m := MockGenerator{}
	a, _ := m.Generate(context.Background(), `Case ID: 1 "next_actions"`)
	b, _ := m.Generate(context.Background(), `Case ID: 1 "next_actions"`)
	assert.Equal(t, a, b)
}

func TestMockGenerator_HonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := MockGenerator{}.Generate(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(ErrEmptyResponse))
	assert.True(t, IsRetryable(RateLimitError{RetryAfter: time.Second}))
	assert.True(t, IsRetryable(errors.New("connection reset")))
}

func TestNewOpenAIGenerator_RequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator(OpenAIConfig{Model: "m"}, zerolog.Nop())
	assert.Error(t, err)

	g, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "k", Model: "m"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "m", g.Model())
}
