package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself or the Gemini compatibility layer).
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
	maxRetries  int
	backoff     time.Duration
	logger      zerolog.Logger
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
}

func NewOpenAIGenerator(cfg OpenAIConfig, logger zerolog.Logger) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("LLM_API_KEY is not set")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is not set")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries are handled here so they can be logged and bounded by ctx
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &OpenAIGenerator{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  retries,
		backoff:     time.Second,
		logger:      logger,
	}, nil
}

func (g *OpenAIGenerator) Model() string { return g.model }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * g.backoff
			var rl RateLimitError
			if errors.As(lastErr, &rl) && rl.RetryAfter > wait {
				wait = rl.RetryAfter
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		out, err := g.once(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return "", err
		}
		g.logger.Warn().Err(err).Int("attempt", attempt+1).Str("model", g.model).Msg("generation failed, retrying")
	}
	return "", lastErr
}

func (g *OpenAIGenerator) once(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       g.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("openai chat: %w", RateLimitError{RetryAfter: retryAfter(apiErr.Response)})
		}
		return "", fmt.Errorf("openai chat: %w", err)
	}
	g.logger.Debug().
		Str("model", g.model).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Msg("generation completed")

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// IsRetryable reports whether a generation error is worth another attempt:
// rate limits, server errors and transport failures are; client errors and
// context cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return false
	}
	var rl RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v + "s"); err == nil {
		return d
	}
	return 0
}
