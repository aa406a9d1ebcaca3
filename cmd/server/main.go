package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/c360-copilot/backend/internal/ai"
	"github.com/c360-copilot/backend/internal/auth"
	"github.com/c360-copilot/backend/internal/cache"
	"github.com/c360-copilot/backend/internal/config"
	"github.com/c360-copilot/backend/internal/crm"
	"github.com/c360-copilot/backend/internal/db"
	httpapi "github.com/c360-copilot/backend/internal/http"
	"github.com/c360-copilot/backend/internal/relay"
)

const devJWTSecret = "dev-secret-change-me"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", "c360-copilot").Logger()

	ctx := context.Background()

	source, closeSource := buildSource(ctx, cfg, logger)
	defer closeSource()

	store, closeCache := buildCache(cfg, logger)
	defer closeCache()

	generator, model := buildGenerator(cfg, logger)
	if cfg.GenerationCacheTTL > 0 {
		generator = ai.CachingGenerator{
			Next:   generator,
			Cache:  store,
			Model:  model,
			TTL:    cfg.GenerationCacheTTL,
			Logger: logger.With().Str("component", "generation_cache").Logger(),
		}
		logger.Info().Dur("ttl", cfg.GenerationCacheTTL).Msg("generation cache enabled")
	}

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn().Msg("JWT_SECRET_KEY not set, using development secret")
		secret = devJWTSecret
	}
	issuer := auth.NewIssuer(secret, time.Duration(cfg.JWTExpireMinutes)*time.Minute)

	router := httpapi.Router(cfg, httpapi.Deps{
		Source: source,
		AI:     generator,
		Cache:  store,
		Issuer: issuer,
		Hub:    relay.NewHub(logger.With().Str("component", "relay").Logger()),
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("crm_backend", cfg.CRMBackend).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

func buildSource(ctx context.Context, cfg config.Config, logger zerolog.Logger) (crm.Source, func()) {
	switch cfg.CRMBackend {
	case config.BackendSalesforce:
		sf, err := crm.NewSalesforceSource(crm.SalesforceConfig{
			Domain:        cfg.SalesforceDomain,
			Username:      cfg.SalesforceUsername,
			Password:      cfg.SalesforcePassword,
			SecurityToken: cfg.SalesforceSecurityToken,
			ClientID:      cfg.SalesforceClientID,
			ClientSecret:  cfg.SalesforceClientSecret,
			APIVersion:    cfg.SalesforceAPIVersion,
			SummaryObject: cfg.SummaryObjectAPIName,
			SummaryField:  cfg.SummaryFieldName,
			CaseIDField:   cfg.CaseIDFieldName,
		}, logger.With().Str("component", "salesforce").Logger())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure salesforce")
		}
		return sf, func() {}

	case config.BackendPostgres:
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		if err := store.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}
		if cfg.DBSeed {
			if err := store.Seed(ctx, crm.NewDemoSource()); err != nil {
				logger.Fatal().Err(err).Msg("failed to seed demo data")
			}
			logger.Info().Msg("database seeded with demo data")
		}
		return store, store.Close

	default:
		logger.Info().Msg("using in-memory demo records")
		return crm.NewDemoSource(), func() {}
	}
}

func buildCache(cfg config.Config, logger zerolog.Logger) (cache.Cache, func()) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryCache(), func() {}
	}
	rc, err := cache.NewRedisCache(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, cache calls will fail open")
	}
	return rc, func() { _ = rc.Close() }
}

func buildGenerator(cfg config.Config, logger zerolog.Logger) (ai.Generator, string) {
	if cfg.LLMAPIKey == "" {
		logger.Info().Msg("using mock generator")
		return ai.MockGenerator{ModelVersion: "mock-v1"}, "mock-v1"
	}
	g, err := ai.NewOpenAIGenerator(ai.OpenAIConfig{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxRetries:  cfg.LLMMaxRetries,
		Timeout:     cfg.LLMTimeout,
	}, logger.With().Str("component", "llm").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generator")
	}
	return g, g.Model()
}
