package httpapi

import (
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/c360-copilot/backend/internal/ai"
	"github.com/c360-copilot/backend/internal/auth"
	"github.com/c360-copilot/backend/internal/cache"
	"github.com/c360-copilot/backend/internal/config"
	"github.com/c360-copilot/backend/internal/crm"
	"github.com/c360-copilot/backend/internal/http/handlers"
	"github.com/c360-copilot/backend/internal/http/middleware"
	"github.com/c360-copilot/backend/internal/relay"
	"github.com/c360-copilot/backend/internal/service"

	_ "github.com/c360-copilot/backend/docs"
)

// Deps are the process-wide collaborators built once in main.
type Deps struct {
	Source crm.Source
	AI     ai.Generator
	Cache  cache.Cache
	Issuer *auth.Issuer
	Hub    *relay.Hub
}

func Router(cfg config.Config, deps Deps, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	origins := cfg.CORSOrigins()
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Source: deps.Source,
		Analysis: &service.AnalysisService{
			Source:   deps.Source,
			AI:       deps.AI,
			Logger:   logger.With().Str("component", "analysis").Logger(),
			Examples: service.LoadExamples(),
		},
		QA: &service.QAService{
			Source: deps.Source,
			AI:     deps.AI,
			Logger: logger.With().Str("component", "qa").Logger(),
		},
		Insights: &service.InsightsService{
			AI:         deps.AI,
			Logger:     logger.With().Str("component", "insights").Logger(),
			ChunkSize:  cfg.InsightsChunkSize,
			Concurrent: cfg.ParallelBatches,
			ChunkDelay: cfg.BatchDelay,
		},
		Agents: &service.AgentDirectory{
			Source: deps.Source,
			Logger: logger.With().Str("component", "agents").Logger(),
		},
		Issuer:       deps.Issuer,
		Hub:          deps.Hub,
		Validator:    handlers.NewValidator(),
		Logger:       logger,
		RejectClosed: cfg.AnalyzeRejectClosed,
		WSOrigins:    wsOriginPatterns(origins),
	}

	r.GET("/", h.Root)
	r.GET("/ws/:role/:user_id", h.Relay)

	api := r.Group("/api/v1")
	{
		api.GET("/health", h.Health)
		api.GET("/salesforce/health", h.SourceHealth)
		api.POST("/auth/token", h.Token)
	}

	limit := middleware.RateLimit(deps.Cache, cfg.RateLimitPerMinute, logger)

	authed := api.Group("")
	authed.Use(middleware.Authenticate(deps.Issuer), limit)
	{
		authed.GET("/agents/available", h.AvailableAgents)
		authed.GET("/cases/:id", h.CaseDetails)
		authed.POST("/accounts/search", h.SearchAccount)
	}

	agents := authed.Group("")
	agents.Use(middleware.RequireRole(auth.RoleAgent))
	{
		agents.POST("/cases/analyze", h.AnalyzeCase)
		agents.POST("/cases/:id/notify-agents", h.NotifyAgents)
		agents.POST("/cases/:id/save-summary", h.SaveSummary)
		agents.POST("/cases/:id/query", h.QueryCase)
		agents.POST("/accounts/:id/insights", h.AccountInsights)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// wsOriginPatterns turns CORS origins into the host patterns the WebSocket
// handshake checks against.
func wsOriginPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, "*")
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}
