// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tbourn/go-watchwell-backend/internal/affinity"
	"github.com/tbourn/go-watchwell-backend/internal/config"
	"github.com/tbourn/go-watchwell-backend/internal/domain"
	"github.com/tbourn/go-watchwell-backend/internal/http/handlers"
	"github.com/tbourn/go-watchwell-backend/internal/http/middleware"
	"github.com/tbourn/go-watchwell-backend/internal/repo"
	"github.com/tbourn/go-watchwell-backend/internal/services"
	"github.com/tbourn/go-watchwell-backend/internal/wellness"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// moodRepoShim adapts the repository free functions to the services.MoodRepo
// interface expected by the MoodService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type moodRepoShim struct{}

// CreateMoodSample proxies repo.CreateMoodSample.
func (moodRepoShim) CreateMoodSample(ctx context.Context, db *gorm.DB, userID, mood, source string, confidence float64, at time.Time) (*domain.MoodSample, error) {
	return repo.CreateMoodSample(ctx, db, userID, mood, source, confidence, at)
}

// GetMoodProfile proxies repo.GetMoodProfile.
func (moodRepoShim) GetMoodProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.MoodProfile, error) {
	return repo.GetMoodProfile(ctx, db, userID)
}

// LatestMoodSample proxies repo.LatestMoodSample.
func (moodRepoShim) LatestMoodSample(ctx context.Context, db *gorm.DB, userID string) (*domain.MoodSample, error) {
	return repo.LatestMoodSample(ctx, db, userID)
}

// ListMoodSamplesSince proxies repo.ListMoodSamplesSince.
func (moodRepoShim) ListMoodSamplesSince(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.MoodSample, error) {
	return repo.ListMoodSamplesSince(ctx, db, userID, since)
}

// CountMoodSamples proxies repo.CountMoodSamples (pagination support).
func (moodRepoShim) CountMoodSamples(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountMoodSamples(ctx, db, userID)
}

// ListMoodSamplesPage proxies repo.ListMoodSamplesPage (pagination support).
func (moodRepoShim) ListMoodSamplesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.MoodSample, error) {
	return repo.ListMoodSamplesPage(ctx, db, userID, offset, limit)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, matrix affinity.Matrix, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, sessionID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, sessionID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/engine/matrix
	engine := &wellness.Engine{
		DailyGoalMinutes:  cfg.Wellness.DailyGoalMinutes,
		BreakInterval:     cfg.Wellness.BreakInterval,
		BingeThreshold:    cfg.Wellness.BingeThreshold,
		CriticalThreshold: cfg.Wellness.CriticalThreshold,
	}

	moodSvc := services.NewMoodService(db, moodRepoShim{})
	sessSvc := services.NewSessionService(db, engine)
	wellSvc := services.NewWellnessService(db, engine)
	recSvc := services.NewRecommendationService(db, matrix, engine)
	recSvc.MaxCandidates = cfg.MaxCandidates

	h := handlers.New(moodSvc, sessSvc, wellSvc, recSvc)
	h.IdempotencyTTL = cfg.IdempotencyTTL

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Mood
		api.POST("/mood", h.RecordMood)
		api.GET("/mood", h.CurrentMood)
		api.GET("/mood/trend", h.MoodTrend)
		api.GET("/mood/history", h.MoodHistory)

		// Sessions
		api.POST("/sessions", h.StartSession)
		api.GET("/sessions/open", h.OpenSessions)
		api.PUT("/sessions/:id/progress", h.UpdateSession)
		api.POST("/sessions/:id/end", h.EndSession)

		// Wellness
		api.GET("/wellness/dashboard", h.WellnessDashboard)

		// Recommendations
		api.POST("/recommendations", h.Recommend)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
