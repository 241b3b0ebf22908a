// Command server boots the watch-wellness backend: configuration, logging,
// the SQLite store (with the mood/genre affinity seed), OpenTelemetry, and
// the Gin HTTP API, then runs until interrupted and shuts down gracefully.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/plugin/opentelemetry/tracing"

	_ "github.com/tbourn/go-watchwell-backend/docs"
	"github.com/tbourn/go-watchwell-backend/internal/affinity"
	"github.com/tbourn/go-watchwell-backend/internal/config"
	httpapi "github.com/tbourn/go-watchwell-backend/internal/http"
	"github.com/tbourn/go-watchwell-backend/internal/observability"
	"github.com/tbourn/go-watchwell-backend/internal/repo"
	"github.com/tbourn/go-watchwell-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting watchwell backend")

	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		log.Fatal().Err(err).Msg("attach gorm tracing plugin")
	}

	ctx := context.Background()

	// Seed the default mood/genre affinity matrix, then serve from the stored
	// entries so operators can tune weights without a rebuild.
	matrix := affinity.Default()
	if err := repo.SeedAffinity(ctx, db, matrix); err != nil {
		log.Fatal().Err(err).Msg("seed affinity matrix")
	}
	if rows, err := repo.ListAffinityEntries(ctx, db); err != nil {
		log.Warn().Err(err).Msg("load affinity matrix; using built-in defaults")
	} else if len(rows) > 0 {
		flat := make([]struct {
			Mood, Genre string
			Score       float64
		}, 0, len(rows))
		for _, row := range rows {
			flat = append(flat, struct {
				Mood, Genre string
				Score       float64
			}{row.Mood, row.Genre, row.Score})
		}
		matrix = affinity.FromEntries(flat)
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup opentelemetry")
	}

	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	httpapi.RegisterRoutes(r, db, matrix, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()
	log.Info().Str("addr", srv.Addr).Msg("listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
