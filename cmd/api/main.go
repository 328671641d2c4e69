// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adiadia/concierge/internal/config"
	"github.com/adiadia/concierge/internal/dispatch"
	"github.com/adiadia/concierge/internal/documents"
	"github.com/adiadia/concierge/internal/fallback"
	"github.com/adiadia/concierge/internal/gate"
	"github.com/adiadia/concierge/internal/logging"
	"github.com/adiadia/concierge/internal/notify"
	"github.com/adiadia/concierge/internal/persistence/postgres"
	"github.com/adiadia/concierge/internal/pipeline"
	"github.com/adiadia/concierge/internal/recorder"
	"github.com/adiadia/concierge/internal/repository"
	httptransport "github.com/adiadia/concierge/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env)

	var (
		history recorder.Recorder
		health  httptransport.HealthChecker
	)
	if cfg.UsesPostgres() {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer pool.Close()

		if cfg.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
				log.Fatalf("schema migration failed: %v", err)
			}
		}

		history = repository.NewInteractionRepository(pool, logger)
		health = postgres.NewSchemaHealthChecker(pool)
	} else {
		store, err := recorder.NewSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("sqlite open failed: %v", err)
		}
		defer store.Close()
		history = store
	}

	dispatcher := dispatch.NewMemory(time.Now)

	p := pipeline.New(pipeline.Deps{
		Gate: gate.New(dispatcher, gate.Options{
			Timeout: cfg.DispatchTimeout,
			Logger:  logger,
		}),
		Fallback: fallback.New(fallback.TemplateGenerator{}, fallback.Options{
			Timeout: cfg.GenerationTimeout,
			Logger:  logger,
		}),
		Recorder:  history,
		Documents: documents.NewStore(cfg.DocumentsDir),
		Notifier:  notify.New(cfg.WebhookURL, cfg.WebhookSecret, logger, nil),
		Logger:    logger,
	})

	handler := httptransport.NewRouter(httptransport.Deps{
		Pipeline:  p,
		Sessions:  pipeline.NewRegistry(),
		History:   history,
		Health:    health,
		Logger:    logger,
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,

		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			"addr", cfg.HTTPAddr,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
