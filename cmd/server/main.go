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

	"github.com/quantaops/l1-backend/internal/ai"
	"github.com/quantaops/l1-backend/internal/config"
	"github.com/quantaops/l1-backend/internal/db"
	httpapi "github.com/quantaops/l1-backend/internal/http"
	"github.com/quantaops/l1-backend/internal/service"
	"github.com/quantaops/l1-backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "l1-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var engine ai.Engine
	if cfg.AIURL == "" {
		engine = ai.KeywordEngine{}
		logger.Info().Msg("using keyword classification engine")
	} else {
		engine = ai.LLMEngine{BaseURL: cfg.AIURL, Model: cfg.AIModel, APIKey: cfg.AIAPIKey}
	}

	processor := &service.Processor{Store: store, Engine: engine, Logger: logger}
	router := httpapi.Router(cfg, store, processor, logger)

	var workers *worker.Runner
	if cfg.WorkersEnabled {
		workers, err = worker.New(store, logger, cfg.ReplySchedule, cfg.MetricsSchedule)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid worker schedule")
		}
		workers.Start()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if workers != nil {
		workers.Stop()
	}
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
