package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/souldiary/notegen/internal/api"
	"github.com/souldiary/notegen/internal/config"
	"github.com/souldiary/notegen/internal/events"
	"github.com/souldiary/notegen/internal/ollama"
	"github.com/souldiary/notegen/internal/pipeline"
	"github.com/souldiary/notegen/internal/store"
	"github.com/souldiary/notegen/internal/summary"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("notegen starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Ollama client
	llm := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel, slog.Default())
	slog.Info("ollama client ready", "url", cfg.OllamaURL, "model", cfg.OllamaModel)

	// Event bus (optional — the pipeline works without NATS, just no
	// downstream notifications)
	var bus *events.Bus
	if cfg.NatsURL != "" {
		bus, err = events.Connect(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured — running without event notifications")
	}

	// Orchestrator — the main pipeline
	orch := pipeline.New(db, llm, bus, cfg.Workers, slog.Default())

	// Case summaries
	sum := summary.NewService(db, llm, slog.Default())

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, orch, sum, db, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("notegen ready", "port", cfg.Port, "workers", cfg.Workers)

	// Graceful shutdown: drain in-flight generation before exiting.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer drainCancel()
	if err := orch.Shutdown(drainCtx); err != nil {
		slog.Warn("shutdown before all generation finished", "error", err)
	}

	cancel()
	slog.Info("notegen stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
