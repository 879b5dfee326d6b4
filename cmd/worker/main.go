package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"snapbook/internal/app"
	"snapbook/internal/config"
	"snapbook/internal/worker"
)

// Worker consumes rebuild requests and refreshes the cached yearbook.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := app.NewLogger(cfg).With("component", "worker")
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App, log *slog.Logger) error {
	if cfg.QueueBackend != "redis" {
		return errors.New("worker needs a shared queue; set QUEUE_BACKEND=redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Warm the cache before the first request arrives.
	if err := rt.Rebuild(ctx); err != nil {
		log.Warn("initial rebuild failed", "error", err)
	}

	messages, err := rt.Queue.Consume(ctx)
	if err != nil {
		return err
	}

	log.Info("worker started, waiting for messages")
	worker.Run(ctx, messages, rt.Rebuild, log)
	log.Info("worker stopped")
	return nil
}
