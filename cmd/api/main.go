package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"snapbook/internal/app"
	"snapbook/internal/config"
	"snapbook/internal/handler"
	"snapbook/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := app.NewLogger(cfg)
	slog.SetDefault(log)

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	// An in-memory queue only reaches a consumer in this process.
	if cfg.QueueBackend == "memory" {
		msgs, err := rt.Queue.Consume(ctx)
		if err != nil {
			return err
		}
		go worker.Run(ctx, msgs, rt.Rebuild, log.With("component", "worker"))
	}

	h := handler.New(rt.Service, handler.Options{
		SigningKey: cfg.JWTSigningKey,
		Issuer:     cfg.JWTIssuer,
		SessionTTL: cfg.SessionTTL,
		PageSize:   cfg.YearbookPageSize,
		Release:    cfg.Production(),
		Logger:     log,
		Metrics:    rt.Metrics,
		Limiter:    rt.Limiter(),
		Gatherer:   rt.Registry,
		Health:     rt.Health,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", "error", err)
	}
	log.Info("server exited")
	return nil
}
