// Package app wires configuration into the backends shared by the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"snapbook/internal/cloudinary"
	"snapbook/internal/config"
	"snapbook/internal/httpmiddleware"
	"snapbook/internal/metrics"
	"snapbook/internal/queue"
	"snapbook/internal/snapbook"
	"snapbook/internal/store"
	"snapbook/internal/yearbook"
)

// NewLogger returns a JSON logger in production and a text logger otherwise.
func NewLogger(cfg config.App) *slog.Logger {
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Runtime holds the wired service and the connections it owns.
type Runtime struct {
	Config   config.App
	Log      *slog.Logger
	Service  *snapbook.Service
	Queue    queue.Queue
	DB       *store.DB
	Redis    *store.Redis
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// Build connects the configured backends and creates the service.
func Build(ctx context.Context, cfg config.App, log *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.Metrics = metrics.New(rt.Registry)

	if cfg.CacheBackend == "redis" || cfg.QueueBackend == "redis" || cfg.RateLimitBackend == "redis" {
		rt.Redis = store.NewRedis(cfg.RedisAddr)
		if !rt.Redis.Healthy(ctx) {
			log.WarnContext(ctx, "redis not reachable", "addr", cfg.RedisAddr)
		}
	}

	var st snapbook.Store
	switch cfg.StoreBackend {
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if err := store.Migrate(ctx, db.Client); err != nil {
			_ = db.Close()
			rt.Close()
			return nil, err
		}
		rt.DB = db
		st = snapbook.NewRepository(db.Client)
	default:
		log.WarnContext(ctx, "using in-memory store; data is lost on restart")
		st = snapbook.NewMemStore()
	}

	var cache yearbook.Cache
	if cfg.CacheBackend == "redis" {
		cache = yearbook.NewRedisCache(rt.Redis.Client, "", cfg.YearbookCacheTTL)
	} else {
		cache = yearbook.NewMemoryCache()
	}

	if cfg.QueueBackend == "redis" {
		rt.Queue = queue.NewRedisQueue(rt.Redis.Client, "")
	} else {
		rt.Queue = queue.NewInMemory(64)
	}

	var images snapbook.ImageStore = snapbook.InlineImages{}
	if cfg.CloudinaryConfigured() {
		images = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.InfoContext(ctx, "cloudinary configured", "cloud", cfg.CloudinaryCloudName)
	} else {
		log.InfoContext(ctx, "cloudinary not configured; photos are stored inline")
	}

	rt.Service = snapbook.NewService(snapbook.Deps{
		Store:   st,
		Images:  images,
		Cache:   cache,
		Queue:   rt.Queue,
		Metrics: rt.Metrics,
		Logger:  log,
	})
	return rt, nil
}

// Limiter returns the configured request limiter.
func (rt *Runtime) Limiter() httpmiddleware.Limiter {
	if rt.Config.RateLimitBackend == "redis" && rt.Redis != nil {
		return httpmiddleware.NewRedisWindow(rt.Redis.Client, rt.Config.RateLimitPerMin)
	}
	return httpmiddleware.NewTokenBucket(rt.Config.RateLimitPerMin, rt.Config.RateLimitPerMin)
}

// Health reports connectivity of the backends in use.
func (rt *Runtime) Health(ctx context.Context) map[string]bool {
	out := map[string]bool{}
	if rt.Config.StoreBackend == "postgres" {
		out["db"] = rt.DB.Healthy(ctx)
	}
	if rt.Redis != nil {
		out["redis"] = rt.Redis.Healthy(ctx)
	}
	return out
}

// Rebuild adapts the service rebuild to the worker callback.
func (rt *Runtime) Rebuild(ctx context.Context) error {
	entries, err := rt.Service.RebuildYearbook(ctx)
	if err != nil {
		return fmt.Errorf("rebuild yearbook: %w", err)
	}
	rt.Log.DebugContext(ctx, "yearbook entries cached", "entries", len(entries))
	return nil
}

// Close releases connections.
func (rt *Runtime) Close() {
	if err := rt.DB.Close(); err != nil {
		rt.Log.Warn("db close failed", "error", err)
	}
	if err := rt.Redis.Close(); err != nil {
		rt.Log.Warn("redis close failed", "error", err)
	}
}
