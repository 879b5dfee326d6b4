package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"snapbook/internal/config"
	"snapbook/internal/httpmiddleware"
	"snapbook/internal/queue"
)

func memoryConfig() config.App {
	return config.App{
		StoreBackend:     "memory",
		CacheBackend:     "memory",
		QueueBackend:     "memory",
		RateLimitBackend: "memory",
		RateLimitPerMin:  10,
		YearbookPageSize: 2,
	}
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuildMemory(t *testing.T) {
	ctx := context.Background()
	rt, err := Build(ctx, memoryConfig(), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	if rt.Redis != nil || rt.DB != nil {
		t.Error("memory backends should not open connections")
	}
	if _, ok := rt.Queue.(*queue.InMemory); !ok {
		t.Errorf("expected in-memory queue, got %T", rt.Queue)
	}
	if _, ok := rt.Limiter().(*httpmiddleware.TokenBucket); !ok {
		t.Errorf("expected token bucket, got %T", rt.Limiter())
	}
	if h := rt.Health(ctx); len(h) != 0 {
		t.Errorf("expected no health checks, got %v", h)
	}

	if _, err := rt.Service.Register(ctx, "Ada"); err != nil {
		t.Fatal(err)
	}
	if err := rt.Rebuild(ctx); err != nil {
		t.Errorf("rebuild: %v", err)
	}
}

func TestBuildRedisBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisAddr = mr.Addr()
	cfg.CacheBackend = "redis"
	cfg.QueueBackend = "redis"
	cfg.RateLimitBackend = "redis"

	ctx := context.Background()
	rt, err := Build(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	if _, ok := rt.Queue.(*queue.RedisQueue); !ok {
		t.Errorf("expected redis queue, got %T", rt.Queue)
	}
	if _, ok := rt.Limiter().(*httpmiddleware.RedisWindow); !ok {
		t.Errorf("expected redis window, got %T", rt.Limiter())
	}
	if h := rt.Health(ctx); !h["redis"] {
		t.Errorf("expected healthy redis, got %v", h)
	}

	mr.Close()
	if h := rt.Health(ctx); h["redis"] {
		t.Error("expected redis to be unhealthy after shutdown")
	}
}
