// Package worker consumes queue messages and rebuilds the cached yearbook.
package worker

import (
	"context"
	"log/slog"

	"snapbook/internal/queue"
)

// RebuildFunc refreshes the cached yearbook.
type RebuildFunc func(ctx context.Context) error

// Run processes messages until msgs is closed or ctx is done. Rebuild
// requests that are already waiting are coalesced into one rebuild.
func Run(ctx context.Context, msgs <-chan queue.Message, rebuild RebuildFunc, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if msg.Type != queue.TypeYearbookRebuild {
				log.WarnContext(ctx, "unknown message type", "type", msg.Type)
				continue
			}
			skipped := drain(ctx, msgs, log)
			if err := rebuild(ctx); err != nil {
				log.ErrorContext(ctx, "yearbook rebuild failed", "error", err)
				continue
			}
			log.InfoContext(ctx, "yearbook rebuilt", "coalesced", skipped)
		}
	}
}

// drain discards rebuild requests that are immediately available. It stops
// at the first other message, which is logged like one read by Run.
func drain(ctx context.Context, msgs <-chan queue.Message, log *slog.Logger) int {
	n := 0
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return n
			}
			if msg.Type != queue.TypeYearbookRebuild {
				log.WarnContext(ctx, "unknown message type", "type", msg.Type)
				return n
			}
			n++
		default:
			return n
		}
	}
}
