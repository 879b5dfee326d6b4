package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func roundTrip(t *testing.T, q Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	want := []Message{
		{Type: TypeYearbookRebuild, Body: []byte("p-1")},
		{Type: TypeYearbookRebuild},
	}
	for _, m := range want {
		if err := q.Publish(ctx, m); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for i, w := range want {
		select {
		case got := <-msgs:
			if got.Type != w.Type || string(got.Body) != string(w.Body) {
				t.Errorf("message %d: expected %+v, got %+v", i, w, got)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestInMemoryRoundTrip(t *testing.T) {
	roundTrip(t, NewInMemory(4))
}

func TestRedisQueueRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := NewRedisQueue(client, "test:queue")
	q.timeout = 100 * time.Millisecond
	roundTrip(t, q)
}

func TestInMemoryPublishHonoursContext(t *testing.T) {
	q := NewInMemory(1)
	if err := q.Publish(context.Background(), Message{Type: "a"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Publish(ctx, Message{Type: "b"}); err == nil {
		t.Error("expected error publishing to a full queue with cancelled context")
	}
}

func TestConsumeClosesOnCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	msgs, _ := q.Consume(ctx)
	cancel()
	select {
	case _, ok := <-msgs:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after cancel")
	}
}
