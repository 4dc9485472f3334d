package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

func TestRedisPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	subClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer subClient.Close()
	sub := subClient.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bus := NewRedis(mr.Addr(), "", 0, zerolog.Nop())
	defer bus.Close()
	bus.Publish(ctx, Event{Kind: KindAssignmentCreated, EntityID: "a1"})

	select {
	case msg := <-sub.Channel():
		var e Event
		if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if e.Kind != KindAssignmentCreated || e.EntityID != "a1" {
			t.Fatalf("unexpected event: %+v", e)
		}
		if e.At.IsZero() {
			t.Fatalf("expected publish to stamp the event time")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
	}
}

func TestRedisPublishUnavailable(t *testing.T) {
	bus := NewRedis("127.0.0.1:1", "", 0, zerolog.Nop())
	defer bus.Close()
	// Must not panic or block; failures are logged only.
	bus.Publish(context.Background(), Event{Kind: KindDashboardRefresh})
}

func TestMemoryBusSubscribe(t *testing.T) {
	bus := NewMemory()
	var got []Event
	unsub := bus.Subscribe(func(e Event) { got = append(got, e) })

	bus.Publish(context.Background(), Event{Kind: KindRulesUpdated})
	unsub()
	bus.Publish(context.Background(), Event{Kind: KindRulesUpdated})

	if len(got) != 1 {
		t.Fatalf("expected 1 event after unsubscribe, got %d", len(got))
	}
}
