package live

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/agora-arena/agora/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishFansOutInSubscriptionOrder(t *testing.T) {
	b := NewBroadcaster(testLogger())
	debateID := uuid.New()

	var got []string
	unsub1 := b.Subscribe(debateID, func(ev model.StreamEvent) {
		got = append(got, "first:"+ev.Event)
	})
	defer unsub1()
	unsub2 := b.Subscribe(debateID, func(ev model.StreamEvent) {
		got = append(got, "second:"+ev.Event)
	})
	defer unsub2()

	b.Publish(debateID, model.StreamEvent{Event: model.EventJudging})

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0] != "first:judging" || got[1] != "second:judging" {
		t.Errorf("delivery order: %v", got)
	}
}

func TestPublishIsScopedToDebate(t *testing.T) {
	b := NewBroadcaster(testLogger())
	watched, other := uuid.New(), uuid.New()

	delivered := 0
	unsub := b.Subscribe(watched, func(model.StreamEvent) { delivered++ })
	defer unsub()

	b.Publish(other, model.StreamEvent{Event: model.EventArgument})
	if delivered != 0 {
		t.Errorf("subscriber received an event for another debate")
	}
}

func TestUnsubscribeStopsDeliveryAndPrunes(t *testing.T) {
	b := NewBroadcaster(testLogger())
	debateID := uuid.New()

	delivered := 0
	unsub := b.Subscribe(debateID, func(model.StreamEvent) { delivered++ })

	b.Publish(debateID, model.StreamEvent{Event: model.EventRoundStart})
	unsub()
	unsub() // Idempotent.
	b.Publish(debateID, model.StreamEvent{Event: model.EventRoundStart})

	if delivered != 1 {
		t.Errorf("expected 1 delivery, got %d", delivered)
	}
	if n := b.SubscriberCount(debateID); n != 0 {
		t.Errorf("expected pruned registry, got %d subscribers", n)
	}
	// The map entry itself must be gone, not an empty slice.
	b.mu.RLock()
	_, exists := b.subs[debateID]
	b.mu.RUnlock()
	if exists {
		t.Error("empty subscriber set was not pruned from the registry")
	}
}

func TestPanickingCallbackDoesNotBlockOthers(t *testing.T) {
	b := NewBroadcaster(testLogger())
	debateID := uuid.New()

	unsub1 := b.Subscribe(debateID, func(model.StreamEvent) { panic("spectator bug") })
	defer unsub1()
	delivered := 0
	unsub2 := b.Subscribe(debateID, func(model.StreamEvent) { delivered++ })
	defer unsub2()

	b.Publish(debateID, model.StreamEvent{Event: model.EventResult})

	if delivered != 1 {
		t.Errorf("second subscriber did not receive the event after first panicked")
	}
}

func TestConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	b := NewBroadcaster(testLogger())
	debateID := uuid.New()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				unsub := b.Subscribe(debateID, func(model.StreamEvent) {})
				b.Publish(debateID, model.StreamEvent{Event: model.EventSpeaking})
				unsub()
			}
		}()
	}
	wg.Wait()

	if n := b.SubscriberCount(debateID); n != 0 {
		t.Errorf("expected empty registry after churn, got %d", n)
	}
}
