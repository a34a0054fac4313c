// Package live fans out debate events to spectators.
//
// The Broadcaster is an owned service object: constructed once in main and
// injected into the orchestrator and the HTTP layer, never package-global
// state. The registry is keyed by debate id so spectators of one debate
// never see another's events.
package live

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/agora-arena/agora/internal/model"
)

// Callback receives one event. Callbacks run synchronously on the
// publishing goroutine; slow consumers should hand off to a channel.
type Callback func(model.StreamEvent)

type subscriber struct {
	id int
	fn Callback
}

// Broadcaster is a per-debate publish/subscribe registry. Safe for
// concurrent subscribe/unsubscribe/publish from multiple in-flight debates
// and spectator connections.
type Broadcaster struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[uuid.UUID][]subscriber
}

// NewBroadcaster creates an empty registry.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger,
		subs:   make(map[uuid.UUID][]subscriber),
	}
}

// Subscribe registers fn for events of one debate and returns the matching
// unsubscribe function. Unsubscribing removes exactly this registration;
// when a debate's subscriber set becomes empty the entry is pruned.
func (b *Broadcaster) Subscribe(debateID uuid.UUID, fn Callback) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[debateID] = append(b.subs[debateID], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(debateID, id) })
	}
}

func (b *Broadcaster) remove(debateID uuid.UUID, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[debateID]
	for i, s := range subs {
		if s.id == id {
			b.subs[debateID] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[debateID]) == 0 {
		delete(b.subs, debateID)
	}
}

// Publish delivers ev to every subscriber of debateID in subscription
// order. A panicking callback is contained so delivery continues to the
// remaining subscribers.
func (b *Broadcaster) Publish(debateID uuid.UUID, ev model.StreamEvent) {
	b.mu.RLock()
	subs := b.subs[debateID]
	// Copy so callbacks can unsubscribe without racing the iteration.
	snapshot := make([]subscriber, len(subs))
	copy(snapshot, subs)
	b.mu.RUnlock()

	for _, s := range snapshot {
		b.deliver(s, ev)
	}
}

func (b *Broadcaster) deliver(s subscriber, ev model.StreamEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("live: subscriber callback panicked",
				"event", ev.Event, "panic", r)
		}
	}()
	s.fn(ev)
}

// SubscriberCount returns the number of active subscribers for a debate.
func (b *Broadcaster) SubscriberCount(debateID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[debateID])
}
