// Package eventbus provides the in-process broadcast channel shared by every surface.
package eventbus

import (
	"sync"

	"github.com/rs/zerolog"
)

type subscription struct {
	id      uint64
	handler func(payload any)
}

// LocalBus delivers each published payload to the topic's subscribers in the
// publisher's goroutine, in subscription order. Delivery is best-effort: a
// panicking handler is logged and skipped.
type LocalBus struct {
	log zerolog.Logger

	mu     sync.RWMutex
	nextID uint64
	topics map[string][]subscription
}

func NewLocalBus(logger zerolog.Logger) *LocalBus {
	return &LocalBus{log: logger, topics: make(map[string][]subscription)}
}

// Publish broadcasts payload on topic. Publishing with no subscribers is a no-op.
func (b *LocalBus) Publish(topic string, payload any) {
	b.mu.RLock()
	subscribers := b.topics[topic]
	b.mu.RUnlock()

	for _, sub := range subscribers {
		b.deliver(topic, sub, payload)
	}
}

// Subscribe registers handler for topic and returns a function removing it.
func (b *LocalBus) Subscribe(topic string, handler func(payload any)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	// Copy on write so Publish can iterate a snapshot without holding the lock.
	current := b.topics[topic]
	next := make([]subscription, len(current), len(current)+1)
	copy(next, current)
	b.topics[topic] = append(next, subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(topic, id) })
	}
}

func (b *LocalBus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.topics[topic]
	next := make([]subscription, 0, len(current))
	for _, sub := range current {
		if sub.id != id {
			next = append(next, sub)
		}
	}
	if len(next) == 0 {
		delete(b.topics, topic)
		return
	}
	b.topics[topic] = next
}

func (b *LocalBus) deliver(topic string, sub subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("topic", topic).Interface("panic", r).Msg("event handler panicked")
		}
	}()
	sub.handler(payload)
}
