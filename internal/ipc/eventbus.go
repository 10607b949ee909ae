// Package ipc provides a publish/subscribe bus that carries bridge
// incidents (timeouts, dropped events, handler panics) to observers such as
// the journal.
package ipc

import (
	"sync"
	"sync/atomic"

	"github.com/corrreia/hostbridge/internal/shared"
)

// AllTopics subscribes a callback to every topic
const AllTopics = "*"

type subscription struct {
	id       uint64
	owner    string // owning component (for bulk cleanup)
	callback func(data map[string]any)
}

// Bus is a topic-keyed event bus. Publish may be called from any thread,
// including the timer and audio threads, so callbacks must be quick and
// must not block.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string][]*subscription // topic -> subscriptions
	nextSubID uint64
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscribe registers a callback for a topic. Returns a subscription ID.
func (b *Bus) Subscribe(topic string, callback func(data map[string]any)) uint64 {
	return b.SubscribeFor("", topic, callback)
}

// SubscribeFor registers a callback with an owning component name.
func (b *Bus) SubscribeFor(owner, topic string, callback func(data map[string]any)) uint64 {
	id := atomic.AddUint64(&b.nextSubID, 1)
	s := &subscription{id: id, owner: owner, callback: callback}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	return id
}

// Unsubscribe removes a subscription by ID.
func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, entries := range b.subs {
		for i, s := range entries {
			if s.id == id {
				b.subs[topic] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// UnsubscribeAll removes all subscriptions owned by owner.
func (b *Bus) UnsubscribeAll(owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, entries := range b.subs {
		var kept []*subscription
		for _, s := range entries {
			if s.owner != owner {
				kept = append(kept, s)
			}
		}
		b.subs[topic] = kept
	}
}

// Publish sends data to the subscribers of topic and to AllTopics
// subscribers. Callbacks run synchronously with panic recovery; the topic is
// added to data under "topic".
func (b *Bus) Publish(topic string, data map[string]any) {
	if b == nil {
		return
	}

	b.mu.RLock()
	entries := b.subs[topic]
	wildcard := b.subs[AllTopics]
	b.mu.RUnlock()

	if len(entries) == 0 && len(wildcard) == 0 {
		return
	}
	if data == nil {
		data = make(map[string]any, 1)
	}
	data["topic"] = topic

	for _, s := range entries {
		b.deliver(s, topic, data)
	}
	if topic != AllTopics {
		for _, s := range wildcard {
			b.deliver(s, topic, data)
		}
	}
}

func (b *Bus) deliver(s *subscription, topic string, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			shared.LogError("IPC", "Panic in subscriber %d for topic '%s': %v", s.id, topic, r)
		}
	}()
	s.callback(data)
}
