package ipc

import "testing"

func TestPublishReachesTopicAndWildcard(t *testing.T) {
	b := NewBus()
	var direct, all []string

	b.Subscribe("bridge.timeout", func(data map[string]any) {
		direct = append(direct, data["topic"].(string))
	})
	b.Subscribe(AllTopics, func(data map[string]any) {
		all = append(all, data["topic"].(string))
	})

	b.Publish("bridge.timeout", map[string]any{"channel": "timer"})
	b.Publish("bridge.dropped", nil)

	if len(direct) != 1 || direct[0] != "bridge.timeout" {
		t.Errorf("direct = %v", direct)
	}
	if len(all) != 2 || all[0] != "bridge.timeout" || all[1] != "bridge.dropped" {
		t.Errorf("all = %v", all)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus()
	calls := 0
	id := b.Subscribe("x", func(map[string]any) { calls++ })
	b.Subscribe("x", func(map[string]any) {})

	b.Unsubscribe(id)
	b.Publish("x", nil)

	if calls != 0 {
		t.Errorf("unsubscribed callback called %d times", calls)
	}
}

func TestUnsubscribeAllByOwner(t *testing.T) {
	b := NewBus()
	journal, other := 0, 0
	b.SubscribeFor("journal", "a", func(map[string]any) { journal++ })
	b.SubscribeFor("journal", AllTopics, func(map[string]any) { journal++ })
	b.SubscribeFor("stats", "a", func(map[string]any) { other++ })

	b.UnsubscribeAll("journal")
	b.Publish("a", nil)

	if journal != 0 || other != 1 {
		t.Errorf("journal=%d other=%d, want 0 and 1", journal, other)
	}
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	b := NewBus()
	reached := false
	b.Subscribe("x", func(map[string]any) { panic("subscriber") })
	b.Subscribe("x", func(map[string]any) { reached = true })

	b.Publish("x", nil)

	if !reached {
		t.Error("second subscriber not reached after first panicked")
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var b *Bus
	b.Publish("x", nil)
}
