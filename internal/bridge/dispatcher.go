package bridge

import (
	"github.com/corrreia/hostbridge/internal/hostevents"
	"github.com/corrreia/hostbridge/internal/runtime"
	"github.com/corrreia/hostbridge/internal/shared"
)

// Tick runs the dispatcher once on the host thread: it pumps host events,
// drains every pending bridge request in FIFO order and runs each handler.
// It never waits for new requests. A Tick issued from inside a handler is
// refused. Tick returns the number of requests dispatched.
func (b *Bridge) Tick() int {
	s := b.current.Load()
	if s == nil {
		return 0
	}
	if !b.ticking.CompareAndSwap(false, true) {
		shared.LogWarning("Bridge", "reentrant Tick ignored")
		return 0
	}
	defer b.ticking.Store(false)

	b.checkHostThread(s)

	b.events.Pump()
	pending := b.events.DrainPending(s.base, s.base+EventRange)

	dispatched := 0
	for _, ev := range pending {
		if b.dispatch(s, ev) {
			dispatched++
		}
	}
	return dispatched
}

func (b *Bridge) dispatch(s *session, ev hostevents.Event) bool {
	inv, err := decode(s.base, ev)
	if err != nil {
		b.drop(s, ev, err)
		return false
	}

	var ok bool
	switch inv.channel {
	case ChannelTimer:
		ok = b.dispatchTimer(s, inv)
	case ChannelMixer:
		ok = b.dispatchMixer(s, inv)
	}
	if ok {
		s.stats.dispatched.Add(1)
	}
	return ok
}

// dispatchTimer runs a timer handler and reports whether it ran
func (b *Bridge) dispatchTimer(s *session, inv invocation) bool {
	interval := uint32(inv.arg)

	handler, ok := b.handlers.timer(inv.ref)
	if !ok {
		// Removed while the request was queued; release the producer.
		b.drop(s, encode(s.base, inv), ErrUnknownHandler)
		b.deliver(s, ChannelTimer, s.timer.Publish(inv.ticket, interval, nil))
		return false
	}

	next := interval
	if !runtime.SafeCall("timer handler", func() { next = handler(interval) }) {
		next = interval
		b.panicked(s, ChannelTimer)
	}

	b.deliver(s, ChannelTimer, s.timer.Publish(inv.ticket, next, nil))
	return true
}

func (b *Bridge) dispatchMixer(s *session, inv invocation) bool {
	m := s.mixer

	handler, ok := b.handlers.mixer(inv.ref)
	if !ok {
		b.drop(s, encode(s.base, inv), ErrUnknownHandler)
		b.deliver(s, ChannelMixer, m.slot.Publish(inv.ticket, struct{}{}, nil))
		return false
	}

	// Work on a host-owned copy so the handler never touches the relay
	// while the audio thread might be reading it.
	staged := m.slot.Do(inv.ticket, func() {
		b.work = append(b.work[:0], m.relay.Bytes()...)
	})
	if !staged {
		// The audio thread gave up before the host got here.
		b.deliver(s, ChannelMixer, false)
		return false
	}
	if int(inv.arg) != len(b.work) {
		shared.LogWarning("Bridge", "mixer request length %d does not match staged %d", inv.arg, len(b.work))
	}

	if !runtime.SafeCall("mixer handler", func() { handler(b.work) }) {
		b.panicked(s, ChannelMixer)
		b.deliver(s, ChannelMixer, m.slot.Publish(inv.ticket, struct{}{}, nil))
		return true
	}

	b.deliver(s, ChannelMixer, m.slot.Publish(inv.ticket, struct{}{}, func() {
		m.relay.Commit(b.work)
	}))
	return true
}

// deliver accounts for a result the producer no longer waits for
func (b *Bridge) deliver(s *session, ch Channel, accepted bool) {
	if accepted {
		return
	}
	s.stats.late.Add(1)
	shared.LogDebug("Bridge", "%v result arrived after its producer gave up", ch)
	b.publish(TopicLate, s, ch, "result discarded")
}

func (b *Bridge) drop(s *session, ev hostevents.Event, err error) {
	s.stats.dropped.Add(1)
	shared.LogWarning("Bridge", "discarding %v: %v", ev, err)
	b.bus.Publish(TopicDropped, map[string]any{
		"session": s.id.String(),
		"channel": "",
		"detail":  err.Error(),
		"event":   ev.String(),
	})
}

func (b *Bridge) panicked(s *session, ch Channel) {
	s.stats.panics.Add(1)
	b.publish(TopicPanic, s, ch, "handler panicked")
}

// checkHostThread warns once per session when Tick moves between OS threads
func (b *Bridge) checkHostThread(s *session) {
	tid := int64(osThreadID())
	if tid == 0 {
		return
	}
	if s.hostThread.CompareAndSwap(0, tid) || s.hostThread.Load() == tid {
		return
	}
	if s.threadWarned.CompareAndSwap(false, true) {
		shared.LogWarning("Bridge", "Tick called from thread %d, host thread is %d", tid, s.hostThread.Load())
	}
}
