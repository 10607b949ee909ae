package hostbridge

import (
	"sync"
	"time"
)

// Scope groups timers and incident subscriptions so a component can release
// everything it registered with one Close.
type Scope struct {
	host *Host
	name string

	mu        sync.Mutex
	timers    []*Timer
	rawTimers []uint64
	subs      []uint64
	closed    bool
}

// NewScope returns an empty scope bound to h
func (h *Host) NewScope(name string) *Scope {
	return &Scope{host: h, name: name}
}

// Name returns the scope name
func (s *Scope) Name() string {
	return s.name
}

// After is Host.After, tracked by the scope
func (s *Scope) After(delay time.Duration, callback func()) *Timer {
	return s.trackTimer(s.host.After(delay, callback))
}

// Every is Host.Every, tracked by the scope
func (s *Scope) Every(interval time.Duration, callback func()) *Timer {
	return s.trackTimer(s.host.Every(interval, callback))
}

// AddTimer is Host.AddTimer, tracked by the scope
func (s *Scope) AddTimer(delay time.Duration, handler func(interval uint32) uint32) (uint64, error) {
	id, err := s.host.AddTimer(delay, handler)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.host.RemoveTimer(id)
		return 0, ErrClosed
	}
	s.rawTimers = append(s.rawTimers, id)
	return id, nil
}

// OnIncident is Host.OnIncident, tracked by the scope
func (s *Scope) OnIncident(topic string, fn func(data map[string]any)) uint64 {
	id := s.host.OnIncident(topic, fn)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.host.bus.Unsubscribe(id)
		return 0
	}
	s.subs = append(s.subs, id)
	return id
}

func (s *Scope) trackTimer(t *Timer) *Timer {
	if t == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		t.Stop()
		return nil
	}
	s.timers = append(s.timers, t)
	return t
}

// Close stops every tracked timer and removes every tracked subscription.
// Registrations made through a closed scope are undone immediately.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	timers, raw, subs := s.timers, s.rawTimers, s.subs
	s.timers, s.rawTimers, s.subs = nil, nil, nil
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	for _, id := range raw {
		s.host.RemoveTimer(id)
	}
	for _, id := range subs {
		s.host.bus.Unsubscribe(id)
	}

	s.host.log.WithField("scope", s.name).Debug("released %d timers, %d subscriptions", len(timers)+len(raw), len(subs))
}
