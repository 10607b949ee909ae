// Package handshake provides the result slot a blocked background thread
// waits on while the host thread produces its result.
//
// A Slot pairs a mutex with a broadcast wake channel (a condition variable
// with a deadline) and guards one result value. Each handshake is identified
// by a ticket: the producer arms the slot with a fresh ticket, the consumer
// publishes against that ticket, and anything addressed to another ticket is
// ignored. This keeps a late result from one invocation out of the next.
package handshake

import (
	"sync"
	"time"
)

// Outcome describes how Await returned
type Outcome int

const (
	Published Outcome = iota // a result was published for the ticket
	TimedOut                 // the deadline elapsed first
	Closed                   // the slot was closed or the ticket was disarmed
)

func (o Outcome) String() string {
	switch o {
	case Published:
		return "published"
	case TimedOut:
		return "timed out"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Slot is a single-value handshake shared by one producer thread and the
// host thread. The zero value is not usable; call New.
type Slot[T any] struct {
	mu     sync.Mutex
	ticket uint64 // armed ticket, 0 when idle
	ready  bool
	value  T
	wake   chan struct{}
	closed bool
}

// New returns an idle slot
func New[T any]() *Slot[T] {
	return &Slot[T]{wake: make(chan struct{})}
}

// Arm marks the slot "not ready" for ticket and runs prepare under the lock.
// It returns false, without running prepare, if the slot is closed.
// ticket must be non-zero.
func (s *Slot[T]) Arm(ticket uint64, prepare func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	var zero T
	s.ticket = ticket
	s.ready = false
	s.value = zero
	s.wake = make(chan struct{})

	if prepare != nil {
		prepare()
	}
	return true
}

// Publish stores v as the result of ticket and wakes every waiter. commit
// runs under the lock before the result becomes visible. Publishing to a
// ticket that is not armed, or publishing twice, does nothing and returns false.
func (s *Slot[T]) Publish(ticket uint64, v T, commit func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || ticket == 0 || ticket != s.ticket || s.ready {
		return false
	}

	if commit != nil {
		commit()
	}
	s.value = v
	s.ready = true
	close(s.wake)
	return true
}

// Do runs fn under the lock if ticket is still armed and unpublished
func (s *Slot[T]) Do(ticket uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || ticket == 0 || ticket != s.ticket || s.ready {
		return false
	}
	fn()
	return true
}

// Await blocks until ticket's result is published, timeout elapses, or the
// slot is closed. On anything but Published it returns fallback, and a
// timeout disarms the ticket so a late Publish is rejected. finish runs
// under the lock before Await returns, whatever the outcome.
func (s *Slot[T]) Await(ticket uint64, timeout time.Duration, fallback T, finish func()) (T, Outcome) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		switch {
		case s.closed || s.ticket != ticket:
			return s.finish(fallback, Closed, finish)
		case s.ready:
			v := s.value
			s.ticket = 0
			return s.finish(v, Published, finish)
		}

		wake := s.wake
		s.mu.Unlock()
		select {
		case <-wake:
			s.mu.Lock()
		case <-timer.C:
			s.mu.Lock()
			// A publish may have landed between the deadline and relocking.
			if s.ready && s.ticket == ticket && !s.closed {
				v := s.value
				s.ticket = 0
				return s.finish(v, Published, finish)
			}
			if s.ticket == ticket {
				s.ticket = 0
			}
			return s.finish(fallback, TimedOut, finish)
		}
	}
}

func (s *Slot[T]) finish(v T, o Outcome, finish func()) (T, Outcome) {
	if finish != nil {
		finish()
	}
	return v, o
}

// Cancel disarms ticket without publishing. Used when the request could not
// be delivered.
func (s *Slot[T]) Cancel(ticket uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticket == ticket {
		s.ticket = 0
	}
}

// Close wakes every waiter with Closed and rejects further Arm and Publish
// calls. Closing twice is a no-op.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.ticket = 0
	// wake is already closed once a result was published
	if !s.ready {
		close(s.wake)
	}
}

// IsClosed reports whether Close has been called
func (s *Slot[T]) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
