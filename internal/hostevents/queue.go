package hostevents

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eapache/queue"
)

var (
	ErrQueueFull      = errors.New("hostevents: queue is full")
	ErrQueueClosed    = errors.New("hostevents: queue is closed")
	ErrRangeExhausted = errors.New("hostevents: user event range exhausted")
	ErrInvalidRange   = errors.New("hostevents: invalid range size")
)

// PumpFunc feeds OS-level events into the queue. It runs on the host thread
// at the start of each Pump call.
type PumpFunc func(q *Queue)

// Queue is a bounded, thread-safe FIFO of host events.
// Inject may be called from any thread; DrainPending and Pump belong to the
// host thread.
type Queue struct {
	mu       sync.Mutex
	events   *queue.Queue
	capacity int
	closed   bool
	nextUser uint32
	pumps    []PumpFunc
}

// NewQueue creates a queue holding at most capacity pending events.
// capacity <= 0 means unbounded.
func NewQueue(capacity int) *Queue {
	return &Queue{
		events:   queue.New(),
		capacity: capacity,
		nextUser: UserEventBase,
	}
}

// RegisterEventRange reserves count consecutive user event ids and returns the first.
func (q *Queue) RegisterEventRange(count int) (uint32, error) {
	if count <= 0 {
		return 0, ErrInvalidRange
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if uint64(q.nextUser)+uint64(count)-1 > uint64(LastEvent) {
		return 0, fmt.Errorf("%w: %d ids requested", ErrRangeExhausted, count)
	}

	base := q.nextUser
	q.nextUser += uint32(count)
	return base, nil
}

// Inject appends an event. It fails when the queue is full or closed.
func (q *Queue) Inject(ev Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.capacity > 0 && q.events.Length() >= q.capacity {
		return ErrQueueFull
	}

	q.events.Add(ev)
	return nil
}

// DrainPending removes and returns, in FIFO order, every pending event with
// lo <= Type < hi. Events outside the range keep their relative order.
// It never blocks.
func (q *Queue) DrainPending(lo, hi uint32) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.events.Length()
	if n == 0 {
		return nil
	}

	var drained []Event
	for i := 0; i < n; i++ {
		ev := q.events.Remove().(Event)
		if ev.Type >= lo && ev.Type < hi {
			drained = append(drained, ev)
			continue
		}
		q.events.Add(ev)
	}
	return drained
}

// Len returns the number of pending events
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.events.Length()
}

// AddPump registers a function that feeds OS events on every Pump
func (q *Queue) AddPump(fn PumpFunc) {
	q.mu.Lock()
	q.pumps = append(q.pumps, fn)
	q.mu.Unlock()
}

// Pump runs the registered pump functions once
func (q *Queue) Pump() {
	q.mu.Lock()
	pumps := q.pumps
	q.mu.Unlock()

	for _, fn := range pumps {
		fn(q)
	}
}

// Close rejects further injections. Pending events stay drainable.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
