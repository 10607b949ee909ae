// Package timers implements the runtime's timer subsystem: a single timer
// thread that fires callbacks in due order. A callback returns the next
// interval in milliseconds; 0 stops the timer.
package timers

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corrreia/hostbridge/internal/runtime"
)

var (
	ErrSchedulerClosed = errors.New("timers: scheduler is closed")
	ErrNilCallback     = errors.New("timers: nil callback")
)

// ID identifies a scheduled timer. Zero is never a valid ID.
type ID uint64

// Callback runs on the timer thread with the interval that just elapsed and
// returns the next interval, 0 to stop.
type Callback func(interval uint32) uint32

// timer represents a scheduled callback
type timer struct {
	id       ID
	interval uint32
	due      time.Time
	callback Callback
	index    int // heap position, -1 when not queued
	stopped  bool
}

// Scheduler owns the timer thread
type Scheduler struct {
	mu     sync.Mutex
	timers map[ID]*timer
	due    timerHeap
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	closed bool
	nextID uint64
	now    func() time.Time
}

// NewScheduler starts a scheduler and its timer thread
func NewScheduler() *Scheduler {
	s := &Scheduler{
		timers: make(map[ID]*timer),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go s.loop()
	return s
}

// Schedule arms a timer that fires after delay milliseconds
func (s *Scheduler) Schedule(delay uint32, cb Callback) (ID, error) {
	if cb == nil {
		return 0, ErrNilCallback
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSchedulerClosed
	}

	id := ID(atomic.AddUint64(&s.nextID, 1))
	t := &timer{
		id:       id,
		interval: delay,
		due:      s.now().Add(time.Duration(delay) * time.Millisecond),
		callback: cb,
	}
	s.timers[id] = t
	heap.Push(&s.due, t)
	s.signal()

	return id, nil
}

// Cancel stops a timer. It returns false if the timer does not exist or has
// already finished. A callback already executing completes, but the timer is
// not rescheduled.
func (s *Scheduler) Cancel(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[id]
	if !ok {
		return false
	}

	t.stopped = true
	delete(s.timers, id)
	if t.index >= 0 {
		heap.Remove(&s.due, t.index)
	}
	s.signal()
	return true
}

// Count returns the number of active timers
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops the timer thread after any executing callback returns.
// Pending timers are discarded.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.timers = make(map[ID]*timer)
	s.due = nil
	close(s.stop)
	s.mu.Unlock()

	<-s.done
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// loop is the timer thread. Callbacks run here one at a time.
func (s *Scheduler) loop() {
	defer close(s.done)

	wait := time.NewTimer(time.Hour)
	defer wait.Stop()

	for {
		s.mu.Lock()
		var next *timer
		delay := time.Hour
		if len(s.due) > 0 {
			next = s.due[0]
			delay = next.due.Sub(s.now())
		}

		if next != nil && delay <= 0 {
			heap.Pop(&s.due)
			s.mu.Unlock()

			s.fire(next)
			continue
		}
		s.mu.Unlock()

		if !wait.Stop() {
			select {
			case <-wait.C:
			default:
			}
		}
		wait.Reset(delay)

		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-wait.C:
		}
	}
}

// fire runs one callback with panic recovery and reschedules it
func (s *Scheduler) fire(t *timer) {
	next := runtime.SafeCallWithResult("timer callback", uint32(0), func() uint32 {
		return t.callback(t.interval)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || t.stopped {
		return
	}
	if next == 0 {
		delete(s.timers, t.id)
		return
	}

	t.interval = next
	t.due = s.now().Add(time.Duration(next) * time.Millisecond)
	heap.Push(&s.due, t)
}

// timerHeap is a min-heap of timers ordered by due time
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].id < h[j].id
	}
	return h[i].due.Before(h[j].due)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
