package timers

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestOneShotTimerFiresOnce(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	fired := make(chan uint32, 4)
	if _, err := s.Schedule(5, func(interval uint32) uint32 {
		fired <- interval
		return 0
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-fired:
		if got != 5 {
			t.Errorf("callback interval = %d, want 5", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	time.Sleep(30 * time.Millisecond)
	if len(fired) != 0 {
		t.Errorf("one-shot timer fired %d extra times", len(fired))
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d after one-shot, want 0", s.Count())
	}
}

func TestRepeatingTimerUsesReturnedInterval(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var mu sync.Mutex
	var intervals []uint32
	done := make(chan struct{})

	_, err := s.Schedule(2, func(interval uint32) uint32 {
		mu.Lock()
		defer mu.Unlock()
		intervals = append(intervals, interval)
		if len(intervals) == 3 {
			close(done)
			return 0
		}
		return interval + 1
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not repeat")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []uint32{2, 3, 4}
	for i := range want {
		if intervals[i] != want[i] {
			t.Fatalf("intervals = %v, want %v", intervals, want)
		}
	}
}

func TestCancel(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var calls atomic.Int32
	id, _ := s.Schedule(50, func(uint32) uint32 {
		calls.Add(1)
		return 50
	})

	if !s.Cancel(id) {
		t.Fatal("Cancel returned false for a live timer")
	}
	if s.Cancel(id) {
		t.Error("second Cancel returned true")
	}
	if s.Cancel(ID(9999)) {
		t.Error("Cancel of unknown id returned true")
	}

	time.Sleep(80 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("cancelled timer fired %d times", calls.Load())
	}
}

func TestCancelFromInsideCallbackStopsRescheduling(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var calls atomic.Int32
	var id ID
	idReady := make(chan struct{})
	id, _ = s.Schedule(1, func(uint32) uint32 {
		<-idReady
		calls.Add(1)
		s.Cancel(id)
		return 1
	})
	close(idReady)

	time.Sleep(40 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestTimersFireInDueOrder(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	order := make(chan int, 3)
	for _, d := range []uint32{30, 10, 20} {
		d := d
		s.Schedule(d, func(uint32) uint32 {
			order <- int(d)
			return 0
		})
	}

	want := []int{10, 20, 30}
	for _, w := range want {
		select {
		case got := <-order:
			if got != w {
				t.Fatalf("fired %d, want %d", got, w)
			}
		case <-time.After(time.Second):
			t.Fatal("timers did not fire")
		}
	}
}

func TestCallbacksAreSerial(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		s.Schedule(1, func(uint32) uint32 {
			defer wg.Done()
			n := active.Add(1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			return 0
		})
	}
	wg.Wait()

	if maxActive.Load() != 1 {
		t.Errorf("max concurrent callbacks = %d, want 1", maxActive.Load())
	}
}

func TestPanickingCallbackIsStopped(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var calls atomic.Int32
	s.Schedule(1, func(uint32) uint32 {
		calls.Add(1)
		panic("boom")
	})

	time.Sleep(30 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
}

func TestScheduleErrors(t *testing.T) {
	s := NewScheduler()

	if _, err := s.Schedule(1, nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("nil callback: err = %v", err)
	}

	s.Close()
	s.Close()
	if _, err := s.Schedule(1, func(uint32) uint32 { return 0 }); !errors.Is(err, ErrSchedulerClosed) {
		t.Errorf("after close: err = %v", err)
	}
}
