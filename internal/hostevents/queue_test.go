package hostevents

import (
	"errors"
	"sync"
	"testing"
)

func TestRegisterEventRangeIsContiguousAndNeverReused(t *testing.T) {
	q := NewQueue(0)

	a, err := q.RegisterEventRange(3)
	if err != nil {
		t.Fatal(err)
	}
	b, err := q.RegisterEventRange(2)
	if err != nil {
		t.Fatal(err)
	}

	if a != UserEventBase {
		t.Errorf("first base = 0x%x, want 0x%x", a, UserEventBase)
	}
	if b != a+3 {
		t.Errorf("second base = 0x%x, want 0x%x", b, a+3)
	}
}

func TestRegisterEventRangeErrors(t *testing.T) {
	q := NewQueue(0)

	if _, err := q.RegisterEventRange(0); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("count 0: err = %v, want ErrInvalidRange", err)
	}

	total := int(LastEvent-UserEventBase) + 1
	if _, err := q.RegisterEventRange(total); err != nil {
		t.Fatalf("whole range: %v", err)
	}
	if _, err := q.RegisterEventRange(1); !errors.Is(err, ErrRangeExhausted) {
		t.Errorf("after exhaustion: err = %v, want ErrRangeExhausted", err)
	}
}

func TestInjectRespectsCapacityAndClose(t *testing.T) {
	q := NewQueue(2)

	if err := q.Inject(Event{Type: EventKeyDown}); err != nil {
		t.Fatal(err)
	}
	if err := q.Inject(Event{Type: EventKeyUp}); err != nil {
		t.Fatal(err)
	}
	if err := q.Inject(Event{Type: EventQuit}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("third inject: err = %v, want ErrQueueFull", err)
	}

	q.DrainPending(0, LastEvent+1)
	q.Close()
	if err := q.Inject(Event{Type: EventQuit}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("after close: err = %v, want ErrQueueClosed", err)
	}
}

func TestDrainPendingKeepsFIFOAndForeignEvents(t *testing.T) {
	q := NewQueue(0)
	base, _ := q.RegisterEventRange(2)

	in := []Event{
		{Type: base, Code: 1},
		{Type: EventKeyDown, Code: 10},
		{Type: base + 1, Code: 2},
		{Type: base + 2, Code: 99}, // outside the range
		{Type: base, Code: 3},
		{Type: EventKeyUp, Code: 11},
	}
	for _, ev := range in {
		if err := q.Inject(ev); err != nil {
			t.Fatal(err)
		}
	}

	got := q.DrainPending(base, base+2)
	wantCodes := []int32{1, 2, 3}
	if len(got) != len(wantCodes) {
		t.Fatalf("drained %d events, want %d", len(got), len(wantCodes))
	}
	for i, ev := range got {
		if ev.Code != wantCodes[i] {
			t.Errorf("drained[%d].Code = %d, want %d", i, ev.Code, wantCodes[i])
		}
	}

	rest := q.DrainPending(0, LastEvent+1)
	restCodes := []int32{10, 99, 11}
	if len(rest) != len(restCodes) {
		t.Fatalf("remaining %d events, want %d", len(rest), len(restCodes))
	}
	for i, ev := range rest {
		if ev.Code != restCodes[i] {
			t.Errorf("rest[%d].Code = %d, want %d", i, ev.Code, restCodes[i])
		}
	}
}

func TestDrainPendingEmpty(t *testing.T) {
	q := NewQueue(0)
	if got := q.DrainPending(UserEventBase, UserEventBase+3); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestPumpRunsRegisteredPumps(t *testing.T) {
	q := NewQueue(0)
	q.AddPump(func(q *Queue) {
		_ = q.Inject(Event{Type: EventWindow, Code: 5})
	})

	q.Pump()
	q.Pump()

	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
}

func TestConcurrentInject(t *testing.T) {
	q := NewQueue(0)
	base, _ := q.RegisterEventRange(1)

	const producers, perProducer = 8, 500
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Inject(Event{Type: base})
			}
		}()
	}
	wg.Wait()

	if got := len(q.DrainPending(base, base+1)); got != producers*perProducer {
		t.Errorf("drained %d, want %d", got, producers*perProducer)
	}
}

func TestEventString(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Type: EventQuit}, "quit"},
		{Event{Type: EventKeyDown, Code: 4}, "key down code=4"},
		{Event{Type: UserEventBase, Code: 7, Data1: 0x10, Data2: 0x2}, "user event 0x8000 code=7 data1=0x10 data2=0x2"},
		{Event{Type: 0x42}, "unknown event 0x0042"},
	}
	for _, tc := range tests {
		if got := tc.ev.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
