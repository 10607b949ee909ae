package hostbridge

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/corrreia/hostbridge/internal/bridge"
	"github.com/corrreia/hostbridge/internal/hostevents"
	"github.com/corrreia/hostbridge/internal/journal"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Audio.Enabled = false
	cfg.Host.TickRate = 500
	return cfg
}

func openHost(t *testing.T, cfg *Config, opts ...Option) *Host {
	t.Helper()
	h, err := Open(cfg, opts...)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

// tickUntil drives the host from the test goroutine until cond holds
func tickUntil(t *testing.T, h *Host, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached in time")
		}
		h.Tick()
		time.Sleep(200 * time.Microsecond)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Host.TickRate = -1
	if _, err := Open(cfg); err == nil {
		t.Error("expected error for negative tick rate")
	}
}

func TestAfterFiresOnce(t *testing.T) {
	h := openHost(t, testConfig())

	var calls int
	timer := h.After(5*time.Millisecond, func() { calls++ })
	if timer == nil {
		t.Fatal("After returned nil")
	}
	if timer.IsRepeating() {
		t.Error("one-shot timer reports repeating")
	}

	tickUntil(t, h, func() bool { return calls == 1 })
	if !timer.IsStopped() {
		t.Error("one-shot timer not stopped after firing")
	}

	time.Sleep(20 * time.Millisecond)
	h.Tick()
	if calls != 1 {
		t.Errorf("one-shot timer ran %d times", calls)
	}
}

func TestEveryRepeatsUntilStopped(t *testing.T) {
	h := openHost(t, testConfig())

	var calls int
	var timer *Timer
	timer = h.Every(2*time.Millisecond, func() {
		calls++
		if calls == 3 {
			timer.Stop()
		}
	})
	if timer == nil {
		t.Fatal("Every returned nil")
	}
	if timer.Interval() != 2*time.Millisecond || !timer.IsRepeating() {
		t.Errorf("Interval = %v, repeating %v", timer.Interval(), timer.IsRepeating())
	}

	tickUntil(t, h, func() bool { return calls >= 3 })
	time.Sleep(20 * time.Millisecond)
	h.Tick()
	if calls != 3 {
		t.Errorf("timer ran %d times after Stop, want 3", calls)
	}
	timer.Stop()
}

func TestTimerRejectsBadArguments(t *testing.T) {
	h := openHost(t, testConfig())
	if h.After(0, func() {}) != nil {
		t.Error("After(0) should return nil")
	}
	if h.Every(time.Second, nil) != nil {
		t.Error("Every with nil callback should return nil")
	}
	var nilTimer *Timer
	nilTimer.Stop()
	if !nilTimer.IsStopped() || nilTimer.Interval() != 0 || nilTimer.IsRepeating() {
		t.Error("nil timer accessors")
	}
}

func TestRawTimerContract(t *testing.T) {
	h := openHost(t, testConfig())

	var seen []uint32
	id, err := h.AddTimer(3*time.Millisecond, func(interval uint32) uint32 {
		seen = append(seen, interval)
		if len(seen) == 2 {
			return 0
		}
		return 4
	})
	if err != nil {
		t.Fatalf("AddTimer failed: %v", err)
	}

	tickUntil(t, h, func() bool { return len(seen) == 2 })
	if seen[0] != 3 || seen[1] != 4 {
		t.Errorf("intervals = %v, want [3 4]", seen)
	}
	tickUntil(t, h, func() bool { return !h.RemoveTimer(id) })
}

func TestMixerRunsOnHostThread(t *testing.T) {
	cfg := testConfig()
	cfg.Audio.Enabled = true
	cfg.Audio.Samples = 64
	cfg.Audio.SampleRate = 8000
	cfg.Bridge.MixerTimeout = time.Second

	var mu sync.Mutex
	var out []int16
	sink := func(stream []byte) {
		mu.Lock()
		out = out[:0]
		for i := 0; i+1 < len(stream); i += 2 {
			out = append(out, int16(binary.LittleEndian.Uint16(stream[i:])))
		}
		mu.Unlock()
	}
	source := func(stream []byte) {
		for i := 0; i+1 < len(stream); i += 2 {
			binary.LittleEndian.PutUint16(stream[i:], uint16(1000))
		}
	}

	h := openHost(t, cfg, WithAudioSource(source), WithAudioSink(sink))

	var mixed atomic.Int32
	err := h.SetMixer(func(stream []byte) {
		for i := 0; i+1 < len(stream); i += 2 {
			binary.LittleEndian.PutUint16(stream[i:], uint16(500))
		}
		mixed.Add(1)
	})
	if err != nil {
		t.Fatalf("SetMixer failed: %v", err)
	}

	tickUntil(t, h, func() bool { return mixed.Load() >= 2 })

	// The sink sees the handler's output once the handshake completes.
	tickUntil(t, h, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(out) > 0 && out[0] == 500 && out[len(out)-1] == 500
	})
	if h.Stats().MixerCalls == 0 {
		t.Error("no mixer calls counted")
	}

	if err := h.SetMixer(nil); err != nil {
		t.Fatalf("SetMixer(nil) failed: %v", err)
	}
}

func TestSetMixerWithoutAudio(t *testing.T) {
	h := openHost(t, testConfig())
	if err := h.SetMixer(func([]byte) {}); !errors.Is(err, bridge.ErrNoAudio) {
		t.Errorf("SetMixer = %v, want ErrNoAudio", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := openHost(t, testConfig())

	var fired atomic.Int32
	h.Every(time.Millisecond, func() { fired.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := h.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if h.Ticks() == 0 {
		t.Error("Run dispatched no ticks")
	}
	if fired.Load() == 0 {
		t.Error("timer never fired during Run")
	}
}

func TestInjectAndEvents(t *testing.T) {
	h := openHost(t, testConfig())

	ev := Event{Type: hostevents.EventKeyDown, Code: 'a'}
	if err := h.Inject(ev); err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	h.Tick()

	got := h.Events(hostevents.EventKeyDown, hostevents.EventKeyUp+1)
	if len(got) != 1 || got[0] != ev {
		t.Errorf("Events = %v, want [%v]", got, ev)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h, err := Open(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	session := h.Session()

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if _, err := h.AddTimer(time.Millisecond, func(uint32) uint32 { return 0 }); !errors.Is(err, ErrClosed) {
		t.Errorf("AddTimer after Close = %v, want ErrClosed", err)
	}
	if err := h.Run(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Run after Close = %v, want ErrClosed", err)
	}
	if h.Tick() != 0 {
		t.Error("Tick after Close dispatched handlers")
	}
	if session == "" {
		t.Error("empty session id")
	}
}

func TestJournalRecordsSession(t *testing.T) {
	cfg := testConfig()
	cfg.Journal.Enabled = true
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	cfg.Journal.FlushInterval = time.Millisecond

	h, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	session := h.Session()

	var incidents atomic.Int32
	h.OnIncident("*", func(map[string]any) { incidents.Add(1) })

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if incidents.Load() == 0 {
		t.Error("no incident delivered for session end")
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	if _, err := j.LookupSession(context.Background(), session); err != nil {
		t.Errorf("session not journaled: %v", err)
	}
}

func TestLoggerFields(t *testing.T) {
	l := GetLogger("Test").WithField("b", 2).WithFields(map[string]interface{}{"a": 1})
	got := l.(*logger).suffix
	if got != " a=1 b=2" {
		t.Errorf("suffix = %q, want %q", got, " a=1 b=2")
	}
}
