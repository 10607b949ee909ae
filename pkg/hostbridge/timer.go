package hostbridge

import (
	"sync/atomic"
	"time"

	"github.com/corrreia/hostbridge/internal/timers"
)

// Timer is a callback scheduled with After or Every. Its callback runs on
// the host thread.
type Timer struct {
	host     *Host
	id       timers.ID
	interval time.Duration
	repeat   bool
	stopped  atomic.Bool
}

// Stop cancels the timer. Stopping twice is a no-op.
func (t *Timer) Stop() {
	if t == nil || !t.stopped.CompareAndSwap(false, true) {
		return
	}
	t.host.bridge.RemoveTimer(t.id)
}

// IsStopped returns true once the timer has been stopped or a one-shot timer has fired
func (t *Timer) IsStopped() bool {
	return t == nil || t.stopped.Load()
}

// Interval returns the timer's period
func (t *Timer) Interval() time.Duration {
	if t == nil {
		return 0
	}
	return t.interval
}

// IsRepeating returns true for timers created with Every
func (t *Timer) IsRepeating() bool {
	return t != nil && t.repeat
}

// handle is the bridge timer handler
func (t *Timer) handle(cb func()) func(uint32) uint32 {
	return func(uint32) uint32 {
		if t.stopped.Load() {
			return 0
		}
		cb()
		if !t.repeat {
			t.stopped.Store(true)
			return 0
		}
		if t.stopped.Load() {
			return 0
		}
		return millis(t.interval)
	}
}

// After runs callback once, delay from now. It returns nil if the callback
// is nil, delay is not positive or the host is closed.
func (h *Host) After(delay time.Duration, callback func()) *Timer {
	return h.newTimer(delay, false, callback)
}

// Every runs callback every interval until the timer is stopped
func (h *Host) Every(interval time.Duration, callback func()) *Timer {
	return h.newTimer(interval, true, callback)
}

func (h *Host) newTimer(interval time.Duration, repeat bool, callback func()) *Timer {
	if callback == nil || interval <= 0 {
		return nil
	}

	t := &Timer{host: h, interval: interval, repeat: repeat}
	id, err := h.bridge.AddTimer(millis(interval), t.handle(callback))
	if err != nil {
		h.log.Warning("cannot schedule timer: %v", err)
		return nil
	}
	t.id = id
	return t
}

// millis converts d to whole milliseconds, at least 1
func millis(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms < 1 {
		return 1
	}
	if ms > int64(^uint32(0)>>1) {
		return ^uint32(0) >> 1
	}
	return uint32(ms)
}
