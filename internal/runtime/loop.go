package runtime

import (
	"context"
	goruntime "runtime"
	"sync"
	"sync/atomic"
	"time"
)

// TickHandler runs once per host tick on the host thread
type TickHandler func(deltaTime float64)

// Loop is the host's single-threaded tick loop. Everything registered on it
// runs on one OS thread, one handler at a time.
type Loop struct {
	interval time.Duration

	handlersMu sync.RWMutex
	handlers   []TickHandler

	runMu   sync.Mutex
	running bool
	ticks   atomic.Uint64
}

// NewLoop creates a loop that ticks every interval
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = time.Second / 64
	}
	return &Loop{interval: interval}
}

// RegisterTickHandler adds a tick handler
func (l *Loop) RegisterTickHandler(handler TickHandler) {
	l.handlersMu.Lock()
	defer l.handlersMu.Unlock()
	l.handlers = append(l.handlers, handler)
}

// DispatchTick calls every tick handler once, in registration order.
// A panicking handler is logged and does not stop the others.
func (l *Loop) DispatchTick(deltaTime float64) {
	l.handlersMu.RLock()
	handlers := l.handlers
	l.handlersMu.RUnlock()

	for _, handler := range handlers {
		SafeCall("tick handler", func() {
			handler(deltaTime)
		})
	}
	l.ticks.Add(1)
}

// Ticks returns how many ticks have been dispatched
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Run locks the calling goroutine to its OS thread and dispatches ticks
// until ctx is cancelled. That thread is the host thread for the duration.
// Run returns immediately if the loop is already running.
func (l *Loop) Run(ctx context.Context) error {
	l.runMu.Lock()
	if l.running {
		l.runMu.Unlock()
		return nil
	}
	l.running = true
	l.runMu.Unlock()

	defer func() {
		l.runMu.Lock()
		l.running = false
		l.runMu.Unlock()
	}()

	goruntime.LockOSThread()
	defer goruntime.UnlockOSThread()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.DispatchTick(now.Sub(last).Seconds())
			last = now
		}
	}
}
