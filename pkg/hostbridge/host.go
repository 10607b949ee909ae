// Package hostbridge is the public entry point: it wires the event queue,
// timer thread, audio device, bridge and journal into a Host whose callbacks
// all run on one host thread.
package hostbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/corrreia/hostbridge/internal/audio"
	"github.com/corrreia/hostbridge/internal/bridge"
	"github.com/corrreia/hostbridge/internal/config"
	"github.com/corrreia/hostbridge/internal/hostevents"
	"github.com/corrreia/hostbridge/internal/ipc"
	"github.com/corrreia/hostbridge/internal/journal"
	"github.com/corrreia/hostbridge/internal/runtime"
	"github.com/corrreia/hostbridge/internal/shared"
	"github.com/corrreia/hostbridge/internal/timers"
)

type (
	// Config is the host configuration
	Config = config.Config
	// Stats counts handshake outcomes for the current session
	Stats = bridge.Stats
	// Event is a host event
	Event = hostevents.Event
)

// ErrClosed is returned by operations on a closed host
var ErrClosed = errors.New("hostbridge: host is closed")

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig loads the first existing config file among paths, or the
// defaults when none exists. It returns the path that was used.
func LoadConfig(paths ...string) (*Config, string, error) {
	return config.LoadFirst(paths...)
}

// Option customizes Open
type Option func(*options)

type options struct {
	source audio.Source
	sink   audio.Sink
}

// WithAudioSource sets the function that fills each audio buffer before
// the mixer handler sees it
func WithAudioSource(fn func(stream []byte)) Option {
	return func(o *options) { o.source = fn }
}

// WithAudioSink sets the function that receives each finished audio buffer
func WithAudioSink(fn func(stream []byte)) Option {
	return func(o *options) { o.sink = fn }
}

// Host owns the runtime threads and the bridge
type Host struct {
	cfg *Config
	log Logger

	queue   *hostevents.Queue
	sched   *timers.Scheduler
	device  *audio.Device
	bus     *ipc.Bus
	journal *journal.Journal
	bridge  *bridge.Bridge
	loop    *runtime.Loop

	lastFlush time.Time

	mu     sync.Mutex
	closed bool
}

// Open starts the runtime described by cfg and begins a bridge session.
// A nil cfg uses the defaults.
func Open(cfg *Config, opts ...Option) (*Host, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("hostbridge: invalid configuration: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	shared.SetLogLevel(shared.ParseLogLevel(cfg.LogLevel))
	shared.SetDebug(cfg.Debug)

	h := &Host{
		cfg:   cfg,
		log:   GetLogger("Host"),
		queue: hostevents.NewQueue(cfg.Queue.Capacity),
		sched: timers.NewScheduler(),
		bus:   ipc.NewBus(),
	}

	if cfg.Audio.Enabled {
		spec := audio.Spec{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
			Samples:    cfg.Audio.Samples,
		}
		device, err := audio.NewDevice(spec, o.source, o.sink)
		if err != nil {
			h.shutdown()
			return nil, fmt.Errorf("hostbridge: audio device: %w", err)
		}
		h.device = device
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			h.shutdown()
			return nil, fmt.Errorf("hostbridge: %w", err)
		}
		j.Attach(h.bus)
		h.journal = j
	}

	deps := bridge.Deps{Events: h.queue, Timers: h.sched, Bus: h.bus}
	if h.device != nil {
		deps.Audio = h.device
	}
	b, err := bridge.New(deps, bridge.Options{
		TimerTimeout: cfg.Bridge.TimerTimeout,
		MixerTimeout: cfg.MixerTimeout(),
	})
	if err != nil {
		h.shutdown()
		return nil, fmt.Errorf("hostbridge: %w", err)
	}
	h.bridge = b

	if err := b.Begin(); err != nil {
		h.shutdown()
		return nil, fmt.Errorf("hostbridge: %w", err)
	}

	if h.device != nil {
		if err := h.device.Start(); err != nil {
			h.shutdown()
			return nil, fmt.Errorf("hostbridge: start audio: %w", err)
		}
	}

	h.loop = runtime.NewLoop(cfg.TickInterval())
	h.loop.RegisterTickHandler(func(float64) { h.Tick() })
	h.lastFlush = time.Now()

	h.log.Info("host opened (session %s, tick %v, audio %v, journal %v)",
		b.Session(), cfg.TickInterval(), cfg.Audio.Enabled, cfg.Journal.Enabled)
	return h, nil
}

// Tick runs one dispatcher pass on the calling thread, which must be the
// host thread, and flushes the journal when its interval has passed.
// It returns the number of handlers run.
func (h *Host) Tick() int {
	n := h.bridge.Tick()

	if h.journal != nil && time.Since(h.lastFlush) >= h.cfg.Journal.FlushInterval {
		h.lastFlush = time.Now()
		if err := h.journal.Flush(context.Background()); err != nil {
			h.log.Error("journal flush failed: %v", err)
		}
	}
	return n
}

// Run makes the calling goroutine the host thread and ticks at the
// configured rate until ctx is cancelled.
func (h *Host) Run(ctx context.Context) error {
	if h.isClosed() {
		return ErrClosed
	}
	err := h.loop.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// AddTimer registers a raw timer handler: it receives the elapsed interval
// in milliseconds and returns the next one, 0 to stop.
func (h *Host) AddTimer(delay time.Duration, handler func(interval uint32) uint32) (uint64, error) {
	if h.isClosed() {
		return 0, ErrClosed
	}
	id, err := h.bridge.AddTimer(millis(delay), handler)
	return uint64(id), err
}

// RemoveTimer cancels a timer added with AddTimer
func (h *Host) RemoveTimer(id uint64) bool {
	return h.bridge.RemoveTimer(timers.ID(id))
}

// SetMixer installs fn as the post-mix handler. It runs on the host thread
// and may rewrite the buffer in place. nil removes the handler.
func (h *Host) SetMixer(fn func(stream []byte)) error {
	if h.isClosed() {
		return ErrClosed
	}
	return h.bridge.SetMixerHandler(fn)
}

// Inject queues a host event, for example input from the embedding program
func (h *Host) Inject(ev Event) error {
	return h.queue.Inject(ev)
}

// Events removes and returns pending host events in [lo, hi)
func (h *Host) Events(lo, hi uint32) []Event {
	return h.queue.DrainPending(lo, hi)
}

// OnIncident subscribes fn to a bridge incident topic, "*" for all
func (h *Host) OnIncident(topic string, fn func(data map[string]any)) uint64 {
	return h.bus.Subscribe(topic, fn)
}

// Session returns the bridge session id
func (h *Host) Session() string {
	return h.bridge.Session().String()
}

// Stats returns the bridge counters
func (h *Host) Stats() Stats {
	return h.bridge.Stats()
}

// Ticks returns how many ticks Run has dispatched
func (h *Host) Ticks() uint64 {
	return h.loop.Ticks()
}

// Config returns the validated configuration
func (h *Host) Config() *Config {
	return h.cfg
}

func (h *Host) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close ends the bridge session, stops the audio and timer threads and
// closes the journal. Calling Close more than once is a no-op.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	err := h.shutdown()
	h.log.Info("host closed")
	return err
}

// shutdown releases whatever Open managed to start
func (h *Host) shutdown() error {
	// End first so threads blocked in a handshake return before they are joined.
	if h.bridge != nil {
		h.bridge.End()
	}
	if h.device != nil {
		h.device.Close()
	}
	h.sched.Close()
	h.queue.Close()

	if h.journal != nil {
		if err := h.journal.Close(); err != nil {
			return fmt.Errorf("hostbridge: close journal: %w", err)
		}
	}
	return nil
}
