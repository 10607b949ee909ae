package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/corrreia/hostbridge/internal/handshake"
	"github.com/corrreia/hostbridge/internal/ipc"
	"github.com/corrreia/hostbridge/internal/shared"
	"github.com/corrreia/hostbridge/internal/timers"
)

// Default handshake timeouts
const (
	DefaultTimerTimeout = 250 * time.Millisecond
	DefaultMixerTimeout = 20 * time.Millisecond
)

// Deps are the runtime collaborators the bridge consumes. Audio and Bus are optional.
type Deps struct {
	Events EventSystem
	Timers TimerSubsystem
	Audio  AudioSubsystem
	Bus    *ipc.Bus
}

// Options tunes the handshake
type Options struct {
	TimerTimeout time.Duration // how long the timer thread waits for the host
	MixerTimeout time.Duration // how long the audio thread waits, about one buffer period
}

// mixerChannel pairs the mixer slot with the relay it guards
type mixerChannel struct {
	slot  *handshake.Slot[struct{}]
	relay Relay
}

// session is the state allocated by Begin and released by End
type session struct {
	id      uuid.UUID
	base    uint32
	started time.Time
	timer   *handshake.Slot[uint32]
	mixer   *mixerChannel
	stats   counters

	hostThread   atomic.Int64
	threadWarned atomic.Bool
}

// Bridge is the host-owned bridge context
type Bridge struct {
	events EventSystem
	timers TimerSubsystem
	audio  AudioSubsystem
	bus    *ipc.Bus

	timerTimeout time.Duration
	mixerTimeout time.Duration

	handlers *registry
	tickets  atomic.Uint64
	current  atomic.Pointer[session]

	mu        sync.Mutex // lifecycle and timer bookkeeping
	base      uint32
	reserved  bool
	timerRefs map[timers.ID]HandlerRef
	timerIDs  map[HandlerRef]timers.ID
	mixerRef  HandlerRef
	last      Stats
	lastID    uuid.UUID

	// host thread only
	ticking atomic.Bool
	work    []byte
}

// New creates a bridge. It does nothing until Begin.
func New(deps Deps, opts Options) (*Bridge, error) {
	if deps.Events == nil {
		return nil, fmt.Errorf("bridge: event system is required")
	}
	if deps.Timers == nil {
		return nil, fmt.Errorf("bridge: timer subsystem is required")
	}
	if opts.TimerTimeout <= 0 {
		opts.TimerTimeout = DefaultTimerTimeout
	}
	if opts.MixerTimeout <= 0 {
		opts.MixerTimeout = DefaultMixerTimeout
	}

	return &Bridge{
		events:       deps.Events,
		timers:       deps.Timers,
		audio:        deps.Audio,
		bus:          deps.Bus,
		timerTimeout: opts.TimerTimeout,
		mixerTimeout: opts.MixerTimeout,
		handlers:     newRegistry(),
		timerRefs:    make(map[timers.ID]HandlerRef),
		timerIDs:     make(map[HandlerRef]timers.ID),
	}, nil
}

// Begin allocates both channels and, the first time, reserves the bridge's
// event range. Calling Begin on a started bridge does nothing.
func (b *Bridge) Begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current.Load() != nil {
		return nil
	}

	if !b.reserved {
		base, err := b.events.RegisterEventRange(EventRange)
		if err != nil {
			return fmt.Errorf("bridge: reserve event range: %w", err)
		}
		b.base = base
		b.reserved = true
	}

	s := &session{
		id:      uuid.New(),
		base:    b.base,
		started: time.Now(),
		timer:   handshake.New[uint32](),
		mixer:   &mixerChannel{slot: handshake.New[struct{}]()},
	}
	b.current.Store(s)

	shared.LogInfo("Bridge", "session %s started (events 0x%x-0x%x)", s.id, s.base, s.base+EventRange-1)
	b.bus.Publish(TopicSession, map[string]any{
		"session": s.id.String(),
		"detail":  "begin",
	})
	return nil
}

// End releases the channels: blocked producers return their fallback, bridge
// timers are cancelled, the mixer hook is removed and undelivered requests
// are discarded. Calling End on a stopped bridge does nothing.
func (b *Bridge) End() {
	b.mu.Lock()
	s := b.current.Swap(nil)
	if s == nil {
		b.mu.Unlock()
		return
	}

	refs := b.timerRefs
	b.timerRefs = make(map[timers.ID]HandlerRef)
	b.timerIDs = make(map[HandlerRef]timers.ID)
	mixerRef := b.mixerRef
	b.mixerRef = 0
	b.mu.Unlock()

	if mixerRef != 0 && b.audio != nil {
		b.audio.SetPostMixHook(nil)
		b.handlers.remove(mixerRef)
	}
	for id, ref := range refs {
		b.timers.Cancel(id)
		b.handlers.remove(ref)
	}

	s.timer.Close()
	s.mixer.slot.Close()

	discarded := b.events.DrainPending(s.base, s.base+EventRange)

	stats := s.stats.snapshot()
	b.mu.Lock()
	b.last = stats
	b.lastID = s.id
	b.mu.Unlock()

	shared.LogInfo("Bridge", "session %s ended after %v (%d pending requests discarded)",
		s.id, time.Since(s.started).Round(time.Millisecond), len(discarded))
	b.bus.Publish(TopicSession, map[string]any{
		"session":  s.id.String(),
		"detail":   "end",
		"started":  s.started,
		"stats":    stats,
		"discards": len(discarded),
	})
}

// Started reports whether Begin has been called without a matching End
func (b *Bridge) Started() bool {
	return b.current.Load() != nil
}

// Session returns the current session id, or uuid.Nil when stopped
func (b *Bridge) Session() uuid.UUID {
	if s := b.current.Load(); s != nil {
		return s.id
	}
	return uuid.Nil
}

// EventBase returns the first reserved event id, valid after the first Begin
func (b *Bridge) EventBase() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.base
}

// Stats returns the counters of the current session, or of the last ended
// session when stopped.
func (b *Bridge) Stats() Stats {
	if s := b.current.Load(); s != nil {
		return s.stats.snapshot()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// AddTimer schedules handler to run on the host thread every time the timer
// fires, first after delay milliseconds.
func (b *Bridge) AddTimer(delay uint32, handler TimerHandler) (timers.ID, error) {
	if handler == nil {
		return 0, ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current.Load() == nil {
		return 0, ErrNotStarted
	}

	ref := b.handlers.addTimer(handler)
	id, err := b.timers.Schedule(delay, b.timerProducer(ref))
	if err != nil {
		b.handlers.remove(ref)
		return 0, fmt.Errorf("bridge: schedule timer: %w", err)
	}

	b.timerRefs[id] = ref
	b.timerIDs[ref] = id
	return id, nil
}

// RemoveTimer cancels a timer added with AddTimer
func (b *Bridge) RemoveTimer(id timers.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	ref, ok := b.timerRefs[id]
	if !ok {
		return false
	}
	delete(b.timerRefs, id)
	delete(b.timerIDs, ref)
	b.handlers.remove(ref)

	return b.timers.Cancel(id)
}

// forgetTimer drops the bookkeeping of a timer that stopped itself
func (b *Bridge) forgetTimer(ref HandlerRef) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id, ok := b.timerIDs[ref]; ok {
		delete(b.timerIDs, ref)
		delete(b.timerRefs, id)
	}
	b.handlers.remove(ref)
}

// TimerCount returns the number of live bridge timers
func (b *Bridge) TimerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timerRefs)
}

// SetMixerHandler installs the post-mix handler; nil removes it
func (b *Bridge) SetMixerHandler(handler MixerHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current.Load() == nil {
		return ErrNotStarted
	}
	if b.audio == nil {
		return ErrNoAudio
	}

	old := b.mixerRef
	if handler == nil {
		b.audio.SetPostMixHook(nil)
		b.mixerRef = 0
	} else {
		ref := b.handlers.addMixer(handler)
		b.audio.SetPostMixHook(b.mixerProducer(ref))
		b.mixerRef = ref
	}

	if old != 0 {
		b.handlers.remove(old)
	}
	return nil
}

// publish sends an incident for the session to the bus
func (b *Bridge) publish(topic string, s *session, ch Channel, detail string) {
	b.bus.Publish(topic, map[string]any{
		"session": s.id.String(),
		"channel": ch.String(),
		"detail":  detail,
	})
}
