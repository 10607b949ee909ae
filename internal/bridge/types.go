// Package bridge marshals callbacks fired on the runtime's background
// threads (timer thread, audio thread) onto the host thread.
//
// A producer running on a background thread encodes the call as a host
// event, injects it, and blocks on its channel's result slot. The host
// thread drains those events once per Tick, runs the handler, and publishes
// the result back. Every wait is bounded: a host that does not tick in time
// costs the caller a fallback value, never a hang.
package bridge

import (
	"errors"
	"fmt"

	"github.com/corrreia/hostbridge/internal/audio"
	"github.com/corrreia/hostbridge/internal/hostevents"
	"github.com/corrreia/hostbridge/internal/timers"
)

// Channel is a callback category with its own lock and result slot
type Channel uint8

const (
	ChannelTimer Channel = iota
	ChannelMixer
	channelReserved // claimed with the range, never dispatched
)

// EventRange is the number of event ids the bridge reserves
const EventRange = 3

func (c Channel) String() string {
	switch c {
	case ChannelTimer:
		return "timer"
	case ChannelMixer:
		return "mixer"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// TimerHandler runs on the host thread with the elapsed interval in
// milliseconds and returns the next interval; 0 stops the timer.
type TimerHandler func(interval uint32) uint32

// MixerHandler runs on the host thread and may rewrite the post-mix buffer
// (signed 16-bit little endian samples) in place.
type MixerHandler func(stream []byte)

// EventSystem is the host event queue
type EventSystem interface {
	RegisterEventRange(count int) (uint32, error)
	Inject(ev hostevents.Event) error
	DrainPending(lo, hi uint32) []hostevents.Event
	Pump()
}

// TimerSubsystem schedules native callbacks on the runtime's timer thread
type TimerSubsystem interface {
	Schedule(delay uint32, cb timers.Callback) (timers.ID, error)
	Cancel(id timers.ID) bool
}

// AudioSubsystem runs a post-mix hook on the runtime's audio thread
type AudioSubsystem interface {
	SetPostMixHook(h audio.Hook)
}

var (
	ErrNotStarted     = errors.New("bridge: not started")
	ErrNilHandler     = errors.New("bridge: nil handler")
	ErrNoAudio        = errors.New("bridge: no audio subsystem")
	ErrForeignEvent   = errors.New("bridge: event outside the reserved range")
	ErrUnknownChannel = errors.New("bridge: unknown channel")
	ErrMalformedEvent = errors.New("bridge: malformed event")
	ErrUnknownHandler = errors.New("bridge: unknown handler")
)

// Incident topics published on the bus
const (
	TopicSession  = "bridge.session"
	TopicTimeout  = "bridge.timeout"
	TopicRejected = "bridge.rejected"
	TopicDropped  = "bridge.dropped"
	TopicLate     = "bridge.late"
	TopicPanic    = "bridge.panic"
)
