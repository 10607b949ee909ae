package bridge

import "sync/atomic"

// Stats counts handshake outcomes for one bridge session
type Stats struct {
	TimerCalls    uint64 `json:"timer_calls"`
	TimerTimeouts uint64 `json:"timer_timeouts"`
	TimerRejected uint64 `json:"timer_rejected"`
	MixerCalls    uint64 `json:"mixer_calls"`
	MixerTimeouts uint64 `json:"mixer_timeouts"`
	MixerRejected uint64 `json:"mixer_rejected"`
	Dispatched    uint64 `json:"dispatched"`
	Dropped       uint64 `json:"dropped"`
	Late          uint64 `json:"late"`
	Panics        uint64 `json:"panics"`
}

type counters struct {
	timerCalls    atomic.Uint64
	timerTimeouts atomic.Uint64
	timerRejected atomic.Uint64
	mixerCalls    atomic.Uint64
	mixerTimeouts atomic.Uint64
	mixerRejected atomic.Uint64
	dispatched    atomic.Uint64
	dropped       atomic.Uint64
	late          atomic.Uint64
	panics        atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		TimerCalls:    c.timerCalls.Load(),
		TimerTimeouts: c.timerTimeouts.Load(),
		TimerRejected: c.timerRejected.Load(),
		MixerCalls:    c.mixerCalls.Load(),
		MixerTimeouts: c.mixerTimeouts.Load(),
		MixerRejected: c.mixerRejected.Load(),
		Dispatched:    c.dispatched.Load(),
		Dropped:       c.dropped.Load(),
		Late:          c.late.Load(),
		Panics:        c.panics.Load(),
	}
}

func (c *counters) timeouts(ch Channel) *atomic.Uint64 {
	if ch == ChannelMixer {
		return &c.mixerTimeouts
	}
	return &c.timerTimeouts
}

func (c *counters) rejected(ch Channel) *atomic.Uint64 {
	if ch == ChannelMixer {
		return &c.mixerRejected
	}
	return &c.timerRejected
}
