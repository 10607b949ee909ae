package bridge

import (
	"github.com/corrreia/hostbridge/internal/audio"
	"github.com/corrreia/hostbridge/internal/handshake"
)

// mixerProducer returns the post-mix hook registered with the audio
// subsystem. It runs on the audio thread.
func (b *Bridge) mixerProducer(ref HandlerRef) audio.Hook {
	return func(stream []byte) {
		b.fireMixer(ref, stream)
	}
}

// fireMixer stages stream in the relay, hands it to the host thread and
// copies the relay back into stream in place. The wait is bounded by about
// one buffer period. On timeout stream receives the relay as it stands,
// which is the unprocessed input: a glitch is preferable to a stall.
func (b *Bridge) fireMixer(ref HandlerRef, stream []byte) handshake.Outcome {
	s := b.current.Load()
	if s == nil || len(stream) == 0 {
		return handshake.Closed
	}
	s.stats.mixerCalls.Add(1)

	m := s.mixer
	ticket := b.tickets.Add(1)
	if !m.slot.Arm(ticket, func() { m.relay.Load(stream) }) {
		return handshake.Closed
	}

	ev := encode(s.base, invocation{
		channel: ChannelMixer,
		arg:     int32(len(stream)),
		ref:     ref,
		ticket:  ticket,
	})
	if err := b.events.Inject(ev); err != nil {
		m.slot.Cancel(ticket)
		b.rejected(s, ChannelMixer, err)
		return handshake.Closed
	}

	_, outcome := m.slot.Await(ticket, b.mixerTimeout, struct{}{}, func() {
		m.relay.Store(stream)
	})
	if outcome == handshake.TimedOut {
		b.timedOut(s, ChannelMixer)
	}
	return outcome
}
