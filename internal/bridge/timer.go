package bridge

import (
	"github.com/corrreia/hostbridge/internal/handshake"
	"github.com/corrreia/hostbridge/internal/shared"
	"github.com/corrreia/hostbridge/internal/timers"
)

// timerProducer returns the native callback registered with the timer
// subsystem for one bridge timer. It runs on the timer thread.
func (b *Bridge) timerProducer(ref HandlerRef) timers.Callback {
	return func(interval uint32) uint32 {
		next, outcome := b.fireTimer(ref, interval)
		if outcome == handshake.Published && next == 0 {
			b.forgetTimer(ref)
		}
		return next
	}
}

// fireTimer hands one timer expiry to the host thread and waits for the
// handler's next interval. Every failure path returns the elapsed interval,
// which keeps the timer running unchanged.
func (b *Bridge) fireTimer(ref HandlerRef, interval uint32) (uint32, handshake.Outcome) {
	s := b.current.Load()
	if s == nil {
		return interval, handshake.Closed
	}
	s.stats.timerCalls.Add(1)

	ticket := b.tickets.Add(1)
	if !s.timer.Arm(ticket, nil) {
		return interval, handshake.Closed
	}

	ev := encode(s.base, invocation{
		channel: ChannelTimer,
		arg:     int32(interval),
		ref:     ref,
		ticket:  ticket,
	})
	if err := b.events.Inject(ev); err != nil {
		s.timer.Cancel(ticket)
		b.rejected(s, ChannelTimer, err)
		return interval, handshake.Closed
	}

	next, outcome := s.timer.Await(ticket, b.timerTimeout, interval, nil)
	if outcome == handshake.TimedOut {
		b.timedOut(s, ChannelTimer)
	}
	return next, outcome
}

func (b *Bridge) rejected(s *session, ch Channel, err error) {
	s.stats.rejected(ch).Add(1)
	shared.LogWarning("Bridge", "%v request not delivered: %v", ch, err)
	b.publish(TopicRejected, s, ch, err.Error())
}

func (b *Bridge) timedOut(s *session, ch Channel) {
	s.stats.timeouts(ch).Add(1)
	shared.LogDebug("Bridge", "%v handshake timed out, using fallback", ch)
	b.publish(TopicTimeout, s, ch, "host did not respond in time")
}
