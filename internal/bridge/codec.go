package bridge

import (
	"fmt"

	"github.com/corrreia/hostbridge/internal/hostevents"
)

// HandlerRef is the tagged capability carried in an event: the channel the
// handler belongs to in the top byte and its registry id below. The zero
// ref is never valid.
type HandlerRef uint64

const (
	refTagShift = 56
	refIDMask   = 1<<refTagShift - 1
)

func newHandlerRef(c Channel, id uint64) HandlerRef {
	return HandlerRef(uint64(c)+1)<<refTagShift | HandlerRef(id&refIDMask)
}

// Channel returns the channel the ref was issued for
func (r HandlerRef) Channel() (Channel, bool) {
	tag := uint64(r) >> refTagShift
	if tag == 0 || r.id() == 0 {
		return 0, false
	}
	return Channel(tag - 1), true
}

func (r HandlerRef) id() uint64 {
	return uint64(r) & refIDMask
}

// invocation is one pending callback request
type invocation struct {
	channel Channel
	arg     int32 // interval (timer) or buffer length (mixer)
	ref     HandlerRef
	ticket  uint64
}

// encode packs an invocation into a host event
func encode(base uint32, inv invocation) hostevents.Event {
	return hostevents.Event{
		Type:  base + uint32(inv.channel),
		Code:  inv.arg,
		Data1: uint64(inv.ref),
		Data2: inv.ticket,
	}
}

// decode is the inverse of encode. It rejects anything encode could not
// have produced for this base.
func decode(base uint32, ev hostevents.Event) (invocation, error) {
	if ev.Type < base || ev.Type >= base+EventRange {
		return invocation{}, fmt.Errorf("%w: type 0x%x", ErrForeignEvent, ev.Type)
	}

	ch := Channel(ev.Type - base)
	if ch != ChannelTimer && ch != ChannelMixer {
		return invocation{}, fmt.Errorf("%w: %v", ErrUnknownChannel, ch)
	}
	if ev.Data2 == 0 {
		return invocation{}, fmt.Errorf("%w: zero ticket", ErrMalformedEvent)
	}

	ref := HandlerRef(ev.Data1)
	if rc, ok := ref.Channel(); !ok || rc != ch {
		return invocation{}, fmt.Errorf("%w: handler 0x%x is not a %v handler", ErrMalformedEvent, ev.Data1, ch)
	}
	if ch == ChannelMixer && ev.Code < 0 {
		return invocation{}, fmt.Errorf("%w: negative buffer length %d", ErrMalformedEvent, ev.Code)
	}

	return invocation{
		channel: ch,
		arg:     ev.Code,
		ref:     ref,
		ticket:  ev.Data2,
	}, nil
}
