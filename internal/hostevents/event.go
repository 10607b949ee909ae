// Package hostevents implements the host event queue the bridge injects
// into and drains from: a bounded FIFO of generic notification events with
// a registry of reserved user event ranges.
package hostevents

import "fmt"

// Event type layout. Ids below UserEventBase belong to the host itself
// (input, window and device notifications); user ranges are handed out
// from UserEventBase upward and never reused.
const (
	EventQuit     uint32 = 0x100
	EventWindow   uint32 = 0x200
	EventKeyDown  uint32 = 0x300
	EventKeyUp    uint32 = 0x301
	EventAudio    uint32 = 0x1100
	UserEventBase uint32 = 0x8000
	LastEvent     uint32 = 0xFFFF
)

// Event is the host's generic notification record: two small integers and
// two opaque references.
type Event struct {
	Type  uint32
	Code  int32
	Data1 uint64
	Data2 uint64
}

// IsUser reports whether the event belongs to a registered user range
func (e Event) IsUser() bool {
	return e.Type >= UserEventBase && e.Type <= LastEvent
}

// String describes the event for diagnostics
func (e Event) String() string {
	switch {
	case e.Type == EventQuit:
		return "quit"
	case e.Type == EventWindow:
		return fmt.Sprintf("window code=%d", e.Code)
	case e.Type == EventKeyDown:
		return fmt.Sprintf("key down code=%d", e.Code)
	case e.Type == EventKeyUp:
		return fmt.Sprintf("key up code=%d", e.Code)
	case e.Type == EventAudio:
		return fmt.Sprintf("audio device code=%d", e.Code)
	case e.IsUser():
		return fmt.Sprintf("user event 0x%04x code=%d data1=0x%x data2=0x%x", e.Type, e.Code, e.Data1, e.Data2)
	default:
		return fmt.Sprintf("unknown event 0x%04x", e.Type)
	}
}
