package journal

import (
	"github.com/corrreia/hostbridge/internal/hostevents"
	"github.com/corrreia/hostbridge/internal/timers"
)

func newQueue() *hostevents.Queue {
	return hostevents.NewQueue(0)
}

// noTimers is a timer subsystem that never fires
type noTimers struct{}

func (noTimers) Schedule(uint32, timers.Callback) (timers.ID, error) { return 1, nil }
func (noTimers) Cancel(timers.ID) bool                               { return true }
