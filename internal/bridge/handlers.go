package bridge

import "sync"

// registry maps handler refs to the host's handlers. Refs are only ever
// resolved here, never cast back from event payloads.
type registry struct {
	mu     sync.RWMutex
	nextID uint64
	timers map[HandlerRef]TimerHandler
	mixers map[HandlerRef]MixerHandler
}

func newRegistry() *registry {
	return &registry{
		timers: make(map[HandlerRef]TimerHandler),
		mixers: make(map[HandlerRef]MixerHandler),
	}
}

func (r *registry) addTimer(h TimerHandler) HandlerRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ref := newHandlerRef(ChannelTimer, r.nextID)
	r.timers[ref] = h
	return ref
}

func (r *registry) addMixer(h MixerHandler) HandlerRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ref := newHandlerRef(ChannelMixer, r.nextID)
	r.mixers[ref] = h
	return ref
}

func (r *registry) timer(ref HandlerRef) (TimerHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.timers[ref]
	return h, ok
}

func (r *registry) mixer(ref HandlerRef) (MixerHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.mixers[ref]
	return h, ok
}

func (r *registry) remove(ref HandlerRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.timers, ref)
	delete(r.mixers, ref)
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.timers) + len(r.mixers)
}
