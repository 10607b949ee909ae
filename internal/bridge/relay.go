package bridge

// Relay is the mixer channel's private staging buffer. The audio thread's
// stream is copied in before the handshake and copied back out after it;
// the stream itself never crosses the thread boundary.
// Callers hold the mixer slot lock.
type Relay struct {
	buf []byte
	n   int
}

// Load grows the relay to len(src) if needed and copies src in.
// Contents are not preserved across growth.
func (r *Relay) Load(src []byte) {
	if cap(r.buf) < len(src) {
		r.buf = make([]byte, len(src))
	}
	r.n = len(src)
	r.buf = r.buf[:r.n]
	copy(r.buf, src)
}

// Store copies the relay contents into dst
func (r *Relay) Store(dst []byte) {
	copy(dst, r.buf[:r.n])
}

// Commit overwrites the relay with the host's processed copy
func (r *Relay) Commit(src []byte) {
	copy(r.buf[:r.n], src)
}

// Bytes returns the staged data
func (r *Relay) Bytes() []byte {
	return r.buf[:r.n]
}

// Cap returns the relay capacity
func (r *Relay) Cap() int {
	return cap(r.buf)
}
