//go:build !linux

package bridge

// osThreadID returns 0 where thread ids are not exposed; the host-thread
// check is skipped.
func osThreadID() int {
	return 0
}
