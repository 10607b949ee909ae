// Package runtime provides the host loop and the panic recovery used around
// every callback that crosses into host or runtime code.
// This file contains panic recovery utilities.
package runtime

import (
	"runtime/debug"

	"github.com/corrreia/hostbridge/internal/shared"
)

// logPanic is replaceable so an embedding host can route panics elsewhere
var logPanic func(context string, panicVal interface{}, stack string)

// SetPanicLogger sets the panic logging function. nil restores the default.
func SetPanicLogger(fn func(context string, panicVal interface{}, stack string)) {
	logPanic = fn
}

func logPanicError(context string, panicVal interface{}, stack string) {
	if logPanic != nil {
		logPanic(context, panicVal, stack)
		return
	}
	shared.LogError("PANIC", "%s: %v\n%s", context, panicVal, stack)
}

// RecoverPanic recovers from a panic and logs the error
// Should be called via defer at the start of goroutines/callbacks
func RecoverPanic(context string) {
	if r := recover(); r != nil {
		logPanicError(context, r, string(debug.Stack()))
	}
}

// SafeCall calls a function with panic recovery
// Returns true if the function completed without panicking
func SafeCall(context string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logPanicError(context, r, string(debug.Stack()))
			ok = false
		}
	}()
	fn()
	return true
}

// SafeCallWithResult calls a function with panic recovery and returns its result
// If a panic occurs, returns the default value
func SafeCallWithResult[T any](context string, defaultVal T, fn func() T) (result T) {
	defer func() {
		if r := recover(); r != nil {
			logPanicError(context, r, string(debug.Stack()))
			result = defaultVal
		}
	}()
	return fn()
}
