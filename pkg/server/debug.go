package server

import (
	"log"
	"sync/atomic"
)

// debugMode enables per-message tracing of sessions.
// Set via -debug flag or SND_DEBUG=true environment variable.
var debugMode atomic.Bool

// SetDebug enables or disables message tracing.
func SetDebug(on bool) {
	debugMode.Store(on)
	if on {
		log.Printf("[DEBUG] Message tracing enabled")
	}
}

// IsDebug returns whether message tracing is enabled.
func IsDebug() bool {
	return debugMode.Load()
}

// tracef logs a message about connection id when tracing is enabled.
func tracef(id int, format string, args ...any) {
	if debugMode.Load() {
		log.Printf("[%d] [DEBUG] "+format, append([]any{id}, args...)...)
	}
}
