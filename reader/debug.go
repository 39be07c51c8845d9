package reader

import (
	"log"
	"sync/atomic"
)

var debugEnabled atomic.Bool

// SetDebug toggles verbose logging for the whole package.
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

func debugLog(format string, args ...any) {
	if debugEnabled.Load() {
		log.Printf(format, args...)
	}
}
