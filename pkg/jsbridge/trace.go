package jsbridge

import (
	"encoding/json"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	maxTraceLength = 500
	warnLevel      = zerolog.WarnLevel
)

var loggingEnabled atomic.Bool

// EnableLogging turns on tracing of every sent and received message for all
// bridges in the process. It is off by default.
func EnableLogging() {
	loggingEnabled.Store(true)
}

// SetLogging sets the process-wide tracing flag.
func SetLogging(enabled bool) {
	loggingEnabled.Store(enabled)
}

// LoggingEnabled reports the process-wide tracing flag.
func LoggingEnabled() bool {
	return loggingEnabled.Load()
}

// traceEvent returns nil, a no-op zerolog event, unless tracing is enabled.
func (b *Bridge) traceEvent(level zerolog.Level) *zerolog.Event {
	if !LoggingEnabled() {
		return nil
	}
	return b.log.WithLevel(level)
}

func (b *Bridge) traceMessage(direction string, msg Message) {
	if !LoggingEnabled() {
		return
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return
	}
	b.log.Info().Str("direction", direction).Str("message", truncate(string(encoded))).Msg("bridge message")
}

func truncate(s string) string {
	if len(s) <= maxTraceLength {
		return s
	}
	return s[:maxTraceLength] + " [...]"
}
