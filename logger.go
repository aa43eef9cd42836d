// logger.go - Rate-limited diagnostic logging for the pcmem subsystem
//
// License: GPLv3 or later
//
// Plain fmt/log, no structured logging abstraction.

package pcmem

import (
	"log"
	"sync/atomic"
)

// Logger wraps the standard library logger with rate-limited suppression
// for illegal-access warnings, so a tight loop hammering an unmapped page
// doesn't flood the log.
type Logger struct {
	illegalCount atomic.Int64
	illegalLimit int64
}

// NewLogger returns a Logger with the default illegal-access suppression
// threshold of 1000 messages.
func NewLogger() *Logger {
	return &Logger{illegalLimit: 1000}
}

// Illegal logs an illegal physical access, suppressing further messages
// once the threshold is reached.
func (l *Logger) Illegal(format string, args ...any) {
	if l.illegalCount.Add(1) > l.illegalLimit {
		return
	}
	log.Printf("pcmem: illegal access: "+format, args...)
}

// Warnf logs an unconditional warning (ROM writes, slow-path-in-RAM,
// callout install failures — all rare by construction).
func (l *Logger) Warnf(format string, args ...any) {
	log.Printf("pcmem: warning: "+format, args...)
}

// Debugf logs a debug-level trace. Kept separate from Warnf so a caller
// wiring this into a structured sink can drop debug traffic cheaply.
func (l *Logger) Debugf(format string, args ...any) {
	log.Printf("pcmem: "+format, args...)
}
