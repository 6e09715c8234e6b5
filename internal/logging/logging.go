// Package logging is a small leveled wrapper around the standard library
// log package — the teacher repo never reaches for a third-party logging
// library, so neither does this one.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level selects which lines are emitted.
type Level int

const (
	// LevelInfo emits tick summaries, state transitions, member discovery,
	// startup lines and socket errors.
	LevelInfo Level = iota
	// LevelDebug additionally emits wire-level detail: decode failures,
	// dropped late acks, probe acks, indirect fan-outs and relay expiries.
	LevelDebug
)

// Logger is a minimal leveled logger over *log.Logger.
type Logger struct {
	level Level
	out   *log.Logger
}

// New creates a Logger writing to stderr with the given level.
func New(level Level) *Logger {
	return &Logger{level: level, out: log.New(os.Stderr, "", log.LstdFlags)}
}

// Infof logs at info level (always emitted).
func (l *Logger) Infof(format string, args ...any) {
	l.out.Output(2, "INFO  "+fmt.Sprintf(format, args...))
}

// Debugf logs at debug level (emitted only when the logger's level is
// LevelDebug).
func (l *Logger) Debugf(format string, args ...any) {
	if l.level < LevelDebug {
		return
	}
	l.out.Output(2, "DEBUG "+fmt.Sprintf(format, args...))
}

// ParseLevel maps "info"/"debug" (case insensitive, since it may come from
// a TOML file, a flag, or SWIMD_LOG_LEVEL) to a Level, defaulting to
// LevelInfo for anything else.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}
