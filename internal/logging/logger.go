// Package logging provides subsystem-tagged leveled log helpers. Output goes
// to the standard logger, which the TUI redirects to a file.
package logging

import (
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

var debugEnabled atomic.Bool

func init() {
	debugEnabled.Store(os.Getenv("POMODORO_DEBUG") == "true")
}

// SetDebug toggles Debug output.
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

// DebugEnabled reports whether Debug output is shown.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Debug logs a message only when debug output is enabled.
func Debug(subsystem, format string, args ...any) {
	if debugEnabled.Load() {
		logf("DEBUG", subsystem, format, args...)
	}
}

// Info logs an informational message.
func Info(subsystem, format string, args ...any) {
	logf("INFO", subsystem, format, args...)
}

// Warn logs a recoverable problem.
func Warn(subsystem, format string, args ...any) {
	logf("WARN", subsystem, format, args...)
}

// Error logs a failed operation.
func Error(subsystem, format string, args ...any) {
	logf("ERROR", subsystem, format, args...)
}

func logf(level, subsystem, format string, args ...any) {
	log.Printf("%-5s [%s] "+format, append([]any{level, subsystem}, args...)...)
}

// Truncate shortens s to maxLen runes for one-line logs.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
