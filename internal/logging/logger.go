// Package logging provides leveled, subsystem-tagged logging for the memory
// engine. It wraps the standard log package rather than a structured logging
// library, matching the rest of this codebase's ambient style.
package logging

import (
	"io"
	"log"
	"os"
	"strings"
)

var (
	debugEnabled = os.Getenv("DEBUG") == "true"
	logger        = log.New(os.Stderr, "", log.LstdFlags)
)

// SetOutput redirects all logging output. Used by tests that want to assert
// on WARN/CRITICAL lines emitted by the chain traverser.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Info logs an informational message (always shown).
func Info(subsystem, format string, args ...any) {
	logger.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
}

// Debug logs a debug message (only shown if DEBUG=true).
func Debug(subsystem, format string, args ...any) {
	if debugEnabled {
		logger.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
	}
}

// Warn logs a warning — used by the chain traverser for broken cause links.
func Warn(subsystem, format string, args ...any) {
	logger.Printf("[%s] WARN: "+format, append([]any{subsystem}, args...)...)
}

// Critical logs a critical condition — used by the chain traverser when it
// detects a cycle in the cause graph.
func Critical(subsystem, format string, args ...any) {
	logger.Printf("[%s] CRITICAL: "+format, append([]any{subsystem}, args...)...)
}

// Truncate truncates a string to maxLen and adds an ellipsis, collapsing
// newlines so log lines stay single-line.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
