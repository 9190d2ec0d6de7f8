// Package logging includes the log scopes and the structured logger used by the
// code generators. This is in an independent package to avoid dependency cycles.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LogScopes is a bitmask of the parts of code generation which are logged.
type LogScopes uint64

const (
	LogScopeNone                = LogScopes(0)
	LogScopeSelection LogScopes = 1 << iota
	LogScopeReservation
	LogScopeLowering
	LogScopeAll = LogScopes(0xffffffffffffffff)
)

func scopeName(s LogScopes) string {
	switch s {
	case LogScopeSelection:
		return "selection"
	case LogScopeReservation:
		return "reservation"
	case LogScopeLowering:
		return "lowering"
	default:
		return fmt.Sprintf("<unknown=%d>", s)
	}
}

// IsEnabled returns true if the scope (or group of scopes) is enabled.
func (f LogScopes) IsEnabled(scope LogScopes) bool {
	return f&scope != 0
}

// String implements fmt.Stringer by returning each enabled log scope.
func (f LogScopes) String() string {
	if f == LogScopeAll {
		return "all"
	}
	var builder strings.Builder
	for i := 0; i <= 63; i++ { // cycle through all bits to reduce code and maintenance
		target := LogScopes(1 << i)
		if f.IsEnabled(target) {
			if name := scopeName(target); name != "" {
				if builder.Len() > 0 {
					builder.WriteByte('|')
				}
				builder.WriteString(name)
			}
		}
	}
	return builder.String()
}

// ParseLogScopes parses a comma separated list of scope names, e.g. "selection,lowering".
func ParseLogScopes(input string) (LogScopes, error) {
	var ret LogScopes
	for _, s := range strings.Split(input, ",") {
		switch strings.TrimSpace(s) {
		case "":
			continue
		case "all":
			ret |= LogScopeAll
		case "selection":
			ret |= LogScopeSelection
		case "reservation":
			ret |= LogScopeReservation
		case "lowering":
			ret |= LogScopeLowering
		default:
			return 0, fmt.Errorf("not a log scope: %q", s)
		}
	}
	return ret, nil
}

// ParseLevel parses a level name such as "debug" or "warn".
func ParseLevel(lvl string) (slog.Level, error) {
	switch strings.ToUpper(lvl) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid level: %s", lvl)
	}
}

// Logger writes code generation events of the enabled scopes to a slog.Handler.
// The zero value discards everything.
type Logger struct {
	inner  *slog.Logger
	scopes LogScopes
}

// NewLogger returns a Logger writing the given scopes to h.
func NewLogger(h slog.Handler, scopes LogScopes) *Logger {
	return &Logger{inner: slog.New(h), scopes: scopes}
}

// Discard returns a Logger which logs nothing.
func Discard() *Logger {
	return &Logger{}
}

// Scopes returns the enabled scopes.
func (l *Logger) Scopes() LogScopes {
	if l == nil {
		return LogScopeNone
	}
	return l.scopes
}

// Enabled reports whether an event of the scope at level would be written.
func (l *Logger) Enabled(scope LogScopes, level slog.Level) bool {
	if l == nil || l.inner == nil || !l.scopes.IsEnabled(scope) {
		return false
	}
	return l.inner.Enabled(context.Background(), level)
}

// With returns a Logger that adds the given attributes to every event.
func (l *Logger) With(attrs ...any) *Logger {
	if l == nil || l.inner == nil {
		return l
	}
	return &Logger{inner: l.inner.With(attrs...), scopes: l.scopes}
}

// Debug logs msg at the debug level when scope is enabled.
func (l *Logger) Debug(scope LogScopes, msg string, attrs ...any) {
	l.Log(scope, slog.LevelDebug, msg, attrs...)
}

// Info logs msg at the info level when scope is enabled.
func (l *Logger) Info(scope LogScopes, msg string, attrs ...any) {
	l.Log(scope, slog.LevelInfo, msg, attrs...)
}

// Log logs msg at level when scope is enabled.
func (l *Logger) Log(scope LogScopes, level slog.Level, msg string, attrs ...any) {
	if !l.Enabled(scope, level) {
		return
	}
	l.inner.Log(context.Background(), level, msg, append(attrs, "scope", scopeName(scope))...)
}
