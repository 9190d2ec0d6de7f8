package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLogScopes tests the bitset works as expected
func TestLogScopes(t *testing.T) {
	tests := []struct {
		name   string
		scopes LogScopes
	}{
		{
			name:   "one is the smallest flag",
			scopes: 1,
		},
		{
			name:   "63 is the largest feature flag", // because uint64
			scopes: 1 << 63,
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			f := LogScopes(0)

			// Defaults to false
			require.False(t, f.IsEnabled(tc.scopes))

			// Set true makes it true
			f = f | tc.scopes
			require.True(t, f.IsEnabled(tc.scopes))

			// Set false makes it false again
			f = f ^ tc.scopes
			require.False(t, f.IsEnabled(tc.scopes))
		})
	}
}

func TestLogScopes_String(t *testing.T) {
	tests := []struct {
		name     string
		scopes   LogScopes
		expected string
	}{
		{name: "none", scopes: LogScopeNone, expected: ""},
		{name: "any", scopes: LogScopeAll, expected: "all"},
		{name: "selection", scopes: LogScopeSelection, expected: "selection"},
		{name: "reservation", scopes: LogScopeReservation, expected: "reservation"},
		{name: "lowering", scopes: LogScopeLowering, expected: "lowering"},
		{name: "selection|lowering", scopes: LogScopeSelection | LogScopeLowering, expected: "selection|lowering"},
		{name: "undefined", scopes: 1 << 14, expected: "<unknown=16384>"},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.scopes.String())
		})
	}
}

func TestParseLogScopes(t *testing.T) {
	tests := []struct {
		input    string
		expected LogScopes
		err      bool
	}{
		{input: "", expected: LogScopeNone},
		{input: "all", expected: LogScopeAll},
		{input: "selection,lowering", expected: LogScopeSelection | LogScopeLowering},
		{input: "reservation, selection", expected: LogScopeReservation | LogScopeSelection},
		{input: "clock", err: true},
	}
	for _, tc := range tests {
		actual, err := ParseLogScopes(tc.input)
		if tc.err {
			require.Error(t, err, tc.input)
			continue
		}
		require.NoError(t, err, tc.input)
		require.Equal(t, tc.expected, actual, tc.input)
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, l)
	l, err = ParseLevel("WARNING")
	require.NoError(t, err)
	require.Equal(t, slog.LevelWarn, l)
	_, err = ParseLevel("loud")
	require.EqualError(t, err, "invalid level: loud")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	l := NewLogger(h, LogScopeSelection)

	require.True(t, l.Enabled(LogScopeSelection, slog.LevelDebug))
	require.False(t, l.Enabled(LogScopeLowering, slog.LevelDebug))

	l.Debug(LogScopeLowering, "lowered")
	require.Equal(t, 0, buf.Len())

	l.With("cell", 3).Debug(LogScopeSelection, "selected", "variant", "VectorFltAVX")
	require.Contains(t, buf.String(), "msg=selected")
	require.Contains(t, buf.String(), "cell=3")
	require.Contains(t, buf.String(), "variant=VectorFltAVX")
	require.Contains(t, buf.String(), "scope=selection")
}

func TestLogger_discard(t *testing.T) {
	for _, l := range []*Logger{nil, Discard(), {}} {
		require.False(t, l.Enabled(LogScopeAll, slog.LevelError))
		require.Equal(t, LogScopeNone, l.Scopes())
		l.Debug(LogScopeAll, "nothing")
		l.With("k", "v").Info(LogScopeAll, "nothing")
	}
}
