package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" INFO ":  zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("panic")
	require.False(t, ok)
}

// TestContextLogger checks that named loggers travel with the context.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := New(zap.NewAtomicLevelAt(zap.DebugLevel), zapcore.AddSync(&buf))
	ctx := ToContext(context.Background(), l)
	ctx = WithName(ctx, "get-meson")
	ctx = WithKV(ctx, "version", "0.56.0")

	InfoKV(ctx, "Probing installation", "path", "meson-portable/meson.py")
	DebugKV(ctx, "State changed", "to", "CHECK")

	out := buf.String()
	require.Contains(t, out, "get-meson")
	require.Contains(t, out, "Probing installation")
	require.Contains(t, out, `"version": "0.56.0"`)
	require.Contains(t, out, "State changed")
	require.Contains(t, out, `"to": "CHECK"`)
}

// TestFromContextFallsBackToGlobal ensures a bare context yields the global logger.
func TestFromContextFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}
