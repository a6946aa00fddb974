package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var out []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		out = append(out, e)
	}
	return out
}

func TestLogger_LevelFilteringAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelInfo})

	l.Debug("hidden")
	l.With(UserID("u-1")).Info("points awarded", ActionKey("DAILY_CHECKIN"), Points(15))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "points awarded", entries[0].Message)
	assert.Equal(t, "u-1", entries[0].Fields["user_id"])
	assert.Equal(t, "DAILY_CHECKIN", entries[0].Fields["action_key"])
	assert.Equal(t, float64(15), entries[0].Fields["points"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelDebug})
	ctx := WithContext(context.Background(), l.WithRequestID("req-1"))

	FromContext(ctx).Warn("careful")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].Fields[RequestIDKey])
}

func TestSlogBridge(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelInfo})
	s := l.Slog().With("component", "eventbus").WithGroup("event")

	s.Debug("dropped")
	s.Error("handler failed", "type", "progress.level_up", "error", errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0].Level)
	assert.Equal(t, "eventbus", entries[0].Fields["component"])
	assert.Equal(t, "progress.level_up", entries[0].Fields["event.type"])
	assert.Equal(t, "boom", entries[0].Fields["event.error"])
}

func TestLogger_CallerPointsAtCallSite(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: LevelInfo, AddCaller: true})

	l.Info("direct")
	l.Slog().Info("bridged")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.True(t, strings.HasPrefix(entries[0].Caller, "logger_test.go:"), entries[0].Caller)
	assert.True(t, strings.HasPrefix(entries[1].Caller, "logger_test.go:"), entries[1].Caller)
}
