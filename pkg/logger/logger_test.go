package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdtech/hackathon/pkg/config"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func bufferLogger(buf *bytes.Buffer) *Logger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	return &Logger{zlog: zerolog.New(buf).With().Timestamp().Logger()}
}

func TestNewSetsLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"}, &buf)
			require.NotNil(t, l)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"fatal", zerolog.FatalLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.input), tt.input)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&config.Config{Env: "staging", LogLevel: "info", LogFormat: "json"}, &buf)
	l.Info("stage resolved")

	entry := decode(t, &buf)
	assert.Equal(t, "stage resolved", entry["message"])
	assert.Equal(t, "staging", entry["env"])
	assert.Equal(t, "hackathon", entry["service"])
}

func TestNewWithWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&config.Config{Env: "development", LogLevel: "info", LogFormat: "console"}, &buf)
	l.Info("console line")

	assert.Contains(t, buf.String(), "console line")
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	tests := []struct {
		name    string
		logFunc func()
		level   string
		msg     string
	}{
		{"debug", func() { l.Debug("d") }, "debug", "d"},
		{"info", func() { l.Info("i") }, "info", "i"},
		{"warnf", func() { l.Warnf("retry %d", 3) }, "warn", "retry 3"},
		{"errorf", func() { l.Errorf("failed: %s", "timeout") }, "error", "failed: timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()
			entry := decode(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.msg, entry["message"])
		})
	}
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.Component("ledger").
		WithField("investor", "alice").
		WithFields(map[string]interface{}{"project_id": 7, "amount": 60}).
		WithError(errors.New("write failed")).
		Error("budget sync failed")

	entry := decode(t, &buf)
	assert.Equal(t, "ledger", entry["component"])
	assert.Equal(t, "alice", entry["investor"])
	assert.Equal(t, float64(7), entry["project_id"])
	assert.Equal(t, float64(60), entry["amount"])
	assert.Equal(t, "write failed", entry["error"])
}

func TestWithContextRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))

	l.WithContext(ctx).Info("handled")
	entry := decode(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("discarded")
	l.WithField("k", "v").Error("discarded")
}
