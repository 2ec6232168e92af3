package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel, format string) (*FwifLogger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger, err := NewLogger(&LoggerConfig{Level: level, Format: format, Output: &buf})
	require.NoError(t, err)

	return logger, &buf
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"verbose", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			level, err := ParseLevel(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, level)
		})
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "FATAL", LevelFatal.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelWarn, "text")
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, nil, "warn message")
	logger.Error(ctx, errors.New("boom"), "error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
	assert.Contains(t, out, "error=boom")
}

func TestJSONFieldsAndComponent(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelDebug, "json")

	scoped := logger.WithComponent("renderer").With("stream", "stderr")
	scoped.Info(context.Background(), "line", "text", "hello")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "line", record["msg"])
	assert.Equal(t, "renderer", record["component"])
	assert.Equal(t, "stderr", record["stream"])
	assert.Equal(t, "hello", record["text"])
}

func TestWithDoesNotMutateParent(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelDebug, "text")

	_ = logger.With("session", "abc")
	logger.Info(context.Background(), "plain")

	assert.NotContains(t, buf.String(), "session=abc")
}

func TestFatalDoesNotExit(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelDebug, "text")

	logger.Fatal(context.Background(), errors.New("write failed"), "session ended")

	assert.Contains(t, buf.String(), "session ended")
	assert.Contains(t, buf.String(), "fatal=true")
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "fwif.log")

	var terminal bytes.Buffer
	logger, err := NewLogger(&LoggerConfig{
		Level:  LevelInfo,
		Format: "text",
		Output: &terminal,
		File:   path,
	})
	require.NoError(t, err)

	logger.Info(context.Background(), "to both sinks", "n", 1)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to both sinks"`)
	assert.Contains(t, terminal.String(), "to both sinks")
}

func TestFileSinkError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewLogger(&LoggerConfig{File: filepath.Join(blocker, "nested", "x.log")})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	logger := NewNop()

	assert.NotPanics(t, func() {
		logger.Error(context.Background(), errors.New("x"), "ignored")
		logger.With("a", 1).WithComponent("c").Info(context.Background(), "ignored")
	})
}

func TestToJournalKey(t *testing.T) {
	assert.Equal(t, "DURATION_MS", toJournalKey("duration_ms"))
	assert.Equal(t, "SESSION_ID", toJournalKey("session.id"))
	assert.Equal(t, "A1_B", toJournalKey("a1-b"))
}

func TestPerfLogger(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelDebug, "text")

	op := StartOperation(logger, "startup")
	op.End(context.Background())

	out := buf.String()
	assert.True(t, strings.Contains(out, "operation=startup"))
	assert.Contains(t, out, "duration_ms=")
}
