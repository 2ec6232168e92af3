package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	testCases := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "message only",
			err:      &Error{Kind: KindInternal, Message: "boom"},
			expected: "boom",
		},
		{
			name:     "code and op",
			err:      NewWriteError(CodeShortWrite, "partial send", nil).WithOp("send"),
			expected: "[ERR_SHORT_WRITE] send: partial send",
		},
		{
			name:     "with cause",
			err:      NewTransportError(CodeConduitOpen, "open failed", io.ErrClosedPipe),
			expected: "[ERR_CONDUIT_OPEN] open failed: io: read/write on closed pipe",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestErrorUnwrapAndIs(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := NewDecodeError("bad chunk", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.Is(err, &Error{Kind: KindDecode, Code: CodeMalformed}))
	assert.False(t, errors.Is(err, &Error{Kind: KindWrite, Code: CodeMalformed}))

	wrapped := fmt.Errorf("dispatch: %w", err)
	var target *Error
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, KindDecode, target.Kind)
}

func TestWithContext(t *testing.T) {
	err := NewSupervisorError(CodeSpawnFailed, "cannot start", nil).
		WithContext("path", "/bin/renderer").
		WithContext("attempt", 1)

	assert.Equal(t, "/bin/renderer", err.Context["path"])
	assert.Equal(t, 1, err.Context["attempt"])
}

func TestClassification(t *testing.T) {
	testCases := []struct {
		name        string
		err         error
		kind        Kind
		recoverable bool
		fatal       bool
	}{
		{"decode", NewDecodeError("x", nil), KindDecode, true, false},
		{"write", NewWriteError(CodeWriteFailed, "x", nil), KindWrite, false, true},
		{"supervisor", NewSupervisorError(CodeRendererExited, "x", nil), KindSupervisor, false, true},
		{"transport", NewTransportError(CodeConduitRead, "x", nil), KindTransport, false, true},
		{"config", NewConfigError("x"), KindConfig, false, true},
		{"keymap", NewKeymapError(CodeKeymapConflict, "x"), KindKeymap, false, true},
		{"plain", errors.New("x"), KindInternal, false, true},
		{"wrapped decode", fmt.Errorf("outer: %w", NewDecodeError("x", nil)), KindDecode, true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.recoverable, IsRecoverable(tc.err))
			assert.Equal(t, tc.fatal, IsFatal(tc.err))
		})
	}

	assert.False(t, IsFatal(nil))
	assert.True(t, IsDecodeError(NewDecodeError("x", nil)))
	assert.True(t, IsWriteError(NewWriteError(CodeShortWrite, "x", nil)))
}

type recordingLogger struct {
	errors []string
	warns  []string
	fields [][]interface{}
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.errors = append(r.errors, msg)
	r.fields = append(r.fields, fields)
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.warns = append(r.warns, msg)
	r.fields = append(r.fields, fields)
}

func TestReport(t *testing.T) {
	ctx := context.Background()

	t.Run("recoverable logs a warning", func(t *testing.T) {
		logger := &recordingLogger{}
		Report(ctx, logger, NewDecodeError("bad json", nil).WithOp("decode"))

		assert.Len(t, logger.warns, 1)
		assert.Empty(t, logger.errors)
		assert.Contains(t, logger.fields[0], "op")
	})

	t.Run("fatal logs an error", func(t *testing.T) {
		logger := &recordingLogger{}
		Report(ctx, logger, NewWriteError(CodeShortWrite, "short", nil))

		assert.Len(t, logger.errors, 1)
		assert.Empty(t, logger.warns)
	})

	t.Run("plain error", func(t *testing.T) {
		logger := &recordingLogger{}
		Report(ctx, logger, errors.New("plain"))

		assert.Equal(t, []string{"Unhandled error occurred"}, logger.errors)
	})

	t.Run("nil is ignored", func(t *testing.T) {
		logger := &recordingLogger{}
		Report(ctx, logger, nil)
		Report(ctx, nil, errors.New("x"))

		assert.Empty(t, logger.errors)
		assert.Empty(t, logger.warns)
	})
}
