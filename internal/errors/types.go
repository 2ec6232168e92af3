// Package errors defines the error taxonomy shared by the transport, the
// supervisor and the dispatch loop.
//
// Errors are classified by Kind. Decode errors are recoverable: the dispatch
// loop logs them and keeps running. Write and supervisor errors are fatal and
// end the session. A peer closing its end of the channel is not an error at
// all and never appears here.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of an error.
type Kind string

const (
	KindTransport  Kind = "transport"
	KindDecode     Kind = "decode"
	KindWrite      Kind = "write"
	KindSupervisor Kind = "supervisor"
	KindConfig     Kind = "config"
	KindKeymap     Kind = "keymap"
	KindInternal   Kind = "internal"
)

// Common error codes.
const (
	CodeConduitCreate  = "ERR_CONDUIT_CREATE"
	CodeConduitOpen    = "ERR_CONDUIT_OPEN"
	CodeConduitRead    = "ERR_CONDUIT_READ"
	CodeShortWrite     = "ERR_SHORT_WRITE"
	CodeWriteFailed    = "ERR_WRITE_FAILED"
	CodeFrameTooLarge  = "ERR_FRAME_TOO_LARGE"
	CodeMalformed      = "ERR_MALFORMED_MESSAGE"
	CodeSpawnFailed    = "ERR_SPAWN_FAILED"
	CodeRendererExited = "ERR_RENDERER_EXITED"
	CodeConfigInvalid  = "ERR_CONFIG_INVALID"
	CodeKeymapInvalid  = "ERR_KEYMAP_INVALID"
	CodeKeymapConflict = "ERR_KEYMAP_CONFLICT"
)

// Error is a structured error carrying its kind, a stable code and the
// operation that produced it.
type Error struct {
	Kind    Kind
	Code    string
	Op      string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Op != "" {
		parts = append(parts, e.Op+":")
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same kind and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithOp records the operation that failed.
func (e *Error) WithOp(op string) *Error {
	e.Op = op

	return e
}

// Recoverable reports whether the dispatch loop may continue after e.
func (e *Error) Recoverable() bool {
	return e.Kind == KindDecode
}

// NewTransportError creates an error for a conduit that could not be
// created, opened or read.
func NewTransportError(code, message string, cause error) *Error {
	return &Error{Kind: KindTransport, Code: code, Message: message, Cause: cause}
}

// NewDecodeError creates an error for an inbound message that could not be
// interpreted.
func NewDecodeError(message string, cause error) *Error {
	return &Error{Kind: KindDecode, Code: CodeMalformed, Message: message, Cause: cause}
}

// NewWriteError creates an error for an outbound send that did not complete.
func NewWriteError(code, message string, cause error) *Error {
	return &Error{Kind: KindWrite, Code: code, Message: message, Cause: cause}
}

// NewSupervisorError creates an error for a renderer that could not be
// launched or that exited unexpectedly.
func NewSupervisorError(code, message string, cause error) *Error {
	return &Error{Kind: KindSupervisor, Code: code, Message: message, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string) *Error {
	return &Error{Kind: KindConfig, Code: CodeConfigInvalid, Message: message}
}

// NewKeymapError creates a keymap error.
func NewKeymapError(code, message string) *Error {
	return &Error{Kind: KindKeymap, Code: code, Message: message}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable()
	}

	return false
}

// IsFatal reports whether err must end the session.
func IsFatal(err error) bool {
	return err != nil && !IsRecoverable(err)
}

// IsDecodeError checks if an error is a decode failure.
func IsDecodeError(err error) bool {
	return KindOf(err) == KindDecode
}

// IsWriteError checks if an error is a write failure.
func IsWriteError(err error) bool {
	return KindOf(err) == KindWrite
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// Report logs err at a level matching its kind. Recoverable errors are
// warnings, everything else is an error.
func Report(ctx context.Context, logger Logger, err error) {
	if err == nil || logger == nil {
		return
	}

	var e *Error
	if !errors.As(err, &e) {
		logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	fields := []interface{}{"kind", e.Kind, "code", e.Code}
	if e.Op != "" {
		fields = append(fields, "op", e.Op)
	}
	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	if e.Recoverable() {
		logger.Warn(ctx, err, "Recoverable error occurred", fields...)
		return
	}
	logger.Error(ctx, err, "Error occurred", fields...)
}
