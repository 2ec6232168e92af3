// Package transport carries messages between the application and the
// renderer.
//
// A Conduit joins one inbound and one outbound stream into a message
// channel. Receive returns an empty slice with a nil error when the renderer
// closes its end; that is the termination signal, not a failure.
package transport

import (
	"context"
	"errors"
	"fmt"

	fwerrors "github.com/conneroisu/fwif/internal/errors"
)

// DefaultChunkSize bounds a single received message.
const DefaultChunkSize = 1024

// MaxSendSize bounds a single outbound view; renderers read at most this
// much per view. The chunk size does not apply to sends.
const MaxSendSize = 1 << 20

// Environment variables exported to the renderer.
const (
	EnvReadPipe  = "FWIF_READ_PIPE"
	EnvWritePipe = "FWIF_WRITE_PIPE"
	EnvListen    = "FWIF_LISTEN"
)

var (
	// ErrClosed is returned by operations on a closed conduit.
	ErrClosed = errors.New("transport: conduit closed")
	// ErrNotOpen is returned by Receive and Send before Open succeeds.
	ErrNotOpen = errors.New("transport: conduit not open")
	// ErrShortWrite reports a send that did not transfer the whole payload.
	ErrShortWrite = errors.New("transport: short write")
)

// Conduit is a framed, bidirectional message channel to the renderer. One
// call to Receive returns one message of at most the chunk size. One call to
// Send writes one view of at most MaxSendSize bytes; a larger view is a
// write error and nothing is sent.
//
// Receive and Send may be called concurrently with each other but not with
// themselves. Close may be called at any time, any number of times.
type Conduit interface {
	// Prepare creates whatever the renderer needs to find before it starts:
	// the named pipes or the listening socket.
	Prepare() error
	// Env returns the variables that tell a spawned renderer where to connect.
	Env() []string
	// Open blocks until the renderer has connected in both directions.
	Open(ctx context.Context) error
	Receive(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, p []byte) error
	Close() error
}

// Kind names a conduit implementation.
type Kind string

const (
	KindFIFO      Kind = "fifo"
	KindWebSocket Kind = "websocket"
)

// Config selects and configures a conduit.
type Config struct {
	Kind Kind
	// Outbound is the pipe the application writes and the renderer reads.
	Outbound string
	// Inbound is the pipe the renderer writes and the application reads.
	Inbound string
	// Listen is the websocket listen address.
	Listen    string
	ChunkSize int
}

// New builds the conduit described by config.
func New(config Config) (Conduit, error) {
	switch config.Kind {
	case "", KindFIFO:
		return NewFIFO(config.Outbound, config.Inbound, config.ChunkSize)
	case KindWebSocket:
		return NewWebSocket(config.Listen, config.ChunkSize), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", config.Kind)
	}
}

func chunkSizeOrDefault(n int) int {
	if n <= 0 {
		return DefaultChunkSize
	}

	return n
}

// checkSendSize rejects a view the renderer would truncate.
func checkSendSize(p []byte) error {
	if len(p) <= MaxSendSize {
		return nil
	}

	return fwerrors.NewWriteError(fwerrors.CodeFrameTooLarge,
		fmt.Sprintf("view of %d bytes exceeds %d", len(p), MaxSendSize), nil).
		WithContext("size", len(p))
}
