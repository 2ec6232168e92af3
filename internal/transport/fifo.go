package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	fwerrors "github.com/conneroisu/fwif/internal/errors"
)

// FIFO is a Conduit over two named pipes.
//
// The outbound pipe is opened first, then the inbound one; a renderer must
// open them in the same order (its read side first) or both ends deadlock.
type FIFO struct {
	outboundPath string
	inboundPath  string
	chunkSize    int

	mu       sync.Mutex
	out      *os.File
	in       *os.File
	closed   bool
	closing  chan struct{}
	sendLock sync.Mutex
}

// NewFIFO creates a FIFO conduit. Neither path is touched until Prepare.
func NewFIFO(outbound, inbound string, chunkSize int) (*FIFO, error) {
	if outbound == "" || inbound == "" {
		return nil, fwerrors.NewConfigError("both conduit paths are required")
	}
	if outbound == inbound {
		return nil, fwerrors.NewConfigError("conduit paths must differ").
			WithContext("path", outbound)
	}

	return &FIFO{
		outboundPath: outbound,
		inboundPath:  inbound,
		chunkSize:    chunkSizeOrDefault(chunkSize),
		closing:      make(chan struct{}),
	}, nil
}

// Prepare creates both named pipes. A pipe that already exists is reused.
func (f *FIFO) Prepare() error {
	for _, path := range []string{f.outboundPath, f.inboundPath} {
		if err := ensureFIFO(path); err != nil {
			return err
		}
	}

	return nil
}

func ensureFIFO(path string) error {
	err := unix.Mkfifo(path, 0o600)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EEXIST) {
		return fwerrors.NewTransportError(fwerrors.CodeConduitCreate, "cannot create named pipe", err).
			WithContext("path", path)
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		return fwerrors.NewTransportError(fwerrors.CodeConduitCreate, "cannot stat existing conduit", statErr).
			WithContext("path", path)
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		return fwerrors.NewTransportError(fwerrors.CodeConduitCreate, "conduit path exists and is not a named pipe", nil).
			WithContext("path", path)
	}

	return nil
}

// Env points the renderer at both pipes.
func (f *FIFO) Env() []string {
	return []string{
		EnvReadPipe + "=" + f.outboundPath,
		EnvWritePipe + "=" + f.inboundPath,
	}
}

// Paths returns the outbound and inbound pipe paths.
func (f *FIFO) Paths() (outbound, inbound string) {
	return f.outboundPath, f.inboundPath
}

// Open opens the outbound pipe for writing, then the inbound pipe for
// reading. Each open blocks until the renderer opens the other end. Cancelling
// ctx or calling Close releases a pending open.
func (f *FIFO) Open(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-f.closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	out, err := openPipe(ctx, f.outboundPath, os.O_WRONLY, os.O_RDONLY)
	if err != nil {
		return fwerrors.NewTransportError(fwerrors.CodeConduitOpen, "cannot open outbound conduit", err).
			WithContext("path", f.outboundPath)
	}

	in, err := openPipe(ctx, f.inboundPath, os.O_RDONLY, os.O_WRONLY)
	if err != nil {
		out.Close()
		return fwerrors.NewTransportError(fwerrors.CodeConduitOpen, "cannot open inbound conduit", err).
			WithContext("path", f.inboundPath)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		out.Close()
		in.Close()
		return ErrClosed
	}
	f.out, f.in = out, in

	return nil
}

// openPipe opens path with flag, which may block until the other end is
// opened. On cancellation the counterpart end is opened non-blockingly so the
// pending open returns, and the result is discarded.
func openPipe(ctx context.Context, path string, flag, counterpart int) (*os.File, error) {
	type result struct {
		file *os.File
		err  error
	}
	done := make(chan result, 1)

	go func() {
		file, err := os.OpenFile(path, flag, 0)
		done <- result{file, err}
	}()

	select {
	case r := <-done:
		return r.file, r.err
	case <-ctx.Done():
	}

	if peer, err := os.OpenFile(path, counterpart|unix.O_NONBLOCK, 0); err == nil {
		peer.Close()
	}
	go func() {
		if r := <-done; r.file != nil {
			r.file.Close()
		}
	}()

	return nil, ctx.Err()
}

// Receive reads one message of at most the chunk size. It returns an empty
// slice and a nil error once the renderer has closed its write end.
func (f *FIFO) Receive(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	in, closed := f.in, f.closed
	f.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if in == nil {
		return nil, ErrNotOpen
	}

	_ = in.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		_ = in.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, f.chunkSize)
	n, err := in.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}

	switch {
	case err == nil, errors.Is(err, io.EOF):
		return []byte{}, nil
	case errors.Is(err, os.ErrDeadlineExceeded) && ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, os.ErrClosed):
		return nil, ErrClosed
	default:
		return nil, fwerrors.NewTransportError(fwerrors.CodeConduitRead, "cannot read inbound conduit", err).
			WithContext("path", f.inboundPath)
	}
}

// Send writes p in full. A partial write is reported as ErrShortWrite and
// is not retried.
func (f *FIFO) Send(ctx context.Context, p []byte) error {
	if err := checkSendSize(p); err != nil {
		return err
	}

	f.sendLock.Lock()
	defer f.sendLock.Unlock()

	f.mu.Lock()
	out, closed := f.out, f.closed
	f.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if out == nil {
		return ErrNotOpen
	}

	_ = out.SetWriteDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		_ = out.SetWriteDeadline(time.Now())
	})
	defer stop()

	n, err := out.Write(p)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, os.ErrClosed) {
			return ErrClosed
		}
		return fwerrors.NewWriteError(fwerrors.CodeWriteFailed, "cannot write outbound conduit", err).
			WithContext("written", n).
			WithContext("size", len(p))
	}
	if n != len(p) {
		return fwerrors.NewWriteError(fwerrors.CodeShortWrite, fmt.Sprintf("wrote %d of %d bytes", n, len(p)), ErrShortWrite)
	}

	return nil
}

// Close releases both pipes. It is safe to call more than once and while
// Open, Receive or Send are blocked.
func (f *FIFO) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.closing)
	out, in := f.out, f.in
	f.mu.Unlock()

	var errs []error
	if out != nil {
		if err := out.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if in != nil {
		if err := in.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
