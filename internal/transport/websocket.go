package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	fwerrors "github.com/conneroisu/fwif/internal/errors"
)

// DefaultListen is the websocket listen address used when none is set.
const DefaultListen = "127.0.0.1:0"

// WebSocket is a Conduit where the application listens and a single
// renderer connects. Each text message is one channel message and a normal
// closure from the renderer is the termination signal.
type WebSocket struct {
	listen    string
	chunkSize int

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	conn     *websocket.Conn
	accepted chan *websocket.Conn
	closed   bool
	closing  chan struct{}
}

// NewWebSocket creates a websocket conduit listening on addr.
func NewWebSocket(addr string, chunkSize int) *WebSocket {
	if addr == "" {
		addr = DefaultListen
	}

	return &WebSocket{
		listen:    addr,
		chunkSize: chunkSizeOrDefault(chunkSize),
		accepted:  make(chan *websocket.Conn, 1),
		closing:   make(chan struct{}),
	}
}

// Prepare starts listening so the renderer can connect as soon as it runs.
func (w *WebSocket) Prepare() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", w.listen)
	if err != nil {
		return fwerrors.NewTransportError(fwerrors.CodeConduitCreate, "cannot listen", err).
			WithContext("listen", w.listen)
	}

	w.listener = ln
	w.server = &http.Server{
		Handler:           http.HandlerFunc(w.handleRenderer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = w.server.Serve(ln)
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Prepare.
func (w *WebSocket) Addr() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.listener == nil {
		return ""
	}

	return w.listener.Addr().String()
}

// Env tells the renderer where to connect.
func (w *WebSocket) Env() []string {
	return []string{EnvListen + "=" + w.Addr()}
}

func (w *WebSocket) handleRenderer(rw http.ResponseWriter, r *http.Request) {
	if !checkOrigin(r) {
		http.Error(rw, "Origin not allowed", http.StatusForbidden)
		return
	}

	w.mu.Lock()
	taken := w.conn != nil || len(w.accepted) > 0 || w.closed
	w.mu.Unlock()
	if taken {
		http.Error(rw, "renderer already connected", http.StatusConflict)
		return
	}

	conn, err := websocket.Accept(rw, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	conn.SetReadLimit(int64(w.chunkSize))

	select {
	case w.accepted <- conn:
	default:
		conn.Close(websocket.StatusPolicyViolation, "renderer already connected")
	}
}

// checkOrigin admits clients without an Origin header, which is how
// non-browser renderers connect, and browsers on a loopback origin.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

// Open waits for the renderer to connect.
func (w *WebSocket) Open(ctx context.Context) error {
	if err := w.Prepare(); err != nil {
		return err
	}

	select {
	case conn := <-w.accepted:
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed {
			_ = conn.CloseNow()
			return ErrClosed
		}
		w.conn = conn
		return nil
	case <-w.closing:
		return ErrClosed
	case <-ctx.Done():
		return fwerrors.NewTransportError(fwerrors.CodeConduitOpen, "renderer did not connect", ctx.Err()).
			WithContext("listen", w.Addr())
	}
}

func (w *WebSocket) connection() (*websocket.Conn, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if w.conn == nil {
		return nil, ErrNotOpen
	}

	return w.conn, nil
}

// Receive returns the next message. A normal closure yields an empty slice
// and a nil error.
func (w *WebSocket) Receive(ctx context.Context) ([]byte, error) {
	conn, err := w.connection()
	if err != nil {
		return nil, err
	}

	_, data, err := conn.Read(ctx)
	if err == nil {
		if data == nil {
			data = []byte{}
		}
		return data, nil
	}

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return []byte{}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if w.isClosed() {
		return nil, ErrClosed
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return []byte{}, nil
	}

	return nil, fwerrors.NewTransportError(fwerrors.CodeConduitRead, "cannot read from renderer", err)
}

// Send writes p as one text message.
func (w *WebSocket) Send(ctx context.Context, p []byte) error {
	if err := checkSendSize(p); err != nil {
		return err
	}

	conn, err := w.connection()
	if err != nil {
		return err
	}

	if err := conn.Write(ctx, websocket.MessageText, p); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.isClosed() {
			return ErrClosed
		}
		return fwerrors.NewWriteError(fwerrors.CodeWriteFailed, "cannot write to renderer", err).
			WithContext("size", len(p))
	}

	return nil
}

func (w *WebSocket) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.closed
}

// Close closes the connection and stops listening. It is idempotent.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closing)
	conn, server := w.conn, w.server
	w.mu.Unlock()

	select {
	case pending := <-w.accepted:
		_ = pending.CloseNow()
	default:
	}

	if conn != nil {
		_ = conn.CloseNow()
	}
	if server != nil {
		return server.Close()
	}

	return nil
}
