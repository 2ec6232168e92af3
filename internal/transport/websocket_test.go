package transport

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fwerrors "github.com/conneroisu/fwif/internal/errors"
)

func openWebSocket(t *testing.T, chunkSize int) (*WebSocket, *websocket.Conn) {
	t.Helper()

	w := NewWebSocket("127.0.0.1:0", chunkSize)
	require.NoError(t, w.Prepare())
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opened := make(chan error, 1)
	go func() {
		opened <- w.Open(ctx)
	}()

	conn, _, err := websocket.Dial(ctx, "ws://"+w.Addr(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	require.NoError(t, <-opened)

	return w, conn
}

func TestWebSocketEnv(t *testing.T) {
	w := NewWebSocket("", 0)
	assert.Equal(t, "", w.Addr())

	require.NoError(t, w.Prepare())
	defer w.Close()

	env := w.Env()
	require.Len(t, env, 1)
	assert.True(t, strings.HasPrefix(env[0], "FWIF_LISTEN=127.0.0.1:"))
}

func TestWebSocketExchange(t *testing.T) {
	w, conn := openWebSocket(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"key":"j"}`)))

	msg, err := w.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"key":"j"}`, string(msg))

	require.NoError(t, w.Send(ctx, []byte(`{"components":[]}`)))

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, `{"components":[]}`, string(data))
}

func TestWebSocketSendBoundedByMaxSendSize(t *testing.T) {
	w, conn := openWebSocket(t, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	view := strings.Repeat("v", 4096)
	require.NoError(t, w.Send(ctx, []byte(view)))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, view, string(data))

	err = w.Send(ctx, make([]byte, MaxSendSize+1))
	require.Error(t, err)
	assert.True(t, fwerrors.IsWriteError(err))
}

func TestWebSocketNormalClosureIsTermination(t *testing.T) {
	w, conn := openWebSocket(t, 0)

	go conn.Close(websocket.StatusNormalClosure, "bye")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, err := w.Receive(ctx)
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestWebSocketReadLimit(t *testing.T) {
	w, conn := openWebSocket(t, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go conn.Write(ctx, websocket.MessageText, []byte(strings.Repeat("x", 64)))

	_, err := w.Receive(ctx)
	require.Error(t, err)
	assert.Equal(t, fwerrors.KindTransport, fwerrors.KindOf(err))
}

func TestWebSocketSingleRenderer(t *testing.T) {
	w, _ := openWebSocket(t, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws://"+w.Addr(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	w := NewWebSocket("127.0.0.1:0", 0)
	require.NoError(t, w.Prepare())
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws://"+w.Addr(), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	testCases := []struct {
		origin   string
		expected bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"https://127.0.0.1", true},
		{"http://example.com", false},
		{"file://localhost", false},
		{"://bad", false},
	}

	for _, tc := range testCases {
		t.Run(tc.origin, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodGet, "http://127.0.0.1/", nil)
			require.NoError(t, err)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			assert.Equal(t, tc.expected, checkOrigin(r))
		})
	}
}

func TestWebSocketOpenTimeout(t *testing.T) {
	w := NewWebSocket("127.0.0.1:0", 0)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.Open(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWebSocketCloseIdempotent(t *testing.T) {
	w, _ := openWebSocket(t, 0)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())

	_, err := w.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, w.Send(context.Background(), []byte("x")), ErrClosed)
	assert.ErrorIs(t, w.Prepare(), ErrClosed)
}

func TestWebSocketBeforeOpen(t *testing.T) {
	w := NewWebSocket("127.0.0.1:0", 0)
	defer w.Close()

	_, err := w.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
}
