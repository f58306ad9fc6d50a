package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/websocket"
)

// kitchenServer pushes frames to every connected client and records the
// Authorization header of the upgrade request.
type kitchenServer struct {
	srv    *httptest.Server
	frames chan string
	auth   chan string
}

func newKitchenServer(t *testing.T) *kitchenServer {
	t.Helper()
	ks := &kitchenServer{
		frames: make(chan string, 16),
		auth:   make(chan string, 4),
	}
	mux := http.NewServeMux()
	mux.Handle("/ws/kitchen", websocket.Handler(func(conn *websocket.Conn) {
		ks.auth <- conn.Request().Header.Get("Authorization")
		for {
			select {
			case f := <-ks.frames:
				if err := websocket.Message.Send(conn, f); err != nil {
					return
				}
			case <-conn.Request().Context().Done():
				return
			}
		}
	}))
	ks.srv = httptest.NewServer(mux)
	t.Cleanup(ks.srv.Close)
	return ks
}

func (ks *kitchenServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ks.srv.URL, "http") + "/ws/kitchen"
}

func TestWebSocketDialer_ReadsFrames(t *testing.T) {
	ks := newKitchenServer(t)
	d := &WebSocketDialer{
		URL:    ks.wsURL(),
		Origin: ks.srv.URL,
		Header: http.Header{"Authorization": []string{"Bearer tkn"}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "Bearer tkn", <-ks.auth)

	ks.frames <- `{"event": "NEW_ORDER", "order_id": "O1"}`
	data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event": "NEW_ORDER", "order_id": "O1"}`, string(data))
}

func TestWebSocketDialer_ReadUnblocksOnCancel(t *testing.T) {
	ks := newKitchenServer(t)
	d := &WebSocketDialer{URL: ks.wsURL(), Origin: ks.srv.URL}

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := conn.Read(ctx)
		errc <- err
	}()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after cancel")
	}
}

func TestWebSocketDialer_IdleTimeout(t *testing.T) {
	ks := newKitchenServer(t)
	d := &WebSocketDialer{URL: ks.wsURL(), Origin: ks.srv.URL, IdleTimeout: 50 * time.Millisecond}

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(context.Background())
	require.Error(t, err)
}

func TestWebSocketDialer_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	d := &WebSocketDialer{URL: "ws://127.0.0.1:1/ws/kitchen", Origin: "http://localhost/"}
	_, err := d.Dial(ctx)
	require.Error(t, err)
}

func TestClient_OverWebSocket(t *testing.T) {
	ks := newKitchenServer(t)
	d := &WebSocketDialer{URL: ks.wsURL(), Origin: ks.srv.URL}

	c := NewClient(d, testConfig(), zaptest.NewLogger(t))
	c.cfg.ConnectTimeout = 2 * time.Second
	go func() { _ = c.Run(context.Background()) }()
	t.Cleanup(func() { _ = c.Close() })

	expectTransition(t, c.Feed(), Connecting)
	expectTransition(t, c.Feed(), Connected)

	ks.frames <- `{"event": "STATUS_UPDATE", "order_id": "O1", "new_status": "COOKING"}`
	ev := next(t, c.Feed())
	assert.Equal(t, "O1", ev.(StatusUpdate).ID)
}
