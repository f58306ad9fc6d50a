package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/net/websocket"
)

// WebSocketDialer dials the kitchen WebSocket endpoint.
type WebSocketDialer struct {
	URL    string
	Origin string
	Header http.Header
	// IdleTimeout drops a connection that delivered no frame for this long.
	// Zero disables the check.
	IdleTimeout time.Duration
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	origin := d.Origin
	if origin == "" {
		origin = "http://localhost/"
	}
	cfg, err := websocket.NewConfig(d.URL, origin)
	if err != nil {
		return nil, errors.Wrap(err, "websocket config")
	}
	cfg.Header = d.Header.Clone()
	if cfg.Header == nil {
		cfg.Header = make(http.Header)
	}

	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", d.URL)
	}
	return &wsConn{ws: ws, idle: d.IdleTimeout}, nil
}

type wsConn struct {
	ws   *websocket.Conn
	idle time.Duration
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.ws.Close() })
	defer stop()

	if c.idle > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.idle))
	}

	var data []byte
	if err := websocket.Message.Receive(c.ws, &data); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
