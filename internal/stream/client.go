// Package stream maintains the push connection that carries kitchen
// events and exposes them as a typed feed.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("stream closed")

// Dialer opens a push connection.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is an open push connection delivering raw frames.
type Conn interface {
	// Read blocks until the next frame arrives. It must return once ctx
	// is cancelled.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// BackoffConfig bounds the reconnect delay.
type BackoffConfig struct {
	Initial    time.Duration `default:"500ms" usage:"First reconnect delay"`
	Max        time.Duration `default:"30s" usage:"Maximum reconnect delay"`
	Multiplier float64       `default:"2" usage:"Reconnect delay growth factor"`
	Jitter     float64       `default:"0.3" usage:"Randomization factor applied to each delay"`
}

// NewBackOff returns an exponential backoff built from c.
func (c BackoffConfig) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if c.Initial > 0 {
		b.InitialInterval = c.Initial
	}
	if c.Max > 0 {
		b.MaxInterval = c.Max
	}
	if c.Multiplier >= 1 {
		b.Multiplier = c.Multiplier
	}
	if c.Jitter >= 0 && c.Jitter < 1 {
		b.RandomizationFactor = c.Jitter
	}
	b.Reset()
	return b
}

// Config controls the client.
type Config struct {
	ConnectTimeout time.Duration `default:"10s" usage:"Timeout of a single connect attempt"`
	FeedBuffer     int           `default:"64" usage:"Feed channel capacity"`
	// StableAfter is how long a connection must stay up before the
	// reconnect delay starts over from Backoff.Initial. Defaults to
	// Backoff.Max.
	StableAfter time.Duration `usage:"Uptime after which a connection resets the reconnect delay"`
	Backoff     BackoffConfig
}

// Client keeps a push connection alive and publishes parsed events and
// connection transitions on a single ordered feed.
type Client struct {
	dialer Dialer
	cfg    Config
	lg     *zap.Logger

	feed   chan Message
	wait   func(ctx context.Context, d time.Duration) bool
	state  atomic.Int32
	closed atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	conn   Conn
}

// NewClient creates a Client. Run starts it.
func NewClient(dialer Dialer, cfg Config, lg *zap.Logger) *Client {
	if cfg.FeedBuffer <= 0 {
		cfg.FeedBuffer = 64
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = cfg.Backoff.Max
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = 30 * time.Second
	}
	return &Client{
		dialer: dialer,
		cfg:    cfg,
		lg:     lg,
		feed:   make(chan Message, cfg.FeedBuffer),
		wait:   sleep,
	}
}

// Feed returns the channel of events and transitions, in the order they
// happened. It is closed when Run returns.
func (c *Client) Feed() <-chan Message { return c.feed }

// State returns the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

// Run connects and keeps reconnecting until ctx is cancelled or Close is
// called. It must be called at most once.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(c.feed)

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return ErrClosed
	}
	c.cancel = cancel
	c.mu.Unlock()

	defer c.finish()

	b := c.cfg.Backoff.NewBackOff()
	attempt := 0
	for {
		if c.stopped(ctx) {
			return nil
		}
		attempt++
		c.transition(ctx, Connecting)

		conn, err := c.dial(ctx)
		if err == nil {
			connectedAt := time.Now()
			err = c.serve(ctx, conn)
			if c.stopped(ctx) {
				return nil
			}
			uptime := time.Since(connectedAt)
			// A connection that drops right after the handshake keeps
			// growing the delay.
			if uptime >= c.cfg.StableAfter {
				attempt = 0
				b.Reset()
			}
			c.lg.Warn("Stream dropped", zap.Duration("uptime", uptime), zap.Error(err))
		} else {
			if c.stopped(ctx) {
				return nil
			}
			c.lg.Warn("Stream connect failed", zap.Int("attempt", attempt), zap.Error(err))
		}

		delay := b.NextBackOff()
		c.transition(ctx, Reconnecting)
		c.lg.Debug("Reconnecting", zap.Duration("delay", delay))
		if !c.wait(ctx, delay) {
			return nil
		}
	}
}

// Close stops the client for good. The active connection is closed and no
// further attempt is made. Close is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	cancel, conn := c.cancel, c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) stopped(ctx context.Context) bool {
	return c.closed.Load() || ctx.Err() != nil
}

func (c *Client) dial(ctx context.Context) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(dialCtx)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	return conn, nil
}

func (c *Client) serve(ctx context.Context, conn Conn) error {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	c.transition(ctx, Connected)
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return errors.Wrap(err, "read")
		}

		ev, err := Decode(data)
		if err != nil {
			c.lg.Warn("Dropping frame", zap.Error(err), zap.ByteString("frame", truncate(data, 256)))
			continue
		}

		select {
		case c.feed <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) transition(ctx context.Context, to State) {
	from := State(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	c.lg.Info("Stream state changed", zap.Stringer("from", from), zap.Stringer("to", to))

	select {
	case c.feed <- Transition{From: from, To: to, At: time.Now()}:
	case <-ctx.Done():
	}
}

// finish records the final Disconnected state. The feed may be full by
// now, so delivery is best effort.
func (c *Client) finish() {
	from := State(c.state.Swap(int32(Disconnected)))
	if from == Disconnected {
		return
	}
	c.lg.Info("Stream stopped", zap.Stringer("from", from))
	select {
	case c.feed <- Transition{From: from, To: Disconnected, At: time.Now()}:
	default:
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
