package board

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/ramen-pos/internal/domain/order"
	"github.com/xenking/ramen-pos/internal/stream"
)

// --- Mock implementations ---

type fetcherFunc func(ctx context.Context) ([]order.Order, error)

func (f fetcherFunc) ActiveOrders(ctx context.Context) ([]order.Order, error) { return f(ctx) }

func staticFetcher(orders ...order.Order) fetcherFunc {
	return func(context.Context) ([]order.Order, error) { return orders, nil }
}

// --- Helpers ---

func testProjectorConfig() Config {
	return Config{
		Retention:       time.Hour,
		PruneInterval:   time.Hour,
		Tombstones:      16,
		SnapshotTimeout: time.Second,
		JournalSize:     8,
		Retry: stream.BackoffConfig{
			Initial:    time.Millisecond,
			Max:        5 * time.Millisecond,
			Multiplier: 2,
		},
	}
}

func startProjector(t *testing.T, f SnapshotFetcher, cfg Config) (*Projector, chan stream.Message, chan error) {
	t.Helper()
	p, err := NewProjector(f, cfg, zaptest.NewLogger(t), noop.NewMeterProvider())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	feed := make(chan stream.Message, 16)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, feed) }()
	return p, feed, done
}

func connect(feed chan<- stream.Message) {
	feed <- stream.Transition{From: stream.Disconnected, To: stream.Connecting}
	feed <- stream.Transition{From: stream.Connecting, To: stream.Connected}
}

func waitFor(t *testing.T, p *Projector, cond func(View) bool) View {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		changed := p.Changed()
		if v := p.View(); cond(v) {
			return v
		}
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("condition not met, last view: %+v", p.View())
		}
	}
}

func reconciled(v View) bool {
	return v.Connection == stream.Connected && !v.Stale
}

func TestProjector_InitialView(t *testing.T) {
	p, err := NewProjector(staticFetcher(), testProjectorConfig(), zaptest.NewLogger(t), noop.NewMeterProvider())
	require.NoError(t, err)

	v := p.View()
	assert.Equal(t, stream.Disconnected, v.Connection)
	assert.True(t, v.Stale)
	assert.Empty(t, v.Active)
}

func TestProjector_ReconcilesOnConnect(t *testing.T) {
	p, feed, _ := startProjector(t, staticFetcher(
		order.Order{ID: "O1", Label: "T1", Status: order.StatusCooking, CreatedAt: t0},
		order.Order{ID: "O2", Label: "T2", Status: order.StatusCompleted, CreatedAt: t0.Add(time.Minute)},
	), testProjectorConfig())

	connect(feed)

	v := waitFor(t, p, reconciled)
	assert.Equal(t, []string{"O1"}, ids(v.Active))
	assert.Equal(t, []string{"O2"}, ids(v.Finished))
	assert.False(t, v.ReconciledAt.IsZero())
}

func TestProjector_LiveMerge(t *testing.T) {
	p, feed, _ := startProjector(t, staticFetcher(), testProjectorConfig())
	connect(feed)
	waitFor(t, p, reconciled)

	feed <- stream.NewOrder{ID: "O1", Label: "T4", Items: []order.Item{{Name: "Shoyu Ramen", Quantity: 2}}}
	feed <- stream.NewOrder{ID: "O1", Label: "T4", Items: []order.Item{{Name: "Shoyu Ramen", Quantity: 2}}}
	feed <- stream.StatusUpdate{ID: "O1", Status: order.StatusCooking}
	feed <- stream.StatusUpdate{ID: "O7", Status: order.StatusReady}

	v := waitFor(t, p, func(v View) bool {
		o, ok := v.Find("O1")
		return ok && o.Status == order.StatusCooking
	})
	assert.Len(t, v.Active, 1)
	_, ok := v.Find("O7")
	assert.False(t, ok)
}

func TestProjector_ReplaysEventsReceivedDuringSnapshot(t *testing.T) {
	release := make(chan struct{})
	fetcher := fetcherFunc(func(ctx context.Context) ([]order.Order, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		// Taken before O5 was placed.
		return []order.Order{{ID: "O1", Status: order.StatusPending, CreatedAt: t0}}, nil
	})
	p, feed, _ := startProjector(t, fetcher, testProjectorConfig())

	connect(feed)
	feed <- stream.NewOrder{ID: "O5", Label: "T5"}

	v := waitFor(t, p, func(v View) bool {
		_, ok := v.Find("O5")
		return ok
	})
	assert.True(t, v.Stale, "live merge continues while the snapshot is pending")

	close(release)

	v = waitFor(t, p, reconciled)
	assert.ElementsMatch(t, []string{"O1", "O5"}, ids(v.Active))
}

func TestProjector_JournalOverflowRestartsSnapshot(t *testing.T) {
	var calls atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context) ([]order.Order, error) {
		if calls.Add(1) == 1 {
			// Never answers; taken before any of the orders below.
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []order.Order{
			{ID: "O1", Status: order.StatusPending, CreatedAt: t0},
			{ID: "O2", Status: order.StatusPending, CreatedAt: t0.Add(time.Second)},
			{ID: "O3", Status: order.StatusPending, CreatedAt: t0.Add(2 * time.Second)},
		}, nil
	})
	cfg := testProjectorConfig()
	cfg.JournalSize = 2
	p, feed, _ := startProjector(t, fetcher, cfg)

	connect(feed)
	feed <- stream.NewOrder{ID: "O1", Label: "T1", CreatedAt: t0}
	feed <- stream.NewOrder{ID: "O2", Label: "T2", CreatedAt: t0.Add(time.Second)}
	feed <- stream.NewOrder{ID: "O3", Label: "T3", CreatedAt: t0.Add(2 * time.Second)}

	v := waitFor(t, p, reconciled)
	assert.ElementsMatch(t, []string{"O1", "O2", "O3"}, ids(v.Active))
	assert.EqualValues(t, 2, calls.Load())
}

func TestProjector_RetriesFailedSnapshot(t *testing.T) {
	var calls atomic.Int32
	fetcher := fetcherFunc(func(context.Context) ([]order.Order, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("502 bad gateway")
		}
		return []order.Order{{ID: "O1", Status: order.StatusReady, CreatedAt: t0}}, nil
	})
	p, feed, _ := startProjector(t, fetcher, testProjectorConfig())

	connect(feed)

	v := waitFor(t, p, reconciled)
	assert.Equal(t, []string{"O1"}, ids(v.Active))
	assert.EqualValues(t, 3, calls.Load())
}

func TestProjector_ReconnectReplacesBoard(t *testing.T) {
	var calls atomic.Int32
	fetcher := fetcherFunc(func(context.Context) ([]order.Order, error) {
		if calls.Add(1) == 1 {
			return []order.Order{{ID: "O1", Status: order.StatusPending, CreatedAt: t0}}, nil
		}
		return []order.Order{{ID: "O3", Status: order.StatusCooking, CreatedAt: t0}}, nil
	})
	p, feed, _ := startProjector(t, fetcher, testProjectorConfig())

	connect(feed)
	waitFor(t, p, reconciled)

	feed <- stream.Transition{From: stream.Connected, To: stream.Reconnecting}
	v := waitFor(t, p, func(v View) bool { return v.Connection == stream.Reconnecting })
	assert.True(t, v.Stale)
	assert.Equal(t, []string{"O1"}, ids(v.Active), "board is kept while disconnected")

	feed <- stream.Transition{From: stream.Reconnecting, To: stream.Connecting}
	feed <- stream.Transition{From: stream.Connecting, To: stream.Connected}

	v = waitFor(t, p, func(v View) bool {
		_, ok := v.Find("O3")
		return reconciled(v) && ok
	})
	assert.Equal(t, []string{"O3"}, ids(v.Active))
}

func TestProjector_Prunes(t *testing.T) {
	cfg := testProjectorConfig()
	cfg.Retention = time.Millisecond
	cfg.PruneInterval = 5 * time.Millisecond

	p, feed, _ := startProjector(t, staticFetcher(
		order.Order{ID: "O1", Status: order.StatusCompleted, CreatedAt: t0, UpdatedAt: t0},
		order.Order{ID: "O2", Status: order.StatusPending, CreatedAt: t0, UpdatedAt: t0},
	), cfg)
	connect(feed)

	v := waitFor(t, p, func(v View) bool { return reconciled(v) && len(v.Finished) == 0 })
	assert.Equal(t, []string{"O2"}, ids(v.Active))
}

func TestProjector_StopsWhenFeedCloses(t *testing.T) {
	p, feed, done := startProjector(t, staticFetcher(), testProjectorConfig())
	connect(feed)
	waitFor(t, p, reconciled)

	close(feed)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, stream.Disconnected, p.View().Connection)
}
