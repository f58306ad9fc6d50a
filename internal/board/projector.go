package board

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/domain/order"
	"github.com/xenking/ramen-pos/internal/stream"
)

// SnapshotFetcher loads the backend's current view of kitchen orders.
type SnapshotFetcher interface {
	ActiveOrders(ctx context.Context) ([]order.Order, error)
}

// Config controls the projector.
type Config struct {
	Retention       time.Duration `default:"30m" usage:"How long finished orders stay on the board"`
	PruneInterval   time.Duration `default:"1m" usage:"How often finished orders are pruned"`
	Tombstones      int           `default:"4096" usage:"Evicted order ids remembered to drop late duplicates"`
	SnapshotTimeout time.Duration `default:"10s" usage:"Timeout of a single snapshot request"`
	JournalSize     int           `default:"1024" usage:"Events kept for replay while a snapshot is pending"`
	Retry           stream.BackoffConfig
}

func (c *Config) setDefaults() {
	if c.Retention <= 0 {
		c.Retention = 30 * time.Minute
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = time.Minute
	}
	if c.SnapshotTimeout <= 0 {
		c.SnapshotTimeout = 10 * time.Second
	}
	if c.JournalSize <= 0 {
		c.JournalSize = 1024
	}
}

type snapshotResult struct {
	gen    uint64
	orders []order.Order
	err    error
}

// Projector is the single owner of the board State. It merges the stream
// feed, reconciles with a snapshot on every connect and publishes a View
// for concurrent readers.
type Projector struct {
	state   *State
	fetcher SnapshotFetcher
	cfg     Config
	lg      *zap.Logger
	metrics *Metrics
	now     func() time.Time

	view    atomic.Pointer[View]
	mu      sync.Mutex
	changed chan struct{}

	// Fields below are owned by Run.
	conn         stream.State
	stale        bool
	reconciledAt time.Time
	version      uint64

	gen      uint64
	syncing  bool
	journal  []stream.Event
	retry    *time.Timer
	retryC   <-chan time.Time
	backoff  *backoff.ExponentialBackOff
	results  chan snapshotResult
	fetchCtx context.Context
}

// NewProjector creates a Projector.
func NewProjector(fetcher SnapshotFetcher, cfg Config, lg *zap.Logger, mp metric.MeterProvider) (*Projector, error) {
	cfg.setDefaults()
	state, err := NewState(cfg.Tombstones)
	if err != nil {
		return nil, errors.Wrap(err, "create state")
	}

	p := &Projector{
		state:   state,
		fetcher: fetcher,
		cfg:     cfg,
		lg:      lg,
		now:     time.Now,
		changed: make(chan struct{}),
		conn:    stream.Disconnected,
		stale:   true,
		backoff: cfg.Retry.NewBackOff(),
		results: make(chan snapshotResult, 1),
	}
	p.view.Store(&View{Connection: stream.Disconnected, Stale: true})

	if p.metrics, err = newMetrics(mp, p.View); err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}
	return p, nil
}

// View returns the latest published view.
func (p *Projector) View() View {
	return *p.view.Load()
}

// Changed returns a channel closed on the next view publication.
func (p *Projector) Changed() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changed
}

// Run consumes feed until it is closed or ctx is cancelled.
func (p *Projector) Run(ctx context.Context, feed <-chan stream.Message) error {
	p.fetchCtx = ctx
	prune := time.NewTicker(p.cfg.PruneInterval)
	defer prune.Stop()
	defer p.stopRetry()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-feed:
			if !ok {
				p.lg.Info("Feed closed")
				if p.conn != stream.Disconnected {
					p.conn = stream.Disconnected
					p.publish()
				}
				return nil
			}
			p.handle(ctx, msg)
		case res := <-p.results:
			p.onSnapshot(ctx, res)
		case <-p.retryC:
			p.retryC = nil
			if p.conn == stream.Connected {
				p.startSync()
			}
		case <-prune.C:
			p.prune()
		}
	}
}

func (p *Projector) handle(ctx context.Context, msg stream.Message) {
	switch m := msg.(type) {
	case stream.Transition:
		p.onTransition(ctx, m)
	case stream.Event:
		p.onEvent(ctx, m)
	}
}

func (p *Projector) onTransition(ctx context.Context, t stream.Transition) {
	p.metrics.transition(ctx, t.To)
	p.conn = t.To

	if t.To == stream.Connected {
		p.journal = p.journal[:0]
		p.startSync()
	} else if t.From == stream.Connected {
		// Results of a sync started for the lost connection are discarded.
		p.gen++
		p.syncing = false
		p.stale = true
		p.journal = p.journal[:0]
		p.stopRetry()
	}
	p.publish()
}

func (p *Projector) onEvent(ctx context.Context, ev stream.Event) {
	outcome := p.state.Apply(ev, p.now())
	p.metrics.event(ctx, ev.Kind(), outcome)

	switch outcome {
	case UnknownOrder, Illegal, Unsupported:
		fields := []zap.Field{
			zap.String("order_id", ev.OrderID()),
			zap.String("kind", string(ev.Kind())),
			zap.Stringer("outcome", outcome),
		}
		if su, ok := ev.(stream.StatusUpdate); ok {
			fields = append(fields, zap.Stringer("status", su.Status))
			if o, ok := p.state.Get(ev.OrderID()); ok {
				fields = append(fields, zap.Stringer("current", o.Status))
			}
		}
		p.lg.Warn("Ignoring event", fields...)
	case Duplicate:
		p.lg.Debug("Duplicate event", zap.String("order_id", ev.OrderID()))
	}

	if p.syncing {
		if len(p.journal) >= p.cfg.JournalSize {
			// Everything journalled so far is already live, so a snapshot
			// taken from now on covers it.
			p.lg.Warn("Replay journal full, restarting snapshot", zap.Int("size", len(p.journal)))
			p.journal = p.journal[:0]
			p.startSync()
		} else {
			p.journal = append(p.journal, ev)
		}
	}
	if outcome.Changed() {
		p.publish()
	}
}

func (p *Projector) startSync() {
	p.gen++
	p.syncing = true
	p.stale = true
	gen := p.gen
	ctx := p.fetchCtx

	go func() {
		fctx, cancel := context.WithTimeout(ctx, p.cfg.SnapshotTimeout)
		defer cancel()

		orders, err := p.fetcher.ActiveOrders(fctx)
		select {
		case p.results <- snapshotResult{gen: gen, orders: orders, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (p *Projector) onSnapshot(ctx context.Context, res snapshotResult) {
	if res.gen != p.gen {
		return
	}
	p.metrics.reconcile(ctx, res.err)

	if res.err != nil {
		delay := p.backoff.NextBackOff()
		p.lg.Warn("Snapshot failed, board is stale",
			zap.Duration("retry_in", delay),
			zap.Error(res.err),
		)
		p.stopRetry()
		p.retry = time.NewTimer(delay)
		p.retryC = p.retry.C
		return
	}

	now := p.now()
	p.state.Replace(res.orders, now)
	for _, ev := range p.journal {
		p.state.Apply(ev, now)
	}
	p.lg.Info("Board reconciled",
		zap.Int("snapshot", len(res.orders)),
		zap.Int("replayed", len(p.journal)),
		zap.Int("orders", p.state.Len()),
	)

	p.journal = p.journal[:0]
	p.syncing = false
	p.stale = false
	p.reconciledAt = now
	p.backoff.Reset()
	p.publish()
}

func (p *Projector) prune() {
	evicted := p.state.Prune(p.now().Add(-p.cfg.Retention))
	if len(evicted) == 0 {
		return
	}
	p.lg.Debug("Pruned finished orders", zap.Strings("order_ids", evicted))
	p.publish()
}

func (p *Projector) stopRetry() {
	if p.retry != nil {
		p.retry.Stop()
		p.retry = nil
	}
	p.retryC = nil
}

func (p *Projector) publish() {
	p.version++
	p.view.Store(&View{
		Version:      p.version,
		Connection:   p.conn,
		Stale:        p.stale,
		ReconciledAt: p.reconciledAt,
		Active:       p.state.Active(),
		Finished:     p.state.Finished(),
	})

	p.mu.Lock()
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
}
