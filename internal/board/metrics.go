package board

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/ramen-pos/internal/stream"
)

// Metrics records projector activity.
type Metrics struct {
	events      metric.Int64Counter
	transitions metric.Int64Counter
	reconciles  metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider, view func() View) (*Metrics, error) {
	meter := mp.Meter("github.com/xenking/ramen-pos/internal/board")

	var (
		m   Metrics
		err error
	)
	if m.events, err = meter.Int64Counter("kitchen.board.events",
		metric.WithDescription("Feed events applied to the board, by kind and outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "events counter")
	}
	if m.transitions, err = meter.Int64Counter("kitchen.stream.transitions",
		metric.WithDescription("Stream connection state transitions, by target state"),
	); err != nil {
		return nil, errors.Wrap(err, "transitions counter")
	}
	if m.reconciles, err = meter.Int64Counter("kitchen.board.reconciles",
		metric.WithDescription("Snapshot reconciliations, by result"),
	); err != nil {
		return nil, errors.Wrap(err, "reconciles counter")
	}

	if _, err := meter.Int64ObservableGauge("kitchen.board.orders",
		metric.WithDescription("Orders on the board, by state"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			v := view()
			o.Observe(int64(len(v.Active)), metric.WithAttributes(attribute.String("state", "active")))
			o.Observe(int64(len(v.Finished)), metric.WithAttributes(attribute.String("state", "finished")))
			return nil
		}),
	); err != nil {
		return nil, errors.Wrap(err, "orders gauge")
	}

	return &m, nil
}

func (m *Metrics) event(ctx context.Context, kind stream.Kind, outcome Outcome) {
	m.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome.String()),
	))
}

func (m *Metrics) transition(ctx context.Context, to stream.State) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", to.String())))
}

func (m *Metrics) reconcile(ctx context.Context, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reconciles.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
