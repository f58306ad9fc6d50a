// Package checkout turns a cashier draft into a placed order.
package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/domain/order"
)

// Placer submits an order to the backend in a single request.
type Placer interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Placement, error)
}

// Confirmation describes a successfully placed order.
type Confirmation struct {
	// OrderID is empty when the backend did not return one.
	OrderID  string
	Label    string
	Items    []order.LineItem
	Totals   order.Totals
	PlacedAt time.Time
}

// Submitter places drafts with the backend.
type Submitter struct {
	placer  Placer
	taxRate decimal.Decimal
	tracer  trace.Tracer
	lg      *zap.Logger
	now     func() time.Time
}

// NewSubmitter creates a Submitter that prices drafts with taxRate.
func NewSubmitter(placer Placer, taxRate decimal.Decimal, lg *zap.Logger, tp trace.TracerProvider) *Submitter {
	return &Submitter{
		placer:  placer,
		taxRate: taxRate,
		tracer:  tp.Tracer("github.com/xenking/ramen-pos/internal/checkout"),
		lg:      lg,
		now:     time.Now,
	}
}

// Submit places draft under label. An empty draft fails with
// order.ErrEmptyDraft without contacting the backend; any backend failure
// is reported as *order.SubmissionFailedError. Submit never retries.
//
// The draft is a value and is never modified; the caller clears it after
// a successful submission.
func (s *Submitter) Submit(ctx context.Context, draft order.Draft, label string) (*Confirmation, error) {
	if draft.IsEmpty() {
		return nil, order.ErrEmptyDraft
	}

	ctx, span := s.tracer.Start(ctx, "checkout.Submit",
		trace.WithAttributes(
			attribute.String("order.label", label),
			attribute.Int("order.lines", draft.Len()),
		),
	)
	defer span.End()

	req := order.PlaceOrderRequest{
		BillName: label,
		Items:    draft.Items(),
	}
	placement, err := s.placer.PlaceOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "place order")
		s.lg.Warn("Checkout failed",
			zap.String("label", label),
			zap.Int("lines", draft.Len()),
			zap.Error(err),
		)
		return nil, &order.SubmissionFailedError{Label: label, Cause: err}
	}

	conf := &Confirmation{
		Label:    label,
		Items:    req.Items,
		Totals:   draft.Totals(s.taxRate),
		PlacedAt: s.now(),
	}
	if placement != nil {
		conf.OrderID = placement.OrderID
	}
	span.SetAttributes(attribute.String("order.id", conf.OrderID))

	s.lg.Info("Order placed",
		zap.String("order_id", conf.OrderID),
		zap.String("label", label),
		zap.Int64("grand_total", conf.Totals.GrandTotal),
	)
	return conf, nil
}
