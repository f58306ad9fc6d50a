// Package command issues kitchen status changes to the backend.
//
// The dispatcher never touches the local board: a change becomes visible
// only once the backend broadcasts the resulting STATUS_UPDATE.
package command

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/domain/order"
)

//go:generate mockgen -source internal/command/command.go -destination=internal/command/command_mock_test.go -package=command

// ErrMissingOrderID is returned for a status change without an order id.
var ErrMissingOrderID = errors.New("order id required")

// StatusPatcher asks the backend to move an order to a new status.
type StatusPatcher interface {
	PatchStatus(ctx context.Context, orderID string, status order.Status) error
}

// Dispatcher forwards status change requests to the backend.
type Dispatcher struct {
	patcher StatusPatcher
	tracer  trace.Tracer
	lg      *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(patcher StatusPatcher, lg *zap.Logger, tp trace.TracerProvider) *Dispatcher {
	return &Dispatcher{
		patcher: patcher,
		tracer:  tp.Tracer("github.com/xenking/ramen-pos/internal/command"),
		lg:      lg,
	}
}

// RequestStatusChange sends exactly one status change request.
//
// Input faults are returned before any network call. A backend refusal is
// reported as *order.CommandRejectedError; anything else is a transport
// fault the caller may retry.
func (d *Dispatcher) RequestStatusChange(ctx context.Context, orderID string, target order.Status) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return ErrMissingOrderID
	}
	if !target.Valid() {
		return errors.Wrapf(order.ErrUnknownStatus, "%q", target)
	}

	ctx, span := d.tracer.Start(ctx, "command.RequestStatusChange",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("order.status", target.String()),
		),
	)
	defer span.End()

	lg := d.lg.With(zap.String("order_id", orderID), zap.Stringer("target", target))

	if err := d.patcher.PatchStatus(ctx, orderID, target); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "patch status")
		if errors.Is(err, order.ErrRejected) {
			lg.Info("Status change rejected", zap.Error(err))
			return &order.CommandRejectedError{OrderID: orderID, Target: target, Cause: err}
		}
		lg.Warn("Status change failed", zap.Error(err))
		return errors.Wrap(err, "patch status")
	}

	lg.Info("Status change requested, awaiting broadcast")
	return nil
}
