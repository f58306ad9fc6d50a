package stream

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/ramen-pos/internal/domain/order"
	"github.com/xenking/ramen-pos/internal/wire"
)

// ErrMalformedFrame is returned for frames that are not a valid event.
var ErrMalformedFrame = errors.New("malformed frame")

// UnknownEventError is returned for a well-formed frame with an
// unrecognised discriminator.
type UnknownEventError struct {
	Kind string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event %q", e.Kind)
}

type frame struct {
	event     string
	orderID   string
	billName  string
	newStatus string
	items     []order.Item
	createdAt string
}

// Decode parses a single push frame. Fields may appear in any order and
// unknown fields are ignored.
func Decode(data []byte) (Event, error) {
	var f frame
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "event":
			f.event, err = d.Str()
		case "order_id":
			f.orderID, err = wire.DecodeID(d)
		case "bill_name":
			if d.Next() == jx.Null {
				err = d.Null()
			} else {
				f.billName, err = d.Str()
			}
		case "new_status", "status":
			f.newStatus, err = d.Str()
		case "items":
			f.items, err = wire.DecodeItems(d)
		case "created_at":
			if d.Next() == jx.Null {
				err = d.Null()
			} else {
				f.createdAt, err = d.Str()
			}
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrapf(ErrMalformedFrame, "%v", err)
	}

	switch Kind(f.event) {
	case KindNewOrder:
		return f.newOrder()
	case KindStatusUpdate:
		return f.statusUpdate()
	case "":
		return nil, errors.Wrap(ErrMalformedFrame, "missing event")
	default:
		return nil, &UnknownEventError{Kind: f.event}
	}
}

func (f frame) newOrder() (Event, error) {
	if f.orderID == "" {
		return nil, errors.Wrap(ErrMalformedFrame, "NEW_ORDER without order_id")
	}
	ev := NewOrder{
		ID:    f.orderID,
		Label: f.billName,
		Items: f.items,
	}
	if f.createdAt != "" {
		t, err := wire.ParseTime(f.createdAt)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedFrame, "%v", err)
		}
		ev.CreatedAt = t
	}
	return ev, nil
}

func (f frame) statusUpdate() (Event, error) {
	if f.orderID == "" {
		return nil, errors.Wrap(ErrMalformedFrame, "STATUS_UPDATE without order_id")
	}
	st, err := order.ParseStatus(f.newStatus)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedFrame, "%v", err)
	}
	return StatusUpdate{ID: f.orderID, Status: st}, nil
}
