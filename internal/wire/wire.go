// Package wire holds the JSON codec for kitchen order payloads shared by
// the push stream, the snapshot endpoint and the display API.
package wire

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/ramen-pos/internal/domain/order"
)

// ErrMissingID is returned for an order payload without an id.
var ErrMissingID = errors.New("missing order id")

// Layouts accepted for timestamps. The backend emits naive ISO-8601 values
// which are taken as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses a backend timestamp.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("invalid timestamp %q", s)
}

// DecodeID reads an identifier that may be a JSON string or integer.
func DecodeID(d *jx.Decoder) (string, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s for id", tt)
	}
}

// DecodeTime reads an optional timestamp string. Null yields the zero time.
func DecodeTime(d *jx.Decoder) (time.Time, error) {
	if d.Next() == jx.Null {
		return time.Time{}, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return ParseTime(s)
}

// DecodePrice reads an optional price sent as a JSON number or decimal
// string and rounds it to whole minor units. Null yields zero.
func DecodePrice(d *jx.Decoder) (int64, error) {
	var raw string
	switch tt := d.Next(); tt {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return 0, err
		}
		raw = string(n)
	default:
		return 0, errors.Errorf("unexpected %s for price", tt)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.Wrapf(err, "price %q", raw)
	}
	return v.Round(0).IntPart(), nil
}

// DecodeItems reads a list of kitchen lines. Null yields no items.
func DecodeItems(d *jx.Decoder) ([]order.Item, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var items []order.Item
	if err := d.Arr(func(d *jx.Decoder) error {
		var item order.Item
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "name":
				v, err := d.Str()
				item.Name = v
				return err
			case "qty", "quantity":
				v, err := d.Int()
				item.Quantity = v
				return err
			case "unit_price", "price":
				v, err := DecodePrice(d)
				item.UnitPrice = v
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		items = append(items, item)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "items")
	}
	return items, nil
}

// DecodeOrder reads one kitchen order object.
func DecodeOrder(d *jx.Decoder) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "order_id", "id":
			o.ID, err = DecodeID(d)
		case "bill_name":
			o.Label, err = decodeOptionalStr(d)
		case "status":
			status, err = d.Str()
		case "items":
			o.Items, err = DecodeItems(d)
		case "created_at":
			o.CreatedAt, err = DecodeTime(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	}); err != nil {
		return order.Order{}, err
	}

	if o.ID == "" {
		return order.Order{}, ErrMissingID
	}
	st, err := order.ParseStatus(status)
	if err != nil {
		return order.Order{ID: o.ID}, errors.Wrapf(err, "order %s", o.ID)
	}
	o.Status = st
	return o, nil
}

// DecodeOrders reads a kitchen snapshot. Both a bare array and an object
// with an "orders" array are accepted. Orders with a status this client
// does not know are left out and their ids returned as skipped.
func DecodeOrders(data []byte) (orders []order.Order, skipped []string, _ error) {
	d := jx.DecodeBytes(data)

	readArr := func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			o, err := DecodeOrder(d)
			if errors.Is(err, order.ErrUnknownStatus) {
				skipped = append(skipped, o.ID)
				return nil
			}
			if err != nil {
				return err
			}
			orders = append(orders, o)
			return nil
		})
	}

	var err error
	switch tt := d.Next(); tt {
	case jx.Array:
		err = readArr(d)
	case jx.Object:
		err = d.Obj(func(d *jx.Decoder, key string) error {
			if key == "orders" {
				return readArr(d)
			}
			return d.Skip()
		})
	default:
		err = errors.Errorf("unexpected %s", tt)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode snapshot")
	}
	return orders, skipped, nil
}

// EncodeOrder writes o in the kitchen order shape.
func EncodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(o.ID)
	e.FieldStart("bill_name")
	e.Str(o.Label)
	e.FieldStart("status")
	e.Str(o.Status.String())
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(item.Name)
		e.FieldStart("qty")
		e.Int(item.Quantity)
		if item.UnitPrice != 0 {
			e.FieldStart("unit_price")
			e.Int64(item.UnitPrice)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("created_at")
	if o.CreatedAt.IsZero() {
		e.Null()
	} else {
		e.Str(o.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
	e.ObjEnd()
}

func decodeOptionalStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
