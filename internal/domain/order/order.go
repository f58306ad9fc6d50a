package order

import (
	"slices"
	"time"
)

// Order is a placed order as the kitchen sees it.
type Order struct {
	ID        string
	Label     string
	Items     []Item
	Status    Status
	CreatedAt time.Time
	// UpdatedAt is the local time of the last applied change.
	UpdatedAt time.Time
}

// Item is a kitchen line: what to cook and how many.
type Item struct {
	Name     string
	Quantity int
	// UnitPrice is in minor units, zero when the payload carried no price.
	UnitPrice int64
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	o.Items = slices.Clone(o.Items)
	return o
}

// LineItem is a single line of an order submission.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrderRequest holds the input for placing an order with the backend.
type PlaceOrderRequest struct {
	BillName string     `json:"bill_name"`
	Items    []LineItem `json:"items"`
}

// Placement is the backend acknowledgement of a placed order. OrderID is
// empty when the backend did not echo one.
type Placement struct {
	OrderID string
}
