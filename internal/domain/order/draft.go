package order

import (
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/ramen-pos/internal/domain/product"
)

// DefaultTaxRate is the flat tax applied to a draft subtotal.
var DefaultTaxRate = decimal.RequireFromString("0.15")

// Line is one draft line. Name and UnitPrice are frozen from the menu item
// at the time the line was first added.
type Line struct {
	ItemID    string
	Name      string
	UnitPrice int64
	Quantity  int
}

// Amount is the line total in minor units.
func (l Line) Amount() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Totals summarises a draft in minor units.
type Totals struct {
	Subtotal   int64
	Tax        int64
	GrandTotal int64
}

// Draft is the cashier's in-progress order. The zero value is an empty
// draft. A Draft is never mutated: every operation returns a new value.
type Draft struct {
	lines map[string]Line
	order []string
}

// NewDraft returns an empty draft.
func NewDraft() Draft {
	return Draft{}
}

// AddItem increments the quantity of item, inserting a new line with
// quantity 1 when the item is not present yet.
func (d Draft) AddItem(item product.MenuItem) Draft {
	next := d.clone()
	if l, ok := next.lines[item.ID]; ok {
		l.Quantity++
		next.lines[item.ID] = l
		return next
	}
	next.lines[item.ID] = Line{
		ItemID:    item.ID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		Quantity:  1,
	}
	next.order = append(next.order, item.ID)
	return next
}

// RemoveItem drops the whole line for itemID. Removing an absent item
// returns an equal draft.
func (d Draft) RemoveItem(itemID string) Draft {
	if _, ok := d.lines[itemID]; !ok {
		return d
	}
	next := d.clone()
	delete(next.lines, itemID)
	next.order = slices.DeleteFunc(next.order, func(id string) bool { return id == itemID })
	return next
}

// Lines returns the draft lines in insertion order.
func (d Draft) Lines() []Line {
	lines := make([]Line, 0, len(d.order))
	for _, id := range d.order {
		lines = append(lines, d.lines[id])
	}
	return lines
}

// Quantity returns the quantity held for itemID, zero when absent.
func (d Draft) Quantity(itemID string) int {
	return d.lines[itemID].Quantity
}

// Clear returns an empty draft.
func (d Draft) Clear() Draft { return Draft{} }

// Len returns the number of distinct lines.
func (d Draft) Len() int { return len(d.order) }

// IsEmpty reports whether the draft has no lines.
func (d Draft) IsEmpty() bool { return len(d.order) == 0 }

// Items converts the draft into submission line items.
func (d Draft) Items() []LineItem {
	items := make([]LineItem, 0, len(d.order))
	for _, id := range d.order {
		items = append(items, LineItem{ProductID: id, Quantity: d.lines[id].Quantity})
	}
	return items
}

// Totals computes subtotal, tax and grand total. Tax is rounded to the
// nearest minor unit, halves away from zero.
func (d Draft) Totals(taxRate decimal.Decimal) Totals {
	var subtotal int64
	for _, id := range d.order {
		subtotal += d.lines[id].Amount()
	}
	tax := decimal.NewFromInt(subtotal).Mul(taxRate).Round(0).IntPart()
	return Totals{
		Subtotal:   subtotal,
		Tax:        tax,
		GrandTotal: subtotal + tax,
	}
}

func (d Draft) clone() Draft {
	next := Draft{
		lines: make(map[string]Line, len(d.lines)+1),
		order: make([]string, len(d.order), len(d.order)+1),
	}
	maps.Copy(next.lines, d.lines)
	copy(next.order, d.order)
	return next
}
