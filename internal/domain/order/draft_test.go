package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/ramen-pos/internal/domain/product"
)

// --- Helpers ---

func newMenuItem(id, name string, price int64) product.MenuItem {
	return product.MenuItem{
		ID:         id,
		Name:       name,
		UnitPrice:  price,
		Stock:      10,
		CategoryID: "noodles",
		Active:     true,
	}
}

var (
	shoyu = newMenuItem("shoyu", "Shoyu Ramen", 35000)
	gyoza = newMenuItem("gyoza", "Gyoza", 20000)
)

func TestDraft_AddItem(t *testing.T) {
	d := NewDraft().AddItem(shoyu)

	require.Equal(t, 1, d.Len())
	assert.Equal(t, 1, d.Quantity("shoyu"))

	d = d.AddItem(shoyu)
	assert.Equal(t, 1, d.Len(), "repeated add must not create a second line")
	assert.Equal(t, 2, d.Quantity("shoyu"))
}

func TestDraft_AddItemFreezesPrice(t *testing.T) {
	d := NewDraft().AddItem(shoyu)

	repriced := shoyu
	repriced.UnitPrice = 99999
	repriced.Name = "Shoyu Ramen (large)"
	d = d.AddItem(repriced)

	lines := d.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(35000), lines[0].UnitPrice)
	assert.Equal(t, "Shoyu Ramen", lines[0].Name)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestDraft_RemoveItem(t *testing.T) {
	d := NewDraft().AddItem(shoyu).AddItem(shoyu).AddItem(gyoza)

	d = d.RemoveItem("shoyu")
	assert.Equal(t, 0, d.Quantity("shoyu"), "remove drops the whole line")
	assert.Equal(t, 1, d.Len())

	same := d.RemoveItem("missing")
	assert.Equal(t, d.Lines(), same.Lines())
}

func TestDraft_Immutable(t *testing.T) {
	base := NewDraft().AddItem(shoyu)

	added := base.AddItem(shoyu)
	removed := base.RemoveItem("shoyu")
	_ = base.AddItem(gyoza)

	assert.Equal(t, 1, base.Quantity("shoyu"))
	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, added.Quantity("shoyu"))
	assert.True(t, removed.IsEmpty())
}

func TestDraft_NetCounts(t *testing.T) {
	tests := []struct {
		name string
		ops  []string
		want map[string]int
	}{
		{
			name: "adds only",
			ops:  []string{"+shoyu", "+shoyu", "+gyoza"},
			want: map[string]int{"shoyu": 2, "gyoza": 1},
		},
		{
			name: "remove resets the line",
			ops:  []string{"+shoyu", "+shoyu", "-shoyu", "+shoyu"},
			want: map[string]int{"shoyu": 1},
		},
		{
			name: "remove absent is a no-op",
			ops:  []string{"-gyoza", "+gyoza"},
			want: map[string]int{"gyoza": 1},
		},
		{
			name: "everything removed",
			ops:  []string{"+shoyu", "+gyoza", "-gyoza", "-shoyu"},
			want: map[string]int{},
		},
	}

	items := map[string]product.MenuItem{"shoyu": shoyu, "gyoza": gyoza}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDraft()
			for _, op := range tt.ops {
				id := op[1:]
				if op[0] == '+' {
					d = d.AddItem(items[id])
				} else {
					d = d.RemoveItem(id)
				}
			}

			got := make(map[string]int)
			for _, l := range d.Lines() {
				require.Positive(t, l.Quantity)
				got[l.ItemID] = l.Quantity
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDraft_LinesKeepInsertionOrder(t *testing.T) {
	d := NewDraft().AddItem(gyoza).AddItem(shoyu).AddItem(gyoza)

	lines := d.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "gyoza", lines[0].ItemID)
	assert.Equal(t, "shoyu", lines[1].ItemID)

	assert.Equal(t, []LineItem{
		{ProductID: "gyoza", Quantity: 2},
		{ProductID: "shoyu", Quantity: 1},
	}, d.Items())
}

func TestDraft_Totals(t *testing.T) {
	d := NewDraft().AddItem(shoyu).AddItem(shoyu).AddItem(gyoza)

	totals := d.Totals(DefaultTaxRate)
	assert.Equal(t, Totals{Subtotal: 90000, Tax: 13500, GrandTotal: 103500}, totals)
}

func TestDraft_TotalsRounding(t *testing.T) {
	tests := []struct {
		name    string
		price   int64
		wantTax int64
	}{
		{name: "exact", price: 100, wantTax: 15},
		{name: "half rounds up", price: 10, wantTax: 2},
		{name: "below half rounds down", price: 3, wantTax: 0},
		{name: "above half rounds up", price: 7, wantTax: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDraft().AddItem(newMenuItem("x", "X", tt.price))
			totals := d.Totals(DefaultTaxRate)
			assert.Equal(t, tt.wantTax, totals.Tax)
			assert.Equal(t, tt.price+tt.wantTax, totals.GrandTotal)
		})
	}
}

func TestDraft_EmptyTotals(t *testing.T) {
	totals := NewDraft().Totals(decimal.RequireFromString("0.1"))
	assert.Zero(t, totals)
}

func TestDraft_Clear(t *testing.T) {
	d := NewDraft().AddItem(shoyu)
	cleared := d.Clear()

	assert.True(t, cleared.IsEmpty())
	assert.False(t, d.IsEmpty())
}
