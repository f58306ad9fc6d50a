package wire

import (
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/ramen-pos/internal/domain/order"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-05-01T10:30:00Z",
		"2024-05-01T17:30:00+07:00",
		"2024-05-01T10:30:00",
		"2024-05-01 10:30:00",
	} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %s", in, got)
	}

	_, err := ParseTime("yesterday")
	require.Error(t, err)
}

func TestDecodeOrders(t *testing.T) {
	data := []byte(`[
		{"order_id": "O1", "bill_name": "T1", "status": "COOKING",
		 "items": [{"name": "Shoyu Ramen", "qty": 2}], "created_at": "2024-05-01T10:30:00"},
		{"order_id": 42, "bill_name": null, "status": "pending", "items": null, "extra": {"nested": [1, 2]}}
	]`)

	orders, skipped, err := DecodeOrders(data)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Empty(t, skipped)

	assert.Equal(t, "O1", orders[0].ID)
	assert.Equal(t, "T1", orders[0].Label)
	assert.Equal(t, order.StatusCooking, orders[0].Status)
	assert.Equal(t, []order.Item{{Name: "Shoyu Ramen", Quantity: 2}}, orders[0].Items)
	assert.Equal(t, 2024, orders[0].CreatedAt.Year())

	assert.Equal(t, "42", orders[1].ID)
	assert.Equal(t, order.StatusPending, orders[1].Status)
	assert.Empty(t, orders[1].Items)
	assert.True(t, orders[1].CreatedAt.IsZero())
}

func TestDecodeOrders_Wrapped(t *testing.T) {
	orders, _, err := DecodeOrders([]byte(`{"count": 1, "orders": [{"id": "O9", "status": "READY"}]}`))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "O9", orders[0].ID)
}

func TestDecodeOrders_SkipsUnknownStatus(t *testing.T) {
	orders, skipped, err := DecodeOrders([]byte(`[
		{"order_id": "O1", "status": "SERVED"},
		{"order_id": "O2", "status": "READY"},
		{"order_id": 3, "status": "ON_THE_WAY"}
	]`))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "O2", orders[0].ID)
	assert.Equal(t, []string{"O1", "3"}, skipped)
}

func TestDecodeOrders_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{name: "missing id", data: `[{"status": "PENDING"}]`, want: ErrMissingID},
		{name: "not json", data: `oops`},
		{name: "scalar", data: `"orders"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeOrders([]byte(tt.data))
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
			}
		})
	}
}

func TestDecodeItems_Price(t *testing.T) {
	items, err := DecodeItems(jx.DecodeBytes([]byte(`[
		{"name": "Shoyu Ramen", "qty": 2, "unit_price": "35000.00"},
		{"name": "Gyoza", "quantity": 1, "price": 19999.5},
		{"name": "Tea", "qty": 1, "unit_price": null},
		{"name": "Water", "qty": 1}
	]`)))
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, int64(35000), items[0].UnitPrice)
	assert.Equal(t, int64(20000), items[1].UnitPrice)
	assert.Zero(t, items[2].UnitPrice)
	assert.Zero(t, items[3].UnitPrice)

	_, err = DecodeItems(jx.DecodeBytes([]byte(`[{"name": "x", "qty": 1, "unit_price": "cheap"}]`)))
	assert.Error(t, err)
}

func TestEncodeOrder(t *testing.T) {
	o := order.Order{
		ID:        "O1",
		Label:     "T1",
		Status:    order.StatusReady,
		Items:     []order.Item{{Name: "Gyoza", Quantity: 3, UnitPrice: 20000}, {Name: "Tea", Quantity: 1}},
		CreatedAt: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
	}

	var e jx.Encoder
	EncodeOrder(&e, o)

	decoded, err := DecodeOrder(jx.DecodeBytes(e.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, o, decoded)
}
