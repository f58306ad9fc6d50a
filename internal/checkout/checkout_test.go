package checkout

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/ramen-pos/internal/domain/order"
	"github.com/xenking/ramen-pos/internal/domain/product"
)

// --- Mock implementations ---

type mockPlacer struct {
	calls     []order.PlaceOrderRequest
	placement *order.Placement
	err       error
}

func (m *mockPlacer) PlaceOrder(_ context.Context, req order.PlaceOrderRequest) (*order.Placement, error) {
	m.calls = append(m.calls, req)
	return m.placement, m.err
}

// --- Helpers ---

func newSubmitter(p Placer) *Submitter {
	return NewSubmitter(p, order.DefaultTaxRate, zap.NewNop(), noop.NewTracerProvider())
}

func sampleDraft() order.Draft {
	shoyu := product.MenuItem{ID: "shoyu", Name: "Shoyu Ramen", UnitPrice: 35000, Stock: 5, Active: true}
	gyoza := product.MenuItem{ID: "gyoza", Name: "Gyoza", UnitPrice: 20000, Stock: 5, Active: true}
	return order.NewDraft().AddItem(shoyu).AddItem(shoyu).AddItem(gyoza)
}

func TestSubmit_Success(t *testing.T) {
	placer := &mockPlacer{placement: &order.Placement{OrderID: "O1"}}
	s := newSubmitter(placer)

	conf, err := s.Submit(context.Background(), sampleDraft(), "T4")
	require.NoError(t, err)

	require.Len(t, placer.calls, 1)
	assert.Equal(t, order.PlaceOrderRequest{
		BillName: "T4",
		Items: []order.LineItem{
			{ProductID: "shoyu", Quantity: 2},
			{ProductID: "gyoza", Quantity: 1},
		},
	}, placer.calls[0])

	assert.Equal(t, "O1", conf.OrderID)
	assert.Equal(t, "T4", conf.Label)
	assert.Equal(t, order.Totals{Subtotal: 90000, Tax: 13500, GrandTotal: 103500}, conf.Totals)
	assert.False(t, conf.PlacedAt.IsZero())
}

func TestSubmit_NoOrderIDEchoed(t *testing.T) {
	s := newSubmitter(&mockPlacer{})

	conf, err := s.Submit(context.Background(), sampleDraft(), "T1")
	require.NoError(t, err)
	assert.Empty(t, conf.OrderID)
}

func TestSubmit_EmptyDraft(t *testing.T) {
	placer := &mockPlacer{}
	s := newSubmitter(placer)

	_, err := s.Submit(context.Background(), order.NewDraft(), "T1")
	require.ErrorIs(t, err, order.ErrEmptyDraft)
	assert.Empty(t, placer.calls, "no network call for an empty draft")
}

func TestSubmit_Failure(t *testing.T) {
	cause := errors.New("connection refused")
	placer := &mockPlacer{err: cause}
	s := newSubmitter(placer)

	draft := sampleDraft()
	_, err := s.Submit(context.Background(), draft, "T2")
	require.Error(t, err)

	var subErr *order.SubmissionFailedError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, "T2", subErr.Label)
	assert.ErrorIs(t, err, cause)
	assert.Len(t, placer.calls, 1, "no implicit retry")

	assert.Equal(t, 2, draft.Quantity("shoyu"), "draft survives a failed checkout")
	assert.Equal(t, 1, draft.Quantity("gyoza"))
}
