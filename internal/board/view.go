package board

import (
	"time"

	"github.com/xenking/ramen-pos/internal/domain/order"
	"github.com/xenking/ramen-pos/internal/stream"
)

// View is an immutable snapshot of the board for readers.
type View struct {
	Version    uint64
	Connection stream.State
	// Stale is set from a (re)connect until the snapshot that follows it
	// has been applied.
	Stale        bool
	ReconciledAt time.Time
	Active       []order.Order
	Finished     []order.Order
}

// Find looks an order up among active and finished orders.
func (v View) Find(id string) (order.Order, bool) {
	for _, list := range [][]order.Order{v.Active, v.Finished} {
		for _, o := range list {
			if o.ID == id {
				return o, true
			}
		}
	}
	return order.Order{}, false
}
