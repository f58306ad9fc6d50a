// Package board projects the kitchen event feed onto an authoritative view
// of placed orders.
package board

import (
	"slices"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xenking/ramen-pos/internal/domain/order"
	"github.com/xenking/ramen-pos/internal/stream"
)

// Outcome is the effect of applying an event to the board.
type Outcome int

const (
	// Inserted means a new order was added.
	Inserted Outcome = iota
	// Advanced means an order moved forward in its lifecycle.
	Advanced
	// Duplicate means a NEW_ORDER for a known or retired order.
	Duplicate
	// Unchanged means a STATUS_UPDATE equal to the current status.
	Unchanged
	// UnknownOrder means a STATUS_UPDATE for an order not on the board.
	UnknownOrder
	// Illegal means a regression or a skipped step.
	Illegal
	// Unsupported means an event type the board does not handle.
	Unsupported
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Advanced:
		return "advanced"
	case Duplicate:
		return "duplicate"
	case Unchanged:
		return "unchanged"
	case UnknownOrder:
		return "unknown_order"
	case Illegal:
		return "illegal"
	default:
		return "unsupported"
	}
}

// Changed reports whether the outcome modified the board.
func (o Outcome) Changed() bool {
	return o == Inserted || o == Advanced
}

// State is the order board: orders by id plus the creation sequence.
// State is not safe for concurrent use; the Projector owns it.
type State struct {
	orders map[string]order.Order
	// seq holds ids oldest first; views iterate it backwards.
	seq []string
	// retired remembers evicted ids so late duplicates stay out.
	retired *lru.Cache[string, struct{}]
}

// NewState creates an empty board remembering up to tombstones evicted ids.
func NewState(tombstones int) (*State, error) {
	if tombstones <= 0 {
		tombstones = 1024
	}
	retired, err := lru.New[string, struct{}](tombstones)
	if err != nil {
		return nil, err
	}
	return &State{
		orders:  make(map[string]order.Order),
		retired: retired,
	}, nil
}

// Apply merges a single event. It is idempotent: applying the same event
// twice leaves the board as applying it once.
func (s *State) Apply(ev stream.Event, now time.Time) Outcome {
	switch e := ev.(type) {
	case stream.NewOrder:
		return s.insert(e, now)
	case stream.StatusUpdate:
		return s.advance(e, now)
	default:
		return Unsupported
	}
}

func (s *State) insert(e stream.NewOrder, now time.Time) Outcome {
	if _, ok := s.orders[e.ID]; ok {
		return Duplicate
	}
	if s.retired.Contains(e.ID) {
		return Duplicate
	}

	created := e.CreatedAt
	if created.IsZero() {
		created = now
	}
	s.orders[e.ID] = order.Order{
		ID:        e.ID,
		Label:     e.Label,
		Items:     slices.Clone(e.Items),
		Status:    order.StatusPending,
		CreatedAt: created,
		UpdatedAt: now,
	}
	s.seq = append(s.seq, e.ID)
	return Inserted
}

func (s *State) advance(e stream.StatusUpdate, now time.Time) Outcome {
	o, ok := s.orders[e.ID]
	switch {
	case !ok:
		return UnknownOrder
	case o.Status == e.Status:
		return Unchanged
	case !o.Status.CanAdvanceTo(e.Status):
		return Illegal
	}
	o.Status = e.Status
	o.UpdatedAt = now
	s.orders[e.ID] = o
	return Advanced
}

// Replace makes the board equal to snapshot. Display order follows
// CreatedAt; orders with equal timestamps keep their snapshot order, the
// first being the oldest.
func (s *State) Replace(snapshot []order.Order, now time.Time) {
	orders := make(map[string]order.Order, len(snapshot))
	seq := make([]string, 0, len(snapshot))
	for _, o := range snapshot {
		if _, ok := orders[o.ID]; !ok {
			seq = append(seq, o.ID)
		}
		o = o.Clone()
		if o.UpdatedAt.IsZero() {
			o.UpdatedAt = now
		}
		orders[o.ID] = o
		s.retired.Remove(o.ID)
	}
	sort.SliceStable(seq, func(i, j int) bool {
		return orders[seq[i]].CreatedAt.Before(orders[seq[j]].CreatedAt)
	})

	s.orders = orders
	s.seq = seq
}

// Prune evicts terminal orders last changed before cutoff and returns
// their ids.
func (s *State) Prune(cutoff time.Time) []string {
	var evicted []string
	for id, o := range s.orders {
		if o.Status.Terminal() && o.UpdatedAt.Before(cutoff) {
			evicted = append(evicted, id)
		}
	}
	if len(evicted) == 0 {
		return nil
	}
	for _, id := range evicted {
		delete(s.orders, id)
		s.retired.Add(id, struct{}{})
	}
	s.seq = slices.DeleteFunc(s.seq, func(id string) bool {
		_, ok := s.orders[id]
		return !ok
	})
	sort.Strings(evicted)
	return evicted
}

// Get returns a copy of the order with the given id.
func (s *State) Get(id string) (order.Order, bool) {
	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, false
	}
	return o.Clone(), true
}

// Len returns the number of orders on the board, terminal ones included.
func (s *State) Len() int { return len(s.orders) }

// Orders returns every order, newest first.
func (s *State) Orders() []order.Order {
	return s.collect(func(order.Order) bool { return true })
}

// Active returns non-terminal orders, newest first.
func (s *State) Active() []order.Order {
	return s.collect(func(o order.Order) bool { return !o.Status.Terminal() })
}

// Finished returns terminal orders still retained, newest first.
func (s *State) Finished() []order.Order {
	return s.collect(func(o order.Order) bool { return o.Status.Terminal() })
}

func (s *State) collect(keep func(order.Order) bool) []order.Order {
	out := make([]order.Order, 0, len(s.seq))
	for i := len(s.seq) - 1; i >= 0; i-- {
		o := s.orders[s.seq[i]]
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	return out
}
