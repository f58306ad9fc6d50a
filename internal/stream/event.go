package stream

import (
	"time"

	"github.com/xenking/ramen-pos/internal/domain/order"
)

// Kind is the frame discriminator.
type Kind string

const (
	KindNewOrder     Kind = "NEW_ORDER"
	KindStatusUpdate Kind = "STATUS_UPDATE"
)

// Message is an item of the client feed: either an Event or a Transition.
type Message interface {
	isMessage()
}

// Event is a parsed push event.
type Event interface {
	Message
	Kind() Kind
	OrderID() string
}

// NewOrder announces an order that has just been placed.
type NewOrder struct {
	ID    string
	Label string
	Items []order.Item
	// CreatedAt is zero when the frame carried no timestamp.
	CreatedAt time.Time
}

func (NewOrder) isMessage()        {}
func (NewOrder) Kind() Kind        { return KindNewOrder }
func (e NewOrder) OrderID() string { return e.ID }

// StatusUpdate announces a status change of an existing order.
type StatusUpdate struct {
	ID     string
	Status order.Status
}

func (StatusUpdate) isMessage()        {}
func (StatusUpdate) Kind() Kind        { return KindStatusUpdate }
func (e StatusUpdate) OrderID() string { return e.ID }

// Transition reports a change of the connection state.
type Transition struct {
	From State
	To   State
	At   time.Time
}

func (Transition) isMessage() {}
