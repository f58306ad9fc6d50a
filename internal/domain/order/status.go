package order

import (
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

// Status is the kitchen lifecycle state of a placed order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCooking   Status = "COOKING"
	StatusReady     Status = "READY"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// transitions lists the forward edges of the lifecycle. Anything not listed
// here is rejected by CanAdvanceTo.
var transitions = map[Status][]Status{
	StatusPending:   {StatusCooking},
	StatusCooking:   {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted},
	StatusCompleted: nil,
	StatusCancelled: nil,
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusCooking, StatusReady, StatusCompleted, StatusCancelled}
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", errors.Wrapf(ErrUnknownStatus, "%q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Next returns the statuses reachable from s in a single step.
func (s Status) Next() []Status {
	return slices.Clone(transitions[s])
}

// CanAdvanceTo reports whether moving from s to target is a forward edge.
func (s Status) CanAdvanceTo(target Status) bool {
	return slices.Contains(transitions[s], target)
}

func (s Status) String() string { return string(s) }
