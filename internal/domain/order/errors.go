package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	ErrEmptyDraft    = errors.New("draft has no lines")
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrRejected marks a backend refusal that retrying will not fix.
	ErrRejected = errors.New("rejected by backend")
)

// SubmissionFailedError is returned when a draft could not be placed with
// the backend. The draft itself is left untouched.
type SubmissionFailedError struct {
	Label string
	Cause error
}

func (e *SubmissionFailedError) Error() string {
	return fmt.Sprintf("submit order %q: %v", e.Label, e.Cause)
}

func (e *SubmissionFailedError) Unwrap() error { return e.Cause }

// CommandRejectedError is returned when the backend refuses a status change.
type CommandRejectedError struct {
	OrderID string
	Target  Status
	Cause   error
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("status change of order %s to %s rejected: %v", e.OrderID, e.Target, e.Cause)
}

func (e *CommandRejectedError) Unwrap() error { return e.Cause }
