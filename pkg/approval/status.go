package approval

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of an approval request
type Status string

const (
	StatusNone     Status = "none"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ErrAlreadyDecided is returned when a decided request is decided again
var ErrAlreadyDecided = errors.New("approval request already decided")

// Terminal reports whether no further transition is allowed
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Transition validates a status change. Only Pending may move, and only to a
// terminal status.
func Transition(from, to Status) (Status, error) {
	if from.Terminal() {
		return from, fmt.Errorf("%w: status is %s", ErrAlreadyDecided, from)
	}
	if from != StatusPending {
		return from, fmt.Errorf("cannot transition from %s", from)
	}
	if !to.Terminal() {
		return from, fmt.Errorf("invalid target status %s", to)
	}
	return to, nil
}
