package models

import (
	"strings"

	dErrors "luwei/pkg/domain-errors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions lists the edges an operator may take. Anything not listed is
// rejected, including staying in the same state.
var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCompleted, StatusCancelled},
	StatusPaid:    {StatusCompleted, StatusCancelled},
}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown order status: "+s)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }
