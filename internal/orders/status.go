package orders

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusAwaitingConfirmation Status = "AWAITING_CONFIRMATION"
	StatusConfirmed            Status = "CONFIRMED"
	StatusInTransit            Status = "IN_TRANSIT"
	StatusDelivered            Status = "DELIVERED"
	StatusCancelled            Status = "CANCELLED"
)

// validNext is the whole lifecycle. Delivered and Cancelled are terminal.
var validNext = map[Status]map[Status]bool{
	StatusAwaitingConfirmation: {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:            {StatusInTransit: true, StatusCancelled: true},
	StatusInTransit:            {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:            {},
	StatusCancelled:            {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

// restoresStock reports whether cancelling from s must give the order's
// quantities back to the ledger.
func restoresStock(s Status) bool {
	switch s {
	case StatusAwaitingConfirmation, StatusConfirmed, StatusInTransit:
		return true
	}
	return false
}

// ParseStatus accepts the canonical names case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}
