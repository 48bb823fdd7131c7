package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrAlreadyAssigned  = errors.New("order already assigned")
	ErrNotAssignable    = errors.New("order is not assignable")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrUnknownStatus    = errors.New("unknown status")
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDuplicateCheckout is returned when a concurrent checkout already
	// claimed the same idempotency key.
	ErrDuplicateCheckout = errors.New("checkout key already used")
)

type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s", name)
}

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// IsBusiness reports whether err is an expected rejection rather than an
// infrastructure failure.
func IsBusiness(err error) bool {
	var ise *InsufficientStockError
	var ite *InvalidTransitionError
	switch {
	case errors.As(err, &ise), errors.As(err, &ite):
		return true
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrAlreadyAssigned),
		errors.Is(err, ErrNotAssignable), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden), errors.Is(err, ErrUnknownStatus),
		errors.Is(err, ErrDuplicateCheckout):
		return true
	}
	return false
}
