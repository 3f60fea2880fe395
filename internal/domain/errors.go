package domain

import (
	"errors"
	"time"
)

var (
	ErrOutOfStock             = errors.New("out of stock")
	ErrSaleNotOpen            = errors.New("sale not open")
	ErrSaleClosed             = errors.New("sale closed")
	ErrHoldExpired            = errors.New("hold expired")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAlreadyCheckedIn       = errors.New("ticket already checked in")
	ErrNotYetConfirmed        = errors.New("ticket not confirmed")
	ErrNotFound               = errors.New("not found")
	ErrPaymentConflict        = errors.New("ticket confirmed with a different payment reference")
	ErrIdempotencyConflict    = errors.New("idempotency conflict")
	ErrInvalidCapacity        = errors.New("invalid capacity")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidSaleWindow      = errors.New("invalid sale window")
	ErrInvalidHoldDuration    = errors.New("invalid hold duration")
	ErrUserRequired           = errors.New("user id required")
	ErrEventNameRequired      = errors.New("event name required")
	ErrTicketTypeNameRequired = errors.New("ticket type name required")
	ErrTicketTypeExists       = errors.New("ticket type already exists")
	ErrInvalidID              = errors.New("invalid id")

	// ErrTransient marks storage failures that left nothing committed and can be retried.
	ErrTransient = errors.New("transient storage failure")
	// ErrUnavailable is returned once transient failures exhaust the retry budget.
	ErrUnavailable = errors.New("service unavailable")
)

// AlreadyCheckedInError is returned by a duplicate scan. It carries the
// instant of the first successful check-in.
type AlreadyCheckedInError struct {
	TicketID    string
	CheckedInAt time.Time
}

func (e *AlreadyCheckedInError) Error() string {
	return ErrAlreadyCheckedIn.Error() + " at " + e.CheckedInAt.UTC().Format(time.RFC3339)
}

func (e *AlreadyCheckedInError) Is(target error) bool {
	return target == ErrAlreadyCheckedIn
}
