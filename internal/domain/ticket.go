package domain

import "time"

type TicketState string

const (
	TicketStateReserved  TicketState = "reserved"
	TicketStateConfirmed TicketState = "confirmed"
	TicketStateCheckedIn TicketState = "checked_in"
	TicketStateCancelled TicketState = "cancelled"
	TicketStateExpired   TicketState = "expired"
)

// Ticket is the user-facing unit created by a reservation. ScanCode is fixed
// at issuance and never changes.
type Ticket struct {
	ID                 string
	LedgerEntryID      string
	TicketTypeID       string
	EventID            string
	OwnerUserID        string
	CorrelationID      string
	State              TicketState
	ScanCode           string
	ValidFrom          time.Time
	ValidUntil         time.Time
	PaymentReference   string
	IdempotencyKey     string
	CancellationReason string
	CheckedInAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Transition moves the ticket to next, enforcing the lifecycle table.
func (t *Ticket) Transition(next TicketState, now time.Time) error {
	if !CanTransition(t.State, next) {
		return ErrInvalidStateTransition
	}
	t.State = next
	t.UpdatedAt = now
	return nil
}

// ScanResult is returned by a successful check-in.
type ScanResult struct {
	Ticket      Ticket
	CheckedInAt time.Time
}
