package domain

import "time"

type TicketEventType string

const (
	TicketReserved  TicketEventType = "ticket.reserved"
	TicketConfirmed TicketEventType = "ticket.confirmed"
	TicketExpired   TicketEventType = "ticket.expired"
	TicketCheckedIn TicketEventType = "ticket.checked_in"
	TicketCancelled TicketEventType = "ticket.cancelled"
)

// TicketEvent is a lifecycle notification emitted after a transition commits.
type TicketEvent struct {
	ID           string          `cbor:"id"`
	Type         TicketEventType `cbor:"type"`
	TicketID     string          `cbor:"ticket_id"`
	TicketTypeID string          `cbor:"ticket_type_id"`
	EventID      string          `cbor:"event_id"`
	OwnerUserID  string          `cbor:"owner_user_id"`
	State        TicketState     `cbor:"state"`
	Reason       string          `cbor:"reason,omitempty"`
	OccurredAt   time.Time       `cbor:"occurred_at"`
}
