package domain

import "time"

type LedgerState string

const (
	LedgerStateActive   LedgerState = "active"
	LedgerStatePromoted LedgerState = "promoted"
	LedgerStateReleased LedgerState = "released"
)

// LedgerEntry is one outstanding hold on a single unit of stock. Multi-seat
// purchases are several entries sharing a CorrelationID.
type LedgerEntry struct {
	ID            string
	TicketTypeID  string
	TicketID      string
	Quantity      int
	HolderUserID  string
	CorrelationID string
	State         LedgerState
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the hold can no longer be promoted at now.
func (e LedgerEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
