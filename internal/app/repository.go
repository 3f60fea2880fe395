package app

import (
	"context"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

// ReservationRepository is the storage the reservation coordinator mutates.
// Methods suffixed ForUpdate lock the row until the surrounding WithTx
// returns. Callers lock in the order ticket type, ticket, ledger entry.
type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetTicketType(ctx context.Context, id string) (domain.TicketType, error)
	GetTicketTypeForUpdate(ctx context.Context, id string) (domain.TicketType, error)
	UpdateTicketTypeStock(ctx context.Context, tt domain.TicketType) error

	CreateLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error
	GetLedgerEntry(ctx context.Context, id string) (domain.LedgerEntry, error)
	GetLedgerEntryForUpdate(ctx context.Context, id string) (domain.LedgerEntry, error)
	UpdateLedgerEntryState(ctx context.Context, id string, state domain.LedgerState) error

	CreateTicket(ctx context.Context, ticket domain.Ticket) error
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)
	GetTicketForUpdate(ctx context.Context, id string) (domain.Ticket, error)
	FindTicketsByIdempotencyKey(ctx context.Context, ticketTypeID, userID, key string) ([]domain.Ticket, error)
	// UpdateTicket writes ticket only if the stored state is still from.
	// Otherwise it returns domain.ErrInvalidStateTransition.
	UpdateTicket(ctx context.Context, ticket domain.Ticket, from domain.TicketState) error
}

// EventCatalog resolves the event schedule behind a ticket type.
type EventCatalog interface {
	GetSchedule(ctx context.Context, ticketTypeID string) (domain.EventSchedule, error)
}

// CheckInRepository is the storage used by the check-in validator.
type CheckInRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTicketByScanCodeForUpdate(ctx context.Context, code string) (domain.Ticket, error)
	UpdateTicket(ctx context.Context, ticket domain.Ticket, from domain.TicketState) error
}

// ExpiredHoldLister finds active ledger entries whose hold has lapsed.
type ExpiredHoldLister interface {
	ListExpiredEntries(ctx context.Context, now time.Time, limit int) ([]domain.LedgerEntry, error)
}

// CodeIssuer mints scan codes for new tickets.
type CodeIssuer interface {
	Issue() (string, error)
}

// CodeVerifier rejects scan codes that were never issued.
type CodeVerifier interface {
	Valid(code string) bool
}

// Publisher receives lifecycle events after their transaction commits.
// Implementations must not block.
type Publisher interface {
	Publish(event domain.TicketEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(domain.TicketEvent) {}
