package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationRepository stores ledger entries and tickets. It backs the
// reservation coordinator, the check-in validator and the expiry sweeper.
type ReservationRepository struct {
	db
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{db: db{pool: pool}}
}

func (r *ReservationRepository) GetSchedule(ctx context.Context, ticketTypeID string) (domain.EventSchedule, error) {
	const query = `
SELECT e.id, e.starts_at, e.ends_at, e.location, tt.sale_start, tt.sale_end
FROM ticket_types tt
JOIN events e ON e.id = tt.event_id
WHERE tt.id = $1`

	var s domain.EventSchedule
	err := r.queryRow(ctx, query, ticketTypeID).
		Scan(&s.EventID, &s.StartsAt, &s.EndsAt, &s.Location, &s.SaleStart, &s.SaleEnd)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.EventSchedule{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EventSchedule{}, domain.ErrNotFound
		}
		return domain.EventSchedule{}, storageError("get schedule", err)
	}
	s.StartsAt, s.EndsAt = s.StartsAt.UTC(), s.EndsAt.UTC()
	s.SaleStart, s.SaleEnd = s.SaleStart.UTC(), s.SaleEnd.UTC()
	return s, nil
}

const ledgerColumns = `id, ticket_type_id, ticket_id, quantity, holder_user_id, correlation_id, state, created_at, expires_at`

func scanLedgerEntry(row pgx.Row) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := row.Scan(&e.ID, &e.TicketTypeID, &e.TicketID, &e.Quantity, &e.HolderUserID, &e.CorrelationID, &e.State, &e.CreatedAt, &e.ExpiresAt)
	e.CreatedAt, e.ExpiresAt = e.CreatedAt.UTC(), e.ExpiresAt.UTC()
	return e, err
}

func (r *ReservationRepository) CreateLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error {
	const stmt = `
INSERT INTO ledger_entries (id, ticket_type_id, ticket_id, quantity, holder_user_id, correlation_id, state, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		entry.ID,
		entry.TicketTypeID,
		entry.TicketID,
		entry.Quantity,
		entry.HolderUserID,
		entry.CorrelationID,
		entry.State,
		entry.CreatedAt,
		entry.ExpiresAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return storageError("create ledger entry", err)
	}
	return nil
}

func (r *ReservationRepository) GetLedgerEntry(ctx context.Context, id string) (domain.LedgerEntry, error) {
	return r.getLedgerEntry(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1`, id)
}

func (r *ReservationRepository) GetLedgerEntryForUpdate(ctx context.Context, id string) (domain.LedgerEntry, error) {
	return r.getLedgerEntry(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1 FOR UPDATE`, id)
}

func (r *ReservationRepository) getLedgerEntry(ctx context.Context, query, id string) (domain.LedgerEntry, error) {
	e, err := scanLedgerEntry(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.LedgerEntry{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LedgerEntry{}, domain.ErrNotFound
		}
		return domain.LedgerEntry{}, storageError("get ledger entry", err)
	}
	return e, nil
}

func (r *ReservationRepository) UpdateLedgerEntryState(ctx context.Context, id string, state domain.LedgerState) error {
	const stmt = `UPDATE ledger_entries SET state = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, state)
	if err != nil {
		return storageError("update ledger entry state", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListExpiredEntries returns active entries whose hold lapsed at or before
// now, oldest first. Rows are not locked; the caller re-reads each entry
// under lock before releasing it.
func (r *ReservationRepository) ListExpiredEntries(ctx context.Context, now time.Time, limit int) ([]domain.LedgerEntry, error) {
	const query = `
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE state = 'active' AND expires_at <= $1
ORDER BY expires_at ASC
LIMIT $2`

	rows, err := r.query(ctx, query, now, limit)
	if err != nil {
		return nil, storageError("list expired entries", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, storageError("scan ledger entry", err)
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, storageError("iterate ledger entries", rows.Err())
	}
	return entries, nil
}

const ticketColumns = `
id, ledger_entry_id, ticket_type_id, event_id, owner_user_id, correlation_id, state, scan_code,
valid_from, valid_until, COALESCE(payment_reference, ''), COALESCE(idempotency_key, ''),
COALESCE(cancellation_reason, ''), checked_in_at, created_at, updated_at`

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID,
		&t.LedgerEntryID,
		&t.TicketTypeID,
		&t.EventID,
		&t.OwnerUserID,
		&t.CorrelationID,
		&t.State,
		&t.ScanCode,
		&t.ValidFrom,
		&t.ValidUntil,
		&t.PaymentReference,
		&t.IdempotencyKey,
		&t.CancellationReason,
		&t.CheckedInAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return domain.Ticket{}, err
	}
	t.ValidFrom, t.ValidUntil = t.ValidFrom.UTC(), t.ValidUntil.UTC()
	t.CreatedAt, t.UpdatedAt = t.CreatedAt.UTC(), t.UpdatedAt.UTC()
	if t.CheckedInAt != nil {
		at := t.CheckedInAt.UTC()
		t.CheckedInAt = &at
	}
	return t, nil
}

func (r *ReservationRepository) CreateTicket(ctx context.Context, ticket domain.Ticket) error {
	const stmt = `
INSERT INTO tickets (
	id, ledger_entry_id, ticket_type_id, event_id, owner_user_id, correlation_id, state, scan_code,
	valid_from, valid_until, idempotency_key, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13)`

	_, err := r.exec(ctx, stmt,
		ticket.ID,
		ticket.LedgerEntryID,
		ticket.TicketTypeID,
		ticket.EventID,
		ticket.OwnerUserID,
		ticket.CorrelationID,
		ticket.State,
		ticket.ScanCode,
		ticket.ValidFrom,
		ticket.ValidUntil,
		ticket.IdempotencyKey,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return storageError("create ticket", err)
	}
	return nil
}

func (r *ReservationRepository) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	return r.getTicket(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
}

func (r *ReservationRepository) GetTicketForUpdate(ctx context.Context, id string) (domain.Ticket, error) {
	return r.getTicket(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id)
}

func (r *ReservationRepository) GetTicketByScanCodeForUpdate(ctx context.Context, code string) (domain.Ticket, error) {
	return r.getTicket(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE scan_code = $1 FOR UPDATE`, code)
}

func (r *ReservationRepository) getTicket(ctx context.Context, query, arg string) (domain.Ticket, error) {
	t, err := scanTicket(r.queryRow(ctx, query, arg))
	if err != nil {
		// A malformed id cannot match any ticket.
		if isInvalidUUID(err) {
			return domain.Ticket{}, domain.ErrNotFound
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Ticket{}, domain.ErrNotFound
		}
		return domain.Ticket{}, storageError("get ticket", err)
	}
	return t, nil
}

func (r *ReservationRepository) FindTicketsByIdempotencyKey(ctx context.Context, ticketTypeID, userID, key string) ([]domain.Ticket, error) {
	const query = `
SELECT ` + ticketColumns + `
FROM tickets
WHERE ticket_type_id = $1 AND owner_user_id = $2 AND idempotency_key = $3
ORDER BY created_at ASC, id ASC`

	rows, err := r.query(ctx, query, ticketTypeID, userID, key)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, storageError("find tickets by idempotency key", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, storageError("scan ticket", err)
		}
		tickets = append(tickets, t)
	}
	if rows.Err() != nil {
		return nil, storageError("iterate tickets", rows.Err())
	}
	return tickets, nil
}

// UpdateTicket writes the mutable ticket columns only while the stored state
// is still from. The scan code is never rewritten.
func (r *ReservationRepository) UpdateTicket(ctx context.Context, ticket domain.Ticket, from domain.TicketState) error {
	const stmt = `
UPDATE tickets
SET state = $2,
	payment_reference = NULLIF($3, ''),
	cancellation_reason = NULLIF($4, ''),
	checked_in_at = $5,
	updated_at = $6
WHERE id = $1 AND state = $7`

	tag, err := r.exec(ctx, stmt,
		ticket.ID,
		ticket.State,
		ticket.PaymentReference,
		ticket.CancellationReason,
		ticket.CheckedInAt,
		ticket.UpdatedAt,
		from,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrNotFound
		}
		return storageError("update ticket", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, ticket.ID).Scan(&exists); err != nil {
			return storageError("check ticket", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidStateTransition
	}
	return nil
}
