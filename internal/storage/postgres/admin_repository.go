package postgres

import (
	"context"
	"errors"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepository struct {
	db
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db{pool: pool}}
}

func (r *AdminRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	const stmt = `
INSERT INTO events (id, name, location, starts_at, ends_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.exec(ctx, stmt, event.ID, event.Name, event.Location, event.StartsAt, event.EndsAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidSaleWindow
		}
		return storageError("create event", err)
	}
	return nil
}

func (r *AdminRepository) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	const query = `SELECT id, name, location, starts_at, ends_at FROM events WHERE id = $1`
	var event domain.Event
	err := r.queryRow(ctx, query, id).Scan(&event.ID, &event.Name, &event.Location, &event.StartsAt, &event.EndsAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Event{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, storageError("get event", err)
	}
	event.StartsAt, event.EndsAt = event.StartsAt.UTC(), event.EndsAt.UTC()
	return event, nil
}

func (r *AdminRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	const query = `
SELECT id, name, location, starts_at, ends_at
FROM events
ORDER BY starts_at ASC, created_at ASC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, storageError("list events", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		if err := rows.Scan(&event.ID, &event.Name, &event.Location, &event.StartsAt, &event.EndsAt); err != nil {
			return nil, storageError("scan event", err)
		}
		event.StartsAt, event.EndsAt = event.StartsAt.UTC(), event.EndsAt.UTC()
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, storageError("iterate events", rows.Err())
	}
	return events, nil
}

func (r *AdminRepository) CreateTicketType(ctx context.Context, tt domain.TicketType) error {
	const stmt = `
INSERT INTO ticket_types (id, event_id, name, capacity, sold, held, sale_start, sale_end)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.exec(ctx, stmt, tt.ID, tt.EventID, tt.Name, tt.Capacity, tt.Sold, tt.Held, tt.SaleStart, tt.SaleEnd)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			return domain.ErrTicketTypeExists
		}
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidCapacity
		}
		return storageError("create ticket type", err)
	}
	return nil
}

func (r *AdminRepository) ListTicketTypesByEvent(ctx context.Context, eventID string) ([]domain.TicketType, error) {
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`
	var exists bool
	if err := r.queryRow(ctx, existsQuery, eventID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, storageError("check event", err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	const query = `
SELECT ` + ticketTypeColumns + `
FROM ticket_types
WHERE event_id = $1
ORDER BY created_at ASC`
	rows, err := r.query(ctx, query, eventID)
	if err != nil {
		return nil, storageError("list ticket types", err)
	}
	defer rows.Close()

	var types []domain.TicketType
	for rows.Next() {
		tt, err := scanTicketType(rows)
		if err != nil {
			return nil, storageError("scan ticket type", err)
		}
		tt.SaleStart, tt.SaleEnd = tt.SaleStart.UTC(), tt.SaleEnd.UTC()
		types = append(types, tt)
	}
	if rows.Err() != nil {
		return nil, storageError("iterate ticket types", rows.Err())
	}
	return types, nil
}
