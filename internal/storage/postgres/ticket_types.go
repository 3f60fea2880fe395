package postgres

import (
	"context"
	"errors"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/jackc/pgx/v5"
)

const ticketTypeColumns = `id, event_id, name, capacity, sold, held, sale_start, sale_end`

func scanTicketType(row pgx.Row) (domain.TicketType, error) {
	var tt domain.TicketType
	err := row.Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.Capacity, &tt.Sold, &tt.Held, &tt.SaleStart, &tt.SaleEnd)
	return tt, err
}

func (d db) GetTicketType(ctx context.Context, id string) (domain.TicketType, error) {
	return d.getTicketType(ctx, `SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = $1`, id)
}

// GetTicketTypeForUpdate locks the ticket type row. Every stock mutation for
// the type is serialized behind this lock.
func (d db) GetTicketTypeForUpdate(ctx context.Context, id string) (domain.TicketType, error) {
	return d.getTicketType(ctx, `SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = $1 FOR UPDATE`, id)
}

func (d db) getTicketType(ctx context.Context, query, id string) (domain.TicketType, error) {
	tt, err := scanTicketType(d.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.TicketType{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TicketType{}, domain.ErrNotFound
		}
		return domain.TicketType{}, storageError("get ticket type", err)
	}
	tt.SaleStart = tt.SaleStart.UTC()
	tt.SaleEnd = tt.SaleEnd.UTC()
	return tt, nil
}

// UpdateTicketTypeStock writes the capacity and counters of tt. The table's
// check constraints reject any write that would break sold + held <= capacity.
func (d db) UpdateTicketTypeStock(ctx context.Context, tt domain.TicketType) error {
	const stmt = `UPDATE ticket_types SET capacity = $2, sold = $3, held = $4 WHERE id = $1`

	tag, err := d.exec(ctx, stmt, tt.ID, tt.Capacity, tt.Sold, tt.Held)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInvalidCapacity
		}
		return storageError("update ticket type stock", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
