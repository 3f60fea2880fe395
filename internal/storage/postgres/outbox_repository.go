package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository appends encoded lifecycle events to domain_events for
// downstream consumers.
type OutboxRepository struct {
	db
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{db: db{pool: pool}}
}

// Append stores one event. Re-appending an event id is a no-op.
func (r *OutboxRepository) Append(ctx context.Context, eventID, eventType, ticketID string, occurredAt time.Time, payload []byte) error {
	const stmt = `
INSERT INTO domain_events (id, event_type, ticket_id, occurred_at, payload)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`

	if _, err := r.exec(ctx, stmt, eventID, eventType, ticketID, occurredAt, payload); err != nil {
		return storageError("append domain event", err)
	}
	return nil
}
