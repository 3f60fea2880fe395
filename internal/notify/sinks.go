package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, event domain.TicketEvent) error {
	s.Logger.InfoContext(ctx, "ticket event",
		"event_id", event.ID,
		"type", string(event.Type),
		"ticket_id", event.TicketID,
		"ticket_type_id", event.TicketTypeID,
		"owner_user_id", event.OwnerUserID,
		"state", string(event.State),
		"occurred_at", event.OccurredAt,
	)
	return nil
}

// OutboxStore persists encoded events for downstream consumers.
type OutboxStore interface {
	Append(ctx context.Context, eventID, eventType, ticketID string, occurredAt time.Time, payload []byte) error
}

// OutboxSink stores events CBOR-encoded in an outbox table.
type OutboxSink struct {
	store OutboxStore
}

func NewOutboxSink(store OutboxStore) *OutboxSink {
	return &OutboxSink{store: store}
}

func (s *OutboxSink) Deliver(ctx context.Context, event domain.TicketEvent) error {
	payload, err := Encode(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return s.store.Append(ctx, event.ID, string(event.Type), event.TicketID, event.OccurredAt, payload)
}

// Fanout delivers every event to each sink in order. A failing sink does not
// stop delivery to the others.
type Fanout []Sink

func (f Fanout) Deliver(ctx context.Context, event domain.TicketEvent) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Deliver(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
