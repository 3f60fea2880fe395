package app

import (
	"context"
	"time"

	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cimillas/ticket-inventory/internal/app"

// ReservationService serializes every stock mutation for a ticket type behind
// the ticket type's row lock and drives tickets from Reserved to Confirmed,
// Cancelled or Expired.
type ReservationService struct {
	repo    ReservationRepository
	catalog EventCatalog
	codes   CodeIssuer
	clock   clock.Clock
	opts    options
	tracer  trace.Tracer
}

func NewReservationService(repo ReservationRepository, catalog EventCatalog, codes CodeIssuer, clk clock.Clock, opts ...Option) *ReservationService {
	return &ReservationService{
		repo:    repo,
		catalog: catalog,
		codes:   codes,
		clock:   clk,
		opts:    buildOptions(opts),
		tracer:  otel.Tracer(tracerName),
	}
}

type ReserveInput struct {
	TicketTypeID string
	UserID       string
	// HoldDuration defaults to the service hold TTL when zero.
	HoldDuration time.Duration
	// IdempotencyKey, when set, makes a retried reservation return the
	// tickets created by the first attempt.
	IdempotencyKey string
}

// Reserve holds one unit of stock and issues a Reserved ticket for it.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (domain.Ticket, error) {
	tickets, err := s.ReserveMany(ctx, in, 1)
	if err != nil {
		return domain.Ticket{}, err
	}
	return tickets[0], nil
}

// ReserveMany holds quantity units at once. Each unit gets its own ledger
// entry and ticket; all of them share a correlation id. Either every unit is
// held or none is.
func (s *ReservationService) ReserveMany(ctx context.Context, in ReserveInput, quantity int) ([]domain.Ticket, error) {
	if in.TicketTypeID == "" {
		return nil, domain.ErrInvalidID
	}
	if in.UserID == "" {
		return nil, domain.ErrUserRequired
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if in.HoldDuration < 0 {
		return nil, domain.ErrInvalidHoldDuration
	}
	holdFor := in.HoldDuration
	if holdFor == 0 {
		holdFor = s.opts.holdTTL
	}

	ctx, span := s.tracer.Start(ctx, "ReservationService.Reserve", trace.WithAttributes(
		attribute.String("ticket_type_id", in.TicketTypeID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	schedule, err := s.catalog.GetSchedule(ctx, in.TicketTypeID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	scanCodes := make([]string, quantity)
	for i := range scanCodes {
		code, err := s.codes.Issue()
		if err != nil {
			return nil, s.fail(span, err)
		}
		scanCodes[i] = code
	}

	var result []domain.Ticket
	var created bool
	err = retry(ctx, s.opts, func() error {
		result, created = nil, false
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			tt, err := s.repo.GetTicketTypeForUpdate(txCtx, in.TicketTypeID)
			if err != nil {
				return err
			}

			if in.IdempotencyKey != "" {
				existing, err := s.repo.FindTicketsByIdempotencyKey(txCtx, in.TicketTypeID, in.UserID, in.IdempotencyKey)
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					if len(existing) != quantity {
						return domain.ErrIdempotencyConflict
					}
					result = existing
					return nil
				}
			}

			now := s.clock.Now()
			if err := tt.TryHold(now, quantity); err != nil {
				return err
			}

			correlationID := uuid.NewString()
			tickets := make([]domain.Ticket, 0, quantity)
			for i := 0; i < quantity; i++ {
				entry := domain.LedgerEntry{
					ID:            uuid.NewString(),
					TicketTypeID:  tt.ID,
					TicketID:      uuid.NewString(),
					Quantity:      1,
					HolderUserID:  in.UserID,
					CorrelationID: correlationID,
					State:         domain.LedgerStateActive,
					CreatedAt:     now,
					ExpiresAt:     now.Add(holdFor),
				}
				ticket := domain.Ticket{
					ID:             entry.TicketID,
					LedgerEntryID:  entry.ID,
					TicketTypeID:   tt.ID,
					EventID:        tt.EventID,
					OwnerUserID:    in.UserID,
					CorrelationID:  correlationID,
					State:          domain.TicketStateReserved,
					ScanCode:       scanCodes[i],
					ValidFrom:      schedule.StartsAt,
					ValidUntil:     schedule.EndsAt,
					IdempotencyKey: in.IdempotencyKey,
					CreatedAt:      now,
					UpdatedAt:      now,
				}
				if err := s.repo.CreateLedgerEntry(txCtx, entry); err != nil {
					return err
				}
				if err := s.repo.CreateTicket(txCtx, ticket); err != nil {
					return err
				}
				tickets = append(tickets, ticket)
			}
			if err := s.repo.UpdateTicketTypeStock(txCtx, tt); err != nil {
				return err
			}

			result = tickets
			created = true
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	if created {
		for _, t := range result {
			s.publish(domain.TicketReserved, t, "")
		}
		s.opts.logger.Info("tickets reserved",
			"ticket_type_id", in.TicketTypeID,
			"user_id", in.UserID,
			"quantity", quantity,
			"correlation_id", result[0].CorrelationID,
		)
	}
	return result, nil
}

// ConfirmPayment promotes a Reserved ticket to Confirmed. Calling it again
// for a ticket already confirmed with the same payment reference returns the
// stored ticket. A repeat carrying a different payment reference is not
// treated as a retry: it returns ErrPaymentConflict so a second charge for the
// same ticket surfaces instead of being absorbed. A lapsed hold is expired and
// released before ErrHoldExpired is returned.
func (s *ReservationService) ConfirmPayment(ctx context.Context, ticketID, paymentReference string) (domain.Ticket, error) {
	if ticketID == "" {
		return domain.Ticket{}, domain.ErrNotFound
	}

	ctx, span := s.tracer.Start(ctx, "ReservationService.ConfirmPayment", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
	))
	defer span.End()

	var result domain.Ticket
	var emitted domain.TicketEventType
	err := retry(ctx, s.opts, func() error {
		result, emitted = domain.Ticket{}, ""
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			ticket, err := s.repo.GetTicket(txCtx, ticketID)
			if err != nil {
				return err
			}
			tt, err := s.repo.GetTicketTypeForUpdate(txCtx, ticket.TicketTypeID)
			if err != nil {
				return err
			}
			ticket, err = s.repo.GetTicketForUpdate(txCtx, ticketID)
			if err != nil {
				return err
			}

			switch ticket.State {
			case domain.TicketStateConfirmed, domain.TicketStateCheckedIn:
				if paymentReference != "" && ticket.PaymentReference != paymentReference {
					return domain.ErrPaymentConflict
				}
				result = ticket
				return nil
			case domain.TicketStateExpired:
				result = ticket
				return nil
			case domain.TicketStateReserved:
			default:
				return domain.ErrInvalidStateTransition
			}

			entry, err := s.repo.GetLedgerEntryForUpdate(txCtx, ticket.LedgerEntryID)
			if err != nil {
				return err
			}
			if entry.State != domain.LedgerStateActive {
				s.invariantViolation("reserved ticket without active hold", tt.ID, "ticket_id", ticket.ID, "entry_state", string(entry.State))
				return domain.ErrInvalidStateTransition
			}

			now := s.clock.Now()
			if entry.Expired(now) {
				if err := s.expireLocked(txCtx, &tt, entry, &ticket, now); err != nil {
					return err
				}
				result = ticket
				emitted = domain.TicketExpired
				return nil
			}

			if !tt.Confirm(entry.Quantity) {
				s.invariantViolation("confirm would drive held below zero", tt.ID, "ticket_id", ticket.ID)
			}
			if err := s.repo.UpdateLedgerEntryState(txCtx, entry.ID, domain.LedgerStatePromoted); err != nil {
				return err
			}
			if err := ticket.Transition(domain.TicketStateConfirmed, now); err != nil {
				return err
			}
			ticket.PaymentReference = paymentReference
			if err := s.repo.UpdateTicket(txCtx, ticket, domain.TicketStateReserved); err != nil {
				return err
			}
			if err := s.repo.UpdateTicketTypeStock(txCtx, tt); err != nil {
				return err
			}
			result = ticket
			emitted = domain.TicketConfirmed
			return nil
		})
	})
	if err != nil {
		return domain.Ticket{}, s.fail(span, err)
	}

	if emitted != "" {
		s.publish(emitted, result, "")
		s.opts.logger.Info("ticket "+string(result.State), "ticket_id", result.ID, "ticket_type_id", result.TicketTypeID)
	}
	if result.State == domain.TicketStateExpired {
		return result, s.fail(span, domain.ErrHoldExpired)
	}
	return result, nil
}

// Cancel moves a Reserved or Confirmed ticket to Cancelled. A reserved hold is
// returned to stock; a sold unit stays sold.
func (s *ReservationService) Cancel(ctx context.Context, ticketID, reason string) error {
	if ticketID == "" {
		return domain.ErrNotFound
	}

	ctx, span := s.tracer.Start(ctx, "ReservationService.Cancel", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
	))
	defer span.End()

	var cancelled domain.Ticket
	err := retry(ctx, s.opts, func() error {
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			ticket, err := s.repo.GetTicket(txCtx, ticketID)
			if err != nil {
				return err
			}
			tt, err := s.repo.GetTicketTypeForUpdate(txCtx, ticket.TicketTypeID)
			if err != nil {
				return err
			}
			ticket, err = s.repo.GetTicketForUpdate(txCtx, ticketID)
			if err != nil {
				return err
			}

			from := ticket.State
			if domain.Terminal(from) {
				s.opts.logger.Debug("cancel on settled ticket", "ticket_id", ticket.ID, "state", string(from))
				return domain.ErrInvalidStateTransition
			}
			now := s.clock.Now()
			if err := ticket.Transition(domain.TicketStateCancelled, now); err != nil {
				return err
			}

			if from == domain.TicketStateReserved {
				entry, err := s.repo.GetLedgerEntryForUpdate(txCtx, ticket.LedgerEntryID)
				if err != nil {
					return err
				}
				if entry.State == domain.LedgerStateActive {
					if !tt.Release(entry.Quantity) {
						s.invariantViolation("release would drive held below zero", tt.ID, "ticket_id", ticket.ID)
					}
					if err := s.repo.UpdateLedgerEntryState(txCtx, entry.ID, domain.LedgerStateReleased); err != nil {
						return err
					}
					if err := s.repo.UpdateTicketTypeStock(txCtx, tt); err != nil {
						return err
					}
				}
			}

			ticket.CancellationReason = reason
			if err := s.repo.UpdateTicket(txCtx, ticket, from); err != nil {
				return err
			}
			cancelled = ticket
			return nil
		})
	})
	if err != nil {
		return s.fail(span, err)
	}

	s.publish(domain.TicketCancelled, cancelled, reason)
	s.opts.logger.Info("ticket cancelled", "ticket_id", cancelled.ID, "reason", reason)
	return nil
}

// ExpireHold releases one ledger entry if it is still active and lapsed. It
// reports false when another caller already settled the entry.
func (s *ReservationService) ExpireHold(ctx context.Context, entryID string) (bool, error) {
	var expired domain.Ticket
	var released bool
	err := retry(ctx, s.opts, func() error {
		expired, released = domain.Ticket{}, false
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			entry, err := s.repo.GetLedgerEntry(txCtx, entryID)
			if err != nil {
				return err
			}
			tt, err := s.repo.GetTicketTypeForUpdate(txCtx, entry.TicketTypeID)
			if err != nil {
				return err
			}
			ticket, err := s.repo.GetTicketForUpdate(txCtx, entry.TicketID)
			if err != nil {
				return err
			}
			entry, err = s.repo.GetLedgerEntryForUpdate(txCtx, entryID)
			if err != nil {
				return err
			}

			now := s.clock.Now()
			if entry.State != domain.LedgerStateActive || !entry.Expired(now) {
				return nil
			}

			if ticket.State != domain.TicketStateReserved {
				s.invariantViolation("active hold on settled ticket", tt.ID, "ticket_id", ticket.ID, "ticket_state", string(ticket.State))
				if !tt.Release(entry.Quantity) {
					s.invariantViolation("release would drive held below zero", tt.ID, "entry_id", entry.ID)
				}
				if err := s.repo.UpdateLedgerEntryState(txCtx, entry.ID, domain.LedgerStateReleased); err != nil {
					return err
				}
				released = true
				return s.repo.UpdateTicketTypeStock(txCtx, tt)
			}

			if err := s.expireLocked(txCtx, &tt, entry, &ticket, now); err != nil {
				return err
			}
			expired = ticket
			released = true
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	if expired.ID != "" {
		s.publish(domain.TicketExpired, expired, "")
	}
	return released, nil
}

// Availability reports the unheld, unsold stock for a ticket type.
func (s *ReservationService) Availability(ctx context.Context, ticketTypeID string) (domain.Availability, error) {
	if ticketTypeID == "" {
		return domain.Availability{}, domain.ErrInvalidID
	}
	tt, err := s.repo.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return domain.Availability{}, err
	}
	return tt.Availability(), nil
}

func (s *ReservationService) GetTicket(ctx context.Context, ticketID string) (domain.Ticket, error) {
	if ticketID == "" {
		return domain.Ticket{}, domain.ErrNotFound
	}
	return s.repo.GetTicket(ctx, ticketID)
}

// expireLocked releases a lapsed hold. The ticket type, ticket and entry must
// already be locked by the caller's transaction.
func (s *ReservationService) expireLocked(ctx context.Context, tt *domain.TicketType, entry domain.LedgerEntry, ticket *domain.Ticket, now time.Time) error {
	if !tt.Release(entry.Quantity) {
		s.invariantViolation("release would drive held below zero", tt.ID, "entry_id", entry.ID)
	}
	if err := s.repo.UpdateLedgerEntryState(ctx, entry.ID, domain.LedgerStateReleased); err != nil {
		return err
	}
	if err := ticket.Transition(domain.TicketStateExpired, now); err != nil {
		return err
	}
	if err := s.repo.UpdateTicket(ctx, *ticket, domain.TicketStateReserved); err != nil {
		return err
	}
	return s.repo.UpdateTicketTypeStock(ctx, *tt)
}

func (s *ReservationService) publish(kind domain.TicketEventType, t domain.Ticket, reason string) {
	s.opts.publisher.Publish(domain.TicketEvent{
		ID:           uuid.NewString(),
		Type:         kind,
		TicketID:     t.ID,
		TicketTypeID: t.TicketTypeID,
		EventID:      t.EventID,
		OwnerUserID:  t.OwnerUserID,
		State:        t.State,
		Reason:       reason,
		OccurredAt:   t.UpdatedAt,
	})
}

func (s *ReservationService) invariantViolation(msg, ticketTypeID string, args ...any) {
	s.opts.logger.Error("stock invariant violation: "+msg, append([]any{"ticket_type_id", ticketTypeID}, args...)...)
}

func (s *ReservationService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
