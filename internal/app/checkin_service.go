package app

import (
	"context"

	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/cimillas/ticket-inventory/internal/scancode"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// CheckInService validates scan codes at the door.
type CheckInService struct {
	repo   CheckInRepository
	codes  CodeVerifier
	clock  clock.Clock
	opts   options
	tracer trace.Tracer
}

func NewCheckInService(repo CheckInRepository, codes CodeVerifier, clk clock.Clock, opts ...Option) *CheckInService {
	return &CheckInService{
		repo:   repo,
		codes:  codes,
		clock:  clk,
		opts:   buildOptions(opts),
		tracer: otel.Tracer(tracerName),
	}
}

// Scan checks a ticket in. Only the first scan of a Confirmed ticket
// succeeds; later scans get an *domain.AlreadyCheckedInError carrying the
// original check-in time alongside the stored ticket.
func (s *CheckInService) Scan(ctx context.Context, code string) (domain.ScanResult, error) {
	ctx, span := s.tracer.Start(ctx, "CheckInService.Scan")
	defer span.End()

	if !s.codes.Valid(code) {
		return domain.ScanResult{}, domain.ErrNotFound
	}
	code = scancode.Normalize(code)

	var result domain.ScanResult
	var duplicate error
	var checkedIn bool
	err := retry(ctx, s.opts, func() error {
		result, duplicate, checkedIn = domain.ScanResult{}, nil, false
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			ticket, err := s.repo.GetTicketByScanCodeForUpdate(txCtx, code)
			if err != nil {
				return err
			}

			switch ticket.State {
			case domain.TicketStateCheckedIn:
				at := ticket.UpdatedAt
				if ticket.CheckedInAt != nil {
					at = *ticket.CheckedInAt
				}
				result = domain.ScanResult{Ticket: ticket, CheckedInAt: at}
				duplicate = &domain.AlreadyCheckedInError{TicketID: ticket.ID, CheckedInAt: at}
				return nil
			case domain.TicketStateConfirmed:
			default:
				return domain.ErrNotYetConfirmed
			}

			now := s.clock.Now()
			if err := ticket.Transition(domain.TicketStateCheckedIn, now); err != nil {
				return err
			}
			ticket.CheckedInAt = &now
			if err := s.repo.UpdateTicket(txCtx, ticket, domain.TicketStateConfirmed); err != nil {
				return err
			}
			result = domain.ScanResult{Ticket: ticket, CheckedInAt: now}
			checkedIn = true
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return domain.ScanResult{}, err
	}
	if duplicate != nil {
		s.opts.logger.Warn("duplicate scan", "ticket_id", result.Ticket.ID, "checked_in_at", result.CheckedInAt)
		return result, duplicate
	}
	if checkedIn {
		t := result.Ticket
		s.opts.publisher.Publish(domain.TicketEvent{
			ID:           uuid.NewString(),
			Type:         domain.TicketCheckedIn,
			TicketID:     t.ID,
			TicketTypeID: t.TicketTypeID,
			EventID:      t.EventID,
			OwnerUserID:  t.OwnerUserID,
			State:        t.State,
			OccurredAt:   result.CheckedInAt,
		})
		s.opts.logger.Info("ticket checked in", "ticket_id", t.ID)
	}
	return result, nil
}
