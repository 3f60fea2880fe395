package app

import (
	"context"
	"time"

	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/google/uuid"
)

type AdminRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateEvent(ctx context.Context, event domain.Event) error
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	CreateTicketType(ctx context.Context, tt domain.TicketType) error
	ListTicketTypesByEvent(ctx context.Context, eventID string) ([]domain.TicketType, error)
	GetTicketTypeForUpdate(ctx context.Context, id string) (domain.TicketType, error)
	UpdateTicketTypeStock(ctx context.Context, tt domain.TicketType) error
}

type AdminService struct {
	repo  AdminRepository
	clock clock.Clock
	opts  options
}

func NewAdminService(repo AdminRepository, clk clock.Clock, opts ...Option) *AdminService {
	return &AdminService{
		repo:  repo,
		clock: clk,
		opts:  buildOptions(opts),
	}
}

type CreateEventInput struct {
	Name     string
	Location string
	StartsAt *time.Time
	EndsAt   *time.Time
}

func (s *AdminService) CreateEvent(ctx context.Context, in CreateEventInput) (domain.Event, error) {
	if in.Name == "" {
		return domain.Event{}, domain.ErrEventNameRequired
	}
	startsAt := s.clock.Now()
	if in.StartsAt != nil {
		startsAt = in.StartsAt.UTC()
	}
	endsAt := startsAt
	if in.EndsAt != nil {
		endsAt = in.EndsAt.UTC()
	}
	if endsAt.Before(startsAt) {
		return domain.Event{}, domain.ErrInvalidSaleWindow
	}

	event := domain.Event{
		ID:       uuid.NewString(),
		Name:     in.Name,
		Location: in.Location,
		StartsAt: startsAt,
		EndsAt:   endsAt,
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func (s *AdminService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.repo.ListEvents(ctx)
}

type CreateTicketTypeInput struct {
	EventID   string
	Name      string
	Capacity  int
	SaleStart *time.Time
	SaleEnd   *time.Time
}

// CreateTicketType opens a ticket category. The sale window defaults to
// [now, event start).
func (s *AdminService) CreateTicketType(ctx context.Context, in CreateTicketTypeInput) (domain.TicketType, error) {
	if in.EventID == "" {
		return domain.TicketType{}, domain.ErrInvalidID
	}
	if in.Name == "" {
		return domain.TicketType{}, domain.ErrTicketTypeNameRequired
	}
	if in.Capacity <= 0 {
		return domain.TicketType{}, domain.ErrInvalidCapacity
	}

	event, err := s.repo.GetEvent(ctx, in.EventID)
	if err != nil {
		return domain.TicketType{}, err
	}

	saleStart := s.clock.Now()
	if in.SaleStart != nil {
		saleStart = in.SaleStart.UTC()
	}
	saleEnd := event.StartsAt
	if in.SaleEnd != nil {
		saleEnd = in.SaleEnd.UTC()
	}
	if saleEnd.Before(saleStart) {
		return domain.TicketType{}, domain.ErrInvalidSaleWindow
	}

	tt := domain.TicketType{
		ID:        uuid.NewString(),
		EventID:   event.ID,
		Name:      in.Name,
		Capacity:  in.Capacity,
		SaleStart: saleStart,
		SaleEnd:   saleEnd,
	}
	if err := s.repo.CreateTicketType(ctx, tt); err != nil {
		return domain.TicketType{}, err
	}
	return tt, nil
}

func (s *AdminService) ListTicketTypes(ctx context.Context, eventID string) ([]domain.TicketType, error) {
	if eventID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListTicketTypesByEvent(ctx, eventID)
}

// AdjustCapacity is the privileged stock edit: it moves capacity by delta and
// never touches sold or held. Capacity cannot drop below sold + held.
func (s *AdminService) AdjustCapacity(ctx context.Context, ticketTypeID string, delta int) (domain.TicketType, error) {
	if ticketTypeID == "" {
		return domain.TicketType{}, domain.ErrInvalidID
	}

	var result domain.TicketType
	err := retry(ctx, s.opts, func() error {
		return s.repo.WithTx(ctx, func(txCtx context.Context) error {
			tt, err := s.repo.GetTicketTypeForUpdate(txCtx, ticketTypeID)
			if err != nil {
				return err
			}
			next := tt.Capacity + delta
			if next <= 0 || next < tt.Sold+tt.Held {
				return domain.ErrInvalidCapacity
			}
			tt.Capacity = next
			if err := s.repo.UpdateTicketTypeStock(txCtx, tt); err != nil {
				return err
			}
			result = tt
			return nil
		})
	})
	if err != nil {
		return domain.TicketType{}, err
	}
	s.opts.logger.Info("capacity adjusted", "ticket_type_id", ticketTypeID, "delta", delta, "capacity", result.Capacity)
	return result, nil
}
