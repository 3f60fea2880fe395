package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/cimillas/ticket-inventory/internal/scancode"
	"github.com/cimillas/ticket-inventory/internal/storage/memory"
)

var fixtureNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.TicketEvent
}

func (p *recordingPublisher) Publish(event domain.TicketEvent) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []domain.TicketEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.TicketEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store        *memory.Store
	clock        *clock.Manual
	codes        *scancode.Signer
	published    *recordingPublisher
	reservations *ReservationService
	checkIn      *CheckInService
	ticketType   domain.TicketType
	event        domain.Event
}

// newFixture seeds one event and one ticket type whose sale window is open
// at fixtureNow.
func newFixture(t *testing.T, capacity int, opts ...Option) *fixture {
	t.Helper()

	store := memory.New()
	clk := clock.NewManual(fixtureNow)
	codes, err := scancode.NewSigner([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	published := &recordingPublisher{}

	event := domain.Event{
		ID:       "event-1",
		Name:     "Go Workshop",
		Location: "Room 4",
		StartsAt: fixtureNow.Add(48 * time.Hour),
		EndsAt:   fixtureNow.Add(50 * time.Hour),
	}
	tt := domain.TicketType{
		ID:        "type-1",
		EventID:   event.ID,
		Name:      "General",
		Capacity:  capacity,
		SaleStart: fixtureNow.Add(-time.Hour),
		SaleEnd:   fixtureNow.Add(24 * time.Hour),
	}
	ctx := context.Background()
	if err := store.CreateEvent(ctx, event); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if err := store.CreateTicketType(ctx, tt); err != nil {
		t.Fatalf("create ticket type: %v", err)
	}

	opts = append([]Option{WithPublisher(published), WithHoldTTL(10 * time.Minute)}, opts...)
	return &fixture{
		store:        store,
		clock:        clk,
		codes:        codes,
		published:    published,
		reservations: NewReservationService(store, store, codes, clk, opts...),
		checkIn:      NewCheckInService(store, codes, clk, opts...),
		ticketType:   tt,
		event:        event,
	}
}

func (f *fixture) reserve(t *testing.T, user string) domain.Ticket {
	t.Helper()
	ticket, err := f.reservations.Reserve(context.Background(), ReserveInput{TicketTypeID: f.ticketType.ID, UserID: user})
	if err != nil {
		t.Fatalf("reserve for %s: %v", user, err)
	}
	return ticket
}

func (f *fixture) confirmed(t *testing.T, user string) domain.Ticket {
	t.Helper()
	ticket := f.reserve(t, user)
	ticket, err := f.reservations.ConfirmPayment(context.Background(), ticket.ID, "pay-"+user)
	if err != nil {
		t.Fatalf("confirm for %s: %v", user, err)
	}
	return ticket
}

func (f *fixture) availability(t *testing.T) domain.Availability {
	t.Helper()
	a, err := f.reservations.Availability(context.Background(), f.ticketType.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	return a
}

// flakyStore fails the first failures transactions with a transient error.
type flakyStore struct {
	*memory.Store
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("begin tx: %w", domain.ErrTransient)
	}
	return f.Store.WithTx(ctx, fn)
}
