package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T) *Store {
	t.Helper()
	s := New()
	ctx := context.Background()
	if err := s.CreateEvent(ctx, domain.Event{ID: "e1", Name: "Show", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if err := s.CreateTicketType(ctx, domain.TicketType{ID: "t1", EventID: "e1", Name: "GA", Capacity: 10, SaleEnd: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create ticket type: %v", err)
	}
	return s
}

func TestStore_WithTx_DiscardsOnError(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context) error {
		tt, err := s.GetTicketTypeForUpdate(ctx, "t1")
		if err != nil {
			return err
		}
		tt.Held = 3
		if err := s.UpdateTicketTypeStock(ctx, tt); err != nil {
			return err
		}
		got, _ := s.GetTicketType(ctx, "t1")
		if got.Held != 3 {
			t.Errorf("expected own write visible inside tx, got %d", got.Held)
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := s.GetTicketType(ctx, "t1")
	if got.Held != 0 {
		t.Fatalf("expected rollback, got held=%d", got.Held)
	}
}

func TestStore_WithTx_CommitsAndIndexesScanCode(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context) error {
		if err := s.CreateLedgerEntry(ctx, domain.LedgerEntry{ID: "l1", TicketTypeID: "t1", TicketID: "k1", Quantity: 1, State: domain.LedgerStateActive, ExpiresAt: now}); err != nil {
			return err
		}
		return s.CreateTicket(ctx, domain.Ticket{ID: "k1", LedgerEntryID: "l1", TicketTypeID: "t1", State: domain.TicketStateConfirmed, ScanCode: "CODE1"})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	err = s.WithTx(ctx, func(ctx context.Context) error {
		got, err := s.GetTicketByScanCodeForUpdate(ctx, "CODE1")
		if err != nil {
			return err
		}
		if got.ID != "k1" {
			t.Errorf("expected k1, got %s", got.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, err := s.GetTicketByScanCodeForUpdate(ctx, "NOPE"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_UpdateTicket_ComparesState(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	ticket := domain.Ticket{ID: "k1", TicketTypeID: "t1", State: domain.TicketStateConfirmed, ScanCode: "CODE1"}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	ticket.State = domain.TicketStateCheckedIn
	if err := s.UpdateTicket(ctx, ticket, domain.TicketStateReserved); err != domain.ErrInvalidStateTransition {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if err := s.UpdateTicket(ctx, ticket, domain.TicketStateConfirmed); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetTicket(ctx, "k1")
	if got.State != domain.TicketStateCheckedIn {
		t.Fatalf("expected checked_in, got %s", got.State)
	}
}

func TestStore_ListExpiredEntries(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	entries := []domain.LedgerEntry{
		{ID: "old", TicketTypeID: "t1", State: domain.LedgerStateActive, ExpiresAt: now.Add(-2 * time.Minute)},
		{ID: "older", TicketTypeID: "t1", State: domain.LedgerStateActive, ExpiresAt: now.Add(-5 * time.Minute)},
		{ID: "edge", TicketTypeID: "t1", State: domain.LedgerStateActive, ExpiresAt: now},
		{ID: "live", TicketTypeID: "t1", State: domain.LedgerStateActive, ExpiresAt: now.Add(time.Minute)},
		{ID: "done", TicketTypeID: "t1", State: domain.LedgerStatePromoted, ExpiresAt: now.Add(-time.Hour)},
	}
	for _, e := range entries {
		if err := s.CreateLedgerEntry(ctx, e); err != nil {
			t.Fatalf("create entry %s: %v", e.ID, err)
		}
	}

	got, err := s.ListExpiredEntries(ctx, now, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"older", "old", "edge"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %d entries", want, len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("expected %s at %d, got %s", id, i, got[i].ID)
		}
	}

	limited, _ := s.ListExpiredEntries(ctx, now, 1)
	if len(limited) != 1 || limited[0].ID != "older" {
		t.Fatalf("expected oldest entry only, got %+v", limited)
	}
}

func TestStore_RowLockSerializesTransactions(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithTx(ctx, func(ctx context.Context) error {
				tt, err := s.GetTicketTypeForUpdate(ctx, "t1")
				if err != nil {
					return err
				}
				tt.Held++
				return s.UpdateTicketTypeStock(ctx, tt)
			})
		}()
	}
	wg.Wait()

	got, _ := s.GetTicketType(ctx, "t1")
	if got.Held != workers {
		t.Fatalf("expected %d increments, got %d", workers, got.Held)
	}
}

func TestStore_GetSchedule(t *testing.T) {
	s := seed(t)
	got, err := s.GetSchedule(context.Background(), "t1")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if got.EventID != "e1" || !got.StartsAt.Equal(now.Add(time.Hour)) || !got.SaleEnd.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected schedule %+v", got)
	}
	if _, err := s.GetSchedule(context.Background(), "missing"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
