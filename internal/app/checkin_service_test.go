package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/cimillas/ticket-inventory/internal/scancode"
)

func TestCheckInService_Scan_FirstScanChecksIn(t *testing.T) {
	f := newFixture(t, 1)
	ticket := f.confirmed(t, "alice")
	f.clock.Advance(time.Hour)

	result, err := f.checkIn.Scan(context.Background(), ticket.ScanCode)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.Ticket.State != domain.TicketStateCheckedIn {
		t.Fatalf("expected checked in, got %s", result.Ticket.State)
	}
	if want := fixtureNow.Add(time.Hour); !result.CheckedInAt.Equal(want) {
		t.Fatalf("expected checked in at %v, got %v", want, result.CheckedInAt)
	}

	stored, _ := f.reservations.GetTicket(context.Background(), ticket.ID)
	if stored.CheckedInAt == nil || stored.State != domain.TicketStateCheckedIn {
		t.Fatalf("expected check-in persisted, got %+v", stored)
	}
}

func TestCheckInService_Scan_DuplicateReportsOriginalTime(t *testing.T) {
	f := newFixture(t, 1)
	ticket := f.confirmed(t, "alice")
	ctx := context.Background()

	first, err := f.checkIn.Scan(ctx, ticket.ScanCode)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	f.clock.Advance(5 * time.Minute)

	second, err := f.checkIn.Scan(ctx, ticket.ScanCode)
	if !errors.Is(err, domain.ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}
	var dup *domain.AlreadyCheckedInError
	if !errors.As(err, &dup) {
		t.Fatalf("expected *AlreadyCheckedInError, got %T", err)
	}
	if !dup.CheckedInAt.Equal(first.CheckedInAt) || !second.CheckedInAt.Equal(first.CheckedInAt) {
		t.Fatalf("expected original time %v, got %v / %v", first.CheckedInAt, dup.CheckedInAt, second.CheckedInAt)
	}
}

func TestCheckInService_Scan_ConcurrentDoubleScan(t *testing.T) {
	f := newFixture(t, 1)
	ticket := f.confirmed(t, "alice")

	const scanners = 8
	errs := make([]error, scanners)
	var wg sync.WaitGroup
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.checkIn.Scan(context.Background(), ticket.ScanCode)
		}(i)
	}
	wg.Wait()

	ok, dup := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrAlreadyCheckedIn):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != scanners-1 {
		t.Fatalf("expected exactly one success, got ok=%d dup=%d", ok, dup)
	}

	checkedIn := 0
	for _, typ := range f.published.types() {
		if typ == domain.TicketCheckedIn {
			checkedIn++
		}
	}
	if checkedIn != 1 {
		t.Fatalf("expected one checked_in event, got %d", checkedIn)
	}
}

func TestCheckInService_Scan_NotConfirmed(t *testing.T) {
	ctx := context.Background()

	t.Run("reserved", func(t *testing.T) {
		f := newFixture(t, 1)
		ticket := f.reserve(t, "alice")
		if _, err := f.checkIn.Scan(ctx, ticket.ScanCode); err != domain.ErrNotYetConfirmed {
			t.Fatalf("expected ErrNotYetConfirmed, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newFixture(t, 1)
		ticket := f.confirmed(t, "alice")
		if err := f.reservations.Cancel(ctx, ticket.ID, "refund"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if _, err := f.checkIn.Scan(ctx, ticket.ScanCode); err != domain.ErrNotYetConfirmed {
			t.Fatalf("expected ErrNotYetConfirmed, got %v", err)
		}
	})
}

func TestCheckInService_Scan_RejectsUnknownCodes(t *testing.T) {
	f := newFixture(t, 1)
	ticket := f.confirmed(t, "alice")
	ctx := context.Background()

	otherSigner, err := scancode.NewSigner([]byte("someone-else"))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	forged, _ := otherSigner.Issue()
	unissued, _ := f.codes.Issue()
	tampered := []byte(ticket.ScanCode)
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}

	for name, code := range map[string]string{
		"empty":    "",
		"garbage":  "not-a-code",
		"forged":   forged,
		"tampered": string(tampered),
		"unissued": unissued,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := f.checkIn.Scan(ctx, code); err != domain.ErrNotFound {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}

	if _, err := f.checkIn.Scan(ctx, "  "+strings.ToLower(ticket.ScanCode)+"\n"); err != nil {
		t.Fatalf("expected hand-typed code to verify, got %v", err)
	}
}
