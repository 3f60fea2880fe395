package domain

import (
	"errors"
	"testing"
	"time"
)

func TestTicketType_TryHold(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	base := TicketType{ID: "tt-1", Capacity: 3, SaleStart: start, SaleEnd: end}

	t.Run("holds inside the sale window", func(t *testing.T) {
		tt := base
		if err := tt.TryHold(start, 2); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tt.Held != 2 {
			t.Fatalf("expected held 2, got %d", tt.Held)
		}
	})

	t.Run("out of stock leaves counters untouched", func(t *testing.T) {
		tt := base
		tt.Sold = 2
		tt.Held = 1
		if err := tt.TryHold(start.Add(time.Hour), 1); !errors.Is(err, ErrOutOfStock) {
			t.Fatalf("expected ErrOutOfStock, got %v", err)
		}
		if tt.Held != 1 || tt.Sold != 2 {
			t.Fatalf("unexpected counters: %+v", tt)
		}
	})

	t.Run("before sale start", func(t *testing.T) {
		tt := base
		if err := tt.TryHold(start.Add(-time.Second), 1); !errors.Is(err, ErrSaleNotOpen) {
			t.Fatalf("expected ErrSaleNotOpen, got %v", err)
		}
	})

	t.Run("sale end is exclusive", func(t *testing.T) {
		tt := base
		if err := tt.TryHold(end, 1); !errors.Is(err, ErrSaleClosed) {
			t.Fatalf("expected ErrSaleClosed, got %v", err)
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		tt := base
		if err := tt.TryHold(start, 0); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})
}

func TestTicketType_ReleaseAndConfirm(t *testing.T) {
	t.Parallel()

	tt := TicketType{Capacity: 5, Held: 2}
	if !tt.Confirm(1) {
		t.Fatalf("expected confirm to succeed")
	}
	if tt.Held != 1 || tt.Sold != 1 {
		t.Fatalf("unexpected counters after confirm: %+v", tt)
	}
	if !tt.Release(1) {
		t.Fatalf("expected release to succeed")
	}
	if tt.Release(1) {
		t.Fatalf("expected release below zero to be refused")
	}
	if tt.Confirm(1) {
		t.Fatalf("expected confirm below zero to be refused")
	}
	if tt.Held != 0 || tt.Sold != 1 {
		t.Fatalf("counters changed by refused adjustment: %+v", tt)
	}
}

func TestTicketType_Availability(t *testing.T) {
	tt := TicketType{ID: "tt-1", Capacity: 4, Sold: 3, Held: 1}
	a := tt.Availability()
	if a.Available != 0 || !a.IsSoldOut {
		t.Fatalf("expected sold out, got %+v", a)
	}
	tt.Held = 0
	a = tt.Availability()
	if a.Available != 1 || a.IsSoldOut {
		t.Fatalf("expected one available, got %+v", a)
	}
}
