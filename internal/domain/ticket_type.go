package domain

import "time"

// TicketType is a sellable ticket category for one event, together with the
// counters that bound how many units can be held or sold.
type TicketType struct {
	ID        string
	EventID   string
	Name      string
	Capacity  int
	Sold      int
	Held      int
	SaleStart time.Time
	SaleEnd   time.Time
}

// Available returns the number of units that can still be held.
func (t TicketType) Available() int {
	n := t.Capacity - t.Sold - t.Held
	if n < 0 {
		return 0
	}
	return n
}

// CheckSaleWindow reports whether now falls inside [SaleStart, SaleEnd).
func (t TicketType) CheckSaleWindow(now time.Time) error {
	if now.Before(t.SaleStart) {
		return ErrSaleNotOpen
	}
	if !now.Before(t.SaleEnd) {
		return ErrSaleClosed
	}
	return nil
}

// TryHold claims qty units for a hold. The check and the increment happen on
// the same value, so callers must hold the ticket type's lock.
func (t *TicketType) TryHold(now time.Time, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if err := t.CheckSaleWindow(now); err != nil {
		return err
	}
	if t.Capacity-t.Sold-t.Held < qty {
		return ErrOutOfStock
	}
	t.Held += qty
	return nil
}

// Release returns qty held units to stock. It refuses and reports false when
// held would go negative.
func (t *TicketType) Release(qty int) bool {
	if qty <= 0 || t.Held < qty {
		return false
	}
	t.Held -= qty
	return true
}

// Confirm moves qty units from held to sold. It refuses and reports false
// when held would go negative.
func (t *TicketType) Confirm(qty int) bool {
	if qty <= 0 || t.Held < qty {
		return false
	}
	t.Held -= qty
	t.Sold += qty
	return true
}

// Availability is the public stock view of a ticket type.
type Availability struct {
	TicketTypeID string
	Capacity     int
	Sold         int
	Held         int
	Available    int
	IsSoldOut    bool
}

func (t TicketType) Availability() Availability {
	available := t.Available()
	return Availability{
		TicketTypeID: t.ID,
		Capacity:     t.Capacity,
		Sold:         t.Sold,
		Held:         t.Held,
		Available:    available,
		IsSoldOut:    available == 0,
	}
}
