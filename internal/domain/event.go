package domain

import "time"

// Event represents the event or workshop a ticket type is sold for.
type Event struct {
	ID       string
	Name     string
	Location string
	StartsAt time.Time
	EndsAt   time.Time
}

// EventSchedule is the read-only view of an event needed at reservation time.
type EventSchedule struct {
	EventID   string
	StartsAt  time.Time
	EndsAt    time.Time
	Location  string
	SaleStart time.Time
	SaleEnd   time.Time
}
