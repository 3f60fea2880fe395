package http

import (
	"context"
	"net/http"
)

// Services groups the application services the router exposes.
type Services struct {
	Reservations interface {
		Reserver
		TicketService
		AvailabilityReader
	}
	CheckIn Scanner
	Admin   interface {
		AdminEventService
		AdminTicketTypeService
	}
	AdminToken string
	// Ready, when set, backs the /health readiness check.
	Ready func(context.Context) error
}

// NewRouter wires every route onto a ServeMux. Admin routes sit behind the
// admin token check.
func NewRouter(s Services) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler(s.Ready))

	mux.Handle("/reservations", HandleReserve(s.Reservations))
	mux.Handle("/tickets/", HandleTickets(s.Reservations))
	mux.Handle("/ticket-types/", HandleAvailability(s.Reservations))
	mux.Handle("/checkin", HandleCheckIn(s.CheckIn))

	mux.Handle("/admin/events", RequireAdminToken(s.AdminToken, HandleAdminEvents(s.Admin)))
	mux.Handle("/admin/events/", RequireAdminToken(s.AdminToken, HandleAdminTicketTypes(s.Admin)))
	mux.Handle("/admin/ticket-types/", RequireAdminToken(s.AdminToken, HandleAdminCapacity(s.Admin)))

	mux.Handle("/", NotFoundHandler())
	return mux
}
