package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

// AvailabilityReader is the minimal interface needed for stock queries.
type AvailabilityReader interface {
	Availability(ctx context.Context, ticketTypeID string) (domain.Availability, error)
}

// HandleAvailability returns an HTTP handler for
// GET /ticket-types/{id}/availability.
func HandleAvailability(svc AvailabilityReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticketTypeID, ok := parseAvailabilityPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		a, err := svc.Availability(r.Context(), ticketTypeID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, availabilityResponse{
			TicketTypeID: a.TicketTypeID,
			Capacity:     a.Capacity,
			Sold:         a.Sold,
			Held:         a.Held,
			Available:    a.Available,
			IsSoldOut:    a.IsSoldOut,
		})
	}
}

func parseAvailabilityPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "ticket-types" || parts[2] != "availability" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type availabilityResponse struct {
	TicketTypeID string `json:"ticket_type_id"`
	Capacity     int    `json:"capacity"`
	Sold         int    `json:"sold"`
	Held         int    `json:"held"`
	Available    int    `json:"available"`
	IsSoldOut    bool   `json:"is_sold_out"`
}
