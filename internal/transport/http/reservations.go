package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/ticket-inventory/internal/app"
	"github.com/cimillas/ticket-inventory/internal/domain"
)

const idempotencyHeader = "Idempotency-Key"

// Reserver is the minimal interface needed to place holds.
type Reserver interface {
	ReserveMany(ctx context.Context, in app.ReserveInput, quantity int) ([]domain.Ticket, error)
}

// HandleReserve returns an HTTP handler for POST /reservations.
func HandleReserve(svc Reserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req reserveRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		if req.TicketTypeID == "" || req.UserID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "ticket_type_id and user_id are required")
			return
		}
		quantity := req.Quantity
		if quantity == 0 {
			quantity = 1
		}
		if req.HoldSeconds < 0 {
			writeServiceError(w, domain.ErrInvalidHoldDuration)
			return
		}

		key := r.Header.Get(idempotencyHeader)
		if key == "" {
			key = req.IdempotencyKey
		}

		tickets, err := svc.ReserveMany(r.Context(), app.ReserveInput{
			TicketTypeID:   req.TicketTypeID,
			UserID:         req.UserID,
			HoldDuration:   time.Duration(req.HoldSeconds) * time.Second,
			IdempotencyKey: key,
		}, quantity)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := reserveResponse{
			CorrelationID: tickets[0].CorrelationID,
			Tickets:       make([]ticketResponse, 0, len(tickets)),
		}
		for _, t := range tickets {
			resp.Tickets = append(resp.Tickets, newTicketResponse(t))
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

type reserveRequest struct {
	TicketTypeID   string `json:"ticket_type_id"`
	UserID         string `json:"user_id"`
	Quantity       int    `json:"quantity,omitempty"`
	HoldSeconds    int    `json:"hold_seconds,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type reserveResponse struct {
	CorrelationID string           `json:"correlation_id"`
	Tickets       []ticketResponse `json:"tickets"`
}
