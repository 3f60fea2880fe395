package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// TicketService is the minimal interface needed for ticket endpoints.
type TicketService interface {
	GetTicket(ctx context.Context, ticketID string) (domain.Ticket, error)
	ConfirmPayment(ctx context.Context, ticketID, paymentReference string) (domain.Ticket, error)
	Cancel(ctx context.Context, ticketID, reason string) error
}

// HandleTickets serves GET /tickets/{id}, GET /tickets/{id}/qr,
// POST /tickets/{id}/confirm and POST /tickets/{id}/cancel.
func HandleTickets(svc TicketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticketID, action, ok := parseTicketPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		method := http.MethodPost
		if action == "" || action == "qr" {
			method = http.MethodGet
		}
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		switch action {
		case "":
			ticket, err := svc.GetTicket(r.Context(), ticketID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, newTicketResponse(ticket))
		case "qr":
			serveQR(w, r, svc, ticketID)
		case "confirm":
			var req confirmRequest
			if !decodeBody(w, r, &req, false) {
				return
			}
			if strings.TrimSpace(req.PaymentReference) == "" {
				writeError(w, http.StatusBadRequest, codeMissingRequiredField, "payment_reference is required")
				return
			}
			ticket, err := svc.ConfirmPayment(r.Context(), ticketID, req.PaymentReference)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, newTicketResponse(ticket))
		case "cancel":
			var req cancelRequest
			if !decodeBody(w, r, &req, true) {
				return
			}
			if err := svc.Cancel(r.Context(), ticketID, req.Reason); err != nil {
				writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// serveQR renders the ticket's scan code. Only tickets that can be admitted
// get a code.
func serveQR(w http.ResponseWriter, r *http.Request, svc TicketService, ticketID string) {
	ticket, err := svc.GetTicket(r.Context(), ticketID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ticket.State != domain.TicketStateConfirmed && ticket.State != domain.TicketStateCheckedIn {
		writeServiceError(w, domain.ErrNotYetConfirmed)
		return
	}
	png, err := qrcode.Encode(ticket.ScanCode, qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func parseTicketPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "tickets" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		return parts[1], "", true
	}
	switch parts[2] {
	case "confirm", "cancel", "qr":
		return parts[1], parts[2], true
	}
	return "", "", false
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
// An empty body is accepted when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

type confirmRequest struct {
	PaymentReference string `json:"payment_reference"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type ticketResponse struct {
	ID                 string     `json:"id"`
	TicketTypeID       string     `json:"ticket_type_id"`
	EventID            string     `json:"event_id"`
	OwnerUserID        string     `json:"owner_user_id"`
	CorrelationID      string     `json:"correlation_id"`
	State              string     `json:"state"`
	ScanCode           string     `json:"scan_code"`
	ValidFrom          time.Time  `json:"valid_from"`
	ValidUntil         time.Time  `json:"valid_until"`
	PaymentReference   string     `json:"payment_reference,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CheckedInAt        *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func newTicketResponse(t domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:                 t.ID,
		TicketTypeID:       t.TicketTypeID,
		EventID:            t.EventID,
		OwnerUserID:        t.OwnerUserID,
		CorrelationID:      t.CorrelationID,
		State:              string(t.State),
		ScanCode:           t.ScanCode,
		ValidFrom:          t.ValidFrom,
		ValidUntil:         t.ValidUntil,
		PaymentReference:   t.PaymentReference,
		CancellationReason: t.CancellationReason,
		CheckedInAt:        t.CheckedInAt,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}
