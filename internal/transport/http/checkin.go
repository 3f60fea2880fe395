package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

// Scanner is the minimal interface needed to check tickets in.
type Scanner interface {
	Scan(ctx context.Context, code string) (domain.ScanResult, error)
}

// HandleCheckIn returns an HTTP handler for POST /checkin. A repeated scan
// answers 409 with the time of the first check-in.
func HandleCheckIn(svc Scanner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req checkInRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		if strings.TrimSpace(req.Code) == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "code is required")
			return
		}

		result, err := svc.Scan(r.Context(), req.Code)
		if err != nil {
			var dup *domain.AlreadyCheckedInError
			if errors.As(err, &dup) {
				writeJSON(w, http.StatusConflict, alreadyCheckedInResponse{
					Error:       domain.ErrAlreadyCheckedIn.Error(),
					Code:        codeAlreadyCheckedIn,
					TicketID:    dup.TicketID,
					CheckedInAt: dup.CheckedInAt,
				})
				return
			}
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, checkInResponse{
			Ticket:      newTicketResponse(result.Ticket),
			CheckedInAt: result.CheckedInAt,
		})
	}
}

type checkInRequest struct {
	Code string `json:"code"`
}

type checkInResponse struct {
	Ticket      ticketResponse `json:"ticket"`
	CheckedInAt time.Time      `json:"checked_in_at"`
}

type alreadyCheckedInResponse struct {
	Error       string    `json:"error"`
	Code        string    `json:"code"`
	TicketID    string    `json:"ticket_id"`
	CheckedInAt time.Time `json:"checked_in_at"`
}
