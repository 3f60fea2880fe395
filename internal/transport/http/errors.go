package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

const (
	codeMethodNotAllowed       = "method_not_allowed"
	codeNotFound               = "not_found"
	codeInvalidRequestBody     = "invalid_request_body"
	codeMissingRequiredField   = "missing_required_field"
	codeInvalidTime            = "invalid_time"
	codeInvalidID              = "invalid_id"
	codeEventNameRequired      = "event_name_required"
	codeTicketTypeNameRequired = "ticket_type_name_required"
	codeTicketTypeExists       = "ticket_type_exists"
	codeUserRequired           = "user_required"
	codeInvalidQuantity        = "invalid_quantity"
	codeInvalidCapacity        = "invalid_capacity"
	codeInvalidSaleWindow      = "invalid_sale_window"
	codeInvalidHoldDuration    = "invalid_hold_duration"
	codeIdempotencyConflict    = "idempotency_conflict"
	codeOutOfStock             = "out_of_stock"
	codeSaleNotOpen            = "sale_not_open"
	codeSaleClosed             = "sale_closed"
	codeHoldExpired            = "hold_expired"
	codeInvalidTransition      = "invalid_state_transition"
	codePaymentConflict        = "payment_conflict"
	codeAlreadyCheckedIn       = "already_checked_in"
	codeNotYetConfirmed        = "not_yet_confirmed"
	codeUnavailable            = "unavailable"
	codeForbidden              = "forbidden"
	codeInternalError          = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrUserRequired, http.StatusBadRequest, codeUserRequired},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrInvalidCapacity, http.StatusBadRequest, codeInvalidCapacity},
	{domain.ErrInvalidSaleWindow, http.StatusBadRequest, codeInvalidSaleWindow},
	{domain.ErrInvalidHoldDuration, http.StatusBadRequest, codeInvalidHoldDuration},
	{domain.ErrEventNameRequired, http.StatusBadRequest, codeEventNameRequired},
	{domain.ErrTicketTypeNameRequired, http.StatusBadRequest, codeTicketTypeNameRequired},
	{domain.ErrTicketTypeExists, http.StatusConflict, codeTicketTypeExists},
	{domain.ErrIdempotencyConflict, http.StatusConflict, codeIdempotencyConflict},
	{domain.ErrOutOfStock, http.StatusConflict, codeOutOfStock},
	{domain.ErrSaleNotOpen, http.StatusConflict, codeSaleNotOpen},
	{domain.ErrSaleClosed, http.StatusConflict, codeSaleClosed},
	{domain.ErrHoldExpired, http.StatusConflict, codeHoldExpired},
	{domain.ErrInvalidStateTransition, http.StatusConflict, codeInvalidTransition},
	{domain.ErrPaymentConflict, http.StatusConflict, codePaymentConflict},
	{domain.ErrAlreadyCheckedIn, http.StatusConflict, codeAlreadyCheckedIn},
	{domain.ErrNotYetConfirmed, http.StatusConflict, codeNotYetConfirmed},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, codeUnavailable},
}

// writeServiceError maps a service error to its status and stable code.
// Unknown errors become a 500 without leaking their text.
func writeServiceError(w http.ResponseWriter, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			msg := e.err.Error()
			if e.status == http.StatusServiceUnavailable {
				w.Header().Set("Retry-After", "1")
			}
			writeError(w, e.status, e.code, msg)
			return
		}
	}
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
