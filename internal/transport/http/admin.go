package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/ticket-inventory/internal/app"
	"github.com/cimillas/ticket-inventory/internal/domain"
)

// AdminEventService is the minimal interface needed for admin event endpoints.
type AdminEventService interface {
	CreateEvent(ctx context.Context, in app.CreateEventInput) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

// AdminTicketTypeService is the minimal interface needed for admin ticket
// type endpoints.
type AdminTicketTypeService interface {
	CreateTicketType(ctx context.Context, in app.CreateTicketTypeInput) (domain.TicketType, error)
	ListTicketTypes(ctx context.Context, eventID string) ([]domain.TicketType, error)
	AdjustCapacity(ctx context.Context, ticketTypeID string, delta int) (domain.TicketType, error)
}

// HandleAdminEvents returns an HTTP handler for admin event creation/listing.
func HandleAdminEvents(svc AdminEventService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			events, err := svc.ListEvents(r.Context())
			if err != nil {
				writeServiceError(w, err)
				return
			}
			resp := make([]eventResponse, 0, len(events))
			for _, event := range events {
				resp = append(resp, newEventResponse(event))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req createEventRequest
			if !decodeBody(w, r, &req, false) {
				return
			}
			if req.Name == "" {
				writeError(w, http.StatusBadRequest, codeEventNameRequired, domain.ErrEventNameRequired.Error())
				return
			}
			startsAt, ok := parseOptionalTime(w, "starts_at", req.StartsAt)
			if !ok {
				return
			}
			endsAt, ok := parseOptionalTime(w, "ends_at", req.EndsAt)
			if !ok {
				return
			}

			event, err := svc.CreateEvent(r.Context(), app.CreateEventInput{
				Name:     req.Name,
				Location: req.Location,
				StartsAt: startsAt,
				EndsAt:   endsAt,
			})
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, newEventResponse(event))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminTicketTypes serves GET|POST /admin/events/{id}/ticket-types.
func HandleAdminTicketTypes(svc AdminTicketTypeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, ok := parseAdminEventTicketTypesPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			types, err := svc.ListTicketTypes(r.Context(), eventID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			resp := make([]ticketTypeResponse, 0, len(types))
			for _, tt := range types {
				resp = append(resp, newTicketTypeResponse(tt))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req createTicketTypeRequest
			if !decodeBody(w, r, &req, false) {
				return
			}
			if req.Name == "" {
				writeError(w, http.StatusBadRequest, codeTicketTypeNameRequired, domain.ErrTicketTypeNameRequired.Error())
				return
			}
			if req.Capacity <= 0 {
				writeError(w, http.StatusBadRequest, codeInvalidCapacity, domain.ErrInvalidCapacity.Error())
				return
			}
			saleStart, ok := parseOptionalTime(w, "sale_start", req.SaleStart)
			if !ok {
				return
			}
			saleEnd, ok := parseOptionalTime(w, "sale_end", req.SaleEnd)
			if !ok {
				return
			}

			tt, err := svc.CreateTicketType(r.Context(), app.CreateTicketTypeInput{
				EventID:   eventID,
				Name:      req.Name,
				Capacity:  req.Capacity,
				SaleStart: saleStart,
				SaleEnd:   saleEnd,
			})
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, newTicketTypeResponse(tt))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminCapacity serves POST /admin/ticket-types/{id}/capacity.
func HandleAdminCapacity(svc AdminTicketTypeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticketTypeID, ok := parseAdminCapacityPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req adjustCapacityRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		if req.Delta == 0 {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "delta is required")
			return
		}

		tt, err := svc.AdjustCapacity(r.Context(), ticketTypeID, req.Delta)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newTicketTypeResponse(tt))
	}
}

func parseOptionalTime(w http.ResponseWriter, field, value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidTime, "invalid "+field+" format")
		return nil, false
	}
	return &parsed, true
}

type createEventRequest struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	StartsAt string `json:"starts_at,omitempty"`
	EndsAt   string `json:"ends_at,omitempty"`
}

type eventResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location string    `json:"location,omitempty"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

func newEventResponse(e domain.Event) eventResponse {
	return eventResponse{
		ID:       e.ID,
		Name:     e.Name,
		Location: e.Location,
		StartsAt: e.StartsAt,
		EndsAt:   e.EndsAt,
	}
}

type createTicketTypeRequest struct {
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	SaleStart string `json:"sale_start,omitempty"`
	SaleEnd   string `json:"sale_end,omitempty"`
}

type adjustCapacityRequest struct {
	Delta int `json:"delta"`
}

type ticketTypeResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Sold      int       `json:"sold"`
	Held      int       `json:"held"`
	Available int       `json:"available"`
	SaleStart time.Time `json:"sale_start"`
	SaleEnd   time.Time `json:"sale_end"`
}

func newTicketTypeResponse(tt domain.TicketType) ticketTypeResponse {
	return ticketTypeResponse{
		ID:        tt.ID,
		EventID:   tt.EventID,
		Name:      tt.Name,
		Capacity:  tt.Capacity,
		Sold:      tt.Sold,
		Held:      tt.Held,
		Available: tt.Available(),
		SaleStart: tt.SaleStart,
		SaleEnd:   tt.SaleEnd,
	}
}

func parseAdminEventTicketTypesPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		return "", false
	}
	if parts[0] != "admin" || parts[1] != "events" || parts[3] != "ticket-types" {
		return "", false
	}
	if parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

func parseAdminCapacityPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		return "", false
	}
	if parts[0] != "admin" || parts[1] != "ticket-types" || parts[3] != "capacity" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
