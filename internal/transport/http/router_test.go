package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cimillas/ticket-inventory/internal/app"
	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/scancode"
	"github.com/cimillas/ticket-inventory/internal/storage/memory"
)

const testAdminToken = "admin-secret"

func newTestRouter(t *testing.T) (http.Handler, *clock.Manual) {
	t.Helper()

	store := memory.New()
	clk := clock.NewManual(handlerNow)
	codes, err := scancode.NewSigner([]byte("router-secret"))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	return NewRouter(Services{
		Reservations: app.NewReservationService(store, store, codes, clk, app.WithHoldTTL(10*time.Minute)),
		CheckIn:      app.NewCheckInService(store, codes, clk),
		Admin:        app.NewAdminService(store, clk),
		AdminToken:   testAdminToken,
	}), clk
}

func decodeInto(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

func TestRouter_TicketLifecycle(t *testing.T) {
	t.Parallel()

	h, clk := newTestRouter(t)
	admin := map[string]string{adminTokenHeader: testAdminToken}

	rec := doJSON(t, h, http.MethodPost, "/admin/events", fmt.Sprintf(
		`{"name":"Go Workshop","location":"Room 4","starts_at":%q,"ends_at":%q}`,
		handlerNow.Add(48*time.Hour).Format(time.RFC3339),
		handlerNow.Add(50*time.Hour).Format(time.RFC3339),
	), admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: %d %s", rec.Code, rec.Body.String())
	}
	var event eventResponse
	decodeInto(t, rec.Body.Bytes(), &event)

	rec = doJSON(t, h, http.MethodPost, "/admin/events/"+event.ID+"/ticket-types",
		`{"name":"General","capacity":2}`, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create ticket type: %d %s", rec.Code, rec.Body.String())
	}
	var tt ticketTypeResponse
	decodeInto(t, rec.Body.Bytes(), &tt)

	// The default sale window opens at creation time.
	clk.Advance(time.Minute)

	rec = doJSON(t, h, http.MethodPost, "/reservations",
		fmt.Sprintf(`{"ticket_type_id":%q,"user_id":"alice","quantity":2}`, tt.ID), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reserve: %d %s", rec.Code, rec.Body.String())
	}
	var reserved reserveResponse
	decodeInto(t, rec.Body.Bytes(), &reserved)
	if len(reserved.Tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(reserved.Tickets))
	}

	rec = doJSON(t, h, http.MethodPost, "/reservations",
		fmt.Sprintf(`{"ticket_type_id":%q,"user_id":"bob"}`, tt.ID), nil)
	if rec.Code != http.StatusConflict || decodeError(t, rec).Code != codeOutOfStock {
		t.Fatalf("expected out of stock, got %d", rec.Code)
	}

	first := reserved.Tickets[0]
	rec = doJSON(t, h, http.MethodPost, "/tickets/"+first.ID+"/confirm", `{"payment_reference":"pay-1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/tickets/"+reserved.Tickets[1].ID+"/cancel", `{"reason":"one is enough"}`, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/ticket-types/"+tt.ID+"/availability", "", nil)
	var avail availabilityResponse
	decodeInto(t, rec.Body.Bytes(), &avail)
	if avail.Sold != 1 || avail.Held != 0 || avail.Available != 1 {
		t.Fatalf("unexpected availability %+v", avail)
	}

	rec = doJSON(t, h, http.MethodGet, "/tickets/"+first.ID+"/qr", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("qr: %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/checkin", fmt.Sprintf(`{"code":%q}`, first.ScanCode), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("checkin: %d %s", rec.Code, rec.Body.String())
	}
	var admitted checkInResponse
	decodeInto(t, rec.Body.Bytes(), &admitted)

	clk.Advance(time.Minute)
	rec = doJSON(t, h, http.MethodPost, "/checkin", fmt.Sprintf(`{"code":%q}`, first.ScanCode), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second checkin: %d", rec.Code)
	}
	var dup alreadyCheckedInResponse
	decodeInto(t, rec.Body.Bytes(), &dup)
	if !dup.CheckedInAt.Equal(admitted.CheckedInAt) {
		t.Fatalf("expected original check-in time %s, got %s", admitted.CheckedInAt, dup.CheckedInAt)
	}
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	t.Parallel()

	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/admin/events", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRouter_AdminCapacity(t *testing.T) {
	t.Parallel()

	h, _ := newTestRouter(t)
	admin := map[string]string{adminTokenHeader: testAdminToken}

	rec := doJSON(t, h, http.MethodPost, "/admin/events", fmt.Sprintf(
		`{"name":"Meetup","starts_at":%q}`, handlerNow.Add(24*time.Hour).Format(time.RFC3339)), admin)
	var event eventResponse
	decodeInto(t, rec.Body.Bytes(), &event)

	rec = doJSON(t, h, http.MethodPost, "/admin/events/"+event.ID+"/ticket-types", `{"name":"VIP","capacity":5}`, admin)
	var tt ticketTypeResponse
	decodeInto(t, rec.Body.Bytes(), &tt)

	rec = doJSON(t, h, http.MethodPost, "/admin/ticket-types/"+tt.ID+"/capacity", `{"delta":3}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("grow: %d %s", rec.Code, rec.Body.String())
	}
	decodeInto(t, rec.Body.Bytes(), &tt)
	if tt.Capacity != 8 {
		t.Fatalf("expected capacity 8, got %d", tt.Capacity)
	}

	rec = doJSON(t, h, http.MethodPost, "/admin/ticket-types/"+tt.ID+"/capacity", `{"delta":-8}`, admin)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != codeInvalidCapacity {
		t.Fatalf("expected invalid capacity, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/admin/events/"+event.ID+"/ticket-types", "", admin)
	var types []ticketTypeResponse
	decodeInto(t, rec.Body.Bytes(), &types)
	if len(types) != 1 || types[0].Name != "VIP" {
		t.Fatalf("unexpected ticket types %+v", types)
	}

	rec = doJSON(t, h, http.MethodPost, "/admin/events/"+event.ID+"/ticket-types", `{"name":"VIP","capacity":1}`, admin)
	if rec.Code != http.StatusConflict || decodeError(t, rec).Code != codeTicketTypeExists {
		t.Fatalf("expected duplicate name conflict, got %d", rec.Code)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	t.Parallel()

	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
