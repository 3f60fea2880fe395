package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		ready  func(context.Context) error
		method string
		status int
		body   string
	}{
		{"no readiness check", nil, http.MethodGet, http.StatusOK, "ok"},
		{"dependency up", func(context.Context) error { return nil }, http.MethodGet, http.StatusOK, "ok"},
		{"dependency down", func(context.Context) error { return errors.New("dial tcp: refused") }, http.MethodGet, http.StatusServiceUnavailable, ""},
		{"wrong method", nil, http.MethodPost, http.StatusMethodNotAllowed, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/health", nil)
			rec := httptest.NewRecorder()

			HealthHandler(tc.ready)(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Fatalf("expected body %q, got %q", tc.body, rec.Body.String())
			}
		})
	}
}
