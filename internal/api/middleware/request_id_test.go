package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	t.Run("generates request ID when not provided", func(t *testing.T) {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if _, err := uuid.Parse(seen); err != nil {
			t.Fatalf("expected a UUID request ID, got %q: %v", seen, err)
		}
		if got := rec.Header().Get(RequestIDHeader); got != seen {
			t.Errorf("expected response header %q, got %q", seen, got)
		}
	})

	t.Run("uses client-provided request ID", func(t *testing.T) {
		expectedID := "client-request-123"
		var actualID string

		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actualID = GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, expectedID)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if actualID != expectedID {
			t.Errorf("expected request ID %q, got %q", expectedID, actualID)
		}
		if responseID := rec.Header().Get(RequestIDHeader); responseID != expectedID {
			t.Errorf("expected X-Request-ID header %q, got %q", expectedID, responseID)
		}
	})

	t.Run("replaces oversized client ID", func(t *testing.T) {
		var actualID string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actualID = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if len(actualID) != 36 {
			t.Errorf("expected generated UUID, got %q", actualID)
		}
	})

	t.Run("GetRequestID returns empty string when not set", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if requestID := GetRequestID(req.Context()); requestID != "" {
			t.Errorf("expected empty string, got %q", requestID)
		}
	})

	t.Run("generates unique IDs for different requests", func(t *testing.T) {
		ids := make(map[string]bool)
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ids[GetRequestID(r.Context())] = true
		}))

		for i := 0; i < 100; i++ {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}

		if len(ids) != 100 {
			t.Errorf("expected 100 unique IDs, got %d", len(ids))
		}
	})
}
