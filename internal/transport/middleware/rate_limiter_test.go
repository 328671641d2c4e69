// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	handler := RateLimit(2, func() time.Time { return now })(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/requests", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimitRejectsWhenExhausted(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	handler := RateLimit(1, func() time.Time { return now })(okHandler())

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	handler.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.RemoteAddr = "10.0.0.1:4001"
	handler.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRateLimitRefillsOverTime(t *testing.T) {
	current := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	handler := RateLimit(60, func() time.Time { return current })(okHandler())

	for i := 0; i < 60; i++ {
		req := httptest.NewRequest(http.MethodGet, "/requests", nil)
		req.RemoteAddr = "10.0.0.2:4000"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	blocked := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.RemoteAddr = "10.0.0.2:4000"
	handler.ServeHTTP(blocked, req)
	if blocked.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exhausting budget, got %d", blocked.Code)
	}

	// One token refills per second at 60/minute.
	current = current.Add(2 * time.Second)
	allowed := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.RemoteAddr = "10.0.0.2:4000"
	handler.ServeHTTP(allowed, req)
	if allowed.Code != http.StatusOK {
		t.Fatalf("expected request allowed after refill, got %d", allowed.Code)
	}
}

func TestRateLimitIsolatesClients(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	handler := RateLimit(1, func() time.Time { return now })(okHandler())

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	handler.ServeHTTP(first, req)

	other := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.RemoteAddr = "10.0.0.9:4000"
	handler.ServeHTTP(other, req)
	if other.Code != http.StatusOK {
		t.Fatalf("expected separate budget per client, got %d", other.Code)
	}
}
