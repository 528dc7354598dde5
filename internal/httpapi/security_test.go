package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/service"
	"github.com/rfaisal87-commits/pure-gold-erp/internal/store"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	handler := newTestAPI(t).Handler()
	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := rec.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
}

func TestPreflightReturnsNoContent(t *testing.T) {
	handler := newTestAPI(t).Handler()
	rec := doJSON(t, handler, http.MethodOptions, "/api/v1/pos/cart", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Fatalf("expected DELETE in allowed methods, got %q", got)
	}
}

func TestSignInRateLimitReturns429(t *testing.T) {
	handler := newTestAPI(t).Handler()

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin",
			strings.NewReader(`{"email":"admin@puregold.local","password":"wrong-pass"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if i < 5 && rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, rec.Code)
		}
		if i == 5 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", rec.Code)
		}
	}
}

func TestRateLimitIsPerClient(t *testing.T) {
	limiter := newKeyedLimiter(1, 1)
	if !limiter.Allow("10.0.0.1") || limiter.Allow("10.0.0.1") {
		t.Fatalf("expected one attempt for the first client")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("expected a separate bucket for the second client")
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	handler := newTestAPI(t).Handler()
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"email":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", rec.Code)
	}
}

func TestUnknownJSONFieldsRejected(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := signInAsAdmin(t, handler).AccessToken

	req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(`{"name":"Sana","balance":500}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestStatusForMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", store.ErrInvalidInput), http.StatusBadRequest},
		{service.ErrEmptyCart, http.StatusBadRequest},
		{service.ErrNoInvoice, http.StatusBadRequest},
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrConflict, http.StatusConflict},
		{service.ErrCheckoutInProgress, http.StatusConflict},
		{fmt.Errorf("%w: %w", service.ErrSaleNotRecorded, errors.New("db down")), http.StatusBadGateway},
		{service.ErrCustomerNotResolved, http.StatusBadGateway},
		{fmt.Errorf("%w: %w", service.ErrSaleNotRecorded, store.ErrNotFound), http.StatusBadGateway},
		{fmt.Errorf("%w: %w", service.ErrCustomerNotResolved, store.ErrInvalidInput), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadGateway, fmt.Errorf("%w: %w", service.ErrSaleNotRecorded, errors.New("pq: password authentication failed")))
	if strings.Contains(rec.Body.String(), "password") || !strings.Contains(rec.Body.String(), "sale was not recorded: store unavailable") {
		t.Fatalf("unexpected 502 body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	writeError(rec, http.StatusBadGateway, fmt.Errorf("%w: %w", service.ErrSaleNotRecorded, fmt.Errorf("branch fk: %w", store.ErrNotFound)))
	if !strings.Contains(rec.Body.String(), "sale was not recorded: referenced record not found") || strings.Contains(rec.Body.String(), "branch fk") {
		t.Fatalf("expected step and coarse cause, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	writeError(rec, http.StatusInternalServerError, errors.New("dial tcp 10.0.0.5:5432"))
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Fatalf("expected generic 500 body, got %s", rec.Body.String())
	}
}

func TestParsePositiveLimitCaps(t *testing.T) {
	if got := parsePositiveLimit("9999", 50, 200); got != 200 {
		t.Fatalf("expected capped limit 200, got %d", got)
	}
	if got := parsePositiveLimit("", 50, 200); got != 50 {
		t.Fatalf("expected fallback limit 50, got %d", got)
	}
	if got := parsePositiveLimit("invalid", 50, 200); got != 50 {
		t.Fatalf("expected fallback on invalid input, got %d", got)
	}
}

func TestDiscardCartEmptiesSessionCart(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := signInAsAdmin(t, handler).AccessToken
	addToCart(t, handler, token, "prd-ring-22k")

	rec := doJSON(t, handler, http.MethodDelete, "/api/v1/pos/cart", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("discard: status %d", rec.Code)
	}
	if cart := decodeBody[domain.CartView](t, rec); len(cart.Lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
}
