package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeLimiterStore struct {
	counts map[string]int64
	err    error
}

func newFakeLimiterStore() *fakeLimiterStore {
	return &fakeLimiterStore{counts: make(map[string]int64)}
}

func (f *fakeLimiterStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func limitedRequest(ip, userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mpesa/initiate", nil)
	req.RemoteAddr = ip + ":51234"
	ctx := req.Context()
	if userID != "" {
		ctx = WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

func TestRateLimitBlocksIPOverLimit(t *testing.T) {
	store := newFakeLimiterStore()
	policy := NewRateLimitPolicy("initiate", time.Minute, 2, 0)
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, limitedRequest("10.0.0.9", ""))
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i+1, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, limitedRequest("10.0.0.9", ""))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
}

func TestRateLimitScopesByUser(t *testing.T) {
	store := newFakeLimiterStore()
	policy := NewRateLimitPolicy("initiate", time.Minute, 0, 1)
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, limitedRequest("10.0.0.1", "cashier-a"))
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", first.Code)
	}

	blocked := httptest.NewRecorder()
	handler.ServeHTTP(blocked, limitedRequest("10.0.0.1", "cashier-a"))
	if blocked.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for repeat user got %d", blocked.Code)
	}

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, limitedRequest("10.0.0.1", "cashier-b"))
	if other.Code != http.StatusOK {
		t.Fatalf("expected other user unaffected, got %d", other.Code)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	store := newFakeLimiterStore()
	policy := NewRateLimitPolicy("initiate", 0, 0, 0)
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, limitedRequest("10.0.0.2", ""))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected pass-through got %d", resp.Code)
		}
	}
	if len(store.counts) != 0 {
		t.Fatalf("disabled policy must not touch the store")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.3:40000"
	req.Header.Set("X-Forwarded-For", "196.201.214.55, 10.0.0.3")
	if got := ClientIP(req); got != "196.201.214.55" {
		t.Fatalf("expected forwarded address, got %s", got)
	}

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "196.201.214.56")
	if got := ClientIP(req); got != "196.201.214.56" {
		t.Fatalf("expected real-ip address, got %s", got)
	}

	req.Header.Del("X-Real-IP")
	if got := ClientIP(req); got != "10.0.0.3" {
		t.Fatalf("expected socket address, got %s", got)
	}
}
