package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, limit int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: limit, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestLimiter_Allow(t *testing.T) {
	rl, now := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth request allowed, want rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other client rejected, want allowed")
	}
	if got := rl.Hits(); got != 1 {
		t.Errorf("Hits() = %d, want 1", got)
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("10.0.0.1") {
		t.Error("request after window rejected, want allowed")
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	rl, now := newTestLimiter(t, 1)

	if got := rl.RetryAfter("unknown"); got != 0 {
		t.Errorf("RetryAfter(unknown) = %d, want 0", got)
	}
	rl.Allow("10.0.0.1")
	*now = now.Add(20500 * time.Millisecond)
	if got := rl.RetryAfter("10.0.0.1"); got != 40 {
		t.Errorf("RetryAfter() = %d, want 40", got)
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl, now := newTestLimiter(t, 10)

	rl.Allow("old")
	*now = now.Add(3 * time.Minute)
	rl.Allow("fresh")

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Errorf("cleanupStaleEntries() = %d, want 1", removed)
	}
	if got := rl.ActiveClients(); got != 1 {
		t.Errorf("ActiveClients() = %d, want 1", got)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := rl.Middleware(func(*http.Request) string { return "10.0.0.1" }, nil, http.MethodPost)(next)

	tests := []struct {
		name       string
		method     string
		wantStatus int
	}{
		{"first post", http.MethodPost, http.StatusNoContent},
		{"second post", http.MethodPost, http.StatusTooManyRequests},
		{"get is not limited", http.MethodGet, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/transactions", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
				t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestLimiter_StopTwice(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
	if rl.limit != 60 {
		t.Errorf("limit = %d, want default 60", rl.limit)
	}
}
