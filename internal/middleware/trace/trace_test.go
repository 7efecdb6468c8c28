package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"carteira/internal/log"
)

func newBufferLogger(buf *bytes.Buffer) *log.Logger {
	return log.New(log.Config{
		Component: "test",
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(newBufferLogger(&buf), func(*http.Request) string { return "198.51.100.1" })

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		log.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/years", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("request ID %q is not a UUID: %v", seen, err)
	}
	if got := rec.Header().Get(HeaderRequestID); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}

	out := buf.String()
	for _, want := range []string{"HTTP request started", "HTTP request completed", "inside handler", "status_code=418", "client_ip=198.51.100.1", "request_id=" + seen} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}

	if got := m.Metrics().TotalRequests; got != 1 {
		t.Errorf("TotalRequests = %d, want 1", got)
	}
}

func TestMiddleware_IncomingRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"valid id is kept", "abc-123", true},
		{"id with spaces is replaced", "abc 123", false},
		{"overlong id is replaced", strings.Repeat("a", 65), false},
	}

	m := NewMiddleware(newBufferLogger(&bytes.Buffer{}), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
			}))
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(HeaderRequestID, tt.incoming)
			h.ServeHTTP(httptest.NewRecorder(), r)

			if (seen == tt.incoming) != tt.keep {
				t.Errorf("request ID = %q, keep incoming = %v", seen, tt.keep)
			}
		})
	}
}

func TestRequestID_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := RequestID(r.Context()); got != "" {
		t.Errorf("RequestID() = %q, want empty", got)
	}
}
