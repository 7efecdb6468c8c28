// Package recovery turns handler panics into 500 responses and reports them
// to Sentry when a client is configured.
package recovery

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"

	"carteira/internal/log"
	"carteira/internal/middleware/trace"
)

const flushTimeout = 2 * time.Second

// Middleware recovers panics from next. The hub is cloned per request so
// scope tags never leak between requests.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.CurrentHub().Clone()
		ctx := sentry.SetHubOnContext(r.Context(), hub)
		r = r.WithContext(ctx)

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestID := trace.RequestID(ctx)
			log.FromContext(ctx).ErrorContext(ctx, "Panic in HTTP handler",
				log.FieldComponent, log.ComponentHTTP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldError, fmt.Sprint(rec),
				"stack", string(debug.Stack()))

			if hub.Client() != nil {
				hub.ConfigureScope(func(scope *sentry.Scope) {
					scope.SetRequest(r)
					scope.SetTag(log.FieldRequestID, requestID)
				})
				hub.RecoverWithContext(ctx, rec)
				hub.Flush(flushTimeout)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		}()

		next.ServeHTTP(w, r)
	})
}
