// Package http provides HTTP server and handler implementations.
//
// This file holds a small fluent builder for JSON responses and the mapping
// from service errors to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/middleware/trace"
	"carteira/internal/report"
	"carteira/internal/services"
)

// ResponseBuilder accumulates a status, headers and a JSON body.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewResponse creates a builder with a 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(key, value string) *ResponseBuilder {
	b.headers[key] = value
	return b
}

// JSON sets the value to encode as the body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A nil body sends no content.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrorResponse builds an error response with the request ID attached.
func ErrorResponse(ctx context.Context, code int, msg string) *ResponseBuilder {
	return NewResponse().Status(code).JSON(errorBody{Error: msg, RequestID: trace.RequestID(ctx)})
}

// MethodNotAllowedError sets the Allow header as well.
func MethodNotAllowedError(ctx context.Context, allowed string) *ResponseBuilder {
	return ErrorResponse(ctx, http.StatusMethodNotAllowed, "method not allowed").Header("Allow", allowed)
}

// statusFor maps service and parsing errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case services.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, report.ErrInvalidYear),
		errors.Is(err, report.ErrInvalidMonth),
		errors.Is(err, report.ErrInvalidSelector):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError logs server-side failures and writes the error response.
// Client errors carry their message; server errors do not.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	code := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
				WithRequestID(trace.RequestID(ctx)))
		msg = http.StatusText(code)
	}
	ErrorResponse(ctx, code, msg).Write(w)
}
