package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"apthere/internal/backfill"
	"apthere/internal/core"
	applog "apthere/internal/log"
	"apthere/internal/middleware/trace"
	"apthere/internal/services"
	"apthere/internal/upstream"
)

const readyTimeout = 2 * time.Second

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg, RequestID: trace.GetRequestID(r.Context())})
}

// statusFor maps a use-case error to a response status.
func statusFor(err error) int {
	var berr *backfill.BucketError
	switch {
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, core.ErrInvalidRegionCode),
		errors.Is(err, core.ErrInvalidYearMonth),
		errors.Is(err, core.ErrUnknownSourceKind):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRegionNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &berr), upstream.IsAPIError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes its mapped status. Server errors hide the cause.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= 500 {
		fields := applog.NewFields().
			WithRequestID(trace.GetRequestID(r.Context())).
			WithHTTPRequest(r.Method, r.URL.Path, "", "")
		fields[applog.FieldStatusCode] = status
		applog.NewStructuredLogger(s.logger).LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, fields)
		msg = http.StatusText(status)
	} else {
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Request rejected",
			applog.FieldError, err,
			applog.FieldOperation, op,
			applog.FieldStatusCode, status)
	}
	writeError(w, r, status, msg)
}
