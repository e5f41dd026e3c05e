package handler

// RESPONSE HELPERS:
// Every body this service produces is short plain text ("Invalid size",
// "Hello, World!"), so there is one writer for text and one place that maps
// domain errors to status codes.

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/avatar-redirect/internal/apperror"
)

// writeText sends body verbatim with the given status. Unlike http.Error it
// does not append a newline.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		slog.Debug("failed to write response body", slog.String("error", err.Error()))
	}
}

// writeError maps a domain error to a status code and sends its message.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation     → 400, message from the error
//	apperror.ErrUpstreamFetch  → 500, "Failed to fetch user from Discord"
//	apperror.ErrUpstreamDecode → 500, "Failed to deserialize user from Discord"
//	anything else              → 500, generic message
//
// Validation failures are the caller's problem and only logged at debug.
// Upstream failures are logged at warn with the request id so they can be
// matched against the client's X-Request-Id.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	requestID := chimiddleware.GetReqID(r.Context())

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrValidation):
			logger.Debug("rejected avatar request",
				slog.String("request_id", requestID),
				slog.String("field", appErr.Field),
				slog.String("reason", appErr.Message),
			)
			writeText(w, http.StatusBadRequest, appErr.Message)
			return

		case errors.Is(err, apperror.ErrUpstreamFetch), errors.Is(err, apperror.ErrUpstreamDecode):
			logger.Warn("upstream lookup failed",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
			)
			writeText(w, http.StatusInternalServerError, appErr.Message)
			return
		}
	}

	// Never expose raw internal errors to clients.
	logger.Error("unhandled error",
		slog.String("request_id", requestID),
		slog.String("error", err.Error()),
	)
	writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
