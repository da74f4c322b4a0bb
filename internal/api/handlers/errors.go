package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/rs/zerolog"
)

// MessageEntryNotFound is returned for unknown, foreign or manual entries.
const MessageEntryNotFound = "Auto-detected transaction not found."

// writeServiceError translates pipeline errors into HTTP responses. Internal
// error text is logged, never returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, op string, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		middleware.WriteError(w, http.StatusBadRequest, capitalize(ve.Reason))
	case errors.Is(err, domain.ErrEntryNotFound):
		middleware.WriteError(w, http.StatusNotFound, MessageEntryNotFound)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Warn().Err(err).
			Str("request_id", middleware.RequestIDFrom(r.Context())).
			Msg(op + " interrupted")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Request was interrupted, please retry")
	default:
		log.Error().Err(err).
			Str("request_id", middleware.RequestIDFrom(r.Context())).
			Msg(op + " failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
