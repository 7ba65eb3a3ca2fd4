package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/wolfman30/booking-relay/internal/altegio"
	"github.com/wolfman30/booking-relay/internal/availability"
	"github.com/wolfman30/booking-relay/internal/booking"
	"github.com/wolfman30/booking-relay/internal/http/respond"
	"github.com/wolfman30/booking-relay/internal/notify"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// writeUpstreamError maps domain and vendor errors onto HTTP statuses.
// Vendor responses keep their status and body so the form sees what the
// vendor said.
func writeUpstreamError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var apiErr *altegio.APIError
	var tgErr *notify.TelegramError
	switch {
	case errors.Is(err, booking.ErrInvalidRequest), errors.Is(err, availability.ErrInvalidRange):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, altegio.ErrNotConfigured):
		respond.Error(w, http.StatusServiceUnavailable, "altegio not configured")
	case errors.Is(err, notify.ErrNotConfigured):
		respond.Error(w, http.StatusServiceUnavailable, "telegram not configured")
	case errors.As(err, &apiErr):
		logger.Warn("altegio request failed", "status", apiErr.StatusCode, "error", err)
		respond.Error(w, apiErr.StatusCode, apiErr.Payload())
	case errors.As(err, &tgErr):
		logger.Warn("telegram request failed", "status", tgErr.StatusCode, "error", err)
		status := tgErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		respond.Error(w, status, tgErr.Body)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("upstream timed out", "error", err)
		respond.Error(w, http.StatusGatewayTimeout, "upstream timeout")
	case errors.Is(err, context.Canceled):
		respond.Error(w, http.StatusServiceUnavailable, "request canceled")
	default:
		logger.Error("upstream request failed", "error", err)
		respond.Error(w, http.StatusBadGateway, err.Error())
	}
}
