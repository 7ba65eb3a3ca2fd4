package handlers

import (
	"context"
	"net/http"

	"github.com/wolfman30/booking-relay/internal/booking"
	"github.com/wolfman30/booking-relay/internal/http/respond"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// BookingCreator creates Altegio appointments.
type BookingCreator interface {
	Create(ctx context.Context, req booking.Request) (*booking.Result, error)
}

// BookingHandler handles POST /api/bookings.
type BookingHandler struct {
	bookings BookingCreator
	logger   *logging.Logger
}

func NewBookingHandler(bookings BookingCreator, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{bookings: bookings, logger: logger.With("component", "bookings")}
}

// Create books an unpaid appointment straight from the form.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Paid = false

	result, err := h.bookings.Create(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, result)
}
