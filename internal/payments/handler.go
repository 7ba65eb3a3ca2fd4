package payments

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v76"

	"github.com/wolfman30/booking-relay/internal/booking"
	"github.com/wolfman30/booking-relay/internal/http/respond"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// Checkouts is the checkout API used by CheckoutHandler.
type Checkouts interface {
	Create(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	Get(ctx context.Context, id string) (*CheckoutSession, error)
}

// CheckoutHandler exposes checkout creation and status over HTTP.
type CheckoutHandler struct {
	checkouts Checkouts
	logger    *logging.Logger
}

type checkoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func NewCheckoutHandler(checkouts Checkouts, logger *logging.Logger) *CheckoutHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutHandler{checkouts: checkouts, logger: logger}
}

// CreateCheckout handles POST /api/payments/checkout.
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	cs, err := h.checkouts.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, checkoutResponse{ID: cs.ID, URL: cs.URL})
}

// GetSession handles GET /api/payments/sessions/{id}.
func (h *CheckoutHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	cs, err := h.checkouts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, cs)
}

func (h *CheckoutHandler) writeError(w http.ResponseWriter, err error) {
	var stripeErr *stripe.Error
	switch {
	case errors.Is(err, booking.ErrInvalidRequest), errors.Is(err, ErrInvalidRequest):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTooManyAttempts):
		respond.Error(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrNotConfigured):
		respond.Error(w, http.StatusServiceUnavailable, "payments not configured")
	case errors.As(err, &stripeErr):
		status := http.StatusBadGateway
		if stripeErr.HTTPStatusCode == http.StatusBadRequest || stripeErr.HTTPStatusCode == http.StatusNotFound {
			status = stripeErr.HTTPStatusCode
		}
		h.logger.Warn("stripe request failed", "status", stripeErr.HTTPStatusCode, "code", stripeErr.Code, "error", stripeErr.Msg)
		respond.Error(w, status, stripeErr.Msg)
	default:
		h.logger.Error("checkout request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}
