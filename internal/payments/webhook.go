package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/booking-relay/internal/booking"
	"github.com/wolfman30/booking-relay/internal/events"
	"github.com/wolfman30/booking-relay/internal/http/respond"
	"github.com/wolfman30/booking-relay/internal/observability/metrics"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

const (
	maxWebhookBody   = 64 << 10
	webhookTolerance = 5 * time.Minute
	providerStripe   = "stripe"
)

const (
	eventCheckoutCompleted      = "checkout.session.completed"
	eventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	eventCheckoutAsyncFailed    = "checkout.session.async_payment_failed"
	eventCheckoutExpired        = "checkout.session.expired"
)

// Booker schedules the appointment behind a paid session.
type Booker interface {
	Create(ctx context.Context, req booking.Request) (*booking.Result, error)
}

// PaymentNotifier receives payment outcomes.
type PaymentNotifier interface {
	PaymentSucceeded(ctx context.Context, evt events.PaymentSucceededV1) error
	PaymentFailed(ctx context.Context, evt events.PaymentFailedV1) error
	BookingFailed(ctx context.Context, evt events.BookingFailedV1) error
}

// WebhookHandler handles Stripe Checkout webhook events.
type WebhookHandler struct {
	secret    string
	processed events.ProcessedStore
	booker    Booker
	notifier  PaymentNotifier
	logger    *logging.Logger
	metrics   *metrics.RelayMetrics
}

func NewWebhookHandler(secret string, processed events.ProcessedStore, booker Booker, notifier PaymentNotifier, logger *logging.Logger, m *metrics.RelayMetrics) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if processed == nil {
		processed = events.NewMemoryProcessedStore(72 * time.Hour)
	}
	return &WebhookHandler{
		secret:    strings.TrimSpace(secret),
		processed: processed,
		booker:    booker,
		notifier:  notifier,
		logger:    logger.With("component", "stripe_webhook"),
		metrics:   m,
	}
}

// Handle verifies, dedupes and routes a Stripe event.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		respond.Error(w, http.StatusServiceUnavailable, "stripe webhooks not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.secret, webhook.ConstructEventOptions{
		Tolerance:                webhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		h.logger.Warn("stripe webhook signature rejected", "error", err)
		h.metrics.ObserveWebhook("unknown", "invalid_signature")
		respond.Error(w, http.StatusBadRequest, "invalid signature")
		return
	}

	ctx, span := stripeTracer.Start(r.Context(), "stripe.webhook", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	eventType := string(event.Type)
	span.SetAttributes(
		attribute.String("stripe.event_id", event.ID),
		attribute.String("stripe.event_type", eventType),
	)
	logger := h.logger.With("event_id", event.ID, "event_type", eventType)

	if processed, err := h.processed.AlreadyProcessed(ctx, providerStripe, event.ID); err != nil {
		logger.Error("processed lookup failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "server error")
		return
	} else if processed {
		h.metrics.ObserveWebhook(eventType, "duplicate")
		respond.JSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
		return
	}

	switch eventType {
	case eventCheckoutCompleted, eventCheckoutAsyncSucceeded, eventCheckoutExpired, eventCheckoutAsyncFailed:
	default:
		h.metrics.ObserveWebhook(eventType, "ignored")
		respond.JSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	var cs stripe.CheckoutSession
	if event.Data == nil || json.Unmarshal(event.Data.Raw, &cs) != nil || cs.ID == "" {
		logger.Error("stripe webhook has no checkout session")
		h.metrics.ObserveWebhook(eventType, "invalid_payload")
		respond.Error(w, http.StatusBadRequest, "invalid checkout session")
		return
	}
	logger = logger.With("session_id", cs.ID)

	var outcome string
	switch eventType {
	case eventCheckoutCompleted, eventCheckoutAsyncSucceeded:
		if !sessionPaid(&cs) {
			// Async methods complete unpaid and follow up with async_payment_*.
			outcome = "pending"
			break
		}
		var ok bool
		outcome, ok = h.handlePaid(ctx, event.ID, &cs, logger)
		if !ok {
			h.metrics.ObserveWebhook(eventType, outcome)
			respond.Error(w, http.StatusInternalServerError, "booking failed")
			return
		}
	case eventCheckoutExpired, eventCheckoutAsyncFailed:
		outcome = "payment_failed"
		h.handleFailed(ctx, event.ID, eventType, &cs, logger)
	}

	if _, err := h.processed.MarkProcessed(ctx, providerStripe, event.ID); err != nil {
		logger.Error("failed to mark stripe event processed", "error", err)
	}
	h.metrics.ObserveWebhook(eventType, outcome)
	logger.Info("stripe webhook handled", "outcome", outcome)
	respond.JSON(w, http.StatusOK, map[string]any{"received": true})
}

// handlePaid books the appointment stored in metadata. ok is false when
// scheduling failed and Stripe should redeliver.
func (h *WebhookHandler) handlePaid(ctx context.Context, eventID string, cs *stripe.CheckoutSession, logger *logging.Logger) (outcome string, ok bool) {
	req, hasBooking := bookingFromMetadata(cs.Metadata)
	if cs.CustomerDetails != nil {
		if req.Client.Email == "" {
			req.Client.Email = cs.CustomerDetails.Email
		}
		if req.Client.Phone == "" {
			req.Client.Phone = cs.CustomerDetails.Phone
		}
		if req.Client.Name == "" {
			req.Client.Name = cs.CustomerDetails.Name
		}
	}
	client := events.Client{Name: req.Client.Name, Phone: req.Client.Phone, Email: req.Client.Email}
	paid := events.PaymentSucceededV1{
		EventID:     eventID,
		SessionID:   cs.ID,
		AmountTotal: cs.AmountTotal,
		Currency:    string(cs.Currency),
		Client:      client,
		Datetime:    req.Datetime,
		Duration:    req.Duration,
		OccurredAt:  time.Now().UTC(),
	}

	outcome = "paid"
	if hasBooking && h.booker != nil {
		res, err := h.booker.Create(ctx, req)
		if err != nil {
			logger.Error("paid session could not be booked", "error", err)
			if h.notifier != nil {
				if nerr := h.notifier.BookingFailed(ctx, events.BookingFailedV1{
					EventID:   eventID,
					SessionID: cs.ID,
					Error:     err.Error(),
					Client:    client,
					Datetime:  req.Datetime,
					FailedAt:  time.Now().UTC(),
				}); nerr != nil {
					logger.Warn("booking failure alert not sent", "error", nerr)
				}
			}
			return "booking_failed", false
		}
		paid.RecordID = res.RecordID
		paid.Datetime = res.Datetime
		outcome = "booked"
	} else if !hasBooking {
		logger.Warn("paid session has no booking metadata")
	}

	if h.notifier != nil {
		if err := h.notifier.PaymentSucceeded(ctx, paid); err != nil {
			logger.Warn("payment notification failed", "error", err)
		}
	}
	return outcome, true
}

func (h *WebhookHandler) handleFailed(ctx context.Context, eventID, eventType string, cs *stripe.CheckoutSession, logger *logging.Logger) {
	if h.notifier == nil {
		return
	}
	name, phone, email := metadataClient(cs.Metadata)
	reason := "checkout expired"
	if eventType == eventCheckoutAsyncFailed {
		reason = "payment failed"
	}
	evt := events.PaymentFailedV1{
		EventID:    eventID,
		SessionID:  cs.ID,
		Reason:     reason,
		Client:     events.Client{Name: name, Phone: phone, Email: email},
		Datetime:   cs.Metadata[mdDatetime],
		OccurredAt: time.Now().UTC(),
	}
	if err := h.notifier.PaymentFailed(ctx, evt); err != nil {
		logger.Warn("payment failure notification failed", "error", err)
	}
}

func sessionPaid(cs *stripe.CheckoutSession) bool {
	switch string(cs.PaymentStatus) {
	case "paid", "no_payment_required":
		return true
	}
	return false
}
