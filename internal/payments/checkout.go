package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/booking-relay/internal/booking"
	"github.com/wolfman30/booking-relay/internal/observability/metrics"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

var stripeTracer = otel.Tracer("booking-relay.internal.payments.stripe")

var (
	// ErrNotConfigured is returned when no Stripe secret key is set.
	ErrNotConfigured = errors.New("payments: stripe not configured")
	// ErrInvalidRequest is returned when a checkout cannot be priced or redirected.
	ErrInvalidRequest = errors.New("payments: invalid checkout request")
	// ErrTooManyAttempts is returned when a phone number exceeds the checkout velocity limit.
	ErrTooManyAttempts = errors.New("payments: too many checkout attempts")
)

// BookingValidator normalizes the booking carried by a checkout.
type BookingValidator interface {
	Normalize(req booking.Request) (booking.Request, error)
	DurationFor(req booking.Request) int
}

// CheckoutConfig configures Stripe Checkout.
type CheckoutConfig struct {
	SecretKey  string
	BaseURL    string
	SuccessURL string
	CancelURL  string
	Currency   string
	// Prices maps session length in minutes to an amount in minor units.
	Prices  map[int]int64
	Timeout time.Duration
}

// CheckoutRequest is a booking plus optional pricing and redirect overrides.
type CheckoutRequest struct {
	booking.Request
	Amount      int64  `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`
	SuccessURL  string `json:"success_url,omitempty"`
	CancelURL   string `json:"cancel_url,omitempty"`
}

// CheckoutSession is the client-facing view of a Stripe Checkout Session.
type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url,omitempty"`
	Status        string `json:"status,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
	AmountTotal   int64  `json:"amount_total,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

// CheckoutService creates Stripe Checkout Sessions that carry the booking
// in metadata so the webhook can schedule it once paid.
type CheckoutService struct {
	sessions *session.Client
	cfg      CheckoutConfig
	bookings BookingValidator
	velocity *CheckoutVelocity
	logger   *logging.Logger
	metrics  *metrics.RelayMetrics
}

func NewCheckoutService(cfg CheckoutConfig, bookings BookingValidator, velocity *CheckoutVelocity, logger *logging.Logger, m *metrics.RelayMetrics) *CheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "aed"
	}
	s := &CheckoutService{
		cfg:      cfg,
		bookings: bookings,
		velocity: velocity,
		logger:   logger.With("component", "checkout"),
		metrics:  m,
	}
	if key := strings.TrimSpace(cfg.SecretKey); key != "" {
		s.sessions = &session.Client{B: newStripeBackend(cfg.BaseURL, cfg.Timeout, logger), Key: key}
	}
	return s
}

// Configured reports whether a secret key is set.
func (s *CheckoutService) Configured() bool {
	return s != nil && s.sessions != nil
}

// Create opens a Checkout Session in payment mode with a single line item.
func (s *CheckoutService) Create(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	bookingReq, err := s.bookings.Normalize(req.Request)
	if err != nil {
		return nil, err
	}
	duration := s.bookings.DurationFor(bookingReq)

	amount := req.Amount
	if amount <= 0 {
		amount = s.cfg.Prices[duration]
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: no price for a %d minute session", ErrInvalidRequest, duration)
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.cfg.Currency
	}
	successURL := firstNonEmpty(req.SuccessURL, s.cfg.SuccessURL)
	cancelURL := firstNonEmpty(req.CancelURL, s.cfg.CancelURL)
	if successURL == "" {
		return nil, fmt.Errorf("%w: success_url is required", ErrInvalidRequest)
	}

	velocity, err := s.velocity.Check(ctx, bookingReq.Client.Phone)
	if err == nil && !velocity.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrTooManyAttempts, velocity.Message)
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Booking"
		if duration > 0 {
			description = fmt.Sprintf("%d min session", duration)
		}
	}

	ctx, span := stripeTracer.Start(ctx, "stripe.create_checkout_session", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("checkout.amount", amount),
		attribute.String("checkout.currency", currency),
		attribute.Int("checkout.duration", duration),
	)

	md := bookingMetadata(bookingReq, duration)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(successURL),
		ClientReferenceID: stripe.String(uuid.NewString()),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: md,
		},
	}
	if cancelURL != "" {
		params.CancelURL = stripe.String(cancelURL)
	}
	if email := bookingReq.Client.Email; email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	for k, v := range md {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	start := time.Now()
	cs, err := s.sessions.New(params)
	s.metrics.ObserveUpstream("stripe", "create_checkout_session", stripeStatus(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stripe error")
		s.logger.Error("stripe checkout session create failed", "error", err)
		return nil, fmt.Errorf("payments: create checkout session: %w", err)
	}

	s.logger.Info("checkout session created", "session_id", cs.ID, "amount", amount, "currency", currency, "datetime", bookingReq.Datetime)
	return toCheckoutSession(cs), nil
}

// Get returns the current status of a Checkout Session.
func (s *CheckoutService) Get(ctx context.Context, id string) (*CheckoutSession, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	}

	ctx, span := stripeTracer.Start(ctx, "stripe.get_checkout_session", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	start := time.Now()
	cs, err := s.sessions.Get(id, params)
	s.metrics.ObserveUpstream("stripe", "get_checkout_session", stripeStatus(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stripe error")
		return nil, fmt.Errorf("payments: get checkout session: %w", err)
	}
	return toCheckoutSession(cs), nil
}

func toCheckoutSession(cs *stripe.CheckoutSession) *CheckoutSession {
	return &CheckoutSession{
		ID:            cs.ID,
		URL:           cs.URL,
		Status:        string(cs.Status),
		PaymentStatus: string(cs.PaymentStatus),
		AmountTotal:   cs.AmountTotal,
		Currency:      string(cs.Currency),
	}
}

// stripeStatus extracts an HTTP status for metrics; 0 means no response.
func stripeStatus(err error) int {
	if err == nil {
		return 200
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode > 0 {
		return stripeErr.HTTPStatusCode
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
