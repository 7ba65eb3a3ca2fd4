package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/booking-relay/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/booking-relay/internal/http/middleware"
	"github.com/wolfman30/booking-relay/internal/http/respond"
	"github.com/wolfman30/booking-relay/internal/observability/metrics"
	"github.com/wolfman30/booking-relay/internal/payments"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Metrics            *metrics.RelayMetrics
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	AdminAuthSecret    string

	Health   *handlers.HealthHandler
	Relay    *handlers.RelayHandler
	Bookings *handlers.BookingHandler
	Telegram *handlers.TelegramHandler
	Logs     *handlers.LogsHandler

	// Payments routes are mounted only when set.
	Checkout      *payments.CheckoutHandler
	StripeWebhook *payments.WebhookHandler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	r.Use(httpmiddleware.Metrics(cfg.Metrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Public endpoints (health checks, metrics, vendor webhooks)
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/", cfg.Health.Root)
			public.Get("/health", cfg.Health.Health)
			public.Get("/api/health", cfg.Health.Health)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.StripeWebhook != nil {
			public.Post("/api/payments/webhook", cfg.StripeWebhook.Handle)
		}
	})

	// Booking form endpoints
	r.Group(func(form chi.Router) {
		form.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

		if cfg.Relay != nil {
			form.Post("/api/availability", cfg.Relay.Availability)
			form.Get("/api/slots", cfg.Relay.GetSlots)
			form.Post("/api/slots", cfg.Relay.PostSlots)
			form.Get("/api/nearest-slots", cfg.Relay.NearestSlots)
			form.Get("/api/services", cfg.Relay.Services)
		}
		if cfg.Bookings != nil {
			form.Post("/api/bookings", cfg.Bookings.Create)
		}
		if cfg.Checkout != nil {
			form.Post("/api/payments/checkout", cfg.Checkout.CreateCheckout)
			form.Get("/api/payments/sessions/{id}", cfg.Checkout.GetSession)
		}
		if cfg.Telegram != nil {
			form.Post("/api/send-telegram", cfg.Telegram.Send)
		}
		if cfg.Logs != nil {
			form.Post("/api/logs", cfg.Logs.Ingest)
			form.Get("/api/logs", cfg.Logs.Status)
		}
	})

	// Admin endpoints
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		if cfg.Health != nil {
			admin.Get("/integrations", cfg.Health.Integrations)
		}
		if cfg.Telegram != nil {
			admin.Post("/telegram/test", cfg.Telegram.SendTest)
		}
	})

	return r
}
