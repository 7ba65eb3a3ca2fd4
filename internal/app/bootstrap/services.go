package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-relay/internal/altegio"
	"github.com/wolfman30/booking-relay/internal/availability"
	"github.com/wolfman30/booking-relay/internal/booking"
	appconfig "github.com/wolfman30/booking-relay/internal/config"
	"github.com/wolfman30/booking-relay/internal/notify"
	"github.com/wolfman30/booking-relay/internal/observability/metrics"
	"github.com/wolfman30/booking-relay/internal/payments"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// Services is the wired domain layer shared by the HTTP handlers.
type Services struct {
	Altegio      *altegio.Client
	Availability *availability.Service
	Bookings     *booking.Service
	Checkout     *payments.CheckoutService
	Webhook      *payments.WebhookHandler
	Telegram     *notify.TelegramNotifier
	Notify       *notify.Service
	ServiceMap   map[int]int64
	Location     *time.Location
}

// BuildServices constructs the vendor clients and domain services from cfg.
// Malformed maps in the environment are reported as errors.
func BuildServices(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger, m *metrics.RelayMetrics) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	serviceMap, err := ServiceMap(cfg.AltegioServiceMap)
	if err != nil {
		return nil, err
	}
	prices, err := appconfig.ParseIntMap(cfg.ServicePriceMap)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: SERVICE_PRICE_MAP: %w", err)
	}
	loc := LoadLocation(cfg.AltegioLocation, logger)
	logger.Info("session durations configured",
		"durations", appconfig.SortedKeys(serviceMap),
		"priced_durations", appconfig.SortedKeys(prices),
	)

	client := altegio.NewClient(altegio.Options{
		BaseURL:   cfg.AltegioBaseURL,
		Token:     cfg.AltegioToken,
		UserToken: cfg.AltegioUserToken,
		PartnerID: cfg.AltegioPartnerID,
		Timeout:   cfg.AltegioTimeout,
		Logger:    logger,
		Metrics:   m,
	})

	telegram, _, notifier := BuildNotifier(cfg, logger, m)

	availabilitySvc := availability.NewService(client, availability.Config{
		CompanyID:   cfg.AltegioCompanyID,
		StaffID:     cfg.AltegioStaffID,
		ServiceMap:  serviceMap,
		Concurrency: cfg.AvailabilityConcurrency,
		MaxDays:     cfg.AvailabilityMaxDays,
	}, logger)

	bookings := booking.NewService(client, notifier, booking.Config{
		CompanyID:  cfg.AltegioCompanyID,
		StaffID:    cfg.AltegioStaffID,
		ServiceMap: serviceMap,
		Location:   loc,
	}, logger)

	velocity := payments.NewCheckoutVelocity(redisClient, cfg.CheckoutMaxPerPhone, cfg.CheckoutWindow, logger)
	checkout := payments.NewCheckoutService(payments.CheckoutConfig{
		SecretKey:  cfg.StripeSecretKey,
		BaseURL:    cfg.StripeBaseURL,
		SuccessURL: cfg.StripeSuccessURL,
		CancelURL:  cfg.StripeCancelURL,
		Currency:   cfg.StripeCurrency,
		Prices:     prices,
	}, bookings, velocity, logger, m)

	processed := BuildProcessedStore(redisClient, cfg.ProcessedEventTTL)
	webhook := payments.NewWebhookHandler(cfg.StripeWebhookSecret, processed, bookings, notifier, logger, m)

	return &Services{
		Altegio:      client,
		Availability: availabilitySvc,
		Bookings:     bookings,
		Checkout:     checkout,
		Webhook:      webhook,
		Telegram:     telegram,
		Notify:       notifier,
		ServiceMap:   serviceMap,
		Location:     loc,
	}, nil
}

// ServiceMap parses ALTEGIO_SERVICE_MAP, falling back to the built-in
// duration to service mapping when it is empty.
func ServiceMap(raw string) (map[int]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return altegio.DefaultServiceMap, nil
	}
	m, err := appconfig.ParseIntMap(raw)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: ALTEGIO_SERVICE_MAP: %w", err)
	}
	return m, nil
}

// LoadLocation resolves the salon time zone, defaulting to UTC.
func LoadLocation(name string, logger *logging.Logger) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if logger != nil {
			logger.Warn("unknown time zone; using UTC", "timezone", name, "error", err)
		}
		return time.UTC
	}
	return loc
}
