package payments

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/wolfman30/booking-relay/pkg/logging"
)

// newStripeBackend builds an API backend, optionally pointed at a fake
// Stripe server, that logs through the service logger.
func newStripeBackend(baseURL string, timeout time.Duration, logger *logging.Logger) stripe.Backend {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:    &http.Client{Timeout: timeout},
		LeveledLogger: stripeLogger{logger: logger},
	}
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	return stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
}

// stripeLogger adapts logging.Logger to stripe.LeveledLoggerInterface.
type stripeLogger struct {
	logger *logging.Logger
}

func (l stripeLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l stripeLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l stripeLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l stripeLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "stripe")
}
