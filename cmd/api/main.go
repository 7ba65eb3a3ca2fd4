package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/booking-relay/internal/api/router"
	"github.com/wolfman30/booking-relay/internal/app/bootstrap"
	appconfig "github.com/wolfman30/booking-relay/internal/config"
	"github.com/wolfman30/booking-relay/internal/http/handlers"
	"github.com/wolfman30/booking-relay/internal/observability/metrics"
	"github.com/wolfman30/booking-relay/internal/payments"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking relay",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	logIntegrations(logger, cfg)

	metricsHandler, relayMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(context.Background(), cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	services, err := bootstrap.BuildServices(cfg, redisClient, logger, relayMetrics)
	if err != nil {
		logger.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	r := router.New(buildRouterConfig(cfg, services, logger, relayMetrics, metricsHandler))

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Availability fans out to one upstream call per day.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func buildRouterConfig(cfg *appconfig.Config, services *bootstrap.Services, logger *logging.Logger, m *metrics.RelayMetrics, metricsHandler http.Handler) *router.Config {
	return &router.Config{
		Logger:             logger,
		Metrics:            m,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		Health:             handlers.NewHealthHandler(cfg.Port, cfg.Integrations()),
		Relay: handlers.NewRelayHandler(services.Altegio, services.Availability, handlers.RelayConfig{
			CompanyID:  cfg.AltegioCompanyID,
			StaffID:    cfg.AltegioStaffID,
			ServiceMap: services.ServiceMap,
			DemoSlots:  cfg.DemoSlots,
			Location:   services.Location,
		}, logger),
		Bookings:      handlers.NewBookingHandler(services.Bookings, logger),
		Telegram:      handlers.NewTelegramHandler(services.Telegram, logger),
		Logs:          handlers.NewLogsHandler(logger),
		Checkout:      payments.NewCheckoutHandler(services.Checkout, logger),
		StripeWebhook: services.Webhook,
	}
}

// setupMetrics registers the relay series on a dedicated registry along
// with the Go runtime and process collectors.
func setupMetrics() (http.Handler, *metrics.RelayMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewRelayMetrics(reg)
}

func logIntegrations(logger *logging.Logger, cfg *appconfig.Config) {
	for name, configured := range cfg.Integrations() {
		if configured {
			logger.Info("integration configured", "integration", name)
		} else {
			logger.Warn("integration NOT configured", "integration", name)
		}
	}
}
