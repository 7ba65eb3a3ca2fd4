package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultCORSOrigins are the booking form origins allowed when
// CORS_ALLOWED_ORIGINS is unset.
var DefaultCORSOrigins = []string{
	"https://wakeme.ae",
	"https://www.wakeme.ae",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	ShutdownTimeout    time.Duration

	// Altegio scheduling API
	AltegioBaseURL    string
	AltegioToken      string
	AltegioUserToken  string
	AltegioPartnerID  string
	AltegioCompanyID  string
	AltegioStaffID    string
	AltegioServiceMap string
	AltegioTimeout    time.Duration
	AltegioLocation   string

	AvailabilityConcurrency int
	AvailabilityMaxDays     int
	DemoSlots               bool

	// Telegram bot relay
	TelegramBotToken string
	TelegramChatID   string
	TelegramBaseURL  string

	// Stripe Checkout
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeBaseURL       string
	StripeSuccessURL    string
	StripeCancelURL     string
	StripeCurrency      string
	ServicePriceMap     string
	CheckoutMaxPerPhone int
	CheckoutWindow      time.Duration

	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	ProcessedEventTTL time.Duration

	AdminJWTSecret string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "3000"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", DefaultCORSOrigins),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		AltegioBaseURL:    getEnv("ALTEGIO_BASE_URL", "https://api.alteg.io/api/v1"),
		AltegioToken:      getEnv("ALTEGIO_TOKEN", ""),
		AltegioUserToken:  getEnv("ALTEGIO_USER_TOKEN", ""),
		AltegioPartnerID:  getEnv("ALTEGIO_PARTNER_ID", ""),
		AltegioCompanyID:  getEnv("ALTEGIO_COMPANY_ID", ""),
		AltegioStaffID:    getEnv("ALTEGIO_STAFF_ID", ""),
		AltegioServiceMap: getEnv("ALTEGIO_SERVICE_MAP", ""),
		AltegioTimeout:    getEnvAsDuration("ALTEGIO_TIMEOUT", 15*time.Second),
		AltegioLocation:   getEnv("ALTEGIO_TIMEZONE", "Asia/Dubai"),

		AvailabilityConcurrency: getEnvAsInt("AVAILABILITY_CONCURRENCY", 4),
		AvailabilityMaxDays:     getEnvAsInt("AVAILABILITY_MAX_DAYS", 31),
		DemoSlots:               getEnvAsBool("DEMO_SLOTS", false),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		TelegramBaseURL:  getEnv("TELEGRAM_BASE_URL", "https://api.telegram.org"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeBaseURL:       getEnv("STRIPE_BASE_URL", ""),
		StripeSuccessURL:    getEnv("STRIPE_SUCCESS_URL", ""),
		StripeCancelURL:     getEnv("STRIPE_CANCEL_URL", ""),
		StripeCurrency:      strings.ToLower(getEnv("STRIPE_CURRENCY", "aed")),
		ServicePriceMap:     getEnv("SERVICE_PRICE_MAP", ""),
		CheckoutMaxPerPhone: getEnvAsInt("CHECKOUT_MAX_PER_PHONE", 5),
		CheckoutWindow:      getEnvAsDuration("CHECKOUT_WINDOW", 24*time.Hour),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		ProcessedEventTTL: getEnvAsDuration("PROCESSED_EVENT_TTL", 72*time.Hour),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "WakeMe Booking"),
	}
}

// Integrations reports which vendors have credentials configured.
func (c *Config) Integrations() map[string]bool {
	return map[string]bool{
		"altegio":  strings.TrimSpace(c.AltegioToken) != "",
		"telegram": strings.TrimSpace(c.TelegramBotToken) != "" && strings.TrimSpace(c.TelegramChatID) != "",
		"stripe":   strings.TrimSpace(c.StripeSecretKey) != "",
		"webhooks": strings.TrimSpace(c.StripeWebhookSecret) != "",
		"sendgrid": strings.TrimSpace(c.SendGridAPIKey) != "",
		"redis":    strings.TrimSpace(c.RedisAddr) != "",
	}
}

// ParseIntMap parses "30:12199769,60:12200654" into a map keyed by the
// left-hand integer. Blank input yields an empty map.
func ParseIntMap(raw string) (map[int]int64, error) {
	out := make(map[int]int64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("config: malformed pair %q", pair)
		}
		key, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("config: bad key in %q: %w", pair, err)
		}
		val, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: bad value in %q: %w", pair, err)
		}
		out[key] = val
	}
	return out, nil
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[int]int64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
