package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/booking-relay/pkg/logging"
)

// CheckoutVelocity caps how many checkout sessions one phone number can
// open per window.
type CheckoutVelocity struct {
	redis  *redis.Client
	max    int
	window time.Duration
	logger *logging.Logger
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

// NewCheckoutVelocity returns nil when Redis is unavailable or the limit is
// disabled; a nil checker allows everything.
func NewCheckoutVelocity(redisClient *redis.Client, max int, window time.Duration, logger *logging.Logger) *CheckoutVelocity {
	if redisClient == nil || max <= 0 {
		return nil
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutVelocity{
		redis:  redisClient,
		max:    max,
		window: window,
		logger: logger,
	}
}

// Check counts one checkout attempt for phone.
func (v *CheckoutVelocity) Check(ctx context.Context, phone string) (*VelocityResult, error) {
	if v == nil {
		return &VelocityResult{Allowed: true}, nil
	}
	ctx, span := stripeTracer.Start(ctx, "velocity.check_checkout")
	defer span.End()

	key := "velocity:checkout:" + normalizePhone(phone)
	count, expiry, err := v.incrementAndGet(ctx, key)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "phone", logging.MaskPhone(phone))
		// Fail open - allow the checkout if Redis is down
		return &VelocityResult{Allowed: true, Message: "velocity check unavailable"}, nil
	}

	result := &VelocityResult{
		Allowed:      count <= v.max,
		CurrentCount: count,
		MaxAllowed:   v.max,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d checkout attempts in %s", v.max, v.window)
		v.logger.Warn("checkout velocity exceeded", "count", count, "max", v.max, "phone", logging.MaskPhone(phone))
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// incrementAndGet increments a counter and returns the new value with expiry time.
func (v *CheckoutVelocity) incrementAndGet(ctx context.Context, key string) (int, time.Time, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 1 {
		v.redis.Expire(ctx, key, v.window)
	}

	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = v.window
	}
	return int(count), time.Now().Add(ttl), nil
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
