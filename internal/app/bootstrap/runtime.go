package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/booking-relay/internal/config"
	"github.com/wolfman30/booking-relay/internal/events"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

const redisPingTimeout = 3 * time.Second

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available; falling back to in-memory state", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildProcessedStore returns the Redis-backed webhook dedupe ledger, or an
// in-memory one when Redis is unavailable.
func BuildProcessedStore(redisClient *redis.Client, ttl time.Duration) events.ProcessedStore {
	if redisClient == nil {
		return events.NewMemoryProcessedStore(ttl)
	}
	return events.NewRedisProcessedStore(redisClient, ttl)
}
