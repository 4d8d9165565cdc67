package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medport-health/medport-api/pkg/logging"
)

// VelocityChecker caps payment intent attempts per user to slow down card
// testing. Redis outages fail open: a broken cache must not block checkout.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	config VelocityConfig
}

// VelocityConfig contains velocity limits.
type VelocityConfig struct {
	MaxAttemptsPerUser int
	AttemptWindow      time.Duration
	Enabled            bool
}

// DefaultVelocityConfig returns the default limits.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxAttemptsPerUser: 5,
		AttemptWindow:      time.Hour,
		Enabled:            true,
	}
}

// VelocityResult is the outcome of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

// NewVelocityChecker creates a velocity checker.
func NewVelocityChecker(redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	if logger == nil {
		logger = logging.Default()
	}
	return &VelocityChecker{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

// CheckPaymentAttempt checks whether the user may request another payment
// intent.
func (v *VelocityChecker) CheckPaymentAttempt(ctx context.Context, userID string) (*VelocityResult, error) {
	ctx, span := stripeTracer.Start(ctx, "velocity.check_payment_attempt")
	defer span.End()
	span.SetAttributes(attribute.String("medport.user_id", userID))

	if !v.config.Enabled || v.redis == nil {
		return &VelocityResult{Allowed: true}, nil
	}

	key := fmt.Sprintf("velocity:payment:%s", userID)
	count, expiry, err := v.incrementAndGet(ctx, key, v.config.AttemptWindow)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "key", key)
		// Fail open - allow the attempt if Redis is down
		return &VelocityResult{Allowed: true, Message: "velocity check unavailable"}, nil
	}

	result := &VelocityResult{
		Allowed:      count <= v.config.MaxAttemptsPerUser,
		CurrentCount: count,
		MaxAllowed:   v.config.MaxAttemptsPerUser,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d payment attempts in %s", v.config.MaxAttemptsPerUser, v.config.AttemptWindow)
		v.logger.Warn("payment velocity exceeded",
			"user_id", userID,
			"count", count,
			"max", v.config.MaxAttemptsPerUser,
		)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// ResetPaymentVelocity clears the counter for a user (admin use).
func (v *VelocityChecker) ResetPaymentVelocity(ctx context.Context, userID string) error {
	key := fmt.Sprintf("velocity:payment:%s", userID)
	return v.redis.Del(ctx, key).Err()
}

func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	// Set expiry only on first increment
	if count == 1 {
		v.redis.Expire(ctx, key, window)
	}
	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil {
		ttl = window
	}
	return int(count), time.Now().Add(ttl), nil
}
