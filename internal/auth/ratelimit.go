package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// RequestsPerMinute caps API calls per authenticated subject. Zero
	// disables the cap.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	// AuthFailureLimit is the number of failed authentications per client
	// address before lockout.
	AuthFailureLimit int `mapstructure:"auth_failure_limit"`
	// AuthLockoutDuration is how long a client stays locked out.
	AuthLockoutDuration time.Duration `mapstructure:"auth_lockout_duration"`
}

// Errors returned by the limiter checks.
var (
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrLockedOut   = errors.New("too many failed authentication attempts")
)

// RateLimiter keeps fixed-window counters in Redis. A nil RateLimiter or
// one without a client allows everything.
type RateLimiter struct {
	client *redis.Client
	config RateLimitConfig
	now    func() time.Time
}

// NewRateLimiter creates a new RateLimiter with the given Redis client and configuration.
func NewRateLimiter(client *redis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
		now:    time.Now,
	}
}

func (rl *RateLimiter) disabled() bool {
	return rl == nil || rl.client == nil
}

// AllowRequest counts one request for subject in the current minute and
// returns ErrRateLimited once the budget is spent.
func (rl *RateLimiter) AllowRequest(ctx context.Context, subject string) error {
	if rl.disabled() || rl.config.RequestsPerMinute <= 0 {
		return nil
	}

	key := fmt.Sprintf("ratelimit:api:%s:%s", subject, currentMinute(rl.now()))

	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open: Redis trouble must not take the API down.
		return nil
	}

	if int(incr.Val()) > rl.config.RequestsPerMinute {
		return ErrRateLimited
	}
	return nil
}

// CheckAuthFailures returns ErrLockedOut when client has too many recent
// failed authentications.
func (rl *RateLimiter) CheckAuthFailures(ctx context.Context, client string) error {
	if rl.disabled() || rl.config.AuthFailureLimit <= 0 {
		return nil
	}

	count, err := rl.client.Get(ctx, authFailureKey(client)).Int64()
	if err != nil && err != redis.Nil {
		return nil
	}

	if int(count) >= rl.config.AuthFailureLimit {
		return ErrLockedOut
	}
	return nil
}

// RecordAuthFailure increments the failure counter for client.
func (rl *RateLimiter) RecordAuthFailure(ctx context.Context, client string) error {
	if rl.disabled() || rl.config.AuthFailureLimit <= 0 {
		return nil
	}

	key := authFailureKey(client)

	pipe := rl.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.config.AuthLockoutDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record auth failure: %w", err)
	}
	return nil
}

func authFailureKey(client string) string {
	return fmt.Sprintf("ratelimit:authfail:%s", client)
}

// currentMinute returns the UTC minute bucket (e.g., "2026-02-03T10:04").
func currentMinute(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04")
}
