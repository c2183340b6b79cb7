package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle tracks failed logins per email.
type LoginThrottle interface {
	// Locked reports whether the email is in its cooldown period.
	Locked(ctx context.Context, email string) (bool, error)
	// Fail records a failed attempt and locks the email once the limit is
	// reached.
	Fail(ctx context.Context, email string) error
	// Reset clears the attempt counter after a successful login.
	Reset(ctx context.Context, email string) error
}

// ThrottleConfig holds the failed-login policy.
type ThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
	Cooldown    time.Duration
}

// RedisThrottle implements LoginThrottle with a counter key that expires
// after Window and a lock key that expires after Cooldown.
type RedisThrottle struct {
	client *redis.Client
	cfg    ThrottleConfig
}

// NewRedisThrottle creates a Redis-backed login throttle.
func NewRedisThrottle(client *redis.Client, cfg ThrottleConfig) *RedisThrottle {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Minute
	}
	return &RedisThrottle{client: client, cfg: cfg}
}

func attemptsKey(email string) string { return "login:attempts:" + strings.ToLower(email) }
func lockKey(email string) string     { return "login:locked:" + strings.ToLower(email) }

// Locked reports whether the lock key exists.
func (t *RedisThrottle) Locked(ctx context.Context, email string) (bool, error) {
	n, err := t.client.Exists(ctx, lockKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("check login lock: %w", err)
	}
	return n > 0, nil
}

// Fail increments the attempt counter. The window starts at the first
// failure.
func (t *RedisThrottle) Fail(ctx context.Context, email string) error {
	key := attemptsKey(email)

	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.cfg.Window).Err(); err != nil {
			return fmt.Errorf("set attempt window: %w", err)
		}
	}

	if count < int64(t.cfg.MaxAttempts) {
		return nil
	}

	pipe := t.client.TxPipeline()
	pipe.Set(ctx, lockKey(email), "1", t.cfg.Cooldown)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lock login: %w", err)
	}
	return nil
}

// Reset deletes the attempt counter.
func (t *RedisThrottle) Reset(ctx context.Context, email string) error {
	if err := t.client.Del(ctx, attemptsKey(email)).Err(); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

// NoopThrottle never locks. It is used when Redis is disabled.
type NoopThrottle struct{}

func (NoopThrottle) Locked(context.Context, string) (bool, error) { return false, nil }
func (NoopThrottle) Fail(context.Context, string) error           { return nil }
func (NoopThrottle) Reset(context.Context, string) error          { return nil }
