package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit gating.
var (
	cooldownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bb_rate_limit_cooldown_seconds",
		Help: "Seconds remaining in the current rate limit cooldown window",
	})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bb_rate_limited_total",
		Help: "Total number of 429 responses observed",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bb_rate_limit_blocks_total",
		Help: "Total number of requests blocked by an active cooldown",
	})
)

// Gate tracks Bitbucket rate limit cooldowns and blocks requests while one
// is active.
type Gate struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewGate creates a new rate limit gate.
func NewGate(redisClient *redis.Client, logger zerolog.Logger) *Gate {
	return &Gate{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current cooldown state from Redis.
// Returns an inactive state if no cooldown is recorded.
func (g *Gate) GetState(ctx context.Context) (*CooldownState, error) {
	untilUnix, err := g.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err == redis.Nil {
		return &CooldownState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cooldown until: %w", err)
	}

	lastStatus, err := g.redis.Get(ctx, RedisKeyLastStatus).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last status: %w", err)
	}

	lastUpdateStr, err := g.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	state := &CooldownState{
		Until:      time.Unix(untilUnix, 0),
		LastStatus: lastStatus,
	}
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &state.LastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	return state, nil
}

// UpdateFromResponse records a cooldown when a 429 arrives and clears it on
// any successful response.
func (g *Gate) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	if statusCode == http.StatusTooManyRequests {
		return g.recordCooldown(ctx, statusCode, headers)
	}

	if statusCode < 400 {
		// Upstream is serving us again; drop any stale cooldown early.
		if err := g.redis.Del(ctx, RedisKeyCooldownUntil, RedisKeyLastStatus, RedisKeyLastUpdate).Err(); err != nil {
			return fmt.Errorf("clear cooldown state: %w", err)
		}
		cooldownSeconds.Set(0)
	}

	return nil
}

// recordCooldown stores the cooldown window in Redis with a matching TTL so
// stale state expires on its own.
func (g *Gate) recordCooldown(ctx context.Context, statusCode int, headers http.Header) error {
	cooldown := parseRetryAfter(headers)

	now := time.Now()
	state := &CooldownState{
		Until:      now.Add(cooldown),
		LastStatus: statusCode,
		LastUpdate: now,
	}

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	// Redis treats a zero expiration as "keep forever"; a degenerate
	// Retry-After of 0 still gets a short-lived key.
	ttl := cooldown
	if ttl <= 0 {
		ttl = time.Second
	}

	pipe := g.redis.Pipeline()
	pipe.Set(ctx, RedisKeyCooldownUntil, state.Until.Unix(), ttl)
	pipe.Set(ctx, RedisKeyLastStatus, statusCode, ttl)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store cooldown state in redis: %w", err)
	}

	rateLimitedTotal.Inc()
	cooldownSeconds.Set(cooldown.Seconds())

	g.logger.Warn().
		Int("status", statusCode).
		Dur("cooldown", cooldown).
		Time("until", state.Until).
		Msg("Rate limited - cooldown recorded")

	return nil
}

// ShouldAllowRequest checks if a request should be allowed.
// Returns false while a cooldown window is active.
func (g *Gate) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := g.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get cooldown state: %w", err)
	}

	if state.Active() {
		g.logger.Warn().
			Dur("remaining", state.Remaining()).
			Msg("Rate limit cooldown active - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	return true, nil
}

// parseRetryAfter reads a Retry-After header as either delta-seconds or an
// HTTP date, clamped to [0, MaxCooldown]. Falls back to DefaultCooldown.
func parseRetryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return DefaultCooldown
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return clampCooldown(time.Duration(seconds) * time.Second)
	}

	if at, err := http.ParseTime(value); err == nil {
		return clampCooldown(time.Until(at))
	}

	return DefaultCooldown
}

func clampCooldown(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxCooldown {
		return MaxCooldown
	}
	return d
}
