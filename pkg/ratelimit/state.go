// Package ratelimit implements Bitbucket rate limit tracking and request
// gating. Bitbucket Cloud signals limits with 429 responses and an optional
// Retry-After header; the gate records a shared cooldown window in Redis so
// every client instance backs off together.
package ratelimit

import (
	"time"
)

// Redis keys for cooldown state storage.
const (
	RedisKeyCooldownUntil = "bb:rate_limit:cooldown_until"
	RedisKeyLastStatus    = "bb:rate_limit:last_status"
	RedisKeyLastUpdate    = "bb:rate_limit:last_update"
)

// DefaultCooldown is applied when a 429 arrives without a usable
// Retry-After header.
const DefaultCooldown = 60 * time.Second

// MaxCooldown caps how long a single 429 can gate requests, guarding
// against absurd Retry-After values.
const MaxCooldown = 15 * time.Minute

// CooldownState represents the current rate limit cooldown.
// This state is shared across all client instances via Redis.
type CooldownState struct {
	// Until is when the cooldown window ends. Zero means no cooldown.
	Until time.Time `json:"until"`

	// LastStatus is the HTTP status that triggered the cooldown.
	LastStatus int `json:"last_status"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// Active returns true while the cooldown window is in effect.
func (s *CooldownState) Active() bool {
	return !s.Until.IsZero() && time.Now().Before(s.Until)
}

// Remaining returns the time left in the cooldown window.
// Returns 0 if the window has passed.
func (s *CooldownState) Remaining() time.Duration {
	remaining := time.Until(s.Until)
	if remaining < 0 {
		return 0
	}
	return remaining
}
