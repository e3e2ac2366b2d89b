package cache

import (
	"net/http"
	"time"
)

// Entry is one cached response as stored in Redis, JSON-encoded. Expires
// marks the end of freshness; an entry may outlive it in Redis when it
// carries a validator (ETag or Last-Modified) usable for revalidation.
type Entry struct {
	// Data holds the raw response body.
	Data []byte `json:"data"`

	// Validators for conditional requests.
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`

	// Expires is the freshness deadline derived from Cache-Control
	// max-age or the Expires header.
	Expires time.Time `json:"expires"`

	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`

	// CachedAt records when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired reports whether the entry is past its freshness deadline.
// Expired entries may still back a conditional request.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the remaining freshness lifetime, or 0 when already stale.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
