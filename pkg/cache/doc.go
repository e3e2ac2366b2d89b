// Package cache provides Bitbucket response caching with a Redis backend.
//
// The cache manager stores GET responses keyed by path and query string and
// supports conditional revalidation:
//
// - TTL from Cache-Control max-age, falling back to Expires, then a short default
// - ETag support for conditional requests (If-None-Match)
// - Last-Modified support (If-Modified-Since)
// - Prometheus metrics for observability
// - Deterministic cache key generation
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Path:        "/2.0/repositories/acme/widget/pullrequests",
//		QueryParams: url.Values{"state": []string{"OPEN"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - fetch from the API
//	}
//
// # HTTP Response Caching
//
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//		// The API returns 304 if the resource is unchanged
//	}
//
// # Metrics
//
//   - bb_cache_hits_total{layer="redis"} - Cache hits
//   - bb_cache_misses_total - Cache misses
//   - bb_cache_size_bytes{layer="redis"} - Cache size
//   - bb_304_responses_total - Conditional request successes
//   - bb_cache_errors_total{operation} - Cache operation errors
package cache
