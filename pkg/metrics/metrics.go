// Package metrics provides the centralized Prometheus metrics registry for
// the Bitbucket client. All metrics are defined in their respective packages
// (client, pagination, cache, ratelimit) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - bb_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - bb_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - bb_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - bb_retries_total{error_class} (Counter): Retry attempts by error class
//   - bb_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - bb_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pagination Metrics (pkg/pagination):
//   - bb_pagination_pages_fetched_total{mode} (Counter): Pages fetched by traversal mode
//   - bb_pagination_cap_truncations_total (Counter): Exhaustive traversals cut at the item cap
//   - bb_pagination_traversal_duration_seconds{mode} (Histogram): Traversal duration by mode
//   - bb_pagination_errors_total{mode} (Counter): Failed traversals by mode
//
// Cache Metrics (pkg/cache):
//   - bb_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - bb_cache_misses_total (Counter): Cache misses
//   - bb_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - bb_304_responses_total (Counter): 304 Not Modified responses
//   - bb_conditional_requests_total (Counter): Conditional requests sent with If-None-Match
//   - bb_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - bb_rate_limit_cooldown_seconds (Gauge): Seconds remaining in the active cooldown
//   - bb_rate_limited_total (Counter): 429 responses observed
//   - bb_rate_limit_blocks_total (Counter): Requests blocked by an active cooldown
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(bb_cache_hits_total[5m])) /
//   (sum(rate(bb_cache_hits_total[5m])) + sum(rate(bb_cache_misses_total[5m])))
//
//   # Truncated Traversal Rate
//   rate(bb_pagination_cap_truncations_total[15m])
//
//   # Request Error Rate
//   rate(bb_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(bb_request_duration_seconds_bucket[5m]))
