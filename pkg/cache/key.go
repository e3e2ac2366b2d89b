package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key represents a unique identifier for a cached API response.
type Key struct {
	// Path is the API endpoint path (e.g., "/2.0/repositories/acme/widget")
	Path string

	// QueryParams are the query parameters (e.g., {"state": "OPEN"})
	QueryParams url.Values

	// Account scopes authenticated responses to the requesting identity
	// (empty for anonymous access).
	Account string
}

// String generates a deterministic cache key string.
// Format: bb:path:query1=val1:query2=val2:acct=name
//
// Example:
//
//	bb:2.0/repositories/acme/widget/pullrequests:state=OPEN:acct=agent
func (k Key) String() string {
	parts := []string{"bb"}

	path := strings.Trim(k.Path, "/")
	if path != "" {
		parts = append(parts, path)
	}

	// Query params sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	if k.Account != "" {
		parts = append(parts, fmt.Sprintf("acct=%s", k.Account))
	}

	return strings.Join(parts, ":")
}
