package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination traversals.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bb_pagination_pages_fetched_total",
		Help: "Total pages fetched by traversal mode",
	}, []string{"mode"})

	capTruncationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bb_pagination_cap_truncations_total",
		Help: "Total exhaustive traversals truncated at the item cap",
	})

	traversalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bb_pagination_traversal_duration_seconds",
		Help:    "Duration of a full pagination traversal by mode",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"mode"})

	traversalErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bb_pagination_errors_total",
		Help: "Total failed pagination traversals by mode",
	}, []string{"mode"})
)

// Traversal modes used as metric and log labels.
const (
	modePage   = "page"
	modeSingle = "single"
	modeAll    = "all"
)

// Policy holds the process-wide pagination limits. The values are injected
// at construction so tests can exercise small caps without touching
// production defaults.
type Policy struct {
	// DefaultPagelen is the page size used when the caller supplies none
	// (or an unusable one).
	DefaultPagelen int

	// MaxPagelen is the largest page size accepted from a caller.
	MaxPagelen int

	// AllItemsCap is the hard ceiling on items accumulated by a single
	// exhaustive traversal.
	AllItemsCap int
}

// DefaultPolicy returns the production pagination limits.
func DefaultPolicy() Policy {
	return Policy{
		DefaultPagelen: 25,
		MaxPagelen:     100,
		AllItemsCap:    1000,
	}
}

// EffectivePagelen resolves a caller-supplied page size against the policy.
// Values outside [1, MaxPagelen] fall back to DefaultPagelen: malformed
// sizes originate from a tool-calling agent, so resilience beats strict
// rejection here.
func (p Policy) EffectivePagelen(requested int) int {
	if requested < 1 || requested > p.MaxPagelen {
		return p.DefaultPagelen
	}
	return requested
}

// Page is one decoded listing response envelope. Values are opaque to the
// Paginator; it only accumulates and counts them.
type Page struct {
	Values   []json.RawMessage `json:"values"`
	Page     int               `json:"page"`
	Pagelen  int               `json:"pagelen"`
	Size     int               `json:"size"`
	Next     string            `json:"next"`
	Previous string            `json:"previous"`
}

// PageGetter is the narrow transport dependency of the Paginator. The url
// may be a relative resource path or an absolute continuation link; params
// are merged into the request's query string.
type PageGetter interface {
	GetPage(ctx context.Context, url string, params url.Values) (*Page, error)
}

// GetPageFunc adapts a function to the PageGetter interface.
type GetPageFunc func(ctx context.Context, url string, params url.Values) (*Page, error)

// GetPage implements PageGetter.
func (f GetPageFunc) GetPage(ctx context.Context, url string, params url.Values) (*Page, error) {
	return f(ctx, url, params)
}

// Request is the caller intent for one listing call.
type Request struct {
	// ResourcePath is the listing endpoint to query (required, opaque).
	ResourcePath string

	// Pagelen is the requested page size. Values outside the policy range
	// (including zero and negatives) fall back to the policy default.
	Pagelen int

	// Page, when positive, selects one explicit page. Takes precedence
	// over All.
	Page int

	// All requests exhaustive traversal up to the policy item cap.
	// Ignored when Page is set.
	All bool

	// ExtraParams are filter query parameters forwarded on every page
	// request unchanged. Their semantics are the caller's business.
	ExtraParams map[string]string

	// Description labels the request in logs and errors. Never affects
	// behavior.
	Description string
}

// label returns the diagnostic name for the request.
func (r Request) label() string {
	if r.Description != "" {
		return r.Description
	}
	return r.ResourcePath
}

// Result is the aggregate outcome of one listing call.
type Result struct {
	// Values holds the accumulated items in upstream order.
	Values []json.RawMessage

	// Page is the page number of the last page fetched, or the explicitly
	// requested page.
	Page int

	// Pagelen is the effective page size used on every request.
	Pagelen int

	// Next and Previous are the raw continuation links of the last fetched
	// page, exposed so callers can resume traversal manually.
	Next     string
	Previous string

	// FetchedPages counts the transport calls made for this result.
	FetchedPages int

	// TotalFetched equals len(Values).
	TotalFetched int
}

// Paginator drives paginated listing requests against a PageGetter.
// It holds no per-call state; concurrent FetchValues calls are independent.
type Paginator struct {
	getter PageGetter
	policy Policy
	logger zerolog.Logger
}

// New creates a Paginator with the given transport and policy.
func New(getter PageGetter, policy Policy) (*Paginator, error) {
	if getter == nil {
		return nil, fmt.Errorf("page getter is required")
	}
	if policy.DefaultPagelen < 1 {
		return nil, fmt.Errorf("default pagelen must be >= 1 (got %d)", policy.DefaultPagelen)
	}
	if policy.MaxPagelen < policy.DefaultPagelen {
		return nil, fmt.Errorf("max pagelen must be >= default pagelen (got %d < %d)",
			policy.MaxPagelen, policy.DefaultPagelen)
	}
	if policy.AllItemsCap < 1 {
		return nil, fmt.Errorf("all items cap must be >= 1 (got %d)", policy.AllItemsCap)
	}

	return &Paginator{
		getter: getter,
		policy: policy,
		logger: log.With().Str("component", "paginator").Logger(),
	}, nil
}

// Policy returns the injected pagination limits. Callers surface them as
// documentation in tool input schemas.
func (p *Paginator) Policy() Policy {
	return p.policy
}

// FetchValues resolves the request intent and performs one or more page
// fetches, returning a single aggregate result.
//
// Explicit page and single-page modes make exactly one transport call.
// Exhaustive mode follows "next" links until the collection is exhausted or
// the accumulated item count reaches the policy cap, whichever comes first.
// Any transport failure aborts the traversal; no partial result is returned.
func (p *Paginator) FetchValues(ctx context.Context, req Request) (*Result, error) {
	if req.ResourcePath == "" {
		return nil, fmt.Errorf("resource path is required")
	}

	mode := modeSingle
	switch {
	case req.Page > 0:
		mode = modePage
	case req.All:
		mode = modeAll
	}

	start := time.Now()
	defer func() {
		traversalDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	// Page size is resolved once and reused for every page of a traversal;
	// it is never renegotiated mid-flight.
	pagelen := p.policy.EffectivePagelen(req.Pagelen)

	params := url.Values{}
	for key, value := range req.ExtraParams {
		params.Set(key, value)
	}
	params.Set("pagelen", strconv.Itoa(pagelen))

	if mode == modeAll {
		return p.fetchAll(ctx, req, params, pagelen)
	}

	// Explicit page and single-page modes are the same single fetch; the
	// explicit variant just pins the page number.
	if req.Page > 0 {
		params.Set("page", strconv.Itoa(req.Page))
	}

	page, err := p.getter.GetPage(ctx, req.ResourcePath, params)
	if err != nil {
		pageIndex := req.Page
		if pageIndex == 0 {
			pageIndex = 1
		}
		traversalErrorsTotal.WithLabelValues(mode).Inc()
		return nil, fmt.Errorf("%s: fetch page %d: %w", req.label(), pageIndex, err)
	}
	pagesFetchedTotal.WithLabelValues(mode).Inc()

	resultPage := req.Page
	if resultPage == 0 {
		resultPage = page.Page
		if resultPage == 0 {
			resultPage = 1
		}
	}

	p.logger.Debug().
		Str("resource", req.ResourcePath).
		Str("mode", mode).
		Int("page", resultPage).
		Int("items", len(page.Values)).
		Msg("Fetched page")

	return &Result{
		Values:       page.Values,
		Page:         resultPage,
		Pagelen:      pagelen,
		Next:         page.Next,
		Previous:     page.Previous,
		FetchedPages: 1,
		TotalFetched: len(page.Values),
	}, nil
}

// fetchAll follows continuation links until the upstream stops sending a
// next link or the item cap is reached. Empty pages do not terminate the
// traversal on their own; only a missing next link does.
func (p *Paginator) fetchAll(ctx context.Context, req Request, params url.Values, pagelen int) (*Result, error) {
	values := make([]json.RawMessage, 0, pagelen)
	target := req.ResourcePath
	fetched := 0
	truncated := false

	var last *Page
	for {
		page, err := p.getter.GetPage(ctx, target, params)
		if err != nil {
			traversalErrorsTotal.WithLabelValues(modeAll).Inc()
			return nil, fmt.Errorf("%s: fetch page %d: %w", req.label(), fetched+1, err)
		}
		fetched++
		pagesFetchedTotal.WithLabelValues(modeAll).Inc()
		values = append(values, page.Values...)
		last = page

		if len(values) >= p.policy.AllItemsCap {
			// Hard ceiling, not a soft hint: truncate and stop regardless
			// of how much more the upstream collection holds.
			values = values[:p.policy.AllItemsCap]
			truncated = true
			break
		}
		if page.Next == "" {
			break
		}
		if len(page.Values) == 0 && page.Next == target {
			// An empty page pointing back at itself would loop forever.
			// Empty pages with a fresh next link are legitimate (filtered
			// cursor windows) and the traversal continues through them.
			break
		}

		// Continuation links may encode cursors the caller cannot
		// reconstruct; replay the link verbatim.
		target = page.Next
	}

	if truncated {
		capTruncationsTotal.Inc()
		p.logger.Warn().
			Str("resource", req.ResourcePath).
			Int("cap", p.policy.AllItemsCap).
			Int("fetched_pages", fetched).
			Msg("Traversal truncated at item cap")
	}

	resultPage := last.Page
	if resultPage == 0 {
		resultPage = fetched
	}

	p.logger.Info().
		Str("resource", req.ResourcePath).
		Int("fetched_pages", fetched).
		Int("items", len(values)).
		Bool("truncated", truncated).
		Msg("Exhaustive traversal complete")

	return &Result{
		Values:       values,
		Page:         resultPage,
		Pagelen:      pagelen,
		Next:         last.Next,
		Previous:     last.Previous,
		FetchedPages: fetched,
		TotalFetched: len(values),
	}, nil
}
