package bitbucket

import (
	"context"
	"net/http"
	"net/url"

	"github.com/forgeworks/bitbucket-cloud-client/pkg/logging"
	"github.com/forgeworks/bitbucket-cloud-client/pkg/pagination"
	"github.com/rs/zerolog"
)

// API is the transport surface the service consumes. *client.Client
// satisfies it; tests substitute a recording fake.
type API interface {
	pagination.PageGetter

	Get(ctx context.Context, endpoint string) (*http.Response, error)
	GetJSON(ctx context.Context, endpoint string, params url.Values, out any) error
	PostJSON(ctx context.Context, endpoint string, body, out any) error
	PutJSON(ctx context.Context, endpoint string, body, out any) error
	DeleteJSON(ctx context.Context, endpoint string) error
}

// Service implements the Bitbucket Cloud domain operations.
type Service struct {
	api       API
	paginator *pagination.Paginator
	logger    zerolog.Logger
}

// NewService creates a Service with the production pagination policy.
func NewService(api API) (*Service, error) {
	return NewServiceWithPolicy(api, pagination.DefaultPolicy())
}

// NewServiceWithPolicy creates a Service with explicit pagination limits.
func NewServiceWithPolicy(api API, policy pagination.Policy) (*Service, error) {
	paginator, err := pagination.New(api, policy)
	if err != nil {
		return nil, err
	}

	return &Service{
		api:       api,
		paginator: paginator,
		logger:    logging.NewLogger("bitbucket"),
	}, nil
}

// Policy returns the pagination limits in effect, for surfacing in tool
// input schemas.
func (s *Service) Policy() pagination.Policy {
	return s.paginator.Policy()
}

// list runs one paginated listing call through the shared engine.
func (s *Service) list(ctx context.Context, resourcePath string, opts ListOptions, description string) (*pagination.Result, error) {
	return s.paginator.FetchValues(ctx, opts.request(resourcePath, description))
}
