package bitbucket

import (
	"fmt"
	"net/url"

	"github.com/forgeworks/bitbucket-cloud-client/pkg/pagination"
)

// ListOptions carries the pagination and filter intent for a listing call.
type ListOptions struct {
	// Pagelen is the requested page size. Values outside the policy range
	// fall back to the policy default.
	Pagelen int

	// Limit is a legacy alias for Pagelen, still accepted from older tool
	// schemas. It is resolved before the pagination engine is invoked;
	// an explicit Pagelen always wins.
	Limit int

	// Page, when positive, fetches that page exactly once. Takes
	// precedence over All.
	Page int

	// All fetches every page up to the item cap.
	All bool

	// Query is a Bitbucket filter expression, sent as the "q" parameter.
	Query string

	// Sort is a field name, optionally "-"-prefixed, sent as "sort".
	Sort string

	// Params are additional query parameters forwarded on every page
	// request unchanged.
	Params map[string]string
}

// request resolves the options into a pagination request for one resource.
func (o ListOptions) request(resourcePath, description string) pagination.Request {
	pagelen := o.Pagelen
	if pagelen == 0 {
		pagelen = o.Limit
	}

	params := make(map[string]string, len(o.Params)+2)
	for key, value := range o.Params {
		params[key] = value
	}
	if o.Query != "" {
		params["q"] = o.Query
	}
	if o.Sort != "" {
		params["sort"] = o.Sort
	}

	return pagination.Request{
		ResourcePath: resourcePath,
		Pagelen:      pagelen,
		Page:         o.Page,
		All:          o.All,
		ExtraParams:  params,
		Description:  description,
	}
}

// repoPath builds the API path for a repository, escaping both segments.
func repoPath(workspace, repoSlug string) string {
	return fmt.Sprintf("/2.0/repositories/%s/%s", url.PathEscape(workspace), url.PathEscape(repoSlug))
}

// requireRepo validates the identifiers every repository-scoped operation
// needs.
func requireRepo(workspace, repoSlug string) error {
	if workspace == "" {
		return fmt.Errorf("workspace is required")
	}
	if repoSlug == "" {
		return fmt.Errorf("repository slug is required")
	}
	return nil
}
