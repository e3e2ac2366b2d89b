package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/forgeworks/bitbucket-cloud-client/pkg/pagination"
)

// apiErrorBody is the standard Bitbucket error envelope.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// resolveURL turns a resource path or an absolute continuation link into a
// request URL. Continuation links arrive fully formed from a previous
// response body and are replayed as-is.
func (c *Client) resolveURL(target string) (*url.URL, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return url.Parse(target)
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return url.Parse(c.config.BaseURL + target)
}

// GetPage fetches one page of a paginated listing endpoint and decodes the
// standard envelope. It implements pagination.PageGetter.
//
// params are merged into the URL's query string with Set semantics, so a
// continuation link that already carries pagelen or filter params is not
// duplicated.
func (c *Client) GetPage(ctx context.Context, target string, params url.Values) (*pagination.Page, error) {
	u, err := c.resolveURL(target)
	if err != nil {
		return nil, fmt.Errorf("resolve url %q: %w", target, err)
	}

	query := u.Query()
	for key := range params {
		query.Set(key, params.Get(key))
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.responseError(resp)
	}

	var page pagination.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode page envelope: %w", err)
	}

	return &page, nil
}

// GetJSON performs a GET against an endpoint and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	u, err := c.resolveURL(endpoint)
	if err != nil {
		return fmt.Errorf("resolve url %q: %w", endpoint, err)
	}
	if len(params) > 0 {
		query := u.Query()
		for key := range params {
			query.Set(key, params.Get(key))
		}
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doJSON(req, out)
}

// PostJSON performs a POST with a JSON body and decodes the response into out.
// body and out may both be nil.
func (c *Client) PostJSON(ctx context.Context, endpoint string, body, out any) error {
	return c.writeJSON(ctx, http.MethodPost, endpoint, body, out)
}

// PutJSON performs a PUT with a JSON body and decodes the response into out.
func (c *Client) PutJSON(ctx context.Context, endpoint string, body, out any) error {
	return c.writeJSON(ctx, http.MethodPut, endpoint, body, out)
}

// DeleteJSON performs a DELETE against an endpoint.
func (c *Client) DeleteJSON(ctx context.Context, endpoint string) error {
	return c.writeJSON(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *Client) writeJSON(ctx context.Context, method, endpoint string, body, out any) error {
	u, err := c.resolveURL(endpoint)
	if err != nil {
		return fmt.Errorf("resolve url %q: %w", endpoint, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doJSON(req, out)
}

// doJSON executes the request and decodes a JSON response into out.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.responseError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// responseError converts an error response into an APIError, preferring the
// message from the Bitbucket error envelope when present.
func (c *Client) responseError(resp *http.Response) error {
	message := resp.Status

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(data) > 0 {
		var body apiErrorBody
		if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
			message = body.Error.Message
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: c.classifyError(resp, nil),
		Message:    message,
	}
}
