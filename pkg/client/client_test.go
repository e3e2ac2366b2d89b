package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis or skips the test.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Test database
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})

	return client
}

// newTestClient creates a client pointed at the given upstream.
func newTestClient(t *testing.T, upstream *httptest.Server) *Client {
	t.Helper()

	cfg := DefaultConfig(setupTestRedis(t), "test/1.0")
	cfg.BaseURL = upstream.URL
	cfg.InitialBackoff = 1 * time.Millisecond

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c
}

func TestNew_Validation(t *testing.T) {
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer redisClient.Close()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing redis", Config{UserAgent: "test/1.0"}, true},
		{"missing user agent", Config{Redis: redisClient}, true},
		{"valid", Config{Redis: redisClient, UserAgent: "test/1.0"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer redisClient.Close()

	cfg := DefaultConfig(redisClient, "test/1.0")

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
}

func TestClassifyError(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name   string
		status int
		err    error
		want   ErrorClass
	}{
		{"network error", 0, errors.New("dial tcp: refused"), ErrorClassNetwork},
		{"429", http.StatusTooManyRequests, nil, ErrorClassRateLimit},
		{"404", http.StatusNotFound, nil, ErrorClassClient},
		{"500", http.StatusInternalServerError, nil, ErrorClassServer},
		{"200", http.StatusOK, nil, ErrorClass("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.err == nil {
				resp = &http.Response{StatusCode: tt.status}
			}
			if got := c.classifyError(resp, tt.err); got != tt.want {
				t.Errorf("classifyError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDo_SetsIdentityHeaders(t *testing.T) {
	var gotUA, gotAuth, gotAccept string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	cfg := DefaultConfig(setupTestRedis(t), "agent/2.0")
	cfg.BaseURL = upstream.URL
	cfg.Token = "secret-token"
	cfg.Username = "ignored-when-token-set"

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	resp, err := c.Get(context.Background(), "/2.0/user")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	if gotUA != "agent/2.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, token must win over basic auth", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
}

func TestDo_BasicAuthFallback(t *testing.T) {
	var gotUser, gotPass string
	var hasAuth bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, hasAuth = r.BasicAuth()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	cfg := DefaultConfig(setupTestRedis(t), "agent/2.0")
	cfg.BaseURL = upstream.URL
	cfg.Username = "alex"
	cfg.AppPassword = "app-pass"

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	resp, err := c.Get(context.Background(), "/2.0/user")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	if !hasAuth || gotUser != "alex" || gotPass != "app-pass" {
		t.Errorf("basic auth = (%q, %q, %v)", gotUser, gotPass, hasAuth)
	}
}

func TestGetPage_DecodesEnvelope(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"values": [{"id": 1}, {"id": 2}],
			"page": 1,
			"pagelen": 2,
			"size": 10,
			"next": "https://api.example.com/next?page=2"
		}`))
	}))
	defer upstream.Close()

	c := newTestClient(t, upstream)

	params := url.Values{}
	params.Set("pagelen", "2")

	page, err := c.GetPage(context.Background(), "/2.0/repositories/acme", params)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}

	if len(page.Values) != 2 {
		t.Errorf("values = %d, want 2", len(page.Values))
	}
	if page.Size != 10 {
		t.Errorf("size = %d, want 10", page.Size)
	}
	if page.Next != "https://api.example.com/next?page=2" {
		t.Errorf("next = %q", page.Next)
	}
}

func TestGetPage_MergesParamsIntoContinuationLink(t *testing.T) {
	var gotQuery url.Values
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"values": []}`))
	}))
	defer upstream.Close()

	c := newTestClient(t, upstream)

	// Continuation link already carries page and pagelen
	link := upstream.URL + "/2.0/repositories/acme?page=3&pagelen=10"
	params := url.Values{}
	params.Set("pagelen", "10")
	params.Set("q", `language="go"`)

	if _, err := c.GetPage(context.Background(), link, params); err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}

	if gotQuery.Get("page") != "3" {
		t.Errorf("page = %q, want link's 3", gotQuery.Get("page"))
	}
	if got := gotQuery["pagelen"]; len(got) != 1 || got[0] != "10" {
		t.Errorf("pagelen = %v, want single value 10", got)
	}
	if gotQuery.Get("q") != `language="go"` {
		t.Errorf("q = %q", gotQuery.Get("q"))
	}
}

func TestGetPage_ErrorEnvelopeMessage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"message": "Repository not found"}}`))
	}))
	defer upstream.Close()

	c := newTestClient(t, upstream)

	_, err := c.GetPage(context.Background(), "/2.0/repositories/acme/missing", nil)
	if err == nil {
		t.Fatal("expected error for 404")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Repository not found" {
		t.Errorf("Message = %q, want envelope message", apiErr.Message)
	}
	if apiErr.ErrorClass != ErrorClassClient {
		t.Errorf("ErrorClass = %q", apiErr.ErrorClass)
	}
}

func TestPostJSON_SendsBody(t *testing.T) {
	var gotBody map[string]any
	var gotContentType string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 7}`))
	}))
	defer upstream.Close()

	c := newTestClient(t, upstream)

	var out json.RawMessage
	err := c.PostJSON(context.Background(), "/2.0/repositories/acme/widget/pullrequests",
		map[string]any{"title": "Add frobnicator"}, &out)
	if err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotBody["title"] != "Add frobnicator" {
		t.Errorf("body title = %v", gotBody["title"])
	}
	if string(out) != `{"id": 7}` {
		t.Errorf("out = %s", out)
	}
}

func TestDo_RetriedPostResendsFullBody(t *testing.T) {
	var bodies []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	c := newTestClient(t, upstream)

	err := c.PostJSON(context.Background(), "/2.0/repositories/acme/widget/pullrequests",
		map[string]any{"title": "Add frobnicator"}, nil)
	if err != nil {
		t.Fatalf("PostJSON failed after retry: %v", err)
	}

	if len(bodies) != 2 {
		t.Fatalf("attempts = %d, want 2", len(bodies))
	}
	want := `{"title":"Add frobnicator"}`
	for i, body := range bodies {
		if body != want {
			t.Errorf("attempt %d body = %q, want %q", i+1, body, want)
		}
	}
}

func TestResolveURL(t *testing.T) {
	c := &Client{config: Config{BaseURL: "https://api.bitbucket.org"}}

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"relative with slash", "/2.0/repositories", "https://api.bitbucket.org/2.0/repositories"},
		{"relative without slash", "2.0/repositories", "https://api.bitbucket.org/2.0/repositories"},
		{"absolute link replayed", "https://api.bitbucket.org/2.0/repositories?page=2", "https://api.bitbucket.org/2.0/repositories?page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := c.resolveURL(tt.target)
			if err != nil {
				t.Fatalf("resolveURL failed: %v", err)
			}
			if u.String() != tt.want {
				t.Errorf("resolveURL(%q) = %q, want %q", tt.target, u.String(), tt.want)
			}
		})
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	attempts := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	c := newTestClient(t, upstream)

	resp, err := c.Get(context.Background(), "/2.0/user")
	if err != nil {
		t.Fatalf("Get failed after retries: %v", err)
	}
	resp.Body.Close()

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDo_ReturnsClientErrorsUndisturbed(t *testing.T) {
	attempts := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"message": "no access"}}`))
	}))
	defer upstream.Close()

	c := newTestClient(t, upstream)

	resp, err := c.Get(context.Background(), "/2.0/repositories/private")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retries for 4xx)", attempts)
	}
}
