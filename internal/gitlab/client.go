// Package gitlab implements the source-forge read client: paginated
// entity readers, file and attachment downloads, feature probes, and
// the git mirror/bundle helpers.
//
// Every request passes through the shared rate limiter and the retry
// policy; failures surface as classified forge errors.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/gitport/internal/forge"
	"github.com/Sumatoshi-tech/gitport/internal/ratelimit"
)

// forgeName labels errors raised by this client.
const forgeName = "GitLab"

// apiPrefix is the REST API path prefix.
const apiPrefix = "/api/v4"

// perPage is the page size for list requests.
const perPage = 100

// maxErrorBody bounds how much of an error response body is retained.
const maxErrorBody = 4 << 10

// Client is a rate-limited GitLab REST client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   ratelimit.Policy
	logger  *slog.Logger
}

// Options configures a Client.
type Options struct {
	// BaseURL is the instance root, e.g. https://gitlab.com.
	BaseURL string

	// Token is the personal access token with api scope.
	Token string

	// Limiter gates every request. Required.
	Limiter *ratelimit.Limiter

	// Timeout is the per-request timeout. Zero means 30s.
	Timeout time.Duration

	// Retry overrides the default retry policy.
	Retry *ratelimit.Policy

	// Logger receives request diagnostics. Nil means slog.Default.
	Logger *slog.Logger
}

// NewClient creates a GitLab client with rate limiting and retries wired in.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retry := ratelimit.DefaultPolicy()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		token:   opts.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &ratelimit.Transport{Limiter: opts.Limiter},
		},
		retry:  retry,
		logger: logger,
	}
}

// Token exposes the configured token for git URL injection. Never log it.
func (c *Client) Token() string {
	return c.token
}

// BaseURL returns the instance root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiURL joins the API prefix, an escaped path, and query parameters.
func (c *Client) apiURL(path string, query url.Values) string {
	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return u
}

// do issues one HTTP request with retries and classification. The
// returned response body is open; callers must close it.
func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader) (*http.Response, error) {
	var resp *http.Response

	err := c.retry.Do(ctx, forgeName, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, method, rawURL, body)
		if reqErr != nil {
			return fmt.Errorf("build request: %w", reqErr)
		}

		req.Header.Set("PRIVATE-TOKEN", c.token)

		httpResp, httpErr := c.http.Do(req)
		if httpErr != nil {
			return forge.ClassifyTransport(forgeName, httpErr)
		}

		if httpResp.StatusCode >= 400 {
			defer httpResp.Body.Close()

			detail, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
			retryAfter := forge.ParseRetryAfter(httpResp.Header.Get("Retry-After"))

			return forge.Classify(forgeName, httpResp.StatusCode, string(detail), retryAfter)
		}

		resp = httpResp

		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// getJSON fetches a single object.
func getJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var out T

	resp, err := c.do(ctx, http.MethodGet, c.apiURL(path, query), nil)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if decodeErr != nil {
		return out, fmt.Errorf("decode %s: %w", path, decodeErr)
	}

	return out, nil
}

// nextPageHeader is GitLab's pagination cursor header.
const nextPageHeader = "X-Next-Page"

// totalHeader carries the total item count on list responses.
const totalHeader = "X-Total"

// eachPage walks a paginated list endpoint, invoking fn once per page
// until the cursor runs out or fn returns an error.
func eachPage[T any](ctx context.Context, c *Client, path string, query url.Values, fn func([]T) error) error {
	if query == nil {
		query = url.Values{}
	}

	query.Set("per_page", strconv.Itoa(perPage))
	page := "1"

	for page != "" {
		query.Set("page", page)

		resp, err := c.do(ctx, http.MethodGet, c.apiURL(path, query), nil)
		if err != nil {
			return err
		}

		var items []T

		decodeErr := json.NewDecoder(resp.Body).Decode(&items)
		next := resp.Header.Get(nextPageHeader)
		resp.Body.Close()

		if decodeErr != nil {
			return fmt.Errorf("decode %s page: %w", path, decodeErr)
		}

		if len(items) > 0 {
			fnErr := fn(items)
			if fnErr != nil {
				return fnErr
			}
		}

		page = next
	}

	return nil
}

// each streams every item of a paginated list endpoint.
func each[T any](ctx context.Context, c *Client, path string, query url.Values, fn func(T) error) error {
	return eachPage(ctx, c, path, query, func(items []T) error {
		for _, item := range items {
			itemErr := fn(item)
			if itemErr != nil {
				return itemErr
			}
		}

		return nil
	})
}

// collect gathers a full paginated list into a slice.
func collect[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var all []T

	err := eachPage(ctx, c, path, query, func(items []T) error {
		all = append(all, items...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return all, nil
}

// count issues a one-item request and reads the X-Total header.
func (c *Client) count(ctx context.Context, path string, query url.Values) (int, error) {
	if query == nil {
		query = url.Values{}
	}

	query.Set("per_page", "1")
	query.Set("page", "1")

	resp, err := c.do(ctx, http.MethodGet, c.apiURL(path, query), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, resp.Body)

	total := resp.Header.Get(totalHeader)
	if total == "" {
		return 0, nil
	}

	n, convErr := strconv.Atoi(total)
	if convErr != nil {
		return 0, nil
	}

	return n, nil
}

// projectPath builds the /projects/<id> path segment.
func projectPath(projectID int64) string {
	return "/projects/" + strconv.FormatInt(projectID, 10)
}
