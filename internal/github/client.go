// Package github implements the destination-forge write client: repo
// and content creation, secrets sealed with the server public key,
// protection and governance settings, and the read surface Verify
// compares against.
//
// Every request passes through the shared rate limiter and the retry
// policy; failures surface as classified forge errors.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"

	"github.com/Sumatoshi-tech/gitport/internal/forge"
	"github.com/Sumatoshi-tech/gitport/internal/ratelimit"
)

// forgeName labels errors raised by this client.
const forgeName = "GitHub"

// perPage is the page size for list requests.
const perPage = 100

// Client is a rate-limited GitHub REST client scoped to one owner.
type Client struct {
	rest   *api.RESTClient
	owner  string
	token  string
	upload *http.Client
	retry  ratelimit.Policy
	logger *slog.Logger
}

// Options configures a Client.
type Options struct {
	// Host is the API host, e.g. github.com. Empty means github.com.
	Host string

	// Owner is the destination organization or user.
	Owner string

	// Token is the access token with repo and workflow scopes.
	Token string

	// Limiter gates every request. Required.
	Limiter *ratelimit.Limiter

	// Timeout is the per-request timeout. Zero means 30s.
	Timeout time.Duration

	// Retry overrides the default retry policy.
	Retry *ratelimit.Policy

	// Logger receives request diagnostics. Nil means slog.Default.
	Logger *slog.Logger

	// Transport is the base round tripper under the limiter. Test hook.
	Transport http.RoundTripper
}

// NewClient creates a GitHub client with rate limiting and retries wired in.
func NewClient(opts Options) (*Client, error) {
	host := opts.Host
	if host == "" {
		host = "github.com"
	}

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

	transport := &ratelimit.Transport{Base: opts.Transport, Limiter: opts.Limiter}

	rest, err := api.NewRESTClient(api.ClientOptions{
		Host:      host,
		AuthToken: opts.Token,
		Transport: transport,
		Timeout:   timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build rest client: %w", err)
	}

	return &Client{
		rest:  rest,
		owner: opts.Owner,
		token: opts.Token,
		upload: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		retry:  retry,
		logger: logger,
	}, nil
}

// Owner returns the configured destination owner.
func (c *Client) Owner() string {
	return c.owner
}

// Token exposes the configured token for git URL injection. Never log it.
func (c *Client) Token() string {
	return c.token
}

// repoPath builds the repos/<owner>/<repo> path segment.
func (c *Client) repoPath(repo string) string {
	return "repos/" + c.owner + "/" + repo
}

// classify converts a go-gh or transport failure into a forge error.
func classify(err error) error {
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) {
		retryAfter := forge.ParseRetryAfter(httpErr.Headers.Get("Retry-After"))

		return forge.Classify(forgeName, httpErr.StatusCode, httpErr.Message, retryAfter)
	}

	return forge.ClassifyTransport(forgeName, err)
}

// doJSON issues one request with retries, marshalling payload in and
// decoding the response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	return c.retry.Do(ctx, forgeName, func() error {
		var body io.Reader

		if payload != nil {
			data, marshalErr := json.Marshal(payload)
			if marshalErr != nil {
				return fmt.Errorf("marshal %s body: %w", path, marshalErr)
			}

			body = bytes.NewReader(data)
		}

		err := c.rest.DoWithContext(ctx, method, path, body, out)
		if err != nil {
			return classify(err)
		}

		return nil
	})
}

// statusCode extracts the HTTP status of a classified failure, zero
// when the error carries none.
func statusCode(err error) int {
	fe := forge.AsError(forgeName, err)

	return fe.Code
}

// linkLastPattern extracts the last page number from a Link header.
var linkLastPattern = regexp.MustCompile(`[?&]page=(\d+)>; rel="last"`)

// pageCount returns the total item count of a list endpoint by issuing
// a one-item request and reading the rel="last" cursor.
func (c *Client) pageCount(ctx context.Context, path string) (int, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	var count int

	err := c.retry.Do(ctx, forgeName, func() error {
		resp, reqErr := c.rest.RequestWithContext(ctx, http.MethodGet, path+sep+"per_page=1", nil)
		if reqErr != nil {
			return classify(reqErr)
		}
		defer resp.Body.Close()

		last := linkLastPattern.FindStringSubmatch(resp.Header.Get("Link"))
		if last != nil {
			count, _ = strconv.Atoi(last[1])

			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, resp.Body)

			return nil
		}

		// Single page: count the items directly.
		var items []json.RawMessage

		decodeErr := json.NewDecoder(resp.Body).Decode(&items)
		if decodeErr != nil {
			return fmt.Errorf("decode %s page: %w", path, decodeErr)
		}

		count = len(items)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// listAll walks a paginated list endpoint, appending every page.
func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	var all []T

	for page := 1; ; page++ {
		pagePath := fmt.Sprintf("%s%sper_page=%d&page=%d", path, sep, perPage, page)

		var items []T

		err := c.doJSON(ctx, http.MethodGet, pagePath, nil, &items)
		if err != nil {
			return nil, err
		}

		all = append(all, items...)

		if len(items) < perPage {
			return all, nil
		}
	}
}
