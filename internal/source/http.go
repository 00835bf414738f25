package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/franz/genre-tagger/internal/util"
)

// UserAgent identifies this application to the metadata APIs.
// MusicBrainz and Discogs reject anonymous clients.
const UserAgent = "MGT-MusicGenreTagger/1.0 (https://github.com/franz/genre-tagger)"

// maxBodyBytes bounds how much of a response is read
const maxBodyBytes = 4 * 1024 * 1024

// HTTPClient performs rate-limited, retried JSON GET requests for one source
type HTTPClient struct {
	name    Name
	client  *http.Client
	limiter *RateLimiter
	retry   *util.RetryConfig
	header  http.Header
}

// NewHTTPClient creates a client for name. timeout applies per request.
func NewHTTPClient(name Name, limiter *RateLimiter, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	h := http.Header{}
	h.Set("User-Agent", UserAgent)
	h.Set("Accept", "application/json")
	return &HTTPClient{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		retry:   util.HTTPRetryConfig(),
		header:  h,
	}
}

// SetHeader adds a header sent with every request
func (c *HTTPClient) SetHeader(key, value string) {
	c.header.Set(key, value)
}

// SetRetry replaces the retry policy (tests use a single attempt)
func (c *HTTPClient) SetRetry(cfg *util.RetryConfig) {
	c.retry = cfg
}

// GetJSON fetches reqURL and decodes the body into dst
func (c *HTTPClient) GetJSON(ctx context.Context, reqURL string, dst any) error {
	body, err := util.RetryWithBackoff(ctx, c.retry, func() ([]byte, error) {
		return c.get(ctx, reqURL)
	}, fmt.Sprintf("%s GET", c.name))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &ErrMalformed{Source: c.name, Cause: err}
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, c.name); err != nil {
		return nil, &ErrSourceUnavailable{Source: c.name, Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}

	util.DebugLog("%s API: GET %s", c.name.DisplayName(), reqURL)

	resp, err := c.client.Do(req)
	c.limiter.Record(ctx, c.name)
	if err != nil {
		return nil, &ErrSourceUnavailable{Source: c.name, Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// continue
	case resp.StatusCode == http.StatusNotFound:
		return nil, &ErrNotFound{Source: c.name, ID: reqURL}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ErrAuthRequired{Source: c.name}
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ErrSourceUnavailable{
			Source:     c.name,
			Status:     resp.StatusCode,
			Cause:      fmt.Errorf("unexpected status: %s", string(snippet)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &ErrSourceUnavailable{Source: c.name, Cause: fmt.Errorf("reading body: %w", err)}
	}
	return body, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
