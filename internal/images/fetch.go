package images

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gitmatrixmax/google-dictionary/internal/logger"
)

// StatusError is returned for a non-2xx provider reply.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// apiClient holds what every provider needs to call its API: an endpoint,
// a per-call timeout and an optional rate limit.
type apiClient struct {
	http     *http.Client
	endpoint string
	timeout  time.Duration
	limiter  *rate.Limiter
	log      *zap.Logger
}

// ProviderOption adjusts a provider at construction.
type ProviderOption func(*apiClient)

// WithEndpoint overrides the provider's API URL.
func WithEndpoint(endpoint string) ProviderOption {
	return func(c *apiClient) { c.endpoint = endpoint }
}

// WithRequestTimeout overrides the per-call timeout.
func WithRequestTimeout(d time.Duration) ProviderOption {
	return func(c *apiClient) { c.timeout = d }
}

// WithRateLimit allows at most rps calls per second; 0 disables limiting.
func WithRateLimit(rps float64) ProviderOption {
	return func(c *apiClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithHTTPClient(client *http.Client) ProviderOption {
	return func(c *apiClient) { c.http = client }
}

func WithProviderLogger(l *zap.Logger) ProviderOption {
	return func(c *apiClient) { c.log = l }
}

func newAPIClient(name, endpoint string, timeout time.Duration, opts []ProviderOption) apiClient {
	c := apiClient{
		http:     &http.Client{},
		endpoint: endpoint,
		timeout:  timeout,
	}
	for _, opt := range opts {
		opt(&c)
	}
	c.log = logger.Named(c.log, "images."+name)
	return c
}

// getJSON performs a GET bounded by the client timeout and decodes a 2xx body into out.
// Waiting for the rate limiter counts against the same deadline.
func (c *apiClient) getJSON(ctx context.Context, params url.Values, header http.Header, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limited: %w", err)
		}
	}

	target := c.endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
