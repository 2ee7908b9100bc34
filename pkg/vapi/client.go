// Package vapi provides a client for the voice-AI vendor's call API.
package vapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the vendor call operations the pipeline uses.
type Client interface {
	// GetCall fetches the call-detail artifact by vendor call id. The raw
	// body is returned so callers can probe whichever schema revision the
	// vendor is currently emitting.
	GetCall(ctx context.Context, callID string) (*CallDetail, error)
}

// CallDetail is the vendor's call-by-id response.
type CallDetail struct {
	ID  string
	Raw []byte
}

// Option configures the vapi client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a vendor API client authenticated by API key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.vapi.ai",
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) GetCall(ctx context.Context, callID string) (*CallDetail, error) {
	if callID == "" {
		return nil, eris.New("vapi: empty call id")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "vapi: rate limit")
	}

	reqURL := fmt.Sprintf("%s/call/%s", c.baseURL, url.PathEscape(callID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "vapi: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "vapi: get call")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "vapi: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("vapi: get call %s: status %d: %s", callID, resp.StatusCode, string(body))
	}

	return &CallDetail{ID: callID, Raw: body}, nil
}
