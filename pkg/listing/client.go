// Package listing provides a client for property listing platform search APIs.
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Record is one listing in the platform's native shape.
type Record = map[string]any

// Client defines the listing platform operations.
type Client interface {
	// Search returns the listings the platform matches to a free-text address.
	Search(ctx context.Context, address string) ([]Record, error)
	// Get fetches a single listing by its platform id. A missing listing
	// returns (nil, nil).
	Get(ctx context.Context, id string) (Record, error)
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("listing: unexpected status %d: %s", e.StatusCode, body)
}

// Option configures the listing client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithSearchPath sets the search endpoint path. Default: "/search".
func WithSearchPath(p string) Option {
	return func(c *httpClient) {
		if p != "" {
			c.searchPath = p
		}
	}
}

// WithItemPath sets the item endpoint path prefix. The listing id is
// appended. Default: "/listings".
func WithItemPath(p string) Option {
	return func(c *httpClient) {
		if p != "" {
			c.itemPath = p
		}
	}
}

// WithResultsKey names the JSON key holding the result array in search
// responses. Empty means the response body is the array itself.
func WithResultsKey(k string) Option {
	return func(c *httpClient) {
		c.resultsKey = k
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	baseURL    string
	apiKey     string
	searchPath string
	itemPath   string
	resultsKey string
	limiter    *rate.Limiter
	http       *http.Client
}

// NewClient creates a listing client for the platform at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		searchPath: "/search",
		itemPath:   "/listings",
		resultsKey: "results",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, address string) ([]Record, error) {
	q := url.Values{}
	q.Set("address", address)
	body, status, err := c.do(ctx, c.baseURL+c.searchPath+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}

	if c.resultsKey == "" {
		var records []Record
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, eris.Wrap(err, "listing: decode search response")
		}
		return records, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "listing: decode search response")
	}
	raw, ok := envelope[c.resultsKey]
	if !ok || string(raw) == "null" {
		return []Record{}, nil
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, eris.Wrapf(err, "listing: decode %q results", c.resultsKey)
	}
	return records, nil
}

func (c *httpClient) Get(ctx context.Context, id string) (Record, error) {
	body, status, err := c.do(ctx, c.baseURL+c.itemPath+"/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, eris.Wrap(err, "listing: decode listing")
	}
	return rec, nil
}

func (c *httpClient) do(ctx context.Context, reqURL string) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, eris.Wrap(err, "listing: rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "listing: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "listing: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "listing: read response body")
	}
	return body, resp.StatusCode, nil
}
