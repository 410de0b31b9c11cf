// Package salesforce pushes listing audit records to Salesforce over the REST API.
package salesforce

import (
	"context"
	"fmt"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// MaxBatchSize is the Salesforce Collections API limit per request.
const MaxBatchSize = 200

// Client defines the Salesforce API operations used by the audit job.
type Client interface {
	InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error)
}

// CollectionResult is the outcome of a single record in a collection operation.
type CollectionResult struct {
	ID      string   `json:"id"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// ClientOption configures the Salesforce client.
type ClientOption func(*sfClient)

// WithRateLimit sets a per-second rate limit for SF API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) ClientOption {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithBatchSize overrides the records sent per collection request (1-200).
func WithBatchSize(n int) ClientOption {
	return func(c *sfClient) {
		if n > 0 && n <= MaxBatchSize {
			c.batchSize = n
		}
	}
}

// sfClient wraps go-salesforce, which takes no context; ctx only bounds the
// rate limiter wait.
type sfClient struct {
	sf        *salesforce.Salesforce
	limiter   *rate.Limiter
	batchSize int
}

// NewClient creates a new Salesforce Client wrapping the given go-salesforce instance.
func NewClient(sf *salesforce.Salesforce, opts ...ClientOption) Client {
	c := &sfClient{sf: sf, batchSize: MaxBatchSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config holds JWT bearer-flow credentials.
type Config struct {
	LoginURL   string
	Username   string
	ClientID   string
	PrivateKey string
}

// Dial authenticates with the JWT bearer flow and returns a Client.
func Dial(cfg Config, opts ...ClientOption) (Client, error) {
	if cfg.ClientID == "" {
		return nil, eris.New("sf: client id is required")
	}
	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.LoginURL,
		Username:       cfg.Username,
		ConsumerKey:    cfg.ClientID,
		ConsumerRSAPem: cfg.PrivateKey,
	})
	if err != nil {
		return nil, eris.Wrap(err, "sf: init")
	}
	return NewClient(sf, opts...), nil
}

func (c *sfClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *sfClient) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sf: rate limit")
	}
	sfResults, err := c.sf.InsertCollection(sObjectName, records, c.batchSize)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: insert collection %s", sObjectName))
	}

	results := make([]CollectionResult, len(sfResults.Results))
	for i, r := range sfResults.Results {
		var errs []string
		for _, e := range r.Errors {
			errs = append(errs, e.Message)
		}
		results[i] = CollectionResult{
			ID:      r.Id,
			Success: r.Success,
			Errors:  errs,
		}
	}
	return results, nil
}
