package source

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/model"
	"github.com/sells-group/listing-recon/internal/resilience"
	"github.com/sells-group/listing-recon/pkg/listing"
)

// REST is an adapter for a listing platform's JSON search API. Calls are
// retried on transient failures and guarded by a per-source circuit breaker.
type REST struct {
	src     fieldmap.Source
	client  listing.Client
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// RESTOption configures a REST adapter.
type RESTOption func(*REST)

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) RESTOption {
	return func(r *REST) {
		r.retry = cfg
	}
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg resilience.BreakerConfig) RESTOption {
	return func(r *REST) {
		r.breaker = resilience.NewBreaker(r.src.Name, cfg)
	}
}

// NewREST creates a REST adapter for src backed by client.
func NewREST(src fieldmap.Source, client listing.Client, opts ...RESTOption) *REST {
	r := &REST{
		src:     src,
		client:  client,
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewBreaker(src.Name, resilience.DefaultBreakerConfig()),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.retry.OnRetry == nil {
		r.retry.OnRetry = resilience.LogRetry(src.Name)
	}
	return r
}

// Name implements Adapter.
func (r *REST) Name() string { return r.src.Name }

// BreakerState implements BreakerStater.
func (r *REST) BreakerState() string { return r.breaker.State() }

// SearchByAddress implements Adapter.
func (r *REST) SearchByAddress(ctx context.Context, address string) ([]model.Candidate, error) {
	records, err := resilience.Execute(r.breaker, func() ([]listing.Record, error) {
		return resilience.Do(ctx, r.retry, func(ctx context.Context) ([]listing.Record, error) {
			recs, err := r.client.Search(ctx, address)
			return recs, classify(err)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "source: %s search", r.src.Name)
	}

	out := make([]model.Candidate, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		out = append(out, toCandidate(&r.src, rec))
	}
	zap.L().Debug("source search complete",
		zap.String("source", r.src.Name),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}

// GetByID implements IDLookup.
func (r *REST) GetByID(ctx context.Context, id string) (*model.Candidate, error) {
	rec, err := resilience.Execute(r.breaker, func() (listing.Record, error) {
		return resilience.Do(ctx, r.retry, func(ctx context.Context) (listing.Record, error) {
			rec, err := r.client.Get(ctx, id)
			return rec, classify(err)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "source: %s get %s", r.src.Name, id)
	}
	if rec == nil {
		return nil, nil
	}
	c := toCandidate(&r.src, rec)
	return &c, nil
}

// classify marks retryable API statuses as transient.
func classify(err error) error {
	var apiErr *listing.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientError(err, apiErr.StatusCode)
	}
	return err
}
