package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/listing-recon/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	Credentials Credentials
	// Limiter throttles requests. Nil allows 5 requests per second.
	Limiter *rate.Limiter
	Retry   resilience.RetryConfig
}

// HTTPFetcher implements Fetcher using net/http with retry and rate limiting.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "listing-recon/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2,
			JitterFraction: 0.25,
		}
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.LogRetry("feed")
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(5, 5)
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:    opts,
		limiter: limiter,
	}
}

func (f *HTTPFetcher) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if c := f.opts.Credentials; c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
	return req, nil
}

// do sends req, retrying network failures, 429 and 5xx responses.
func (f *HTTPFetcher) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return resilience.Do(ctx, f.opts.Retry, func(ctx context.Context) (*http.Response, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			return nil, resilience.NewTransientError(
				eris.Errorf("http %d from %s", resp.StatusCode, req.URL.Redacted()), resp.StatusCode)
		}
		return resp, nil
	})
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := f.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := f.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, req.URL.Redacted())
	}

	return resp.Body, nil
}

// DownloadIfChanged fetches the URL only if the ETag has changed.
// Returns (body, newETag, changed, error). If not changed, body is nil.
func (f *HTTPFetcher) DownloadIfChanged(ctx context.Context, rawURL string, etag string) (io.ReadCloser, string, bool, error) {
	req, err := f.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, "", false, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.do(ctx, req)
	if err != nil {
		return nil, "", false, eris.Wrap(err, "download if changed")
	}

	if resp.StatusCode == http.StatusNotModified {
		_ = resp.Body.Close()
		return nil, etag, false, nil
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, "", false, eris.Errorf("download if changed: unexpected status %d from %s", resp.StatusCode, req.URL.Redacted())
	}

	return resp.Body, resp.Header.Get("ETag"), true, nil
}
