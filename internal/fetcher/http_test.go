package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/listing-recon/internal/resilience"
)

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func newTestFetcher(opts HTTPOptions) *HTTPFetcher {
	opts.UserAgent = "test-agent"
	opts.Timeout = 5 * time.Second
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = fastRetry(3)
	}
	return NewHTTPFetcher(opts)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<feed/>"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(HTTPOptions{}).Download(context.Background(), srv.URL+"/feed.xml")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "<feed/>", string(data))
}

func TestDownload_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "crm" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := newTestFetcher(HTTPOptions{}).Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 401")

	f := newTestFetcher(HTTPOptions{Credentials: Credentials{Username: "crm", Password: "secret"}})
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = body.Close()
}

func TestDownloadIfChanged_NotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v2"`)
		_, _ = w.Write([]byte("new content"))
	}))
	defer srv.Close()

	f := newTestFetcher(HTTPOptions{})
	body, etag, changed, err := f.DownloadIfChanged(context.Background(), srv.URL, `"v1"`)
	require.NoError(t, err)
	assert.Nil(t, body)
	assert.False(t, changed)
	assert.Equal(t, `"v1"`, etag)

	body, etag, changed, err = f.DownloadIfChanged(context.Background(), srv.URL, `"v0"`)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, `"v2"`, etag)
	data, err := io.ReadAll(body)
	_ = body.Close()
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))
}

func TestDownloadIfChanged_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, _, _, err := newTestFetcher(HTTPOptions{}).DownloadIfChanged(context.Background(), srv.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(HTTPOptions{}).Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetryExhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestFetcher(HTTPOptions{Retry: fastRetry(2)}).Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 429")
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(HTTPOptions{}).Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRateLimiting(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(HTTPOptions{Limiter: rate.NewLimiter(4, 1)})
	start := time.Now()
	for range 3 {
		body, err := f.Download(context.Background(), srv.URL)
		require.NoError(t, err)
		_ = body.Close()
	}
	assert.Equal(t, int32(3), count.Load())
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestDownload_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestFetcher(HTTPOptions{}).Download(ctx, srv.URL)
	require.Error(t, err)
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, "listing-recon/1.0", f.opts.UserAgent)
	assert.Equal(t, 120*time.Second, f.client.Timeout)
	assert.Equal(t, 3, f.opts.Retry.MaxAttempts)
	assert.NotNil(t, f.limiter)
}

func TestFor(t *testing.T) {
	f, err := For("https://crm.example.com/feed.xml", Options{})
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)

	f, err = For("ftp://ftp.example.com/feed.xml", Options{})
	require.NoError(t, err)
	assert.IsType(t, &FTPFetcher{}, f)

	f, err = For("testdata/feed.xml", Options{})
	require.NoError(t, err)
	assert.IsType(t, FileFetcher{}, f)

	_, err = For("s3://bucket/feed.xml", Options{})
	require.Error(t, err)
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	require.NoError(t, os.WriteFile(path, []byte("<feed/>"), 0o644))

	for _, name := range []string{path, "file://" + path} {
		body, err := FileFetcher{}.Download(context.Background(), name)
		require.NoError(t, err)
		data, err := io.ReadAll(body)
		_ = body.Close()
		require.NoError(t, err)
		assert.Equal(t, "<feed/>", string(data))
	}

	_, err := FileFetcher{}.Download(context.Background(), filepath.Join(t.TempDir(), "missing.xml"))
	require.Error(t, err)
}
