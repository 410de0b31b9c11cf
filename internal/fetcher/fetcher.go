// Package fetcher downloads the CRM feed over HTTP, FTP or from disk.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Credentials authenticate against the feed host. Empty means anonymous.
type Credentials struct {
	Username string
	Password string
}

// Options configures For.
type Options struct {
	Credentials Credentials
	Timeout     time.Duration
	UserAgent   string
}

// For returns the fetcher for rawURL's scheme. Bare paths and file:// URLs
// read from the local filesystem.
func For(rawURL string, opts Options) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPFetcher(HTTPOptions{
			UserAgent:   opts.UserAgent,
			Timeout:     opts.Timeout,
			Credentials: opts.Credentials,
		}), nil
	case "ftp":
		return NewFTPFetcher(FTPOptions{Timeout: opts.Timeout, Credentials: opts.Credentials}), nil
	case "", "file":
		return FileFetcher{}, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

// FileFetcher reads local files.
type FileFetcher struct{}

// Download opens path, accepting either a plain path or a file:// URL.
func (FileFetcher) Download(_ context.Context, path string) (io.ReadCloser, error) {
	if u, err := url.Parse(path); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open file")
	}
	return f, nil
}
