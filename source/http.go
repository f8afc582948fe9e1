package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/pool"
)

// DefaultHTTPTimeout bounds one whole download.
const DefaultHTTPTimeout = 10 * time.Minute

// HTTPFetcher streams files over HTTP(S).
type HTTPFetcher struct {
	client    *http.Client
	chunkSize int
	userAgent string
	logger    *slog.Logger
	buffers   *pool.BufferPool
}

// HTTPOption is a functional option for configuring an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient sets the HTTP client. The default has a 10 minute timeout.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithChunkSize sets the maximum chunk length returned by Next.
func WithChunkSize(size int) HTTPOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.chunkSize = size
		}
	}
}

// WithUserAgent sets the User-Agent request header.
func WithUserAgent(userAgent string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.userAgent = userAgent
	}
}

// WithLogger configures the fetcher with a logger.
// If logger is nil, logging will be disabled.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: DefaultHTTPTimeout},
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	f.buffers = newBufferPool(f.chunkSize)
	return f
}

// Open issues a GET for url. Transport errors and non-2xx responses are
// NetworkFailures.
func (f *HTTPFetcher) Open(ctx context.Context, url string) (Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.InvalidInput("open", "invalid url %q: %v", url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Network("open", err).WithMessage(fmt.Sprintf("failed to request %s", url))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, errors.Network("open", fmt.Errorf("HTTP %s for %s", resp.Status, url))
	}

	f.logger.DebugContext(ctx, "download started", "url", url, "content_length", resp.ContentLength)
	return newReaderSource(url, resp.Body, resp.ContentLength, f.buffers), nil
}

// Verify interface compliance
var _ Fetcher = (*HTTPFetcher)(nil)
