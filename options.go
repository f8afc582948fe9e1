package windstream

import (
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/grib"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/source"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

// options holds Client configuration.
type options struct {
	fetcher          source.Fetcher
	concurrency      int
	partSize         int
	maxRecordSize    uint64
	progressInterval int64
	logger           *slog.Logger
}

// Option is a functional option for configuring a Client.
type Option func(*options)

// WithFetcher sets how job locations are opened. The default routes http(s)
// URLs to an HTTPFetcher and other paths to the local filesystem.
func WithFetcher(fetcher source.Fetcher) Option {
	return func(o *options) {
		if fetcher != nil {
			o.fetcher = fetcher
		}
	}
}

// WithConcurrency sets the number of files processed at once by
// ProcessBatch. Default is 1 (sequential).
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithPartSize sets the multipart flush threshold. Default is 5MiB.
func WithPartSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.partSize = size
		}
	}
}

// WithMaxRecordSize sets the largest plausible GRIB2 record. Default is 1GB.
func WithMaxRecordSize(size uint64) Option {
	return func(o *options) {
		o.maxRecordSize = size
	}
}

// WithProgressInterval sets how many bytes are read between progress logs.
// Zero or less disables progress logging.
func WithProgressInterval(n int64) Option {
	return func(o *options) {
		o.progressInterval = n
	}
}

// WithLogger configures the client with a logger.
// If logger is nil, logging will be disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func defaultOptions() *options {
	return &options{
		concurrency:      1,
		partSize:         upload.DefaultPartSize,
		maxRecordSize:    grib.DefaultMaxRecordSize,
		progressInterval: 64 * 1024 * 1024,
	}
}
