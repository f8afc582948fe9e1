package upload

import "log/slog"

const (
	// MinPartSize is the smallest part accepted by S3-compatible backends for
	// every part except the last.
	MinPartSize = 5 * 1024 * 1024

	// DefaultPartSize is the flush threshold used when none is configured.
	DefaultPartSize = MinPartSize
)

// options holds Manager configuration.
type options struct {
	partSize int
	capacity int
	logger   *slog.Logger
}

// Option is a functional option for configuring a Manager.
type Option func(*options)

// WithPartSize sets the flush threshold, which is also the size of every
// automatically flushed part. The buffer capacity defaults to twice this
// value. Default is 5MiB.
func WithPartSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.partSize = size
		}
	}
}

// WithCapacity overrides the pending buffer capacity. Values below the part
// size are raised to the part size.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.capacity = capacity
		}
	}
}

// WithLogger configures the manager with a logger.
// If logger is nil, logging will be disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func defaultOptions() *options {
	return &options{
		partSize: DefaultPartSize,
	}
}
