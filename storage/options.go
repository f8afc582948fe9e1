package storage

import (
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/validation"
)

// DefaultContentType is the content type of uploaded GRIB2 objects.
const DefaultContentType = "application/octet-stream"

// SSEType is a server-side encryption mode for S3 uploads.
type SSEType string

const (
	// SSES3 encrypts with S3-managed keys.
	SSES3 SSEType = "AES256"
	// SSEKMS encrypts with an AWS KMS key.
	SSEKMS SSEType = "aws:kms"
)

// backendOptions holds object attributes shared by all backends.
type backendOptions struct {
	contentType  string
	metadata     map[string]string
	storageClass string
	sse          SSEType
	kmsKeyID     string
	logger       *slog.Logger
}

// Option is a functional option for configuring a backend.
type Option func(*backendOptions)

// WithContentType sets the content type of completed objects.
func WithContentType(contentType string) Option {
	return func(o *backendOptions) {
		o.contentType = contentType
	}
}

// WithMetadata attaches user metadata to completed objects.
func WithMetadata(metadata map[string]string) Option {
	return func(o *backendOptions) {
		o.metadata = metadata
	}
}

// WithStorageClass sets the storage class for S3 and MinIO uploads.
func WithStorageClass(storageClass string) Option {
	return func(o *backendOptions) {
		o.storageClass = storageClass
	}
}

// WithServerSideEncryption enables server-side encryption for S3 uploads.
// kmsKeyID is only used with SSEKMS and may be empty for the account default key.
func WithServerSideEncryption(sse SSEType, kmsKeyID string) Option {
	return func(o *backendOptions) {
		o.sse = sse
		o.kmsKeyID = kmsKeyID
	}
}

// WithLogger configures the backend with a logger.
// If logger is nil, logging will be disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *backendOptions) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) (*backendOptions, error) {
	o := &backendOptions{contentType: DefaultContentType}
	for _, opt := range opts {
		opt(o)
	}

	if err := validation.ValidateContentType(o.contentType); err != nil {
		return nil, err
	}
	if err := validation.ValidateMetadata(o.metadata); err != nil {
		return nil, err
	}
	if o.contentType == "" {
		o.contentType = DefaultContentType
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o, nil
}
