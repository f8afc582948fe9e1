package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

// S3Config configures the shared AWS S3 client.
type S3Config struct {
	// Region overrides the region from the default credential chain.
	// Defaults to us-east-1 when neither is set.
	Region string

	// Endpoint is a custom S3 endpoint (LocalStack, S3-compatible stores)
	Endpoint string

	// UsePathStyle forces path-style addressing
	UsePathStyle bool

	// MaxRetries is the SDK retry attempt limit (0 keeps the SDK default)
	MaxRetries int

	// Timeout bounds every HTTP request (0 means no timeout)
	Timeout time.Duration
}

// NewS3Client creates an S3 client using the default AWS credential chain.
// The client is meant to be created once and shared by every S3Backend.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Storage("newS3Client", err).WithMessage("failed to load AWS configuration")
	}

	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}

	if cfg.MaxRetries > 0 {
		awsCfg.RetryMaxAttempts = cfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.Timeout > 0 {
		httpClient := &http.Client{Timeout: cfg.Timeout}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// S3Backend implements upload.Backend with the S3 multipart upload API.
type S3Backend struct {
	client s3api.S3API
	bucket string
	opts   *backendOptions
	logger *slog.Logger
}

// NewS3Backend creates a backend writing to bucket through client.
func NewS3Backend(client s3api.S3API, bucket string, opts ...Option) (*S3Backend, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, err
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &S3Backend{
		client: client,
		bucket: bucket,
		opts:   o,
		logger: o.logger,
	}, nil
}

// Bucket returns the destination bucket.
func (b *S3Backend) Bucket() string {
	return b.bucket
}

// InitiateUpload implements upload.Backend.
func (b *S3Backend) InitiateUpload(ctx context.Context, key string) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(b.opts.contentType),
	}

	if b.opts.storageClass != "" {
		input.StorageClass = awstypes.StorageClass(b.opts.storageClass)
	}
	if len(b.opts.metadata) > 0 {
		input.Metadata = b.opts.metadata
	}

	switch b.opts.sse {
	case SSES3:
		input.ServerSideEncryption = awstypes.ServerSideEncryptionAes256
	case SSEKMS:
		input.ServerSideEncryption = awstypes.ServerSideEncryptionAwsKms
		if b.opts.kmsKeyID != "" {
			input.SSEKMSKeyId = aws.String(b.opts.kmsKeyID)
		}
	}

	output, err := b.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", wrapS3Error("CreateMultipartUpload", err)
	}

	b.logger.DebugContext(ctx, "created S3 multipart upload",
		"bucket", b.bucket, "key", key, "upload_id", aws.ToString(output.UploadId))
	return aws.ToString(output.UploadId), nil
}

// UploadPart implements upload.Backend.
func (b *S3Backend) UploadPart(
	ctx context.Context,
	key, uploadID string,
	partNumber int32,
	data []byte,
) (string, error) {
	output, err := b.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", wrapS3Error("UploadPart", err)
	}
	return aws.ToString(output.ETag), nil
}

// CompleteUpload implements upload.Backend.
func (b *S3Backend) CompleteUpload(ctx context.Context, key, uploadID string, parts []upload.Part) error {
	completed := make([]awstypes.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, awstypes.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.Number),
		})
	}

	_, err := b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return wrapS3Error("CompleteMultipartUpload", err)
	}
	return nil
}

// AbortUpload implements upload.Backend.
func (b *S3Backend) AbortUpload(ctx context.Context, key, uploadID string) error {
	_, err := b.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return wrapS3Error("AbortMultipartUpload", err)
	}
	return nil
}

// wrapS3Error prefixes err with the S3 operation and, when available, the
// service error code.
func wrapS3Error(op string, err error) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return fmt.Errorf("s3 %s failed (%s): %w", op, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("s3 %s failed: %w", op, err)
}

// Verify interface compliance
var _ upload.Backend = (*S3Backend)(nil)
