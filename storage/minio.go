package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

// MinioCore is the subset of *minio.Core used by MinioBackend.
type MinioCore interface {
	NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error)
	PutObjectPart(
		ctx context.Context,
		bucket, object, uploadID string,
		partID int,
		data io.Reader,
		size int64,
		opts minio.PutObjectPartOptions,
	) (minio.ObjectPart, error)
	CompleteMultipartUpload(
		ctx context.Context,
		bucket, object, uploadID string,
		parts []minio.CompletePart,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error
}

// MinioConfig configures a connection to a MinIO or other S3-compatible server.
type MinioConfig struct {
	// Endpoint is host[:port] without scheme
	Endpoint string

	AccessKey    string
	SecretKey    string
	SessionToken string

	Region string
	UseSSL bool
}

// NewMinioCore creates a low-level MinIO client from static credentials.
func NewMinioCore(cfg MinioConfig) (*minio.Core, error) {
	if cfg.Endpoint == "" {
		return nil, errors.InvalidInput("newMinioCore", "endpoint cannot be empty")
	}

	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Storage("newMinioCore", err)
	}
	return core, nil
}

// MinioBackend implements upload.Backend with the minio-go multipart API.
type MinioBackend struct {
	core   MinioCore
	bucket string
	opts   *backendOptions
	logger *slog.Logger
}

// NewMinioBackend creates a backend writing to bucket through core.
func NewMinioBackend(core MinioCore, bucket string, opts ...Option) (*MinioBackend, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, err
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &MinioBackend{
		core:   core,
		bucket: bucket,
		opts:   o,
		logger: o.logger,
	}, nil
}

// Bucket returns the destination bucket.
func (b *MinioBackend) Bucket() string {
	return b.bucket
}

// InitiateUpload implements upload.Backend.
func (b *MinioBackend) InitiateUpload(ctx context.Context, key string) (string, error) {
	uploadID, err := b.core.NewMultipartUpload(ctx, b.bucket, key, b.putOptions())
	if err != nil {
		return "", wrapMinioError("NewMultipartUpload", err)
	}

	b.logger.DebugContext(ctx, "created MinIO multipart upload",
		"bucket", b.bucket, "key", key, "upload_id", uploadID)
	return uploadID, nil
}

// UploadPart implements upload.Backend.
func (b *MinioBackend) UploadPart(
	ctx context.Context,
	key, uploadID string,
	partNumber int32,
	data []byte,
) (string, error) {
	part, err := b.core.PutObjectPart(ctx, b.bucket, key, uploadID, int(partNumber),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectPartOptions{})
	if err != nil {
		return "", wrapMinioError("PutObjectPart", err)
	}
	return part.ETag, nil
}

// CompleteUpload implements upload.Backend.
func (b *MinioBackend) CompleteUpload(ctx context.Context, key, uploadID string, parts []upload.Part) error {
	completed := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, minio.CompletePart{
			PartNumber: int(p.Number),
			ETag:       p.ETag,
		})
	}

	if _, err := b.core.CompleteMultipartUpload(ctx, b.bucket, key, uploadID, completed, b.putOptions()); err != nil {
		return wrapMinioError("CompleteMultipartUpload", err)
	}
	return nil
}

// AbortUpload implements upload.Backend.
func (b *MinioBackend) AbortUpload(ctx context.Context, key, uploadID string) error {
	if err := b.core.AbortMultipartUpload(ctx, b.bucket, key, uploadID); err != nil {
		return wrapMinioError("AbortMultipartUpload", err)
	}
	return nil
}

func (b *MinioBackend) putOptions() minio.PutObjectOptions {
	return minio.PutObjectOptions{
		ContentType:  b.opts.contentType,
		UserMetadata: b.opts.metadata,
		StorageClass: b.opts.storageClass,
	}
}

// wrapMinioError prefixes err with the operation and the server error code.
func wrapMinioError(op string, err error) error {
	if code := minio.ToErrorResponse(err).Code; code != "" {
		return fmt.Errorf("minio %s failed (%s): %w", op, code, err)
	}
	return fmt.Errorf("minio %s failed: %w", op, err)
}

// Verify interface compliance
var (
	_ upload.Backend = (*MinioBackend)(nil)
	_ MinioCore      = (*minio.Core)(nil)
)
