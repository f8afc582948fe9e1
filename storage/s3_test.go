package storage

import (
	"context"
	stderrors "errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

func TestNewS3Backend(t *testing.T) {
	tests := []struct {
		name    string
		bucket  string
		opts    []Option
		wantErr bool
	}{
		{name: "valid", bucket: "gfs-wind"},
		{name: "invalid bucket", bucket: "GFS_Wind", wantErr: true},
		{name: "invalid content type", bucket: "gfs-wind", opts: []Option{WithContentType("grib")}, wantErr: true},
		{name: "reserved metadata", bucket: "gfs-wind", opts: []Option{WithMetadata(map[string]string{"x-amz-foo": "x"})}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewS3Backend(&testutil.MockS3Client{}, tt.bucket, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, b.Bucket())
		})
	}
}

func TestS3Backend_InitiateUpload(t *testing.T) {
	var captured *s3.CreateMultipartUploadInput
	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(
			_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options),
		) (*s3.CreateMultipartUploadOutput, error) {
			captured = params
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
	}

	b, err := NewS3Backend(mock, "gfs-wind",
		WithContentType("application/x-grib2"),
		WithStorageClass("STANDARD_IA"),
		WithMetadata(map[string]string{"cycle": "2020010100"}),
		WithServerSideEncryption(SSEKMS, "key-id"),
	)
	require.NoError(t, err)

	id, err := b.InitiateUpload(context.Background(), "wind/wind_20200101_00.grb2")
	require.NoError(t, err)
	assert.Equal(t, "upload-1", id)

	require.NotNil(t, captured)
	assert.Equal(t, "gfs-wind", aws.ToString(captured.Bucket))
	assert.Equal(t, "wind/wind_20200101_00.grb2", aws.ToString(captured.Key))
	assert.Equal(t, "application/x-grib2", aws.ToString(captured.ContentType))
	assert.Equal(t, awstypes.StorageClass("STANDARD_IA"), captured.StorageClass)
	assert.Equal(t, "2020010100", captured.Metadata["cycle"])
	assert.Equal(t, awstypes.ServerSideEncryptionAwsKms, captured.ServerSideEncryption)
	assert.Equal(t, "key-id", aws.ToString(captured.SSEKMSKeyId))
}

func TestS3Backend_UploadPart(t *testing.T) {
	var body []byte
	mock := &testutil.MockS3Client{
		UploadPartFunc: func(
			_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options),
		) (*s3.UploadPartOutput, error) {
			assert.Equal(t, int32(3), aws.ToInt32(params.PartNumber))
			assert.Equal(t, "upload-1", aws.ToString(params.UploadId))
			assert.Equal(t, int64(5), aws.ToInt64(params.ContentLength))
			var err error
			body, err = io.ReadAll(params.Body)
			require.NoError(t, err)
			return &s3.UploadPartOutput{ETag: aws.String(`"etag-3"`)}, nil
		},
	}
	b, err := NewS3Backend(mock, "gfs-wind")
	require.NoError(t, err)

	etag, err := b.UploadPart(context.Background(), "k", "upload-1", 3, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, `"etag-3"`, etag)
	assert.Equal(t, []byte("hello"), body)
}

func TestS3Backend_CompleteUpload(t *testing.T) {
	var captured *s3.CompleteMultipartUploadInput
	mock := &testutil.MockS3Client{
		CompleteMultipartUploadFunc: func(
			_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options),
		) (*s3.CompleteMultipartUploadOutput, error) {
			captured = params
			return &s3.CompleteMultipartUploadOutput{}, nil
		},
	}
	b, err := NewS3Backend(mock, "gfs-wind")
	require.NoError(t, err)

	parts := []upload.Part{{Number: 1, ETag: "a"}, {Number: 2, ETag: "b"}}
	require.NoError(t, b.CompleteUpload(context.Background(), "k", "upload-1", parts))

	require.NotNil(t, captured)
	require.Len(t, captured.MultipartUpload.Parts, 2)
	for i, p := range captured.MultipartUpload.Parts {
		assert.Equal(t, parts[i].Number, aws.ToInt32(p.PartNumber))
		assert.Equal(t, parts[i].ETag, aws.ToString(p.ETag))
	}
}

func TestS3Backend_ErrorCodes(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "NoSuchUpload", Message: "upload does not exist"}
	mock := &testutil.MockS3Client{
		AbortMultipartUploadFunc: func(
			context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options),
		) (*s3.AbortMultipartUploadOutput, error) {
			return nil, apiErr
		},
		CreateMultipartUploadFunc: func(
			context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options),
		) (*s3.CreateMultipartUploadOutput, error) {
			return nil, stderrors.New("dial tcp: connection refused")
		},
	}
	b, err := NewS3Backend(mock, "gfs-wind")
	require.NoError(t, err)

	err = b.AbortUpload(context.Background(), "k", "upload-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchUpload")
	assert.ErrorIs(t, err, apiErr)

	_, err = b.InitiateUpload(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CreateMultipartUpload")
}

func TestS3Backend_WithManager(t *testing.T) {
	ctx := context.Background()
	var uploaded []int32
	aborted := false
	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(
			context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options),
		) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		UploadPartFunc: func(
			_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options),
		) (*s3.UploadPartOutput, error) {
			n := aws.ToInt32(params.PartNumber)
			if n == 2 {
				return nil, &smithy.GenericAPIError{Code: "SlowDown"}
			}
			uploaded = append(uploaded, n)
			return &s3.UploadPartOutput{ETag: aws.String("etag")}, nil
		},
		AbortMultipartUploadFunc: func(
			context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options),
		) (*s3.AbortMultipartUploadOutput, error) {
			aborted = true
			return &s3.AbortMultipartUploadOutput{}, nil
		},
	}
	b, err := NewS3Backend(mock, "gfs-wind")
	require.NoError(t, err)

	m := upload.NewManager(b, upload.WithPartSize(10))
	require.NoError(t, m.Initiate(ctx, "k"))

	err = m.Write(ctx, make([]byte, 25))
	require.Error(t, err)
	assert.True(t, errors.IsStorageFailure(err))
	assert.Contains(t, err.Error(), "SlowDown")

	require.NoError(t, m.Abort(ctx))
	assert.True(t, aborted)
	assert.Equal(t, []int32{1}, uploaded)
}
