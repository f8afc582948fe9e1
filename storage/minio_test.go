package storage

import (
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

// fakeMinioCore records multipart calls.
type fakeMinioCore struct {
	putOpts   minio.PutObjectOptions
	parts     map[int][]byte
	completed []minio.CompletePart
	aborted   bool
	err       error
}

func (f *fakeMinioCore) NewMultipartUpload(
	_ context.Context, _, _ string, opts minio.PutObjectOptions,
) (string, error) {
	f.putOpts = opts
	f.parts = make(map[int][]byte)
	return "minio-upload", f.err
}

func (f *fakeMinioCore) PutObjectPart(
	_ context.Context, _, _, _ string, partID int, data io.Reader, size int64, _ minio.PutObjectPartOptions,
) (minio.ObjectPart, error) {
	if f.err != nil {
		return minio.ObjectPart{}, f.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return minio.ObjectPart{}, err
	}
	if int64(len(b)) != size {
		return minio.ObjectPart{}, io.ErrShortWrite
	}
	f.parts[partID] = b
	return minio.ObjectPart{PartNumber: partID, ETag: "etag-" + string(rune('0'+partID))}, nil
}

func (f *fakeMinioCore) CompleteMultipartUpload(
	_ context.Context, _, _, _ string, parts []minio.CompletePart, _ minio.PutObjectOptions,
) (minio.UploadInfo, error) {
	f.completed = parts
	return minio.UploadInfo{}, f.err
}

func (f *fakeMinioCore) AbortMultipartUpload(context.Context, string, string, string) error {
	f.aborted = true
	return f.err
}

func TestMinioBackend_Lifecycle(t *testing.T) {
	ctx := context.Background()
	core := &fakeMinioCore{}
	b, err := NewMinioBackend(core, "gfs-wind",
		WithContentType("application/x-grib2"),
		WithMetadata(map[string]string{"source": "gfs"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "gfs-wind", b.Bucket())

	m := upload.NewManager(b, upload.WithPartSize(4))
	require.NoError(t, m.Initiate(ctx, "wind/wind_20200101_00.grb2"))
	assert.Equal(t, "application/x-grib2", core.putOpts.ContentType)
	assert.Equal(t, "gfs", core.putOpts.UserMetadata["source"])

	require.NoError(t, m.Write(ctx, []byte("abcdefghij")))
	result, err := m.Complete(ctx)
	require.NoError(t, err)

	assert.Equal(t, "minio-upload", result.UploadID)
	require.Len(t, core.completed, 3)
	for i, p := range core.completed {
		assert.Equal(t, i+1, p.PartNumber)
		assert.Equal(t, result.Parts[i].ETag, p.ETag)
	}
	assert.Equal(t, []byte("ij"), core.parts[3])
}

func TestMinioBackend_Errors(t *testing.T) {
	ctx := context.Background()
	core := &fakeMinioCore{}
	b, err := NewMinioBackend(core, "gfs-wind")
	require.NoError(t, err)

	_, err = b.InitiateUpload(ctx, "k")
	require.NoError(t, err)

	core.err = minio.ErrorResponse{Code: "NoSuchUpload", Message: "gone"}
	_, err = b.UploadPart(ctx, "k", "minio-upload", 1, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchUpload")

	require.Error(t, b.AbortUpload(ctx, "k", "minio-upload"))
	assert.True(t, core.aborted)
}

func TestNewMinioBackend_InvalidBucket(t *testing.T) {
	_, err := NewMinioBackend(&fakeMinioCore{}, "x")
	assert.True(t, errors.IsInvalidInput(err))
}

func TestNewMinioCore(t *testing.T) {
	_, err := NewMinioCore(MinioConfig{})
	assert.True(t, errors.IsInvalidInput(err))

	core, err := NewMinioCore(MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.NotNil(t, core)
}
