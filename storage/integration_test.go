//go:build integration

package storage

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

const integrationBucket = "windstream-integration"

func TestIntegration_S3MultipartUpload(t *testing.T) {
	client := testutil.SetupLocalStackBucket(t, integrationBucket)
	ctx := context.Background()

	backend, err := NewS3Backend(client, integrationBucket)
	require.NoError(t, err)

	gen := testutil.NewTestDataGenerator(42)
	data := gen.Bytes(upload.MinPartSize + 1024)

	m := upload.NewManager(backend)
	require.NoError(t, m.Initiate(ctx, "wind/wind_20200101_00.grb2"))
	require.NoError(t, m.Write(ctx, data))

	result, err := m.Complete(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Parts, 2)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(integrationBucket),
		Key:    aws.String("wind/wind_20200101_00.grb2"),
	})
	require.NoError(t, err)
	defer func() { _ = out.Body.Close() }()

	got, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestIntegration_S3AbortLeavesNothing(t *testing.T) {
	client := testutil.SetupLocalStackBucket(t, integrationBucket)
	ctx := context.Background()

	backend, err := NewS3Backend(client, integrationBucket)
	require.NoError(t, err)

	m := upload.NewManager(backend)
	require.NoError(t, m.Initiate(ctx, "wind/aborted.grb2"))
	require.NoError(t, m.Write(ctx, make([]byte, upload.MinPartSize)))
	require.NoError(t, m.Abort(ctx))

	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(integrationBucket),
		Key:    aws.String("wind/aborted.grb2"),
	})
	assert.Error(t, err)

	pending, err := testutil.ListPendingUploads(ctx, client, integrationBucket)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestIntegration_S3EmptyObject(t *testing.T) {
	client := testutil.SetupLocalStackBucket(t, integrationBucket)
	ctx := context.Background()

	backend, err := NewS3Backend(client, integrationBucket)
	require.NoError(t, err)

	m := upload.NewManager(backend)
	require.NoError(t, m.Initiate(ctx, "wind/empty.grb2"))
	_, err = m.Complete(ctx)
	require.NoError(t, err)

	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(integrationBucket),
		Key:    aws.String("wind/empty.grb2"),
	})
	require.NoError(t, err)
	assert.Zero(t, aws.ToInt64(head.ContentLength))
}
