package pipeline_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/pipeline"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

const key = "wind/wind_20200101_00.grb2"

// fixture is a stream of mixed records and the expected extraction output.
type fixture struct {
	stream []byte
	wind   []byte
	total  int
	kept   int
}

func newFixture(gen *testutil.TestDataGenerator) fixture {
	var f fixture
	products := []testutil.Product{
		testutil.ProductTMP, testutil.ProductUGRD, testutil.ProductWIND,
		testutil.ProductVGRD, testutil.ProductTMP, testutil.ProductUGRD,
	}
	for i, p := range products {
		msg := gen.WindMessage(p, 200+i*37)
		f.stream = append(f.stream, msg...)
		f.total++
		if p == testutil.ProductUGRD || p == testutil.ProductVGRD {
			f.wind = append(f.wind, msg...)
			f.kept++
		}
	}
	return f
}

func run(
	t *testing.T,
	backend upload.Backend,
	src *testutil.ChunkSource,
	opts ...pipeline.Option,
) (*pipeline.Stats, error) {
	t.Helper()
	m := upload.NewManager(backend, upload.WithPartSize(256))
	return pipeline.New(opts...).Run(context.Background(), src, m, key)
}

func TestRun_KeepsWindRecordsInOrder(t *testing.T) {
	gen := testutil.NewTestDataGenerator(11)
	f := newFixture(gen)

	for _, maxChunk := range []int{1, 7, 100, 4096, len(f.stream)} {
		backend := testutil.NewMemoryBackend()
		src := testutil.NewChunkSource(gen.Partition(f.stream, maxChunk)...)

		stats, err := run(t, backend, src)
		require.NoError(t, err, "max chunk %d", maxChunk)

		object, ok := backend.Object(key)
		require.True(t, ok)
		assert.True(t, bytes.Equal(f.wind, object), "max chunk %d", maxChunk)

		assert.Equal(t, int64(len(f.stream)), stats.BytesRead)
		assert.Equal(t, int64(f.total), stats.Records)
		assert.Equal(t, int64(f.kept), stats.Kept)
		assert.Equal(t, int64(len(f.wind)), stats.BytesKept)
		assert.Greater(t, stats.Parts, 1)
		assert.Len(t, stats.Digest, 64)
	}
}

func TestRun_GarbageBetweenRecords(t *testing.T) {
	gen := testutil.NewTestDataGenerator(12)
	u := gen.WindMessage(testutil.ProductUGRD, 50)
	v := gen.WindMessage(testutil.ProductVGRD, 50)
	stream := testutil.Concat(gen.Garbage(30), u, gen.Garbage(10), v, gen.Garbage(5))

	backend := testutil.NewMemoryBackend()
	stats, err := run(t, backend, testutil.NewChunkSource(stream))
	require.NoError(t, err)

	object, _ := backend.Object(key)
	assert.Equal(t, testutil.Concat(u, v), object)
	assert.Equal(t, int64(40), stats.Skipped)
}

func TestRun_NoWindRecords(t *testing.T) {
	gen := testutil.NewTestDataGenerator(13)
	stream := testutil.Concat(
		gen.WindMessage(testutil.ProductTMP, 10),
		gen.WindMessage(testutil.ProductWIND, 10),
	)

	backend := testutil.NewMemoryBackend()
	stats, err := run(t, backend, testutil.NewChunkSource(stream))
	require.NoError(t, err)

	object, ok := backend.Object(key)
	require.True(t, ok, "an empty object is still written")
	assert.Empty(t, object)
	assert.Equal(t, 1, stats.Parts)
	assert.Zero(t, stats.Kept)
}

func TestRun_DecodeFailureIsDropped(t *testing.T) {
	gen := testutil.NewTestDataGenerator(14)
	bad := testutil.Frame(0, 2, []byte{0, 0, 0, 2, 9})
	u := gen.WindMessage(testutil.ProductUGRD, 20)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	backend := testutil.NewMemoryBackend()
	stats, err := run(t, backend, testutil.NewChunkSource(testutil.Concat(bad, u)), pipeline.WithLogger(logger))
	require.NoError(t, err)

	object, _ := backend.Object(key)
	assert.Equal(t, u, object)
	assert.Equal(t, int64(1), stats.DecodeFailures)
	assert.Equal(t, int64(2), stats.Records)
	assert.Contains(t, logs.String(), "dropping undecodable record")
}

func TestRun_FailuresAbort(t *testing.T) {
	gen := testutil.NewTestDataGenerator(15)
	f := newFixture(gen)

	corrupt := append([]byte(nil), f.stream...)
	corrupt[len(corrupt)-1] = 'X'

	tests := []struct {
		name    string
		src     func() *testutil.ChunkSource
		backend func() *testutil.MemoryBackend
		check   func(error) bool
	}{
		{
			name: "stream corruption",
			src: func() *testutil.ChunkSource {
				return testutil.NewChunkSource(gen.Partition(corrupt, 64)...)
			},
			backend: testutil.NewMemoryBackend,
			check:   errors.IsStreamCorruption,
		},
		{
			name: "truncated stream",
			src: func() *testutil.ChunkSource {
				return testutil.NewChunkSource(f.stream[:len(f.stream)-10])
			},
			backend: testutil.NewMemoryBackend,
			check:   errors.IsStreamCorruption,
		},
		{
			name: "network failure",
			src: func() *testutil.ChunkSource {
				s := testutil.NewChunkSource(gen.Partition(f.stream, 64)...)
				s.Err = errors.Network("read", stderrors.New("connection reset by peer"))
				s.FailAt = 10
				return s
			},
			backend: testutil.NewMemoryBackend,
			check:   errors.IsNetworkFailure,
		},
		{
			name: "upload part failure",
			src: func() *testutil.ChunkSource {
				return testutil.NewChunkSource(f.stream)
			},
			backend: func() *testutil.MemoryBackend {
				b := testutil.NewMemoryBackend()
				b.FailPart = func(_ string, part int32) error {
					if part == 2 {
						return stderrors.New("SlowDown")
					}
					return nil
				}
				return b
			},
			check: errors.IsStorageFailure,
		},
		{
			name: "complete failure",
			src: func() *testutil.ChunkSource {
				return testutil.NewChunkSource(f.stream)
			},
			backend: func() *testutil.MemoryBackend {
				b := testutil.NewMemoryBackend()
				b.FailComplete = func(string) error { return stderrors.New("InternalError") }
				return b
			},
			check: errors.IsStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := tt.backend()
			_, err := run(t, backend, tt.src())
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)

			assert.Equal(t, 1, backend.CountCalls("abort"))
			assert.Zero(t, backend.Objects(), "no object may be visible after a failure")
			assert.Zero(t, backend.PendingUploads(), "no parts may be left behind")
		})
	}
}

func TestRun_CanceledStillAborts(t *testing.T) {
	gen := testutil.NewTestDataGenerator(16)
	f := newFixture(gen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := testutil.NewChunkSource(gen.Partition(f.stream, 64)...)
	src.OnNext = func(i int) {
		if i == 20 {
			cancel()
		}
	}

	backend := testutil.NewMemoryBackend()
	m := upload.NewManager(backend, upload.WithPartSize(256))
	_, err := pipeline.New().Run(ctx, src, m, key)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, upload.StateAborted, m.State())
	assert.Zero(t, backend.PendingUploads())
	assert.Zero(t, backend.Objects())
}

func TestRun_InitiateFailure(t *testing.T) {
	backend := testutil.NewMemoryBackend()
	backend.FailInitiate = func(string) error { return stderrors.New("AccessDenied") }

	_, err := run(t, backend, testutil.NewChunkSource([]byte("GRIB")))
	require.Error(t, err)
	assert.True(t, errors.IsStorageFailure(err))
	assert.Equal(t, []string{"initiate"}, backend.Calls(), "nothing to abort")
}

func TestRun_ProgressLogging(t *testing.T) {
	gen := testutil.NewTestDataGenerator(17)
	f := newFixture(gen)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	_, err := run(t, testutil.NewMemoryBackend(),
		testutil.NewChunkSource(gen.Partition(f.stream, 100)...),
		pipeline.WithLogger(logger),
		pipeline.WithProgressInterval(int64(len(f.stream)/2)),
	)
	require.NoError(t, err)

	assert.Equal(t, 2, bytes.Count(logs.Bytes(), []byte("download progress")))
	assert.Contains(t, logs.String(), "percent=")
}
