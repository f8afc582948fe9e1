package windstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/windstream"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/gfs"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/source"
)

type archive struct {
	fetcher *source.FileFetcher
	wind    map[string][]byte
}

// newArchive writes one GRIB2 file per path. Corrupt files have a broken
// terminator on their last record.
func newArchive(t *testing.T, good []string, corrupt []string) *archive {
	t.Helper()
	gen := testutil.NewTestDataGenerator(21)
	fs := memfs.New()
	a := &archive{wind: make(map[string][]byte)}

	write := func(path string, breakIt bool) {
		u := gen.WindMessage(testutil.ProductUGRD, 100)
		tmp := gen.WindMessage(testutil.ProductTMP, 100)
		v := gen.WindMessage(testutil.ProductVGRD, 100)
		data := testutil.Concat(u, tmp, v)
		if breakIt {
			data[len(data)-1] = 0
		}
		require.NoError(t, util.WriteFile(fs, path, data, 0o644))
		a.wind[path] = testutil.Concat(u, v)
	}
	for _, p := range good {
		write(p, false)
	}
	for _, p := range corrupt {
		write(p, true)
	}

	a.fetcher = source.NewFileFetcher(fs, 37)
	return a
}

func TestNew(t *testing.T) {
	_, err := windstream.New(nil)
	assert.True(t, errors.IsInvalidInput(err))

	_, err = windstream.New(testutil.NewMemoryBackend(), windstream.WithPartSize(1024))
	assert.True(t, errors.IsInvalidInput(err))

	_, err = windstream.New(testutil.NewMemoryBackend(), windstream.WithMaxRecordSize(10))
	assert.True(t, errors.IsInvalidInput(err))

	c, err := windstream.New(testutil.NewMemoryBackend())
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestProcessFile(t *testing.T) {
	a := newArchive(t, []string{"/gfs/a.grib2"}, nil)
	backend := testutil.NewMemoryBackend()

	c, err := windstream.New(backend, windstream.WithFetcher(a.fetcher))
	require.NoError(t, err)

	stats, err := c.ProcessFile(context.Background(), windstream.Job{Location: "/gfs/a.grib2", Key: "wind/a.grb2"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Records)
	assert.Equal(t, int64(2), stats.Kept)

	object, ok := backend.Object("wind/a.grb2")
	require.True(t, ok)
	assert.Equal(t, a.wind["/gfs/a.grib2"], object)
}

func TestProcessFile_HTTP(t *testing.T) {
	gen := testutil.NewTestDataGenerator(22)
	u := gen.WindMessage(testutil.ProductUGRD, 500)
	data := testutil.Concat(gen.WindMessage(testutil.ProductTMP, 500), u)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2020/20200101/gfs.0p25.2020010100.f000.grib2" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer server.Close()

	backend := testutil.NewMemoryBackend()
	c, err := windstream.New(backend)
	require.NoError(t, err)

	date, err := gfs.ParseDate("2020-01-01")
	require.NoError(t, err)
	cycles, err := gfs.Cycles(date, date, []int{0, 6})
	require.NoError(t, err)

	result := c.ProcessBatch(context.Background(), windstream.CycleJobs(cycles, server.URL, "wind"))
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, errors.IsNetworkFailure(result.Files[1].Err))

	object, ok := backend.Object("wind/wind_20200101_00.grb2")
	require.True(t, ok)
	assert.Equal(t, u, object)

	_, ok = backend.Object("wind/wind_20200101_06.grb2")
	assert.False(t, ok)
	assert.Equal(t, 1, backend.CountCalls("initiate"), "an unreachable input never touches storage")
}

func TestProcessBatch_Isolation(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		a := newArchive(t, []string{"/gfs/a.grib2", "/gfs/c.grib2"}, []string{"/gfs/b.grib2"})
		backend := testutil.NewMemoryBackend()

		c, err := windstream.New(backend,
			windstream.WithFetcher(a.fetcher),
			windstream.WithConcurrency(concurrency),
		)
		require.NoError(t, err)

		jobs := []windstream.Job{
			{Location: "/gfs/a.grib2", Key: "wind/a.grb2"},
			{Location: "/gfs/b.grib2", Key: "wind/b.grb2"},
			{Location: "/gfs/missing.grib2", Key: "wind/missing.grb2"},
			{Location: "/gfs/c.grib2", Key: "wind/c.grb2"},
		}
		result := c.ProcessBatch(context.Background(), jobs)

		require.Len(t, result.Files, 4)
		assert.Equal(t, 2, result.Succeeded)
		assert.Equal(t, 2, result.Failed)

		assert.NoError(t, result.Files[0].Err)
		assert.True(t, errors.IsStreamCorruption(result.Files[1].Err))
		assert.True(t, errors.IsNetworkFailure(result.Files[2].Err))
		assert.NoError(t, result.Files[3].Err)
		assert.Error(t, result.Err())

		for i, job := range jobs {
			assert.Equal(t, job, result.Files[i].Job)
		}

		assert.Equal(t, 2, backend.Objects())
		assert.Zero(t, backend.PendingUploads())
		for _, key := range []string{"wind/a.grb2", "wind/c.grb2"} {
			_, ok := backend.Object(key)
			assert.True(t, ok, key)
		}
	}
}

func TestProcessBatch_Canceled(t *testing.T) {
	a := newArchive(t, []string{"/gfs/a.grib2"}, nil)
	backend := testutil.NewMemoryBackend()
	c, err := windstream.New(backend, windstream.WithFetcher(a.fetcher))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.ProcessBatch(ctx, []windstream.Job{{Location: "/gfs/a.grib2", Key: "wind/a.grb2"}})
	assert.Equal(t, 1, result.Failed)
	assert.ErrorIs(t, result.Err(), context.Canceled)
	assert.Empty(t, backend.Calls())
}

func TestProcessBatch_Empty(t *testing.T) {
	c, err := windstream.New(testutil.NewMemoryBackend())
	require.NoError(t, err)

	result := c.ProcessBatch(context.Background(), nil)
	assert.Empty(t, result.Files)
	assert.NoError(t, result.Err())
}

func TestCycleJobs(t *testing.T) {
	date, err := gfs.ParseDate("2020-03-05")
	require.NoError(t, err)

	jobs := windstream.CycleJobs([]gfs.Cycle{{Date: date, Hour: 18}}, "", "wind/")
	require.Len(t, jobs, 1)
	assert.Equal(t, "https://data.rda.ucar.edu/ds084.1/2020/20200305/gfs.0p25.2020030518.f000.grib2", jobs[0].Location)
	assert.Equal(t, "wind/wind_20200305_18.grb2", jobs[0].Key)
}
