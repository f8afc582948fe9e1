package source

import (
	"context"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/pool"
)

// FileFetcher replays files from a billy filesystem, for example a local
// mirror of the archive.
type FileFetcher struct {
	fs      billy.Filesystem
	buffers *pool.BufferPool
}

// NewFileFetcher creates a FileFetcher over fs reading chunkSize bytes at a
// time. A nil fs is the OS filesystem rooted at /.
func NewFileFetcher(fs billy.Filesystem, chunkSize int) *FileFetcher {
	if fs == nil {
		fs = osfs.New("/")
	}
	return &FileFetcher{fs: fs, buffers: newBufferPool(chunkSize)}
}

// Open implements Fetcher.
func (f *FileFetcher) Open(ctx context.Context, path string) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := f.fs.Stat(path)
	if err != nil {
		return nil, errors.Network("open", err)
	}
	if info.IsDir() {
		return nil, errors.InvalidInput("open", "%s is a directory", path)
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return nil, errors.Network("open", err)
	}
	return newReaderSource(path, file, info.Size(), f.buffers), nil
}

// Verify interface compliance
var _ Fetcher = (*FileFetcher)(nil)
