// Package source provides chunked input streams for the extraction pipeline.
//
// A Source yields the raw bytes of one GRIB2 file as a sequence of chunks of
// arbitrary size. Fetchers open Sources by location: HTTPFetcher streams a
// remote file, FileFetcher replays a file from a billy filesystem and Router
// picks between them by URL scheme.
package source

import (
	"context"
	stderrors "errors"
	"io"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/pool"
)

// DefaultChunkSize is the read buffer size of a Source.
const DefaultChunkSize = 64 * 1024

// Source is one open input stream.
type Source interface {
	// Next returns the next chunk. The chunk is only valid until the next
	// call. Next returns io.EOF once the stream is exhausted; any other error
	// is a NetworkFailure.
	Next(ctx context.Context) ([]byte, error)

	// Size returns the total stream length, or -1 when unknown.
	Size() int64

	// Close releases the underlying connection or file.
	Close() error
}

// Fetcher opens Sources by location.
type Fetcher interface {
	Open(ctx context.Context, location string) (Source, error)
}

// readerSource adapts an io.ReadCloser to Source. Its chunk buffer is
// borrowed from the fetcher's pool and returned on Close.
type readerSource struct {
	location string
	r        io.ReadCloser
	buffers  *pool.BufferPool
	buf      []byte
	size     int64
}

func newReaderSource(location string, r io.ReadCloser, size int64, buffers *pool.BufferPool) *readerSource {
	return &readerSource{
		location: location,
		r:        r,
		buffers:  buffers,
		buf:      buffers.Get(),
		size:     size,
	}
}

// newBufferPool returns a pool of chunkSize buffers, DefaultChunkSize when
// chunkSize is not positive.
func newBufferPool(chunkSize int) *pool.BufferPool {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return pool.NewBufferPool(chunkSize)
}

func (s *readerSource) Next(ctx context.Context) ([]byte, error) {
	if s.buf == nil {
		return nil, errors.InvalidState("read", "source is closed")
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := s.r.Read(s.buf)
		if n > 0 {
			return s.buf[:n], nil
		}
		if stderrors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, errors.Network("read", err).WithMessage(s.location)
		}
	}
}

func (s *readerSource) Size() int64 {
	return s.size
}

func (s *readerSource) Close() error {
	if s.buf == nil {
		return nil
	}
	s.buffers.Put(s.buf)
	s.buf = nil
	return s.r.Close()
}

// Router dispatches http and https locations to HTTP and everything else,
// including file:// URLs, to File.
type Router struct {
	HTTP Fetcher
	File Fetcher
}

// Open implements Fetcher.
func (r *Router) Open(ctx context.Context, location string) (Source, error) {
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		if r.HTTP == nil {
			return nil, errors.InvalidInput("open", "no HTTP fetcher configured for %s", location)
		}
		return r.HTTP.Open(ctx, location)
	default:
		if r.File == nil {
			return nil, errors.InvalidInput("open", "no file fetcher configured for %s", location)
		}
		return r.File.Open(ctx, strings.TrimPrefix(location, "file://"))
	}
}
