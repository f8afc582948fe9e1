package testutil

import (
	"context"
	"io"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/source"
)

// ChunkSource is a source.Source that replays fixed chunks. When Err is set
// it is returned in place of chunk FailAt.
type ChunkSource struct {
	Chunks [][]byte
	Err    error
	FailAt int

	// Length is reported by Size; zero means the sum of all chunks
	Length int64

	// OnNext, if set, runs before every chunk is returned
	OnNext func(i int)

	next   int
	closed bool
}

// NewChunkSource splits data into the given chunks.
func NewChunkSource(chunks ...[]byte) *ChunkSource {
	return &ChunkSource{Chunks: chunks, FailAt: -1}
}

// Next implements source.Source.
func (s *ChunkSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil && s.next == s.FailAt {
		return nil, s.Err
	}
	if s.next >= len(s.Chunks) {
		return nil, io.EOF
	}
	if s.OnNext != nil {
		s.OnNext(s.next)
	}
	chunk := s.Chunks[s.next]
	s.next++
	return chunk, nil
}

// Size implements source.Source.
func (s *ChunkSource) Size() int64 {
	if s.Length != 0 {
		return s.Length
	}
	var n int64
	for _, c := range s.Chunks {
		n += int64(len(c))
	}
	return n
}

// Close implements source.Source.
func (s *ChunkSource) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *ChunkSource) Closed() bool {
	return s.closed
}

// Verify interface compliance
var _ source.Source = (*ChunkSource)(nil)
