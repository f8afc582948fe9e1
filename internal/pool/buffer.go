// Package pool provides reusable read buffers for input sources.
//
// Every file in a batch reads through a chunk buffer of the same size, so
// buffers are recycled between files instead of being reallocated.
package pool

import "sync"

// BufferPool manages reusable buffers of one fixed size.
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool creates a pool of size-byte buffers.
func NewBufferPool(size int) *BufferPool {
	bp := &BufferPool{size: size}
	bp.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return bp
}

// Size returns the length of the pooled buffers.
func (bp *BufferPool) Size() int {
	return bp.size
}

// Get returns a buffer of length Size. Its contents are unspecified.
// The caller is responsible for calling Put to return the buffer to the pool.
func (bp *BufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	return (*bufPtr)[:bp.size]
}

// Put returns a buffer to the pool. Buffers of a different capacity are
// dropped. The buffer should not be used after calling Put.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.size {
		return
	}
	buf = buf[:bp.size]
	bp.pool.Put(&buf)
}
