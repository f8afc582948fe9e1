package grib

import (
	"bytes"
	"encoding/binary"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
)

const defaultInitialCapacity = 64 * 1024

// Extractor accumulates stream chunks and yields every GRIB2 record that
// becomes complete. Feeding a stream in any partition of chunks yields the
// same record sequence as feeding it in one piece.
//
// The accumulator is an append-only slice with a read cursor. Consumed bytes
// are reclaimed by compaction once they outnumber the live bytes, so memory is
// bounded by the largest in-flight record plus one chunk.
//
// Corruption is fatal: once Feed or Finish has returned an error every later
// call returns the same error. An Extractor is not safe for concurrent use.
type Extractor struct {
	buf []byte
	off int

	// pos is the absolute stream offset of buf[off]
	pos int64

	maxSize uint64
	skipped int64
	err     error
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxRecordSize sets the largest declared record length accepted before
// the stream is considered corrupt. Default is DefaultMaxRecordSize.
func WithMaxRecordSize(size uint64) Option {
	return func(e *Extractor) {
		if size >= MinRecordSize {
			e.maxSize = size
		}
	}
}

// WithInitialCapacity sets the initial accumulator capacity. Default is 64KiB.
func WithInitialCapacity(capacity int) Option {
	return func(e *Extractor) {
		if capacity > 0 {
			e.buf = make([]byte, 0, capacity)
		}
	}
}

// NewExtractor creates an Extractor with the given options.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		maxSize: DefaultMaxRecordSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.buf == nil {
		e.buf = make([]byte, 0, defaultInitialCapacity)
	}
	return e
}

// Feed appends chunk to the accumulator and returns every record completed by
// it, in stream order. The chunk is copied; the caller may reuse it.
//
// On corruption Feed returns the records that preceded the corrupt one
// together with a StreamCorruption error.
func (e *Extractor) Feed(chunk []byte) ([]Record, error) {
	if e.err != nil {
		return nil, e.err
	}

	e.compact(len(chunk))
	e.buf = append(e.buf, chunk...)

	var records []Record
	for {
		rec, err := e.next()
		if err != nil {
			e.err = err
			return records, err
		}
		if rec == nil {
			return records, nil
		}
		records = append(records, rec)
	}
}

// Finish reports whether the stream ended cleanly. A record whose magic has
// been seen but whose bytes are incomplete is StreamCorruption. Trailing bytes
// that contain no magic are ignored.
func (e *Extractor) Finish() error {
	if e.err != nil {
		return e.err
	}

	window := e.buf[e.off:]
	if bytes.HasPrefix(window, magic) {
		if len(window) < IndicatorSize {
			e.err = errors.Corruption("finish", "truncated record header at offset %d", e.pos)
		} else {
			e.err = errors.Corruption("finish", "truncated record at offset %d: %d of %d bytes received",
				e.pos, len(window), binary.BigEndian.Uint64(window[lengthOffset:IndicatorSize]))
		}
	}
	return e.err
}

// Buffered returns the number of received bytes not yet resolved into a record.
func (e *Extractor) Buffered() int {
	return len(e.buf) - e.off
}

// Skipped returns the number of bytes discarded because they preceded a magic.
func (e *Extractor) Skipped() int64 {
	return e.skipped
}

// next returns the next complete record, or nil if more input is needed.
func (e *Extractor) next() (Record, error) {
	window := e.buf[e.off:]

	i := bytes.Index(window, magic)
	if i < 0 {
		// Keep a tail that could be the start of a magic split across chunks.
		if keep := len(magic) - 1; len(window) > keep {
			e.skip(len(window) - keep)
		}
		return nil, nil
	}
	if i > 0 {
		e.skip(i)
		window = window[i:]
	}

	if len(window) < IndicatorSize {
		return nil, nil
	}

	length := binary.BigEndian.Uint64(window[lengthOffset:IndicatorSize])
	if length < MinRecordSize {
		return nil, errors.Corruption("feed", "record at offset %d declares length %d, below minimum %d",
			e.pos, length, MinRecordSize)
	}
	if length > e.maxSize {
		return nil, errors.Corruption("feed", "record at offset %d declares length %d, above maximum %d",
			e.pos, length, e.maxSize)
	}
	if uint64(len(window)) < length {
		return nil, nil
	}

	n := int(length)
	if !bytes.Equal(window[n-TerminatorSize:n], terminator) {
		return nil, errors.Corruption("feed", "record at offset %d (length %d) has terminator %q, want %q",
			e.pos, length, window[n-TerminatorSize:n], terminator)
	}

	rec := make(Record, n)
	copy(rec, window[:n])
	e.advance(n)
	return rec, nil
}

func (e *Extractor) skip(n int) {
	e.skipped += int64(n)
	e.advance(n)
}

func (e *Extractor) advance(n int) {
	e.off += n
	e.pos += int64(n)
}

// compact reclaims consumed bytes when they outnumber the live ones, or when
// the incoming chunk would otherwise force the slice to grow.
func (e *Extractor) compact(incoming int) {
	if e.off == 0 {
		return
	}
	live := len(e.buf) - e.off
	if live == 0 {
		e.buf = e.buf[:0]
		e.off = 0
		return
	}
	if e.off < live && len(e.buf)+incoming <= cap(e.buf) {
		return
	}
	n := copy(e.buf, e.buf[e.off:])
	e.buf = e.buf[:n]
	e.off = 0
}
