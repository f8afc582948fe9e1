// Package grib extracts self-delimited GRIB2 records from an arbitrarily
// chunked byte stream and decodes the few header fields needed to classify
// them.
//
// A GRIB2 record starts with the 16-byte indicator section:
//
//	octets 0-3   "GRIB"
//	octets 4-5   reserved
//	octet  6     discipline
//	octet  7     edition (2)
//	octets 8-15  total record length, big-endian, including indicator and terminator
//
// and ends with the 4-byte terminator "7777". Everything in between is
// treated as opaque by the extractor.
package grib

import "encoding/binary"

const (
	// IndicatorSize is the size of the GRIB2 indicator section (section 0).
	IndicatorSize = 16

	// TerminatorSize is the size of the end section (section 8).
	TerminatorSize = 4

	// MinRecordSize is the smallest plausible record: an indicator
	// immediately followed by a terminator.
	MinRecordSize = IndicatorSize + TerminatorSize

	// DefaultMaxRecordSize bounds the declared length of a single record.
	DefaultMaxRecordSize = 1_000_000_000

	lengthOffset     = 8
	disciplineOffset = 6
	editionOffset    = 7
)

var (
	magic      = []byte("GRIB")
	terminator = []byte("7777")
)

// Record is one complete GRIB2 message, from its leading magic to its
// trailing terminator inclusive. Records returned by the Extractor own their
// bytes and are never modified afterwards.
type Record []byte

// DeclaredLength returns the length field of the indicator section.
func (r Record) DeclaredLength() uint64 {
	if len(r) < IndicatorSize {
		return 0
	}
	return binary.BigEndian.Uint64(r[lengthOffset:IndicatorSize])
}

// Discipline returns the discipline octet of the indicator section.
func (r Record) Discipline() uint8 {
	if len(r) < IndicatorSize {
		return 0
	}
	return r[disciplineOffset]
}

// Edition returns the GRIB edition number of the indicator section.
func (r Record) Edition() uint8 {
	if len(r) < IndicatorSize {
		return 0
	}
	return r[editionOffset]
}

// Len returns the number of bytes in the record.
func (r Record) Len() int {
	return len(r)
}
