// Package filter decides which GRIB2 records survive the pipeline.
//
// Only the eastward (UGRD) and northward (VGRD) wind components are kept:
// parameter category 2 (momentum) with parameter number 2 or 3.
package filter

import (
	"github.com/input-output-hk/catalyst-forge-libs/windstream/grib"
)

const (
	// CategoryMomentum is the GRIB2 momentum parameter category.
	CategoryMomentum = 2

	// NumberUGRD is the eastward wind component within CategoryMomentum.
	NumberUGRD = 2

	// NumberVGRD is the northward wind component within CategoryMomentum.
	NumberVGRD = 3
)

// Outcome is the result of evaluating a record.
type Outcome int

const (
	// Drop means the record was decoded and is not a wind component.
	Drop Outcome = iota
	// Keep means the record carries a wind component.
	Keep
	// DecodeFailed means the record's header could not be decoded; it is
	// treated as not matching.
	DecodeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Keep:
		return "keep"
	case Drop:
		return "drop"
	case DecodeFailed:
		return "decode_failed"
	default:
		return "unknown"
	}
}

// WindFilter classifies records by their decoded header fields. It holds no
// mutable state and is safe for concurrent use if its decoder is.
type WindFilter struct {
	decoder grib.Decoder
}

// New creates a WindFilter. A nil decoder selects grib.SectionDecoder.
func New(decoder grib.Decoder) *WindFilter {
	if decoder == nil {
		decoder = grib.SectionDecoder{}
	}
	return &WindFilter{decoder: decoder}
}

// Evaluate decodes rec and reports whether any of its products is a wind
// component. The decode error, if any, is returned alongside DecodeFailed so
// the caller can log it.
func (f *WindFilter) Evaluate(rec grib.Record) (Outcome, error) {
	fields, err := f.decoder.Decode(rec)
	if err != nil {
		return DecodeFailed, err
	}
	for _, h := range fields {
		if IsWind(h) {
			return Keep, nil
		}
	}
	return Drop, nil
}

// Classify reports whether rec should be kept. Decode failures classify as false.
func (f *WindFilter) Classify(rec grib.Record) bool {
	outcome, _ := f.Evaluate(rec)
	return outcome == Keep
}

// IsWind reports whether h identifies UGRD or VGRD.
func IsWind(h grib.HeaderFields) bool {
	return h.Category == CategoryMomentum && (h.Number == NumberUGRD || h.Number == NumberVGRD)
}
