package grib

import (
	"bytes"
	"encoding/binary"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
)

const (
	// Edition2 is the only GRIB edition the decoder understands.
	Edition2 = 2

	sectionHeaderSize = 5

	sectionProductDefinition = 4
	lastSection              = 7

	// octets of section 4, zero-based from the start of the section
	templateOffset = 7
	categoryOffset = 9
	numberOffset   = 10
	productMinSize = 11
)

// HeaderFields is the read-only projection of one product held in a record.
type HeaderFields struct {
	// Discipline is the indicator section discipline (0 = meteorological).
	Discipline uint8

	// Template is the product definition template number.
	Template uint16

	// Category is the parameter category (2 = momentum).
	Category uint8

	// Number is the parameter number within the category.
	Number uint8
}

// Decoder exposes the header fields of a record.
type Decoder interface {
	// Decode returns one HeaderFields per product definition section, in order.
	Decode(rec Record) ([]HeaderFields, error)
}

// SectionDecoder decodes header fields by walking the record's section
// headers. It does not interpret grid, data representation or data sections.
type SectionDecoder struct{}

var _ Decoder = SectionDecoder{}

// Decode implements Decoder.
func (SectionDecoder) Decode(rec Record) ([]HeaderFields, error) {
	return Decode(rec)
}

// Decode walks the sections of rec and returns the header fields of every
// product definition section. Records may repeat sections 2-7, 3-7 or 4-7 to
// carry several products; each repetition contributes one entry.
//
// Any structural inconsistency is reported as a DecodeFailure.
func Decode(rec Record) ([]HeaderFields, error) {
	if len(rec) < MinRecordSize {
		return nil, errors.Decode("decode", "record of %d bytes is shorter than %d", len(rec), MinRecordSize)
	}
	if !bytes.HasPrefix(rec, magic) {
		return nil, errors.Decode("decode", "missing %q magic", magic)
	}
	if edition := rec.Edition(); edition != Edition2 {
		return nil, errors.Decode("decode", "unsupported GRIB edition %d", edition)
	}
	if declared := rec.DeclaredLength(); declared != uint64(len(rec)) {
		return nil, errors.Decode("decode", "declared length %d does not match record length %d", declared, len(rec))
	}

	discipline := rec.Discipline()
	end := len(rec) - TerminatorSize

	var fields []HeaderFields
	for pos := IndicatorSize; pos < end; {
		if end-pos < sectionHeaderSize {
			return nil, errors.Decode("decode", "truncated section header at octet %d", pos)
		}

		size := int(binary.BigEndian.Uint32(rec[pos : pos+4]))
		number := rec[pos+4]

		if size < sectionHeaderSize || size > end-pos {
			return nil, errors.Decode("decode", "section %d at octet %d has invalid length %d", number, pos, size)
		}
		if number < 1 || number > lastSection {
			return nil, errors.Decode("decode", "unexpected section number %d at octet %d", number, pos)
		}

		if number == sectionProductDefinition {
			if size < productMinSize {
				return nil, errors.Decode("decode", "product definition section at octet %d is %d bytes", pos, size)
			}
			section := rec[pos : pos+size]
			fields = append(fields, HeaderFields{
				Discipline: discipline,
				Template:   binary.BigEndian.Uint16(section[templateOffset : templateOffset+2]),
				Category:   section[categoryOffset],
				Number:     section[numberOffset],
			})
		}

		pos += size
	}

	if len(fields) == 0 {
		return nil, errors.Decode("decode", "no product definition section")
	}
	return fields, nil
}
