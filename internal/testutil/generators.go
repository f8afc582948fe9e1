package testutil

import (
	"encoding/binary"
	"math/rand"
)

// Product describes one product definition section of a generated record.
type Product struct {
	Category uint8
	Number   uint8
}

// Commonly used products.
var (
	ProductUGRD = Product{Category: 2, Number: 2}
	ProductVGRD = Product{Category: 2, Number: 3}
	ProductTMP  = Product{Category: 0, Number: 0}
	ProductWIND = Product{Category: 2, Number: 1}
)

// TestDataGenerator provides methods for generating test data.
type TestDataGenerator struct {
	rand *rand.Rand
}

// NewTestDataGenerator creates a new test data generator with a seeded random source.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// GribMessage builds a structurally valid GRIB2 edition 2 record carrying one
// product per entry, each followed by a data section of payload random bytes.
func (g *TestDataGenerator) GribMessage(discipline uint8, payload int, products ...Product) []byte {
	body := section(1, 16)
	body = append(body, section(3, 67)...)
	for _, p := range products {
		s4 := section(4, 29)
		s4[9] = p.Category
		s4[10] = p.Number
		body = append(body, s4...)
		body = append(body, section(5, 16)...)
		body = append(body, section(6, 1)...)

		s7 := section(7, payload)
		g.rand.Read(s7[5:])
		body = append(body, s7...)
	}
	return Frame(discipline, 2, body)
}

// WindMessage builds a discipline 0 record with a single product.
func (g *TestDataGenerator) WindMessage(p Product, payload int) []byte {
	return g.GribMessage(0, payload, p)
}

// Garbage returns n random bytes that never contain the "GRIB" magic.
func (g *TestDataGenerator) Garbage(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		// Lowercase letters only; the magic is uppercase.
		b[i] = byte('a' + g.rand.Intn(26))
	}
	return b
}

// Partition splits data into consecutive chunks of random sizes in [1, max].
func (g *TestDataGenerator) Partition(data []byte, max int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		n := 1 + g.rand.Intn(max)
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// Bytes returns n random bytes.
func (g *TestDataGenerator) Bytes(n int) []byte {
	b := make([]byte, n)
	g.rand.Read(b)
	return b
}

// Frame wraps body in an indicator section and terminator, producing a record
// whose declared length matches its size.
func Frame(discipline, edition uint8, body []byte) []byte {
	total := 16 + len(body) + 4
	out := make([]byte, 0, total)
	out = append(out, 'G', 'R', 'I', 'B', 0, 0, discipline, edition)
	out = binary.BigEndian.AppendUint64(out, uint64(total))
	out = append(out, body...)
	return append(out, '7', '7', '7', '7')
}

// section returns a section with a valid header and n zeroed content bytes.
func section(number uint8, n int) []byte {
	s := make([]byte, 5+n)
	binary.BigEndian.PutUint32(s, uint32(len(s)))
	s[4] = number
	return s
}

// Concat joins byte slices.
func Concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
