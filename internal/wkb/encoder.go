package wkb

import (
	"encoding/binary"
	"math"

	"github.com/paulmach/orb"
)

// Encoder encodes linestrings to little-endian WKB. Used by tests that
// build fixture geometries.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an encoder with a pre-allocated buffer.
func NewEncoder(initialSize int) *Encoder {
	return &Encoder{buf: make([]byte, 0, initialSize)}
}

// Reset clears the buffer for reuse.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// EncodeLineString encodes a 2D linestring. The returned slice is valid
// until the next call on this encoder.
func (e *Encoder) EncodeLineString(ls orb.LineString) []byte {
	e.Reset()
	e.buf = append(e.buf, 0x01) // little-endian
	e.appendUint32(wkbLineString)
	e.appendUint32(uint32(len(ls)))
	for _, p := range ls {
		e.appendFloat64(p[0])
		e.appendFloat64(p[1])
	}
	return e.buf
}

func (e *Encoder) appendUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) appendFloat64(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf = append(e.buf, b[:]...)
}
