// Package wkb reads and writes Well-Known Binary linestrings.
//
// The decoder is deliberately tolerant: it accepts plain ISO WKB, EWKB with
// an SRID (PostGIS), Z/M/ZM coordinate dimensions (extra ordinates are
// dropped), and multilinestrings with a single member. Anything else is a
// decode error; the pipeline drops the segment and counts it.
package wkb

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// WKB geometry type constants (ISO SQL/MM).
const (
	wkbPoint           = 1
	wkbLineString      = 2
	wkbMultiLineString = 5

	// EWKB flag bits (PostGIS extended WKB)
	ewkbZFlag    = 0x80000000
	ewkbMFlag    = 0x40000000
	ewkbSRIDFlag = 0x20000000
)

var (
	ErrTruncated    = errors.New("wkb: truncated payload")
	ErrByteOrder    = errors.New("wkb: unknown byte order")
	ErrGeometryType = errors.New("wkb: unsupported geometry type")
	ErrEmpty        = errors.New("wkb: empty geometry")
)

type reader struct {
	buf    []byte
	pos    int
	little bool
}

func (r *reader) remain() int { return len(r.buf) - r.pos }

func (r *reader) byteOrder() error {
	if r.remain() < 1 {
		return ErrTruncated
	}
	switch r.buf[r.pos] {
	case 0:
		r.little = false
	case 1:
		r.little = true
	default:
		return ErrByteOrder
	}
	r.pos++
	return nil
}

func (r *reader) uint32() (uint32, error) {
	if r.remain() < 4 {
		return 0, ErrTruncated
	}
	var v uint32
	if r.little {
		v = binary.LittleEndian.Uint32(r.buf[r.pos:])
	} else {
		v = binary.BigEndian.Uint32(r.buf[r.pos:])
	}
	r.pos += 4
	return v, nil
}

func (r *reader) float64() (float64, error) {
	if r.remain() < 8 {
		return 0, ErrTruncated
	}
	var bits uint64
	if r.little {
		bits = binary.LittleEndian.Uint64(r.buf[r.pos:])
	} else {
		bits = binary.BigEndian.Uint64(r.buf[r.pos:])
	}
	r.pos += 8
	return math.Float64frombits(bits), nil
}

// geomHeader reads byte order + type word and resolves dimensionality.
// Returns the base geometry type and the number of extra ordinates per point.
func (r *reader) geomHeader() (base uint32, extra int, err error) {
	if err := r.byteOrder(); err != nil {
		return 0, 0, err
	}
	typ, err := r.uint32()
	if err != nil {
		return 0, 0, err
	}

	hasZ := typ&ewkbZFlag != 0
	hasM := typ&ewkbMFlag != 0
	hasSRID := typ&ewkbSRIDFlag != 0

	clean := typ &^ uint32(ewkbZFlag|ewkbMFlag|ewkbSRIDFlag)
	base = clean % 1000
	// ISO-style dimension encoding: 1000 = Z, 2000 = M, 3000 = ZM
	switch clean / 1000 {
	case 1:
		hasZ = true
	case 2:
		hasM = true
	case 3:
		hasZ, hasM = true, true
	}

	if hasSRID {
		if _, err := r.uint32(); err != nil {
			return 0, 0, err
		}
	}
	if hasZ {
		extra++
	}
	if hasM {
		extra++
	}
	return base, extra, nil
}

func (r *reader) lineString(extra int) (orb.LineString, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmpty
	}
	need := int(n) * (16 + extra*8)
	if r.remain() < need {
		return nil, ErrTruncated
	}
	ls := make(orb.LineString, 0, n)
	for i := uint32(0); i < n; i++ {
		x, _ := r.float64()
		y, _ := r.float64()
		for s := 0; s < extra; s++ {
			r.float64() // drop Z/M
		}
		ls = append(ls, orb.Point{x, y})
	}
	return ls, nil
}

// DecodeLineString parses a WKB linestring into lon/lat points. A
// multilinestring with one member decodes to that member; multi-member
// geometries are rejected since segment geometries are atomic.
func DecodeLineString(data []byte) (orb.LineString, error) {
	r := &reader{buf: data}
	base, extra, err := r.geomHeader()
	if err != nil {
		return nil, err
	}
	switch base {
	case wkbLineString:
		return r.lineString(extra)
	case wkbMultiLineString:
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		if n != 1 {
			return nil, ErrGeometryType
		}
		innerBase, innerExtra, err := r.geomHeader()
		if err != nil {
			return nil, err
		}
		if innerBase != wkbLineString {
			return nil, ErrGeometryType
		}
		return r.lineString(innerExtra)
	default:
		return nil, ErrGeometryType
	}
}
