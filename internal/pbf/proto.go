package pbf

import "encoding/binary"

// Protobuf wire types.
const (
	wireVarint = 0
	wireBytes  = 2
)

// message is an append-only protobuf message builder. The OSM PBF payload
// uses a small, fixed set of field shapes (varints, zig-zag varints, packed
// arrays, nested messages), so hand-rolled encoding keeps the writer free of
// generated code and gives exact control over the byte stream.
type message struct {
	buf []byte
}

func (m *message) len() int {
	return len(m.buf)
}

func (m *message) bytes() []byte {
	return m.buf
}

func (m *message) uvarint(v uint64) {
	m.buf = binary.AppendUvarint(m.buf, v)
}

func (m *message) key(field, wire int) {
	m.uvarint(uint64(field)<<3 | uint64(wire))
}

// zigzag maps a signed value to the unsigned space used by sint64 fields.
func zigzag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func (m *message) int64Field(field int, v int64) {
	m.key(field, wireVarint)
	m.uvarint(uint64(v))
}

func (m *message) sint64Field(field int, v int64) {
	m.key(field, wireVarint)
	m.uvarint(zigzag(v))
}

func (m *message) bytesField(field int, data []byte) {
	m.key(field, wireBytes)
	m.uvarint(uint64(len(data)))
	m.buf = append(m.buf, data...)
}

func (m *message) stringField(field int, s string) {
	m.key(field, wireBytes)
	m.uvarint(uint64(len(s)))
	m.buf = append(m.buf, s...)
}

func (m *message) embedded(field int, sub *message) {
	m.bytesField(field, sub.bytes())
}

// packedUint64 writes a packed repeated varint field.
func (m *message) packedUint64(field int, vals []uint64) {
	if len(vals) == 0 {
		return
	}
	var payload message
	for _, v := range vals {
		payload.uvarint(v)
	}
	m.bytesField(field, payload.bytes())
}

// packedSint64Delta writes a packed repeated sint64 field, delta-encoded
// against the previous element.
func (m *message) packedSint64Delta(field int, vals []int64) {
	if len(vals) == 0 {
		return
	}
	var payload message
	var prev int64
	for _, v := range vals {
		payload.uvarint(zigzag(v - prev))
		prev = v
	}
	m.bytesField(field, payload.bytes())
}

// packedInt32 writes a packed repeated int32 field (plain varints, used by
// DenseNodes.keys_vals).
func (m *message) packedInt32(field int, vals []int32) {
	if len(vals) == 0 {
		return
	}
	var payload message
	for _, v := range vals {
		payload.uvarint(uint64(uint32(v)))
	}
	m.bytesField(field, payload.bytes())
}
