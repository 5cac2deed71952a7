// Package pbf writes OpenStreetMap PBF files: a length-prefixed sequence of
// zlib-compressed fileblocks carrying a header block followed by primitive
// blocks of dense nodes and ways.
//
// The writer owns the byte-level format (string tables, delta- and zig-zag
// encoded coordinates and refs) because the conversion pipeline needs exact
// control over block boundaries and id ordering; output is verified against
// the paulmach/osm reader in tests.
package pbf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/paulmach/osm"
)

const (
	// Granularity is the coordinate resolution in nanodegrees. At 100 a
	// stored unit is 1e-7 degrees, matching the node interner's grid.
	Granularity = 100

	// blockEntityLimit caps how many nodes or ways go into one primitive
	// block before it is flushed.
	blockEntityLimit = 8000

	zlibLevel = 6
)

// Bounds is a bounding box in nanodegrees.
type Bounds struct {
	MinLon, MinLat, MaxLon, MaxLat int64
}

type pendingNode struct {
	id, lat, lon int64 // lat/lon in Granularity units
	tags         osm.Tags
}

type pendingWay struct {
	id   int64
	refs []int64
	tags osm.Tags
}

// Writer streams nodes and ways into an OSM PBF file. All nodes must be
// written before the first way, with strictly increasing ids in each stream.
type Writer struct {
	w       io.Writer
	program string
	bounds  *Bounds

	headerWritten bool
	wayPhase      bool

	nodes []pendingNode
	ways  []pendingWay

	lastNodeID int64
	lastWayID  int64

	nodesWritten int64
	waysWritten  int64
}

// Option configures a Writer.
type Option func(*Writer)

// WithWritingProgram sets the header's writingprogram string.
func WithWritingProgram(name string) Option {
	return func(w *Writer) { w.program = name }
}

// WithBounds sets the header bounding box.
func WithBounds(b Bounds) Option {
	return func(w *Writer) { w.bounds = &b }
}

// NewWriter creates a PBF writer over w. Nothing is written until the first
// flush or Close.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	pw := &Writer{w: w}
	for _, opt := range opts {
		opt(pw)
	}
	return pw
}

// WriteNode appends one node. Coordinates are in Granularity units
// (1e-7 degrees). Tags are optional; interned way nodes pass nil.
func (w *Writer) WriteNode(id, lat, lon int64, tags osm.Tags) error {
	if w.wayPhase {
		return fmt.Errorf("pbf: node %d written after first way", id)
	}
	if w.nodesWritten+int64(len(w.nodes)) > 0 && id <= w.lastNodeID {
		return fmt.Errorf("pbf: node ids not strictly increasing: %d after %d", id, w.lastNodeID)
	}
	w.lastNodeID = id
	w.nodes = append(w.nodes, pendingNode{id: id, lat: lat, lon: lon, tags: tags})
	if len(w.nodes) >= blockEntityLimit {
		return w.flushNodes()
	}
	return nil
}

// WriteWay appends one way. The first way closes the node stream.
func (w *Writer) WriteWay(id int64, refs []int64, tags osm.Tags) error {
	if len(refs) < 2 {
		return fmt.Errorf("pbf: way %d has %d refs", id, len(refs))
	}
	for i := 1; i < len(refs); i++ {
		if refs[i] == refs[i-1] {
			return fmt.Errorf("pbf: way %d repeats node %d consecutively", id, refs[i])
		}
	}
	if !w.wayPhase {
		if err := w.flushNodes(); err != nil {
			return err
		}
		w.wayPhase = true
	}
	if w.waysWritten+int64(len(w.ways)) > 0 && id <= w.lastWayID {
		return fmt.Errorf("pbf: way ids not strictly increasing: %d after %d", id, w.lastWayID)
	}
	w.lastWayID = id
	w.ways = append(w.ways, pendingWay{id: id, refs: refs, tags: tags})
	if len(w.ways) >= blockEntityLimit {
		return w.flushWays()
	}
	return nil
}

// Close flushes pending entities. An empty writer still emits a valid file
// with just the header block.
func (w *Writer) Close() error {
	if !w.wayPhase {
		if err := w.flushNodes(); err != nil {
			return err
		}
	}
	if err := w.flushWays(); err != nil {
		return err
	}
	if !w.headerWritten {
		return w.writeHeader()
	}
	return nil
}

// NodesWritten returns how many nodes have been flushed to the stream.
func (w *Writer) NodesWritten() int64 { return w.nodesWritten }

// WaysWritten returns how many ways have been flushed to the stream.
func (w *Writer) WaysWritten() int64 { return w.waysWritten }

func (w *Writer) writeHeader() error {
	var hdr message
	if w.bounds != nil {
		var bbox message
		bbox.sint64Field(1, w.bounds.MinLon)
		bbox.sint64Field(2, w.bounds.MaxLon)
		bbox.sint64Field(3, w.bounds.MaxLat)
		bbox.sint64Field(4, w.bounds.MinLat)
		hdr.embedded(1, &bbox)
	}
	hdr.stringField(4, "OsmSchema-V0.6")
	hdr.stringField(4, "DenseNodes")
	if w.program != "" {
		hdr.stringField(16, w.program)
	}
	w.headerWritten = true
	return w.writeBlob("OSMHeader", hdr.bytes())
}

func (w *Writer) flushNodes() error {
	if len(w.nodes) == 0 {
		return nil
	}
	if !w.headerWritten {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}

	st := newStringTable()

	ids := make([]int64, len(w.nodes))
	lats := make([]int64, len(w.nodes))
	lons := make([]int64, len(w.nodes))
	var keysVals []int32
	tagged := false
	for i, n := range w.nodes {
		ids[i] = n.id
		lats[i] = n.lat
		lons[i] = n.lon
		for _, t := range n.tags {
			keysVals = append(keysVals, int32(st.intern(t.Key)), int32(st.intern(t.Value)))
			tagged = true
		}
		keysVals = append(keysVals, 0)
	}

	var dense message
	dense.packedSint64Delta(1, ids)
	dense.packedSint64Delta(8, lats)
	dense.packedSint64Delta(9, lons)
	// keys_vals stays empty for a block of untagged nodes
	if tagged {
		dense.packedInt32(10, keysVals)
	}

	var group message
	group.embedded(2, &dense)

	if err := w.writePrimitiveBlock(st, &group); err != nil {
		return err
	}
	w.nodesWritten += int64(len(w.nodes))
	w.nodes = w.nodes[:0]
	return nil
}

func (w *Writer) flushWays() error {
	if len(w.ways) == 0 {
		return nil
	}
	if !w.headerWritten {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}

	st := newStringTable()
	var group message
	for _, wy := range w.ways {
		var wm message
		wm.int64Field(1, wy.id)
		keys := make([]uint64, len(wy.tags))
		vals := make([]uint64, len(wy.tags))
		for i, t := range wy.tags {
			keys[i] = uint64(st.intern(t.Key))
			vals[i] = uint64(st.intern(t.Value))
		}
		wm.packedUint64(2, keys)
		wm.packedUint64(3, vals)
		wm.packedSint64Delta(8, wy.refs)
		group.embedded(3, &wm)
	}

	if err := w.writePrimitiveBlock(st, &group); err != nil {
		return err
	}
	w.waysWritten += int64(len(w.ways))
	w.ways = w.ways[:0]
	return nil
}

func (w *Writer) writePrimitiveBlock(st *stringTable, group *message) error {
	var block message
	st.encode(&block)
	block.embedded(2, group)
	block.int64Field(17, Granularity)
	block.int64Field(19, 0) // lat_offset
	block.int64Field(20, 0) // lon_offset
	return w.writeBlob("OSMData", block.bytes())
}

// writeBlob frames one fileblock: 4-byte big-endian BlobHeader length, the
// BlobHeader, then the Blob with the zlib-deflated payload.
func (w *Writer) writeBlob(blobType string, payload []byte) error {
	var compressed bytes.Buffer
	zw, err := zlib.NewWriterLevel(&compressed, zlibLevel)
	if err != nil {
		return err
	}
	if _, err := zw.Write(payload); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	var blob message
	blob.int64Field(2, int64(len(payload))) // raw_size
	blob.bytesField(3, compressed.Bytes())

	var hdr message
	hdr.stringField(1, blobType)
	hdr.int64Field(3, int64(blob.len()))

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(hdr.len()))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("pbf: write blob header length: %w", err)
	}
	if _, err := w.w.Write(hdr.bytes()); err != nil {
		return fmt.Errorf("pbf: write blob header: %w", err)
	}
	if _, err := w.w.Write(blob.bytes()); err != nil {
		return fmt.Errorf("pbf: write blob: %w", err)
	}
	return nil
}
