// Package build turns tagged segments into the node/way graph: it interns
// quantized coordinates into shared nodes and joins runs of segments into
// ways under a selectable policy.
package build

import (
	"fmt"
	"math"
)

// Quantize converts decimal degrees to the 1e-7 degree integer grid. Ties
// round to even, so re-runs over re-projected input stay stable.
func Quantize(deg float64) int32 {
	return int32(math.RoundToEven(deg * 1e7))
}

// packCoord packs a quantized lon/lat pair into the single hash key used by
// the node table.
func packCoord(lon, lat int32) uint64 {
	return uint64(uint32(lon))<<32 | uint64(uint32(lat))
}

// Interner deduplicates quantized coordinates into densely numbered node
// offsets. Offsets are 0-based; the pipeline shifts them into the chunk's id
// band when writing.
type Interner struct {
	table  nodeTable
	coords []int32 // lon,lat pairs indexed by offset

	minLon, minLat int32
	maxLon, maxLat int32
}

// NewInterner creates an interner with an in-memory node table.
func NewInterner() *Interner {
	return &Interner{table: newMemTable(1 << 16)}
}

// NewInternerSpilled creates an interner whose hash table lives in a
// memory-mapped file, for chunks whose distinct-point count would not fit
// comfortably in RAM. capacityHint sizes the initial table.
func NewInternerSpilled(path string, capacityHint int) (*Interner, error) {
	t, err := newMmapTable(path, capacityHint)
	if err != nil {
		return nil, fmt.Errorf("create spilled node table: %w", err)
	}
	return &Interner{table: t}, nil
}

// Intern returns the node offset for a quantized coordinate, allocating the
// next offset on first observation. Idempotent per grid point.
func (it *Interner) Intern(lon, lat int32) int64 {
	key := packCoord(lon, lat)
	if off, ok := it.table.get(key); ok {
		return off
	}
	off := int64(len(it.coords) / 2)
	it.table.put(key, off)
	if len(it.coords) == 0 {
		it.minLon, it.maxLon = lon, lon
		it.minLat, it.maxLat = lat, lat
	} else {
		it.minLon = min(it.minLon, lon)
		it.maxLon = max(it.maxLon, lon)
		it.minLat = min(it.minLat, lat)
		it.maxLat = max(it.maxLat, lat)
	}
	it.coords = append(it.coords, lon, lat)
	return off
}

// Len returns the number of distinct interned points.
func (it *Interner) Len() int {
	return len(it.coords) / 2
}

// Coord returns the quantized coordinate of a node offset.
func (it *Interner) Coord(off int64) (lon, lat int32) {
	return it.coords[off*2], it.coords[off*2+1]
}

// Bounds returns the quantized bounding box of all interned points.
func (it *Interner) Bounds() (minLon, minLat, maxLon, maxLat int32, ok bool) {
	if len(it.coords) == 0 {
		return 0, 0, 0, 0, false
	}
	return it.minLon, it.minLat, it.maxLon, it.maxLat, true
}

// Close releases the backing table.
func (it *Interner) Close() error {
	return it.table.close()
}

// mix64 scrambles the packed coordinate before probing; neighboring grid
// points would otherwise cluster in the table.
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
