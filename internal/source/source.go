// Package source provides segment record streams beyond the Parquet cache:
// in-memory slices (partition chunks, tests) and PostGIS tables.
package source

import "github.com/wegman-software/nvdb2osm-go/internal/nvdb"

// Slice streams an in-memory record list. The partitioning driver uses it
// to feed per-chunk conversions.
type Slice struct {
	records []nvdb.Record
	pos     int
	cur     nvdb.Record
}

// NewSlice wraps records in a stream.
func NewSlice(records []nvdb.Record) *Slice {
	return &Slice{records: records}
}

func (s *Slice) Next() bool {
	if s.pos >= len(s.records) {
		return false
	}
	s.cur = s.records[s.pos]
	s.pos++
	return true
}

func (s *Slice) Record() nvdb.Record { return s.cur }
func (s *Slice) Err() error          { return nil }
func (s *Slice) Close() error        { return nil }
