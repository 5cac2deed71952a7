package cache

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/nvdb2osm-go/internal/nvdb"
)

// Reader streams segment records out of a Parquet cache file in row order.
type Reader struct {
	pf    *file.Reader
	rr    pqarrow.RecordReader
	batch arrow.Record
	row   int
	rec   nvdb.Record
	err   error
}

// NewReader opens a cache file for streaming.
func NewReader(ctx context.Context, path string) (*Reader, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open segment cache: %w", err)
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 8192}, memory.DefaultAllocator)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("read segment cache: %w", err)
	}
	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("scan segment cache: %w", err)
	}
	return &Reader{pf: pf, rr: rr}, nil
}

// Next advances to the next record. Returns false at end of file or on
// error; check Err afterwards.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	for r.batch == nil || r.row >= int(r.batch.NumRows()) {
		if r.batch != nil {
			r.batch.Release()
			r.batch = nil
		}
		if !r.rr.Next() {
			if err := r.rr.Err(); err != nil && !errors.Is(err, io.EOF) {
				r.err = err
			}
			return false
		}
		r.batch = r.rr.Record()
		r.batch.Retain()
		r.row = 0
	}

	routeIDs := r.batch.Column(0).(*array.String)
	measures := r.batch.Column(1).(*array.Float64)
	wkbs := r.batch.Column(2).(*array.Binary)
	propsCol := r.batch.Column(3).(*array.String)

	props, err := nvdb.FromJSON([]byte(propsCol.Value(r.row)))
	if err != nil {
		r.err = fmt.Errorf("row %d: %w", r.row, err)
		return false
	}
	// route id and measure ride along as ordinary properties so the
	// mapper and driver see one uniform column space
	if _, ok := props[nvdb.ColRouteID]; !ok {
		props[nvdb.ColRouteID] = nvdb.String(routeIDs.Value(r.row))
	}
	if _, ok := props[nvdb.ColFromMeasure]; !ok {
		props[nvdb.ColFromMeasure] = nvdb.Float(measures.Value(r.row))
	}

	wkb := make([]byte, len(wkbs.Value(r.row)))
	copy(wkb, wkbs.Value(r.row))

	r.rec = nvdb.Record{WKB: wkb, Props: props}
	r.row++
	return true
}

// Record returns the current record.
func (r *Reader) Record() nvdb.Record { return r.rec }

// Err returns the terminal error, if any.
func (r *Reader) Err() error { return r.err }

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.batch != nil {
		r.batch.Release()
		r.batch = nil
	}
	if r.rr != nil {
		r.rr.Release()
	}
	return r.pf.Close()
}
