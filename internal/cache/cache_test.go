package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"github.com/wegman-software/nvdb2osm-go/internal/nvdb"
	"github.com/wegman-software/nvdb2osm-go/internal/wkb"
)

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.parquet")

	enc := wkb.NewEncoder(128)
	records := []nvdb.Record{
		{
			WKB: append([]byte(nil), enc.EncodeLineString(orb.LineString{{17.0, 62.0}, {17.01, 62.005}})...),
			Props: nvdb.Properties{
				"ROUTE_ID":     nvdb.String("r1"),
				"FROM_MEASURE": nvdb.Float(0),
				"Motorvag":     nvdb.Int(1),
				"Vagnr_10370":  nvdb.String("E4"),
			},
		},
		{
			WKB: append([]byte(nil), enc.EncodeLineString(orb.LineString{{17.01, 62.005}, {17.02, 62.01}})...),
			Props: nvdb.Properties{
				"ROUTE_ID":     nvdb.String("r1"),
				"FROM_MEASURE": nvdb.Float(1200.5),
				"Slitl_152":    nvdb.Int(2),
				"Bredd_156":    nvdb.Float(5.5),
			},
		},
	}

	w, err := NewWriter(path, 1000)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(context.Background(), path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	var got []nvdb.Record
	for r.Next() {
		got = append(got, r.Record())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}

	if got[0].RouteID() != "r1" {
		t.Errorf("route id = %q", got[0].RouteID())
	}
	if got[1].FromMeasure() != 1200.5 {
		t.Errorf("measure = %v", got[1].FromMeasure())
	}
	if n, _ := got[0].Props.Int64("Motorvag"); n != 1 {
		t.Errorf("Motorvag = %d", n)
	}
	if f, _ := got[1].Props.Float64("Bredd_156"); f != 5.5 {
		t.Errorf("Bredd_156 = %v", f)
	}

	// Geometry survives byte-exact.
	ls, err := wkb.DecodeLineString(got[0].WKB)
	if err != nil {
		t.Fatalf("DecodeLineString: %v", err)
	}
	if ls[0] != (orb.Point{17.0, 62.0}) {
		t.Errorf("geometry = %v", ls)
	}
}
