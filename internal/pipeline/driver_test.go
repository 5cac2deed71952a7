package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/wegman-software/nvdb2osm-go/internal/config"
	"github.com/wegman-software/nvdb2osm-go/internal/nvdb"
	"github.com/wegman-software/nvdb2osm-go/internal/source"
)

func TestRunSingleChunk(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.InputFile = "in.parquet"
	cfg.OutputFile = filepath.Join(dir, "out.osm.pbf")
	cfg.GeoJSONFile = filepath.Join(dir, "ways.geojson")

	records := []nvdb.Record{
		segment(orb.LineString{{17.0, 62.0}, {17.01, 62.005}}, map[string]any{
			"Motorvag": 1, "Vagnr_10370": "E4", "ROUTE_ID": "r1",
		}),
	}
	result, err := Run(context.Background(), source.NewSlice(records), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Files) != 1 || result.Files[0] != cfg.OutputFile {
		t.Errorf("files = %v", result.Files)
	}
	if result.Stats.WaysWritten != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
	if _, err := os.Stat(cfg.GeoJSONFile); err != nil {
		t.Errorf("debug geojson not written: %v", err)
	}
}

func TestRunPartitioned(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.InputFile = "in.parquet"
	cfg.OutputFile = filepath.Join(dir, "out.osm.pbf")
	cfg.PartitionColumn = nvdb.ColMunicipality
	cfg.Workers = 2

	records := []nvdb.Record{
		segment(orb.LineString{{17.0, 62.0}, {17.01, 62.005}}, map[string]any{
			"Kateg_380": 3, "ROUTE_ID": "r1", "Kommu_141": 1280,
		}),
		segment(orb.LineString{{13.0, 55.6}, {13.01, 55.61}}, map[string]any{
			"Kateg_380": 4, "ROUTE_ID": "r2", "Kommu_141": 1480,
		}),
		segment(orb.LineString{{17.01, 62.005}, {17.02, 62.01}}, map[string]any{
			"Kateg_380": 3, "ROUTE_ID": "r1", "Kommu_141": 1280,
		}),
	}
	result, err := Run(context.Background(), source.NewSlice(records), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Files) != 2 {
		t.Fatalf("files = %v, want 2 part files", result.Files)
	}
	if result.Stats.SegmentsRead != 3 {
		t.Errorf("stats = %+v", result.Stats)
	}

	// Chunks occupy disjoint id bands.
	seenNodeBands := map[int64]bool{}
	for _, path := range result.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		scanner := osmpbf.New(context.Background(), bytes.NewReader(data), 1)
		var band int64 = -1
		for scanner.Scan() {
			if n, ok := scanner.Object().(*osm.Node); ok {
				b := (int64(n.ID) - 1) / config.IDBandSize
				if band == -1 {
					band = b
				} else if band != b {
					t.Errorf("%s spans id bands %d and %d", path, band, b)
				}
			}
		}
		scanner.Close()
		if seenNodeBands[band] {
			t.Errorf("band %d used by two chunks", band)
		}
		seenNodeBands[band] = true
	}
}

func TestPartPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"out.osm.pbf", "out.part-002.osm.pbf"},
		{"out.pbf", "out.part-002.pbf"},
		{"plain", "plain.part-002"},
	}
	for _, tt := range tests {
		if got := partPath(tt.in, 2); got != tt.want {
			t.Errorf("partPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
