// Package geojson dumps built ways as a GeoJSON feature collection for
// visual debugging of the join policies.
package geojson

import (
	"encoding/json"
	"fmt"
	"os"

	gj "github.com/paulmach/go.geojson"
)

// Export collects way geometries for a debug dump.
type Export struct {
	fc *gj.FeatureCollection
}

// NewExport creates an empty collection.
func NewExport() *Export {
	return &Export{fc: gj.NewFeatureCollection()}
}

// AddWay appends one way. coords are [lon, lat] pairs in degrees.
func (e *Export) AddWay(id int64, coords [][]float64, tags map[string]string) {
	f := gj.NewLineStringFeature(coords)
	f.ID = id
	for k, v := range tags {
		f.SetProperty(k, v)
	}
	e.fc.AddFeature(f)
}

// Len returns the number of collected ways.
func (e *Export) Len() int {
	return len(e.fc.Features)
}

// WriteFile marshals the collection to path.
func (e *Export) WriteFile(path string) error {
	data, err := json.Marshal(e.fc)
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}
