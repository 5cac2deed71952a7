// Package cache materializes segment streams as Parquet files: the WKB
// geometry plus the property map as JSON, ordered by (route id, measure).
// Repeated conversion runs read the cache instead of the original NVDB
// delivery.
package cache

import (
	"github.com/apache/arrow/go/v14/arrow"
)

// Schema is the columnar layout of a segment cache file.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "route_id", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "from_measure", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "wkb", Type: arrow.BinaryTypes.Binary, Nullable: false},
	{Name: "props", Type: arrow.BinaryTypes.String, Nullable: false},
}, nil)
