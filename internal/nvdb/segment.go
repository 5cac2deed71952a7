package nvdb

// Columns consulted for grouping; they never become tags.
const (
	ColRouteID      = "ROUTE_ID"
	ColFromMeasure  = "FROM_MEASURE"
	ColMunicipality = "Kommu_141"
)

// Record is one raw input segment: a WKB-encoded WGS84 linestring plus its
// attribute map. Records arrive sorted by (ROUTE_ID, FROM_MEASURE); the way
// builder depends on that order.
type Record struct {
	WKB   []byte
	Props Properties
}

// RouteID returns the route identifier, or "" when absent.
func (r Record) RouteID() string {
	return r.Props.Text(ColRouteID)
}

// FromMeasure returns the start measure along the route.
func (r Record) FromMeasure() float64 {
	m, _ := r.Props.Float64(ColFromMeasure)
	return m
}

// PartitionKey returns the value of the named column as text, used by the
// driver to slice the input into independent chunks.
func (r Record) PartitionKey(column string) string {
	return r.Props.Text(column)
}
