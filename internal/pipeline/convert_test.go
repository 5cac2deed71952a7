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

	"github.com/wegman-software/nvdb2osm-go/internal/build"
	"github.com/wegman-software/nvdb2osm-go/internal/nvdb"
	"github.com/wegman-software/nvdb2osm-go/internal/source"
	"github.com/wegman-software/nvdb2osm-go/internal/wkb"
)

func segment(line orb.LineString, kv map[string]any) nvdb.Record {
	enc := wkb.NewEncoder(256)
	props := make(nvdb.Properties, len(kv))
	for k, v := range kv {
		switch t := v.(type) {
		case int:
			props[k] = nvdb.Int(int64(t))
		case float64:
			props[k] = nvdb.Float(t)
		case string:
			props[k] = nvdb.String(t)
		case bool:
			props[k] = nvdb.Bool(t)
		}
	}
	return nvdb.Record{
		WKB:   append([]byte(nil), enc.EncodeLineString(line)...),
		Props: props,
	}
}

func convert(t *testing.T, records []nvdb.Record, policy build.Policy) (Stats, []*osm.Node, []*osm.Way) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.osm.pbf")
	stats, err := Convert(context.Background(), source.NewSlice(records), Options{
		OutputPath:  path,
		Policy:      policy,
		NodeIDStart: 1,
		WayIDStart:  1,
		Program:     "nvdb2osm-go",
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	scanner := osmpbf.New(context.Background(), bytes.NewReader(data), 1)
	defer scanner.Close()
	var nodes []*osm.Node
	var ways []*osm.Way
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			nodes = append(nodes, o)
		case *osm.Way:
			ways = append(ways, o)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan output: %v", err)
	}
	return stats, nodes, ways
}

func TestScenarioSingleMotorway(t *testing.T) {
	records := []nvdb.Record{
		segment(orb.LineString{{17.0, 62.0}, {17.01, 62.005}}, map[string]any{
			"Motorvag":    1,
			"Vagnr_10370": "E4",
			"ROUTE_ID":    "r1",
		}),
	}
	stats, nodes, ways := convert(t, records, build.PolicyRefName)

	if stats.SegmentsRead != 1 || stats.SegmentsDropped != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(nodes) != 2 || len(ways) != 1 {
		t.Fatalf("got %d nodes, %d ways; want 2, 1", len(nodes), len(ways))
	}
	if nodes[0].ID != 1 || nodes[1].ID != 2 {
		t.Errorf("node ids = %d, %d; want 1, 2", nodes[0].ID, nodes[1].ID)
	}
	way := ways[0]
	if way.ID != 1 {
		t.Errorf("way id = %d, want 1", way.ID)
	}
	for k, v := range map[string]string{"highway": "motorway", "ref": "E4", "oneway": "yes"} {
		if way.Tags.Find(k) != v {
			t.Errorf("tag %s = %q, want %q", k, way.Tags.Find(k), v)
		}
	}
}

func TestScenarioColinearJoin(t *testing.T) {
	props := map[string]any{"Motorvag": 1, "Vagnr_10370": "E4", "ROUTE_ID": "r1"}
	records := []nvdb.Record{
		segment(orb.LineString{{17.0, 62.0}, {17.01, 62.005}}, props),
		segment(orb.LineString{{17.01, 62.005}, {17.02, 62.01}}, props),
	}
	_, nodes, ways := convert(t, records, build.PolicyRefName)

	if len(nodes) != 3 {
		t.Fatalf("got %d nodes, want 3 (shared endpoint interned once)", len(nodes))
	}
	if len(ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(ways))
	}
	if len(ways[0].Nodes) != 3 {
		t.Errorf("way has %d refs, want 3", len(ways[0].Nodes))
	}
}

func TestScenarioRefMismatchBlocksJoin(t *testing.T) {
	records := []nvdb.Record{
		segment(orb.LineString{{17.0, 62.0}, {17.01, 62.005}}, map[string]any{
			"Motorvag": 1, "Vagnr_10370": "E4", "ROUTE_ID": "r1",
		}),
		segment(orb.LineString{{17.01, 62.005}, {17.02, 62.01}}, map[string]any{
			"Motorvag": 1, "Vagnr_10370": "E45", "ROUTE_ID": "r1",
		}),
	}
	_, nodes, ways := convert(t, records, build.PolicyRefName)

	if len(nodes) != 3 {
		t.Fatalf("got %d nodes, want 3 distinct", len(nodes))
	}
	if len(ways) != 2 {
		t.Fatalf("got %d ways, want 2", len(ways))
	}
	shared := ways[0].Nodes[len(ways[0].Nodes)-1].ID
	if ways[1].Nodes[0].ID != shared {
		t.Errorf("ways do not share the joint node: %d vs %d", shared, ways[1].Nodes[0].ID)
	}
}

func TestScenarioBridgeWithLayer(t *testing.T) {
	records := []nvdb.Record{
		segment(orb.LineString{{16.4, 56.6}, {16.45, 56.62}}, map[string]any{
			"Konst_190": "bro",
			"Namn_193":  "Ölandsbron",
		}),
	}
	_, _, ways := convert(t, records, build.PolicyRefName)

	if len(ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(ways))
	}
	for k, v := range map[string]string{"bridge": "yes", "layer": "1", "bridge:name": "Ölandsbron"} {
		if ways[0].Tags.Find(k) != v {
			t.Errorf("tag %s = %q, want %q", k, ways[0].Tags.Find(k), v)
		}
	}
}

func TestScenarioReverseOneway(t *testing.T) {
	records := []nvdb.Record{
		segment(orb.LineString{{13.0, 55.6}, {13.01, 55.61}}, map[string]any{
			"B_ForbjudenFardriktning": 1,
		}),
	}
	_, _, ways := convert(t, records, build.PolicyRefName)

	if len(ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(ways))
	}
	if got := ways[0].Tags.Find("oneway"); got != "-1" {
		t.Errorf("oneway = %q, want -1", got)
	}
}

func TestScenarioFerry(t *testing.T) {
	records := []nvdb.Record{
		segment(orb.LineString{{18.0, 59.3}, {18.05, 59.32}}, map[string]any{
			"Farjeled": 1,
		}),
	}
	_, _, ways := convert(t, records, build.PolicyRefName)

	if len(ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(ways))
	}
	if got := ways[0].Tags.Find("route"); got != "ferry" {
		t.Errorf("route = %q, want ferry", got)
	}
	if got := ways[0].Tags.Find("highway"); got != "" {
		t.Errorf("highway = %q, want absent", got)
	}
}

func TestWayRefsAlwaysResolvable(t *testing.T) {
	props := map[string]any{"Kateg_380": 3, "ROUTE_ID": "r9"}
	records := []nvdb.Record{
		segment(orb.LineString{{15.0, 58.0}, {15.002, 58.001}, {15.004, 58.002}}, props),
		segment(orb.LineString{{15.004, 58.002}, {15.006, 58.003}}, props),
		segment(orb.LineString{{15.1, 58.1}, {15.102, 58.101}}, props),
	}
	_, nodes, ways := convert(t, records, build.PolicyConnected)

	ids := make(map[int64]bool, len(nodes))
	for _, n := range nodes {
		ids[int64(n.ID)] = true
	}
	for _, w := range ways {
		for _, ref := range w.Nodes {
			if !ids[int64(ref.ID)] {
				t.Errorf("way %d references missing node %d", w.ID, ref.ID)
			}
		}
	}
}

func TestConvertDropsMalformedWKB(t *testing.T) {
	good := segment(orb.LineString{{15.0, 58.0}, {15.01, 58.01}}, map[string]any{"Kateg_380": 3})
	bad := nvdb.Record{WKB: []byte{0x07, 0x01, 0x02}, Props: nvdb.Properties{}}

	stats, _, ways := convert(t, []nvdb.Record{good, bad}, build.PolicyRefName)
	if stats.BadWKB != 1 || stats.SegmentsDropped != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(ways) != 1 {
		t.Errorf("got %d ways, want 1 (bad segment dropped, good kept)", len(ways))
	}
}

func TestConvertDropsZeroLengthSegment(t *testing.T) {
	// Both vertices quantize to the same grid point.
	records := []nvdb.Record{
		segment(orb.LineString{{15.0, 58.0}, {15.00000001, 58.00000001}}, map[string]any{}),
	}
	stats, nodes, ways := convert(t, records, build.PolicyRefName)
	if stats.Degenerate != 1 || stats.SegmentsDropped != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(ways) != 0 {
		t.Errorf("got %d ways, want 0", len(ways))
	}
	// The interned point still exists; it is just unused by ways.
	if len(nodes) != 1 {
		t.Errorf("got %d nodes, want 1", len(nodes))
	}
}

func TestConvertFeatureNodes(t *testing.T) {
	records := []nvdb.Record{
		segment(orb.LineString{{15.0, 58.0}, {15.01, 58.01}}, map[string]any{
			"Kateg_380": 3,
			"Passa_85":  4,
		}),
	}
	_, nodes, _ := convert(t, records, build.PolicyRefName)

	if len(nodes) != 3 {
		t.Fatalf("got %d nodes, want 2 way nodes + 1 feature", len(nodes))
	}
	// Feature nodes take the low ids and precede the untagged nodes.
	first := nodes[0]
	if first.ID != 1 || first.Tags.Find("highway") != "crossing" {
		t.Errorf("first node = id %d tags %v", first.ID, first.Tags)
	}
	if first.Tags.Find("crossing") != "traffic_signals" {
		t.Errorf("crossing detail = %v", first.Tags)
	}
}

func TestConvertIDStartsRespected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banded.osm.pbf")
	records := []nvdb.Record{
		segment(orb.LineString{{15.0, 58.0}, {15.01, 58.01}}, map[string]any{"Kateg_380": 3}),
	}
	_, err := Convert(context.Background(), source.NewSlice(records), Options{
		OutputPath:  path,
		Policy:      build.PolicyRefName,
		NodeIDStart: 50_000_001,
		WayIDStart:  20_000_001,
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	data, _ := os.ReadFile(path)
	scanner := osmpbf.New(context.Background(), bytes.NewReader(data), 1)
	defer scanner.Close()
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			if int64(o.ID) < 50_000_001 {
				t.Errorf("node id %d below band start", o.ID)
			}
		case *osm.Way:
			if int64(o.ID) < 20_000_001 {
				t.Errorf("way id %d below band start", o.ID)
			}
		}
	}
}

func TestConvertDeterministic(t *testing.T) {
	records := []nvdb.Record{
		segment(orb.LineString{{17.0, 62.0}, {17.01, 62.005}}, map[string]any{
			"Motorvag": 1, "Vagnr_10370": "E4", "ROUTE_ID": "r1", "F_Hogst_225": 110, "B_Hogst_225": 110,
		}),
		segment(orb.LineString{{17.01, 62.005}, {17.02, 62.01}}, map[string]any{
			"Motorvag": 1, "Vagnr_10370": "E4", "ROUTE_ID": "r1", "F_Hogst_225": 110, "B_Hogst_225": 110,
		}),
		segment(orb.LineString{{13.0, 55.6}, {13.01, 55.61}}, map[string]any{
			"Kateg_380": 4, "Kommu_141": 1280, "Huvnr_556_1": "102", "ROUTE_ID": "r2",
		}),
	}

	run := func() []byte {
		path := filepath.Join(t.TempDir(), "out.osm.pbf")
		_, err := Convert(context.Background(), source.NewSlice(records), Options{
			OutputPath:  path,
			Policy:      build.PolicyRefName,
			NodeIDStart: 1,
			WayIDStart:  1,
			Program:     "nvdb2osm-go",
		})
		if err != nil {
			t.Fatalf("Convert: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	if !bytes.Equal(run(), run()) {
		t.Error("two identical runs produced different bytes")
	}
}

func TestConvertRoutePolicy(t *testing.T) {
	records := []nvdb.Record{
		segment(orb.LineString{{15.0, 58.0}, {15.01, 58.01}}, map[string]any{
			"Kateg_380": 3, "ROUTE_ID": "r1", "F_Hogst_225": 90, "B_Hogst_225": 90,
		}),
		segment(orb.LineString{{15.01, 58.01}, {15.02, 58.02}}, map[string]any{
			"Kateg_380": 3, "ROUTE_ID": "r1", "Slitl_152": 1,
		}),
	}
	_, _, ways := convert(t, records, build.PolicyRoute)

	if len(ways) != 1 {
		t.Fatalf("got %d ways, want 1 (route policy ignores tag differences)", len(ways))
	}
	// Union with first-wins: both the speed and the later surface survive.
	if ways[0].Tags.Find("maxspeed") != "90" || ways[0].Tags.Find("surface") != "paved" {
		t.Errorf("tags = %v", ways[0].Tags)
	}
}
