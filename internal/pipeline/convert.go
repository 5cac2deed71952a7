// Package pipeline wires the conversion core together: tag mapping, node
// interning, way building and PBF encoding over one ordered segment
// stream, plus the partitioning driver that runs chunks in parallel with
// disjoint id bands.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/nvdb2osm-go/internal/build"
	"github.com/wegman-software/nvdb2osm-go/internal/config"
	"github.com/wegman-software/nvdb2osm-go/internal/flex"
	"github.com/wegman-software/nvdb2osm-go/internal/geojson"
	"github.com/wegman-software/nvdb2osm-go/internal/logger"
	"github.com/wegman-software/nvdb2osm-go/internal/nvdb"
	"github.com/wegman-software/nvdb2osm-go/internal/pbf"
	"github.com/wegman-software/nvdb2osm-go/internal/tagmap"
	"github.com/wegman-software/nvdb2osm-go/internal/wkb"
)

// Source is an ordered stream of segment records. Records must arrive
// sorted by (ROUTE_ID, FROM_MEASURE); the way builder depends on it.
type Source interface {
	Next() bool
	Record() nvdb.Record
	Err() error
}

// Options parameterizes one chunk conversion.
type Options struct {
	OutputPath  string
	Policy      build.Policy
	NodeIDStart int64
	WayIDStart  int64

	// Program is the header writingprogram string; fixed per binary so
	// output stays byte-reproducible.
	Program string

	// Lua is an optional per-segment tag hook. The runtime is single-threaded;
	// each chunk needs its own.
	Lua *flex.Runtime

	// GeoJSON, when set, additionally collects built ways for debugging.
	GeoJSON *geojson.Export

	// SpillPath moves the node table into a memory-mapped file.
	SpillPath     string
	SpillCapacity int
}

// Stats summarizes one conversion.
type Stats struct {
	SegmentsRead    int64
	SegmentsDropped int64
	NodesWritten    int64
	WaysWritten     int64

	// Aggregated warning counts, logged once per run.
	BadWKB     int64
	Degenerate int64
	LuaDropped int64
}

func (s *Stats) add(o Stats) {
	s.SegmentsRead += o.SegmentsRead
	s.SegmentsDropped += o.SegmentsDropped
	s.NodesWritten += o.NodesWritten
	s.WaysWritten += o.WaysWritten
	s.BadWKB += o.BadWKB
	s.Degenerate += o.Degenerate
	s.LuaDropped += o.LuaDropped
}

type featureNode struct {
	lon, lat int32
	tags     osm.Tags
}

type wayRecord struct {
	refs []int64 // interner offsets
	tags osm.Tags
}

// Convert runs the full core pipeline for one chunk and writes a PBF file.
// Output is a deterministic function of the input order, the policy and
// the id starts.
func Convert(ctx context.Context, src Source, opts Options) (Stats, error) {
	log := logger.Get()
	var stats Stats

	if opts.NodeIDStart < 1 || opts.WayIDStart < 1 {
		return stats, fmt.Errorf("id starts must be >= 1 (got node %d, way %d)", opts.NodeIDStart, opts.WayIDStart)
	}

	var interner *build.Interner
	if opts.SpillPath != "" {
		var err error
		interner, err = build.NewInternerSpilled(opts.SpillPath, opts.SpillCapacity)
		if err != nil {
			return stats, err
		}
	} else {
		interner = build.NewInterner()
	}
	defer interner.Close()

	var features []featureNode
	var ways []wayRecord
	builder := build.NewBuilder(opts.Policy, func(w build.Way) {
		ways = append(ways, wayRecord{refs: w.Refs, tags: sortTags(w.Tags)})
	})

	for src.Next() {
		if stats.SegmentsRead%8192 == 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			default:
			}
		}
		stats.SegmentsRead++

		rec := src.Record()
		rec.Props.Normalize()
		mapped := tagmap.Map(rec.Props)
		if mapped.Drop {
			stats.SegmentsDropped++
			continue
		}

		line, err := wkb.DecodeLineString(rec.WKB)
		if err != nil {
			stats.BadWKB++
			stats.SegmentsDropped++
			continue
		}

		tags, key := mapped.Tags, mapped.Key
		if opts.Lua != nil && opts.Lua.Active() {
			hooked, keep, err := opts.Lua.ProcessWay(tags)
			if err != nil {
				return stats, err
			}
			if !keep {
				stats.LuaDropped++
				stats.SegmentsDropped++
				continue
			}
			tags = hooked
			key = rekey(key, tags)
		}

		offsets := make([]int64, len(line))
		for i, p := range line {
			offsets[i] = interner.Intern(build.Quantize(p[0]), build.Quantize(p[1]))
		}

		for _, f := range mapped.Features {
			features = append(features, featureNode{
				lon:  build.Quantize(line[0][0]),
				lat:  build.Quantize(line[0][1]),
				tags: sortTags(f.Tags),
			})
		}

		if !builder.Add(key, offsets, tags) {
			stats.Degenerate++
			stats.SegmentsDropped++
		}
	}
	if err := src.Err(); err != nil {
		return stats, fmt.Errorf("read segments: %w", err)
	}
	builder.Close()

	totalNodes := int64(len(features)) + int64(interner.Len())
	if totalNodes > config.IDBandSize || int64(len(ways)) > config.IDBandSize {
		return stats, fmt.Errorf("chunk exceeds id band: %d nodes, %d ways", totalNodes, len(ways))
	}

	if err := writePBF(interner, features, ways, opts); err != nil {
		return stats, err
	}
	stats.NodesWritten = totalNodes
	stats.WaysWritten = int64(len(ways))

	if opts.GeoJSON != nil {
		collectGeoJSON(opts.GeoJSON, interner, ways, opts.WayIDStart)
	}

	if stats.BadWKB > 0 || stats.Degenerate > 0 || stats.LuaDropped > 0 {
		log.Warn("segments dropped",
			zap.Int64("bad_wkb", stats.BadWKB),
			zap.Int64("degenerate", stats.Degenerate),
			zap.Int64("lua_rejected", stats.LuaDropped),
		)
	}
	return stats, nil
}

// writePBF emits feature nodes, interned nodes and ways in id order.
// Feature nodes take the low end of the band; interned nodes follow.
func writePBF(interner *build.Interner, features []featureNode, ways []wayRecord, opts Options) (err error) {
	f, err := os.Create(opts.OutputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	buf := bufio.NewWriterSize(f, 1<<20)

	wopts := []pbf.Option{pbf.WithWritingProgram(opts.Program)}
	if minLon, minLat, maxLon, maxLat, ok := interner.Bounds(); ok {
		wopts = append(wopts, pbf.WithBounds(pbf.Bounds{
			MinLon: int64(minLon) * pbf.Granularity,
			MinLat: int64(minLat) * pbf.Granularity,
			MaxLon: int64(maxLon) * pbf.Granularity,
			MaxLat: int64(maxLat) * pbf.Granularity,
		}))
	}
	w := pbf.NewWriter(buf, wopts...)

	featureBase := opts.NodeIDStart
	internBase := opts.NodeIDStart + int64(len(features))

	for i, fn := range features {
		if err := w.WriteNode(featureBase+int64(i), int64(fn.lat), int64(fn.lon), fn.tags); err != nil {
			return err
		}
	}
	for off := int64(0); off < int64(interner.Len()); off++ {
		lon, lat := interner.Coord(off)
		if err := w.WriteNode(internBase+off, int64(lat), int64(lon), nil); err != nil {
			return err
		}
	}

	refs := make([]int64, 0, 64)
	for i, way := range ways {
		refs = refs[:0]
		for _, off := range way.refs {
			id := internBase + off
			// a ref outside the emitted node range is a builder bug
			if off < 0 || off >= int64(interner.Len()) {
				return fmt.Errorf("way %d references unknown node offset %d", i, off)
			}
			refs = append(refs, id)
		}
		if err := w.WriteWay(opts.WayIDStart+int64(i), append([]int64(nil), refs...), way.tags); err != nil {
			return err
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	return buf.Flush()
}

func collectGeoJSON(export *geojson.Export, interner *build.Interner, ways []wayRecord, wayIDStart int64) {
	for i, way := range ways {
		coords := make([][]float64, len(way.refs))
		for j, off := range way.refs {
			lon, lat := interner.Coord(off)
			coords[j] = []float64{float64(lon) / 1e7, float64(lat) / 1e7}
		}
		tags := make(map[string]string, len(way.tags))
		for _, t := range way.tags {
			tags[t.Key] = t.Value
		}
		export.AddWay(wayIDStart+int64(i), coords, tags)
	}
}

// rekey recomputes the join key after the Lua hook rewrote the tags.
func rekey(key build.WayKey, tags map[string]string) build.WayKey {
	partial, full := build.Fingerprints(tags)
	key.Highway = tags["highway"]
	key.Ref = tags["ref"]
	key.Name = tags["name"]
	key.Fingerprint = partial
	key.FullFingerprint = full
	return key
}

// sortTags renders a tag map as a deterministically ordered tag list.
func sortTags(tags map[string]string) osm.Tags {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(osm.Tags, 0, len(keys))
	for _, k := range keys {
		out = append(out, osm.Tag{Key: k, Value: tags[k]})
	}
	return out
}
