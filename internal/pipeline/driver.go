package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/nvdb2osm-go/internal/build"
	"github.com/wegman-software/nvdb2osm-go/internal/config"
	"github.com/wegman-software/nvdb2osm-go/internal/flex"
	"github.com/wegman-software/nvdb2osm-go/internal/geojson"
	"github.com/wegman-software/nvdb2osm-go/internal/logger"
	"github.com/wegman-software/nvdb2osm-go/internal/nvdb"
	"github.com/wegman-software/nvdb2osm-go/internal/source"
)

// Result is the driver's outcome: aggregated stats plus the files written.
type Result struct {
	Stats Stats
	Files []string
}

// Run converts a segment stream according to the configuration. Without a
// partition column it is one chunk into one file. With one, the input is
// sliced by column value (municipality code, typically), chunks convert in
// parallel into part files, and each chunk owns an exclusive band of
// config.IDBandSize node and way ids so a later sort-merge cannot collide.
func Run(ctx context.Context, src Source, cfg *config.Config) (Result, error) {
	log := logger.Get()

	policy, err := build.ParsePolicy(cfg.SimplifyMethod)
	if err != nil {
		return Result{}, err
	}

	if cfg.PartitionColumn == "" {
		opts, err := chunkOptions(cfg, policy, cfg.OutputFile, 0)
		if err != nil {
			return Result{}, err
		}
		if opts.Lua != nil {
			defer opts.Lua.Close()
		}
		if cfg.GeoJSONFile != "" {
			opts.GeoJSON = geojson.NewExport()
		}
		stats, err := Convert(ctx, src, opts)
		if err != nil {
			return Result{}, err
		}
		if opts.GeoJSON != nil {
			if err := opts.GeoJSON.WriteFile(cfg.GeoJSONFile); err != nil {
				return Result{}, err
			}
			log.Info("wrote debug geojson",
				zap.String("path", cfg.GeoJSONFile),
				zap.Int("ways", opts.GeoJSON.Len()))
		}
		return Result{Stats: stats, Files: []string{cfg.OutputFile}}, nil
	}

	if cfg.GeoJSONFile != "" {
		log.Warn("debug geojson is only written in single-chunk runs; skipping")
	}

	partitions, order, err := partition(src, cfg.PartitionColumn)
	if err != nil {
		return Result{}, err
	}
	log.Info("partitioned input",
		zap.String("column", cfg.PartitionColumn),
		zap.Int("chunks", len(order)))

	files := make([]string, len(order))
	chunkStats := make([]Stats, len(order))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, key := range order {
		i, key := i, key
		g.Go(func() error {
			path := partPath(cfg.OutputFile, i)
			opts, err := chunkOptions(cfg, policy, path, i)
			if err != nil {
				return err
			}
			if opts.Lua != nil {
				defer opts.Lua.Close()
			}
			stats, err := Convert(gctx, source.NewSlice(partitions[key]), opts)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", key, err)
			}
			mu.Lock()
			files[i] = path
			chunkStats[i] = stats
			mu.Unlock()
			log.Debug("chunk complete",
				zap.String("partition", key),
				zap.Int64("segments", stats.SegmentsRead),
				zap.Int64("ways", stats.WaysWritten))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var result Result
	result.Files = files
	for _, s := range chunkStats {
		result.Stats.add(s)
	}
	return result, nil
}

// chunkOptions builds the per-chunk conversion options; chunk index selects
// the id band.
func chunkOptions(cfg *config.Config, policy build.Policy, path string, chunk int) (Options, error) {
	opts := Options{
		OutputPath:  path,
		Policy:      policy,
		NodeIDStart: cfg.NodeIDStart + int64(chunk)*config.IDBandSize,
		WayIDStart:  cfg.WayIDStart + int64(chunk)*config.IDBandSize,
		Program:     "nvdb2osm-go",
	}
	if cfg.LuaScript != "" {
		rt := flex.NewRuntime()
		if err := rt.LoadFile(cfg.LuaScript); err != nil {
			rt.Close()
			return Options{}, err
		}
		opts.Lua = rt
	}
	if cfg.SpillNodesAbove > 0 {
		opts.SpillPath = filepath.Join(cfg.SpillDir, fmt.Sprintf("nvdb2osm-nodes-%d.tbl", chunk))
		opts.SpillCapacity = cfg.SpillNodesAbove
	}
	return opts, nil
}

// partition slices the stream by column value, preserving input order both
// across first appearance of each key and within every slice.
func partition(src Source, column string) (map[string][]nvdb.Record, []string, error) {
	partitions := make(map[string][]nvdb.Record)
	var order []string
	for src.Next() {
		rec := src.Record()
		key := rec.PartitionKey(column)
		if _, seen := partitions[key]; !seen {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], rec)
	}
	if err := src.Err(); err != nil {
		return nil, nil, fmt.Errorf("partition input: %w", err)
	}
	return partitions, order, nil
}

func partPath(output string, chunk int) string {
	ext := filepath.Ext(output)
	base := output[:len(output)-len(ext)]
	if ext == ".pbf" && filepath.Ext(base) == ".osm" {
		base = base[:len(base)-len(".osm")]
		ext = ".osm.pbf"
	}
	return fmt.Sprintf("%s.part-%03d%s", base, chunk, ext)
}
