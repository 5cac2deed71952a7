package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/nvdb2osm-go/internal/cache"
	"github.com/wegman-software/nvdb2osm-go/internal/logger"
	"github.com/wegman-software/nvdb2osm-go/internal/metrics"
	"github.com/wegman-software/nvdb2osm-go/internal/pipeline"
	"github.com/wegman-software/nvdb2osm-go/internal/source"
)

var convertCmd = &cobra.Command{
	Use:   "convert [segments.parquet]",
	Short: "Convert an NVDB segment stream to an OSM PBF file",
	Long: `Read NVDB segments from a Parquet cache file (or a PostGIS table with
--from-db) and write an OSM PBF file.

Input must be sorted by (route id, start measure). With --partition-column
the input is sliced by that column (typically the municipality code
Kommu_141), chunks convert in parallel, and each chunk writes its own part
file within an exclusive 10M-wide id band. Part files merge with standard
OSM tooling (osmium sort / osmosis).`,
	Args: cobra.MaximumNArgs(1),
	Run:  runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&cfg.OutputFile, "output", "o", "", "Output .osm.pbf path")
	convertCmd.Flags().StringVar(&cfg.SimplifyMethod, "simplify", cfg.SimplifyMethod, "Way join policy: refname, connected or route")
	convertCmd.Flags().Int64Var(&cfg.NodeIDStart, "node-id-start", cfg.NodeIDStart, "First node id to allocate")
	convertCmd.Flags().Int64Var(&cfg.WayIDStart, "way-id-start", cfg.WayIDStart, "First way id to allocate")
	convertCmd.Flags().StringVar(&cfg.PartitionColumn, "partition-column", cfg.PartitionColumn, "Column to slice parallel chunks by (e.g. Kommu_141)")
	convertCmd.Flags().StringVar(&cfg.LuaScript, "lua-script", "", "Lua script with an nvdb2osm.process_way hook")
	convertCmd.Flags().StringVar(&cfg.GeoJSONFile, "debug-geojson", "", "Also dump built ways as GeoJSON (single-chunk runs)")
	convertCmd.Flags().StringVar(&cfg.FromDB, "from-db", "", "Read segments from PostGIS (connection string)")
	convertCmd.Flags().StringVar(&cfg.DBTable, "db-table", "", "Schema-qualified segment table for --from-db")
	convertCmd.Flags().IntVar(&cfg.SpillNodesAbove, "spill-nodes-above", cfg.SpillNodesAbove, "Expected distinct points; moves the node table to a disk-backed file (0 = in-memory)")
}

func runConvert(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		cfg.InputFile = args[0]
	}
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx := context.Background()
	if cfg.MetricsInterval > 0 {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go metrics.NewCollector(cfg.MetricsInterval, log).Start(metricsCtx)
	}

	src, closeSrc, err := openSource(ctx)
	if err != nil {
		exitWithError("failed to open input", err)
	}
	defer closeSrc()

	log.Info("starting conversion",
		zap.String("output", cfg.OutputFile),
		zap.String("simplify", cfg.SimplifyMethod),
		zap.Int64("node_id_start", cfg.NodeIDStart),
		zap.Int64("way_id_start", cfg.WayIDStart),
	)
	start := time.Now()

	result, err := pipeline.Run(ctx, src, cfg)
	if err != nil {
		exitWithError("conversion failed", err)
	}

	log.Info("conversion complete",
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
		zap.Int64("segments_read", result.Stats.SegmentsRead),
		zap.Int64("segments_dropped", result.Stats.SegmentsDropped),
		zap.Int64("nodes_written", result.Stats.NodesWritten),
		zap.Int64("ways_written", result.Stats.WaysWritten),
		zap.Strings("files", result.Files),
	)
	logger.Sync()
}

// openSource picks the configured segment stream: PostGIS or Parquet cache.
func openSource(ctx context.Context) (pipeline.Source, func(), error) {
	if cfg.FromDB != "" {
		pg, err := source.OpenPostgres(ctx, cfg.FromDB, cfg.DBTable)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	}
	r, err := cache.NewReader(ctx, cfg.InputFile)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { r.Close() }, nil
}
