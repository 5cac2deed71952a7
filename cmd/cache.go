package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/nvdb2osm-go/internal/cache"
	"github.com/wegman-software/nvdb2osm-go/internal/logger"
	"github.com/wegman-software/nvdb2osm-go/internal/source"
)

var cacheBatchSize int

var cacheCmd = &cobra.Command{
	Use:   "cache <input> <output.parquet>",
	Short: "Re-materialize a segment stream as a Parquet cache file",
	Long: `Copy a segment stream into a fresh Parquet cache file.

The input is either an existing cache file (useful to recompress or
re-batch it) or a PostGIS table with --from-db. Repeated conversion runs
read the cache instead of the original NVDB delivery.`,
	Args: cobra.ExactArgs(2),
	Run:  runCache,
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.Flags().IntVar(&cacheBatchSize, "batch-size", 100_000, "Rows per Parquet row group")
	cacheCmd.Flags().StringVar(&cfg.FromDB, "from-db", "", "Read segments from PostGIS (connection string)")
	cacheCmd.Flags().StringVar(&cfg.DBTable, "db-table", "", "Schema-qualified segment table for --from-db")
}

func runCache(cmd *cobra.Command, args []string) {
	log := logger.Get()
	ctx := context.Background()

	input, output := args[0], args[1]
	start := time.Now()

	var count int64
	w, err := cache.NewWriter(output, cacheBatchSize)
	if err != nil {
		exitWithError("failed to create cache writer", err)
	}

	if cfg.FromDB != "" {
		pg, err := source.OpenPostgres(ctx, cfg.FromDB, cfg.DBTable)
		if err != nil {
			exitWithError("failed to open segment database", err)
		}
		defer pg.Close()
		for pg.Next() {
			if err := w.Write(pg.Record()); err != nil {
				exitWithError("failed to write cache row", err)
			}
			count++
		}
		if err := pg.Err(); err != nil {
			exitWithError("failed to read segments", err)
		}
	} else {
		r, err := cache.NewReader(ctx, input)
		if err != nil {
			exitWithError("failed to open cache", err)
		}
		defer r.Close()
		for r.Next() {
			if err := w.Write(r.Record()); err != nil {
				exitWithError("failed to write cache row", err)
			}
			count++
		}
		if err := r.Err(); err != nil {
			exitWithError("failed to read cache", err)
		}
	}

	if err := w.Close(); err != nil {
		exitWithError("failed to finalize cache", err)
	}

	log.Info("cache written",
		zap.String("output", output),
		zap.Int64("segments", count),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	logger.Sync()
}
