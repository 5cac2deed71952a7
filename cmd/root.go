package cmd

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/nvdb2osm-go/internal/config"
	"github.com/wegman-software/nvdb2osm-go/internal/logger"
)

var (
	cfg             = config.DefaultConfig()
	profileFile     string
	verbose         bool
	logFile         string
	metricsInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "nvdb2osm-go",
	Short: "Convert the Swedish national road database to OSM PBF",
	Long: `nvdb2osm-go converts NVDB road-network deliveries into OpenStreetMap
PBF files that routers and renderers can ingest directly.

Features:
  - Rule-based derivation of OSM tags from NVDB attributes
  - Way simplification by ref/name, connectivity or route id
  - Streaming PBF encoder with dense nodes and stable id bands
  - Parallel per-municipality chunking for country-scale input
  - Parquet segment cache for fast repeated runs
  - Lua hooks for custom tag post-processing`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if profileFile != "" {
			if err := cfg.LoadProfile(profileFile); err != nil {
				return err
			}
		}
		cfg.Verbose = verbose
		if logFile != "" {
			cfg.LogFile = logFile
		}
		cfg.MetricsInterval = metricsInterval

		logger.Init(cfg.Verbose, cfg.LogFile)
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&profileFile, "profile", "", "Path to YAML run profile")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 30*time.Second, "Interval for system metrics logging (e.g., 10s, 1m)")
	rootCmd.PersistentFlags().IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "Number of parallel chunk workers")
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
