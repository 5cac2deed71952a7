// Package config holds the conversion run configuration: CLI flags merged
// over an optional YAML run profile over defaults.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// IDBandSize is the width of the exclusive node/way id band each partition
// chunk receives. Chunks never allocate outside their band, which is what
// lets independently written part files merge without id collisions.
const IDBandSize = 10_000_000

// Config holds the global configuration for a conversion run.
type Config struct {
	// Input settings
	InputFile string `yaml:"-"`
	FromDB    string `yaml:"from_db"`  // PostgreSQL connection string
	DBTable   string `yaml:"db_table"` // schema-qualified segment table

	// Output settings
	OutputFile  string `yaml:"output"`
	GeoJSONFile string `yaml:"debug_geojson"` // optional way dump for debugging

	// Conversion settings
	SimplifyMethod  string `yaml:"simplify"`
	NodeIDStart     int64  `yaml:"node_id_start"`
	WayIDStart      int64  `yaml:"way_id_start"`
	PartitionColumn string `yaml:"partition_column"`
	LuaScript       string `yaml:"lua_script"` // per-segment tag post-processing hook

	// Processing settings
	Workers int `yaml:"workers"`
	// SpillNodesAbove, when non-zero, moves the coordinate hash table to
	// a memory-mapped file sized for that many distinct points; 0 keeps
	// the table in memory.
	SpillNodesAbove int    `yaml:"spill_nodes_above"`
	SpillDir        string `yaml:"spill_dir"`

	// Logging and metrics
	Verbose         bool          `yaml:"verbose"`
	LogFile         string        `yaml:"log_file"`
	MetricsInterval time.Duration `yaml:"-"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SimplifyMethod:  "refname",
		NodeIDStart:     1,
		WayIDStart:      1,
		PartitionColumn: "",
		Workers:         runtime.NumCPU(),
		SpillNodesAbove: 0,
		SpillDir:        os.TempDir(),
		MetricsInterval: 30 * time.Second,
	}
}

// LoadProfile overlays a YAML run profile onto the config.
func (c *Config) LoadProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read run profile: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse run profile %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.InputFile == "" && c.FromDB == "" {
		return fmt.Errorf("an input file or --from-db connection is required")
	}
	if c.FromDB != "" && c.DBTable == "" {
		return fmt.Errorf("--db-table is required with --from-db")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file is required")
	}
	if c.NodeIDStart < 1 || c.WayIDStart < 1 {
		return fmt.Errorf("id starts must be >= 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}
