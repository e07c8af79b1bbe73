// Package config provides unified configuration loading for orderlattice.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/orderlattice/internal/constants"
	"github.com/nvandessel/orderlattice/internal/decompose"
	"github.com/nvandessel/orderlattice/internal/observables"
	"github.com/nvandessel/orderlattice/internal/sweep"
	"gopkg.in/yaml.v3"
)

// OrderConfig contains all orderlattice configuration settings.
type OrderConfig struct {
	// Simulation contains the per-point Monte Carlo settings.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Sweep contains the (T, H) grid and scheduling settings.
	Sweep SweepConfig `json:"sweep" yaml:"sweep"`

	// Decomposition contains the correlation graph settings.
	Decomposition DecompositionConfig `json:"decomposition" yaml:"decomposition"`

	// Logging contains settings for operational and point logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store contains settings for result persistence.
	Store StoreConfig `json:"store" yaml:"store"`

	// Backup contains snapshot retention settings.
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// SimulationConfig configures one point's lattice run.
type SimulationConfig struct {
	// Size is the lattice side L.
	Size int `json:"size" yaml:"size"`

	// Coupling is the ferromagnetic coupling J.
	Coupling float64 `json:"coupling" yaml:"coupling"`

	EquilibrationSweeps int `json:"equilibration_sweeps" yaml:"equilibration_sweeps"`
	SamplingSweeps      int `json:"sampling_sweeps" yaml:"sampling_sweeps"`
	SampleInterval      int `json:"sample_interval" yaml:"sample_interval"`

	// Rule is "metropolis" or "wolff".
	Rule string `json:"rule" yaml:"rule"`

	// Order is the Metropolis site order: "random" or "sequential".
	Order string `json:"order" yaml:"order"`

	// Init is the starting configuration: "auto", "aligned" or "random".
	Init string `json:"init" yaml:"init"`

	// Seed is the base seed every point's stream is derived from.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// TemperatureRange describes evenly spaced temperatures, both ends included.
type TemperatureRange struct {
	Start float64 `json:"start" yaml:"start"`
	Stop  float64 `json:"stop" yaml:"stop"`
	Steps int     `json:"steps" yaml:"steps"`
}

// SweepConfig configures the parameter grid.
type SweepConfig struct {
	// Temperatures is used when TemperatureList is empty.
	Temperatures TemperatureRange `json:"temperatures" yaml:"temperatures"`

	// TemperatureList overrides Temperatures with explicit values.
	TemperatureList []float64 `json:"temperature_list,omitempty" yaml:"temperature_list,omitempty"`

	// Fields are the external field values; the grid is field-major.
	Fields []float64 `json:"fields" yaml:"fields"`

	// Workers bounds concurrent points (0 = GOMAXPROCS).
	Workers int `json:"workers" yaml:"workers"`

	// MaxSweeps caps equilibration plus sampling sweeps per point.
	MaxSweeps int `json:"max_sweeps" yaml:"max_sweeps"`
}

// DecompositionConfig configures the correlation graph and band partition.
type DecompositionConfig struct {
	BlockSize int `json:"block_size" yaml:"block_size"`
	MacroSize int `json:"macro_size" yaml:"macro_size"`

	// NoiseZ is the number of standard errors a correlation must clear to count.
	NoiseZ float64 `json:"noise_z" yaml:"noise_z"`

	// Pair selection for lattices larger than FullPairwiseMaxL.
	FullPairwiseMaxL int `json:"full_pairwise_max_l" yaml:"full_pairwise_max_l"`
	MaxSeparation    int `json:"max_separation" yaml:"max_separation"`
	LongRangeSamples int `json:"long_range_samples" yaml:"long_range_samples"`
}

// LoggingConfig configures orderlattice's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables point tracing to .orderlattice/points.jsonl.
	Level string `json:"level" yaml:"level"`
}

// StoreConfig configures result persistence.
type StoreConfig struct {
	// DBPath is the SQLite database file. Supports ${VAR} syntax.
	// Empty means ~/.orderlattice/results.db.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// BackupConfig configures result store snapshots.
type BackupConfig struct {
	// MaxCount keeps the N newest snapshots. 0 disables the count limit.
	MaxCount int `json:"max_count" yaml:"max_count"`

	// MaxAge keeps snapshots younger than this ("30d", "2w", "720h").
	// A snapshot is kept if either limit keeps it.
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty"`
}

// Default returns an OrderConfig with sensible defaults.
func Default() *OrderConfig {
	return &OrderConfig{
		Simulation: SimulationConfig{
			Size:                constants.DefaultLatticeSize,
			Coupling:            constants.DefaultCoupling,
			EquilibrationSweeps: constants.DefaultEquilibrationSweeps,
			SamplingSweeps:      constants.DefaultSamplingSweeps,
			SampleInterval:      constants.DefaultSampleInterval,
			Rule:                string(constants.RuleMetropolis),
			Order:               string(constants.OrderRandom),
			Init:                string(constants.InitAuto),
			Seed:                constants.DefaultBaseSeed,
		},
		Sweep: SweepConfig{
			Temperatures: TemperatureRange{Start: 1.0, Stop: 4.0, Steps: 31},
			Fields:       append([]float64(nil), constants.DefaultFields...),
			Workers:      0,
			MaxSweeps:    constants.DefaultMaxSweeps,
		},
		Decomposition: DecompositionConfig{
			BlockSize:        constants.DefaultBlockSize,
			MacroSize:        constants.DefaultMacroSize,
			NoiseZ:           constants.DefaultNoiseZ,
			FullPairwiseMaxL: constants.DefaultFullPairwiseMaxL,
			MaxSeparation:    constants.DefaultMaxSeparation,
			LongRangeSamples: constants.DefaultLongRangeSamples,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Backup: BackupConfig{
			MaxCount: 10,
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.orderlattice/config.yaml -> environment variables
func Load() (*OrderConfig, error) {
	config := Default()

	// Try to load from default config file
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".orderlattice", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*OrderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.DBPath = expandEnvVars(config.Store.DBPath)

	return config, nil
}

// Validate checks the settings that do not depend on the grid. Simulation
// limits are enforced by sweep.Config.Validate when the sweep starts.
func (c *OrderConfig) Validate() error {
	if !constants.UpdateRule(c.Simulation.Rule).Valid() {
		return fmt.Errorf("invalid rule: %s (valid: metropolis, wolff)", c.Simulation.Rule)
	}
	if !constants.SiteOrder(c.Simulation.Order).Valid() {
		return fmt.Errorf("invalid order: %s (valid: random, sequential)", c.Simulation.Order)
	}
	if !constants.InitPolicy(c.Simulation.Init).Valid() {
		return fmt.Errorf("invalid init: %s (valid: auto, aligned, random)", c.Simulation.Init)
	}

	if len(c.Sweep.TemperatureList) == 0 && c.Sweep.Temperatures.Steps < 1 {
		return fmt.Errorf("temperatures.steps must be >= 1, got %d", c.Sweep.Temperatures.Steps)
	}
	if len(c.Sweep.Fields) == 0 {
		return fmt.Errorf("fields must not be empty")
	}
	for _, h := range c.Sweep.Fields {
		if math.IsNaN(h) || math.IsInf(h, 0) {
			return fmt.Errorf("fields must be finite, got %v", h)
		}
	}
	if c.Sweep.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Sweep.Workers)
	}

	if c.Decomposition.NoiseZ < 0 {
		return fmt.Errorf("noise_z must be non-negative, got %f", c.Decomposition.NoiseZ)
	}

	if c.Backup.MaxCount < 0 {
		return fmt.Errorf("backup.max_count must be non-negative, got %d", c.Backup.MaxCount)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Temperatures returns the configured temperature axis.
func (c *OrderConfig) Temperatures() []float64 {
	if len(c.Sweep.TemperatureList) > 0 {
		return append([]float64(nil), c.Sweep.TemperatureList...)
	}
	r := c.Sweep.Temperatures
	return sweep.Linspace(r.Start, r.Stop, r.Steps)
}

// Grid builds the field-major temperature x field grid.
func (c *OrderConfig) Grid() sweep.Grid {
	return sweep.CartesianGrid(c.Temperatures(), c.Sweep.Fields)
}

// ToSweepConfig converts to the sweep controller's configuration. Logger
// and Tracer are left for the caller to attach.
func (c *OrderConfig) ToSweepConfig() sweep.Config {
	s := c.Simulation
	return sweep.Config{
		Size:                s.Size,
		Coupling:            s.Coupling,
		EquilibrationSweeps: s.EquilibrationSweeps,
		SamplingSweeps:      s.SamplingSweeps,
		SampleInterval:      s.SampleInterval,
		Rule:                constants.UpdateRule(s.Rule),
		Order:               constants.SiteOrder(s.Order),
		Init:                constants.InitPolicy(s.Init),
		BaseSeed:            s.Seed,
		Workers:             c.Sweep.Workers,
		MaxSweeps:           c.Sweep.MaxSweeps,
		Pairs: observables.PairOptions{
			FullPairwiseMaxL: c.Decomposition.FullPairwiseMaxL,
			MaxSeparation:    c.Decomposition.MaxSeparation,
			LongRangeSamples: c.Decomposition.LongRangeSamples,
		},
		Decomposition: decompose.Options{
			BlockSize: c.Decomposition.BlockSize,
			MacroSize: c.Decomposition.MacroSize,
			NoiseZ:    c.Decomposition.NoiseZ,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numbers are ignored.
func applyEnvOverrides(config *OrderConfig) {
	if v := os.Getenv("ORDERLATTICE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Size = n
		}
	}

	if v := os.Getenv("ORDERLATTICE_RULE"); v != "" {
		config.Simulation.Rule = strings.ToLower(v)
	}

	if v := os.Getenv("ORDERLATTICE_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}

	if v := os.Getenv("ORDERLATTICE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Sweep.Workers = n
		}
	}

	if v := os.Getenv("ORDERLATTICE_EQUILIBRATION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.EquilibrationSweeps = n
		}
	}

	if v := os.Getenv("ORDERLATTICE_SAMPLING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.SamplingSweeps = n
		}
	}

	if v := os.Getenv("ORDERLATTICE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("ORDERLATTICE_DB_PATH"); v != "" {
		config.Store.DBPath = expandEnvVars(v)
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
