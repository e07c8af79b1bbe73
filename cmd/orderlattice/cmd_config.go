package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/orderlattice/internal/backup"
	"github.com/nvandessel/orderlattice/internal/config"
	"github.com/nvandessel/orderlattice/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage orderlattice configuration",
		Long: `View and modify orderlattice configuration settings.

Configuration is stored in ~/.orderlattice/config.yaml unless --config
names another file. Environment variables (ORDERLATTICE_SIZE,
ORDERLATTICE_RULE, ...) override the file when sweeps run.

Examples:
  orderlattice config init                          # Write the defaults
  orderlattice config list                          # Show all settings
  orderlattice config get simulation.size           # Get a specific setting
  orderlattice config set simulation.rule wolff     # Set a setting
  orderlattice config set sweep.fields 0,0.05,0.1`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file holding the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			jsonOut, _ := cmd.Flags().GetBool("json")

			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
			if err := saveConfig(path, config.Default()); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"status": "created",
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration:")
			for _, section := range configSections {
				fmt.Fprintln(out)
				fmt.Fprintf(out, "%s:\n", section.title)
				for _, key := range section.keys {
					value, _ := getConfigValue(cfg, key)
					fmt.Fprintf(out, "  %-36s %v\n", key+":", value)
				}
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]
			value := args[1]

			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}
			// Start from the file alone so environment overrides are not persisted.
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				cfg, err = config.LoadFromFile(path)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else if !errors.Is(statErr, fs.ErrNotExist) {
				return fmt.Errorf("failed to stat config: %w", statErr)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}

			if err := saveConfig(path, cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

var configSections = []struct {
	title string
	keys  []string
}{
	{"Simulation", []string{
		"simulation.size", "simulation.coupling", "simulation.equilibration_sweeps",
		"simulation.sampling_sweeps", "simulation.sample_interval", "simulation.rule",
		"simulation.order", "simulation.init", "simulation.seed",
	}},
	{"Sweep", []string{
		"sweep.temperatures.start", "sweep.temperatures.stop", "sweep.temperatures.steps",
		"sweep.temperature_list", "sweep.fields", "sweep.workers", "sweep.max_sweeps",
	}},
	{"Decomposition", []string{
		"decomposition.block_size", "decomposition.macro_size", "decomposition.noise_z",
		"decomposition.full_pairwise_max_l", "decomposition.max_separation",
		"decomposition.long_range_samples",
	}},
	{"Logging", []string{"logging.level"}},
	{"Store", []string{"store.db_path"}},
	{"Backup", []string{"backup.max_count", "backup.max_age"}},
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.OrderConfig, key string) (any, bool) {
	switch key {
	case "simulation.size":
		return cfg.Simulation.Size, true
	case "simulation.coupling":
		return cfg.Simulation.Coupling, true
	case "simulation.equilibration_sweeps":
		return cfg.Simulation.EquilibrationSweeps, true
	case "simulation.sampling_sweeps":
		return cfg.Simulation.SamplingSweeps, true
	case "simulation.sample_interval":
		return cfg.Simulation.SampleInterval, true
	case "simulation.rule":
		return cfg.Simulation.Rule, true
	case "simulation.order":
		return cfg.Simulation.Order, true
	case "simulation.init":
		return cfg.Simulation.Init, true
	case "simulation.seed":
		return cfg.Simulation.Seed, true
	case "sweep.temperatures.start":
		return cfg.Sweep.Temperatures.Start, true
	case "sweep.temperatures.stop":
		return cfg.Sweep.Temperatures.Stop, true
	case "sweep.temperatures.steps":
		return cfg.Sweep.Temperatures.Steps, true
	case "sweep.temperature_list":
		return formatFloats(cfg.Sweep.TemperatureList), true
	case "sweep.fields":
		return formatFloats(cfg.Sweep.Fields), true
	case "sweep.workers":
		return cfg.Sweep.Workers, true
	case "sweep.max_sweeps":
		return cfg.Sweep.MaxSweeps, true
	case "decomposition.block_size":
		return cfg.Decomposition.BlockSize, true
	case "decomposition.macro_size":
		return cfg.Decomposition.MacroSize, true
	case "decomposition.noise_z":
		return cfg.Decomposition.NoiseZ, true
	case "decomposition.full_pairwise_max_l":
		return cfg.Decomposition.FullPairwiseMaxL, true
	case "decomposition.max_separation":
		return cfg.Decomposition.MaxSeparation, true
	case "decomposition.long_range_samples":
		return cfg.Decomposition.LongRangeSamples, true
	case "logging.level":
		return valueOrDefault(cfg.Logging.Level, "info"), true
	case "store.db_path":
		return valueOrDefault(cfg.Store.DBPath, "(default)"), true
	case "backup.max_count":
		return cfg.Backup.MaxCount, true
	case "backup.max_age":
		return valueOrDefault(cfg.Backup.MaxAge, "(none)"), true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.OrderConfig, key, value string) error {
	var err error
	switch key {
	case "simulation.size":
		cfg.Simulation.Size, err = parseInt(key, value)
	case "simulation.coupling":
		cfg.Simulation.Coupling, err = parseFloat(key, value)
	case "simulation.equilibration_sweeps":
		cfg.Simulation.EquilibrationSweeps, err = parseInt(key, value)
	case "simulation.sampling_sweeps":
		cfg.Simulation.SamplingSweeps, err = parseInt(key, value)
	case "simulation.sample_interval":
		cfg.Simulation.SampleInterval, err = parseInt(key, value)
	case "simulation.rule":
		cfg.Simulation.Rule = strings.ToLower(value)
	case "simulation.order":
		cfg.Simulation.Order = strings.ToLower(value)
	case "simulation.init":
		cfg.Simulation.Init = strings.ToLower(value)
	case "simulation.seed":
		cfg.Simulation.Seed, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			err = fmt.Errorf("invalid %s: %s (must be an unsigned integer)", key, value)
		}
	case "sweep.temperatures.start":
		cfg.Sweep.Temperatures.Start, err = parseFloat(key, value)
	case "sweep.temperatures.stop":
		cfg.Sweep.Temperatures.Stop, err = parseFloat(key, value)
	case "sweep.temperatures.steps":
		cfg.Sweep.Temperatures.Steps, err = parseInt(key, value)
	case "sweep.temperature_list":
		cfg.Sweep.TemperatureList, err = parseFloats(key, value)
	case "sweep.fields":
		cfg.Sweep.Fields, err = parseFloats(key, value)
	case "sweep.workers":
		cfg.Sweep.Workers, err = parseInt(key, value)
	case "sweep.max_sweeps":
		cfg.Sweep.MaxSweeps, err = parseInt(key, value)
	case "decomposition.block_size":
		cfg.Decomposition.BlockSize, err = parseInt(key, value)
	case "decomposition.macro_size":
		cfg.Decomposition.MacroSize, err = parseInt(key, value)
	case "decomposition.noise_z":
		cfg.Decomposition.NoiseZ, err = parseFloat(key, value)
	case "decomposition.full_pairwise_max_l":
		cfg.Decomposition.FullPairwiseMaxL, err = parseInt(key, value)
	case "decomposition.max_separation":
		cfg.Decomposition.MaxSeparation, err = parseInt(key, value)
	case "decomposition.long_range_samples":
		cfg.Decomposition.LongRangeSamples, err = parseInt(key, value)
	case "logging.level":
		cfg.Logging.Level = strings.ToLower(value)
	case "store.db_path":
		cfg.Store.DBPath = value
	case "backup.max_count":
		cfg.Backup.MaxCount, err = parseInt(key, value)
	case "backup.max_age":
		if value != "" {
			if _, perr := backup.ParseDuration(value); perr != nil {
				return perr
			}
		}
		cfg.Backup.MaxAge = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s (must be an integer)", key, value)
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s (must be a number)", key, value)
	}
	return f, nil
}

// parseFloats parses a comma-separated list. An empty value clears the list.
func parseFloats(key, value string) ([]float64, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := parseFloat(key, strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func formatFloats(fs []float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// configFilePath returns --config or ~/.orderlattice/config.yaml.
func configFilePath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	dir, err := store.GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// saveConfig writes the configuration to path.
func saveConfig(path string, cfg *config.OrderConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
