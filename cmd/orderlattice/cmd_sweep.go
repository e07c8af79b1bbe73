package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nvandessel/orderlattice/internal/config"
	"github.com/nvandessel/orderlattice/internal/export"
	"github.com/nvandessel/orderlattice/internal/logging"
	"github.com/nvandessel/orderlattice/internal/sweep"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a temperature x field sweep and write the result table",
		Long: `Run the lattice simulation at every (T, H) point of the grid and write one
row per point as CSV.

The grid is field-major: all temperatures at the first field, then all
temperatures at the next. Flags override the configuration file.

Examples:
  orderlattice sweep --size 16 --t-start 1 --t-stop 4 --t-steps 31
  orderlattice sweep --temps 1.5,2.27,3 --fields 0 --rule wolff -o out.csv
  orderlattice sweep --no-save --extended --tsv`,
		RunE: runSweep,
	}

	cmd.Flags().Float64Slice("temps", nil, "Explicit temperatures (overrides --t-start/--t-stop/--t-steps)")
	cmd.Flags().Float64("t-start", 0, "First temperature of the range")
	cmd.Flags().Float64("t-stop", 0, "Last temperature of the range")
	cmd.Flags().Int("t-steps", 0, "Number of temperatures in the range")
	cmd.Flags().Float64Slice("fields", nil, "External field values")
	cmd.Flags().Int("size", 0, "Lattice side L")
	cmd.Flags().String("rule", "", "Update rule: metropolis or wolff")
	cmd.Flags().Uint64("seed", 0, "Base random seed")
	cmd.Flags().Int("workers", 0, "Concurrent points (0 = all CPUs)")
	cmd.Flags().Int("equilibration", 0, "Equilibration sweeps per point")
	cmd.Flags().Int("sampling", 0, "Sampling sweeps per point")
	cmd.Flags().StringP("output", "o", "", "Write CSV to file instead of stdout")
	cmd.Flags().Bool("extended", false, "Include diagnostic columns")
	cmd.Flags().Bool("tsv", false, "Tab-separated output")
	cmd.Flags().Bool("no-save", false, "Do not store the run in the results database")

	return cmd
}

// applySweepFlags copies explicitly set sweep flags onto cfg.
func applySweepFlags(cmd *cobra.Command, cfg *config.OrderConfig) {
	flags := cmd.Flags()
	if flags.Changed("temps") {
		cfg.Sweep.TemperatureList, _ = flags.GetFloat64Slice("temps")
	}
	if flags.Changed("t-start") {
		cfg.Sweep.TemperatureList = nil
		cfg.Sweep.Temperatures.Start, _ = flags.GetFloat64("t-start")
	}
	if flags.Changed("t-stop") {
		cfg.Sweep.TemperatureList = nil
		cfg.Sweep.Temperatures.Stop, _ = flags.GetFloat64("t-stop")
	}
	if flags.Changed("t-steps") {
		cfg.Sweep.TemperatureList = nil
		cfg.Sweep.Temperatures.Steps, _ = flags.GetInt("t-steps")
	}
	if flags.Changed("fields") {
		cfg.Sweep.Fields, _ = flags.GetFloat64Slice("fields")
	}
	if flags.Changed("size") {
		cfg.Simulation.Size, _ = flags.GetInt("size")
	}
	if flags.Changed("rule") {
		rule, _ := flags.GetString("rule")
		cfg.Simulation.Rule = strings.ToLower(rule)
	}
	if flags.Changed("seed") {
		cfg.Simulation.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("workers") {
		cfg.Sweep.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("equilibration") {
		cfg.Simulation.EquilibrationSweeps, _ = flags.GetInt("equilibration")
	}
	if flags.Changed("sampling") {
		cfg.Simulation.SamplingSweeps, _ = flags.GetInt("sampling")
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applySweepFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid sweep flags: %w", err)
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	noSave, _ := cmd.Flags().GetBool("no-save")
	output, _ := cmd.Flags().GetString("output")
	extended, _ := cmd.Flags().GetBool("extended")
	tsv, _ := cmd.Flags().GetBool("tsv")

	logger := newLogger(cmd, cfg)
	dir, err := dataDir(cfg)
	if err != nil {
		return err
	}
	trace, err := logging.OpenSweepTrace(dir, cfg.Logging.Level)
	if err != nil {
		logger.Warn("point trace disabled", "error", err)
	}
	defer func() {
		if err := trace.Close(); err != nil {
			logger.Warn("failed to close point trace", "error", err)
		}
	}()

	sc := cfg.ToSweepConfig()
	sc.Logger = logger
	if trace != nil {
		sc.Tracer = trace
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	res, err := sweep.RunSweep(ctx, cfg.Grid(), sc)
	if err != nil {
		return err
	}
	if trace != nil {
		tally := trace.Tally(res.ID)
		logger.Debug("point trace written", "path", trace.Path(), "points", tally.Points,
			"warned", tally.Warned, "busy", tally.Busy,
			"slowest", tally.Slowest.Index, "slowest_elapsed", tally.Slowest.Elapsed)
	}

	saved := false
	if !noSave {
		rs, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer rs.Close()
		if err := rs.SaveRun(ctx, res); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		saved = true
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"run_id":    res.ID,
			"saved":     saved,
			"points":    len(res.Rows),
			"fallbacks": res.Fallbacks(),
			"rows":      res.Rows,
		})
	}

	csvCfg := export.DefaultCSVConfig()
	csvCfg.IncludeExtended = extended
	if tsv {
		csvCfg.Dialect = export.DialectTSV
	}

	err = writeOutput(cmd, output, func(w io.Writer) error {
		if err := export.ExportRowsToCSV(w, res.Rows, csvCfg); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("Run %s: %d points, %d fallbacks", res.ID, len(res.Rows), res.Fallbacks())
	if !saved {
		summary += " (not saved)"
	}
	fmt.Fprintln(cmd.ErrOrStderr(), summary)
	return nil
}
