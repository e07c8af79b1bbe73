package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/orderlattice/internal/export"
	"github.com/nvandessel/orderlattice/internal/store"
	"github.com/nvandessel/orderlattice/internal/visualization"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored sweep runs",
		Long: `List, show, export, import and delete the sweep runs kept in the results
database, or browse them over HTTP.

Run IDs may be abbreviated to any unique prefix.`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsExportCmd(),
		newRunsImportCmd(),
		newRunsDeleteCmd(),
		newRunsServeCmd(),
	)
	return cmd
}

// withStore loads configuration, opens the result store and passes it to fn.
func withStore(cmd *cobra.Command, fn func(rs *store.SQLiteResultStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rs, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer rs.Close()
	return fn(rs)
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(rs *store.SQLiteResultStore) error {
				runs, err := rs.ListRuns(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("failed to list runs: %w", err)
				}
				if jsonOut {
					if runs == nil {
						runs = []store.RunSummary{}
					}
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"runs":  runs,
						"count": len(runs),
					})
				}

				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No stored runs.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTARTED\tL\tRULE\tSEED\tPOINTS\tFALLBACKS")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%d\n",
						shortID(r.ID), r.StartedAt.Local().Format(time.DateTime),
						r.Size, r.Rule, r.BaseSeed, r.Points, r.Fallbacks)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 = all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored run's configuration and rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(rs *store.SQLiteResultStore) error {
				id, err := rs.ResolveID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				res, err := rs.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOut {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}

				out := cmd.OutOrStdout()
				c := res.Config
				fmt.Fprintf(out, "Run:        %s\n", res.ID)
				fmt.Fprintf(out, "Started:    %s\n", res.StartedAt.Local().Format(time.DateTime))
				fmt.Fprintf(out, "Elapsed:    %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
				fmt.Fprintf(out, "Lattice:    L=%d J=%g %s\n", c.Size, c.Coupling, c.Rule)
				fmt.Fprintf(out, "Sweeps:     %d equilibration, %d sampling every %d\n",
					c.EquilibrationSweeps, c.SamplingSweeps, c.SampleInterval)
				fmt.Fprintf(out, "Seed:       %d\n", c.BaseSeed)
				fmt.Fprintf(out, "Points:     %d (%d fallbacks)\n\n", len(res.Rows), res.Fallbacks())

				csvCfg := export.DefaultCSVConfig()
				csvCfg.Dialect = export.DialectTSV
				return export.ExportRowsToCSV(out, res.Rows, csvCfg)
			})
		},
	}
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export a run as CSV, or every run as JSONL",
		Long: `Export stored results.

With an ID, writes that run's rows as CSV (or TSV). Without one, writes
every stored run as JSONL, one run per line, suitable for runs import.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			extended, _ := cmd.Flags().GetBool("extended")
			tsv, _ := cmd.Flags().GetBool("tsv")

			return withStore(cmd, func(rs *store.SQLiteResultStore) error {
				if len(args) == 0 {
					var n int
					err := writeOutput(cmd, output, func(w io.Writer) error {
						var err error
						n, err = store.ExportJSONL(cmd.Context(), rs, w)
						return err
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d runs\n", n)
					return nil
				}

				id, err := rs.ResolveID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rows, err := rs.Rows(cmd.Context(), id)
				if err != nil {
					return err
				}
				csvCfg := export.DefaultCSVConfig()
				csvCfg.IncludeExtended = extended
				if tsv {
					csvCfg.Dialect = export.DialectTSV
				}
				return writeOutput(cmd, output, func(w io.Writer) error {
					return export.ExportRowsToCSV(w, rows, csvCfg)
				})
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	cmd.Flags().Bool("extended", false, "Include diagnostic columns")
	cmd.Flags().Bool("tsv", false, "Tab-separated output")
	return cmd
}

func newRunsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import runs from a JSONL export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer rs.Close()

			n, err := store.ImportJSONL(cmd.Context(), rs, f, newLogger(cmd, cfg))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d runs\n", n)
			return nil
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(rs *store.SQLiteResultStore) error {
				id, err := rs.ResolveID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := rs.DeleteRun(cmd.Context(), id); err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"run_id":  id,
						"deleted": true,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", id)
				return nil
			})
		},
	}
}

func newRunsServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over HTTP",
		Long: `Start a local HTTP server exposing stored runs as JSON and CSV.

Endpoints:
  GET /api/runs              list runs
  GET /api/runs/{id}         full run
  GET /api/runs/{id}/csv     rows as CSV (?extended=true for diagnostics)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			noOpen, _ := cmd.Flags().GetBool("no-open")

			return withStore(cmd, func(rs *store.SQLiteResultStore) error {
				return runResultServer(cmd, rs, addr, !noOpen)
			})
		},
	}
	cmd.Flags().String("addr", "localhost:0", "Listen address")
	cmd.Flags().Bool("no-open", false, "Do not open a browser")
	return cmd
}

// runResultServer serves rs until the command is interrupted.
func runResultServer(cmd *cobra.Command, rs store.ResultStore, addr string, open bool) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	srv := visualization.NewServer(rs)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, addr)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == "" {
		select {
		case err := <-errCh:
			return err
		default:
		}
		if time.Now().After(deadline) {
			cancel()
			return fmt.Errorf("server did not start listening within 5s")
		}
		time.Sleep(10 * time.Millisecond)
	}

	url := "http://" + srv.Addr() + "/api/runs"
	fmt.Fprintf(cmd.OutOrStdout(), "Result server running at %s\n", url)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop.")

	if open {
		if err := visualization.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not open browser: %v\n", err)
		}
	}

	return <-errCh
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
