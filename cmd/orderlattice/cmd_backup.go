package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/orderlattice/internal/backup"
	"github.com/nvandessel/orderlattice/internal/pathutil"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot every stored run to a compressed file",
		Long: `Write every stored run to a gzip-compressed snapshot with a SHA-256
checksum in its header.

Default location: ~/.orderlattice/backups/orderlattice-YYYYMMDD-HHMMSS.mmm.json.gz
Snapshots are pruned after each backup by backup.max_count and
backup.max_age (default: keep the last 10).

Snapshot paths must lie in the backup directory or the current directory.

Examples:
  orderlattice backup                          # Snapshot to the default location
  orderlattice backup --output before.json.gz  # Snapshot to a specific file
  orderlattice backup list                     # List snapshots
  orderlattice backup verify <file>            # Check a snapshot's checksum
  orderlattice backup restore <file>           # Merge a snapshot into the store`,
		RunE: runBackup,
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default: auto-generated in the backup directory)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
		newBackupRestoreCmd(),
	)
	return cmd
}

// backupSandbox allows the backup directory and the working directory.
func backupSandbox() (pathutil.Sandbox, string, error) {
	dir, err := backup.DefaultBackupDir()
	if err != nil {
		return pathutil.Sandbox{}, "", fmt.Errorf("failed to get backup directory: %w", err)
	}
	wd, _ := os.Getwd()
	return pathutil.NewSandbox(dir, wd), dir, nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	output, _ := cmd.Flags().GetString("output")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	policy, err := backup.NewRetentionPolicy(cfg.Backup.MaxCount, cfg.Backup.MaxAge)
	if err != nil {
		return fmt.Errorf("invalid backup retention: %w", err)
	}

	sandbox, dir, err := backupSandbox()
	if err != nil {
		return err
	}
	if output == "" {
		output = backup.GenerateBackupPath(dir, time.Now())
	}
	if output, err = sandbox.Resolve(output); err != nil {
		return fmt.Errorf("backup path rejected: %w", err)
	}

	rs, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer rs.Close()

	header, err := backup.Backup(cmd.Context(), rs, output)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	deleted, err := backup.ApplyRetention(filepath.Dir(output), policy)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"path":      output,
			"run_count": header.RunCount,
			"row_count": header.RowCount,
			"checksum":  header.Checksum,
			"pruned":    len(deleted),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backup created: %d runs, %d rows\n", header.RunCount, header.RowCount)
	fmt.Fprintf(out, "  Path: %s\n", output)
	if len(deleted) > 0 {
		fmt.Fprintf(out, "  Pruned %d old snapshots\n", len(deleted))
	}
	return nil
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots in the backup directory, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := backup.DefaultBackupDir()
			if err != nil {
				return err
			}
			snapshots, err := backup.List(dir)
			if err != nil {
				return err
			}

			if jsonOut {
				if snapshots == nil {
					snapshots = []backup.Info{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"snapshots": snapshots,
					"count":     len(snapshots),
				})
			}

			out := cmd.OutOrStdout()
			if len(snapshots) == 0 {
				fmt.Fprintf(out, "No snapshots in %s\n", dir)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tCREATED\tRUNS\tROWS\tSIZE")
			for _, s := range snapshots {
				runs := fmt.Sprint(s.RunCount)
				if s.Err != nil {
					runs = "unreadable"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", filepath.Base(s.Path),
					s.CreatedAt.Local().Format(time.DateTime), runs, s.RowCount, s.Size)
			}
			return tw.Flush()
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a snapshot's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			verr := backup.VerifyChecksum(args[0])
			if jsonOut {
				entry := map[string]any{"path": args[0], "valid": verr == nil}
				if verr != nil {
					entry["error"] = verr.Error()
				}
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(entry); err != nil {
					return err
				}
			}
			if verr != nil {
				return fmt.Errorf("snapshot %s is invalid: %w", pathutil.RedactPath(args[0]), verr)
			}
			if !jsonOut {
				fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", args[0])
			}
			return nil
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore runs from a snapshot",
		Long: `Restore stored runs from a snapshot.

Modes:
  merge   - Skip runs whose ID is already stored (default)
  replace - Delete every stored run first`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeFlag, _ := cmd.Flags().GetString("mode")

			mode, err := backup.ParseRestoreMode(modeFlag)
			if err != nil {
				return err
			}
			sandbox, _, err := backupSandbox()
			if err != nil {
				return err
			}
			input, err := sandbox.Resolve(args[0])
			if err != nil {
				return fmt.Errorf("restore path rejected: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer rs.Close()

			result, err := backup.Restore(cmd.Context(), rs, input, mode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restore complete (mode: %s)\n", mode)
			fmt.Fprintf(out, "  Runs: %d restored, %d skipped, %d deleted\n",
				result.RunsRestored, result.RunsSkipped, result.RunsDeleted)
			return nil
		},
	}
	cmd.Flags().String("mode", string(backup.RestoreMerge), "Restore mode: merge or replace")
	return cmd
}
