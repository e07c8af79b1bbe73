// Package backup snapshots the result store to compressed, checksummed files
// and restores them.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/orderlattice/internal/store"
	"github.com/nvandessel/orderlattice/internal/sweep"
)

const (
	filePrefix = "orderlattice-"
	fileSuffix = ".json.gz"
)

// DefaultBackupDir returns ~/.orderlattice/backups.
func DefaultBackupDir() (string, error) {
	globalPath, err := store.GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(globalPath, "backups"), nil
}

// GenerateBackupPath creates a timestamped snapshot filename in dir.
// Names sort chronologically.
func GenerateBackupPath(dir string, now time.Time) string {
	return filepath.Join(dir, filePrefix+now.UTC().Format("20060102-150405.000")+fileSuffix)
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix)
}

// Backup writes every run in rs to a snapshot at path.
func Backup(ctx context.Context, rs store.ResultStore, path string) (*Header, error) {
	summaries, err := rs.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	snap := &Snapshot{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Runs:      make([]sweep.Result, 0, len(summaries)),
	}
	// Oldest first, so a restore saves runs in the order they were made.
	for i := len(summaries) - 1; i >= 0; i-- {
		res, err := rs.GetRun(ctx, summaries[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", summaries[i].ID, err)
		}
		snap.Runs = append(snap.Runs, *res)
	}

	return Write(path, snap, nil)
}

// RestoreMode controls how restore handles runs already in the store.
type RestoreMode string

const (
	// RestoreMerge skips runs whose ID is already stored (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace deletes every stored run before restoring.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode accepts "merge", "replace" or empty (merge).
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(strings.ToLower(s)) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	default:
		return "", fmt.Errorf("invalid restore mode %q (valid: merge, replace)", s)
	}
}

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	RunsRestored int `json:"runs_restored"`
	RunsSkipped  int `json:"runs_skipped"`
	RunsDeleted  int `json:"runs_deleted"`
}

// Restore loads the snapshot at path into rs.
func Restore(ctx context.Context, rs store.ResultStore, path string, mode RestoreMode) (*RestoreResult, error) {
	snap, err := Read(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	if mode == RestoreReplace {
		existing, err := rs.ListRuns(ctx, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		for _, r := range existing {
			if err := rs.DeleteRun(ctx, r.ID); err != nil {
				return nil, fmt.Errorf("failed to delete run %s: %w", r.ID, err)
			}
			result.RunsDeleted++
		}
	}

	for _, res := range snap.Runs {
		if mode == RestoreMerge {
			_, err := rs.GetRun(ctx, res.ID)
			if err == nil {
				result.RunsSkipped++
				continue
			}
			if !errors.Is(err, store.ErrRunNotFound) {
				return nil, fmt.Errorf("failed to check run %s: %w", res.ID, err)
			}
		}
		if err := rs.SaveRun(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to restore run %s: %w", res.ID, err)
		}
		result.RunsRestored++
	}
	return result, nil
}
