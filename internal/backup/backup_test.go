package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/orderlattice/internal/store"
	"github.com/nvandessel/orderlattice/internal/sweep"
)

func testRun(id string, started time.Time, temps ...float64) sweep.Result {
	cfg := sweep.DefaultConfig()
	cfg.Size = 4
	grid := sweep.CartesianGrid(temps, []float64{0})
	rows := make([]sweep.Row, len(grid))
	for i, p := range grid {
		a := 1 / (1 + p.T)
		rows[i] = sweep.Row{
			T: p.T, H: p.H, A: a, R: 1 - a,
			Fine: 3, Meso: 1, Coarse: 0.5,
			TC: 4.5, TCMax: 15, Samples: 100,
			Status: sweep.StatusOK,
		}
	}
	return sweep.Result{
		ID:         id,
		Config:     cfg,
		Grid:       grid,
		Rows:       rows,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}

func seededStore(t *testing.T, ids ...string) store.ResultStore {
	t.Helper()
	rs, err := store.NewSQLiteResultStore(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("NewSQLiteResultStore() error = %v", err)
	}
	t.Cleanup(func() { rs.Close() })

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range ids {
		if err := rs.SaveRun(context.Background(), testRun(id, base.Add(time.Duration(i)*time.Minute), 1, 2, 3)); err != nil {
			t.Fatalf("SaveRun(%s) error = %v", id, err)
		}
	}
	return rs
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seededStore(t, "run-a", "run-b")
	path := filepath.Join(t.TempDir(), "snap.json.gz")

	header, err := Backup(ctx, src, path)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if header.RunCount != 2 || header.RowCount != 6 {
		t.Errorf("header counts = %d runs, %d rows; want 2, 6", header.RunCount, header.RowCount)
	}
	if !strings.HasPrefix(header.Checksum, "sha256:") {
		t.Errorf("checksum = %q", header.Checksum)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("snapshot mode = %v, want 0600", info.Mode().Perm())
	}

	dst := store.NewInMemoryResultStore()
	result, err := Restore(ctx, dst, path, RestoreMerge)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.RunsRestored != 2 || result.RunsSkipped != 0 {
		t.Errorf("Restore() = %+v, want 2 restored", result)
	}

	got, err := dst.GetRun(ctx, "run-b")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	want := testRun("run-b", time.Time{}, 1, 2, 3)
	if len(got.Rows) != len(want.Rows) {
		t.Fatalf("rows = %d, want %d", len(got.Rows), len(want.Rows))
	}
	for i := range want.Rows {
		if got.Rows[i].T != want.Rows[i].T || got.Rows[i].A != want.Rows[i].A {
			t.Errorf("row %d = %+v, want T=%v A=%v", i, got.Rows[i], want.Rows[i].T, want.Rows[i].A)
		}
	}

	runs, err := dst.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "run-b" {
		t.Errorf("restored listing = %+v, want run-b newest", runs)
	}
}

func TestRestore_MergeSkipsExisting(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.json.gz")
	if _, err := Backup(ctx, seededStore(t, "run-a", "run-b"), path); err != nil {
		t.Fatal(err)
	}

	dst := seededStore(t, "run-a")
	result, err := Restore(ctx, dst, path, RestoreMerge)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.RunsRestored != 1 || result.RunsSkipped != 1 {
		t.Errorf("Restore() = %+v, want 1 restored, 1 skipped", result)
	}
}

func TestRestore_ReplaceClearsStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.json.gz")
	if _, err := Backup(ctx, seededStore(t, "run-a"), path); err != nil {
		t.Fatal(err)
	}

	dst := seededStore(t, "run-x", "run-y")
	result, err := Restore(ctx, dst, path, RestoreReplace)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.RunsDeleted != 2 || result.RunsRestored != 1 {
		t.Errorf("Restore() = %+v, want 2 deleted, 1 restored", result)
	}
	runs, _ := dst.ListRuns(ctx, 0)
	if len(runs) != 1 || runs[0].ID != "run-a" {
		t.Errorf("store after replace = %+v, want only run-a", runs)
	}
}

func TestBackup_EmptyStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "empty.json.gz")

	header, err := Backup(ctx, store.NewInMemoryResultStore(), path)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if header.RunCount != 0 {
		t.Errorf("RunCount = %d, want 0", header.RunCount)
	}
	snap, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(snap.Runs) != 0 {
		t.Errorf("runs = %d, want 0", len(snap.Runs))
	}
}

func TestParseRestoreMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RestoreMode
		wantErr bool
	}{
		{"", RestoreMerge, false},
		{"merge", RestoreMerge, false},
		{"REPLACE", RestoreReplace, false},
		{"overwrite", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRestoreMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRestoreMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestGenerateBackupPath(t *testing.T) {
	at := time.Date(2026, 2, 6, 12, 0, 0, 250e6, time.UTC)
	got := GenerateBackupPath("/b", at)
	want := filepath.Join("/b", "orderlattice-20260206-120000.250.json.gz")
	if got != want {
		t.Errorf("GenerateBackupPath() = %q, want %q", got, want)
	}
	if !isBackupFile(filepath.Base(got)) {
		t.Error("generated name not recognised as a snapshot")
	}
	if later := GenerateBackupPath("/b", at.Add(time.Millisecond)); later <= got {
		t.Errorf("names do not sort chronologically: %q <= %q", later, got)
	}
}
