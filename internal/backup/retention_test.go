package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/orderlattice/internal/sweep"
)

func infos(now time.Time, ages ...time.Duration) []Info {
	out := make([]Info, len(ages))
	for i, age := range ages {
		out[i] = Info{Path: filepath.Join("/b", string(rune('a'+i))), CreatedAt: now.Add(-age), Size: 100}
	}
	return out
}

func TestCountPolicy(t *testing.T) {
	all := infos(time.Now(), 0, time.Hour, 2*time.Hour, 3*time.Hour, 4*time.Hour)

	keep := (&CountPolicy{MaxCount: 3}).Apply(all)
	if len(keep) != 3 || keep[0].Path != all[0].Path || keep[2].Path != all[2].Path {
		t.Errorf("kept %+v, want the three newest", keep)
	}
	if keep := (&CountPolicy{MaxCount: 10}).Apply(all); len(keep) != 5 {
		t.Errorf("kept %d, want 5", len(keep))
	}
}

func TestAgePolicy(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	all := infos(now, time.Hour, 12*time.Hour, 48*time.Hour, 720*time.Hour)

	p := &AgePolicy{MaxAge: 24 * time.Hour, now: func() time.Time { return now }}
	if keep := p.Apply(all); len(keep) != 2 {
		t.Errorf("kept %d, want 2", len(keep))
	}
}

func TestAnyPolicy_Union(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	all := infos(now, time.Hour, 2*time.Hour, 48*time.Hour, 96*time.Hour)

	p := AnyPolicy{
		&CountPolicy{MaxCount: 1},
		&AgePolicy{MaxAge: 72 * time.Hour, now: func() time.Time { return now }},
	}
	if keep := p.Apply(all); len(keep) != 3 {
		t.Errorf("kept %d, want 3", len(keep))
	}
}

func TestNewRetentionPolicy(t *testing.T) {
	p, err := NewRetentionPolicy(0, "")
	if err != nil {
		t.Fatal(err)
	}
	if cp, ok := p.(*CountPolicy); !ok || cp.MaxCount != 10 {
		t.Errorf("default policy = %#v, want CountPolicy{10}", p)
	}

	p, err = NewRetentionPolicy(5, "30d")
	if err != nil {
		t.Fatal(err)
	}
	if ap, ok := p.(AnyPolicy); !ok || len(ap) != 2 {
		t.Errorf("combined policy = %#v", p)
	}

	if _, err := NewRetentionPolicy(0, "soon"); err == nil {
		t.Error("invalid age accepted")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"720h", 720 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"", 0, true},
		{"d", 0, true},
		{"5y", 0, true},
		{"-3d", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestListAndApplyRetention(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	var paths []string
	for i := 0; i < 4; i++ {
		path := GenerateBackupPath(dir, base.Add(time.Duration(i)*time.Hour))
		snap := &Snapshot{
			Version:   FormatVersion,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Runs:      []sweep.Result{testRun("r", base, 1)},
		}
		if _, err := Write(path, snap, nil); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	// Unrelated files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	listed, err := List(dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed) != 4 || listed[0].Path != paths[3] {
		t.Fatalf("List() = %+v, want 4 newest first", listed)
	}
	if listed[0].RunCount != 1 || listed[0].RowCount != 1 || !listed[0].CreatedAt.Equal(base.Add(3*time.Hour)) {
		t.Errorf("header fields not read: %+v", listed[0])
	}

	deleted, err := ApplyRetention(dir, &CountPolicy{MaxCount: 2})
	if err != nil {
		t.Fatalf("ApplyRetention() error = %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted %d, want 2", len(deleted))
	}
	for _, p := range paths[:2] {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should have been deleted", filepath.Base(p))
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("unrelated file was removed")
	}
}

func TestList_MissingDir(t *testing.T) {
	got, err := List(filepath.Join(t.TempDir(), "none"))
	if err != nil || got != nil {
		t.Errorf("List() = %v, %v; want nil, nil", got, err)
	}
}
