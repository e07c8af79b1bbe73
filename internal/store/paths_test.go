package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGlobalPath(t *testing.T) {
	got, err := GlobalPath()
	if err != nil {
		t.Fatalf("GlobalPath() error = %v", err)
	}
	if !strings.HasSuffix(got, ".orderlattice") {
		t.Errorf("GlobalPath() = %v, should end with .orderlattice", got)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("GlobalPath() = %v, should be absolute path", got)
	}
	homeDir, _ := os.UserHomeDir()
	if !strings.HasPrefix(got, homeDir) {
		t.Errorf("GlobalPath() = %v, should start with home directory %v", got, homeDir)
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		name        string
		projectRoot string
		want        string
	}{
		{
			name:        "unix path",
			projectRoot: "/home/user/project",
			want:        "/home/user/project/.orderlattice",
		},
		{
			name:        "relative path",
			projectRoot: ".",
			want:        ".orderlattice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LocalPath(tt.projectRoot)
			// Use filepath.ToSlash for cross-platform comparison
			gotNorm := filepath.ToSlash(got)
			wantNorm := filepath.ToSlash(tt.want)
			if gotNorm != wantNorm {
				t.Errorf("LocalPath() = %v, want %v", gotNorm, wantNorm)
			}
		})
	}
}

func TestEnsureGlobalDir(t *testing.T) {
	tests := []struct {
		name     string
		preexist bool
	}{
		{"creates directory when it doesn't exist", false},
		{"succeeds when directory already exists", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpHome := t.TempDir()
			t.Setenv("HOME", tmpHome)
			t.Setenv("USERPROFILE", tmpHome)
			dir := filepath.Join(tmpHome, ".orderlattice")
			if tt.preexist {
				os.MkdirAll(dir, 0700)
			}

			if err := EnsureGlobalDir(); err != nil {
				t.Fatalf("EnsureGlobalDir() error = %v", err)
			}

			info, err := os.Stat(dir)
			if err != nil {
				t.Fatalf("EnsureGlobalDir() did not create directory: %v", err)
			}
			if !info.IsDir() {
				t.Errorf("EnsureGlobalDir() created a file instead of directory")
			}
		})
	}
}

func TestDefaultDBPath(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath() error = %v", err)
	}
	want := filepath.Join(tmpHome, ".orderlattice", "results.db")
	if got != want {
		t.Errorf("DefaultDBPath() = %v, want %v", got, want)
	}
}
