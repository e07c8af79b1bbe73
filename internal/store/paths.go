package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the orderlattice data directory.
const DirName = ".orderlattice"

// DBFileName is the SQLite database file inside the data directory.
const DBFileName = "results.db"

// GlobalPath returns the path to the global .orderlattice directory.
// On Unix: ~/.orderlattice
// On Windows: %USERPROFILE%\.orderlattice
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LocalPath returns the path to the local .orderlattice directory
// for the given project root.
func LocalPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}

// EnsureGlobalDir creates the global .orderlattice directory if it doesn't exist.
// Returns nil if the directory already exists or was successfully created.
func EnsureGlobalDir() error {
	globalPath, err := GlobalPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(globalPath, 0755); err != nil {
		return fmt.Errorf("failed to create global %s directory: %w", DirName, err)
	}

	return nil
}

// DefaultDBPath returns the database path used when none is configured.
func DefaultDBPath() (string, error) {
	globalPath, err := GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(globalPath, DBFileName), nil
}
