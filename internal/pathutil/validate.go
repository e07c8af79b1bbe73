// Package pathutil confines file operations to a set of allowed directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideSandbox is returned when a path resolves outside every root.
var ErrOutsideSandbox = errors.New("outside allowed directories")

// RedactPath reduces a full path to .../<parent>/<basename> for safe error messages.
// For example, "/home/user/.orderlattice/results.db" becomes ".../.orderlattice/results.db".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// Sandbox is a set of directories file operations may touch.
type Sandbox struct {
	roots []string
}

// NewSandbox returns a sandbox over roots. Empty roots are ignored.
func NewSandbox(roots ...string) Sandbox {
	var s Sandbox
	for _, r := range roots {
		if r != "" {
			s.roots = append(s.roots, r)
		}
	}
	return s
}

// Roots returns the configured directories.
func (s Sandbox) Roots() []string {
	return append([]string(nil), s.roots...)
}

// Resolve cleans path, resolves symlinks on its deepest existing ancestor
// and returns the absolute result if it lies within one of the roots.
// The file itself need not exist.
func (s Sandbox) Resolve(path string) (string, error) {
	switch {
	case path == "":
		return "", fmt.Errorf("path validation failed: path is empty")
	case len(s.roots) == 0:
		return "", fmt.Errorf("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return "", fmt.Errorf("path validation failed: path contains null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}
	dir, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return "", fmt.Errorf("path validation failed: cannot resolve parent directory: %w", err)
	}
	resolved := filepath.Join(dir, filepath.Base(abs))

	for _, root := range s.roots {
		rootAbs, err := filepath.Abs(filepath.Clean(root))
		if err != nil {
			continue
		}
		rootResolved, err := resolveExisting(rootAbs)
		if err != nil {
			continue
		}
		if within(resolved, rootResolved) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("path validation failed: %q is %w", RedactPath(abs), ErrOutsideSandbox)
}

// Validate is Resolve without the resolved path.
func (s Sandbox) Validate(path string) error {
	_, err := s.Resolve(path)
	return err
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of dir
// and re-appends the missing tail.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}
	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// within reports whether path is base or lies beneath it.
func within(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}
