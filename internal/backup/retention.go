package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Info describes a snapshot file for listing and retention.
type Info struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	RunCount  int       `json:"run_count"`
	RowCount  int       `json:"row_count"`

	// Err is set when the header could not be read; such files are still
	// subject to retention.
	Err error `json:"-"`
}

// RetentionPolicy decides which snapshots to keep. Input is newest first.
type RetentionPolicy interface {
	Apply(snapshots []Info) (keep []Info)
}

// CountPolicy keeps the N most recent snapshots.
type CountPolicy struct {
	MaxCount int
}

func (p *CountPolicy) Apply(snapshots []Info) []Info {
	if len(snapshots) <= p.MaxCount {
		return snapshots
	}
	return snapshots[:p.MaxCount]
}

// AgePolicy keeps snapshots newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
	now    func() time.Time
}

func (p *AgePolicy) Apply(snapshots []Info) []Info {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	cutoff := now().Add(-p.MaxAge)
	var keep []Info
	for _, s := range snapshots {
		if s.CreatedAt.After(cutoff) {
			keep = append(keep, s)
		}
	}
	return keep
}

// AnyPolicy keeps a snapshot if any sub-policy keeps it.
type AnyPolicy []RetentionPolicy

func (p AnyPolicy) Apply(snapshots []Info) []Info {
	kept := make(map[string]bool)
	for _, policy := range p {
		for _, s := range policy.Apply(snapshots) {
			kept[s.Path] = true
		}
	}
	var out []Info
	for _, s := range snapshots {
		if kept[s.Path] {
			out = append(out, s)
		}
	}
	return out
}

// NewRetentionPolicy builds a policy from a count limit and an age limit
// such as "30d". Zero or empty limits are skipped; with neither set the
// ten newest snapshots are kept.
func NewRetentionPolicy(maxCount int, maxAge string) (RetentionPolicy, error) {
	var policies AnyPolicy
	if maxCount > 0 {
		policies = append(policies, &CountPolicy{MaxCount: maxCount})
	}
	if maxAge != "" {
		d, err := ParseDuration(maxAge)
		if err != nil {
			return nil, err
		}
		policies = append(policies, &AgePolicy{MaxAge: d})
	}
	switch len(policies) {
	case 0:
		return &CountPolicy{MaxCount: 10}, nil
	case 1:
		return policies[0], nil
	default:
		return policies, nil
	}
}

// List returns the snapshot files in dir, newest first. A missing dir is empty.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var out []Info
	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info := Info{
			Path:      filepath.Join(dir, e.Name()),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		}
		if h, err := ReadHeader(info.Path); err == nil {
			info.CreatedAt = h.CreatedAt
			info.RunCount = h.RunCount
			info.RowCount = h.RowCount
		} else {
			info.Err = err
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool {
		return filepath.Base(out[i].Path) > filepath.Base(out[j].Path)
	})
	return out, nil
}

// ApplyRetention deletes the snapshots in dir that policy does not keep.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	snapshots, err := List(dir)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool)
	for _, s := range policy.Apply(snapshots) {
		keep[s.Path] = true
	}
	for _, s := range snapshots {
		if keep[s.Path] {
			continue
		}
		if err := os.Remove(s.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(s.Path), err)
		}
		deleted = append(deleted, s.Path)
	}
	return deleted, nil
}

// ParseDuration parses durations like "720h", "30d" or "2w".
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix %q in %q", s[len(s)-1:], s)
	}
}
