package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nvandessel/orderlattice/internal/sweep"
)

// InMemoryResultStore implements ResultStore for testing and one-shot sessions.
type InMemoryResultStore struct {
	mu   sync.RWMutex
	runs map[string]sweep.Result
}

// NewInMemoryResultStore creates a new in-memory store.
func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{runs: make(map[string]sweep.Result)}
}

// SaveRun stores a deep copy of res.
func (s *InMemoryResultStore) SaveRun(ctx context.Context, res sweep.Result) error {
	if res.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[res.ID] = cloneResult(res)
	return nil
}

// GetRun retrieves a copy of a run.
func (s *InMemoryResultStore) GetRun(ctx context.Context, id string) (*sweep.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	out := cloneResult(res)
	return &out, nil
}

// Rows retrieves a copy of a run's rows.
func (s *InMemoryResultStore) Rows(ctx context.Context, id string) ([]sweep.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return cloneRows(res.Rows), nil
}

// ListRuns returns run summaries, newest first.
func (s *InMemoryResultStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunSummary, 0, len(s.runs))
	for _, res := range s.runs {
		out = append(out, Summarize(res))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ResolveID expands a unique ID prefix to the full run ID.
func (s *InMemoryResultStore) ResolveID(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrRunNotFound)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id := range s.runs {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return pickID(prefix, ids)
}

// DeleteRun removes a run.
func (s *InMemoryResultStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	delete(s.runs, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryResultStore) Close() error {
	return nil
}

func cloneResult(res sweep.Result) sweep.Result {
	res.Grid = append(sweep.Grid(nil), res.Grid...)
	res.Rows = cloneRows(res.Rows)
	res.Config.Logger = nil
	res.Config.Tracer = nil
	return res
}

func cloneRows(rows []sweep.Row) []sweep.Row {
	out := make([]sweep.Row, len(rows))
	for i, row := range rows {
		if row.Warnings != nil {
			row.Warnings = append([]string(nil), row.Warnings...)
		}
		out[i] = row
	}
	return out
}
