// Package store defines the ResultStore interface for persisting sweep runs
// and querying their rows.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/orderlattice/internal/sweep"
)

// ErrRunNotFound is returned when no stored run matches an ID or prefix.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousID is returned when an ID prefix matches more than one run.
var ErrAmbiguousID = errors.New("ambiguous run id prefix")

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Size       int       `json:"size"`
	Rule       string    `json:"rule"`
	BaseSeed   uint64    `json:"base_seed"`
	Points     int       `json:"points"`
	Fallbacks  int       `json:"fallbacks"`
}

// Summarize builds the listing view of a result.
func Summarize(res sweep.Result) RunSummary {
	return RunSummary{
		ID:         res.ID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Size:       res.Config.Size,
		Rule:       string(res.Config.Rule),
		BaseSeed:   res.Config.BaseSeed,
		Points:     len(res.Rows),
		Fallbacks:  res.Fallbacks(),
	}
}

// ResultStore defines the interface for storing and querying sweep runs.
type ResultStore interface {
	// SaveRun stores a completed run. Saving an existing ID replaces it.
	SaveRun(ctx context.Context, res sweep.Result) error

	// GetRun returns the full run, rows in grid order.
	GetRun(ctx context.Context, id string) (*sweep.Result, error)

	// ListRuns returns summaries newest first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// Rows returns only the rows of a run, in grid order.
	Rows(ctx context.Context, id string) ([]sweep.Row, error)

	// ResolveID expands a unique ID prefix to the full run ID.
	ResolveID(ctx context.Context, prefix string) (string, error)

	DeleteRun(ctx context.Context, id string) error
	Close() error
}
