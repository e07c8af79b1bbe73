// Package logging sets up orderlattice's two outputs: a leveled slog.Logger
// on stderr, and a SweepTrace that appends one JSON line per finished point
// to .orderlattice/points.jsonl when running at debug or trace level.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/orderlattice/internal/sweep"
)

// LevelTrace sits below Debug and enables per-point stderr lines as well as
// the points.jsonl trace.
const LevelTrace = slog.LevelDebug - 4

// TraceFileName is the point trace inside the data directory.
const TraceFileName = "points.jsonl"

// ParseLevel maps "info", "debug" or "trace" (any case) to a slog.Level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text slog.Logger on w filtered at level.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// RunTally summarizes the traced points of one run.
type RunTally struct {
	Points    int
	Fallbacks int
	Warned    int
	Busy      time.Duration // summed point time across workers
	Slowest   sweep.PointEvent
}

// SweepTrace writes sweep.PointEvents as JSONL and tallies them per run.
// It is safe for concurrent use; a nil *SweepTrace ignores every call.
type SweepTrace struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	enc   *json.Encoder
	now   func() time.Time
	tally map[string]*RunTally
}

// traceLine is the on-disk record: the event plus a wall-clock stamp.
type traceLine struct {
	Time string `json:"time"`
	sweep.PointEvent
}

// OpenSweepTrace opens dir/points.jsonl for append when level is debug or
// trace. At info level it returns nil and creates nothing.
func OpenSweepTrace(dir, level string) (*SweepTrace, error) {
	if ParseLevel(level) >= slog.LevelInfo {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	path := filepath.Join(dir, TraceFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open point trace: %w", err)
	}
	return &SweepTrace{
		path:  path,
		file:  f,
		enc:   json.NewEncoder(f),
		now:   time.Now,
		tally: make(map[string]*RunTally),
	}, nil
}

// Path returns the trace file path, or "" for a nil trace.
func (st *SweepTrace) Path() string {
	if st == nil {
		return ""
	}
	return st.path
}

// TracePoint implements sweep.PointTracer. Write failures are dropped; the
// trace never fails a sweep.
func (st *SweepTrace) TracePoint(ev sweep.PointEvent) {
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.file == nil {
		return
	}

	_ = st.enc.Encode(traceLine{Time: st.now().UTC().Format(time.RFC3339Nano), PointEvent: ev})

	t := st.tally[ev.Run]
	if t == nil {
		t = &RunTally{}
		st.tally[ev.Run] = t
	}
	t.Points++
	t.Busy += ev.Elapsed
	if ev.Event == sweep.EventPointFallback {
		t.Fallbacks++
	}
	if len(ev.Warnings) > 0 {
		t.Warned++
	}
	if t.Points == 1 || ev.Elapsed > t.Slowest.Elapsed {
		t.Slowest = ev
	}
}

// Tally returns the summary of run, or a zero tally if nothing was traced.
func (st *SweepTrace) Tally(run string) RunTally {
	if st == nil {
		return RunTally{}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if t := st.tally[run]; t != nil {
		return *t
	}
	return RunTally{}
}

// Close closes the trace file. Later TracePoint calls are ignored.
func (st *SweepTrace) Close() error {
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.file == nil {
		return nil
	}
	err := st.file.Close()
	st.file = nil
	return err
}
