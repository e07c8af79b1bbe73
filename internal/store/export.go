package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/nvandessel/orderlattice/internal/sweep"
)

// ExportJSONL writes every stored run, oldest first, one JSON document per line.
func ExportJSONL(ctx context.Context, s ResultStore, w io.Writer) (int, error) {
	summaries, err := s.ListRuns(ctx, 0)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	n := 0
	for i := len(summaries) - 1; i >= 0; i-- {
		res, err := s.GetRun(ctx, summaries[i].ID)
		if err != nil {
			return n, err
		}
		if err := enc.Encode(res); err != nil {
			return n, fmt.Errorf("failed to encode run %s: %w", res.ID, err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("failed to flush export: %w", err)
	}
	return n, nil
}

// ImportJSONL reads runs written by ExportJSONL and saves them, replacing
// runs with the same ID. Unparseable lines are logged and skipped.
func ImportJSONL(ctx context.Context, s ResultStore, r io.Reader, logger *slog.Logger) (int, error) {
	scanner := bufio.NewScanner(r)
	// Runs over large grids produce long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	lineNum, n := 0, 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var res sweep.Result
		if err := json.Unmarshal(line, &res); err != nil {
			if logger != nil {
				logger.Warn("skipping unparseable run", "line", lineNum, "error", err)
			}
			continue
		}
		if err := s.SaveRun(ctx, res); err != nil {
			return n, fmt.Errorf("failed to import run on line %d: %w", lineNum, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("scanner error: %w", err)
	}
	return n, nil
}
