package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/orderlattice/internal/sweep"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteResultStore implements ResultStore using SQLite for persistence.
type SQLiteResultStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteResultStore opens (creating if needed) the database at dbPath.
func NewSQLiteResultStore(dbPath string) (*SQLiteResultStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteResultStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteResultStore) Path() string { return s.dbPath }

// DB exposes the underlying handle for integrity checks.
func (s *SQLiteResultStore) DB() *sql.DB { return s.db }

// SaveRun stores a run and all of its rows in one transaction.
func (s *SQLiteResultStore) SaveRun(ctx context.Context, res sweep.Result) error {
	if res.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	configJSON, err := json.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	gridJSON, err := json.Marshal(res.Grid)
	if err != nil {
		return fmt.Errorf("failed to marshal grid: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Replacing a run cascades to its old rows.
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, res.ID); err != nil {
		return fmt.Errorf("failed to replace run %s: %w", res.ID, err)
	}

	sum := Summarize(res)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, size, rule, base_seed, points, fallbacks, config, grid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID,
		formatTime(sum.StartedAt),
		formatTime(sum.FinishedAt),
		sum.Size,
		sum.Rule,
		strconv.FormatUint(sum.BaseSeed, 10),
		sum.Points,
		sum.Fallbacks,
		string(configJSON),
		string(gridJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", res.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_rows (run_id, idx, t, h, a, r, fine, meso, coarse, tc, tc_max,
			abs_m, abs_m_err, energy, energy_err, samples, acceptance, mean_cluster,
			status, warnings, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range res.Rows {
		warnings, err := marshalWarnings(row.Warnings)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			res.ID, i,
			row.T, row.H, row.A, row.R, row.Fine, row.Meso, row.Coarse, row.TC, row.TCMax,
			row.AbsM, row.AbsMErr, row.Energy, row.EnergyErr, row.Samples,
			row.Acceptance, row.MeanCluster,
			string(row.Status), warnings, nullString(row.Error),
		); err != nil {
			return fmt.Errorf("failed to insert row %d of run %s: %w", i, res.ID, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run with its rows.
func (s *SQLiteResultStore) GetRun(ctx context.Context, id string) (*sweep.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		res                  sweep.Result
		started, finished    string
		configJSON, gridJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, config, grid FROM runs WHERE id = ?`, id,
	).Scan(&res.ID, &started, &finished, &configJSON, &gridJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}

	if res.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if res.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(configJSON), &res.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config of run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(gridJSON), &res.Grid); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grid of run %s: %w", id, err)
	}

	res.Rows, err = s.queryRows(ctx, id)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Rows retrieves the rows of a run in grid order.
func (s *SQLiteResultStore) Rows(ctx context.Context, id string) ([]sweep.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return s.queryRows(ctx, id)
}

// queryRows must be called with s.mu held.
func (s *SQLiteResultStore) queryRows(ctx context.Context, id string) ([]sweep.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t, h, a, r, fine, meso, coarse, tc, tc_max,
			abs_m, abs_m_err, energy, energy_err, samples, acceptance, mean_cluster,
			status, warnings, error
		FROM run_rows WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows of run %s: %w", id, err)
	}
	defer rows.Close()

	out := make([]sweep.Row, 0)
	for rows.Next() {
		var (
			row      sweep.Row
			status   string
			warnings sql.NullString
			errText  sql.NullString
		)
		if err := rows.Scan(
			&row.T, &row.H, &row.A, &row.R, &row.Fine, &row.Meso, &row.Coarse, &row.TC, &row.TCMax,
			&row.AbsM, &row.AbsMErr, &row.Energy, &row.EnergyErr, &row.Samples,
			&row.Acceptance, &row.MeanCluster,
			&status, &warnings, &errText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row.Status = sweep.Status(status)
		row.Error = errText.String
		if warnings.Valid && warnings.String != "" {
			if err := json.Unmarshal([]byte(warnings.String), &row.Warnings); err != nil {
				return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListRuns returns run summaries, newest first.
func (s *SQLiteResultStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, started_at, finished_at, size, rule, base_seed, points, fallbacks
		FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	out := make([]RunSummary, 0)
	for rows.Next() {
		var (
			sum               RunSummary
			started, finished string
			seed              string
		)
		if err := rows.Scan(&sum.ID, &started, &finished, &sum.Size, &sum.Rule, &seed, &sum.Points, &sum.Fallbacks); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if sum.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if sum.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		if sum.BaseSeed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("failed to parse base seed of run %s: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ResolveID expands a unique ID prefix to the full run ID.
func (s *SQLiteResultStore) ResolveID(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrRunNotFound)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`, escaped+"%")
	if err != nil {
		return "", fmt.Errorf("failed to resolve run id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return pickID(prefix, ids)
}

// DeleteRun removes a run and its rows.
func (s *SQLiteResultStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// ValidateIntegrity runs the SQLite integrity checks on the store's database.
func (s *SQLiteResultStore) ValidateIntegrity(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ValidateIntegrity(ctx, s.db)
}

// Close closes the database.
func (s *SQLiteResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// pickID applies the prefix resolution rules to candidate IDs sorted by id.
func pickID(prefix string, ids []string) (string, error) {
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return ids[0], nil
	}
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
}

func marshalWarnings(w []string) (any, error) {
	if len(w) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal warnings: %w", err)
	}
	return string(data), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t, nil
}
