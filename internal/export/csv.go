// Package export writes sweep rows as CSV for plotting tools.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/nvandessel/orderlattice/internal/sweep"
)

// Dialect specifies the CSV format variant.
type Dialect string

const (
	// DialectStandard uses RFC 4180 compliant CSV.
	DialectStandard Dialect = "standard"

	// DialectTSV uses tab-separated values instead of comma.
	DialectTSV Dialect = "tsv"
)

// ResultColumns is the fixed leading column order of every export.
var ResultColumns = []string{"T", "H", "A", "R", "Fine", "Meso", "Coarse"}

// ExtendedColumns follow ResultColumns when IncludeExtended is set.
var ExtendedColumns = []string{
	"TC", "TCMax", "AbsM", "AbsMErr", "Energy", "EnergyErr",
	"Samples", "Acceptance", "MeanCluster", "Status", "Warnings", "Error",
}

// CSVConfig specifies options for CSV export.
type CSVConfig struct {
	// Dialect specifies the CSV format variant.
	// Default: DialectStandard
	Dialect Dialect

	// IncludeHeader writes column headers as the first row.
	// Default: true
	IncludeHeader bool

	// Precision is the number of decimal places for floating-point values.
	// -1 writes the shortest representation that round-trips.
	// Default: 6
	Precision int

	// NAString is the representation for missing and non-finite values.
	// Default: "NA"
	NAString string

	// IncludeExtended appends the diagnostic columns.
	// Default: false
	IncludeExtended bool
}

// DefaultCSVConfig returns a CSVConfig with the fixed result columns only.
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		Dialect:       DialectStandard,
		IncludeHeader: true,
		Precision:     6,
		NAString:      "NA",
	}
}

// CSVWriter writes sweep rows to CSV format.
type CSVWriter struct {
	config      *CSVConfig
	writer      *csv.Writer
	headerDone  bool
	rowsWritten int
}

// NewCSVWriter creates a new CSVWriter that writes to the given io.Writer.
// If config is nil, DefaultCSVConfig() is used.
func NewCSVWriter(w io.Writer, config *CSVConfig) *CSVWriter {
	if config == nil {
		config = DefaultCSVConfig()
	}

	csvWriter := csv.NewWriter(w)
	if config.Dialect == DialectTSV {
		csvWriter.Comma = '\t'
	}

	return &CSVWriter{config: config, writer: csvWriter}
}

// Headers returns the column headers for the configuration.
func (cw *CSVWriter) Headers() []string {
	headers := append([]string(nil), ResultColumns...)
	if cw.config.IncludeExtended {
		headers = append(headers, ExtendedColumns...)
	}
	return headers
}

// WriteHeader writes the CSV header row.
// This is called automatically on first Write if IncludeHeader is true.
func (cw *CSVWriter) WriteHeader() error {
	if cw.headerDone {
		return nil
	}
	if err := cw.writer.Write(cw.Headers()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	cw.headerDone = true
	return nil
}

// Write writes a single row.
func (cw *CSVWriter) Write(row sweep.Row) error {
	if cw.config.IncludeHeader && !cw.headerDone {
		if err := cw.WriteHeader(); err != nil {
			return err
		}
	}

	if err := cw.writer.Write(cw.formatRow(row)); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	cw.rowsWritten++
	return nil
}

// WriteAll writes rows in order.
func (cw *CSVWriter) WriteAll(rows []sweep.Row) error {
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (cw *CSVWriter) Flush() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// RowsWritten returns the number of data rows written (excluding header).
func (cw *CSVWriter) RowsWritten() int {
	return cw.rowsWritten
}

func (cw *CSVWriter) formatRow(r sweep.Row) []string {
	out := []string{
		cw.formatFloat(r.T),
		cw.formatFloat(r.H),
		cw.formatFloat(r.A),
		cw.formatFloat(r.R),
		cw.formatFloat(r.Fine),
		cw.formatFloat(r.Meso),
		cw.formatFloat(r.Coarse),
	}
	if !cw.config.IncludeExtended {
		return out
	}
	return append(out,
		cw.formatFloat(r.TC),
		cw.formatFloat(r.TCMax),
		cw.formatFloat(r.AbsM),
		cw.formatFloat(r.AbsMErr),
		cw.formatFloat(r.Energy),
		cw.formatFloat(r.EnergyErr),
		strconv.Itoa(r.Samples),
		cw.formatFloat(r.Acceptance),
		cw.formatFloat(r.MeanCluster),
		cw.formatString(string(r.Status)),
		cw.formatString(strings.Join(r.Warnings, "; ")),
		cw.formatString(r.Error),
	)
}

func (cw *CSVWriter) formatString(s string) string {
	if s == "" {
		return cw.config.NAString
	}
	return s
}

func (cw *CSVWriter) formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return cw.config.NAString
	}
	if cw.config.Precision < 0 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', cw.config.Precision, 64)
}

// ExportRowsToCSV is a convenience function to export rows to CSV.
// If config is nil, DefaultCSVConfig() is used.
func ExportRowsToCSV(w io.Writer, rows []sweep.Row, config *CSVConfig) error {
	writer := NewCSVWriter(w, config)

	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	if len(rows) == 0 && writer.config.IncludeHeader {
		if err := writer.WriteHeader(); err != nil {
			return err
		}
	}
	return writer.Flush()
}
