package simulation

import (
	"math"
	"reflect"
	"sort"
	"testing"

	"github.com/nvandessel/orderlattice/internal/sweep"
)

const invariantTol = 1e-9

// AssertRowInvariants asserts the structural invariants of every row:
// A in [0,1], R = 1 - A, non-negative bands, TC = Fine+Meso+Coarse and
// A = min(1, TC/TCMax).
func AssertRowInvariants(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, rr := range result.Runs {
		for i, row := range rr.Result.Rows {
			if row.A < 0 || row.A > 1 {
				t.Errorf("AssertRowInvariants: run %d row %d: A=%.6f outside [0,1]", rr.Index, i, row.A)
			}
			if math.Abs(row.A+row.R-1) > invariantTol {
				t.Errorf("AssertRowInvariants: run %d row %d: A+R=%.12f", rr.Index, i, row.A+row.R)
			}
			if row.Fine < 0 || row.Meso < 0 || row.Coarse < 0 {
				t.Errorf("AssertRowInvariants: run %d row %d: negative band (%.6f, %.6f, %.6f)", rr.Index, i, row.Fine, row.Meso, row.Coarse)
			}
			if math.Abs(row.Fine+row.Meso+row.Coarse-row.TC) > invariantTol {
				t.Errorf("AssertRowInvariants: run %d row %d: bands sum %.6f != TC %.6f", rr.Index, i, row.Fine+row.Meso+row.Coarse, row.TC)
			}
			if row.TCMax > 0 && math.Abs(math.Min(1, row.TC/row.TCMax)-row.A) > invariantTol {
				t.Errorf("AssertRowInvariants: run %d row %d: A=%.6f != TC/TCMax=%.6f", rr.Index, i, row.A, row.TC/row.TCMax)
			}
			if !row.Finite() {
				t.Errorf("AssertRowInvariants: run %d row %d: non-finite row %+v", rr.Index, i, row)
			}
		}
	}
}

// AssertNoFallbacks asserts that every row was computed, not substituted.
func AssertNoFallbacks(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, rr := range result.Runs {
		for i, row := range rr.Result.Rows {
			if row.Status != sweep.StatusOK {
				t.Errorf("AssertNoFallbacks: run %d row %d (T=%.3f H=%.3f): status %s: %s", rr.Index, i, row.T, row.H, row.Status, row.Error)
			}
		}
	}
}

// AssertOrdered asserts A >= minA for every row with T below maxT.
func AssertOrdered(t *testing.T, result SimulationResult, maxT, minA float64) {
	t.Helper()
	for _, rr := range result.Runs {
		for _, row := range rr.Result.Rows {
			if row.T < maxT && row.A < minA {
				t.Errorf("AssertOrdered: run %d: A(T=%.3f, H=%.3f)=%.4f < %.4f", rr.Index, row.T, row.H, row.A, minA)
			}
		}
	}
}

// AssertDisordered asserts A <= maxA for every zero-field row with T above minT.
func AssertDisordered(t *testing.T, result SimulationResult, minT, maxA float64) {
	t.Helper()
	for _, rr := range result.Runs {
		for _, row := range rr.Result.Rows {
			if row.H == 0 && row.T > minT && row.A > maxA {
				t.Errorf("AssertDisordered: run %d: A(T=%.3f)=%.4f > %.4f", rr.Index, row.T, row.A, maxA)
			}
		}
	}
}

// AssertDecreasingInT asserts that, along each field value, A never rises by
// more than tol from one temperature to the next.
func AssertDecreasingInT(t *testing.T, result SimulationResult, tol float64) {
	t.Helper()
	for _, rr := range result.Runs {
		byField := make(map[float64][]sweep.Row)
		for _, row := range rr.Result.Rows {
			byField[row.H] = append(byField[row.H], row)
		}
		for h, rows := range byField {
			sort.Slice(rows, func(i, j int) bool { return rows[i].T < rows[j].T })
			for i := 1; i < len(rows); i++ {
				if rows[i].A > rows[i-1].A+tol {
					t.Errorf("AssertDecreasingInT: run %d H=%.3f: A rose from %.4f (T=%.3f) to %.4f (T=%.3f)",
						rr.Index, h, rows[i-1].A, rows[i-1].T, rows[i].A, rows[i].T)
				}
			}
		}
	}
}

// AssertFieldRaisesOrder asserts A(T, h) >= A(T, 0) - tol at every
// temperature, using the mean over runs.
func AssertFieldRaisesOrder(t *testing.T, result SimulationResult, h, tol float64) {
	t.Helper()
	if len(result.Runs) == 0 {
		t.Fatal("AssertFieldRaisesOrder: no runs")
	}
	for _, row := range result.Runs[0].Result.Rows {
		if row.H != 0 {
			continue
		}
		zero, field := MeanA(result, row.T, 0), MeanA(result, row.T, h)
		if field < zero-tol {
			t.Errorf("AssertFieldRaisesOrder: T=%.3f: A(H=%.3f)=%.4f < A(H=0)=%.4f - %.3f", row.T, h, field, zero, tol)
		}
	}
}

// AssertSharpDrop asserts that the mean A at field h falls by at least
// minDrop between temperatures lo and hi.
func AssertSharpDrop(t *testing.T, result SimulationResult, h, lo, hi, minDrop float64) {
	t.Helper()
	below, above := MeanA(result, lo, h), MeanA(result, hi, h)
	if below-above < minDrop {
		t.Errorf("AssertSharpDrop: H=%.3f: A(T=%.3f)=%.4f to A(T=%.3f)=%.4f drops %.4f, want >= %.3f",
			h, lo, below, hi, above, below-above, minDrop)
	}
}

// AssertBandDominates asserts that band carries the largest share of TC at
// every ordered row (T below maxT).
func AssertBandDominates(t *testing.T, result SimulationResult, band string, maxT float64) {
	t.Helper()
	for _, rr := range result.Runs {
		for _, row := range rr.Result.Rows {
			if row.T >= maxT || row.TC == 0 {
				continue
			}
			bands := map[string]float64{"fine": row.Fine, "meso": row.Meso, "coarse": row.Coarse}
			for name, v := range bands {
				if name != band && v > bands[band] {
					t.Errorf("AssertBandDominates: run %d T=%.3f: %s=%.4f exceeds %s=%.4f", rr.Index, row.T, name, v, band, bands[band])
				}
			}
		}
	}
}

// AssertIdenticalRuns asserts that two results hold bit-identical rows.
func AssertIdenticalRuns(t *testing.T, a, b SimulationResult) {
	t.Helper()
	if len(a.Runs) != len(b.Runs) {
		t.Fatalf("AssertIdenticalRuns: %d runs vs %d", len(a.Runs), len(b.Runs))
	}
	for i := range a.Runs {
		ra, rb := normalize(a.Runs[i].Result.Rows), normalize(b.Runs[i].Result.Rows)
		if !reflect.DeepEqual(ra, rb) {
			t.Errorf("AssertIdenticalRuns: run %d differs\n%s\n%s", i, FormatRunDebug(a.Runs[i]), FormatRunDebug(b.Runs[i]))
		}
	}
}

// AssertAgree asserts that two results agree on A within tol at every
// shared point, using the mean over runs.
func AssertAgree(t *testing.T, a, b SimulationResult, tol float64) {
	t.Helper()
	if len(a.Runs) == 0 {
		t.Fatal("AssertAgree: no runs")
	}
	for _, row := range a.Runs[0].Result.Rows {
		ma, mb := MeanA(a, row.T, row.H), MeanA(b, row.T, row.H)
		if math.Abs(ma-mb) > tol {
			t.Errorf("AssertAgree: T=%.3f H=%.3f: %s A=%.4f vs %s A=%.4f (tol %.3f)", row.T, row.H, a.Name, ma, b.Name, mb, tol)
		}
	}
}

// SpreadA returns the largest minus smallest A at (t, h) across runs.
func SpreadA(result SimulationResult, t, h float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, rr := range result.Runs {
		if row, ok := RowAt(rr, t, h); ok {
			lo = math.Min(lo, row.A)
			hi = math.Max(hi, row.A)
		}
	}
	if math.IsInf(lo, 1) {
		return 0
	}
	return hi - lo
}
