package simulation

import (
	"github.com/nvandessel/orderlattice/internal/sweep"
)

// Temps returns n evenly spaced temperatures from start to stop inclusive.
func Temps(start, stop float64, n int) []float64 {
	return sweep.Linspace(start, stop, n)
}

// Seeds returns n consecutive base seeds starting at first.
func Seeds(first uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = first + uint64(i)
	}
	return out
}

// RowAt returns the row at (t, h) of the given run.
func RowAt(rr RunResult, t, h float64) (sweep.Row, bool) {
	for _, row := range rr.Result.Rows {
		if row.T == t && row.H == h {
			return row, true
		}
	}
	return sweep.Row{}, false
}

// RowsByPoint indexes a run's rows by PointKey.
func RowsByPoint(rr RunResult) map[string]sweep.Row {
	out := make(map[string]sweep.Row, len(rr.Result.Rows))
	for _, row := range rr.Result.Rows {
		out[PointKey(row.T, row.H)] = row
	}
	return out
}

// MeanA averages A at (t, h) over every run of the result.
func MeanA(result SimulationResult, t, h float64) float64 {
	sum, n := 0.0, 0
	for _, rr := range result.Runs {
		if row, ok := RowAt(rr, t, h); ok {
			sum += row.A
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
