package sweep

import "fmt"

// Point is one (T, H) parameter pair of a sweep.
type Point struct {
	T float64 `json:"t" yaml:"t"`
	H float64 `json:"h" yaml:"h"`
}

// String formats the point for logs.
func (p Point) String() string {
	return fmt.Sprintf("(T=%g, H=%g)", p.T, p.H)
}

// Grid is an ordered list of points. Results follow the same order.
type Grid []Point

// CartesianGrid returns every (T, H) combination, field-major: for each
// field in order, every temperature in order.
func CartesianGrid(temps, fields []float64) Grid {
	grid := make(Grid, 0, len(temps)*len(fields))
	for _, h := range fields {
		for _, t := range temps {
			grid = append(grid, Point{T: t, H: h})
		}
	}
	return grid
}

// Linspace returns steps evenly spaced values from start to stop inclusive.
// A single step yields just start.
func Linspace(start, stop float64, steps int) []float64 {
	if steps <= 0 {
		return nil
	}
	if steps == 1 {
		return []float64{start}
	}
	out := make([]float64, steps)
	delta := (stop - start) / float64(steps-1)
	for i := range out {
		out[i] = start + float64(i)*delta
	}
	out[steps-1] = stop
	return out
}
