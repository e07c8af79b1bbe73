package sweep

import (
	"math"

	"github.com/nvandessel/orderlattice/internal/constants"
	"github.com/nvandessel/orderlattice/internal/decompose"
)

// Status records how a row was produced.
type Status string

const (
	// StatusOK marks a row computed from its own simulation.
	StatusOK Status = "ok"

	// StatusFallback marks a row substituted after the point failed.
	StatusFallback Status = "fallback"
)

// Row is the outcome of one (T, H) point. The first seven fields are the
// fixed result columns.
type Row struct {
	T      float64 `json:"t"`
	H      float64 `json:"h"`
	A      float64 `json:"a"`
	R      float64 `json:"r"`
	Fine   float64 `json:"fine"`
	Meso   float64 `json:"meso"`
	Coarse float64 `json:"coarse"`

	TC        float64 `json:"tc"`
	TCMax     float64 `json:"tc_max"`
	AbsM      float64 `json:"abs_m"`
	AbsMErr   float64 `json:"abs_m_err"`
	Energy    float64 `json:"energy"`
	EnergyErr float64 `json:"energy_err"`
	Samples   int     `json:"samples"`

	// Acceptance is the Metropolis acceptance rate; MeanCluster the mean
	// Wolff cluster size. Each is zero under the other rule.
	Acceptance  float64 `json:"acceptance,omitempty"`
	MeanCluster float64 `json:"mean_cluster,omitempty"`

	Status   Status   `json:"status"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Finite reports whether every numeric field is a finite number.
func (r Row) Finite() bool {
	for _, v := range []float64{r.A, r.R, r.Fine, r.Meso, r.Coarse, r.TC, r.TCMax,
		r.AbsM, r.AbsMErr, r.Energy, r.EnergyErr, r.Acceptance, r.MeanCluster} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (r *Row) setLayers(d decompose.LayerDecomposition) {
	r.Fine, r.Meso, r.Coarse = d.Fine, d.Meso, d.Coarse
	r.TC, r.TCMax = d.TC, d.TCMax
	r.A = d.Order()
	r.R = 1 - r.A
}

// FallbackRow is the row substituted for a failed point. Below T_c it
// carries the ground-state decomposition (A=1); otherwise A=0 with empty
// bands.
func FallbackRow(cfg Config, p Point, cause error) Row {
	row := Row{T: p.T, H: p.H, Status: StatusFallback}
	geo := cfg.Geometry()
	if p.T < constants.CriticalTemperature && geo.Validate() == nil {
		row.setLayers(decompose.GroundState(geo))
	} else {
		row.TCMax = float64(geo.Nodes() - 1)
		row.A, row.R = 0, 1
	}
	if cause != nil {
		row.Error = cause.Error()
	}
	return row
}
