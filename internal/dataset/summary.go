package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the working-plane statistics of one dataset, shown in
// overview listings and the `info` command.
type Summary struct {
	Name         string
	Pixels       int
	FinitePixels int
	TotalPhotons float64

	MeanG, MeanS     float64
	MedianG, MedianS float64
	StdG, StdS       float64

	MeanTauPhase  float64 // ns, NaN when no frequency is known
	MeanTauMod    float64 // ns
	MeanTauNormal float64 // ns
}

// Summarize computes working-plane statistics for the dataset.
func (d *Dataset) Summarize() Summary {
	s := Summary{
		Name:          d.Name,
		TotalPhotons:  d.Signal.TotalCount(),
		MeanTauPhase:  math.NaN(),
		MeanTauMod:    math.NaN(),
		MeanTauNormal: math.NaN(),
	}

	var gs, ss []float64
	for y := range d.G {
		for x := range d.G[y] {
			s.Pixels++
			gv, sv := d.G[y][x], d.S[y][x]
			if math.IsNaN(gv) || math.IsNaN(sv) {
				continue
			}
			gs = append(gs, gv)
			ss = append(ss, sv)
		}
	}
	s.FinitePixels = len(gs)
	if len(gs) == 0 {
		s.MeanG, s.MeanS = math.NaN(), math.NaN()
		s.MedianG, s.MedianS = math.NaN(), math.NaN()
		return s
	}

	s.MeanG = stat.Mean(gs, nil)
	s.MeanS = stat.Mean(ss, nil)
	s.StdG = stat.StdDev(gs, nil)
	s.StdS = stat.StdDev(ss, nil)

	sort.Float64s(gs)
	sort.Float64s(ss)
	s.MedianG = stat.Quantile(0.5, stat.Empirical, gs, nil)
	s.MedianS = stat.Quantile(0.5, stat.Empirical, ss, nil)

	s.MeanTauPhase = finiteMean(d.PhaseLifetime)
	s.MeanTauMod = finiteMean(d.ModulationLifetime)
	s.MeanTauNormal = finiteMean(d.NormalLifetime)
	return s
}

// finiteMean averages the finite values of a plane, NaN when none exist.
func finiteMean(plane [][]float64) float64 {
	var sum float64
	var n int
	for y := range plane {
		for x := range plane[y] {
			if v := plane[y][x]; !math.IsNaN(v) {
				sum += v
				n++
			}
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
