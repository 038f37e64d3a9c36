// Package dataset tracks the analysis state of loaded FLIM samples: raw
// phasor coordinates, the calibrated planes derived from them, and the
// filtered working copies that feed the plot.
package dataset

import (
	"fmt"
	"image/color"
	"math"

	"phasor-studio/internal/calibration"
	"phasor-studio/internal/filter"
	"phasor-studio/internal/phasor"
	"phasor-studio/internal/signal"
	"phasor-studio/pkg/colorutil"
)

// Dataset is one loaded sample and everything derived from it.
//
// The coordinate planes form a strict pipeline: RawG/RawS come from the
// phasor transform and are never modified; CalG/CalS are always recomputed
// from raw when a calibration is applied (so calibrating twice never
// stacks corrections); G/S are the working copies that filters mutate and
// ResetFilters restores.
type Dataset struct {
	Path    string
	Name    string
	Channel int
	Color   color.RGBA

	Signal       *signal.Signal
	FrequencyMHz float64
	Harmonic     int

	Mean       [][]float64
	RawG, RawS [][]float64
	CalG, CalS [][]float64
	G, S       [][]float64

	PhaseLifetime      [][]float64
	ModulationLifetime [][]float64
	NormalLifetime     [][]float64

	photonSum [][]float64
}

// New wraps a loaded signal. The name keys the dataset in its Manager and
// determines its display color.
func New(name string, sig *signal.Signal) (*Dataset, error) {
	if name == "" {
		return nil, fmt.Errorf("dataset name must not be empty")
	}
	if err := sig.Validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	return &Dataset{
		Path:         sig.Path,
		Name:         name,
		Channel:      sig.Channel,
		Color:        colorutil.HashColor(name),
		Signal:       sig,
		FrequencyMHz: sig.FrequencyMHz,
		Harmonic:     1,
	}, nil
}

// ComputePhasor runs the phasor transform and initializes all downstream
// planes with the identity calibration.
func (d *Dataset) ComputePhasor(harmonic int) error {
	coords, err := phasor.Transform(d.Signal, harmonic)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", d.Name, err)
	}
	d.Harmonic = harmonic
	d.Mean = coords.Mean
	d.RawG = coords.G
	d.RawS = coords.S
	return d.Calibrate(nil)
}

// Calibrate derives the calibrated planes from raw. A nil calibration
// applies the identity. Working planes and lifetime estimates refresh.
func (d *Dataset) Calibrate(cal *calibration.Calibration) error {
	if d.RawG == nil {
		return fmt.Errorf("dataset %s: phasor not computed", d.Name)
	}
	if cal == nil || cal.IsIdentity() {
		d.CalG = signal.ClonePlane(d.RawG)
		d.CalS = signal.ClonePlane(d.RawS)
	} else {
		g, s, err := cal.Apply(d.RawG, d.RawS)
		if err != nil {
			return fmt.Errorf("dataset %s: %w", d.Name, err)
		}
		d.CalG = g
		d.CalS = s
		if cal.FrequencyMHz > 0 {
			d.FrequencyMHz = cal.FrequencyMHz
		}
	}
	d.ResetFilters()
	return nil
}

// ResetFilters restores the working planes to the calibrated coordinates
// and recomputes lifetime estimates.
func (d *Dataset) ResetFilters() {
	d.G = signal.ClonePlane(d.CalG)
	d.S = signal.ClonePlane(d.CalS)
	d.refreshLifetimes()
}

// ApplyMedianFilter median-filters the working planes in place.
func (d *Dataset) ApplyMedianFilter(kernel, repeat int) error {
	if d.G == nil {
		return fmt.Errorf("dataset %s: phasor not computed", d.Name)
	}
	g, err := medianPlane(d.G, kernel, repeat)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", d.Name, err)
	}
	s, err := medianPlane(d.S, kernel, repeat)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", d.Name, err)
	}
	d.G = g
	d.S = s
	d.refreshLifetimes()
	return nil
}

// medianPlane tries the OpenCV median first and falls back to the NaN-aware
// Go implementation when the plane or kernel is outside what OpenCV handles.
func medianPlane(plane [][]float64, kernel, repeat int) ([][]float64, error) {
	if out, err := filter.MedianCV(plane, kernel, repeat); err == nil {
		return out, nil
	}
	return filter.Median(plane, kernel, repeat)
}

// ApplyPhotonThreshold masks working-plane pixels whose total photon count
// falls outside [minPhotons, maxPhotons]. maxPhotons < 0 means unbounded.
// Returns the label mask (0=low, 1=kept, 2=high).
func (d *Dataset) ApplyPhotonThreshold(minPhotons, maxPhotons float64) ([][]uint8, error) {
	if d.G == nil {
		return nil, fmt.Errorf("dataset %s: phasor not computed", d.Name)
	}
	labels := filter.PhotonRangeMask(d.PhotonSum(), minPhotons, maxPhotons)
	filter.ApplyMask(d.G, d.S, labels)
	d.refreshLifetimes()
	return labels, nil
}

// PhotonSum returns the cached per-pixel photon count of the raw signal.
func (d *Dataset) PhotonSum() [][]float64 {
	if d.photonSum == nil {
		d.photonSum = d.Signal.PhotonSum()
	}
	return d.photonSum
}

// refreshLifetimes recomputes the lifetime maps from the working planes.
// Without a usable frequency the maps are cleared instead.
func (d *Dataset) refreshLifetimes() {
	if d.FrequencyMHz <= 0 || d.G == nil {
		d.PhaseLifetime = nil
		d.ModulationLifetime = nil
		d.NormalLifetime = nil
		return
	}
	tauP, tauM, err := phasor.ApparentLifetimes(d.G, d.S, d.FrequencyMHz)
	if err != nil {
		return
	}
	tauN, err := phasor.NormalLifetime(d.G, d.S, d.FrequencyMHz)
	if err != nil {
		return
	}
	d.PhaseLifetime = tauP
	d.ModulationLifetime = tauM
	d.NormalLifetime = tauN
}

// FiniteCount returns the number of working-plane pixels that still carry
// finite coordinates.
func (d *Dataset) FiniteCount() int {
	var n int
	for y := range d.G {
		for x := range d.G[y] {
			if !math.IsNaN(d.G[y][x]) && !math.IsNaN(d.S[y][x]) {
				n++
			}
		}
	}
	return n
}
