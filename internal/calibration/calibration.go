// Package calibration derives and applies phasor calibration parameters.
//
// FLIM instruments add a systematic timing distortion (the instrument
// response) that rotates and shrinks measured phasors. Imaging a reference
// sample of known mono-exponential lifetime recovers two scalar
// corrections: a phase offset and a modulation ratio. Applying the inverse
// rotation and scaling moves measured coordinates to where the known
// sample says they should be.
package calibration

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"phasor-studio/internal/phasor"
	"phasor-studio/internal/signal"
	"phasor-studio/pkg/geometry"
)

// CenterMethod selects how the reference phasor cloud is reduced to a
// single representative coordinate.
type CenterMethod string

const (
	// CenterMean is the intensity-weighted mean of the reference phasors.
	CenterMean CenterMethod = "mean"
	// CenterMedian is the coordinate-wise median of the reference phasors.
	CenterMedian CenterMethod = "median"
)

// Calibration holds a loaded reference signal and the correction scalars
// derived from it. The zero correction (phase 0, modulation 1) is the
// identity and is what uncalibrated datasets implicitly use.
type Calibration struct {
	ReferencePath string
	Reference     *signal.Signal
	RefCoords     *phasor.Coordinates

	FrequencyMHz float64 // frequency used for the last Compute
	LifetimeNS   float64 // reference lifetime used for the last Compute
	Method       CenterMethod

	PhaseZero      float64 // radians
	ModulationZero float64 // ratio, 1 = no correction
}

// New returns an identity calibration using the mean center method.
func New() *Calibration {
	return &Calibration{
		ModulationZero: 1,
		Method:         CenterMean,
	}
}

// SetReference attaches an already-loaded reference signal.
func (c *Calibration) SetReference(sig *signal.Signal) error {
	if err := sig.Validate(); err != nil {
		return fmt.Errorf("invalid reference signal: %w", err)
	}
	c.Reference = sig
	c.ReferencePath = sig.Path
	c.RefCoords = nil
	return nil
}

// Compute derives PhaseZero and ModulationZero from the loaded reference.
// freqMHz may be 0 to use the frequency detected at import; lifetimeNS is
// the known mono-exponential lifetime of the reference sample.
func (c *Calibration) Compute(freqMHz, lifetimeNS float64) error {
	if c.Reference == nil {
		return fmt.Errorf("no reference signal loaded")
	}
	if freqMHz <= 0 {
		freqMHz = c.Reference.FrequencyMHz
	}
	if freqMHz <= 0 {
		return fmt.Errorf("laser frequency unknown: not present in reference file and not provided")
	}
	if lifetimeNS <= 0 {
		return fmt.Errorf("reference lifetime must be positive, got %g ns", lifetimeNS)
	}

	coords, err := phasor.Transform(c.Reference, 1)
	if err != nil {
		return fmt.Errorf("reference phasor transform: %w", err)
	}
	c.RefCoords = coords

	gc, sc, err := Center(coords, c.Method)
	if err != nil {
		return err
	}

	thetaMeasured, modMeasured := geometry.Point2D{X: gc, Y: sc}.Polar()
	if modMeasured == 0 {
		return fmt.Errorf("reference phasor center is at the origin")
	}

	gt, st, err := phasor.FromLifetime(freqMHz, lifetimeNS)
	if err != nil {
		return err
	}
	thetaKnown, modKnown := geometry.Point2D{X: gt, Y: st}.Polar()

	c.PhaseZero = thetaMeasured - thetaKnown
	c.ModulationZero = modMeasured / modKnown
	c.FrequencyMHz = freqMHz
	c.LifetimeNS = lifetimeNS
	return nil
}

// Apply returns calibrated copies of the given phasor planes: every finite
// coordinate is rotated by -PhaseZero and scaled by 1/ModulationZero.
// NaN coordinates stay NaN. The inputs are not modified.
func (c *Calibration) Apply(g, s [][]float64) (gOut, sOut [][]float64, err error) {
	if c.ModulationZero == 0 {
		return nil, nil, fmt.Errorf("modulation correction is zero")
	}
	h, w := signal.PlaneDims(g)
	if sh, sw := signal.PlaneDims(s); sh != h || sw != w {
		return nil, nil, fmt.Errorf("plane size mismatch: %dx%d vs %dx%d", h, w, sh, sw)
	}

	cos := math.Cos(-c.PhaseZero)
	sin := math.Sin(-c.PhaseZero)
	scale := 1 / c.ModulationZero

	gOut = signal.NewPlane(h, w)
	sOut = signal.NewPlane(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gv, sv := g[y][x], s[y][x]
			gOut[y][x] = (gv*cos - sv*sin) * scale
			sOut[y][x] = (gv*sin + sv*cos) * scale
		}
	}
	return gOut, sOut, nil
}

// ApplyPoint calibrates a single coordinate pair.
func (c *Calibration) ApplyPoint(g, s float64) (float64, float64) {
	cos := math.Cos(-c.PhaseZero)
	sin := math.Sin(-c.PhaseZero)
	scale := 1 / c.ModulationZero
	return (g*cos - s*sin) * scale, (g*sin + s*cos) * scale
}

// ReferenceChannel returns the detector channel of the loaded reference,
// 0 when none is loaded.
func (c *Calibration) ReferenceChannel() int {
	if c.Reference == nil {
		return 0
	}
	return c.Reference.Channel
}

// IsIdentity reports whether the calibration leaves coordinates unchanged.
func (c *Calibration) IsIdentity() bool {
	return c.PhaseZero == 0 && c.ModulationZero == 1
}

// Reset restores the identity calibration, keeping the loaded reference.
func (c *Calibration) Reset() {
	c.PhaseZero = 0
	c.ModulationZero = 1
}

// Center reduces a phasor cloud to a single coordinate.
func Center(coords *phasor.Coordinates, method CenterMethod) (g, s float64, err error) {
	switch method {
	case CenterMean, "":
		return weightedMeanCenter(coords)
	case CenterMedian:
		return medianCenter(coords)
	default:
		return 0, 0, fmt.Errorf("unknown center method %q", method)
	}
}

// weightedMeanCenter averages finite coordinates weighted by pixel
// intensity, so bright reference pixels dominate.
func weightedMeanCenter(coords *phasor.Coordinates) (float64, float64, error) {
	var sumW, sumG, sumS float64
	h, w := signal.PlaneDims(coords.G)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gv, sv := coords.G[y][x], coords.S[y][x]
			if math.IsNaN(gv) || math.IsNaN(sv) {
				continue
			}
			wt := coords.Mean[y][x]
			if wt <= 0 {
				continue
			}
			sumW += wt
			sumG += wt * gv
			sumS += wt * sv
		}
	}
	if sumW == 0 {
		return 0, 0, fmt.Errorf("reference contains no photons")
	}
	return sumG / sumW, sumS / sumW, nil
}

// medianCenter takes the coordinate-wise median of finite phasors.
func medianCenter(coords *phasor.Coordinates) (float64, float64, error) {
	h, w := signal.PlaneDims(coords.G)
	gs := make([]float64, 0, h*w)
	ss := make([]float64, 0, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gv, sv := coords.G[y][x], coords.S[y][x]
			if math.IsNaN(gv) || math.IsNaN(sv) {
				continue
			}
			gs = append(gs, gv)
			ss = append(ss, sv)
		}
	}
	if len(gs) == 0 {
		return 0, 0, fmt.Errorf("reference contains no finite phasor coordinates")
	}
	sort.Float64s(gs)
	sort.Float64s(ss)
	g := stat.Quantile(0.5, stat.Empirical, gs, nil)
	s := stat.Quantile(0.5, stat.Empirical, ss, nil)
	return g, s, nil
}
