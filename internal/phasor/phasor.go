// Package phasor implements the phasor transform for time-resolved FLIM
// data and the lifetime estimates derived from phasor coordinates.
//
// Each pixel's decay histogram I(t) maps to a point in phasor space:
//
//	G = sum I(t)cos(wht) / sum I(t)
//	S = sum I(t)sin(wht) / sum I(t)
//
// where h is the harmonic and w the angular repetition frequency. The
// transform is fit-free: mono-exponential decays land on the universal
// semicircle, mixtures fall inside it.
package phasor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"phasor-studio/internal/signal"
	"phasor-studio/pkg/geometry"
)

// Coordinates holds the per-pixel phasor planes of one dataset at one
// harmonic. Pixels without photons carry NaN in G and S.
type Coordinates struct {
	Harmonic int
	Mean     [][]float64 // per-pixel mean photon count over the time axis
	G        [][]float64 // real component
	S        [][]float64 // imaginary component
}

// Transform computes phasor coordinates from a signal at the given harmonic.
func Transform(sig *signal.Signal, harmonic int) (*Coordinates, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	if harmonic < 1 || harmonic > sig.Bins/2 {
		return nil, fmt.Errorf("harmonic %d out of range [1, %d] for %d time bins",
			harmonic, sig.Bins/2, sig.Bins)
	}

	coords := &Coordinates{
		Harmonic: harmonic,
		Mean:     signal.NewPlane(sig.Height, sig.Width),
		G:        signal.NewPlane(sig.Height, sig.Width),
		S:        signal.NewPlane(sig.Height, sig.Width),
	}

	fft := fourier.NewFFT(sig.Bins)
	decay := make([]float64, sig.Bins)
	coeff := make([]complex128, sig.Bins/2+1)

	for y := 0; y < sig.Height; y++ {
		for x := 0; x < sig.Width; x++ {
			decay = sig.Decay(y, x, decay)
			coeff = fft.Coefficients(coeff, decay)

			total := real(coeff[0])
			coords.Mean[y][x] = total / float64(sig.Bins)

			if total <= 0 {
				coords.G[y][x] = math.NaN()
				coords.S[y][x] = math.NaN()
				continue
			}
			// DFT uses exp(-iwt): the imaginary part is the negated
			// sine sum, so S flips sign.
			coords.G[y][x] = real(coeff[harmonic]) / total
			coords.S[y][x] = -imag(coeff[harmonic]) / total
		}
	}

	return coords, nil
}

// FromLifetime returns the theoretical phasor coordinate of a
// mono-exponential decay with the given lifetime (ns) at the given laser
// repetition frequency (MHz). The point lies on the universal semicircle.
func FromLifetime(freqMHz, lifetimeNS float64) (g, s float64, err error) {
	if freqMHz <= 0 {
		return 0, 0, fmt.Errorf("frequency must be positive, got %g MHz", freqMHz)
	}
	if lifetimeNS < 0 {
		return 0, 0, fmt.Errorf("lifetime must be non-negative, got %g ns", lifetimeNS)
	}

	// omega*tau with MHz and ns cancels to 2*pi*f*tau*1e-3.
	x := 2 * math.Pi * freqMHz * lifetimeNS * 1e-3
	d := 1 + x*x
	return 1 / d, x / d, nil
}

// Omega returns the angular repetition frequency in rad/ns for a laser
// frequency in MHz.
func Omega(freqMHz float64) float64 {
	return 2 * math.Pi * freqMHz * 1e-3
}

// ApparentLifetimes computes per-pixel phase and modulation lifetimes (ns)
// from calibrated phasor planes. Coordinates outside the physically
// meaningful range map to NaN.
func ApparentLifetimes(g, s [][]float64, freqMHz float64) (tauPhase, tauMod [][]float64, err error) {
	if freqMHz <= 0 {
		return nil, nil, fmt.Errorf("frequency must be positive, got %g MHz", freqMHz)
	}
	h, w := signal.PlaneDims(g)
	omega := Omega(freqMHz)

	tauPhase = signal.NewPlane(h, w)
	tauMod = signal.NewPlane(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gv, sv := g[y][x], s[y][x]

			if gv <= 0 || math.IsNaN(gv) || math.IsNaN(sv) {
				tauPhase[y][x] = math.NaN()
			} else {
				tauPhase[y][x] = sv / gv / omega
			}

			m2 := gv*gv + sv*sv
			if m2 <= 0 || m2 > 1 || math.IsNaN(m2) {
				tauMod[y][x] = math.NaN()
			} else {
				tauMod[y][x] = math.Sqrt(1/m2-1) / omega
			}
		}
	}
	return tauPhase, tauMod, nil
}

// NormalLifetime projects each coordinate onto the universal semicircle
// and returns the lifetime (ns) of the projected point. This is the
// single-exponential lifetime nearest to the measured phasor.
func NormalLifetime(g, s [][]float64, freqMHz float64) ([][]float64, error) {
	if freqMHz <= 0 {
		return nil, fmt.Errorf("frequency must be positive, got %g MHz", freqMHz)
	}
	h, w := signal.PlaneDims(g)
	omega := Omega(freqMHz)

	tau := signal.NewPlane(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tau[y][x] = projectLifetime(g[y][x], s[y][x], omega)
		}
	}
	return tau, nil
}

// projectLifetime maps one coordinate onto the semicircle centered at
// (0.5, 0) with radius 0.5 and converts the projection to a lifetime.
func projectLifetime(g, s, omega float64) float64 {
	if math.IsNaN(g) || math.IsNaN(s) {
		return math.NaN()
	}
	center := geometry.Point2D{X: 0.5}
	p := geometry.Point2D{X: g, Y: s}
	n := center.Distance(p)
	if n == 0 {
		return math.NaN()
	}
	proj := center.Add(p.Sub(center).Scale(0.5 / n))
	if proj.X <= 0 || proj.Y <= 0 {
		return math.NaN()
	}
	return proj.Y / proj.X / omega
}
