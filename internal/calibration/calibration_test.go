package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phasor-studio/internal/phasor"
	"phasor-studio/internal/signal"
)

// referenceSignal builds a reference whose photons all arrive in one time
// bin: its uncalibrated phasor has modulation 1 at a known phase, standing
// in for an instrument-distorted mono-exponential sample.
func referenceSignal(t *testing.T, bins, bin int, freqMHz float64) *signal.Signal {
	t.Helper()
	sig, err := signal.New(bins, 4, 4)
	require.NoError(t, err)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			sig.Add(bin, y, x, 50)
		}
	}
	sig.FrequencyMHz = freqMHz
	return sig
}

func TestNew(t *testing.T) {
	cal := New()
	assert.True(t, cal.IsIdentity())
	assert.Equal(t, CenterMean, cal.Method)
}

func TestCompute(t *testing.T) {
	t.Run("calibrated reference lands on its theoretical point", func(t *testing.T) {
		cal := New()
		require.NoError(t, cal.SetReference(referenceSignal(t, 64, 10, 80)))
		require.NoError(t, cal.Compute(0, 4.0))

		assert.Equal(t, 80.0, cal.FrequencyMHz)
		assert.Equal(t, 4.0, cal.LifetimeNS)
		assert.False(t, cal.IsIdentity())

		gc, sc, err := Center(cal.RefCoords, cal.Method)
		require.NoError(t, err)
		gCal, sCal := cal.ApplyPoint(gc, sc)

		gWant, sWant, err := phasor.FromLifetime(80, 4.0)
		require.NoError(t, err)
		assert.InDelta(t, gWant, gCal, 1e-9)
		assert.InDelta(t, sWant, sCal, 1e-9)
	})

	t.Run("explicit frequency overrides the file", func(t *testing.T) {
		cal := New()
		require.NoError(t, cal.SetReference(referenceSignal(t, 64, 10, 80)))
		require.NoError(t, cal.Compute(40, 4.0))
		assert.Equal(t, 40.0, cal.FrequencyMHz)
	})

	t.Run("no reference loaded", func(t *testing.T) {
		cal := New()
		err := cal.Compute(80, 4.0)
		assert.ErrorContains(t, err, "no reference")
	})

	t.Run("frequency unknown", func(t *testing.T) {
		cal := New()
		require.NoError(t, cal.SetReference(referenceSignal(t, 64, 10, 0)))
		err := cal.Compute(0, 4.0)
		assert.ErrorContains(t, err, "frequency")
	})

	t.Run("lifetime must be positive", func(t *testing.T) {
		cal := New()
		require.NoError(t, cal.SetReference(referenceSignal(t, 64, 10, 80)))
		err := cal.Compute(80, 0)
		assert.Error(t, err)
	})

	t.Run("empty reference has no center", func(t *testing.T) {
		sig, err := signal.New(64, 2, 2)
		require.NoError(t, err)
		sig.FrequencyMHz = 80

		cal := New()
		require.NoError(t, cal.SetReference(sig))
		assert.Error(t, cal.Compute(0, 4.0))
	})
}

func TestApply(t *testing.T) {
	t.Run("identity leaves coordinates unchanged", func(t *testing.T) {
		cal := New()
		g := [][]float64{{0.4, 0.7}}
		s := [][]float64{{0.3, 0.1}}
		gOut, sOut, err := cal.Apply(g, s)
		require.NoError(t, err)
		assert.InDelta(t, 0.4, gOut[0][0], 1e-12)
		assert.InDelta(t, 0.1, sOut[0][1], 1e-12)
	})

	t.Run("rotation and scaling", func(t *testing.T) {
		cal := New()
		cal.PhaseZero = math.Pi / 2
		cal.ModulationZero = 2

		// (0, 1) rotated by -pi/2 is (1, 0), then scaled by 1/2.
		gOut, sOut, err := cal.Apply([][]float64{{0}}, [][]float64{{1}})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, gOut[0][0], 1e-12)
		assert.InDelta(t, 0.0, sOut[0][0], 1e-12)
	})

	t.Run("inputs are not modified and NaN survives", func(t *testing.T) {
		cal := New()
		cal.PhaseZero = 0.3
		g := [][]float64{{0.4, math.NaN()}}
		s := [][]float64{{0.3, math.NaN()}}
		gOut, sOut, err := cal.Apply(g, s)
		require.NoError(t, err)

		assert.Equal(t, 0.4, g[0][0])
		assert.NotEqual(t, g[0][0], gOut[0][0])
		assert.True(t, math.IsNaN(gOut[0][1]))
		assert.True(t, math.IsNaN(sOut[0][1]))
	})

	t.Run("mismatched plane sizes", func(t *testing.T) {
		cal := New()
		_, _, err := cal.Apply([][]float64{{0.4}}, [][]float64{{0.3, 0.1}})
		assert.Error(t, err)
	})

	t.Run("zero modulation rejected", func(t *testing.T) {
		cal := New()
		cal.ModulationZero = 0
		_, _, err := cal.Apply([][]float64{{0.4}}, [][]float64{{0.3}})
		assert.Error(t, err)
	})
}

func TestReset(t *testing.T) {
	cal := New()
	require.NoError(t, cal.SetReference(referenceSignal(t, 64, 10, 80)))
	require.NoError(t, cal.Compute(0, 4.0))
	require.False(t, cal.IsIdentity())

	cal.Reset()
	assert.True(t, cal.IsIdentity())
	assert.NotNil(t, cal.Reference)
}

func TestCenter(t *testing.T) {
	coords := &phasor.Coordinates{
		Harmonic: 1,
		Mean:     [][]float64{{1, 3}, {0, 1}},
		G:        [][]float64{{0.2, 0.6}, {math.NaN(), 0.4}},
		S:        [][]float64{{0.1, 0.5}, {math.NaN(), 0.3}},
	}

	t.Run("weighted mean", func(t *testing.T) {
		g, s, err := Center(coords, CenterMean)
		require.NoError(t, err)
		// weights 1, 3, 1; the NaN pixel drops out
		assert.InDelta(t, (0.2+3*0.6+0.4)/5, g, 1e-12)
		assert.InDelta(t, (0.1+3*0.5+0.3)/5, s, 1e-12)
	})

	t.Run("median", func(t *testing.T) {
		g, s, err := Center(coords, CenterMedian)
		require.NoError(t, err)
		assert.InDelta(t, 0.4, g, 1e-12)
		assert.InDelta(t, 0.3, s, 1e-12)
	})

	t.Run("empty method defaults to mean", func(t *testing.T) {
		g1, s1, err := Center(coords, "")
		require.NoError(t, err)
		g2, s2, err := Center(coords, CenterMean)
		require.NoError(t, err)
		assert.Equal(t, g2, g1)
		assert.Equal(t, s2, s1)
	})

	t.Run("unknown method", func(t *testing.T) {
		_, _, err := Center(coords, "mode")
		assert.Error(t, err)
	})
}
