package phasor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phasor-studio/internal/signal"
)

// deltaSignal puts all photons of every pixel in a single time bin, which
// has a known exact phasor: modulation 1 at phase 2*pi*h*bin/bins.
func deltaSignal(t *testing.T, bins, height, width, bin int) *signal.Signal {
	t.Helper()
	sig, err := signal.New(bins, height, width)
	require.NoError(t, err)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sig.Add(bin, y, x, 100)
		}
	}
	return sig
}

func TestTransform(t *testing.T) {
	t.Run("delta at bin zero", func(t *testing.T) {
		sig := deltaSignal(t, 64, 2, 3, 0)
		coords, err := Transform(sig, 1)
		require.NoError(t, err)

		assert.InDelta(t, 1.0, coords.G[1][2], 1e-12)
		assert.InDelta(t, 0.0, coords.S[1][2], 1e-12)
		assert.InDelta(t, 100.0/64, coords.Mean[1][2], 1e-12)
	})

	t.Run("delta at later bin rotates the phasor", func(t *testing.T) {
		bins, bin := 64, 8
		sig := deltaSignal(t, bins, 1, 1, bin)
		coords, err := Transform(sig, 1)
		require.NoError(t, err)

		phase := 2 * math.Pi * float64(bin) / float64(bins)
		assert.InDelta(t, math.Cos(phase), coords.G[0][0], 1e-12)
		assert.InDelta(t, math.Sin(phase), coords.S[0][0], 1e-12)
	})

	t.Run("higher harmonic multiplies the phase", func(t *testing.T) {
		bins, bin := 64, 4
		sig := deltaSignal(t, bins, 1, 1, bin)
		coords, err := Transform(sig, 3)
		require.NoError(t, err)

		phase := 2 * math.Pi * 3 * float64(bin) / float64(bins)
		assert.InDelta(t, math.Cos(phase), coords.G[0][0], 1e-12)
		assert.InDelta(t, math.Sin(phase), coords.S[0][0], 1e-12)
	})

	t.Run("constant decay has zero harmonic content", func(t *testing.T) {
		sig, err := signal.New(32, 1, 1)
		require.NoError(t, err)
		for h := 0; h < 32; h++ {
			sig.Add(h, 0, 0, 5)
		}
		coords, err := Transform(sig, 1)
		require.NoError(t, err)

		assert.InDelta(t, 0.0, coords.G[0][0], 1e-12)
		assert.InDelta(t, 0.0, coords.S[0][0], 1e-12)
	})

	t.Run("empty pixel maps to NaN", func(t *testing.T) {
		sig, err := signal.New(16, 2, 2)
		require.NoError(t, err)
		sig.Add(0, 0, 0, 10)

		coords, err := Transform(sig, 1)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(coords.G[0][0]))
		assert.True(t, math.IsNaN(coords.G[1][1]))
		assert.True(t, math.IsNaN(coords.S[1][1]))
		assert.Equal(t, 0.0, coords.Mean[1][1])
	})

	t.Run("harmonic out of range", func(t *testing.T) {
		sig := deltaSignal(t, 16, 1, 1, 0)
		_, err := Transform(sig, 0)
		assert.Error(t, err)
		_, err = Transform(sig, 9)
		assert.Error(t, err)
	})
}

func TestFromLifetime(t *testing.T) {
	t.Run("zero lifetime sits at (1,0)", func(t *testing.T) {
		g, s, err := FromLifetime(80, 0)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, g, 1e-12)
		assert.InDelta(t, 0.0, s, 1e-12)
	})

	t.Run("lies on the universal semicircle", func(t *testing.T) {
		for _, tau := range []float64{0.5, 1, 2.5, 4, 10} {
			g, s, err := FromLifetime(80, tau)
			require.NoError(t, err)
			r2 := (g-0.5)*(g-0.5) + s*s
			assert.InDelta(t, 0.25, r2, 1e-12, "tau=%g", tau)
		}
	})

	t.Run("known fluorescein point", func(t *testing.T) {
		// 4 ns at 80 MHz: omega*tau = 2*pi*0.32.
		x := 2 * math.Pi * 0.32
		g, s, err := FromLifetime(80, 4)
		require.NoError(t, err)
		assert.InDelta(t, 1/(1+x*x), g, 1e-12)
		assert.InDelta(t, x/(1+x*x), s, 1e-12)
	})

	t.Run("invalid inputs", func(t *testing.T) {
		_, _, err := FromLifetime(0, 4)
		assert.Error(t, err)
		_, _, err = FromLifetime(80, -1)
		assert.Error(t, err)
	})
}

func TestApparentLifetimes(t *testing.T) {
	const freq = 80.0

	t.Run("semicircle point recovers its lifetime", func(t *testing.T) {
		for _, tau := range []float64{0.5, 2, 4} {
			gv, sv, err := FromLifetime(freq, tau)
			require.NoError(t, err)

			g := [][]float64{{gv}}
			s := [][]float64{{sv}}
			tauPhase, tauMod, err := ApparentLifetimes(g, s, freq)
			require.NoError(t, err)

			assert.InDelta(t, tau, tauPhase[0][0], 1e-9)
			assert.InDelta(t, tau, tauMod[0][0], 1e-9)
		}
	})

	t.Run("invalid coordinates map to NaN", func(t *testing.T) {
		g := [][]float64{{math.NaN(), -0.2, 1.2}}
		s := [][]float64{{0.3, 0.3, 0.9}}
		tauPhase, tauMod, err := ApparentLifetimes(g, s, freq)
		require.NoError(t, err)

		assert.True(t, math.IsNaN(tauPhase[0][0]))
		assert.True(t, math.IsNaN(tauMod[0][0]))
		assert.True(t, math.IsNaN(tauPhase[0][1]))
		// modulation above 1 has no real lifetime
		assert.True(t, math.IsNaN(tauMod[0][2]))
	})

	t.Run("requires a frequency", func(t *testing.T) {
		_, _, err := ApparentLifetimes([][]float64{{0.5}}, [][]float64{{0.3}}, 0)
		assert.Error(t, err)
	})
}

func TestNormalLifetime(t *testing.T) {
	const freq = 80.0

	t.Run("on-circle point is its own projection", func(t *testing.T) {
		gv, sv, err := FromLifetime(freq, 3)
		require.NoError(t, err)

		tau, err := NormalLifetime([][]float64{{gv}}, [][]float64{{sv}}, freq)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, tau[0][0], 1e-9)
	})

	t.Run("interior point projects radially", func(t *testing.T) {
		gv, sv, err := FromLifetime(freq, 3)
		require.NoError(t, err)
		// Shrink toward the circle center: same projection.
		gi := 0.5 + 0.4*(gv-0.5)
		si := 0.4 * sv

		tau, err := NormalLifetime([][]float64{{gi}}, [][]float64{{si}}, freq)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, tau[0][0], 1e-9)
	})

	t.Run("degenerate points map to NaN", func(t *testing.T) {
		g := [][]float64{{0.5, math.NaN()}}
		s := [][]float64{{0.0, 0.3}}
		tau, err := NormalLifetime(g, s, freq)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(tau[0][0]))
		assert.True(t, math.IsNaN(tau[0][1]))
	})
}
