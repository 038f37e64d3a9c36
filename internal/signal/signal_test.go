package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("allocates zeroed counts", func(t *testing.T) {
		sig, err := New(4, 3, 2)
		require.NoError(t, err)
		assert.Len(t, sig.Counts, 4*3*2)
		assert.NoError(t, sig.Validate())
	})

	t.Run("rejects invalid dimensions", func(t *testing.T) {
		_, err := New(0, 3, 2)
		assert.Error(t, err)
		_, err = New(4, -1, 2)
		assert.Error(t, err)
	})
}

func TestIndexing(t *testing.T) {
	sig, err := New(3, 2, 4)
	require.NoError(t, err)

	sig.Add(1, 0, 2, 5)
	sig.Add(1, 0, 2, 2)
	sig.Add(2, 1, 3, 1)

	assert.Equal(t, 7.0, sig.At(1, 0, 2))
	assert.Equal(t, 1.0, sig.At(2, 1, 3))
	assert.Equal(t, 0.0, sig.At(0, 0, 0))

	// H-major layout: one time plane is contiguous.
	assert.Equal(t, (1*2+0)*4+2, sig.Index(1, 0, 2))
}

func TestDecay(t *testing.T) {
	sig, err := New(4, 2, 2)
	require.NoError(t, err)
	for h := 0; h < 4; h++ {
		sig.Add(h, 1, 0, float64(h+1))
	}

	decay := sig.Decay(1, 0, nil)
	assert.Equal(t, []float64{1, 2, 3, 4}, decay)

	// Reuses the destination slice when it is large enough.
	buf := make([]float64, 8)
	decay = sig.Decay(1, 0, buf)
	assert.Equal(t, []float64{1, 2, 3, 4}, decay)
	assert.Same(t, &buf[0], &decay[0])
}

func TestPhotonSum(t *testing.T) {
	sig, err := New(3, 2, 2)
	require.NoError(t, err)
	sig.Add(0, 0, 0, 1)
	sig.Add(1, 0, 0, 2)
	sig.Add(2, 0, 0, 3)
	sig.Add(1, 1, 1, 10)

	sum := sig.PhotonSum()
	assert.Equal(t, 6.0, sum[0][0])
	assert.Equal(t, 0.0, sum[0][1])
	assert.Equal(t, 10.0, sum[1][1])
	assert.Equal(t, 16.0, sig.TotalCount())
}

func TestValidate(t *testing.T) {
	sig, err := New(2, 2, 2)
	require.NoError(t, err)

	sig.Counts = sig.Counts[:5]
	assert.Error(t, sig.Validate())
}

func TestPlaneHelpers(t *testing.T) {
	t.Run("new plane dimensions", func(t *testing.T) {
		p := NewPlane(3, 5)
		h, w := PlaneDims(p)
		assert.Equal(t, 3, h)
		assert.Equal(t, 5, w)
	})

	t.Run("clone is independent", func(t *testing.T) {
		p := NewPlane(2, 2)
		p[0][1] = 4
		q := ClonePlane(p)
		q[0][1] = 9
		assert.Equal(t, 4.0, p[0][1])
		assert.Equal(t, 9.0, q[0][1])
	})

	t.Run("empty plane", func(t *testing.T) {
		h, w := PlaneDims(nil)
		assert.Zero(t, h)
		assert.Zero(t, w)
		assert.Nil(t, ClonePlane(nil))
	})
}
