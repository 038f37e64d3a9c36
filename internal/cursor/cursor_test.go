package cursor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New("short", 0.4, 0.3, 0.05)
	assert.Equal(t, "short", c.Name)
	assert.Equal(t, 0.4, c.Circle.Center.X)
	assert.Equal(t, 0.3, c.Circle.Center.Y)
	assert.Equal(t, 0.05, c.Circle.Radius)
	assert.Equal(t, uint8(255), c.Color.A)

	// Names determine colors deterministically.
	assert.Equal(t, c.Color, New("short", 0, 0, 1).Color)
	assert.NotEqual(t, c.Color, New("long", 0.4, 0.3, 0.05).Color)
}

func TestLabels(t *testing.T) {
	g := [][]float64{
		{0.40, 0.80, math.NaN()},
		{0.42, 0.10, 0.41},
	}
	s := [][]float64{
		{0.30, 0.10, 0.30},
		{0.31, 0.90, 0.29},
	}

	t.Run("assigns one-based labels", func(t *testing.T) {
		cursors := []Cursor{
			New("a", 0.4, 0.3, 0.05),
			New("b", 0.8, 0.1, 0.05),
		}
		labels, err := Labels(g, s, cursors)
		require.NoError(t, err)

		assert.Equal(t, uint8(1), labels[0][0])
		assert.Equal(t, uint8(2), labels[0][1])
		assert.Equal(t, uint8(0), labels[0][2]) // NaN pixel stays background
		assert.Equal(t, uint8(1), labels[1][0])
		assert.Equal(t, uint8(0), labels[1][1])
		assert.Equal(t, uint8(1), labels[1][2])
	})

	t.Run("later cursors overwrite earlier", func(t *testing.T) {
		cursors := []Cursor{
			New("wide", 0.4, 0.3, 0.5),
			New("tight", 0.4, 0.3, 0.05),
		}
		labels, err := Labels(g, s, cursors)
		require.NoError(t, err)
		assert.Equal(t, uint8(2), labels[0][0])
		// Only the wide cursor holds this pixel.
		assert.Equal(t, uint8(1), labels[0][1])
	})

	t.Run("plane size mismatch", func(t *testing.T) {
		_, err := Labels(g, s[:1], nil)
		assert.Error(t, err)
	})

	t.Run("too many cursors", func(t *testing.T) {
		_, err := Labels(g, s, make([]Cursor, 256))
		assert.Error(t, err)
	})
}

func TestCounts(t *testing.T) {
	labels := [][]uint8{
		{1, 2, 0},
		{1, 1, 2},
	}
	counts := Counts(labels, 2)
	assert.Equal(t, []int{3, 2}, counts)

	// Labels beyond the cursor count are ignored.
	counts = Counts(labels, 1)
	assert.Equal(t, []int{3}, counts)
}
