package plot

import (
	"bytes"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phasor-studio/internal/cursor"
)

func testSeries() Series {
	return Series{
		Name:  "sample",
		G:     [][]float64{{0.5, 0.3, math.NaN()}},
		S:     [][]float64{{0.3, 0.2, math.NaN()}},
		Color: color.RGBA{R: 255, G: 80, B: 80, A: 255},
	}
}

func TestRenderDensity(t *testing.T) {
	opts := DefaultOptions()
	img, err := Render(opts, testSeries())
	require.NoError(t, err)

	assert.Equal(t, opts.Width, img.Bounds().Dx())
	assert.Equal(t, opts.Height, img.Bounds().Dy())

	// Outside the plot area the background color shows.
	assert.Equal(t, color.RGBA{R: 8, G: 8, B: 24, A: 255}, img.RGBAAt(2, 2))

	// The occupied density cell is brighter than the background.
	x, y := toPixel(plotArea(opts), opts, 0.5, 0.3)
	px := img.RGBAAt(x, y)
	assert.True(t, int(px.R)+int(px.G)+int(px.B) > 8+8+24, "density cell not lit: %v", px)
}

func TestRenderScatter(t *testing.T) {
	opts := DefaultOptions()
	opts.Mode = ModeScatter
	opts.Semicircle = false

	ser := testSeries()
	img, err := Render(opts, ser)
	require.NoError(t, err)

	x, y := toPixel(plotArea(opts), opts, 0.5, 0.3)
	assert.Equal(t, ser.Color, img.RGBAAt(x, y))
}

func TestRenderScatterDeterministicSubsampling(t *testing.T) {
	h, w := 40, 40
	g := make([][]float64, h)
	s := make([][]float64, h)
	for y := 0; y < h; y++ {
		g[y] = make([]float64, w)
		s[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			g[y][x] = 0.2 + 0.6*float64(y*w+x)/float64(h*w)
			s[y][x] = 0.1 + 0.3*float64(x)/float64(w)
		}
	}
	ser := Series{Name: "dense", G: g, S: s, Color: color.RGBA{R: 200, A: 255}}

	opts := DefaultOptions()
	opts.Mode = ModeScatter
	opts.MaxPoints = 100

	a, err := Render(opts, ser)
	require.NoError(t, err)
	b, err := Render(opts, ser)
	require.NoError(t, err)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestRenderErrors(t *testing.T) {
	t.Run("bounds", func(t *testing.T) {
		opts := DefaultOptions()
		opts.GMax = opts.GMin
		_, err := Render(opts, testSeries())
		assert.ErrorContains(t, err, "bounds")
	})

	t.Run("size", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Width = 50
		_, err := Render(opts, testSeries())
		assert.ErrorContains(t, err, "too small")
	})

	t.Run("mode", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Mode = Mode(99)
		_, err := Render(opts, testSeries())
		assert.ErrorContains(t, err, "mode")
	})
}

func TestEncodePNG(t *testing.T) {
	img, err := Render(DefaultOptions(), testSeries())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, img))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, buf.Bytes()[:4])
}

func TestDrawCursors(t *testing.T) {
	t.Run("outline carries the cursor color", func(t *testing.T) {
		opts := DefaultOptions()
		img, err := Render(opts, testSeries())
		require.NoError(t, err)

		c := cursor.New("roi-1", 0.5, 0.3, 0.05)
		DrawCursors(img, opts, []cursor.Cursor{c})

		area := plotArea(opts)
		cx, cy := toPixel(area, opts, 0.5, 0.3)
		r := int(math.Round(0.05 / (opts.GMax - opts.GMin) * float64(area.Dx())))
		assert.Equal(t, c.Color, img.RGBAAt(cx+r, cy))
	})

	t.Run("cursors outside the plotted range are skipped", func(t *testing.T) {
		opts := DefaultOptions()
		img, err := Render(opts, testSeries())
		require.NoError(t, err)
		before := append([]uint8(nil), img.Pix...)

		c := cursor.New("roi-2", 2.0, 0.3, 0.05)
		DrawCursors(img, opts, []cursor.Cursor{c})
		assert.Equal(t, before, img.Pix)
	})
}

func TestToPixelOrientation(t *testing.T) {
	opts := DefaultOptions()
	area := plotArea(opts)

	// Larger S is higher on screen (smaller y).
	_, yLow := toPixel(area, opts, 0.5, 0.1)
	_, yHigh := toPixel(area, opts, 0.5, 0.5)
	assert.Less(t, yHigh, yLow)

	// Larger G is further right.
	x0, _ := toPixel(area, opts, 0.2, 0.1)
	x1, _ := toPixel(area, opts, 0.8, 0.1)
	assert.Less(t, x0, x1)
}

func TestTicks(t *testing.T) {
	assert.Equal(t, []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0}, ticks(-0.05, 1.05))
	assert.Equal(t, []float64{0, 0.2, 0.4, 0.6}, ticks(-0.05, 0.70))
}
