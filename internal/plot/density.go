package plot

import (
	"image"
	"math"

	"phasor-studio/pkg/colorutil"
)

// renderDensity bins all series' finite coordinates into a per-pixel
// histogram over the plot area, optionally smooths it, and maps densities
// through the color ramp. A square-root transfer keeps sparse regions
// visible next to dense clusters.
func renderDensity(img *image.RGBA, area image.Rectangle, opts Options, series []Series) {
	w, h := area.Dx(), area.Dy()
	grid := make([]float64, w*h)

	for _, ser := range series {
		for y := range ser.G {
			for x := range ser.G[y] {
				gv, sv := ser.G[y][x], ser.S[y][x]
				if math.IsNaN(gv) || math.IsNaN(sv) {
					continue
				}
				px, py := toPixel(area, opts, gv, sv)
				gx, gy := px-area.Min.X, py-area.Min.Y
				if gx < 0 || gx >= w || gy < 0 || gy >= h {
					continue
				}
				grid[gy*w+gx]++
			}
		}
	}

	if opts.Smooth {
		grid = smoothGrid(grid, w, h, opts.SmoothSigma)
	}

	var maxV float64
	for _, v := range grid {
		if v > maxV {
			maxV = v
		}
	}
	if maxV == 0 {
		return
	}

	for gy := 0; gy < h; gy++ {
		for gx := 0; gx < w; gx++ {
			v := grid[gy*w+gx]
			if v <= 0 {
				continue
			}
			t := math.Sqrt(v / maxV)
			img.SetRGBA(area.Min.X+gx, area.Min.Y+gy, colorutil.DensityColor(t))
		}
	}
}

// smoothGrid blurs the density grid. Two passes of a separable 3x3 box
// blur approximate a small gaussian; the gocv path in density_cv.go is
// used instead when a sigma is requested and OpenCV support is built in.
func smoothGrid(grid []float64, w, h int, sigma float64) []float64 {
	if sigma > 0 {
		if out, err := smoothGridCV(grid, w, h, sigma); err == nil {
			return out
		}
	}

	out := grid
	for pass := 0; pass < 2; pass++ {
		out = boxBlur(out, w, h)
	}
	return out
}

// boxBlur applies one separable 3x1 + 1x3 box blur pass with clamped
// edges.
func boxBlur(grid []float64, w, h int) []float64 {
	tmp := make([]float64, len(grid))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, x1 := maxInt(x-1, 0), minInt(x+1, w-1)
			tmp[y*w+x] = (grid[y*w+x0] + grid[y*w+x] + grid[y*w+x1]) / 3
		}
	}
	out := make([]float64, len(grid))
	for y := 0; y < h; y++ {
		y0, y1 := maxInt(y-1, 0), minInt(y+1, h-1)
		for x := 0; x < w; x++ {
			out[y*w+x] = (tmp[y0*w+x] + tmp[y*w+x] + tmp[y1*w+x]) / 3
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
