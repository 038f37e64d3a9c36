// Package plot renders phasor plots to offscreen rasters. It draws the
// universal semicircle, axes, and either a density-colored 2D histogram
// of all coordinates or a per-dataset scatter, and encodes the result as
// PNG. There is no interactive surface here; hosts embed the raster.
package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"phasor-studio/internal/cursor"
	"phasor-studio/internal/phasor"
	"phasor-studio/pkg/colorutil"
	"phasor-studio/pkg/geometry"
)

// Mode selects how coordinates are rendered.
type Mode int

const (
	// ModeDensity renders all series into one density-colored histogram.
	ModeDensity Mode = iota
	// ModeScatter renders each series as colored points.
	ModeScatter
)

// Options control the plot raster.
type Options struct {
	Width  int
	Height int

	GMin, GMax float64
	SMin, SMax float64

	Mode         Mode
	MaxPoints    int     // scatter point cap per series, 0 = unlimited
	Smooth       bool    // smooth the density grid
	SmoothSigma  float64 // gaussian sigma in grid cells for the gocv path
	Semicircle   bool
	FrequencyMHz float64 // enables lifetime tick labels on the semicircle
	Title        string
}

// DefaultOptions returns the standard phasor plot framing.
func DefaultOptions() Options {
	return Options{
		Width:      800,
		Height:     640,
		GMin:       -0.05,
		GMax:       1.05,
		SMin:       -0.05,
		SMax:       0.70,
		Mode:       ModeDensity,
		Smooth:     true,
		Semicircle: true,
	}
}

// Series is one dataset's coordinates plus its display attributes.
type Series struct {
	Name  string
	G, S  [][]float64
	Color color.RGBA
}

// Plot margins in pixels.
const (
	marginLeft   = 56
	marginRight  = 20
	marginTop    = 28
	marginBottom = 44
)

// Render draws the phasor plot and returns the raster.
func Render(opts Options, series ...Series) (*image.RGBA, error) {
	if opts.Width < marginLeft+marginRight+32 || opts.Height < marginTop+marginBottom+32 {
		return nil, fmt.Errorf("plot size %dx%d too small", opts.Width, opts.Height)
	}
	if opts.GMax <= opts.GMin || opts.SMax <= opts.SMin {
		return nil, fmt.Errorf("invalid plot bounds G[%g, %g] S[%g, %g]",
			opts.GMin, opts.GMax, opts.SMin, opts.SMax)
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 8, G: 8, B: 24, A: 255}), image.Point{}, draw.Src)

	area := plotArea(opts)

	switch opts.Mode {
	case ModeDensity:
		renderDensity(img, area, opts, series)
	case ModeScatter:
		renderScatter(img, area, opts, series)
	default:
		return nil, fmt.Errorf("unknown plot mode %d", opts.Mode)
	}

	if opts.Semicircle {
		drawSemicircle(img, area, opts)
	}
	drawAxes(img, area, opts)

	if opts.Title != "" {
		drawLabel(img, area.Min.X, marginTop-10, opts.Title, colorutil.White)
	}
	return img, nil
}

// EncodePNG writes the raster as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// DrawCursors overlays circular cursors on a rendered plot.
func DrawCursors(img *image.RGBA, opts Options, cursors []cursor.Cursor) {
	area := plotArea(opts)
	view := geometry.NewRect(opts.GMin, opts.SMin, opts.GMax-opts.GMin, opts.SMax-opts.SMin)
	for _, c := range cursors {
		// Cursors centered outside the plotted range are not drawn.
		if !view.Contains(c.Circle.Center) {
			continue
		}
		cx, cy := toPixel(area, opts, c.Circle.Center.X, c.Circle.Center.Y)
		// Pixel radius from the G scale; phasor space is near-isotropic.
		rx := c.Circle.Radius / (opts.GMax - opts.GMin) * float64(area.Dx())
		drawCircleOutline(img, cx, cy, int(math.Round(rx)), c.Color)
		drawLabel(img, cx+int(rx)+4, cy, c.Name, c.Color)
	}
}

func plotArea(opts Options) image.Rectangle {
	return image.Rect(marginLeft, marginTop, opts.Width-marginRight, opts.Height-marginBottom)
}

// toPixel maps a phasor coordinate to raster coordinates (Y down).
func toPixel(area image.Rectangle, opts Options, g, s float64) (int, int) {
	fx := (g - opts.GMin) / (opts.GMax - opts.GMin)
	fy := (s - opts.SMin) / (opts.SMax - opts.SMin)
	x := area.Min.X + int(math.Round(fx*float64(area.Dx()-1)))
	y := area.Max.Y - 1 - int(math.Round(fy*float64(area.Dy()-1)))
	return x, y
}

// renderScatter draws each series' finite coordinates as points,
// subsampling with a fixed stride above the point cap so repeated renders
// show the same pixels.
func renderScatter(img *image.RGBA, area image.Rectangle, opts Options, series []Series) {
	for _, ser := range series {
		pts := collectPoints(ser)
		stride := 1
		if opts.MaxPoints > 0 && len(pts) > opts.MaxPoints {
			stride = (len(pts) + opts.MaxPoints - 1) / opts.MaxPoints
		}
		for i := 0; i < len(pts); i += stride {
			x, y := toPixel(area, opts, pts[i][0], pts[i][1])
			setPointInArea(img, area, x, y, ser.Color)
		}
	}
}

func collectPoints(ser Series) [][2]float64 {
	var pts [][2]float64
	for y := range ser.G {
		for x := range ser.G[y] {
			gv, sv := ser.G[y][x], ser.S[y][x]
			if math.IsNaN(gv) || math.IsNaN(sv) {
				continue
			}
			pts = append(pts, [2]float64{gv, sv})
		}
	}
	return pts
}

// setPointInArea draws a point with a 1-pixel halo, clipped to the plot
// area.
func setPointInArea(img *image.RGBA, area image.Rectangle, x, y int, c color.RGBA) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			px, py := x+dx, y+dy
			if px < area.Min.X || px >= area.Max.X || py < area.Min.Y || py >= area.Max.Y {
				continue
			}
			if dx == 0 && dy == 0 {
				img.SetRGBA(px, py, c)
			} else {
				img.SetRGBA(px, py, blend(img.RGBAAt(px, py), colorutil.Dim(c, 0.5)))
			}
		}
	}
}

func blend(under, over color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8((int(under.R) + int(over.R)) / 2),
		G: uint8((int(under.G) + int(over.G)) / 2),
		B: uint8((int(under.B) + int(over.B)) / 2),
		A: 255,
	}
}

// drawSemicircle draws the universal semicircle, with lifetime ticks when
// the laser frequency is known.
func drawSemicircle(img *image.RGBA, area image.Rectangle, opts Options) {
	gray := colorutil.Gray
	prevX, prevY := toPixel(area, opts, 1, 0)
	const steps = 256
	for i := 1; i <= steps; i++ {
		t := math.Pi * float64(i) / steps
		g := 0.5 + 0.5*math.Cos(t)
		s := 0.5 * math.Sin(t)
		x, y := toPixel(area, opts, g, s)
		drawLineClipped(img, area, prevX, prevY, x, y, gray)
		prevX, prevY = x, y
	}

	if opts.FrequencyMHz <= 0 {
		return
	}
	for _, tau := range []float64{0.5, 1, 2, 3, 4, 8} {
		g, s, err := phasor.FromLifetime(opts.FrequencyMHz, tau)
		if err != nil {
			return
		}
		x, y := toPixel(area, opts, g, s)
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				setPixelClipped(img, area, x+dx, y+dy, colorutil.White)
			}
		}
		drawLabel(img, x+5, y-5, fmt.Sprintf("%gns", tau), colorutil.Gray)
	}
}

// drawAxes draws the plot frame, tick marks, and axis labels.
func drawAxes(img *image.RGBA, area image.Rectangle, opts Options) {
	frame := color.RGBA{R: 200, G: 200, B: 200, A: 255}
	for x := area.Min.X; x < area.Max.X; x++ {
		img.SetRGBA(x, area.Min.Y, frame)
		img.SetRGBA(x, area.Max.Y-1, frame)
	}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		img.SetRGBA(area.Min.X, y, frame)
		img.SetRGBA(area.Max.X-1, y, frame)
	}

	for _, tick := range ticks(opts.GMin, opts.GMax) {
		x, _ := toPixel(area, opts, tick, opts.SMin)
		for dy := 0; dy < 5; dy++ {
			setPixel(img, x, area.Max.Y-1+dy, frame)
		}
		drawLabel(img, x-10, area.Max.Y+18, fmt.Sprintf("%.1f", tick), frame)
	}
	for _, tick := range ticks(opts.SMin, opts.SMax) {
		_, y := toPixel(area, opts, opts.GMin, tick)
		for dx := 0; dx < 5; dx++ {
			setPixel(img, area.Min.X-dx, y, frame)
		}
		drawLabel(img, area.Min.X-40, y+4, fmt.Sprintf("%.1f", tick), frame)
	}

	drawLabel(img, area.Max.X-12, area.Max.Y+32, "G", frame)
	drawLabel(img, marginLeft-40, area.Min.Y+10, "S", frame)
}

// ticks returns round 0.2-spaced tick positions covering [lo, hi].
func ticks(lo, hi float64) []float64 {
	var out []float64
	start := math.Ceil(lo/0.2) * 0.2
	for v := start; v <= hi+1e-9; v += 0.2 {
		// Snap away float drift so labels print as 0.2, 0.4, ...
		out = append(out, math.Round(v*10)/10)
	}
	return out
}

func drawLineClipped(img *image.RGBA, area image.Rectangle, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		setPixelClipped(img, area, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawCircleOutline(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	if r < 1 {
		return
	}
	steps := 8 * r
	for i := 0; i < steps; i++ {
		t := 2 * math.Pi * float64(i) / float64(steps)
		setPixel(img, cx+int(math.Round(float64(r)*math.Cos(t))),
			cy+int(math.Round(float64(r)*math.Sin(t))), c)
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func setPixelClipped(img *image.RGBA, area image.Rectangle, x, y int, c color.RGBA) {
	if x >= area.Min.X && x < area.Max.X && y >= area.Min.Y && y < area.Max.Y {
		img.SetRGBA(x, y, c)
	}
}

// drawLabel renders small text with the fixed 7x13 face.
func drawLabel(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
