// Package cursor maps circular regions of phasor space back onto image
// pixels. Selecting a cursor around a cluster in the phasor plot labels
// every pixel whose coordinate falls inside the circle, which is how
// phasor analysis segments an image by lifetime without fitting.
package cursor

import (
	"fmt"
	"image/color"
	"math"

	"phasor-studio/internal/signal"
	"phasor-studio/pkg/colorutil"
	"phasor-studio/pkg/geometry"
)

// Cursor is a named circular region in (G, S) space.
type Cursor struct {
	Name   string          `json:"name"`
	Circle geometry.Circle `json:"circle"`
	Color  color.RGBA      `json:"-"`
}

// New creates a cursor with a deterministic color derived from its name.
func New(name string, g, s, radius float64) Cursor {
	return Cursor{
		Name:   name,
		Circle: geometry.NewCircle(g, s, radius),
		Color:  colorutil.HashColor(name),
	}
}

// Labels returns a label mask over the image: pixel (y, x) gets i+1 when
// its phasor coordinate lies inside cursors[i]. Later cursors overwrite
// earlier ones, 0 is background. NaN coordinates are never labeled.
func Labels(g, s [][]float64, cursors []Cursor) ([][]uint8, error) {
	if len(cursors) > 255 {
		return nil, fmt.Errorf("too many cursors: %d (max 255)", len(cursors))
	}
	h, w := signal.PlaneDims(g)
	if sh, sw := signal.PlaneDims(s); sh != h || sw != w {
		return nil, fmt.Errorf("plane size mismatch: %dx%d vs %dx%d", h, w, sh, sw)
	}

	labels := make([][]uint8, h)
	for y := 0; y < h; y++ {
		labels[y] = make([]uint8, w)
		for x := 0; x < w; x++ {
			gv, sv := g[y][x], s[y][x]
			if math.IsNaN(gv) || math.IsNaN(sv) {
				continue
			}
			p := geometry.Point2D{X: gv, Y: sv}
			for i, c := range cursors {
				if c.Circle.Contains(p) {
					labels[y][x] = uint8(i + 1)
				}
			}
		}
	}
	return labels, nil
}

// Counts returns how many pixels each cursor captured, indexed like the
// cursors slice.
func Counts(labels [][]uint8, numCursors int) []int {
	counts := make([]int, numCursors)
	for y := range labels {
		for x := range labels[y] {
			if l := labels[y][x]; l > 0 && int(l) <= numCursors {
				counts[l-1]++
			}
		}
	}
	return counts
}
