// Package filter implements the pixel filtering stage of the phasor
// pipeline: spatial median filtering of coordinate planes followed by
// photon-count thresholding. Filtering always runs on working copies so
// the unfiltered data stays available.
package filter

import (
	"fmt"
	"math"
	"sort"

	"phasor-studio/internal/signal"
)

// Photon range mask labels.
const (
	LabelLow  uint8 = 0 // below the minimum photon count
	LabelKept uint8 = 1 // inside the accepted range
	LabelHigh uint8 = 2 // above the maximum photon count
)

// ValidateMedianParams checks kernel size and repetition count.
func ValidateMedianParams(kernel, repeat int) error {
	if kernel < 3 || kernel%2 == 0 {
		return fmt.Errorf("median kernel size must be odd and >= 3, got %d", kernel)
	}
	if repeat < 1 {
		return fmt.Errorf("median repetition must be >= 1, got %d", repeat)
	}
	return nil
}

// Median applies a NaN-aware spatial median filter to a plane and returns
// the filtered copy. Windows are clamped at the image edge (nearest
// padding). NaN values are excluded from each window; a NaN center stays
// NaN so thresholded pixels never regain values.
func Median(plane [][]float64, kernel, repeat int) ([][]float64, error) {
	if err := ValidateMedianParams(kernel, repeat); err != nil {
		return nil, err
	}
	h, w := signal.PlaneDims(plane)
	if h == 0 {
		return nil, fmt.Errorf("empty plane")
	}

	src := signal.ClonePlane(plane)
	dst := signal.NewPlane(h, w)
	window := make([]float64, 0, kernel*kernel)
	half := kernel / 2

	for rep := 0; rep < repeat; rep++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if math.IsNaN(src[y][x]) {
					dst[y][x] = math.NaN()
					continue
				}

				window = window[:0]
				for dy := -half; dy <= half; dy++ {
					yy := clamp(y+dy, 0, h-1)
					for dx := -half; dx <= half; dx++ {
						xx := clamp(x+dx, 0, w-1)
						v := src[yy][xx]
						if !math.IsNaN(v) {
							window = append(window, v)
						}
					}
				}
				dst[y][x] = median(window)
			}
		}
		src, dst = dst, src
	}
	// The last iteration left its result in src after the swap.
	return src, nil
}

// median returns the median of a non-empty slice, averaging the two middle
// values for even counts. The slice is sorted in place.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

// PhotonRangeMask labels each pixel of a photon-sum plane: LabelLow below
// minPhotons, LabelHigh above maxPhotons, LabelKept otherwise. A negative
// maxPhotons means no upper bound.
func PhotonRangeMask(sum [][]float64, minPhotons, maxPhotons float64) [][]uint8 {
	h, w := signal.PlaneDims(sum)
	labels := make([][]uint8, h)
	for y := 0; y < h; y++ {
		labels[y] = make([]uint8, w)
		for x := 0; x < w; x++ {
			v := sum[y][x]
			switch {
			case v < minPhotons:
				labels[y][x] = LabelLow
			case maxPhotons >= 0 && v > maxPhotons:
				labels[y][x] = LabelHigh
			default:
				labels[y][x] = LabelKept
			}
		}
	}
	return labels
}

// ApplyMask sets every coordinate whose label is not LabelKept to NaN,
// in place. Plane shape is preserved so pixel positions remain valid.
func ApplyMask(g, s [][]float64, labels [][]uint8) {
	for y := range labels {
		for x := range labels[y] {
			if labels[y][x] != LabelKept {
				g[y][x] = math.NaN()
				s[y][x] = math.NaN()
			}
		}
	}
}

// KeptCount returns the number of pixels labeled LabelKept.
func KeptCount(labels [][]uint8) int {
	var n int
	for y := range labels {
		for x := range labels[y] {
			if labels[y][x] == LabelKept {
				n++
			}
		}
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
