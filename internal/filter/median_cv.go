package filter

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"

	"phasor-studio/internal/signal"
)

// MedianCV applies OpenCV's median blur to a plane. OpenCV only supports
// float32 input for kernel sizes 3 and 5 and has no notion of NaN, so this
// path is restricted to small kernels on fully finite planes; callers fall
// back to the pure Go Median otherwise.
func MedianCV(plane [][]float64, kernel, repeat int) ([][]float64, error) {
	if err := ValidateMedianParams(kernel, repeat); err != nil {
		return nil, err
	}
	if kernel > 5 {
		return nil, fmt.Errorf("gocv median supports kernel sizes 3 and 5, got %d", kernel)
	}
	h, w := signal.PlaneDims(plane)
	if h == 0 {
		return nil, fmt.Errorf("empty plane")
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if math.IsNaN(plane[y][x]) {
				return nil, fmt.Errorf("plane contains NaN at (%d, %d)", y, x)
			}
		}
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	defer mat.Close()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mat.SetFloatAt(y, x, float32(plane[y][x]))
		}
	}

	dst := gocv.NewMat()
	defer dst.Close()
	for rep := 0; rep < repeat; rep++ {
		gocv.MedianBlur(mat, &dst, kernel)
		dst.CopyTo(&mat)
	}

	out := signal.NewPlane(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y][x] = float64(mat.GetFloatAt(y, x))
		}
	}
	return out, nil
}
