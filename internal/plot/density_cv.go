package plot

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// smoothGridCV gaussian-blurs a density grid through OpenCV. The kernel
// size follows the usual 3-sigma support rule, rounded up to odd.
func smoothGridCV(grid []float64, w, h int, sigma float64) ([]float64, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("sigma must be positive, got %g", sigma)
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	defer mat.Close()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mat.SetFloatAt(y, x, float32(grid[y*w+x]))
		}
	}

	k := int(sigma*3)*2 + 1
	if k < 3 {
		k = 3
	}

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.GaussianBlur(mat, &dst, image.Pt(k, k), sigma, sigma, gocv.BorderReplicate)

	out := make([]float64, len(grid))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = float64(dst.GetFloatAt(y, x))
		}
	}
	return out, nil
}
