// Package flimio reads vendor FLIM acquisition files into signals and
// writes derived image products. Supported inputs are PicoQuant PTU files
// (T3 imaging mode) and multi-page TIFF stacks with one page per
// arrival-time bin.
package flimio

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"phasor-studio/internal/signal"
)

// Load reads a FLIM file, selecting the importer by extension. channel
// selects the detector channel for formats that record several (PTU);
// TIFF stacks are single-channel exports, so the channel is recorded but
// not filtered on.
func Load(path string, channel int) (*signal.Signal, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ptu":
		return LoadPTU(path, channel)
	case ".tif", ".tiff":
		sig, err := LoadTIFF(path)
		if err != nil {
			return nil, err
		}
		sig.Channel = channel
		return sig, nil
	default:
		return nil, fmt.Errorf("unsupported file extension %q (supported: %s)",
			ext, strings.Join(SupportedFormats(), ", "))
	}
}

// SupportedFormats returns the list of supported input file extensions.
func SupportedFormats() []string {
	return []string{".ptu", ".tif", ".tiff"}
}

// IsSupportedFormat checks if the given path has a supported extension.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// WriteIntensityTIFF writes a per-pixel intensity plane (typically a
// photon sum) as a 16-bit grayscale TIFF, scaling values to the full
// gray16 range. NaN pixels map to zero.
func WriteIntensityTIFF(path string, plane [][]float64) error {
	h, w := signal.PlaneDims(plane)
	if h == 0 || w == 0 {
		return fmt.Errorf("empty intensity plane")
	}

	var maxV float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if v := plane[y][x]; !math.IsNaN(v) && v > maxV {
				maxV = v
			}
		}
	}

	img := image.NewGray16(image.Rect(0, 0, w, h))
	if maxV > 0 {
		scale := 65535 / maxV
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := plane[y][x]
				if math.IsNaN(v) || v < 0 {
					continue
				}
				img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(v * scale))})
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
