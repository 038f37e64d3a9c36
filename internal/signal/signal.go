// Package signal defines the in-memory model for time-resolved FLIM data.
//
// A Signal holds per-pixel photon counting histograms: for every pixel of a
// Height x Width image there are Bins counts, one per arrival-time bin
// within the laser period. Storage is H-major so a pixel's decay curve is
// strided, while a single time plane is contiguous.
package signal

import (
	"fmt"
)

// Signal is a time-resolved photon count stack with acquisition metadata.
type Signal struct {
	Counts []float64 // len = Bins*Height*Width, index (h*Height+y)*Width+x
	Bins   int       // number of arrival-time bins (H axis)
	Height int       // image rows (Y axis)
	Width  int       // image columns (X axis)

	FrequencyMHz float64 // laser repetition frequency, 0 if unknown
	BinWidthNS   float64 // arrival-time bin width, 0 if unknown
	Channel      int     // detector channel the counts came from
	Path         string  // source file, empty for synthetic signals
}

// New allocates a zeroed signal with the given dimensions.
func New(bins, height, width int) (*Signal, error) {
	if bins < 1 || height < 1 || width < 1 {
		return nil, fmt.Errorf("invalid signal dimensions %dx%dx%d", bins, height, width)
	}
	return &Signal{
		Counts: make([]float64, bins*height*width),
		Bins:   bins,
		Height: height,
		Width:  width,
	}, nil
}

// Index returns the flat index of (bin, y, x).
func (s *Signal) Index(bin, y, x int) int {
	return (bin*s.Height+y)*s.Width + x
}

// At returns the count at (bin, y, x).
func (s *Signal) At(bin, y, x int) float64 {
	return s.Counts[s.Index(bin, y, x)]
}

// Add increments the count at (bin, y, x).
func (s *Signal) Add(bin, y, x int, n float64) {
	s.Counts[s.Index(bin, y, x)] += n
}

// Decay copies the time-resolved histogram of one pixel into dst,
// allocating when dst is too small. Returns the filled slice.
func (s *Signal) Decay(y, x int, dst []float64) []float64 {
	if cap(dst) < s.Bins {
		dst = make([]float64, s.Bins)
	}
	dst = dst[:s.Bins]
	for h := 0; h < s.Bins; h++ {
		dst[h] = s.Counts[(h*s.Height+y)*s.Width+x]
	}
	return dst
}

// PhotonSum sums over the time axis, yielding per-pixel photon counts.
func (s *Signal) PhotonSum() [][]float64 {
	sum := NewPlane(s.Height, s.Width)
	for h := 0; h < s.Bins; h++ {
		base := h * s.Height * s.Width
		for y := 0; y < s.Height; y++ {
			row := sum[y]
			off := base + y*s.Width
			for x := 0; x < s.Width; x++ {
				row[x] += s.Counts[off+x]
			}
		}
	}
	return sum
}

// TotalCount returns the sum of all counts in the signal.
func (s *Signal) TotalCount() float64 {
	var total float64
	for _, c := range s.Counts {
		total += c
	}
	return total
}

// Validate checks internal consistency.
func (s *Signal) Validate() error {
	if s.Bins < 1 || s.Height < 1 || s.Width < 1 {
		return fmt.Errorf("invalid signal dimensions %dx%dx%d", s.Bins, s.Height, s.Width)
	}
	if want := s.Bins * s.Height * s.Width; len(s.Counts) != want {
		return fmt.Errorf("count buffer has %d entries, want %d", len(s.Counts), want)
	}
	return nil
}

// NewPlane allocates a zeroed height x width plane.
func NewPlane(height, width int) [][]float64 {
	backing := make([]float64, height*width)
	plane := make([][]float64, height)
	for y := range plane {
		plane[y] = backing[y*width : (y+1)*width : (y+1)*width]
	}
	return plane
}

// ClonePlane returns a deep copy of a plane.
func ClonePlane(plane [][]float64) [][]float64 {
	if len(plane) == 0 {
		return nil
	}
	out := NewPlane(len(plane), len(plane[0]))
	for y := range plane {
		copy(out[y], plane[y])
	}
	return out
}

// PlaneDims returns the height and width of a plane, or (0, 0) when empty.
func PlaneDims(plane [][]float64) (height, width int) {
	if len(plane) == 0 {
		return 0, 0
	}
	return len(plane), len(plane[0])
}
