// Package colorutil provides shared color utilities for phasor rendering.
package colorutil

import (
	"crypto/sha1"
	"image/color"
	"math"
)

// Common overlay colors used throughout the application.
var (
	Black   = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Cyan    = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	Magenta = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	Green   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Yellow  = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	Gray    = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// HSVToRGB converts HSV (H 0-360, S 0-1, V 0-1) to 8-bit RGB.
func HSVToRGB(h, s, v float64) (r, g, b uint8) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}

	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	return uint8((rf + m) * 255), uint8((gf + m) * 255), uint8((bf + m) * 255)
}

// HashColor returns a deterministic, visually distinct color for a name.
// The same name always maps to the same color, so dataset colors remain
// stable across sessions.
func HashColor(name string) color.RGBA {
	sum := sha1.Sum([]byte(name))
	h := uint32(sum[0])<<24 | uint32(sum[1])<<16 | uint32(sum[2])<<8 | uint32(sum[3])

	hue := float64(h%360)
	r, g, b := HSVToRGB(hue, 0.65, 0.95)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// DensityColor maps a normalized density value in [0, 1] onto a dark-blue
// to yellow ramp used for phasor density plots. Zero density returns the
// plot background color.
func DensityColor(t float64) color.RGBA {
	if t <= 0 || math.IsNaN(t) {
		return color.RGBA{R: 8, G: 8, B: 24, A: 255}
	}
	if t > 1 {
		t = 1
	}

	// Piecewise ramp: dark blue -> cyan -> green -> yellow.
	var r, g, b float64
	switch {
	case t < 0.33:
		u := t / 0.33
		r, g, b = 0, u, 0.5+0.5*u
	case t < 0.66:
		u := (t - 0.33) / 0.33
		r, g, b = 0, 1, 1-u
	default:
		u := (t - 0.66) / 0.34
		r, g, b = u, 1, 0
	}

	return color.RGBA{
		R: uint8(math.Round(r * 255)),
		G: uint8(math.Round(g * 255)),
		B: uint8(math.Round(b * 255)),
		A: 255,
	}
}

// Dim returns the color with its brightness scaled by factor (0-1).
func Dim(c color.RGBA, factor float64) color.RGBA {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}
