// Package colorutil provides shared color utilities for the takeoff application.
package colorutil

import (
	"fmt"
	"image/color"
)

// Common overlay colors used throughout the application.
var (
	Black   = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Blue    = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	Green   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Red     = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Yellow  = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	Gray    = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

// ParseHex parses a "#rrggbb" or "#rrggbbaa" color string.
// Returns Gray if the string is not a valid hex color.
func ParseHex(s string) color.RGBA {
	var r, g, b, a uint8
	a = 255
	switch len(s) {
	case 7:
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
			return Gray
		}
	case 9:
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x%02x", &r, &g, &b, &a); err != nil {
			return Gray
		}
	default:
		return Gray
	}
	return color.RGBA{R: r, G: g, B: b, A: a}
}

// FormatHex formats a color as a "#rrggbb" string, dropping alpha.
func FormatHex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// WithAlpha returns the color with the alpha channel replaced.
func WithAlpha(c color.RGBA, a uint8) color.RGBA {
	c.A = a
	return c
}
