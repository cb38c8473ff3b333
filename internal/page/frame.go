// Package page provides page geometry frames and the coordinate transform
// between screen pixels, normalized page space, and real-world units.
package page

import (
	"plan-takeoff/pkg/geometry"
)

// NormPoint is a point expressed as a 0-1 fraction of the unrotated,
// unit-scale page ("base frame"). All persisted geometry uses this
// representation so that zoom and rotation changes never require touching
// stored data, only re-projecting it.
type NormPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Frame describes the currently rendered page: its pixel dimensions under
// the active zoom and rotation. Frames are derived state, recomputed on
// every zoom or rotation change, and never persisted.
type Frame struct {
	Width    float64 // rendered width in pixels
	Height   float64 // rendered height in pixels
	Scale    float64 // render scale relative to the base page
	Rotation int     // degrees clockwise, one of 0, 90, 180, 270
}

// FrameFor builds the frame for a page of the given base size rendered at
// scale under rotation. For 90/270 the rendered width/height swap.
func FrameFor(base geometry.Size, scale float64, rotation int) Frame {
	if scale <= 0 {
		scale = 1
	}
	w, h := base.Width*scale, base.Height*scale
	if rotation == 90 || rotation == 270 {
		w, h = h, w
	}
	return Frame{Width: w, Height: h, Scale: scale, Rotation: rotation}
}

// BaseSize returns the unrotated, unit-scale page dimensions.
func (f Frame) BaseSize() geometry.Size {
	scale := f.Scale
	if scale <= 0 {
		scale = 1
	}
	w, h := f.Width/scale, f.Height/scale
	if f.Rotation == 90 || f.Rotation == 270 {
		w, h = h, w
	}
	return geometry.Size{Width: w, Height: h}
}

// ToNormalized converts a pixel point in the current frame to a base-frame
// normalized point. Rotations that are not a multiple of 90 degrees are not
// supported and fall back to the identity mapping.
func (f Frame) ToNormalized(p geometry.Point2D) NormPoint {
	if f.Width == 0 || f.Height == 0 {
		return NormPoint{}
	}
	fx := p.X / f.Width
	fy := p.Y / f.Height

	switch f.Rotation {
	case 90:
		return NormPoint{X: 1 - fy, Y: fx}
	case 180:
		return NormPoint{X: 1 - fx, Y: 1 - fy}
	case 270:
		return NormPoint{X: fy, Y: 1 - fx}
	default:
		return NormPoint{X: fx, Y: fy}
	}
}

// ToPixel projects a stored base-frame normalized point back into the
// current frame's pixel space. It is the algebraic inverse of ToNormalized
// for each supported rotation.
func (f Frame) ToPixel(n NormPoint) geometry.Point2D {
	var fx, fy float64
	switch f.Rotation {
	case 90:
		fx = n.Y
		fy = 1 - n.X
	case 180:
		fx = 1 - n.X
		fy = 1 - n.Y
	case 270:
		fx = 1 - n.Y
		fy = n.X
	default:
		fx = n.X
		fy = n.Y
	}
	return geometry.Point2D{X: fx * f.Width, Y: fy * f.Height}
}

// BasePixel maps a normalized point into base-frame pixel coordinates.
// All real-world value computation happens in this space so that results
// are independent of the current zoom and rotation.
func (n NormPoint) BasePixel(base geometry.Size) geometry.Point2D {
	return geometry.Point2D{X: n.X * base.Width, Y: n.Y * base.Height}
}

// BasePixels maps a slice of normalized points into base-frame pixels.
func BasePixels(points []NormPoint, base geometry.Size) []geometry.Point2D {
	out := make([]geometry.Point2D, len(points))
	for i, n := range points {
		out[i] = n.BasePixel(base)
	}
	return out
}
