package capture

import (
	"math"

	"plan-takeoff/pkg/geometry"
)

// Snap constrains a proposed vertex to the horizontal or vertical axis
// through the previous vertex, whichever is closer. Snapping happens in
// pixel space so the constraint matches what the user sees at the current
// rotation.
func Snap(last, proposed geometry.Point2D) geometry.Point2D {
	dx := math.Abs(proposed.X - last.X)
	dy := math.Abs(proposed.Y - last.Y)
	if dx >= dy {
		return geometry.Point2D{X: proposed.X, Y: last.Y}
	}
	return geometry.Point2D{X: last.X, Y: proposed.Y}
}
