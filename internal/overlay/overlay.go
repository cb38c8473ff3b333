// Package overlay builds the declarative draw list for a page: committed
// markups, the in-progress gesture preview, and selection highlights. The
// canvas rasterizes these primitives without knowing anything about
// measurements.
package overlay

import (
	"image/color"

	"plan-takeoff/pkg/geometry"
)

// Stroke styling shared by the outline primitives.
type Stroke struct {
	Color  color.RGBA
	Width  int
	Dashed bool
}

// Polyline is an open multi-segment line (linear measurements, previews).
type Polyline struct {
	ID     string
	Points []geometry.Point2D
	Stroke Stroke
}

// Polygon is a closed shape with optional interior holes. The first ring is
// the outer boundary; remaining rings are cutouts, filled even-odd.
type Polygon struct {
	ID     string
	Rings  [][]geometry.Point2D
	Stroke Stroke
	Fill   color.RGBA // zero alpha = outline only
}

// CircleMarker is a filled dot (count measurements, vertex handles).
type CircleMarker struct {
	ID     string
	Center geometry.Point2D
	Radius int
	Stroke Stroke
	Fill   color.RGBA
}

// RectShape is an axis-aligned rectangle (rectangle/highlight annotations).
type RectShape struct {
	ID     string
	Bounds geometry.Rect
	Stroke Stroke
	Fill   color.RGBA
}

// Arrow is a line with a head at its second endpoint.
type Arrow struct {
	ID     string
	From   geometry.Point2D
	To     geometry.Point2D
	Stroke Stroke
}

// Label is text anchored at a point, drawn over everything else.
type Label struct {
	ID     string
	At     geometry.Point2D
	Text   string
	Color  color.RGBA
	Halo   bool // draw a contrasting backing so text stays readable
}

// PageOverlay is the complete draw list for one page at one frame. It is
// rebuilt from scratch on every relevant change; primitives carry the ids of
// the markups that produced them so the canvas stays dumb.
type PageOverlay struct {
	Page int

	Polygons  []Polygon
	Polylines []Polyline
	Markers   []CircleMarker
	Rects     []RectShape
	Arrows    []Arrow
	Labels    []Label
}
