// Package markup holds the measurement and annotation data model, the
// spatial index with selection, and cutout accounting.
package markup

import (
	"fmt"

	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/page"
)

// Measurement is a committed takeoff quantity on one page, owned by exactly
// one condition. Geometry is stored as base-frame normalized points; values
// are computed once at capture time in base-frame pixel space.
type Measurement struct {
	ID     string           `json:"id"`
	Type   condition.Type   `json:"type"`
	Points []page.NormPoint `json:"points"`

	Value float64 `json:"value"` // gross calculated value
	Unit  string  `json:"unit"`

	// PerimeterValue is attached to area measurements when the condition
	// requests it.
	PerimeterValue float64 `json:"perimeter_value,omitempty"`

	// AreaValue is attached to linear measurements when the condition
	// carries a height (length x height).
	AreaValue float64 `json:"area_value,omitempty"`

	Cutouts  []Cutout `json:"cutouts,omitempty"`
	NetValue float64  `json:"net_value,omitempty"`

	ConditionID string `json:"condition_id"`
	Page        int    `json:"page"`
}

// Net returns the net value after cutouts, or the gross value if none exist.
func (m *Measurement) Net() float64 {
	if len(m.Cutouts) == 0 {
		return m.Value
	}
	return m.NetValue
}

// Cutout is an interior hole subtracted from an area or volume measurement.
// It never exists outside its parent.
type Cutout struct {
	ID     string           `json:"id"`
	Points []page.NormPoint `json:"points"`
	Value  float64          `json:"value"`
}

// AnnotationType enumerates the drawable annotation shapes.
type AnnotationType string

const (
	AnnotationText      AnnotationType = "text"
	AnnotationArrow     AnnotationType = "arrow"
	AnnotationRectangle AnnotationType = "rectangle"
	AnnotationCircle    AnnotationType = "circle"
	AnnotationHighlight AnnotationType = "highlight"
)

// Annotation is a non-measuring markup on a page. Arrows, rectangles,
// circles and highlights use two points (ends / opposite corners); text
// uses a single anchor point.
type Annotation struct {
	ID     string           `json:"id"`
	Type   AnnotationType   `json:"type"`
	Points []page.NormPoint `json:"points"`
	Color  string           `json:"color"`
	Text   string           `json:"text,omitempty"`
	Page   int              `json:"page"`
}

// GeometryError reports degenerate input geometry: the gesture is rejected
// and the capture machine stays in its current state for a retry.
type GeometryError struct {
	Reason string
}

func (e *GeometryError) Error() string {
	return "invalid geometry: " + e.Reason
}

// Dedupe removes consecutive duplicate points (within a small normalized
// tolerance), which arise from double-click completion re-reporting the
// last vertex.
func Dedupe(points []page.NormPoint) []page.NormPoint {
	const tol = 1e-9
	out := points[:0:0]
	for _, p := range points {
		if n := len(out); n > 0 {
			last := out[n-1]
			dx, dy := p.X-last.X, p.Y-last.Y
			if dx*dx+dy*dy < tol*tol {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// ValidatePolygon dedupes and checks that points form a usable polygon.
func ValidatePolygon(points []page.NormPoint) ([]page.NormPoint, error) {
	pts := Dedupe(points)
	// A closing click on the first vertex is allowed; drop it.
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	if len(pts) < 3 {
		return nil, &GeometryError{Reason: fmt.Sprintf("polygon needs at least 3 distinct points, got %d", len(pts))}
	}
	return pts, nil
}
