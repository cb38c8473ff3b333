package markup

import (
	"fmt"
	"sync"

	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/page"
	"plan-takeoff/pkg/geometry"
)

// Marker radius in pixels for count markers; hit tolerance extends it.
const countMarkerRadius = 6.0

// Index holds all markups for a document, keyed by id, with exclusive
// selection and tolerant spatial hit-testing.
type Index struct {
	mu sync.RWMutex

	measurements map[string]*Measurement
	annotations  map[string]*Annotation

	// Insertion order per kind, for stable iteration and z-order.
	measurementOrder []string
	annotationOrder  []string

	selected string // at most one selected markup
	nextID   int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		measurements: make(map[string]*Measurement),
		annotations:  make(map[string]*Annotation),
	}
}

func (x *Index) genID(prefix string) string {
	x.nextID++
	return fmt.Sprintf("%s-%d", prefix, x.nextID)
}

// AddMeasurement inserts a measurement, assigning an id if empty.
func (x *Index) AddMeasurement(m *Measurement) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if m.ID == "" {
		m.ID = x.genID("m")
	}
	if _, exists := x.measurements[m.ID]; !exists {
		x.measurementOrder = append(x.measurementOrder, m.ID)
	}
	x.measurements[m.ID] = m
}

// AddAnnotation inserts an annotation, assigning an id if empty.
func (x *Index) AddAnnotation(a *Annotation) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if a.ID == "" {
		a.ID = x.genID("a")
	}
	if _, exists := x.annotations[a.ID]; !exists {
		x.annotationOrder = append(x.annotationOrder, a.ID)
	}
	x.annotations[a.ID] = a
}

// Measurement returns the stored measurement, or nil.
func (x *Index) Measurement(id string) *Measurement {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.measurements[id]
}

// Annotation returns the stored annotation, or nil.
func (x *Index) Annotation(id string) *Annotation {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.annotations[id]
}

// MeasurementsOnPage returns the page's measurements in insertion order.
func (x *Index) MeasurementsOnPage(pageNum int) []*Measurement {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []*Measurement
	for _, id := range x.measurementOrder {
		if m := x.measurements[id]; m != nil && m.Page == pageNum {
			out = append(out, m)
		}
	}
	return out
}

// AnnotationsOnPage returns the page's annotations in insertion order.
func (x *Index) AnnotationsOnPage(pageNum int) []*Annotation {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []*Annotation
	for _, id := range x.annotationOrder {
		if a := x.annotations[id]; a != nil && a.Page == pageNum {
			out = append(out, a)
		}
	}
	return out
}

// AllMeasurements returns every measurement in insertion order.
func (x *Index) AllMeasurements() []*Measurement {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]*Measurement, 0, len(x.measurementOrder))
	for _, id := range x.measurementOrder {
		if m := x.measurements[id]; m != nil {
			out = append(out, m)
		}
	}
	return out
}

// AllAnnotations returns every annotation in insertion order.
func (x *Index) AllAnnotations() []*Annotation {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]*Annotation, 0, len(x.annotationOrder))
	for _, id := range x.annotationOrder {
		if a := x.annotations[id]; a != nil {
			out = append(out, a)
		}
	}
	return out
}

// TotalsByCondition sums net measurement values per condition id.
func (x *Index) TotalsByCondition() map[string]float64 {
	x.mu.RLock()
	defer x.mu.RUnlock()

	totals := make(map[string]float64)
	for _, id := range x.measurementOrder {
		if m := x.measurements[id]; m != nil {
			if m.Type == condition.Count {
				totals[m.ConditionID] += m.Value
			} else {
				totals[m.ConditionID] += m.Net()
			}
		}
	}
	return totals
}

// Delete removes a measurement (with its cutouts) or an annotation.
// Returns false if the id is unknown. Deletion clears the selection if the
// deleted markup was selected, so the next render pass has no remnants.
func (x *Index) Delete(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.measurements[id]; ok {
		delete(x.measurements, id)
		x.measurementOrder = removeString(x.measurementOrder, id)
		if x.selected == id {
			x.selected = ""
		}
		return true
	}
	if _, ok := x.annotations[id]; ok {
		delete(x.annotations, id)
		x.annotationOrder = removeString(x.annotationOrder, id)
		if x.selected == id {
			x.selected = ""
		}
		return true
	}
	return false
}

// Select makes id the single selected markup. Returns false for unknown ids.
func (x *Index) Select(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	_, isM := x.measurements[id]
	_, isA := x.annotations[id]
	if !isM && !isA {
		return false
	}
	x.selected = id
	return true
}

// ClearSelection deselects any selected markup.
func (x *Index) ClearSelection() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.selected = ""
}

// Selected returns the selected markup id, or "".
func (x *Index) Selected() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.selected
}

// HitTest finds the topmost markup on a page at the given pixel point.
// The tolerance is wider than the visual stroke so thin lines stay easy to
// pick. Returns "" if nothing is hit.
func (x *Index) HitTest(pageNum int, px geometry.Point2D, frame page.Frame, tolerance float64) string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	// Most recently drawn markups sit on top, so test in reverse order.
	for i := len(x.annotationOrder) - 1; i >= 0; i-- {
		a := x.annotations[x.annotationOrder[i]]
		if a == nil || a.Page != pageNum {
			continue
		}
		if hitAnnotation(a, px, frame, tolerance) {
			return a.ID
		}
	}
	for i := len(x.measurementOrder) - 1; i >= 0; i-- {
		m := x.measurements[x.measurementOrder[i]]
		if m == nil || m.Page != pageNum {
			continue
		}
		if hitMeasurement(m, px, frame, tolerance) {
			return m.ID
		}
	}
	return ""
}

func hitMeasurement(m *Measurement, px geometry.Point2D, frame page.Frame, tol float64) bool {
	pts := projectPoints(m.Points, frame)
	switch m.Type {
	case condition.Count:
		return len(pts) > 0 && px.Distance(pts[0]) <= countMarkerRadius+tol
	case condition.Linear:
		return geometry.DistanceToPolyline(px, pts) <= tol
	case condition.Area, condition.Volume:
		return geometry.PointInPolygon(px, pts) ||
			geometry.DistanceToPolygonEdge(px, pts) <= tol
	}
	return false
}

func hitAnnotation(a *Annotation, px geometry.Point2D, frame page.Frame, tol float64) bool {
	pts := projectPoints(a.Points, frame)
	switch a.Type {
	case AnnotationText:
		return len(pts) > 0 && px.Distance(pts[0]) <= 4*tol
	case AnnotationArrow:
		return geometry.DistanceToPolyline(px, pts) <= tol
	case AnnotationRectangle, AnnotationHighlight:
		if len(pts) < 2 {
			return false
		}
		r := geometry.BoundingBox(pts).Inset(-tol)
		return r.Contains(px)
	case AnnotationCircle:
		if len(pts) < 2 {
			return false
		}
		center := pts[0]
		radius := center.Distance(pts[1])
		return px.Distance(center) <= radius+tol
	}
	return false
}

func projectPoints(points []page.NormPoint, frame page.Frame) []geometry.Point2D {
	out := make([]geometry.Point2D, len(points))
	for i, n := range points {
		out[i] = frame.ToPixel(n)
	}
	return out
}

func removeString(slice []string, s string) []string {
	for i, v := range slice {
		if v == s {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}
