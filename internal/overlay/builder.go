package overlay

import (
	"fmt"
	"image/color"

	"plan-takeoff/internal/capture"
	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/markup"
	"plan-takeoff/internal/page"
	"plan-takeoff/pkg/colorutil"
	"plan-takeoff/pkg/geometry"
)

// SelectionColor is the highlight drawn under the selected markup.
var SelectionColor = color.RGBA{R: 255, G: 220, B: 0, A: 255}

const (
	markupStrokeWidth   = 2
	selectionExtraWidth = 3
	countMarkerRadius   = 6
	vertexHandleRadius  = 3
	polygonFillAlpha    = 56
	highlightFillAlpha  = 80
)

// Gesture bundles the transient interactive state rendered on top of the
// committed markups.
type Gesture struct {
	Capture capture.Snapshot

	// Calibration rubber band: first point plus current cursor.
	CalFirst  *page.NormPoint
	CalCursor *page.NormPoint
}

// Builder turns the markup index and the in-progress gesture into a page's
// draw list. Condition colors are resolved live on every build, so a color
// edit repaints existing measurements without touching them.
type Builder struct {
	Conditions condition.Store
	Index      *markup.Index
}

// Build produces the full overlay for one page. The result is complete and
// self-contained: callers replace the previous overlay wholesale.
func (b *Builder) Build(pageNum int, frame page.Frame) *PageOverlay {
	return b.BuildWithGesture(pageNum, frame, Gesture{})
}

// BuildWithGesture builds the page overlay including preview primitives for
// an in-progress capture or calibration gesture.
func (b *Builder) BuildWithGesture(pageNum int, frame page.Frame, g Gesture) *PageOverlay {
	ov := &PageOverlay{Page: pageNum}

	selected := b.Index.Selected()
	for _, m := range b.Index.MeasurementsOnPage(pageNum) {
		b.addMeasurement(ov, m, frame, m.ID == selected)
	}
	for _, a := range b.Index.AnnotationsOnPage(pageNum) {
		b.addAnnotation(ov, a, frame, a.ID == selected)
	}

	b.addCapturePreview(ov, g.Capture, frame)
	b.addCalibrationPreview(ov, g, frame)
	return ov
}

func (b *Builder) conditionColor(id string) color.RGBA {
	c, err := b.Conditions.Condition(id)
	if err != nil {
		return colorutil.Gray
	}
	return colorutil.ParseHex(c.Color)
}

func (b *Builder) addMeasurement(ov *PageOverlay, m *markup.Measurement, frame page.Frame, selected bool) {
	col := b.conditionColor(m.ConditionID)
	stroke := Stroke{Color: col, Width: markupStrokeWidth}
	pts := toPixels(m.Points, frame)

	switch m.Type {
	case condition.Count:
		if len(pts) == 0 {
			return
		}
		if selected {
			ov.Markers = append(ov.Markers, CircleMarker{
				ID:     m.ID,
				Center: pts[0],
				Radius: countMarkerRadius + selectionExtraWidth,
				Stroke: Stroke{Color: SelectionColor, Width: selectionExtraWidth},
			})
		}
		ov.Markers = append(ov.Markers, CircleMarker{
			ID:     m.ID,
			Center: pts[0],
			Radius: countMarkerRadius,
			Stroke: stroke,
			Fill:   col,
		})

	case condition.Linear:
		if selected {
			ov.Polylines = append(ov.Polylines, Polyline{
				ID:     m.ID,
				Points: pts,
				Stroke: Stroke{Color: SelectionColor, Width: markupStrokeWidth + 2*selectionExtraWidth},
			})
		}
		ov.Polylines = append(ov.Polylines, Polyline{ID: m.ID, Points: pts, Stroke: stroke})
		ov.Labels = append(ov.Labels, Label{
			ID:    m.ID,
			At:    midpoint(pts),
			Text:  formatValue(m.Value, m.Unit),
			Color: col,
			Halo:  true,
		})

	case condition.Area, condition.Volume:
		rings := [][]geometry.Point2D{pts}
		for _, cut := range m.Cutouts {
			rings = append(rings, toPixels(cut.Points, frame))
		}
		if selected {
			ov.Polygons = append(ov.Polygons, Polygon{
				ID:     m.ID,
				Rings:  rings[:1],
				Stroke: Stroke{Color: SelectionColor, Width: markupStrokeWidth + 2*selectionExtraWidth},
			})
		}
		ov.Polygons = append(ov.Polygons, Polygon{
			ID:     m.ID,
			Rings:  rings,
			Stroke: stroke,
			Fill:   colorutil.WithAlpha(col, polygonFillAlpha),
		})
		text := formatValue(m.Net(), m.Unit)
		if m.PerimeterValue > 0 {
			text += fmt.Sprintf(" (%.1f perim)", m.PerimeterValue)
		}
		ov.Labels = append(ov.Labels, Label{
			ID:    m.ID,
			At:    geometry.Centroid(pts),
			Text:  text,
			Color: col,
			Halo:  true,
		})
	}
}

func (b *Builder) addAnnotation(ov *PageOverlay, a *markup.Annotation, frame page.Frame, selected bool) {
	col := colorutil.ParseHex(a.Color)
	stroke := Stroke{Color: col, Width: markupStrokeWidth}
	if selected {
		stroke.Width += selectionExtraWidth
	}
	pts := toPixels(a.Points, frame)

	switch a.Type {
	case markup.AnnotationText:
		if len(pts) == 0 {
			return
		}
		ov.Labels = append(ov.Labels, Label{ID: a.ID, At: pts[0], Text: a.Text, Color: col, Halo: true})
		if selected {
			ov.Markers = append(ov.Markers, CircleMarker{
				ID:     a.ID,
				Center: pts[0],
				Radius: vertexHandleRadius + selectionExtraWidth,
				Stroke: Stroke{Color: SelectionColor, Width: 1},
			})
		}

	case markup.AnnotationArrow:
		if len(pts) < 2 {
			return
		}
		ov.Arrows = append(ov.Arrows, Arrow{ID: a.ID, From: pts[0], To: pts[1], Stroke: stroke})

	case markup.AnnotationRectangle:
		if len(pts) < 2 {
			return
		}
		ov.Rects = append(ov.Rects, RectShape{ID: a.ID, Bounds: geometry.BoundingBox(pts), Stroke: stroke})

	case markup.AnnotationHighlight:
		if len(pts) < 2 {
			return
		}
		ov.Rects = append(ov.Rects, RectShape{
			ID:     a.ID,
			Bounds: geometry.BoundingBox(pts),
			Stroke: stroke,
			Fill:   colorutil.WithAlpha(col, highlightFillAlpha),
		})

	case markup.AnnotationCircle:
		if len(pts) < 2 {
			return
		}
		ov.Markers = append(ov.Markers, CircleMarker{
			ID:     a.ID,
			Center: pts[0],
			Radius: int(pts[0].Distance(pts[1])),
			Stroke: stroke,
		})
	}
}

func (b *Builder) addCapturePreview(ov *PageOverlay, snap capture.Snapshot, frame page.Frame) {
	if !snap.Active || len(snap.Points) == 0 {
		return
	}
	col := b.conditionColor(snap.ConditionID)
	pts := toPixels(snap.Points, frame)

	// Committed vertices as handles.
	for _, p := range pts {
		ov.Markers = append(ov.Markers, CircleMarker{
			Center: p,
			Radius: vertexHandleRadius,
			Stroke: Stroke{Color: col, Width: 1},
			Fill:   col,
		})
	}

	line := pts
	if snap.HasPreview {
		line = append(line, frame.ToPixel(snap.Preview))
	}
	if len(line) >= 2 {
		ov.Polylines = append(ov.Polylines, Polyline{
			Points: line,
			Stroke: Stroke{Color: col, Width: markupStrokeWidth, Dashed: true},
		})
	}
	// Closing edge hint once a polygon is possible.
	if (snap.Type == condition.Area || snap.Type == condition.Volume) && len(line) >= 3 {
		ov.Polylines = append(ov.Polylines, Polyline{
			Points: []geometry.Point2D{line[len(line)-1], line[0]},
			Stroke: Stroke{Color: col, Width: 1, Dashed: true},
		})
	}

	if snap.HasPreview && snap.RunningValue > 0 {
		ov.Labels = append(ov.Labels, Label{
			At:    frame.ToPixel(snap.Preview).Add(geometry.Point2D{X: 12, Y: -12}),
			Text:  formatValue(snap.RunningValue, snap.Unit),
			Color: col,
			Halo:  true,
		})
	}
}

func (b *Builder) addCalibrationPreview(ov *PageOverlay, g Gesture, frame page.Frame) {
	if g.CalFirst == nil {
		return
	}
	first := frame.ToPixel(*g.CalFirst)
	ov.Markers = append(ov.Markers, CircleMarker{
		Center: first,
		Radius: vertexHandleRadius,
		Stroke: Stroke{Color: colorutil.Red, Width: 1},
		Fill:   colorutil.Red,
	})
	if g.CalCursor == nil {
		return
	}
	ov.Polylines = append(ov.Polylines, Polyline{
		Points: []geometry.Point2D{first, frame.ToPixel(*g.CalCursor)},
		Stroke: Stroke{Color: colorutil.Red, Width: 1, Dashed: true},
	})
}

func formatValue(v float64, unit string) string {
	return fmt.Sprintf("%.1f %s", v, unit)
}

func toPixels(points []page.NormPoint, frame page.Frame) []geometry.Point2D {
	out := make([]geometry.Point2D, len(points))
	for i, n := range points {
		out[i] = frame.ToPixel(n)
	}
	return out
}

func midpoint(pts []geometry.Point2D) geometry.Point2D {
	if len(pts) == 0 {
		return geometry.Point2D{}
	}
	return geometry.Centroid(pts)
}
