// Package capture runs the measurement gesture state machine: vertex
// collection, ortho snapping, previews, and value computation on completion.
package capture

import (
	"time"

	"plan-takeoff/internal/calibration"
	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/markup"
	"plan-takeoff/internal/page"
	"plan-takeoff/pkg/geometry"
)

// State of the capture machine.
type State int

const (
	Idle State = iota
	Capturing
)

// Completing a measurement fires a synthetic click at the same spot on some
// platforms; clicks inside this window after a completion are dropped.
const completionDebounce = 100 * time.Millisecond

// Snapshot is the read-only view of an in-progress gesture, consumed by the
// overlay builder for rubber-band previews.
type Snapshot struct {
	Active      bool
	Type        condition.Type
	ConditionID string
	Points      []page.NormPoint
	Preview     page.NormPoint
	HasPreview  bool

	// RunningValue is the provisional value including the preview vertex,
	// zero when it cannot be computed yet.
	RunningValue float64
	Unit         string
}

// Machine collects measurement vertices for the active condition and turns
// completed gestures into measurements. It is driven by UI events on the
// main thread.
type Machine struct {
	Conditions condition.Store
	Cal        *calibration.Engine

	state       State
	conditionID string
	condType    condition.Type
	pageNum     int
	points      []page.NormPoint
	preview     page.NormPoint
	hasPreview  bool
	ortho       bool

	lastComplete time.Time
}

// NewMachine creates an idle capture machine.
func NewMachine(conditions condition.Store, cal *calibration.Engine) *Machine {
	return &Machine{Conditions: conditions, Cal: cal}
}

// State returns the machine state.
func (m *Machine) State() State {
	return m.state
}

// Active reports whether vertices are being collected.
func (m *Machine) Active() bool {
	return m.state == Capturing
}

// SetOrtho toggles axis snapping for subsequent vertices.
func (m *Machine) SetOrtho(on bool) {
	m.ortho = on
}

// Ortho reports whether axis snapping is on.
func (m *Machine) Ortho() bool {
	return m.ortho
}

// SetCondition arms the machine for a condition, cancelling any in-progress
// gesture. Passing an id that no longer resolves disarms the machine and
// returns condition.ErrStale so the caller can drop back to selection.
func (m *Machine) SetCondition(id string) error {
	m.Cancel()
	if id == "" {
		m.conditionID = ""
		return nil
	}
	c, err := m.Conditions.Condition(id)
	if err != nil {
		m.conditionID = ""
		return err
	}
	m.conditionID = c.ID
	m.condType = c.Type
	return nil
}

// ConditionID returns the armed condition, or "".
func (m *Machine) ConditionID() string {
	return m.conditionID
}

// SetPage switches the active page, cancelling any in-progress gesture.
func (m *Machine) SetPage(pageNum int) {
	if pageNum != m.pageNum {
		m.Cancel()
		m.pageNum = pageNum
	}
}

// Cancel discards the in-progress gesture without recording anything.
func (m *Machine) Cancel() {
	m.state = Idle
	m.points = nil
	m.hasPreview = false
}

// Click adds a vertex at the given pixel position. Count conditions complete
// immediately and return the measurement; other types return nil until the
// gesture is completed. Clicks without an armed condition are ignored.
func (m *Machine) Click(px geometry.Point2D, frame page.Frame, now time.Time) (*markup.Measurement, error) {
	if m.conditionID == "" {
		return nil, nil
	}
	if !m.lastComplete.IsZero() && now.Sub(m.lastComplete) < completionDebounce {
		return nil, nil
	}

	c, err := m.Conditions.Condition(m.conditionID)
	if err != nil {
		m.Cancel()
		m.conditionID = ""
		return nil, err
	}

	if m.ortho && len(m.points) > 0 {
		px = Snap(frame.ToPixel(m.points[len(m.points)-1]), px)
	}
	n := frame.ToNormalized(px)

	if c.Type == condition.Count {
		m.lastComplete = now
		return m.buildMeasurement(c, []page.NormPoint{n}, frame)
	}

	m.state = Capturing
	m.points = append(m.points, n)
	return nil, nil
}

// DoubleClick completes the in-progress linear, area or volume gesture. The
// double click's own position is already present as the last single-click
// vertex; duplicates are removed during validation. On a geometry error the
// gesture stays open for correction.
func (m *Machine) DoubleClick(frame page.Frame, now time.Time) (*markup.Measurement, error) {
	if m.state != Capturing {
		return nil, nil
	}
	meas, err := m.finish(frame)
	if err != nil {
		return nil, err
	}
	m.lastComplete = now

	// Continuous capture: stay armed so the next click starts a new
	// measurement under the same condition.
	m.Cancel()
	return meas, nil
}

// PointerMove updates the rubber-band preview vertex.
func (m *Machine) PointerMove(px geometry.Point2D, frame page.Frame) {
	if m.state != Capturing {
		return
	}
	if m.ortho && len(m.points) > 0 {
		px = Snap(frame.ToPixel(m.points[len(m.points)-1]), px)
	}
	m.preview = frame.ToNormalized(px)
	m.hasPreview = true
}

// EscapeKey removes the most recent vertex; with no vertices left the
// gesture is abandoned and the machine goes idle.
func (m *Machine) EscapeKey() {
	if m.state != Capturing {
		return
	}
	if len(m.points) > 0 {
		m.points = m.points[:len(m.points)-1]
	}
	if len(m.points) == 0 {
		m.Cancel()
	}
}

// Snapshot returns the preview view of the in-progress gesture.
func (m *Machine) Snapshot(frame page.Frame) Snapshot {
	s := Snapshot{
		Active:      m.state == Capturing,
		Type:        m.condType,
		ConditionID: m.conditionID,
		Points:      append([]page.NormPoint(nil), m.points...),
		Preview:     m.preview,
		HasPreview:  m.hasPreview,
	}
	if !s.Active || len(m.points) == 0 {
		return s
	}

	pts := s.Points
	if s.HasPreview {
		pts = append(pts, s.Preview)
	}
	rec := m.recordFor(frame)
	base := geometry.Size{Width: rec.BaseWidth, Height: rec.BaseHeight}
	pixels := page.BasePixels(pts, base)
	s.Unit = rec.Unit

	switch m.condType {
	case condition.Linear:
		s.RunningValue = geometry.PolylineLength(pixels) * rec.ScaleFactor
	case condition.Area, condition.Volume:
		if len(pixels) >= 3 {
			s.RunningValue = geometry.PolygonArea(pixels) * rec.ScaleFactor * rec.ScaleFactor
		}
	}
	return s
}

// finish validates the collected vertices and builds the measurement.
func (m *Machine) finish(frame page.Frame) (*markup.Measurement, error) {
	c, err := m.Conditions.Condition(m.conditionID)
	if err != nil {
		m.Cancel()
		m.conditionID = ""
		return nil, err
	}

	pts := markup.Dedupe(m.points)
	switch c.Type {
	case condition.Linear:
		if len(pts) < 2 {
			return nil, &markup.GeometryError{Reason: "a length needs at least 2 distinct points"}
		}
	case condition.Area, condition.Volume:
		pts, err = markup.ValidatePolygon(pts)
		if err != nil {
			return nil, err
		}
	}
	return m.buildMeasurement(c, pts, frame)
}

// recordFor returns the page's calibration, or the pixel-unit fallback when
// the page is uncalibrated so capture still works with raw pixel values.
func (m *Machine) recordFor(frame page.Frame) *calibration.Record {
	if rec, ok := m.Cal.RecordFor(m.pageNum); ok {
		return rec
	}
	base := frame.BaseSize()
	return &calibration.Record{
		ScaleFactor: 1,
		Unit:        "px",
		BaseWidth:   base.Width,
		BaseHeight:  base.Height,
	}
}

func (m *Machine) buildMeasurement(c *condition.Condition, pts []page.NormPoint, frame page.Frame) (*markup.Measurement, error) {
	rec := m.recordFor(frame)
	base := geometry.Size{Width: rec.BaseWidth, Height: rec.BaseHeight}
	pixels := page.BasePixels(pts, base)

	meas := &markup.Measurement{
		Type:        c.Type,
		Points:      pts,
		Unit:        c.Unit,
		ConditionID: c.ID,
		Page:        m.pageNum,
	}
	if rec.Unit == "px" {
		meas.Unit = "px"
	}

	switch c.Type {
	case condition.Count:
		meas.Value = 1
	case condition.Linear:
		meas.Value = geometry.PolylineLength(pixels) * rec.ScaleFactor
		if c.IncludeHeight && c.Height > 0 {
			meas.AreaValue = meas.Value * c.Height
		}
	case condition.Area:
		meas.Value = geometry.PolygonArea(pixels) * rec.ScaleFactor * rec.ScaleFactor
		if c.IncludePerimeter {
			meas.PerimeterValue = geometry.PolygonPerimeter(pixels) * rec.ScaleFactor
		}
	case condition.Volume:
		area := geometry.PolygonArea(pixels) * rec.ScaleFactor * rec.ScaleFactor
		meas.Value = area * c.EffectiveDepth()
	}
	return meas, nil
}
