// Package app provides application lifecycle management, state, and events.
package app

import (
	"fmt"
	"sync"
	"time"

	"plan-takeoff/internal/calibration"
	"plan-takeoff/internal/capture"
	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/markup"
	"plan-takeoff/internal/overlay"
	"plan-takeoff/internal/page"
	"plan-takeoff/internal/project"
	"plan-takeoff/internal/store"
	"plan-takeoff/pkg/geometry"
)

// Tool is the active interaction mode on the canvas.
type Tool int

const (
	ToolSelect Tool = iota
	ToolMeasure
	ToolCalibrate
	ToolAnnotate
)

// EventType identifies different application events.
type EventType int

const (
	EventProjectLoaded EventType = iota
	EventProjectSaved
	EventPageChanged
	EventConditionsChanged
	EventCalibrationChanged
	EventMarkupsChanged
	EventSelectionChanged
	EventToolChanged
	EventStatusChanged
	EventModified
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Pixel distance used for hit-testing markups on the canvas.
const hitTolerance = 6.0

// Status is the live engine state shown in the status bar and consumed by
// the toolbar to keep its controls in sync.
type Status struct {
	IsMeasuring     bool
	IsCalibrating   bool
	MeasurementType condition.Type
	IsOrthoSnapping bool
	SelectedID      string
}

// State holds the application state: the open project, the page being
// viewed, and the measurement engines. UI packages drive it through event
// handlers and listen for change events.
type State struct {
	mu sync.RWMutex

	ProjectPath string
	Project     *project.File
	Modified    bool

	Conditions *condition.MemoryStore
	Cal        *calibration.Engine
	Capture    *capture.Machine
	Markups    *markup.Index
	Overlay    *overlay.Builder
	Saver      *store.AsyncSaver

	tool        Tool
	currentPage int
	frames      map[int]page.Frame

	// Pending calibration gesture shown as a rubber band.
	calCursor *page.NormPoint
	hasCursor bool

	listeners map[EventType][]EventListener
}

// NewState wires the engines together around an empty project.
func NewState(backend store.Store) *State {
	conds := condition.NewMemoryStore()
	cal := calibration.NewEngine()
	idx := markup.NewIndex()
	mach := capture.NewMachine(conds, cal)
	mach.SetPage(1)

	return &State{
		Project:     project.New("Untitled"),
		Conditions:  conds,
		Cal:         cal,
		Capture:     mach,
		Markups:     idx,
		Overlay:     &overlay.Builder{Conditions: conds, Index: idx},
		Saver:       store.NewAsyncSaver(backend),
		currentPage: 1,
		frames:      make(map[int]page.Frame),
		listeners:   make(map[EventType][]EventListener),
	}
}

// Reset replaces the open project and all engine state with a fresh,
// empty project. Listeners and the persistence backend are kept.
func (s *State) Reset() {
	s.rewireEngines()
	s.Emit(EventProjectLoaded, nil)
	s.SetModified(false)
}

// rewireEngines replaces the condition store, calibration engine, markup
// index and capture machine with fresh ones on page 1. Listeners and the
// persistence backend are kept.
func (s *State) rewireEngines() {
	conds := condition.NewMemoryStore()
	cal := calibration.NewEngine()
	idx := markup.NewIndex()
	mach := capture.NewMachine(conds, cal)
	mach.SetPage(1)

	s.mu.Lock()
	s.ProjectPath = ""
	s.Project = project.New("Untitled")
	s.Conditions = conds
	s.Cal = cal
	s.Capture = mach
	s.Markups = idx
	s.Overlay = &overlay.Builder{Conditions: conds, Index: idx}
	s.tool = ToolSelect
	s.currentPage = 1
	s.frames = make(map[int]page.Frame)
	s.calCursor = nil
	s.hasCursor = false
	s.mu.Unlock()
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the project as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// Tool returns the active tool.
func (s *State) Tool() Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tool
}

// SetTool switches the interaction mode, cancelling in-progress gestures.
func (s *State) SetTool(t Tool) {
	s.mu.Lock()
	if s.tool == t {
		s.mu.Unlock()
		return
	}
	s.tool = t
	s.mu.Unlock()

	s.Capture.Cancel()
	if t != ToolCalibrate && s.Cal.Active() {
		for s.Cal.Active() {
			s.Cal.Escape()
		}
	}
	if t == ToolCalibrate {
		s.Cal.Start()
	}
	s.clearCalCursor()
	s.Emit(EventToolChanged, t)
	s.Emit(EventStatusChanged, s.Status())
}

// CurrentPage returns the page being viewed.
func (s *State) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPage
}

// SetPage switches pages. In-progress gestures are abandoned; markups and
// calibrations on other pages are untouched.
func (s *State) SetPage(pageNum int) {
	s.mu.Lock()
	if pageNum == s.currentPage {
		s.mu.Unlock()
		return
	}
	s.currentPage = pageNum
	s.mu.Unlock()

	s.Capture.SetPage(pageNum)
	if s.Cal.Active() {
		s.Cal.Start()
	}
	s.clearCalCursor()
	s.Emit(EventPageChanged, pageNum)
}

// SetFrame records the current view frame for a page. The canvas calls this
// whenever zoom or rotation changes.
func (s *State) SetFrame(pageNum int, f page.Frame) {
	s.mu.Lock()
	s.frames[pageNum] = f
	s.mu.Unlock()
}

// Frame returns the current view frame for a page.
func (s *State) Frame(pageNum int) page.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.frames[pageNum]; ok {
		return f
	}
	return page.FrameFor(geometry.Size{Width: 1, Height: 1}, 1, 0)
}

// Status reports the live engine state.
func (s *State) Status() Status {
	st := Status{
		IsMeasuring:     s.Capture.Active(),
		IsCalibrating:   s.Cal.Active(),
		IsOrthoSnapping: s.Capture.Ortho(),
		SelectedID:      s.Markups.Selected(),
	}
	if id := s.Capture.ConditionID(); id != "" {
		if c, err := s.Conditions.Condition(id); err == nil {
			st.MeasurementType = c.Type
		}
	}
	return st
}

// ActivateCondition arms measurement capture for a condition and switches to
// the measure tool. A stale id drops back to selection.
func (s *State) ActivateCondition(id string) error {
	if err := s.Capture.SetCondition(id); err != nil {
		s.SetTool(ToolSelect)
		return err
	}
	s.SetTool(ToolMeasure)
	return nil
}

// HandleClick routes a canvas click at a page-pixel position.
func (s *State) HandleClick(px geometry.Point2D) error {
	pageNum := s.CurrentPage()
	frame := s.Frame(pageNum)

	switch s.Tool() {
	case ToolSelect:
		if id := s.Markups.HitTest(pageNum, px, frame, hitTolerance); id != "" {
			s.Markups.Select(id)
		} else {
			s.Markups.ClearSelection()
		}
		s.Emit(EventSelectionChanged, s.Markups.Selected())

	case ToolMeasure:
		meas, err := s.Capture.Click(px, frame, time.Now())
		if err != nil {
			s.Emit(EventStatusChanged, s.Status())
			return err
		}
		if meas != nil {
			s.commitMeasurement(meas)
		}

	case ToolCalibrate:
		s.Cal.AddPoint(frame.ToNormalized(s.orthoSnapCal(px, frame)))
	}

	s.Emit(EventStatusChanged, s.Status())
	return nil
}

// HandleDoubleClick completes the in-progress measurement gesture.
func (s *State) HandleDoubleClick() error {
	if s.Tool() != ToolMeasure {
		return nil
	}
	frame := s.Frame(s.CurrentPage())
	meas, err := s.Capture.DoubleClick(frame, time.Now())
	if err != nil {
		s.Emit(EventStatusChanged, s.Status())
		return err
	}
	if meas != nil {
		s.commitMeasurement(meas)
	}
	s.Emit(EventStatusChanged, s.Status())
	return nil
}

// HandleMove updates gesture previews from pointer motion.
func (s *State) HandleMove(px geometry.Point2D) {
	frame := s.Frame(s.CurrentPage())
	switch s.Tool() {
	case ToolMeasure:
		s.Capture.PointerMove(px, frame)
	case ToolCalibrate:
		n := frame.ToNormalized(s.orthoSnapCal(px, frame))
		s.mu.Lock()
		s.calCursor = &n
		s.hasCursor = true
		s.mu.Unlock()
	}
}

// HandleEscape backs the active gesture out one step.
func (s *State) HandleEscape() {
	switch s.Tool() {
	case ToolMeasure:
		s.Capture.EscapeKey()
	case ToolCalibrate:
		s.Cal.Escape()
		if !s.Cal.Active() {
			s.SetTool(ToolSelect)
		}
	case ToolSelect:
		s.Markups.ClearSelection()
		s.Emit(EventSelectionChanged, "")
	}
	s.Emit(EventStatusChanged, s.Status())
}

// FinishCalibration completes the two-point protocol with the entered
// distance. A *calibration.ScaleWarning is passed through for the UI to
// confirm via ConfirmCalibration.
func (s *State) FinishCalibration(knownDistance float64, unit string, scope calibration.Scope) (*calibration.Record, error) {
	pageNum := s.CurrentPage()
	rec, err := s.Cal.Finish(knownDistance, unit, s.Frame(pageNum), scope, pageNum)
	if err != nil {
		return rec, err
	}
	s.calibrationCommitted()
	return rec, nil
}

// ConfirmCalibration commits a warned record after user confirmation.
func (s *State) ConfirmCalibration(rec *calibration.Record) {
	s.Cal.Commit(rec)
	s.calibrationCommitted()
}

func (s *State) calibrationCommitted() {
	s.clearCalCursor()
	s.SetTool(ToolSelect)
	s.SetModified(true)
	s.Emit(EventCalibrationChanged, nil)
}

// DeleteSelected removes the selected markup, including any cutouts it owns.
func (s *State) DeleteSelected() bool {
	id := s.Markups.Selected()
	if id == "" {
		return false
	}
	isMeasurement := s.Markups.Measurement(id) != nil
	if !s.Markups.Delete(id) {
		return false
	}
	if isMeasurement {
		s.Saver.DeleteMeasurement(id)
	} else {
		s.Saver.DeleteAnnotation(id)
	}
	s.SetModified(true)
	s.Emit(EventSelectionChanged, "")
	s.Emit(EventMarkupsChanged, nil)
	return true
}

// AddAnnotation inserts a drawn annotation on the current page.
func (s *State) AddAnnotation(a *markup.Annotation) {
	a.Page = s.CurrentPage()
	s.Markups.AddAnnotation(a)
	s.Saver.SaveAnnotation(a)
	s.SetModified(true)
	s.Emit(EventMarkupsChanged, nil)
}

// AddCutout subtracts a hole from the selected area or volume measurement.
func (s *State) AddCutout(polygon []page.NormPoint) error {
	id := s.Markups.Selected()
	m := s.Markups.Measurement(id)
	if m == nil {
		return fmt.Errorf("no measurement selected")
	}
	rec := s.calibrationOrFallback()
	ce := &markup.CutoutEngine{Conditions: s.Conditions}
	if _, err := ce.AddCutout(m, polygon, rec); err != nil {
		return err
	}
	s.Saver.UpdateMeasurement(m)
	s.SetModified(true)
	s.Emit(EventMarkupsChanged, nil)
	return nil
}

func (s *State) calibrationOrFallback() *calibration.Record {
	pageNum := s.CurrentPage()
	if rec, ok := s.Cal.RecordFor(pageNum); ok {
		return rec
	}
	base := s.Frame(pageNum).BaseSize()
	return &calibration.Record{ScaleFactor: 1, Unit: "px", BaseWidth: base.Width, BaseHeight: base.Height}
}

// RollbackMarkup undoes an optimistic insert after a failed background
// save; the saver's error callbacks route here.
func (s *State) RollbackMarkup(id string) {
	if !s.Markups.Delete(id) {
		return
	}
	s.Emit(EventSelectionChanged, s.Markups.Selected())
	s.Emit(EventMarkupsChanged, nil)
}

func (s *State) commitMeasurement(meas *markup.Measurement) {
	s.Markups.AddMeasurement(meas)
	s.Saver.SaveMeasurement(meas)
	s.SetModified(true)
	s.Emit(EventMarkupsChanged, meas)
}

// BuildOverlay assembles the draw list for the current page, including any
// gesture previews.
func (s *State) BuildOverlay() *overlay.PageOverlay {
	pageNum := s.CurrentPage()
	frame := s.Frame(pageNum)

	g := overlay.Gesture{Capture: s.Capture.Snapshot(frame)}
	if first, ok := s.Cal.FirstPoint(); ok {
		g.CalFirst = &first
		s.mu.RLock()
		if s.hasCursor {
			cur := *s.calCursor
			g.CalCursor = &cur
		}
		s.mu.RUnlock()
	}
	return s.Overlay.BuildWithGesture(pageNum, frame, g)
}

// orthoSnapCal applies ortho snapping to the calibration second point,
// using the same rule as measurement capture.
func (s *State) orthoSnapCal(px geometry.Point2D, frame page.Frame) geometry.Point2D {
	if !s.Capture.Ortho() {
		return px
	}
	first, ok := s.Cal.FirstPoint()
	if !ok {
		return px
	}
	return capture.Snap(frame.ToPixel(first), px)
}

func (s *State) clearCalCursor() {
	s.mu.Lock()
	s.calCursor = nil
	s.hasCursor = false
	s.mu.Unlock()
}
