// Package calibration derives the real-world scale of a page from a
// user-drawn reference segment of known length.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"plan-takeoff/internal/page"

	"gonum.org/v1/gonum/stat"
)

// State tracks the two-point calibration protocol.
type State int

const (
	Idle State = iota
	AwaitingFirstPoint
	AwaitingSecondPoint
	Computed
)

// Scope controls whether a record applies to one page or the whole document.
type Scope int

const (
	ScopePage Scope = iota
	ScopeDocument
)

// Sanity band for the derived scale factor (real units per base-frame
// pixel). Architectural drawings render somewhere between a tenth of a
// pixel and tens of thousands of pixels per unit; anything outside needs
// explicit user confirmation.
const (
	minScaleFactor = 1e-4
	maxScaleFactor = 10.0
)

// Record is a committed calibration. The base frame dimensions are captured
// at calibration time so later zoom changes cannot corrupt the scale.
type Record struct {
	ScaleFactor           float64 `json:"scale_factor"` // real units per base-frame pixel
	Unit                  string  `json:"unit"`
	BaseWidth             float64 `json:"base_width"`
	BaseHeight            float64 `json:"base_height"`
	RotationAtCalibration int     `json:"rotation_at_calibration"`
	Scope                 Scope   `json:"scope"`
	Page                  int     `json:"page"`
}

// ErrDegenerateDistance is returned when the two calibration points
// coincide. Nothing is stored.
var ErrDegenerateDistance = errors.New("calibration points coincide")

// ErrNotReady is returned when Finish is called before two points exist.
var ErrNotReady = errors.New("calibration needs two points")

// ScaleWarning is returned when the derived scale is outside the sane band
// or deviates sharply from this document's calibration history. The record
// is valid but uncommitted; the caller commits it after user confirmation.
type ScaleWarning struct {
	Record *Record
	Reason string
}

func (w *ScaleWarning) Error() string {
	return fmt.Sprintf("suspicious calibration (%s): %g %s/px", w.Reason, w.Record.ScaleFactor, w.Record.Unit)
}

// Engine runs the calibration protocol and stores committed records,
// per page or promoted to the document.
type Engine struct {
	state     State
	first     page.NormPoint
	second    page.NormPoint
	hasSecond bool

	pageRecords map[int]*Record
	document    *Record

	// Accepted scale factors, used to flag outlier recalibrations.
	history []float64
}

// NewEngine creates an idle calibration engine.
func NewEngine() *Engine {
	return &Engine{pageRecords: make(map[int]*Record)}
}

// State returns the current protocol state.
func (e *Engine) State() State {
	return e.state
}

// Active reports whether a calibration gesture is in progress.
func (e *Engine) Active() bool {
	return e.state == AwaitingFirstPoint || e.state == AwaitingSecondPoint
}

// Start begins a new two-point calibration, discarding any pending points.
func (e *Engine) Start() {
	e.state = AwaitingFirstPoint
	e.hasSecond = false
}

// AddPoint records a clicked calibration point.
func (e *Engine) AddPoint(n page.NormPoint) {
	switch e.state {
	case AwaitingFirstPoint:
		e.first = n
		e.state = AwaitingSecondPoint
	case AwaitingSecondPoint:
		e.second = n
		e.hasSecond = true
	}
}

// FirstPoint returns the pending first point for rubber-band previews.
func (e *Engine) FirstPoint() (page.NormPoint, bool) {
	if e.state != AwaitingSecondPoint {
		return page.NormPoint{}, false
	}
	return e.first, true
}

// Escape pops the protocol back one step: second point entry returns to
// first point entry, which returns to idle.
func (e *Engine) Escape() {
	switch e.state {
	case AwaitingSecondPoint:
		e.state = AwaitingFirstPoint
		e.hasSecond = false
	case AwaitingFirstPoint:
		e.state = Idle
	}
}

// Finish derives the scale factor from the two recorded points and the
// known real-world distance. A sane result is committed immediately; a
// suspicious one is returned inside a *ScaleWarning for the caller to
// confirm via Commit. Degenerate input is a hard error and nothing is
// stored.
func (e *Engine) Finish(knownDistance float64, unit string, frame page.Frame, scope Scope, pageNum int) (*Record, error) {
	if e.state != AwaitingSecondPoint || !e.hasSecond {
		return nil, ErrNotReady
	}
	if knownDistance <= 0 {
		return nil, fmt.Errorf("known distance must be positive, got %g", knownDistance)
	}

	base := frame.BaseSize()
	pixelDist := e.first.BasePixel(base).Distance(e.second.BasePixel(base))
	if pixelDist < 1e-6 {
		// Drop the second point so the user can re-click it.
		e.hasSecond = false
		return nil, ErrDegenerateDistance
	}

	rec := &Record{
		ScaleFactor:           knownDistance / pixelDist,
		Unit:                  unit,
		BaseWidth:             base.Width,
		BaseHeight:            base.Height,
		RotationAtCalibration: frame.Rotation,
		Scope:                 scope,
		Page:                  pageNum,
	}

	if reason := e.suspicious(rec.ScaleFactor); reason != "" {
		e.state = Computed
		return rec, &ScaleWarning{Record: rec, Reason: reason}
	}

	e.Commit(rec)
	return rec, nil
}

// suspicious returns a non-empty reason if the scale factor needs user
// confirmation before committing.
func (e *Engine) suspicious(factor float64) string {
	if factor < minScaleFactor || factor > maxScaleFactor {
		return "scale outside expected range"
	}
	if len(e.history) >= 3 {
		mean, std := stat.MeanStdDev(e.history, nil)
		if std > 0 && math.Abs(factor-mean) > 3*std {
			return "scale deviates from earlier calibrations"
		}
	}
	return ""
}

// Commit stores a record under its scope and finishes the protocol.
func (e *Engine) Commit(rec *Record) {
	if rec.Scope == ScopeDocument {
		e.document = rec
	} else {
		e.pageRecords[rec.Page] = rec
	}
	e.history = append(e.history, rec.ScaleFactor)
	e.state = Computed
}

// RecordFor returns the calibration for a page: the page-scoped record if
// one exists, otherwise the document-wide record.
func (e *Engine) RecordFor(pageNum int) (*Record, bool) {
	if rec, ok := e.pageRecords[pageNum]; ok {
		return rec, true
	}
	if e.document != nil {
		return e.document, true
	}
	return nil, false
}

// Restore loads previously persisted records, e.g. when opening a project.
func (e *Engine) Restore(records []Record) {
	for i := range records {
		rec := records[i]
		if rec.Scope == ScopeDocument {
			e.document = &rec
		} else {
			e.pageRecords[rec.Page] = &rec
		}
		e.history = append(e.history, rec.ScaleFactor)
	}
}

// Records returns all committed records for persistence.
func (e *Engine) Records() []Record {
	var out []Record
	if e.document != nil {
		out = append(out, *e.document)
	}
	for _, rec := range e.pageRecords {
		out = append(out, *rec)
	}
	return out
}
