package capture

import (
	"errors"
	"math"
	"testing"
	"time"

	"plan-takeoff/internal/calibration"
	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/markup"
	"plan-takeoff/internal/page"
	"plan-takeoff/pkg/geometry"
)

func testConditions() *condition.MemoryStore {
	s := condition.NewMemoryStore()
	s.Put(&condition.Condition{ID: "wall", Name: "Wall", Type: condition.Linear, Unit: "ft", Color: "#3355aa"})
	s.Put(&condition.Condition{ID: "slab", Name: "Slab", Type: condition.Area, Unit: "sf", Color: "#33aa55"})
	s.Put(&condition.Condition{ID: "fill", Name: "Fill", Type: condition.Volume, Unit: "cy", Color: "#aa5533", Depth: 3})
	s.Put(&condition.Condition{ID: "door", Name: "Door", Type: condition.Count, Unit: "ea", Color: "#aa3355"})
	return s
}

// 1000x800 base frame calibrated at 0.1 ft per pixel.
func calibratedEngine(t *testing.T, frame page.Frame) *calibration.Engine {
	t.Helper()
	e := calibration.NewEngine()
	e.Start()
	e.AddPoint(page.NormPoint{X: 0.1, Y: 0.1})
	e.AddPoint(page.NormPoint{X: 0.3, Y: 0.1})
	if _, err := e.Finish(20, "ft", frame, calibration.ScopeDocument, 1); err != nil {
		t.Fatalf("calibration failed: %v", err)
	}
	return e
}

func testFrame() page.Frame {
	return page.FrameFor(geometry.Size{Width: 1000, Height: 800}, 1, 0)
}

func TestLinearMeasurement(t *testing.T) {
	frame := testFrame()
	m := NewMachine(testConditions(), calibratedEngine(t, frame))
	m.SetPage(1)
	if err := m.SetCondition("wall"); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(0, 0)
	// 400 px horizontal run at 0.1 ft/px -> 40 ft.
	if _, err := m.Click(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.5}), frame, now); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Second)
	if _, err := m.Click(frame.ToPixel(page.NormPoint{X: 0.5, Y: 0.5}), frame, now); err != nil {
		t.Fatal(err)
	}

	meas, err := m.DoubleClick(frame, now.Add(time.Second))
	if err != nil {
		t.Fatalf("DoubleClick failed: %v", err)
	}
	if meas == nil {
		t.Fatal("expected a completed measurement")
	}
	if math.Abs(meas.Value-40) > 1e-9 {
		t.Errorf("expected 40 ft, got %v", meas.Value)
	}
	if meas.Unit != "ft" {
		t.Errorf("expected unit ft, got %q", meas.Unit)
	}
	if m.State() != Idle {
		t.Error("machine should be idle after completion")
	}
	if m.ConditionID() != "wall" {
		t.Error("condition should stay armed for continuous capture")
	}
}

func TestCountCompletesImmediately(t *testing.T) {
	frame := testFrame()
	m := NewMachine(testConditions(), calibratedEngine(t, frame))
	m.SetPage(1)
	if err := m.SetCondition("door"); err != nil {
		t.Fatal(err)
	}

	meas, err := m.Click(frame.ToPixel(page.NormPoint{X: 0.4, Y: 0.4}), frame, time.Unix(10, 0))
	if err != nil {
		t.Fatal(err)
	}
	if meas == nil {
		t.Fatal("count click should complete immediately")
	}
	if meas.Value != 1 {
		t.Errorf("count value must be 1, got %v", meas.Value)
	}
	if m.State() != Idle {
		t.Error("count capture never enters Capturing")
	}
}

func TestAreaAndVolume(t *testing.T) {
	frame := testFrame()
	square := []page.NormPoint{
		{X: 0.1, Y: 0.1},
		{X: 0.3, Y: 0.1},
		{X: 0.3, Y: 0.35},
		{X: 0.1, Y: 0.35},
	}

	for _, tc := range []struct {
		cond string
		want float64
	}{
		{"slab", 400},  // 200x200 px at 0.1 ft/px
		{"fill", 1200}, // 400 sf x depth 3
	} {
		m := NewMachine(testConditions(), calibratedEngine(t, frame))
		m.SetPage(1)
		if err := m.SetCondition(tc.cond); err != nil {
			t.Fatal(err)
		}

		now := time.Unix(0, 0)
		for _, p := range square {
			now = now.Add(time.Second)
			if _, err := m.Click(frame.ToPixel(p), frame, now); err != nil {
				t.Fatal(err)
			}
		}
		meas, err := m.DoubleClick(frame, now.Add(time.Second))
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(meas.Value-tc.want) > 1e-9 {
			t.Errorf("%s: expected %v, got %v", tc.cond, tc.want, meas.Value)
		}
	}
}

func TestAreaRejectsTwoPointsAndStaysOpen(t *testing.T) {
	frame := testFrame()
	m := NewMachine(testConditions(), calibratedEngine(t, frame))
	m.SetPage(1)
	if err := m.SetCondition("slab"); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(0, 0)
	m.Click(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.1}), frame, now)
	m.Click(frame.ToPixel(page.NormPoint{X: 0.3, Y: 0.1}), frame, now.Add(time.Second))

	meas, err := m.DoubleClick(frame, now.Add(2*time.Second))
	var ge *markup.GeometryError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GeometryError, got %v", err)
	}
	if meas != nil {
		t.Error("no measurement should be produced")
	}
	if m.State() != Capturing {
		t.Error("gesture must stay open after a geometry error")
	}
}

func TestEscapePopsVerticesThenIdles(t *testing.T) {
	frame := testFrame()
	m := NewMachine(testConditions(), calibratedEngine(t, frame))
	m.SetPage(1)
	if err := m.SetCondition("slab"); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(0, 0)
	for i, p := range []page.NormPoint{{X: 0.1, Y: 0.1}, {X: 0.3, Y: 0.1}, {X: 0.3, Y: 0.3}} {
		m.Click(frame.ToPixel(p), frame, now.Add(time.Duration(i)*time.Second))
	}

	m.EscapeKey()
	m.EscapeKey()
	if m.State() != Capturing {
		t.Fatal("two escapes over three vertices should leave one vertex")
	}
	m.EscapeKey()
	if m.State() != Idle {
		t.Error("third escape should abandon the gesture")
	}
}

func TestDebounceDropsTrailingClick(t *testing.T) {
	frame := testFrame()
	m := NewMachine(testConditions(), calibratedEngine(t, frame))
	m.SetPage(1)
	if err := m.SetCondition("wall"); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(0, 0)
	m.Click(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.5}), frame, now)
	m.Click(frame.ToPixel(page.NormPoint{X: 0.5, Y: 0.5}), frame, now.Add(time.Second))
	if _, err := m.DoubleClick(frame, now.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}

	// A synthetic click 50 ms after completion must not start a new gesture.
	m.Click(frame.ToPixel(page.NormPoint{X: 0.5, Y: 0.5}), frame, now.Add(2*time.Second+50*time.Millisecond))
	if m.State() != Idle {
		t.Error("click inside the debounce window should be dropped")
	}

	// A click after the window starts the next measurement.
	m.Click(frame.ToPixel(page.NormPoint{X: 0.5, Y: 0.5}), frame, now.Add(3*time.Second))
	if m.State() != Capturing {
		t.Error("click after the debounce window should start a gesture")
	}
}

func TestUncalibratedFallsBackToPixels(t *testing.T) {
	frame := testFrame()
	m := NewMachine(testConditions(), calibration.NewEngine())
	m.SetPage(1)
	if err := m.SetCondition("wall"); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(0, 0)
	m.Click(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.5}), frame, now)
	m.Click(frame.ToPixel(page.NormPoint{X: 0.5, Y: 0.5}), frame, now.Add(time.Second))
	meas, err := m.DoubleClick(frame, now.Add(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if meas.Unit != "px" {
		t.Errorf("expected pixel fallback unit, got %q", meas.Unit)
	}
	if math.Abs(meas.Value-400) > 1e-9 {
		t.Errorf("expected 400 px, got %v", meas.Value)
	}
}

func TestStaleConditionDisarms(t *testing.T) {
	frame := testFrame()
	conds := testConditions()
	m := NewMachine(conds, calibratedEngine(t, frame))
	m.SetPage(1)
	if err := m.SetCondition("wall"); err != nil {
		t.Fatal(err)
	}

	conds.Remove("wall")
	_, err := m.Click(frame.ToPixel(page.NormPoint{X: 0.2, Y: 0.2}), frame, time.Unix(5, 0))
	if !errors.Is(err, condition.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if m.ConditionID() != "" {
		t.Error("stale condition should disarm the machine")
	}
}

func TestOrthoSnap(t *testing.T) {
	last := geometry.Point2D{X: 100, Y: 100}

	got := Snap(last, geometry.Point2D{X: 300, Y: 120})
	if got.Y != 100 || got.X != 300 {
		t.Errorf("expected horizontal snap, got %+v", got)
	}

	got = Snap(last, geometry.Point2D{X: 110, Y: 280})
	if got.X != 100 || got.Y != 280 {
		t.Errorf("expected vertical snap, got %+v", got)
	}
}

func TestOrthoAppliesDuringCapture(t *testing.T) {
	frame := testFrame()
	m := NewMachine(testConditions(), calibratedEngine(t, frame))
	m.SetPage(1)
	m.SetOrtho(true)
	if err := m.SetCondition("wall"); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(0, 0)
	m.Click(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.5}), frame, now)
	// Slightly diagonal second click should snap flat: still exactly 40 ft.
	m.Click(frame.ToPixel(page.NormPoint{X: 0.5, Y: 0.52}), frame, now.Add(time.Second))
	meas, err := m.DoubleClick(frame, now.Add(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(meas.Value-40) > 1e-9 {
		t.Errorf("expected snapped 40 ft, got %v", meas.Value)
	}
}

func TestSnapshotRunningLength(t *testing.T) {
	frame := testFrame()
	m := NewMachine(testConditions(), calibratedEngine(t, frame))
	m.SetPage(1)
	if err := m.SetCondition("wall"); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(0, 0)
	m.Click(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.5}), frame, now)
	m.PointerMove(frame.ToPixel(page.NormPoint{X: 0.3, Y: 0.5}), frame)

	s := m.Snapshot(frame)
	if !s.Active || !s.HasPreview {
		t.Fatal("snapshot should show an active gesture with a preview")
	}
	if math.Abs(s.RunningValue-20) > 1e-9 {
		t.Errorf("expected running length 20 ft, got %v", s.RunningValue)
	}
	if s.Unit != "ft" {
		t.Errorf("expected ft, got %q", s.Unit)
	}
}
