package app

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"plan-takeoff/internal/calibration"
	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/markup"
	"plan-takeoff/internal/page"
	"plan-takeoff/internal/store"
	"plan-takeoff/pkg/geometry"
)

func testState() *State {
	s := NewState(store.NewMemory())
	s.Conditions.Put(&condition.Condition{ID: "wall", Name: "Wall", Type: condition.Linear, Unit: "ft", Color: "#3355aa"})
	s.Conditions.Put(&condition.Condition{ID: "door", Name: "Door", Type: condition.Count, Unit: "ea", Color: "#aa3355"})
	s.SetFrame(1, page.FrameFor(geometry.Size{Width: 1000, Height: 800}, 1, 0))
	return s
}

func calibrate(t *testing.T, s *State) {
	t.Helper()
	s.SetTool(ToolCalibrate)
	frame := s.Frame(1)
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.1}))
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.3, Y: 0.1}))
	if _, err := s.FinishCalibration(20, "ft", calibration.ScopePage); err != nil {
		t.Fatalf("calibration failed: %v", err)
	}
}

func TestCalibrateThenMeasure(t *testing.T) {
	s := testState()
	defer s.Saver.Close()

	calibrate(t, s)
	if s.Tool() != ToolSelect {
		t.Fatal("calibration completion should return to the select tool")
	}

	if err := s.ActivateCondition("wall"); err != nil {
		t.Fatal(err)
	}
	frame := s.Frame(1)
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.5}))
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.5, Y: 0.5}))
	if err := s.HandleDoubleClick(); err != nil {
		t.Fatal(err)
	}

	got := s.Markups.MeasurementsOnPage(1)
	if len(got) != 1 {
		t.Fatalf("expected 1 measurement, got %d", len(got))
	}
	if math.Abs(got[0].Value-40) > 1e-9 {
		t.Errorf("expected 40 ft, got %v", got[0].Value)
	}
}

func TestCountClickCommitsImmediately(t *testing.T) {
	s := testState()
	defer s.Saver.Close()
	calibrate(t, s)

	if err := s.ActivateCondition("door"); err != nil {
		t.Fatal(err)
	}
	frame := s.Frame(1)
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.4, Y: 0.4}))

	got := s.Markups.MeasurementsOnPage(1)
	if len(got) != 1 || got[0].Value != 1 {
		t.Fatalf("expected one count measurement, got %+v", got)
	}
}

func TestStaleConditionFallsBackToSelect(t *testing.T) {
	s := testState()
	defer s.Saver.Close()

	s.Conditions.Remove("wall")
	err := s.ActivateCondition("wall")
	if !errors.Is(err, condition.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if s.Tool() != ToolSelect {
		t.Error("stale condition must drop back to selection")
	}
}

func TestSelectAndDelete(t *testing.T) {
	s := testState()
	defer s.Saver.Close()
	calibrate(t, s)

	s.ActivateCondition("door")
	frame := s.Frame(1)
	click := frame.ToPixel(page.NormPoint{X: 0.4, Y: 0.4})
	s.HandleClick(click)

	s.SetTool(ToolSelect)
	s.HandleClick(click)
	if s.Markups.Selected() == "" {
		t.Fatal("click on marker should select it")
	}
	if !s.DeleteSelected() {
		t.Fatal("DeleteSelected failed")
	}
	if len(s.Markups.MeasurementsOnPage(1)) != 0 {
		t.Error("measurement not removed")
	}
}

func TestOverlayIncludesPreview(t *testing.T) {
	s := testState()
	defer s.Saver.Close()
	calibrate(t, s)

	s.ActivateCondition("wall")
	frame := s.Frame(1)
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.5}))
	s.HandleMove(frame.ToPixel(page.NormPoint{X: 0.3, Y: 0.5}))

	ov := s.BuildOverlay()
	if len(ov.Polylines) == 0 {
		t.Error("expected a preview polyline for the in-progress gesture")
	}
}

func TestProjectRoundTripThroughState(t *testing.T) {
	s := testState()
	defer s.Saver.Close()
	calibrate(t, s)

	s.ActivateCondition("wall")
	frame := s.Frame(1)
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.5}))
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.5, Y: 0.5}))
	if err := s.HandleDoubleClick(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "job.takeoff")
	if err := s.SaveProject(path); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	restored := NewState(store.NewMemory())
	defer restored.Saver.Close()
	if err := restored.LoadProject(path); err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}

	if len(restored.Markups.MeasurementsOnPage(1)) != 1 {
		t.Error("measurements not restored")
	}
	if _, ok := restored.Cal.RecordFor(1); !ok {
		t.Error("calibration not restored")
	}
	if _, err := restored.Conditions.Condition("wall"); err != nil {
		t.Error("conditions not restored")
	}
}

func TestFirstMeasurementLandsOnPageOne(t *testing.T) {
	s := testState()
	defer s.Saver.Close()
	calibrate(t, s)

	// No SetPage call: a fresh session is already viewing page 1, and the
	// committed record must carry that page.
	s.ActivateCondition("door")
	frame := s.Frame(1)
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.4, Y: 0.4}))

	got := s.Markups.MeasurementsOnPage(1)
	if len(got) != 1 {
		t.Fatalf("expected the measurement on page 1, got %d", len(got))
	}
	if got[0].Page != 1 {
		t.Errorf("expected page 1, got %d", got[0].Page)
	}
}

func TestLoadProjectReplacesOpenSession(t *testing.T) {
	s := testState()
	defer s.Saver.Close()
	calibrate(t, s)

	s.ActivateCondition("door")
	frame := s.Frame(1)
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.4, Y: 0.4}))

	path := filepath.Join(t.TempDir(), "a.takeoff")
	if err := s.SaveProject(path); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	// Open a second session with its own content, then load the first
	// project over it. Nothing from the second session may survive.
	other := NewState(store.NewMemory())
	defer other.Saver.Close()
	other.Conditions.Put(&condition.Condition{ID: "pipe", Name: "Pipe", Type: condition.Linear, Unit: "ft", Color: "#22aa55"})
	other.SetFrame(1, page.FrameFor(geometry.Size{Width: 1000, Height: 800}, 1, 0))
	calibrate(t, other)
	other.ActivateCondition("pipe")
	frame = other.Frame(1)
	other.HandleClick(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.2}))
	other.HandleClick(frame.ToPixel(page.NormPoint{X: 0.6, Y: 0.2}))
	if err := other.HandleDoubleClick(); err != nil {
		t.Fatal(err)
	}

	if err := other.LoadProject(path); err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}

	if _, err := other.Conditions.Condition("pipe"); err == nil {
		t.Error("condition from the replaced session survived the load")
	}
	got := other.Markups.MeasurementsOnPage(1)
	if len(got) != 1 || got[0].ConditionID != "door" {
		t.Fatalf("expected only the loaded project's measurement, got %+v", got)
	}
}

type failingBackend struct {
	store.Memory
}

func (f *failingBackend) SaveMeasurement(*markup.Measurement) error {
	return errors.New("backend offline")
}

func TestFailedSaveRollsBackMeasurement(t *testing.T) {
	s := NewState(&failingBackend{})
	s.Conditions.Put(&condition.Condition{ID: "door", Name: "Door", Type: condition.Count, Unit: "ea", Color: "#aa3355"})
	s.SetFrame(1, page.FrameFor(geometry.Size{Width: 1000, Height: 800}, 1, 0))
	s.Saver.OnMeasurementError = func(m *markup.Measurement, err error) {
		s.RollbackMarkup(m.ID)
	}

	s.ActivateCondition("door")
	frame := s.Frame(1)
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.4, Y: 0.4}))
	s.Saver.Close()

	if got := s.Markups.MeasurementsOnPage(1); len(got) != 0 {
		t.Errorf("optimistic measurement must be rolled back, still have %d", len(got))
	}
}

func TestEscapeDuringCalibrationReturnsToSelect(t *testing.T) {
	s := testState()
	defer s.Saver.Close()

	s.SetTool(ToolCalibrate)
	frame := s.Frame(1)
	s.HandleClick(frame.ToPixel(page.NormPoint{X: 0.1, Y: 0.1}))

	s.HandleEscape() // back to first point
	if s.Tool() != ToolCalibrate {
		t.Fatal("one escape should stay in calibrate mode")
	}
	s.HandleEscape() // exits protocol
	if s.Tool() != ToolSelect {
		t.Error("escaping out of calibration should restore the select tool")
	}
}
