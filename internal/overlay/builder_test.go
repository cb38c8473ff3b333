package overlay

import (
	"testing"

	"plan-takeoff/internal/capture"
	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/markup"
	"plan-takeoff/internal/page"
	"plan-takeoff/pkg/colorutil"
	"plan-takeoff/pkg/geometry"
)

func testBuilder() (*Builder, *condition.MemoryStore, *markup.Index) {
	conds := condition.NewMemoryStore()
	conds.Put(&condition.Condition{ID: "slab", Name: "Slab", Type: condition.Area, Unit: "sf", Color: "#2266cc"})
	conds.Put(&condition.Condition{ID: "door", Name: "Door", Type: condition.Count, Unit: "ea", Color: "#cc2222"})
	idx := markup.NewIndex()
	return &Builder{Conditions: conds, Index: idx}, conds, idx
}

func testFrame() page.Frame {
	return page.FrameFor(geometry.Size{Width: 1000, Height: 800}, 1, 0)
}

func squareMeasurement() *markup.Measurement {
	return &markup.Measurement{
		Type: condition.Area,
		Points: []page.NormPoint{
			{X: 0.1, Y: 0.1},
			{X: 0.3, Y: 0.1},
			{X: 0.3, Y: 0.35},
			{X: 0.1, Y: 0.35},
		},
		Value:       400,
		Unit:        "sf",
		ConditionID: "slab",
		Page:        1,
	}
}

func TestBuildRendersOnlyCurrentPage(t *testing.T) {
	b, _, idx := testBuilder()
	m1 := squareMeasurement()
	idx.AddMeasurement(m1)
	m2 := squareMeasurement()
	m2.Page = 2
	idx.AddMeasurement(m2)

	ov := b.Build(1, testFrame())
	if len(ov.Polygons) != 1 {
		t.Fatalf("expected 1 polygon, got %d", len(ov.Polygons))
	}
	if ov.Polygons[0].ID != m1.ID {
		t.Errorf("wrong measurement rendered: %s", ov.Polygons[0].ID)
	}
}

func TestLiveColorResolution(t *testing.T) {
	b, conds, idx := testBuilder()
	idx.AddMeasurement(squareMeasurement())

	before := b.Build(1, testFrame())
	conds.SetColor("slab", "#00ff00")
	after := b.Build(1, testFrame())

	want := colorutil.ParseHex("#00ff00")
	if after.Polygons[0].Stroke.Color != want {
		t.Error("color edit did not propagate to the rebuilt overlay")
	}
	if before.Polygons[0].Stroke.Color == after.Polygons[0].Stroke.Color {
		t.Error("expected stroke color to change between builds")
	}
}

func TestDeletedConditionFallsBackToGray(t *testing.T) {
	b, conds, idx := testBuilder()
	idx.AddMeasurement(squareMeasurement())
	conds.Remove("slab")

	ov := b.Build(1, testFrame())
	if len(ov.Polygons) != 1 {
		t.Fatal("measurement must still render after its condition is deleted")
	}
	if ov.Polygons[0].Stroke.Color != colorutil.Gray {
		t.Error("expected gray fallback for orphaned measurement")
	}
}

func TestCutoutsBecomeInnerRings(t *testing.T) {
	b, _, idx := testBuilder()
	m := squareMeasurement()
	m.Cutouts = []markup.Cutout{{
		ID: "c1",
		Points: []page.NormPoint{
			{X: 0.15, Y: 0.15},
			{X: 0.25, Y: 0.15},
			{X: 0.25, Y: 0.275},
		},
		Value: 50,
	}}
	m.NetValue = 350
	idx.AddMeasurement(m)

	ov := b.Build(1, testFrame())
	if got := len(ov.Polygons[0].Rings); got != 2 {
		t.Fatalf("expected outer ring plus 1 hole, got %d rings", got)
	}
	if ov.Labels[0].Text != "350.0 sf" {
		t.Errorf("label should show the net value, got %q", ov.Labels[0].Text)
	}
}

func TestPerimeterAppendedToAreaLabel(t *testing.T) {
	b, _, idx := testBuilder()
	m := squareMeasurement()
	m.PerimeterValue = 80
	idx.AddMeasurement(m)

	ov := b.Build(1, testFrame())
	if got := ov.Labels[0].Text; got != "400.0 sf (80.0 perim)" {
		t.Errorf("label should include the perimeter, got %q", got)
	}

	plain := squareMeasurement()
	plain.Page = 2
	idx.AddMeasurement(plain)
	ov = b.Build(2, testFrame())
	if got := ov.Labels[0].Text; got != "400.0 sf" {
		t.Errorf("label without perimeter tracking should stay plain, got %q", got)
	}
}

func TestSelectionAddsHighlight(t *testing.T) {
	b, _, idx := testBuilder()
	m := squareMeasurement()
	idx.AddMeasurement(m)

	plain := b.Build(1, testFrame())
	idx.Select(m.ID)
	selected := b.Build(1, testFrame())

	if len(selected.Polygons) != len(plain.Polygons)+1 {
		t.Error("selection should add a highlight polygon")
	}
	if selected.Polygons[0].Stroke.Color != SelectionColor {
		t.Error("highlight must use the selection color and sit under the shape")
	}
}

func TestCountMarker(t *testing.T) {
	b, _, idx := testBuilder()
	idx.AddMeasurement(&markup.Measurement{
		Type:        condition.Count,
		Points:      []page.NormPoint{{X: 0.5, Y: 0.5}},
		Value:       1,
		Unit:        "ea",
		ConditionID: "door",
		Page:        1,
	})

	ov := b.Build(1, testFrame())
	if len(ov.Markers) != 1 {
		t.Fatalf("expected 1 marker, got %d", len(ov.Markers))
	}
	center := testFrame().ToPixel(page.NormPoint{X: 0.5, Y: 0.5})
	if ov.Markers[0].Center != center {
		t.Errorf("marker at %+v, want %+v", ov.Markers[0].Center, center)
	}
}

func TestCapturePreviewIsDashed(t *testing.T) {
	b, _, _ := testBuilder()
	snap := capture.Snapshot{
		Active:      true,
		Type:        condition.Linear,
		ConditionID: "slab",
		Points:      []page.NormPoint{{X: 0.1, Y: 0.5}},
		Preview:     page.NormPoint{X: 0.3, Y: 0.5},
		HasPreview:  true,
	}

	ov := b.BuildWithGesture(1, testFrame(), Gesture{Capture: snap})
	if len(ov.Polylines) != 1 {
		t.Fatalf("expected 1 preview polyline, got %d", len(ov.Polylines))
	}
	if !ov.Polylines[0].Stroke.Dashed {
		t.Error("preview line must be dashed")
	}
}

func TestCalibrationRubberBand(t *testing.T) {
	b, _, _ := testBuilder()
	first := page.NormPoint{X: 0.1, Y: 0.1}
	cursor := page.NormPoint{X: 0.3, Y: 0.1}

	ov := b.BuildWithGesture(1, testFrame(), Gesture{CalFirst: &first, CalCursor: &cursor})
	if len(ov.Polylines) != 1 || !ov.Polylines[0].Stroke.Dashed {
		t.Error("expected a dashed calibration rubber band")
	}
	if len(ov.Markers) != 1 {
		t.Error("expected a marker for the first calibration point")
	}
}
