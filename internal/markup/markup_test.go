package markup

import (
	"errors"
	"math"
	"testing"

	"plan-takeoff/internal/calibration"
	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/page"
	"plan-takeoff/pkg/geometry"
)

func testStore() *condition.MemoryStore {
	s := condition.NewMemoryStore()
	s.Put(&condition.Condition{ID: "slab", Name: "Slab", Type: condition.Area, Unit: "sf", Color: "#2266cc"})
	s.Put(&condition.Condition{ID: "fill", Name: "Fill", Type: condition.Volume, Unit: "cy", Color: "#cc6622", Depth: 2})
	return s
}

func testCal() *calibration.Record {
	return &calibration.Record{
		ScaleFactor: 0.1,
		Unit:        "ft",
		BaseWidth:   1000,
		BaseHeight:  800,
	}
}

// Square covering x 0.1..0.3, y 0.1..0.35 of a 1000x800 base frame:
// 200 x 200 px = 40000 px^2 -> 400 sf at 0.1 ft/px.
func squarePoints() []page.NormPoint {
	return []page.NormPoint{
		{X: 0.1, Y: 0.1},
		{X: 0.3, Y: 0.1},
		{X: 0.3, Y: 0.35},
		{X: 0.1, Y: 0.35},
	}
}

func areaMeasurement() *Measurement {
	return &Measurement{
		ID:          "m-1",
		Type:        condition.Area,
		Points:      squarePoints(),
		Value:       400,
		Unit:        "sf",
		ConditionID: "slab",
		Page:        1,
	}
}

func TestCutoutStrictlyDecreasesNet(t *testing.T) {
	ce := &CutoutEngine{Conditions: testStore()}
	m := areaMeasurement()

	hole := []page.NormPoint{
		{X: 0.15, Y: 0.15},
		{X: 0.25, Y: 0.15},
		{X: 0.25, Y: 0.275},
		{X: 0.15, Y: 0.275},
	}
	cut, err := ce.AddCutout(m, hole, testCal())
	if err != nil {
		t.Fatalf("AddCutout failed: %v", err)
	}

	// 100x100 px hole -> 100 sf
	if math.Abs(cut.Value-100) > 1e-9 {
		t.Errorf("expected cutout value 100, got %v", cut.Value)
	}
	if math.Abs(m.Net()-300) > 1e-9 {
		t.Errorf("expected net 300, got %v", m.Net())
	}
	if m.Net() >= m.Value {
		t.Error("net must strictly decrease after a cutout")
	}
}

func TestTwoCutoutsSumLikeOne(t *testing.T) {
	ce := &CutoutEngine{Conditions: testStore()}
	left := []page.NormPoint{
		{X: 0.12, Y: 0.15},
		{X: 0.18, Y: 0.15},
		{X: 0.18, Y: 0.275},
		{X: 0.12, Y: 0.275},
	}
	right := []page.NormPoint{
		{X: 0.22, Y: 0.15},
		{X: 0.28, Y: 0.15},
		{X: 0.28, Y: 0.275},
		{X: 0.22, Y: 0.275},
	}
	merged := []page.NormPoint{
		{X: 0.12, Y: 0.15},
		{X: 0.28, Y: 0.15},
		{X: 0.28, Y: 0.275},
		{X: 0.12, Y: 0.275},
	}

	a := areaMeasurement()
	if _, err := ce.AddCutout(a, left, testCal()); err != nil {
		t.Fatal(err)
	}
	if _, err := ce.AddCutout(a, right, testCal()); err != nil {
		t.Fatal(err)
	}

	b := areaMeasurement()
	if _, err := ce.AddCutout(b, merged, testCal()); err != nil {
		t.Fatal(err)
	}

	// Merged covers a 160x100 px strip, split covers two 60x100 strips;
	// the middle 40x100 strip is the expected difference.
	mid := 40.0 * 100.0 * 0.1 * 0.1
	if diff := a.Net() - b.Net(); math.Abs(diff-mid) > 1e-9 {
		t.Errorf("split vs merged mismatch: %v, want %v", diff, mid)
	}
}

func TestVolumeCutoutUsesDepth(t *testing.T) {
	ce := &CutoutEngine{Conditions: testStore()}
	m := &Measurement{
		ID:          "m-2",
		Type:        condition.Volume,
		Points:      squarePoints(),
		Value:       800, // 400 sf x depth 2
		Unit:        "cy",
		ConditionID: "fill",
		Page:        1,
	}

	hole := []page.NormPoint{
		{X: 0.15, Y: 0.15},
		{X: 0.25, Y: 0.15},
		{X: 0.25, Y: 0.275},
		{X: 0.15, Y: 0.275},
	}
	cut, err := ce.AddCutout(m, hole, testCal())
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cut.Value-200) > 1e-9 {
		t.Errorf("expected volume cutout 200, got %v", cut.Value)
	}
}

func TestCutoutRejectedForLinear(t *testing.T) {
	ce := &CutoutEngine{Conditions: testStore()}
	m := &Measurement{ID: "m-3", Type: condition.Linear, ConditionID: "slab"}

	_, err := ce.AddCutout(m, squarePoints(), testCal())
	var ge *GeometryError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GeometryError, got %v", err)
	}
}

func TestRemoveCutoutRestoresNet(t *testing.T) {
	ce := &CutoutEngine{Conditions: testStore()}
	m := areaMeasurement()

	cut, err := ce.AddCutout(m, []page.NormPoint{
		{X: 0.15, Y: 0.15},
		{X: 0.25, Y: 0.15},
		{X: 0.25, Y: 0.275},
		{X: 0.15, Y: 0.275},
	}, testCal())
	if err != nil {
		t.Fatal(err)
	}
	if !ce.RemoveCutout(m, cut.ID) {
		t.Fatal("RemoveCutout failed")
	}
	if math.Abs(m.Net()-m.Value) > 1e-9 {
		t.Errorf("net should equal gross after removing the only cutout, got %v", m.Net())
	}
}

func TestIndexSelectionIsExclusive(t *testing.T) {
	x := NewIndex()
	m1 := areaMeasurement()
	m1.ID = ""
	x.AddMeasurement(m1)
	m2 := areaMeasurement()
	m2.ID = ""
	x.AddMeasurement(m2)

	if !x.Select(m1.ID) {
		t.Fatal("Select failed")
	}
	if !x.Select(m2.ID) {
		t.Fatal("Select failed")
	}
	if got := x.Selected(); got != m2.ID {
		t.Errorf("expected %s selected, got %q", m2.ID, got)
	}
	x.ClearSelection()
	if x.Selected() != "" {
		t.Error("ClearSelection left a selection")
	}
}

func TestHitTestAfterDelete(t *testing.T) {
	x := NewIndex()
	m := areaMeasurement()
	x.AddMeasurement(m)

	frame := page.FrameFor(geometry.Size{Width: 1000, Height: 800}, 1, 0)
	inside := frame.ToPixel(page.NormPoint{X: 0.2, Y: 0.2})

	if got := x.HitTest(1, inside, frame, 5); got != m.ID {
		t.Fatalf("expected hit on %s, got %q", m.ID, got)
	}

	x.Select(m.ID)
	if !x.Delete(m.ID) {
		t.Fatal("Delete failed")
	}
	if got := x.HitTest(1, inside, frame, 5); got != "" {
		t.Errorf("deleted measurement still hit: %q", got)
	}
	if x.Selected() != "" {
		t.Error("deleting the selected markup must clear selection")
	}
}

func TestHitTestLinearTolerance(t *testing.T) {
	x := NewIndex()
	m := &Measurement{
		ID:   "m-line",
		Type: condition.Linear,
		Points: []page.NormPoint{
			{X: 0.1, Y: 0.5},
			{X: 0.5, Y: 0.5},
		},
		Value:       40,
		Unit:        "ft",
		ConditionID: "slab",
		Page:        1,
	}
	x.AddMeasurement(m)

	frame := page.FrameFor(geometry.Size{Width: 1000, Height: 800}, 1, 0)

	// 3 px above the segment, within a 5 px tolerance.
	near := frame.ToPixel(page.NormPoint{X: 0.3, Y: 0.5})
	near.Y -= 3
	if got := x.HitTest(1, near, frame, 5); got != m.ID {
		t.Errorf("expected near-miss hit, got %q", got)
	}

	far := frame.ToPixel(page.NormPoint{X: 0.3, Y: 0.5})
	far.Y -= 20
	if got := x.HitTest(1, far, frame, 5); got != "" {
		t.Errorf("expected no hit at 20 px, got %q", got)
	}
}

func TestHitTestIgnoresOtherPages(t *testing.T) {
	x := NewIndex()
	m := areaMeasurement()
	m.Page = 2
	x.AddMeasurement(m)

	frame := page.FrameFor(geometry.Size{Width: 1000, Height: 800}, 1, 0)
	inside := frame.ToPixel(page.NormPoint{X: 0.2, Y: 0.2})

	if got := x.HitTest(1, inside, frame, 5); got != "" {
		t.Errorf("measurement on page 2 hit on page 1: %q", got)
	}
}

func TestValidatePolygonDropsClosingClick(t *testing.T) {
	pts := append(squarePoints(), squarePoints()[0])
	out, err := ValidatePolygon(pts)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 4 {
		t.Errorf("expected 4 points after dropping closing click, got %d", len(out))
	}

	if _, err := ValidatePolygon(pts[:2]); err == nil {
		t.Error("expected rejection for 2-point polygon")
	}
}

func TestTotalsByCondition(t *testing.T) {
	x := NewIndex()
	a := areaMeasurement()
	a.ID = ""
	x.AddMeasurement(a)

	b := areaMeasurement()
	b.ID = ""
	b.Cutouts = []Cutout{{ID: "c", Value: 100}}
	b.NetValue = 300
	x.AddMeasurement(b)

	totals := x.TotalsByCondition()
	if math.Abs(totals["slab"]-700) > 1e-9 {
		t.Errorf("expected slab total 700, got %v", totals["slab"])
	}
}
