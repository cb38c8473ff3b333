package geometry

import (
	"math"
	"testing"
)

func TestPolygonAreaSquare(t *testing.T) {
	square := []Point2D{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

	area := PolygonArea(square)
	expected := 100.0

	if math.Abs(area-expected) > 1e-10 {
		t.Errorf("Area failed: expected %v, got %v", expected, area)
	}
}

func TestPolygonAreaWindingIndependent(t *testing.T) {
	cw := []Point2D{{0, 0}, {0, 10}, {10, 10}, {10, 0}}
	ccw := []Point2D{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

	if math.Abs(PolygonArea(cw)-PolygonArea(ccw)) > 1e-10 {
		t.Errorf("Area depends on winding: cw=%v ccw=%v", PolygonArea(cw), PolygonArea(ccw))
	}
}

func TestPolygonAreaTriangle(t *testing.T) {
	tri := []Point2D{{0, 0}, {4, 0}, {0, 3}}

	area := PolygonArea(tri)
	expected := 6.0

	if math.Abs(area-expected) > 1e-10 {
		t.Errorf("Area failed: expected %v, got %v", expected, area)
	}
}

func TestPolygonAreaDegenerate(t *testing.T) {
	if PolygonArea(nil) != 0 {
		t.Error("expected zero area for nil points")
	}
	if PolygonArea([]Point2D{{1, 1}, {2, 2}}) != 0 {
		t.Error("expected zero area for two points")
	}
}

func TestPolylineLength(t *testing.T) {
	line := []Point2D{{0, 0}, {3, 0}, {3, 4}}

	length := PolylineLength(line)
	expected := 7.0

	if math.Abs(length-expected) > 1e-10 {
		t.Errorf("Length failed: expected %v, got %v", expected, length)
	}
}

func TestPolygonPerimeter(t *testing.T) {
	tri := []Point2D{{0, 0}, {3, 0}, {0, 4}}

	perimeter := PolygonPerimeter(tri)
	expected := 12.0 // 3 + 5 + 4

	if math.Abs(perimeter-expected) > 1e-10 {
		t.Errorf("Perimeter failed: expected %v, got %v", expected, perimeter)
	}
}

func TestPointInPolygon(t *testing.T) {
	square := []Point2D{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

	if !PointInPolygon(Point2D{5, 5}, square) {
		t.Error("center point should be inside")
	}
	if PointInPolygon(Point2D{15, 5}, square) {
		t.Error("outside point should not be inside")
	}
}

func TestDistanceToSegment(t *testing.T) {
	a := Point2D{0, 0}
	b := Point2D{10, 0}

	cases := []struct {
		p    Point2D
		want float64
	}{
		{Point2D{5, 3}, 3},   // perpendicular foot inside segment
		{Point2D{-4, 3}, 5},  // before start, distance to a
		{Point2D{13, 4}, 5},  // past end, distance to b
		{Point2D{10, 0}, 0},  // on endpoint
	}

	for _, tc := range cases {
		got := DistanceToSegment(tc.p, a, b)
		if math.Abs(got-tc.want) > 1e-10 {
			t.Errorf("DistanceToSegment(%v): expected %v, got %v", tc.p, tc.want, got)
		}
	}
}

func TestDistanceToSegmentDegenerate(t *testing.T) {
	a := Point2D{2, 2}
	got := DistanceToSegment(Point2D{5, 6}, a, a)
	if math.Abs(got-5) > 1e-10 {
		t.Errorf("expected distance to point 5, got %v", got)
	}
}

func TestDistanceToPolygonEdge(t *testing.T) {
	square := []Point2D{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

	// Point near the closing edge (left side)
	got := DistanceToPolygonEdge(Point2D{-2, 5}, square)
	if math.Abs(got-2) > 1e-10 {
		t.Errorf("expected 2, got %v", got)
	}
}

func TestAffineInverseRoundTrip(t *testing.T) {
	tr := Translation(3, -7).Compose(Scaling(2, 0.5))
	inv, ok := tr.Inverse()
	if !ok {
		t.Fatal("transform should be invertible")
	}

	p := Point2D{1.5, -2.25}
	back := inv.Apply(tr.Apply(p))

	if math.Abs(back.X-p.X) > 1e-10 || math.Abs(back.Y-p.Y) > 1e-10 {
		t.Errorf("round trip failed: expected %v, got %v", p, back)
	}
}
