package geometry

import "math"

// PolylineLength returns the total length of the open polyline through points.
func PolylineLength(points []Point2D) float64 {
	var total float64
	for i := 0; i+1 < len(points); i++ {
		total += points[i].Distance(points[i+1])
	}
	return total
}

// PolygonPerimeter returns the perimeter of the closed polygon, including the
// closing edge from the last vertex back to the first.
func PolygonPerimeter(points []Point2D) float64 {
	if len(points) < 2 {
		return 0
	}
	return PolylineLength(points) + points[len(points)-1].Distance(points[0])
}

// PolygonArea computes the area of a simple polygon using the shoelace
// formula. The result is always non-negative regardless of winding order.
func PolygonArea(points []Point2D) float64 {
	if len(points) < 3 {
		return 0
	}
	var sum float64
	n := len(points)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return math.Abs(sum) / 2
}

// PointInPolygon tests if a point is inside a polygon using ray casting.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := polygon[i], polygon[j]

		// Check if ray from p going right intersects edge pi-pj
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}

	return inside
}

// DistanceToSegment returns the shortest distance from p to the segment a-b.
func DistanceToSegment(p, a, b Point2D) float64 {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := Point2D{X: a.X + t*ab.X, Y: a.Y + t*ab.Y}
	return p.Distance(closest)
}

// DistanceToPolyline returns the shortest distance from p to any segment of
// the open polyline through points.
func DistanceToPolyline(p Point2D, points []Point2D) float64 {
	if len(points) == 0 {
		return math.Inf(1)
	}
	if len(points) == 1 {
		return p.Distance(points[0])
	}
	best := math.Inf(1)
	for i := 0; i+1 < len(points); i++ {
		if d := DistanceToSegment(p, points[i], points[i+1]); d < best {
			best = d
		}
	}
	return best
}

// DistanceToPolygonEdge returns the shortest distance from p to the closed
// polygon's boundary.
func DistanceToPolygonEdge(p Point2D, polygon []Point2D) float64 {
	if len(polygon) < 2 {
		return math.Inf(1)
	}
	best := DistanceToPolyline(p, polygon)
	if d := DistanceToSegment(p, polygon[len(polygon)-1], polygon[0]); d < best {
		best = d
	}
	return best
}
