package canvas

import (
	"image"
	"image/color"
	"math"

	"plan-takeoff/internal/overlay"
	"plan-takeoff/pkg/colorutil"
	"plan-takeoff/pkg/geometry"
)

// 3x5 pixel patterns for digits 0-9, 5 rows of 3 bits each.
var digitPatterns = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b001, 0b001, 0b001}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

// 3x5 pixel patterns for letters and the symbols measurement labels use.
var letterPatterns = map[rune][5]uint8{
	'A': {0b010, 0b101, 0b111, 0b101, 0b101},
	'B': {0b110, 0b101, 0b110, 0b101, 0b110},
	'C': {0b011, 0b100, 0b100, 0b100, 0b011},
	'D': {0b110, 0b101, 0b101, 0b101, 0b110},
	'E': {0b111, 0b100, 0b110, 0b100, 0b111},
	'F': {0b111, 0b100, 0b110, 0b100, 0b100},
	'G': {0b011, 0b100, 0b101, 0b101, 0b011},
	'H': {0b101, 0b101, 0b111, 0b101, 0b101},
	'I': {0b111, 0b010, 0b010, 0b010, 0b111},
	'J': {0b001, 0b001, 0b001, 0b101, 0b010},
	'K': {0b101, 0b101, 0b110, 0b101, 0b101},
	'L': {0b100, 0b100, 0b100, 0b100, 0b111},
	'M': {0b101, 0b111, 0b101, 0b101, 0b101},
	'N': {0b101, 0b111, 0b111, 0b101, 0b101},
	'O': {0b010, 0b101, 0b101, 0b101, 0b010},
	'P': {0b110, 0b101, 0b110, 0b100, 0b100},
	'Q': {0b010, 0b101, 0b101, 0b111, 0b011},
	'R': {0b110, 0b101, 0b110, 0b101, 0b101},
	'S': {0b011, 0b100, 0b010, 0b001, 0b110},
	'T': {0b111, 0b010, 0b010, 0b010, 0b010},
	'U': {0b101, 0b101, 0b101, 0b101, 0b111},
	'V': {0b101, 0b101, 0b101, 0b101, 0b010},
	'W': {0b101, 0b101, 0b101, 0b111, 0b101},
	'X': {0b101, 0b101, 0b010, 0b101, 0b101},
	'Y': {0b101, 0b101, 0b010, 0b010, 0b010},
	'Z': {0b111, 0b001, 0b010, 0b100, 0b111},
	'+': {0b000, 0b010, 0b111, 0b010, 0b000},
	'-': {0b000, 0b000, 0b111, 0b000, 0b000},
	'.': {0b000, 0b000, 0b000, 0b000, 0b010},
	'/': {0b001, 0b001, 0b010, 0b100, 0b100},
	' ': {0b000, 0b000, 0b000, 0b000, 0b000},
}

func charPattern(ch rune) [5]uint8 {
	if ch >= '0' && ch <= '9' {
		return digitPatterns[ch-'0']
	}
	if ch >= 'a' && ch <= 'z' {
		ch = ch - 'a' + 'A'
	}
	if pattern, ok := letterPatterns[ch]; ok {
		return pattern
	}
	return [5]uint8{}
}

// drawOverlay rasterizes the page overlay. Draw order matters: polygons
// first, then lines and shapes, markers, and labels on top.
func drawOverlay(output *image.RGBA, ov *overlay.PageOverlay) {
	for i := range ov.Polygons {
		drawPolygon(output, &ov.Polygons[i])
	}
	for i := range ov.Rects {
		drawRectShape(output, &ov.Rects[i])
	}
	for i := range ov.Polylines {
		drawPolyline(output, &ov.Polylines[i])
	}
	for i := range ov.Arrows {
		drawArrow(output, &ov.Arrows[i])
	}
	for i := range ov.Markers {
		drawMarker(output, &ov.Markers[i])
	}
	for i := range ov.Labels {
		drawLabel(output, &ov.Labels[i])
	}
}

func drawPolyline(output *image.RGBA, pl *overlay.Polyline) {
	for i := 0; i+1 < len(pl.Points); i++ {
		drawSegment(output, pl.Points[i], pl.Points[i+1], pl.Stroke)
	}
}

// drawSegment draws one stroked line segment, dashed if requested.
func drawSegment(output *image.RGBA, a, b geometry.Point2D, stroke overlay.Stroke) {
	thickness := stroke.Width
	if thickness < 1 {
		thickness = 1
	}
	if !stroke.Dashed {
		drawLine(output, int(a.X), int(a.Y), int(b.X), int(b.Y), stroke.Color, thickness)
		return
	}

	const dashLen, gapLen = 6.0, 4.0
	total := a.Distance(b)
	if total == 0 {
		return
	}
	dx, dy := (b.X-a.X)/total, (b.Y-a.Y)/total
	for pos := 0.0; pos < total; pos += dashLen + gapLen {
		end := pos + dashLen
		if end > total {
			end = total
		}
		drawLine(output,
			int(a.X+dx*pos), int(a.Y+dy*pos),
			int(a.X+dx*end), int(a.Y+dy*end),
			stroke.Color, thickness)
	}
}

// drawPolygon fills a ringed polygon even-odd (holes stay empty) and then
// strokes every ring's outline.
func drawPolygon(output *image.RGBA, poly *overlay.Polygon) {
	if len(poly.Rings) == 0 || len(poly.Rings[0]) < 3 {
		return
	}
	bounds := output.Bounds()

	if poly.Fill.A > 0 {
		minY, maxY := math.Inf(1), math.Inf(-1)
		for _, ring := range poly.Rings {
			for _, p := range ring {
				if p.Y < minY {
					minY = p.Y
				}
				if p.Y > maxY {
					maxY = p.Y
				}
			}
		}

		for y := int(minY); y <= int(maxY); y++ {
			if y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			// Collect edge crossings from every ring; an odd crossing count
			// to the left of x means x is inside.
			var xs []float64
			for _, ring := range poly.Rings {
				n := len(ring)
				for i := 0; i < n; i++ {
					p1, p2 := ring[i], ring[(i+1)%n]
					if (p1.Y <= float64(y) && p2.Y > float64(y)) ||
						(p2.Y <= float64(y) && p1.Y > float64(y)) {
						t := (float64(y) - p1.Y) / (p2.Y - p1.Y)
						xs = append(xs, p1.X+t*(p2.X-p1.X))
					}
				}
			}
			sortFloats(xs)
			for i := 0; i+1 < len(xs); i += 2 {
				for x := int(xs[i]); x <= int(xs[i+1]); x++ {
					if x >= bounds.Min.X && x < bounds.Max.X {
						blendPixel(output, x, y, poly.Fill)
					}
				}
			}
		}
	}

	for _, ring := range poly.Rings {
		n := len(ring)
		for i := 0; i < n; i++ {
			drawSegment(output, ring[i], ring[(i+1)%n], poly.Stroke)
		}
	}
}

func drawRectShape(output *image.RGBA, r *overlay.RectShape) {
	corners := []geometry.Point2D{
		{X: r.Bounds.X, Y: r.Bounds.Y},
		{X: r.Bounds.X + r.Bounds.Width, Y: r.Bounds.Y},
		{X: r.Bounds.X + r.Bounds.Width, Y: r.Bounds.Y + r.Bounds.Height},
		{X: r.Bounds.X, Y: r.Bounds.Y + r.Bounds.Height},
	}
	poly := overlay.Polygon{Rings: [][]geometry.Point2D{corners}, Stroke: r.Stroke, Fill: r.Fill}
	drawPolygon(output, &poly)
}

func drawArrow(output *image.RGBA, a *overlay.Arrow) {
	drawSegment(output, a.From, a.To, a.Stroke)

	// Two barbs at 30 degrees off the shaft.
	length := a.From.Distance(a.To)
	if length == 0 {
		return
	}
	const headLen = 12.0
	angle := math.Atan2(a.From.Y-a.To.Y, a.From.X-a.To.X)
	for _, da := range []float64{math.Pi / 6, -math.Pi / 6} {
		barb := geometry.Point2D{
			X: a.To.X + headLen*math.Cos(angle+da),
			Y: a.To.Y + headLen*math.Sin(angle+da),
		}
		drawSegment(output, a.To, barb, a.Stroke)
	}
}

func drawMarker(output *image.RGBA, m *overlay.CircleMarker) {
	bounds := output.Bounds()
	cx, cy, r := m.Center.X, m.Center.Y, float64(m.Radius)
	r2 := r * r
	strokeW := float64(m.Stroke.Width)
	if strokeW < 1 {
		strokeW = 1
	}
	inner := r - strokeW
	if inner < 0 {
		inner = 0
	}
	inner2 := inner * inner

	for y := int(cy - r - 1); y <= int(cy+r+1); y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := int(cx - r - 1); x <= int(cx+r+1); x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			dx, dy := float64(x)-cx, float64(y)-cy
			dist2 := dx*dx + dy*dy
			if dist2 > r2 {
				continue
			}
			if dist2 >= inner2 {
				output.Set(x, y, m.Stroke.Color)
			} else if m.Fill.A > 0 {
				blendPixel(output, x, y, m.Fill)
			}
		}
	}
}

func drawLabel(output *image.RGBA, l *overlay.Label) {
	const scale = 2
	charWidth := 3 * scale
	charHeight := 5 * scale
	spacing := scale
	labelWidth := len(l.Text)*charWidth + (len(l.Text)-1)*spacing

	startX := int(l.At.X) - labelWidth/2
	startY := int(l.At.Y) - charHeight/2
	bounds := output.Bounds()

	if l.Halo {
		pad := 2
		for y := startY - pad; y < startY+charHeight+pad; y++ {
			for x := startX - pad; x < startX+labelWidth+pad; x++ {
				if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
					blendPixel(output, x, y, colorutil.WithAlpha(colorutil.White, 200))
				}
			}
		}
	}

	for i, ch := range l.Text {
		pattern := charPattern(ch)
		charX := startX + i*(charWidth+spacing)
		for row := 0; row < 5; row++ {
			for c := 0; c < 3; c++ {
				if (pattern[row] & (1 << (2 - c))) == 0 {
					continue
				}
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						px := charX + c*scale + dx
						py := startY + row*scale + dy
						if px >= bounds.Min.X && px < bounds.Max.X &&
							py >= bounds.Min.Y && py < bounds.Max.Y {
							output.Set(px, py, l.Color)
						}
					}
				}
			}
		}
	}
}

// drawLine draws a thick line using Bresenham's algorithm.
func drawLine(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	bounds := output.Bounds()

	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy
	for {
		for t := -thickness / 2; t <= thickness/2; t++ {
			for s := -thickness / 2; s <= thickness/2; s++ {
				px, py := x1+s, y1+t
				if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
					output.Set(px, py, col)
				}
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// blendPixel alpha-blends a color over the existing pixel.
func blendPixel(output *image.RGBA, x, y int, c color.RGBA) {
	if c.A == 255 {
		output.Set(x, y, c)
		return
	}
	existing := output.RGBAAt(x, y)
	alpha := float64(c.A) / 255
	inv := 1 - alpha
	output.Set(x, y, color.RGBA{
		R: uint8(float64(c.R)*alpha + float64(existing.R)*inv),
		G: uint8(float64(c.G)*alpha + float64(existing.G)*inv),
		B: uint8(float64(c.B)*alpha + float64(existing.B)*inv),
		A: 255,
	})
}

func sortFloats(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j] < xs[j-1]; j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}
