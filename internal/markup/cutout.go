package markup

import (
	"fmt"

	"plan-takeoff/internal/calibration"
	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/page"
	"plan-takeoff/pkg/geometry"
)

// CutoutEngine subtracts interior holes from area and volume measurements.
// Cutout values use the same base-frame math as the parent measurement so
// that cutting out the whole footprint nets exactly to zero.
type CutoutEngine struct {
	Conditions condition.Store
}

// AddCutout validates a cutout polygon, computes its value with the parent's
// calibration, attaches it to the measurement and recomputes the net value.
func (ce *CutoutEngine) AddCutout(m *Measurement, polygon []page.NormPoint, cal *calibration.Record) (*Cutout, error) {
	if m.Type != condition.Area && m.Type != condition.Volume {
		return nil, &GeometryError{Reason: fmt.Sprintf("cutouts apply to area and volume measurements, not %s", m.Type)}
	}

	pts, err := ValidatePolygon(polygon)
	if err != nil {
		return nil, err
	}

	base := geometry.Size{Width: cal.BaseWidth, Height: cal.BaseHeight}
	area := geometry.PolygonArea(page.BasePixels(pts, base)) * cal.ScaleFactor * cal.ScaleFactor

	value := area
	if m.Type == condition.Volume {
		c, err := ce.Conditions.Condition(m.ConditionID)
		if err != nil {
			return nil, err
		}
		value = area * c.EffectiveDepth()
	}

	cut := Cutout{
		ID:     fmt.Sprintf("%s-cut-%d", m.ID, len(m.Cutouts)+1),
		Points: pts,
		Value:  value,
	}
	m.Cutouts = append(m.Cutouts, cut)
	recomputeNet(m)
	return &m.Cutouts[len(m.Cutouts)-1], nil
}

// RemoveCutout detaches a cutout by id and recomputes the net value.
func (ce *CutoutEngine) RemoveCutout(m *Measurement, cutID string) bool {
	for i, c := range m.Cutouts {
		if c.ID == cutID {
			m.Cutouts = append(m.Cutouts[:i], m.Cutouts[i+1:]...)
			recomputeNet(m)
			return true
		}
	}
	return false
}

func recomputeNet(m *Measurement) {
	net := m.Value
	for _, c := range m.Cutouts {
		net -= c.Value
	}
	m.NetValue = net
}
