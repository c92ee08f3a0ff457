package hazard

import (
	"math"

	"github.com/kass/go-saferoute/pkg/models"
)

// Normalized is the result of linearly rescaling a set of totals onto a scale
type Normalized struct {
	Values []float64
	// Observed extremes of the input
	Min float64
	Max float64
	// Degenerate is true when every input was equal and Values is constant
	Degenerate bool
}

// Normalize rescales totals linearly so the smallest maps to out.Min and the
// largest to out.Max. When all totals are equal every output is out.Min.
func Normalize(totals []float64, out Scale) (Normalized, error) {
	if out.Max < out.Min {
		return Normalized{}, models.Invalid("", "output scale", "max must not be below min, got %s", out)
	}

	n := Normalized{Values: make([]float64, len(totals))}
	if len(totals) == 0 {
		n.Degenerate = true
		return n, nil
	}

	n.Min, n.Max = math.Inf(1), math.Inf(-1)
	for _, v := range totals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Normalized{}, models.Invalid("", "total", "must be finite, got %v", v)
		}
		n.Min = math.Min(n.Min, v)
		n.Max = math.Max(n.Max, v)
	}

	span := n.Max - n.Min
	if span == 0 {
		n.Degenerate = true
		for i := range n.Values {
			n.Values[i] = out.Min
		}
		return n, nil
	}

	for i, v := range totals {
		n.Values[i] = out.Min + (v-n.Min)/span*(out.Max-out.Min)
	}
	return n, nil
}

// Denormalize maps a rescaled value back onto the range of the input totals.
// It fails with ErrDegenerateNormalization when the range cannot be inverted.
func Denormalize(v float64, out Scale, min, max float64) (float64, error) {
	if out.Max == out.Min || max == min {
		return 0, models.ErrDegenerateNormalization
	}
	return min + (v-out.Min)/(out.Max-out.Min)*(max-min), nil
}

// CellPoints turns aggregated cell totals into one point per cell. Each point
// sits at its cell centre and carries the cell score rescaled to [0,1].
// The returned Normalized holds the scores on the out scale.
func CellPoints(totals CellTotals, out Scale) ([]models.Point, Normalized, error) {
	if out.Max <= out.Min {
		return nil, Normalized{}, models.Invalid("", "output scale", "max must exceed min, got %s", out)
	}

	norm, err := Normalize(totals.Totals, out)
	if err != nil {
		return nil, Normalized{}, err
	}

	l := totals.Lattice
	points := make([]models.Point, 0, len(norm.Values))
	for i, c := range l.Cells() {
		cell := c
		points = append(points, models.Point{
			ID:       l.CellID(c),
			Location: l.Center(c),
			Hazard:   out.ToUnit(norm.Values[i]),
			Cell:     &cell,
		})
	}
	return points, norm, nil
}
