// Package hazard is the boundary between the external hazard model and the
// routing core. It validates model output, aggregates incident records into
// grid cell scores and fuses model sub-scores with named coefficients.
//
// Everything here is deterministic: identical inputs give identical outputs.
package hazard

import (
	"fmt"
	"math"
	"sort"

	"github.com/kass/go-saferoute/pkg/models"
)

// Scale is the documented numeric range of hazard values produced by a model
type Scale struct {
	Min float64
	Max float64
}

var (
	// Unit is the range every Point hazard is stored in
	Unit = Scale{Min: 0, Max: 1}
	// Percent is the range of grid cell scores
	Percent = Scale{Min: 0, Max: 100}
)

// Contains reports whether v is a real number inside the scale
func (s Scale) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= s.Min && v <= s.Max
}

// ToUnit maps v from the scale onto [0,1]
func (s Scale) ToUnit(v float64) float64 {
	if s.Max == s.Min {
		return 0
	}
	return (v - s.Min) / (s.Max - s.Min)
}

func (s Scale) String() string {
	return fmt.Sprintf("[%g, %g]", s.Min, s.Max)
}

// Apply returns a copy of points with hazards taken from the model output.
// Points absent from scores get hazard 0. Scores outside scale and scores for
// unknown point ids are rejected.
func Apply(points []models.Point, scores map[string]float64, scale Scale) ([]models.Point, error) {
	if scale.Max <= scale.Min {
		return nil, models.Invalid("", "hazard scale", "max must exceed min, got %s", scale)
	}

	known := make(map[string]struct{}, len(points))
	for _, p := range points {
		known[p.ID] = struct{}{}
	}
	// Sorted ids make the reported error deterministic
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v := scores[id]
		if _, ok := known[id]; !ok {
			return nil, models.Invalid(id, "hazard", "score for unknown point")
		}
		if !scale.Contains(v) {
			return nil, models.Invalid(id, "hazard", "%v outside %s", v, scale)
		}
	}

	out := make([]models.Point, len(points))
	for i, p := range points {
		out[i] = p
		out[i].Hazard = 0
		if v, ok := scores[p.ID]; ok {
			out[i].Hazard = scale.ToUnit(v)
		}
	}
	return out, nil
}
