package hazard

import (
	"math"
	"strings"

	"github.com/kass/go-saferoute/pkg/grid"
	"github.com/kass/go-saferoute/pkg/models"
)

// Incident is one recorded event with its component scores already encoded in [0,1]
type Incident struct {
	ID        string          `json:"id"`
	Location  models.Location `json:"location"`
	Injury    float64         `json:"injury"`
	Road      float64         `json:"road"`
	Mechanism float64         `json:"mechanism"`
	TimeOfDay float64         `json:"time_of_day"`
	Surface   float64         `json:"surface"`
}

// Coefficients weigh the incident components. Each is independently tunable
// and must be non-negative; they are not required to sum to one.
type Coefficients struct {
	Injury    float64 `yaml:"injury"`
	Road      float64 `yaml:"road"`
	Mechanism float64 `yaml:"mechanism"`
	TimeOfDay float64 `yaml:"time_of_day"`
	Surface   float64 `yaml:"surface"`
}

// DefaultCoefficients sum to 1 so a single incident scores at most 1
func DefaultCoefficients() Coefficients {
	return Coefficients{
		Injury:    0.35,
		Road:      0.20,
		Mechanism: 0.20,
		TimeOfDay: 0.15,
		Surface:   0.10,
	}
}

// Validate rejects negative or non-finite coefficients
func (c Coefficients) Validate() error {
	named := []struct {
		name string
		v    float64
	}{
		{"injury", c.Injury},
		{"road", c.Road},
		{"mechanism", c.Mechanism},
		{"time_of_day", c.TimeOfDay},
		{"surface", c.Surface},
	}
	for _, n := range named {
		if math.IsNaN(n.v) || math.IsInf(n.v, 0) || n.v < 0 {
			return models.Invalid("", "coefficient "+n.name, "must be a non-negative real, got %v", n.v)
		}
	}
	return nil
}

// Score is the weighted combination of an incident's components
func (c Coefficients) Score(in Incident) float64 {
	return c.Injury*in.Injury +
		c.Road*in.Road +
		c.Mechanism*in.Mechanism +
		c.TimeOfDay*in.TimeOfDay +
		c.Surface*in.Surface
}

func (in Incident) validate() error {
	if !in.Location.Finite() {
		return models.Invalid(in.ID, "location", "coordinates must be finite")
	}
	components := []struct {
		name string
		v    float64
	}{
		{"injury", in.Injury},
		{"road", in.Road},
		{"mechanism", in.Mechanism},
		{"time_of_day", in.TimeOfDay},
		{"surface", in.Surface},
	}
	for _, c := range components {
		if !Unit.Contains(c.v) {
			return models.Invalid(in.ID, c.name, "%v outside %s", c.v, Unit)
		}
	}
	return nil
}

// severityScores encodes the labels used by incident feeds
var severityScores = map[string]float64{
	"none":    0,
	"low":     0.25,
	"minor":   0.25,
	"medium":  0.5,
	"major":   0.75,
	"high":    0.75,
	"fatal":   1,
	"extreme": 1,
}

// SeverityScore maps a severity label onto [0,1]
func SeverityScore(label string) (float64, bool) {
	v, ok := severityScores[strings.ToLower(strings.TrimSpace(label))]
	return v, ok
}

// CellTotals holds the summed incident score of every lattice cell in row-major order
type CellTotals struct {
	Lattice grid.Lattice
	Totals  []float64
	Counts  []int
}

// Total returns the summed score of a cell
func (t CellTotals) Total(c models.Cell) float64 {
	return t.Totals[c.Row*t.Lattice.Cols+c.Col]
}

// Aggregate sums the weighted incident scores per cell. Incidents outside the
// lattice bounds are ignored; malformed incidents are rejected.
func Aggregate(l grid.Lattice, incidents []Incident, coeffs Coefficients) (CellTotals, error) {
	if err := coeffs.Validate(); err != nil {
		return CellTotals{}, err
	}

	totals := CellTotals{
		Lattice: l,
		Totals:  make([]float64, l.Rows*l.Cols),
		Counts:  make([]int, l.Rows*l.Cols),
	}
	for _, in := range incidents {
		if err := in.validate(); err != nil {
			return CellTotals{}, err
		}
		c, ok := l.Bin(in.Location)
		if !ok {
			continue
		}
		i := c.Row*l.Cols + c.Col
		totals.Totals[i] += coeffs.Score(in)
		totals.Counts[i]++
	}
	return totals, nil
}
