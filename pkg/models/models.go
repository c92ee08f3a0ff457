package models

import "math"

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Finite reports whether both coordinates are real numbers
func (l Location) Finite() bool {
	return !math.IsNaN(l.Lat) && !math.IsInf(l.Lat, 0) &&
		!math.IsNaN(l.Lon) && !math.IsInf(l.Lon, 0)
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	BottomLeft Location `json:"bottom_left"`
	TopRight   Location `json:"top_right"`
}

// Contains reports whether the location lies inside the box, edges included
func (b BoundingBox) Contains(l Location) bool {
	return l.Lat >= b.BottomLeft.Lat && l.Lat <= b.TopRight.Lat &&
		l.Lon >= b.BottomLeft.Lon && l.Lon <= b.TopRight.Lon
}

// Cell addresses a lattice cell for grid topology
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Point represents an addressable location with its hazard value.
// Hazard is normalized to [0,1]. Cell is only set for grid-derived points.
type Point struct {
	ID       string   `json:"id"`
	Location Location `json:"location"`
	Hazard   float64  `json:"hazard"`
	Cell     *Cell    `json:"cell,omitempty"`
}

// Edge is an undirected connection between two points.
// A is always the lexically smaller identifier.
type Edge struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Distance float64 `json:"distance"`
	Weight   float64 `json:"weight"`
}

// Path is an ordered sequence of point identifiers from start to end
type Path []string

// Segments returns the number of edges traversed by the path
func (p Path) Segments() int {
	if len(p) < 2 {
		return 0
	}
	return len(p) - 1
}

// RouteReport summarizes a single path
type RouteReport struct {
	TotalDistance float64 `json:"totalDistance"`
	TotalRisk     float64 `json:"totalRisk"`
	AvgRisk       float64 `json:"avgRisk"`
	Segments      int     `json:"segments"`
}

// Comparison contrasts the risk-weighted path with the distance-only path
type Comparison struct {
	Safest   RouteReport `json:"safest"`
	Shortest RouteReport `json:"shortest"`

	// Safest minus shortest
	DistanceDelta float64 `json:"distanceDelta"`
	RiskDelta     float64 `json:"riskDelta"`

	// Extra distance paid by the safest path, relative to the shortest one
	ExtraDistancePct float64 `json:"extraDistancePct"`
	// Average risk avoided by the safest path, relative to the shortest one
	RiskReductionPct float64 `json:"riskReductionPct"`

	Band RiskBand `json:"band"`
}
