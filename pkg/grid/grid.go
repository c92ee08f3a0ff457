// Package grid maps geographic coordinates onto a fixed-resolution lattice
// of rows × columns cells laid over a bounding box.
//
// Row 0 holds the southernmost cells, column 0 the westernmost. A location on
// the northern or eastern edge of the box falls in the last row or column.
package grid

import (
	"fmt"
	"math"

	"github.com/kass/go-saferoute/pkg/models"
)

// Lattice is an immutable rows × cols grid over Bounds
type Lattice struct {
	Bounds models.BoundingBox
	Rows   int
	Cols   int
}

// New validates the dimensions and bounds of a lattice
func New(bounds models.BoundingBox, rows, cols int) (Lattice, error) {
	if rows <= 0 || cols <= 0 {
		return Lattice{}, models.Invalid("", "grid resolution", "rows and cols must be positive, got %dx%d", rows, cols)
	}
	if !bounds.BottomLeft.Finite() || !bounds.TopRight.Finite() {
		return Lattice{}, models.Invalid("", "grid bounds", "coordinates must be finite")
	}
	if bounds.BottomLeft.Lat > bounds.TopRight.Lat || bounds.BottomLeft.Lon > bounds.TopRight.Lon {
		return Lattice{}, models.Invalid("", "grid bounds", "bottom-left corner must not exceed top-right corner")
	}
	return Lattice{Bounds: bounds, Rows: rows, Cols: cols}, nil
}

// LatticeFor builds a lattice over the latitude/longitude extents of locs
func LatticeFor(locs []models.Location, rows, cols int) (Lattice, error) {
	if len(locs) == 0 {
		return Lattice{}, models.Invalid("", "locations", "at least one location is required to derive grid extents")
	}

	bounds := models.BoundingBox{
		BottomLeft: models.Location{Lat: math.Inf(1), Lon: math.Inf(1)},
		TopRight:   models.Location{Lat: math.Inf(-1), Lon: math.Inf(-1)},
	}
	for i, l := range locs {
		if !l.Finite() {
			return Lattice{}, models.Invalid(fmt.Sprintf("#%d", i), "location", "coordinates must be finite")
		}
		bounds.BottomLeft.Lat = math.Min(bounds.BottomLeft.Lat, l.Lat)
		bounds.BottomLeft.Lon = math.Min(bounds.BottomLeft.Lon, l.Lon)
		bounds.TopRight.Lat = math.Max(bounds.TopRight.Lat, l.Lat)
		bounds.TopRight.Lon = math.Max(bounds.TopRight.Lon, l.Lon)
	}

	// Cells need a real size or every centre lands on one coordinate
	bounds.BottomLeft.Lat, bounds.TopRight.Lat = padSpan(bounds.BottomLeft.Lat, bounds.TopRight.Lat)
	bounds.BottomLeft.Lon, bounds.TopRight.Lon = padSpan(bounds.BottomLeft.Lon, bounds.TopRight.Lon)
	return New(bounds, rows, cols)
}

// MinSpan is the smallest extent in degrees LatticeFor gives an axis
const MinSpan = 1e-3

// padSpan widens [lo, hi] symmetrically to at least MinSpan
func padSpan(lo, hi float64) (float64, float64) {
	if hi-lo >= MinSpan {
		return lo, hi
	}
	mid := lo + (hi-lo)/2
	return mid - MinSpan/2, mid + MinSpan/2
}

// Bin returns the cell containing loc, or false when loc is outside the bounds
func (l Lattice) Bin(loc models.Location) (models.Cell, bool) {
	if !loc.Finite() || !l.Bounds.Contains(loc) {
		return models.Cell{}, false
	}
	return models.Cell{
		Row: binIndex(loc.Lat, l.Bounds.BottomLeft.Lat, l.Bounds.TopRight.Lat, l.Rows),
		Col: binIndex(loc.Lon, l.Bounds.BottomLeft.Lon, l.Bounds.TopRight.Lon, l.Cols),
	}, true
}

func binIndex(v, lo, hi float64, n int) int {
	span := hi - lo
	if span <= 0 {
		return 0
	}
	i := int(math.Floor((v - lo) / span * float64(n)))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Contains reports whether the cell lies inside the lattice
func (l Lattice) Contains(c models.Cell) bool {
	return c.Row >= 0 && c.Row < l.Rows && c.Col >= 0 && c.Col < l.Cols
}

// CellID is the stable point identifier of a cell
func (l Lattice) CellID(c models.Cell) string {
	return fmt.Sprintf("r%dc%d", c.Row, c.Col)
}

// Center returns the midpoint of a cell
func (l Lattice) Center(c models.Cell) models.Location {
	latStep := (l.Bounds.TopRight.Lat - l.Bounds.BottomLeft.Lat) / float64(l.Rows)
	lonStep := (l.Bounds.TopRight.Lon - l.Bounds.BottomLeft.Lon) / float64(l.Cols)
	return models.Location{
		Lat: l.Bounds.BottomLeft.Lat + (float64(c.Row)+0.5)*latStep,
		Lon: l.Bounds.BottomLeft.Lon + (float64(c.Col)+0.5)*lonStep,
	}
}

// Cells lists every cell in row-major order
func (l Lattice) Cells() []models.Cell {
	cells := make([]models.Cell, 0, l.Rows*l.Cols)
	for r := 0; r < l.Rows; r++ {
		for c := 0; c < l.Cols; c++ {
			cells = append(cells, models.Cell{Row: r, Col: c})
		}
	}
	return cells
}

// orthogonal offsets in N, E, S, W order
var offsets4 = [4][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

// Neighbors4 returns the in-bounds up/right/down/left neighbours of c
func (l Lattice) Neighbors4(c models.Cell) []models.Cell {
	out := make([]models.Cell, 0, 4)
	for _, off := range offsets4 {
		n := models.Cell{Row: c.Row + off[0], Col: c.Col + off[1]}
		if l.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}
