// Package geo provides the distance metrics used to weigh graph edges and
// to size spatial search windows.
//
// Every metric is symmetric and non-negative. Geographic metrics return metres,
// Planar returns coordinate units. A single graph must use a single metric.
package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/kass/go-saferoute/pkg/models"
)

const (
	earthRadius     = 6371.0 // km
	earthRadiusM    = earthRadius * 1000
	metresPerDegree = 111000.0
)

// Metric measures the distance between two locations and bounds the
// coordinate window that can contain every location within a radius.
type Metric interface {
	Name() string
	Distance(a, b models.Location) float64
	// SearchBox returns a box that contains every location whose distance
	// from center is <= radius. It may contain more.
	SearchBox(center models.Location, radius float64) models.BoundingBox
}

// Planar treats latitude and longitude as Euclidean coordinates
type Planar struct{}

func (Planar) Name() string { return "planar" }

func (Planar) Distance(a, b models.Location) float64 {
	return math.Hypot(b.Lat-a.Lat, b.Lon-a.Lon)
}

func (Planar) SearchBox(c models.Location, r float64) models.BoundingBox {
	return models.BoundingBox{
		BottomLeft: models.Location{Lat: c.Lat - r, Lon: c.Lon - r},
		TopRight:   models.Location{Lat: c.Lat + r, Lon: c.Lon + r},
	}
}

// Equirectangular approximates short distances in metres by scaling degrees.
// Longitude is scaled by the cosine of the mean latitude.
type Equirectangular struct{}

func (Equirectangular) Name() string { return "equirectangular" }

func (Equirectangular) Distance(a, b models.Location) float64 {
	meanLat := (a.Lat + b.Lat) / 2 * math.Pi / 180.0
	dLat := (b.Lat - a.Lat) * metresPerDegree
	dLon := (b.Lon - a.Lon) * metresPerDegree * math.Cos(meanLat)
	return math.Hypot(dLat, dLon)
}

func (Equirectangular) SearchBox(c models.Location, r float64) models.BoundingBox {
	dLat := r / metresPerDegree
	// cos(mean latitude) is never smaller than cos of the most polar latitude in the window
	cos := math.Cos(poleward(c.Lat, dLat) * math.Pi / 180.0)
	if cos < 1e-9 {
		return latBand(c, dLat, 180)
	}
	return latBand(c, dLat, dLat/cos)
}

// Haversine is the great-circle distance in metres
type Haversine struct{}

func (Haversine) Name() string { return "haversine" }

func (Haversine) Distance(a, b models.Location) float64 {
	return Distance(a.Lat, a.Lon, b.Lat, b.Lon) * 1000
}

func (Haversine) SearchBox(c models.Location, r float64) models.BoundingBox {
	theta := r / earthRadiusM
	dLat := theta * 180 / math.Pi

	// hav(theta) >= cos²(maxLat)·hav(dLon), so sin(dLon/2) <= sin(theta/2)/cos(maxLat)
	cos := math.Cos(poleward(c.Lat, dLat) * math.Pi / 180.0)
	if cos < 1e-9 || theta >= math.Pi {
		return latBand(c, dLat, 180)
	}
	ratio := math.Sin(theta/2) / cos
	if ratio >= 1 {
		return latBand(c, dLat, 180)
	}
	return latBand(c, dLat, 2*math.Asin(ratio)*180/math.Pi)
}

// poleward returns the largest absolute latitude within lat ± dLat, capped at 90
func poleward(lat, dLat float64) float64 {
	return math.Min(90, math.Abs(lat)+dLat)
}

func latBand(c models.Location, dLat, dLon float64) models.BoundingBox {
	return models.BoundingBox{
		BottomLeft: models.Location{Lat: c.Lat - dLat, Lon: c.Lon - dLon},
		TopRight:   models.Location{Lat: c.Lat + dLat, Lon: c.Lon + dLon},
	}
}

// MetricByName resolves a configured metric name
func MetricByName(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "planar":
		return Planar{}, nil
	case "", "equirectangular":
		return Equirectangular{}, nil
	case "haversine":
		return Haversine{}, nil
	default:
		return nil, fmt.Errorf("unknown distance metric %q", name)
	}
}

// Distance calculates the Haversine distance between two points in kilometers
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}
