package geo

import (
	"math/rand"
	"testing"

	"github.com/kass/go-saferoute/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKnownCities(t *testing.T) {
	// San Francisco to Los Angeles is roughly 559 km
	d := Distance(37.7749, -122.4194, 34.0522, -118.2437)
	assert.InDelta(t, 559, d, 5)
	assert.Equal(t, 0.0, Distance(10, 10, 10, 10))
}

func TestPlanarDistance(t *testing.T) {
	var m Planar
	assert.InDelta(t, 1.0, m.Distance(models.Location{Lat: 0, Lon: 0}, models.Location{Lat: 0, Lon: 1}), 1e-12)
	assert.InDelta(t, 1.41421356, m.Distance(models.Location{Lat: 0, Lon: 0}, models.Location{Lat: 1, Lon: 1}), 1e-8)
}

func TestMetricsAreSymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, m := range []Metric{Planar{}, Equirectangular{}, Haversine{}} {
		t.Run(m.Name(), func(t *testing.T) {
			for i := 0; i < 200; i++ {
				a := models.Location{Lat: r.Float64()*160 - 80, Lon: r.Float64()*360 - 180}
				b := models.Location{Lat: r.Float64()*160 - 80, Lon: r.Float64()*360 - 180}
				assert.InDelta(t, m.Distance(a, b), m.Distance(b, a), 1e-6)
				assert.GreaterOrEqual(t, m.Distance(a, b), 0.0)
			}
		})
	}
}

func TestEquirectangularCloseToHaversine(t *testing.T) {
	a := models.Location{Lat: 40.7128, Lon: -74.0060}
	b := models.Location{Lat: 40.7158, Lon: -74.0010}

	eq := Equirectangular{}.Distance(a, b)
	hv := Haversine{}.Distance(a, b)
	assert.InDelta(t, hv, eq, hv*0.01)
}

func TestSearchBoxContainsEveryPointInRadius(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	testCases := []struct {
		metric Metric
		radius float64
		spread float64
	}{
		{Planar{}, 0.5, 1.0},
		{Equirectangular{}, 500, 0.02},
		{Haversine{}, 500, 0.02},
		{Haversine{}, 50000, 1.0},
	}

	for _, tc := range testCases {
		t.Run(tc.metric.Name(), func(t *testing.T) {
			for _, lat := range []float64{0, 45, 70, -80} {
				center := models.Location{Lat: lat, Lon: 10}
				box := tc.metric.SearchBox(center, tc.radius)
				for i := 0; i < 2000; i++ {
					p := models.Location{
						Lat: center.Lat + (r.Float64()*2-1)*tc.spread,
						Lon: center.Lon + (r.Float64()*2-1)*tc.spread*4,
					}
					if tc.metric.Distance(center, p) <= tc.radius {
						require.True(t, box.Contains(p), "point %v within radius but outside box %v", p, box)
					}
				}
			}
		})
	}
}

func TestMetricByName(t *testing.T) {
	m, err := MetricByName("Haversine")
	require.NoError(t, err)
	assert.Equal(t, "haversine", m.Name())

	m, err = MetricByName("")
	require.NoError(t, err)
	assert.Equal(t, "equirectangular", m.Name())

	_, err = MetricByName("manhattan")
	assert.Error(t, err)
}
