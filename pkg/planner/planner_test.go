package planner

import (
	"context"
	"testing"

	"github.com/kass/go-saferoute/pkg/config"
	"github.com/kass/go-saferoute/pkg/hazard"
	"github.com/kass/go-saferoute/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func planarConfig() *config.Config {
	cfg := config.Default()
	cfg.Graph.Metric = "planar"
	cfg.Graph.MaxDistance = 1.0
	return cfg
}

func squarePoints() []models.Point {
	return []models.Point{
		{ID: "P0", Location: models.Location{Lat: 0, Lon: 0}},
		{ID: "P1", Location: models.Location{Lat: 0, Lon: 1}},
		{ID: "P2", Location: models.Location{Lat: 1, Lon: 0}},
		{ID: "P3", Location: models.Location{Lat: 1, Lon: 1}},
	}
}

func newObserved(t *testing.T, cfg *config.Config) (*Planner, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	p, err := New(cfg, zap.New(core))
	require.NoError(t, err)
	return p, logs
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Graph.RiskFactor = -1
	_, err := New(cfg, nil)
	assert.Error(t, err)

	p, err := New(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, *config.Default(), p.Config())
}

func TestPlanPoints(t *testing.T) {
	p, logs := newObserved(t, planarConfig())

	scores := map[string]float64{"P1": 90, "P2": 10}
	plan, err := p.PlanPoints(context.Background(), squarePoints(), scores, hazard.Percent, "P0", "P3")
	require.NoError(t, err)

	assert.Equal(t, models.Path{"P0", "P2", "P3"}, plan.Risk.Path)
	assert.Equal(t, models.Path{"P0", "P1", "P3"}, plan.Shortest.Path)
	assert.InDelta(t, 2.1, plan.Risk.Cost, 1e-9)
	assert.Equal(t, models.BandLow, plan.Comparison.Band)
	assert.InDelta(t, 0.0, plan.Comparison.DistanceDelta, 1e-12)
	assert.Nil(t, plan.Lattice)

	assert.Equal(t, 1, logs.FilterMessage("built point graph").Len())
	assert.Equal(t, 1, logs.FilterMessage("planned routes").Len())
}

func TestPlanPointsRejectsBadScores(t *testing.T) {
	p, _ := newObserved(t, planarConfig())

	_, err := p.PlanPoints(context.Background(), squarePoints(), map[string]float64{"P1": 150}, hazard.Percent, "P0", "P3")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestPlanPointsKeepsExistingHazards(t *testing.T) {
	p, _ := newObserved(t, planarConfig())

	points := squarePoints()
	points[1].Hazard = 0.9
	points[2].Hazard = 0.1
	plan, err := p.PlanPoints(context.Background(), points, nil, hazard.Unit, "P0", "P3")
	require.NoError(t, err)
	assert.Equal(t, models.Path{"P0", "P2", "P3"}, plan.Risk.Path)
}

func TestPlanPointsNoPathIsLogged(t *testing.T) {
	cfg := planarConfig()
	cfg.Graph.MaxDistance = 0.5
	p, logs := newObserved(t, cfg)

	_, err := p.PlanPoints(context.Background(), squarePoints(), nil, hazard.Unit, "P0", "P3")
	assert.ErrorIs(t, err, models.ErrNoPathFound)

	warned := logs.FilterMessage("endpoints are not connected")
	require.Equal(t, 1, warned.Len())
	entry := warned.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, int64(4), entry.ContextMap()["components"])
}

func TestPlanPointsGridAdjacency(t *testing.T) {
	cfg := planarConfig()
	cfg.Graph.Adjacency = config.AdjacencyGrid
	cfg.Grid.Rows = 2
	cfg.Grid.Cols = 2
	p, _ := newObserved(t, cfg)

	points := squarePoints()
	for i := range points {
		points[i].Cell = &models.Cell{Row: int(points[i].Location.Lat), Col: int(points[i].Location.Lon)}
	}
	plan, err := p.PlanPoints(context.Background(), points, nil, hazard.Unit, "P0", "P3")
	require.NoError(t, err)
	assert.Equal(t, 4, plan.Graph.NumEdges())
	assert.Equal(t, 2, plan.Risk.Path.Segments())

	points[0].Cell = nil
	_, err = p.PlanPoints(context.Background(), points, nil, hazard.Unit, "P0", "P3")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func gridConfig() *config.Config {
	cfg := config.Default()
	cfg.Graph.Metric = "planar"
	cfg.Grid.Rows = 3
	cfg.Grid.Cols = 3
	return cfg
}

func TestPlanGridAvoidsHotCell(t *testing.T) {
	p, logs := newObserved(t, gridConfig())

	incidents := []hazard.Incident{
		// extents
		{ID: "sw", Location: models.Location{Lat: 0, Lon: 0}, Surface: 0.1},
		{ID: "ne", Location: models.Location{Lat: 3, Lon: 3}, Surface: 0.1},
		// centre cell
		{ID: "c1", Location: models.Location{Lat: 1.5, Lon: 1.5}, Injury: 1, Road: 1, Mechanism: 1},
		{ID: "c2", Location: models.Location{Lat: 1.4, Lon: 1.6}, Injury: 1, Road: 1, Mechanism: 1},
	}

	plan, err := p.PlanGrid(context.Background(), incidents,
		models.Location{Lat: 0.1, Lon: 0.1}, models.Location{Lat: 2.9, Lon: 2.9})
	require.NoError(t, err)

	require.NotNil(t, plan.Lattice)
	assert.Equal(t, 3, plan.Lattice.Rows)
	require.NotNil(t, plan.Normalized)
	assert.False(t, plan.Normalized.Degenerate)

	assert.Equal(t, "r0c0", plan.Risk.Path[0])
	assert.Equal(t, "r2c2", plan.Risk.Path[len(plan.Risk.Path)-1])
	assert.NotContains(t, plan.Risk.Path, "r1c1")
	assert.Equal(t, 4, plan.Risk.Path.Segments())
	assert.InDelta(t, 4.0, plan.Comparison.Safest.TotalDistance, 1e-9)

	hot, ok := plan.Graph.Point("r1c1")
	require.True(t, ok)
	assert.InDelta(t, 1.0, hot.Hazard, 1e-9)

	assert.Equal(t, 1, logs.FilterMessage("built grid graph").Len())
}

func TestPlanGridColocatedIncidents(t *testing.T) {
	cfg := config.Default()
	cfg.Grid.Rows = 3
	cfg.Grid.Cols = 3
	p, _ := newObserved(t, cfg)

	incidents := []hazard.Incident{
		{ID: "a", Location: models.Location{Lat: 43.7, Lon: -79.4}, Injury: 1},
		{ID: "b", Location: models.Location{Lat: 43.7, Lon: -79.4}, Injury: 1},
	}

	g, l, _, err := p.BuildGrid(incidents)
	require.NoError(t, err)
	assert.Greater(t, l.Bounds.TopRight.Lat, l.Bounds.BottomLeft.Lat)
	assert.Greater(t, l.Bounds.TopRight.Lon, l.Bounds.BottomLeft.Lon)
	require.NotEmpty(t, g.Edges())
	for _, e := range g.Edges() {
		assert.Greater(t, e.Distance, 0.0, "%s-%s", e.A, e.B)
		assert.GreaterOrEqual(t, e.Weight, e.Distance)
	}

	plan, err := p.PlanGrid(context.Background(), incidents,
		models.Location{Lat: 43.6996, Lon: -79.4004}, models.Location{Lat: 43.7004, Lon: -79.3996})
	require.NoError(t, err)
	assert.Equal(t, "r0c0", plan.Risk.Path[0])
	assert.Equal(t, "r2c2", plan.Risk.Path[len(plan.Risk.Path)-1])
	assert.NotContains(t, plan.Risk.Path, "r1c1")
}

func TestPlanGridDegenerateTotals(t *testing.T) {
	cfg := gridConfig()
	cfg.Grid.Rows = 2
	cfg.Grid.Cols = 2
	p, logs := newObserved(t, cfg)

	var incidents []hazard.Incident
	for _, loc := range []models.Location{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 2}, {Lat: 2, Lon: 0}, {Lat: 2, Lon: 2}} {
		incidents = append(incidents, hazard.Incident{ID: "i", Location: loc, Injury: 0.5})
	}

	plan, err := p.PlanGrid(context.Background(), incidents, models.Location{}, models.Location{Lat: 2, Lon: 2})
	require.NoError(t, err)
	assert.True(t, plan.Normalized.Degenerate)
	for _, pt := range plan.Graph.Points() {
		assert.Equal(t, 0.0, pt.Hazard)
	}
	assert.Equal(t, plan.Shortest.Path, plan.Risk.Path)
	assert.Equal(t, 1, logs.FilterMessage("cell totals are all equal, using constant score").Len())
}

func TestPlanGridRejectsOutsideEndpoints(t *testing.T) {
	p, _ := newObserved(t, gridConfig())
	incidents := []hazard.Incident{
		{ID: "a", Location: models.Location{Lat: 0, Lon: 0}, Injury: 1},
		{ID: "b", Location: models.Location{Lat: 1, Lon: 1}, Injury: 1},
	}

	_, err := p.PlanGrid(context.Background(), incidents, models.Location{Lat: 5, Lon: 5}, models.Location{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = p.PlanGrid(context.Background(), nil, models.Location{}, models.Location{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestNearest(t *testing.T) {
	p, _ := newObserved(t, planarConfig())
	g, err := p.BuildPoints(squarePoints(), nil, hazard.Unit)
	require.NoError(t, err)

	id, err := p.Nearest(g, models.Location{Lat: 0.2, Lon: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "P1", id)
}

func TestFuseThenBuild(t *testing.T) {
	outputs := map[string]hazard.ModelOutput{
		"P1": {ClusterRank: 2, Clusters: 3, Probability: 0.9, Lighting: 0},
		"P2": {ClusterRank: 0, Clusters: 3, Probability: 0.1, Lighting: 1},
	}

	p, logs := newObserved(t, planarConfig())
	scores, err := p.Fuse(outputs)
	require.NoError(t, err)
	// 0.6 + 0.36 + a full 0.2 darkness penalty, clamped
	assert.Equal(t, 1.0, scores["P1"])
	assert.InDelta(t, 0.04, scores["P2"], 1e-12)
	assert.Equal(t, 1, logs.FilterMessage("fused model outputs").Len())

	plan, err := p.PlanPoints(context.Background(), squarePoints(), scores, hazard.Unit, "P0", "P3")
	require.NoError(t, err)
	assert.Equal(t, models.Path{"P0", "P2", "P3"}, plan.Risk.Path)

	cfg := planarConfig()
	cfg.Fusion.LightingMode = hazard.LightingFeature
	p, _ = newObserved(t, cfg)
	scores, err = p.Fuse(outputs)
	require.NoError(t, err)
	assert.InDelta(t, (0.96+0.2)/1.2, scores["P1"], 1e-12)

	_, err = p.Fuse(map[string]hazard.ModelOutput{"P1": {ClusterRank: 3, Clusters: 3}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
