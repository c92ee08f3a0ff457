package hazard

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/kass/go-saferoute/pkg/grid"
	"github.com/kass/go-saferoute/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	points := []models.Point{
		{ID: "a", Hazard: 0.9},
		{ID: "b"},
		{ID: "c"},
	}

	out, err := Apply(points, map[string]float64{"a": 50, "b": 100}, Percent)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[0].Hazard, 1e-12)
	assert.InDelta(t, 1.0, out[1].Hazard, 1e-12)
	assert.Equal(t, 0.0, out[2].Hazard, "missing scores default to zero")

	// Inputs are not mutated
	assert.Equal(t, 0.9, points[0].Hazard)
}

func TestApplyRejectsBadScores(t *testing.T) {
	points := []models.Point{{ID: "a"}}

	testCases := []struct {
		name   string
		scores map[string]float64
		scale  Scale
	}{
		{"above range", map[string]float64{"a": 1.2}, Unit},
		{"below range", map[string]float64{"a": -0.1}, Unit},
		{"nan", map[string]float64{"a": math.NaN()}, Unit},
		{"unknown id", map[string]float64{"zzz": 0.5}, Unit},
		{"empty scale", map[string]float64{"a": 0}, Scale{Min: 1, Max: 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Apply(points, tc.scores, tc.scale)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestNormalize(t *testing.T) {
	n, err := Normalize([]float64{2, 4, 6, 3}, Percent)
	require.NoError(t, err)
	assert.False(t, n.Degenerate)
	assert.Equal(t, 2.0, n.Min)
	assert.Equal(t, 6.0, n.Max)
	assert.InDeltaSlice(t, []float64{0, 50, 100, 25}, n.Values, 1e-9)
}

func TestNormalizeDegenerate(t *testing.T) {
	n, err := Normalize([]float64{7, 7, 7}, Percent)
	require.NoError(t, err)
	assert.True(t, n.Degenerate)
	assert.Equal(t, []float64{0, 0, 0}, n.Values)

	_, err = Denormalize(0, Percent, n.Min, n.Max)
	assert.True(t, errors.Is(err, models.ErrDegenerateNormalization))

	n, err = Normalize(nil, Percent)
	require.NoError(t, err)
	assert.True(t, n.Degenerate)
	assert.Empty(t, n.Values)
}

func TestNormalizeRejectsNonFinite(t *testing.T) {
	_, err := Normalize([]float64{1, math.Inf(1)}, Percent)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestNormalizeRoundTripPreservesOrder(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	totals := make([]float64, 200)
	for i := range totals {
		totals[i] = r.Float64() * 1000
	}

	n, err := Normalize(totals, Percent)
	require.NoError(t, err)

	back := make([]float64, len(totals))
	for i, v := range n.Values {
		assert.True(t, Percent.Contains(v))
		back[i], err = Denormalize(v, Percent, n.Min, n.Max)
		require.NoError(t, err)
		assert.InDelta(t, totals[i], back[i], 1e-6)
	}

	order := func(vs []float64) []int {
		idx := make([]int, len(vs))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return vs[idx[a]] < vs[idx[b]] })
		return idx
	}
	assert.Equal(t, order(totals), order(n.Values))
	assert.Equal(t, order(totals), order(back))
}

func testLattice(t *testing.T) grid.Lattice {
	t.Helper()
	l, err := grid.New(models.BoundingBox{
		BottomLeft: models.Location{Lat: 0, Lon: 0},
		TopRight:   models.Location{Lat: 2, Lon: 2},
	}, 2, 2)
	require.NoError(t, err)
	return l
}

func TestAggregate(t *testing.T) {
	l := testLattice(t)
	coeffs := DefaultCoefficients()

	incidents := []Incident{
		{ID: "1", Location: models.Location{Lat: 0.5, Lon: 0.5}, Injury: 1, Road: 1, Mechanism: 1, TimeOfDay: 1, Surface: 1},
		{ID: "2", Location: models.Location{Lat: 0.2, Lon: 0.7}, Injury: 1},
		{ID: "3", Location: models.Location{Lat: 1.5, Lon: 1.5}, Surface: 1},
		{ID: "4", Location: models.Location{Lat: 9, Lon: 9}, Injury: 1}, // outside
	}

	totals, err := Aggregate(l, incidents, coeffs)
	require.NoError(t, err)
	assert.InDelta(t, 1.35, totals.Total(models.Cell{Row: 0, Col: 0}), 1e-9)
	assert.InDelta(t, 0.10, totals.Total(models.Cell{Row: 1, Col: 1}), 1e-9)
	assert.Equal(t, 0.0, totals.Total(models.Cell{Row: 0, Col: 1}))
	assert.Equal(t, []int{2, 0, 0, 1}, totals.Counts)
}

func TestAggregateRejectsMalformed(t *testing.T) {
	l := testLattice(t)

	_, err := Aggregate(l, []Incident{{ID: "x", Location: models.Location{Lat: 1, Lon: 1}, Injury: 2}}, DefaultCoefficients())
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = Aggregate(l, []Incident{{ID: "y", Location: models.Location{Lat: math.NaN(), Lon: 1}}}, DefaultCoefficients())
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	bad := DefaultCoefficients()
	bad.Road = -1
	_, err = Aggregate(l, nil, bad)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestCellPoints(t *testing.T) {
	l := testLattice(t)
	totals, err := Aggregate(l, []Incident{
		{ID: "1", Location: models.Location{Lat: 0.5, Lon: 0.5}, Injury: 1},
		{ID: "2", Location: models.Location{Lat: 0.5, Lon: 0.5}, Injury: 1},
		{ID: "3", Location: models.Location{Lat: 1.5, Lon: 0.5}, Injury: 1},
	}, DefaultCoefficients())
	require.NoError(t, err)

	points, norm, err := CellPoints(totals, Percent)
	require.NoError(t, err)
	require.Len(t, points, 4)

	assert.Equal(t, "r0c0", points[0].ID)
	assert.Equal(t, &models.Cell{Row: 0, Col: 0}, points[0].Cell)
	assert.InDelta(t, 1.0, points[0].Hazard, 1e-9)
	assert.InDelta(t, 0.5, points[2].Hazard, 1e-9)
	assert.Equal(t, 0.0, points[1].Hazard)
	assert.InDeltaSlice(t, []float64{100, 0, 50, 0}, norm.Values, 1e-9)
}

func TestCellPointsDegenerateIsConstant(t *testing.T) {
	l := testLattice(t)
	totals, err := Aggregate(l, nil, DefaultCoefficients())
	require.NoError(t, err)

	points, norm, err := CellPoints(totals, Percent)
	require.NoError(t, err)
	assert.True(t, norm.Degenerate)
	for _, p := range points {
		assert.Equal(t, 0.0, p.Hazard)
	}
}

func TestSeverityScore(t *testing.T) {
	v, ok := SeverityScore(" High ")
	assert.True(t, ok)
	assert.Equal(t, 0.75, v)

	_, ok = SeverityScore("catastrophic-ish")
	assert.False(t, ok)
}

func TestFusionCombine(t *testing.T) {
	out := ModelOutput{ClusterRank: 2, Clusters: 3, Probability: 0.5, Lighting: 0.5}

	testCases := []struct {
		name string
		mode LightingMode
		want float64
	}{
		// blend = 0.6*1 + 0.4*0.5 = 0.8, darkness = 0.5
		{"penalty", LightingPenalty, 0.9},
		{"multiplier", LightingMultiplier, 0.88},
		{"feature", LightingFeature, 0.9 / 1.2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := DefaultFusion()
			f.LightingMode = tc.mode
			got, err := f.Combine(out)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestFusionClampsAndValidates(t *testing.T) {
	f := DefaultFusion()

	got, err := f.Combine(ModelOutput{ClusterRank: 2, Clusters: 3, Probability: 1, Lighting: 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = f.Combine(ModelOutput{ClusterRank: 0, Clusters: 1, Probability: 0, Lighting: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	_, err = f.Combine(ModelOutput{ClusterRank: 3, Clusters: 3})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.Combine(ModelOutput{Clusters: 3, Probability: 1.5})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	f.LightingMode = "sideways"
	assert.ErrorIs(t, f.Validate(), models.ErrInvalidInput)

	f = Fusion{LightingMode: LightingPenalty}
	assert.ErrorIs(t, f.Validate(), models.ErrInvalidInput)
}

func TestCombineRejectsInvalidFusion(t *testing.T) {
	out := ModelOutput{ClusterRank: 1, Clusters: 3, Probability: 0.5, Lighting: 0.5}

	testCases := []struct {
		name string
		f    Fusion
	}{
		{"all weights zero", Fusion{LightingMode: LightingFeature}},
		{"unknown lighting mode", Fusion{ClusterWeight: 0.6, ProbabilityWeight: 0.4, LightingMode: "sideways"}},
		{"negative weight", Fusion{ClusterWeight: -1, ProbabilityWeight: 1, LightingMode: LightingPenalty}},
		{"nan weight", Fusion{ClusterWeight: math.NaN(), ProbabilityWeight: 1, LightingMode: LightingPenalty}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.f.Combine(out)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
			assert.Equal(t, 0.0, got)
		})
	}
}

func TestValidationReportsFirstProblemInFixedOrder(t *testing.T) {
	f := Fusion{ClusterWeight: -1, ProbabilityWeight: -1, LightingWeight: -1, LightingMode: LightingPenalty}
	points := []models.Point{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	scores := map[string]float64{"c": 7, "a": 5, "b": 6}

	for i := 0; i < 20; i++ {
		var inErr *models.InputError

		require.ErrorAs(t, f.Validate(), &inErr)
		assert.Equal(t, "fusion cluster_weight", inErr.Field)

		_, err := Apply(points, scores, Unit)
		require.ErrorAs(t, err, &inErr)
		assert.Equal(t, "a", inErr.PointID)
	}
}

func TestFusionScores(t *testing.T) {
	scores, err := DefaultFusion().Scores(map[string]ModelOutput{
		"a": {ClusterRank: 0, Clusters: 3, Probability: 0, Lighting: 1},
		"b": {ClusterRank: 1, Clusters: 3, Probability: 0.5, Lighting: 1},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, scores["a"], 1e-9)
	assert.InDelta(t, 0.5, scores["b"], 1e-9)

	_, err = DefaultFusion().Scores(map[string]ModelOutput{"bad": {Clusters: 0}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "bad")
}

func TestParseLightingMode(t *testing.T) {
	m, err := ParseLightingMode("")
	require.NoError(t, err)
	assert.Equal(t, LightingPenalty, m)

	m, err = ParseLightingMode("Feature")
	require.NoError(t, err)
	assert.Equal(t, LightingFeature, m)

	_, err = ParseLightingMode("x")
	assert.Error(t, err)
}
