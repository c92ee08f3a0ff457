package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kass/go-saferoute/pkg/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareJSON = `[
	{"id": "P0", "lat": 0, "lon": 0, "hazard": 0},
	{"id": "P1", "lat": 0, "lon": 1, "hazard": 0.9},
	{"id": "P2", "lat": 1, "lon": 0, "hazard": 0.1},
	{"id": "P3", "lat": 1, "lon": 1, "hazard": 0},
	{"id": "Z", "lat": 9, "lon": 9, "hazard": 0}
]`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default; flag variables and their
// changed state otherwise carry over from one Execute to the next
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writePoints(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "square.json")
	require.NoError(t, os.WriteFile(path, []byte(squareJSON), 0644))
	return path
}

func TestRouteCommand(t *testing.T) {
	points := writePoints(t)

	out, err := execute(t, "route", "--points", points, "--start", "P0", "--end-at", "0.9,0.9",
		"--metric", "planar", "--max-distance", "1", "--json")
	require.NoError(t, err)

	var got routeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, models.Path{"P0", "P2", "P3"}, got.Safest)
	assert.Equal(t, models.Path{"P0", "P1", "P3"}, got.Shortest)
	assert.InDelta(t, 2.1, got.RiskCost, 1e-9)
	assert.Equal(t, models.BandLow, got.Comparison.Band)
	assert.Equal(t, 2, got.Graph.Components)

	_, err = execute(t, "route", "--points", points, "--start", "P0", "--end-at", "9,9",
		"--metric", "planar", "--max-distance", "1")
	assert.ErrorIs(t, err, models.ErrNoPathFound)
}

func TestStatsCommand(t *testing.T) {
	out, err := execute(t, "stats", "--points", writePoints(t), "--metric", "planar", "--max-distance", "1.5", "--json")
	require.NoError(t, err)

	var got struct {
		Points         int   `json:"points"`
		Edges          int   `json:"edges"`
		Components     int   `json:"components"`
		ComponentSizes []int `json:"componentSizes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 5, got.Points)
	assert.Equal(t, 6, got.Edges)
	assert.Equal(t, []int{4, 1}, got.ComponentSizes)
}

func TestParseHelpers(t *testing.T) {
	loc, err := parseLocation("43.65, -79.38")
	require.NoError(t, err)
	assert.Equal(t, models.Location{Lat: 43.65, Lon: -79.38}, loc)

	_, err = parseLocation("43.65")
	assert.Error(t, err)
	_, err = parseLocation("north,west")
	assert.Error(t, err)

	box, err := parseBox("1,2,3,4")
	require.NoError(t, err)
	assert.Equal(t, models.Location{Lat: 3, Lon: 4}, box.TopRight)

	_, err = parseScale("basis-points")
	assert.Error(t, err)
}

func TestAbbreviate(t *testing.T) {
	assert.Equal(t, "a > b", abbreviate(models.Path{"a", "b"}, 2))
	assert.Equal(t, "a > ... (2 more) > d", abbreviate(models.Path{"a", "b", "c", "d"}, 1))
}

func TestGridOverridesDoNotLeak(t *testing.T) {
	incidents := filepath.Join(t.TempDir(), "incidents.json")
	require.NoError(t, os.WriteFile(incidents, []byte(`[
		{"id": "a", "lat": 0, "lon": 0, "surface": 1},
		{"id": "b", "lat": 2, "lon": 2, "surface": 0.5}
	]`), 0644))

	out, err := execute(t, "grid", "--incidents", incidents, "--from", "0,0", "--to", "2,2",
		"--rows", "2", "--cols", "2", "--metric", "planar")
	require.NoError(t, err)
	assert.Contains(t, out, "Grid 2x2, 2 incidents")
	assert.Equal(t, 20, cfg.Grid.Rows)
	assert.Equal(t, 20, cfg.Grid.Cols)

	// Without --rows the next run is back on the configured lattice
	out, err = execute(t, "grid", "--incidents", incidents, "--from", "0,0", "--to", "2,2", "--metric", "planar")
	require.NoError(t, err)
	assert.Contains(t, out, "Grid 20x20, 2 incidents")
}

func TestBenchCommand(t *testing.T) {
	out, err := execute(t, "bench", "--points", writePoints(t), "--metric", "planar",
		"--max-distance", "1.5", "--queries", "20", "--workers", "3", "--json")
	require.NoError(t, err)

	var got BenchmarkResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 5, got.Points)
	assert.Equal(t, 6, got.Edges)
	assert.Equal(t, 20, got.TotalQueries)
	// Z is isolated so every pair touching it has no path
	assert.Greater(t, got.NoPath, 0)
	assert.Less(t, got.NoPath, 20)
	assert.LessOrEqual(t, got.MinDuration, got.MaxDuration)
}

func TestRouteCommandFusesModelOutput(t *testing.T) {
	model := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(model, []byte(`{
		"P1": {"cluster_rank": 2, "clusters": 3, "probability": 0.9, "lighting": 1},
		"P2": {"cluster_rank": 0, "clusters": 3, "probability": 0.1, "lighting": 1}
	}`), 0644))

	out, err := execute(t, "route", "--points", writePoints(t), "--model", model, "--start", "P0", "--end", "P3",
		"--metric", "planar", "--max-distance", "1", "--json")
	require.NoError(t, err)

	var got routeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, models.Path{"P0", "P2", "P3"}, got.Safest)
	// P2 fuses to 0.4*0.1 = 0.04, so each segment costs 1.02
	assert.InDelta(t, 2.04, got.RiskCost, 1e-9)
}

func TestGridCommand(t *testing.T) {
	incidents := filepath.Join(t.TempDir(), "incidents.json")
	require.NoError(t, os.WriteFile(incidents, []byte(`[
		{"id": "sw", "lat": 0, "lon": 0, "surface": 0.1},
		{"id": "ne", "lat": 3, "lon": 3, "surface": 0.1},
		{"id": "c1", "lat": 1.5, "lon": 1.5, "severity": "high", "road": 1, "mechanism": 1},
		{"id": "c2", "lat": 1.4, "lon": 1.6, "severity": "high", "road": 1, "mechanism": 1}
	]`), 0644))

	out, err := execute(t, "grid", "--incidents", incidents, "--from", "0.1,0.1", "--to", "2.9,2.9",
		"--rows", "3", "--cols", "3", "--metric", "planar")
	require.NoError(t, err)
	assert.Contains(t, out, "Hottest cell on safest route: r0c0")
	assert.Contains(t, out, "(incident total 0.01)")
}
