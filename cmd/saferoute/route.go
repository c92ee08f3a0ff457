package main

import (
	"fmt"

	"github.com/kass/go-saferoute/pkg/dataset"
	"github.com/kass/go-saferoute/pkg/graph"
	"github.com/kass/go-saferoute/pkg/hazard"
	"github.com/kass/go-saferoute/pkg/planner"
	"github.com/spf13/cobra"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Compare the safest and shortest route between two points",
	Long: `Builds a graph over a point set and runs a risk-weighted and a
distance-only search between two points. Endpoints are point ids
(--start/--end) or coordinates snapped to the nearest point (--start-at/--end-at).`,
	RunE: runRoute,
}

var (
	routeSource  pointSource
	scoresFile   string
	scoresScale  string
	modelFile    string
	startID      string
	endID        string
	startAt      string
	endAt        string
	maxDistance  float64
	metricName   string
	riskFactor   float64
	adjacencyArg string
)

func init() {
	routeCmd.Flags().StringVarP(&routeSource.file, "points", "p", "", "Point file (.json or .gob)")
	routeCmd.Flags().StringVar(&routeSource.box, "box", "", "PostGIS box minLat,minLon,maxLat,maxLon")
	routeCmd.Flags().StringVarP(&scoresFile, "scores", "s", "", "Hazard model output: JSON object of point id to score")
	routeCmd.Flags().StringVar(&scoresScale, "scale", "unit", "Score range: unit [0,1] or percent [0,100]")
	routeCmd.Flags().StringVar(&modelFile, "model", "", "Raw classifier output per point id, fused with the configured coefficients")
	routeCmd.MarkFlagsMutuallyExclusive("scores", "model")
	routeCmd.Flags().StringVar(&startID, "start", "", "Start point id")
	routeCmd.Flags().StringVar(&endID, "end", "", "End point id")
	routeCmd.Flags().StringVar(&startAt, "start-at", "", "Start location lat,lon")
	routeCmd.Flags().StringVar(&endAt, "end-at", "", "End location lat,lon")
	addGraphFlags(routeCmd)
}

// addGraphFlags registers flags that override the graph config section
func addGraphFlags(cmd *cobra.Command) {
	cmd.Flags().Float64VarP(&maxDistance, "max-distance", "d", 0, "Proximity threshold in metric units (overrides config)")
	cmd.Flags().StringVarP(&metricName, "metric", "m", "", "planar, equirectangular or haversine (overrides config)")
	cmd.Flags().Float64VarP(&riskFactor, "risk-factor", "k", 0, "Hazard multiplier k (overrides config)")
	cmd.Flags().StringVar(&adjacencyArg, "adjacency", "", "proximity or grid (overrides config)")
}

// newPlanner applies flag overrides to a copy of the loaded config
func newPlanner(cmd *cobra.Command) (*planner.Planner, error) {
	c := *cfg
	if cmd.Flags().Changed("max-distance") {
		c.Graph.MaxDistance = maxDistance
	}
	if cmd.Flags().Changed("metric") {
		c.Graph.Metric = metricName
	}
	if cmd.Flags().Changed("risk-factor") {
		c.Graph.RiskFactor = riskFactor
	}
	if cmd.Flags().Changed("adjacency") {
		c.Graph.Adjacency = adjacencyArg
	}
	if cmd.Flags().Changed("rows") {
		c.Grid.Rows = gridRows
	}
	if cmd.Flags().Changed("cols") {
		c.Grid.Cols = gridCols
	}
	return planner.New(&c, logger)
}

func resolveEndpoint(p *planner.Planner, g *graph.Graph, id, at, name string) (string, error) {
	switch {
	case id != "" && at != "":
		return "", fmt.Errorf("use either --%s or --%s-at", name, name)
	case id != "":
		return id, nil
	case at != "":
		loc, err := parseLocation(at)
		if err != nil {
			return "", fmt.Errorf("--%s-at: %w", name, err)
		}
		return p.Nearest(g, loc)
	default:
		return "", fmt.Errorf("--%s or --%s-at is required", name, name)
	}
}

// loadScores reads --scores on --scale, or fuses --model into Unit scores.
// Neither flag means nil scores: hazards stay as stored on the points.
func loadScores(p *planner.Planner) (map[string]float64, hazard.Scale, error) {
	if modelFile != "" {
		outputs, err := dataset.LoadModelOutputs(modelFile)
		if err != nil {
			return nil, hazard.Unit, err
		}
		scores, err := p.Fuse(outputs)
		return scores, hazard.Unit, err
	}

	scale, err := parseScale(scoresScale)
	if err != nil || scoresFile == "" {
		return nil, scale, err
	}
	scores, err := dataset.LoadScores(scoresFile)
	return scores, scale, err
}

func runRoute(cmd *cobra.Command, args []string) error {
	p, err := newPlanner(cmd)
	if err != nil {
		return err
	}

	points, err := routeSource.load()
	if err != nil {
		return err
	}

	scores, scale, err := loadScores(p)
	if err != nil {
		return err
	}

	// Endpoints given as coordinates need the graph to snap to
	g, err := p.BuildPoints(points, scores, scale)
	if err != nil {
		return err
	}
	start, err := resolveEndpoint(p, g, startID, startAt, "start")
	if err != nil {
		return err
	}
	end, err := resolveEndpoint(p, g, endID, endAt, "end")
	if err != nil {
		return err
	}

	plan, err := p.Route(cmd.Context(), g, start, end)
	if err != nil {
		return err
	}
	return printPlan(cmd.OutOrStdout(), fmt.Sprintf("Route %s to %s", start, end), plan)
}
