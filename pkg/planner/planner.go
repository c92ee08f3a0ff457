// Package planner runs the full pipeline for one request: apply hazards,
// build the graph, search both routes and compare them.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/kass/go-saferoute/pkg/config"
	"github.com/kass/go-saferoute/pkg/graph"
	"github.com/kass/go-saferoute/pkg/grid"
	"github.com/kass/go-saferoute/pkg/hazard"
	"github.com/kass/go-saferoute/pkg/models"
	"github.com/kass/go-saferoute/pkg/route"
	"go.uber.org/zap"
)

// Plan is the outcome of one planning request
type Plan struct {
	Graph      *graph.Graph
	Risk       route.Result
	Shortest   route.Result
	Comparison models.Comparison

	// Grid requests only
	Lattice    *grid.Lattice
	Normalized *hazard.Normalized
}

// Planner is safe for concurrent use; it holds no per-request state
type Planner struct {
	cfg    config.Config
	logger *zap.Logger
}

// New validates cfg and returns a planner. A nil logger disables logging.
func New(cfg *config.Config, logger *zap.Logger) (*Planner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{cfg: *cfg, logger: logger}, nil
}

// Config returns a copy of the planner configuration
func (p *Planner) Config() config.Config { return p.cfg }

// BuildPoints applies scores on the given scale to points and builds a graph
// under the configured adjacency rule. A nil scores map keeps the hazards
// already on the points. Grid adjacency requires every point to carry a Cell.
func (p *Planner) BuildPoints(points []models.Point, scores map[string]float64, scale hazard.Scale) (*graph.Graph, error) {
	if scores != nil {
		var err error
		points, err = hazard.Apply(points, scores, scale)
		if err != nil {
			return nil, err
		}
	}

	opts, err := p.cfg.GraphOptions()
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(points, p.rule(), opts...)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("built point graph",
		zap.String("adjacency", p.cfg.Graph.Adjacency),
		zap.Int("points", g.NumPoints()),
		zap.Int("edges", g.NumEdges()),
		zap.String("metric", g.Metric().Name()),
		zap.Float64("max_distance", p.cfg.Graph.MaxDistance))
	return g, nil
}

// Fuse turns raw classifier outputs into Unit-scale scores for BuildPoints
// using the configured fusion coefficients
func (p *Planner) Fuse(outputs map[string]hazard.ModelOutput) (map[string]float64, error) {
	scores, err := p.cfg.Fusion.Scores(outputs)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("fused model outputs",
		zap.Int("points", len(scores)),
		zap.String("lighting_mode", string(p.cfg.Fusion.LightingMode)))
	return scores, nil
}

func (p *Planner) rule() graph.AdjacencyRule {
	if p.cfg.Graph.Adjacency == config.AdjacencyGrid {
		return graph.Grid{Rows: p.cfg.Grid.Rows, Cols: p.cfg.Grid.Cols}
	}
	return graph.Proximity{MaxDistance: p.cfg.Graph.MaxDistance}
}

// PlanPoints routes between two point ids of the given point set
func (p *Planner) PlanPoints(ctx context.Context, points []models.Point, scores map[string]float64, scale hazard.Scale, start, end string) (*Plan, error) {
	g, err := p.BuildPoints(points, scores, scale)
	if err != nil {
		return nil, err
	}
	return p.Route(ctx, g, start, end)
}

// Route searches both routes over an already built graph
func (p *Planner) Route(ctx context.Context, g *graph.Graph, start, end string) (*Plan, error) {
	plan := &Plan{Graph: g}
	if err := p.solve(ctx, plan, start, end); err != nil {
		return nil, err
	}
	return plan, nil
}

// BuildGrid aggregates incidents onto a lattice spanning them and builds a
// 4-neighbour grid graph with one point per cell.
func (p *Planner) BuildGrid(incidents []hazard.Incident) (*graph.Graph, grid.Lattice, hazard.Normalized, error) {
	locs := make([]models.Location, len(incidents))
	for i, in := range incidents {
		locs[i] = in.Location
	}
	l, err := grid.LatticeFor(locs, p.cfg.Grid.Rows, p.cfg.Grid.Cols)
	if err != nil {
		return nil, grid.Lattice{}, hazard.Normalized{}, err
	}

	totals, err := hazard.Aggregate(l, incidents, p.cfg.Coefficients)
	if err != nil {
		return nil, grid.Lattice{}, hazard.Normalized{}, err
	}
	points, norm, err := hazard.CellPoints(totals, p.cfg.OutputScale())
	if err != nil {
		return nil, grid.Lattice{}, hazard.Normalized{}, err
	}
	if norm.Degenerate {
		p.logger.Debug("cell totals are all equal, using constant score",
			zap.Float64("total", norm.Min),
			zap.Float64("score", p.cfg.Grid.OutputMin))
	}

	opts, err := p.cfg.GraphOptions()
	if err != nil {
		return nil, grid.Lattice{}, hazard.Normalized{}, err
	}
	g, err := graph.Build(points, graph.Grid{Rows: l.Rows, Cols: l.Cols}, opts...)
	if err != nil {
		return nil, grid.Lattice{}, hazard.Normalized{}, err
	}

	p.logger.Debug("built grid graph",
		zap.Int("incidents", len(incidents)),
		zap.Int("rows", l.Rows),
		zap.Int("cols", l.Cols),
		zap.Int("edges", g.NumEdges()))
	return g, l, norm, nil
}

// PlanGrid routes between the cells containing from and to
func (p *Planner) PlanGrid(ctx context.Context, incidents []hazard.Incident, from, to models.Location) (*Plan, error) {
	g, l, norm, err := p.BuildGrid(incidents)
	if err != nil {
		return nil, err
	}

	start, ok := l.Bin(from)
	if !ok {
		return nil, models.Invalid("", "start", "%v outside the incident area", from)
	}
	end, ok := l.Bin(to)
	if !ok {
		return nil, models.Invalid("", "end", "%v outside the incident area", to)
	}

	plan := &Plan{Graph: g, Lattice: &l, Normalized: &norm}
	if err := p.solve(ctx, plan, l.CellID(start), l.CellID(end)); err != nil {
		return nil, err
	}
	return plan, nil
}

// Nearest resolves a location to the closest point id of g
func (p *Planner) Nearest(g *graph.Graph, loc models.Location) (string, error) {
	pt, ok := g.NearestPoint(loc)
	if !ok {
		return "", models.Invalid("", "location", "no point near %v", loc)
	}
	return pt.ID, nil
}

func (p *Planner) solve(ctx context.Context, plan *Plan, start, end string) error {
	pair, err := route.FindBoth(ctx, plan.Graph, start, end)
	if err != nil {
		if errors.Is(err, models.ErrNoPathFound) {
			p.logger.Warn("endpoints are not connected",
				zap.String("start", start),
				zap.String("end", end),
				zap.Int("components", len(plan.Graph.Components())))
		}
		return err
	}

	cmp, err := route.Compare(plan.Graph, pair.Risk.Path, pair.Shortest.Path)
	if err != nil {
		return err
	}
	plan.Risk = pair.Risk
	plan.Shortest = pair.Shortest
	plan.Comparison = cmp

	p.logger.Debug("planned routes",
		zap.String("start", start),
		zap.String("end", end),
		zap.Float64("risk_cost", pair.Risk.Cost),
		zap.Float64("distance_cost", pair.Shortest.Cost),
		zap.String("band", string(cmp.Band)))
	return nil
}
