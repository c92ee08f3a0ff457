// Package graph builds the undirected, risk-weighted graph that routing runs on.
//
// A Graph is immutable once Build returns. Every edge carries a base distance
// measured by the configured metric and a combined weight
//
//	weight = distance × (1 + riskFactor × mean(hazard_a, hazard_b))
//
// which is never smaller than the distance because hazards and riskFactor are
// non-negative.
//
// Iteration order is fixed: point ids, edges and every adjacency list are
// sorted by id, so searches over the same input are reproducible.
package graph

import (
	"sort"

	"github.com/kass/go-saferoute/pkg/geo"
	"github.com/kass/go-saferoute/pkg/models"
	"github.com/kass/go-saferoute/pkg/rtree"
)

// Neighbor is one entry of an adjacency list
type Neighbor struct {
	ID       string
	Distance float64
	Weight   float64
}

// Graph maps point ids to points and holds the edges between them
type Graph struct {
	points     map[string]models.Point
	ids        []string
	adj        map[string][]Neighbor
	edges      []models.Edge
	metric     geo.Metric
	riskFactor float64
	index      *rtree.PointIndex
}

// Point returns the point with the given id
func (g *Graph) Point(id string) (models.Point, bool) {
	p, ok := g.points[id]
	return p, ok
}

// HasPoint reports whether id is a point of the graph
func (g *Graph) HasPoint(id string) bool {
	_, ok := g.points[id]
	return ok
}

// IDs returns the sorted point ids
func (g *Graph) IDs() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// Points returns every point ordered by id
func (g *Graph) Points() []models.Point {
	out := make([]models.Point, len(g.ids))
	for i, id := range g.ids {
		out[i] = g.points[id]
	}
	return out
}

// Neighbors returns the adjacency list of id sorted by neighbour id.
// The slice is shared with the graph and must not be modified.
func (g *Graph) Neighbors(id string) []Neighbor {
	return g.adj[id]
}

// Edge returns the edge between a and b in either order
func (g *Graph) Edge(a, b string) (models.Edge, bool) {
	if a > b {
		a, b = b, a
	}
	i := sort.Search(len(g.edges), func(i int) bool {
		e := g.edges[i]
		return e.A > a || (e.A == a && e.B >= b)
	})
	if i < len(g.edges) && g.edges[i].A == a && g.edges[i].B == b {
		return g.edges[i], true
	}
	return models.Edge{}, false
}

// Edges returns a copy of every edge sorted by (A, B)
func (g *Graph) Edges() []models.Edge {
	out := make([]models.Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// NumPoints returns the number of points
func (g *Graph) NumPoints() int { return len(g.ids) }

// NumEdges returns the number of undirected edges
func (g *Graph) NumEdges() int { return len(g.edges) }

// Metric returns the distance metric edges were measured with
func (g *Graph) Metric() geo.Metric { return g.metric }

// RiskFactor returns the hazard multiplier used for combined weights
func (g *Graph) RiskFactor() float64 { return g.riskFactor }

// Coordinates maps a path back to point locations for rendering
func (g *Graph) Coordinates(path models.Path) ([]models.Location, error) {
	locs := make([]models.Location, len(path))
	for i, id := range path {
		p, ok := g.points[id]
		if !ok {
			return nil, models.Invalid(id, "path", "point not in graph")
		}
		locs[i] = p.Location
	}
	return locs, nil
}

// nearestCandidates is how many R-Tree neighbours are re-ranked by the metric
const nearestCandidates = 8

// NearestPoint returns the graph point closest to loc under the graph metric.
// The R-Tree neighbours in degree space give an upper bound on the metric
// distance; every point within that bound is then ranked by the metric, so
// a point nearer in metres but farther in degrees is still found.
func (g *Graph) NearestPoint(loc models.Location) (models.Point, bool) {
	if !loc.Finite() || len(g.ids) == 0 {
		return models.Point{}, false
	}

	candidates := g.index.NearestNeighbors(loc, nearestCandidates)
	if len(candidates) == 0 {
		return models.Point{}, false
	}
	best, bestDist := g.closest(loc, candidates[0], candidates[1:])

	within, err := g.index.QueryRadius(loc, bestDist, g.metric)
	if err != nil {
		return best, true
	}
	best, _ = g.closest(loc, best, within)
	return best, true
}

// closest ranks points by metric distance to loc, ties broken by ID
func (g *Graph) closest(loc models.Location, best models.Point, points []models.Point) (models.Point, float64) {
	bestDist := g.metric.Distance(loc, best.Location)
	for _, c := range points {
		d := g.metric.Distance(loc, c.Location)
		if d < bestDist || (d == bestDist && c.ID < best.ID) {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}
