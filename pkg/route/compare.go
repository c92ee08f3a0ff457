package route

import (
	"context"

	"github.com/kass/go-saferoute/pkg/graph"
	"github.com/kass/go-saferoute/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Pair holds the two searches over one graph
type Pair struct {
	Risk     Result
	Shortest Result
}

// FindBoth runs the risk-weighted and distance-only searches concurrently.
// Both only read g. The first error cancels the other search.
func FindBoth(ctx context.Context, g *graph.Graph, start, end string) (Pair, error) {
	if err := validateEndpoints(g, start, end); err != nil {
		return Pair{}, err
	}

	var pair Pair
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		r, err := find(ctx, g, start, end, RiskWeighted)
		pair.Risk = r
		return err
	})
	eg.Go(func() error {
		r, err := find(ctx, g, start, end, DistanceOnly)
		pair.Shortest = r
		return err
	})
	if err := eg.Wait(); err != nil {
		return Pair{}, err
	}
	return pair, nil
}

// Report summarizes a path. Distance sums edge base distances; risk is
// taken from the traversed points' hazards, not from edge weights.
func Report(g *graph.Graph, path models.Path) (models.RouteReport, error) {
	if g == nil {
		return models.RouteReport{}, models.Invalid("", "graph", "must not be nil")
	}
	if len(path) == 0 {
		return models.RouteReport{}, models.Invalid("", "path", "must not be empty")
	}

	var r models.RouteReport
	seen := make(map[string]bool, len(path))
	for i, id := range path {
		p, ok := g.Point(id)
		if !ok {
			return models.RouteReport{}, models.Invalid(id, "path", "point not in graph")
		}
		if seen[id] {
			return models.RouteReport{}, models.Invalid(id, "path", "point repeated")
		}
		seen[id] = true
		r.TotalRisk += p.Hazard

		if i > 0 {
			e, ok := g.Edge(path[i-1], id)
			if !ok {
				return models.RouteReport{}, models.Invalid(id, "path", "no edge from %q", path[i-1])
			}
			r.TotalDistance += e.Distance
		}
	}
	r.AvgRisk = r.TotalRisk / float64(len(path))
	r.Segments = path.Segments()
	return r, nil
}

// Compare reports both paths side by side. Deltas are safest minus
// shortest; percentages are zero when their reference value is zero.
// The band classifies the safest path's average risk.
func Compare(g *graph.Graph, safest, shortest models.Path) (models.Comparison, error) {
	a, err := Report(g, safest)
	if err != nil {
		return models.Comparison{}, err
	}
	b, err := Report(g, shortest)
	if err != nil {
		return models.Comparison{}, err
	}

	c := models.Comparison{
		Safest:        a,
		Shortest:      b,
		DistanceDelta: a.TotalDistance - b.TotalDistance,
		RiskDelta:     a.AvgRisk - b.AvgRisk,
		Band:          models.BandFor(a.AvgRisk),
	}
	if b.TotalDistance > 0 {
		c.ExtraDistancePct = 100 * c.DistanceDelta / b.TotalDistance
	}
	if b.AvgRisk > 0 {
		c.RiskReductionPct = 100 * (b.AvgRisk - a.AvgRisk) / b.AvgRisk
	}
	return c, nil
}
