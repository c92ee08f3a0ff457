// Package route finds risk-weighted and distance-only paths over a graph
// and compares them.
//
// Search is Dijkstra with a binary heap and lazy decrease-key: improved
// distances are pushed again and stale heap entries are skipped on pop.
// The search stops as soon as the end point is popped.
//
// Ties are broken deterministically. Neighbours are visited in id order,
// the heap orders entries by (cost, push sequence), and a predecessor is
// only replaced by a strictly cheaper one, so among equal-cost paths the
// one discovered first wins.
package route

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/kass/go-saferoute/pkg/graph"
	"github.com/kass/go-saferoute/pkg/models"
)

// WeightMode selects which edge value the search minimizes
type WeightMode int

const (
	// RiskWeighted minimizes the combined edge weight
	RiskWeighted WeightMode = iota
	// DistanceOnly minimizes base distance and ignores hazard
	DistanceOnly
)

func (m WeightMode) String() string {
	switch m {
	case RiskWeighted:
		return "risk-weighted"
	case DistanceOnly:
		return "distance-only"
	default:
		return fmt.Sprintf("WeightMode(%d)", int(m))
	}
}

func (m WeightMode) cost(n graph.Neighbor) float64 {
	if m == DistanceOnly {
		return n.Distance
	}
	return n.Weight
}

// Result is one search outcome
type Result struct {
	Mode WeightMode  `json:"mode"`
	Path models.Path `json:"path"`
	// Cost is the cumulative value minimized under Mode
	Cost float64 `json:"cost"`
	// Visited counts points finalized before the search stopped
	Visited int `json:"visited"`
}

// cancelCheckInterval is how many pops happen between context checks
const cancelCheckInterval = 1024

// FindRoute returns the cheapest path from start to end under mode.
//
// It fails with models.ErrInvalidInput when either endpoint is missing
// from g or both are the same point, and with a *models.NoPathError when
// end is unreachable from start.
func FindRoute(g *graph.Graph, start, end string, mode WeightMode) (Result, error) {
	return find(context.Background(), g, start, end, mode)
}

// FindRouteContext is FindRoute with cancellation for very large graphs
func FindRouteContext(ctx context.Context, g *graph.Graph, start, end string, mode WeightMode) (Result, error) {
	return find(ctx, g, start, end, mode)
}

func validateEndpoints(g *graph.Graph, start, end string) error {
	if g == nil {
		return models.Invalid("", "graph", "must not be nil")
	}
	if !g.HasPoint(start) {
		return models.Invalid(start, "start", "point not in graph")
	}
	if !g.HasPoint(end) {
		return models.Invalid(end, "end", "point not in graph")
	}
	if start == end {
		return models.Invalid(start, "end", "must differ from start")
	}
	return nil
}

func find(ctx context.Context, g *graph.Graph, start, end string, mode WeightMode) (Result, error) {
	if mode != RiskWeighted && mode != DistanceOnly {
		return Result{}, models.Invalid("", "weight mode", "unknown mode %d", int(mode))
	}
	if err := validateEndpoints(g, start, end); err != nil {
		return Result{}, err
	}

	dist := map[string]float64{start: 0}
	prev := make(map[string]string)
	done := make(map[string]bool)

	pq := &queue{{id: start}}
	seq := 1
	pops := 0

	for pq.Len() > 0 {
		it := heap.Pop(pq).(entry)
		if done[it.id] {
			continue
		}
		done[it.id] = true

		if it.id == end {
			break
		}

		pops++
		if pops%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("search %s -> %s: %w", start, end, err)
			}
		}

		for _, n := range g.Neighbors(it.id) {
			if done[n.ID] {
				continue
			}
			nd := it.dist + mode.cost(n)
			if d, seen := dist[n.ID]; seen && nd >= d {
				continue
			}
			dist[n.ID] = nd
			prev[n.ID] = it.id
			heap.Push(pq, entry{id: n.ID, dist: nd, seq: seq})
			seq++
		}
	}

	if !done[end] {
		return Result{}, &models.NoPathError{Start: start, End: end}
	}

	var path models.Path
	for id := end; ; id = prev[id] {
		path = append(path, id)
		if id == start {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return Result{Mode: mode, Path: path, Cost: dist[end], Visited: len(done)}, nil
}

// entry is a lazy heap record; stale records are skipped on pop
type entry struct {
	id   string
	dist float64
	seq  int
}

type queue []entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(entry)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
