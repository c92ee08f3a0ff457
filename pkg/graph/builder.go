package graph

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/kass/go-saferoute/pkg/geo"
	"github.com/kass/go-saferoute/pkg/grid"
	"github.com/kass/go-saferoute/pkg/models"
	"github.com/kass/go-saferoute/pkg/rtree"
)

// AdjacencyRule decides which point pairs become edges.
// Implemented by Proximity and Grid.
type AdjacencyRule interface {
	connect(b *builder) error
}

// Proximity connects every pair whose metric distance is <= MaxDistance
type Proximity struct {
	MaxDistance float64
}

// Grid connects each cell to its up/down/left/right neighbours on a
// Rows × Cols lattice. Every point must carry a Cell.
type Grid struct {
	Rows int
	Cols int
}

// Options configures graph construction
type Options struct {
	Metric     geo.Metric
	RiskFactor float64
}

// Option is a functional option for Build
type Option func(*Options)

// WithMetric sets the distance metric
func WithMetric(m geo.Metric) Option {
	return func(o *Options) { o.Metric = m }
}

// WithRiskFactor sets k in distance × (1 + k × mean hazard). Must be >= 0.
func WithRiskFactor(k float64) Option {
	return func(o *Options) { o.RiskFactor = k }
}

// DefaultOptions uses the equirectangular metric and a risk factor of 1
func DefaultOptions() Options {
	return Options{
		Metric:     geo.Equirectangular{},
		RiskFactor: 1,
	}
}

type builder struct {
	opts   Options
	points []models.Point // sorted by id
	byID   map[string]models.Point
	index  *rtree.PointIndex
	edges  []models.Edge
}

// Build validates points and constructs a graph under the adjacency rule.
// It fails with models.ErrInvalidInput on duplicate or empty ids, non-finite
// coordinates, hazards outside [0,1] and invalid rule or option values.
func Build(points []models.Point, rule AdjacencyRule, opts ...Option) (*Graph, error) {
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Metric == nil {
		return nil, models.Invalid("", "metric", "must be set")
	}
	if math.IsNaN(cfg.RiskFactor) || math.IsInf(cfg.RiskFactor, 0) || cfg.RiskFactor < 0 {
		return nil, models.Invalid("", "risk factor", "must be a non-negative real, got %v", cfg.RiskFactor)
	}
	if rule == nil {
		return nil, models.Invalid("", "adjacency rule", "must be set")
	}

	b := &builder{
		opts: cfg,
		byID: make(map[string]models.Point, len(points)),
	}
	for _, p := range points {
		if err := validatePoint(p); err != nil {
			return nil, err
		}
		if _, dup := b.byID[p.ID]; dup {
			return nil, models.Invalid(p.ID, "id", "duplicate point id")
		}
		b.byID[p.ID] = p
		b.points = append(b.points, p)
	}
	sort.Slice(b.points, func(i, j int) bool { return b.points[i].ID < b.points[j].ID })

	b.index = rtree.NewPointIndex()
	if err := b.index.IndexPoints(b.points); err != nil {
		return nil, err
	}

	if err := rule.connect(b); err != nil {
		return nil, err
	}
	return b.finish(), nil
}

func validatePoint(p models.Point) error {
	if p.ID == "" {
		return models.Invalid("", "id", "point id must not be empty")
	}
	if !p.Location.Finite() {
		return models.Invalid(p.ID, "location", "coordinates must be finite")
	}
	if math.IsNaN(p.Hazard) || p.Hazard < 0 || p.Hazard > 1 {
		return models.Invalid(p.ID, "hazard", "%v outside [0, 1]", p.Hazard)
	}
	return nil
}

// addEdge records the undirected edge between two distinct points
func (b *builder) addEdge(p, q models.Point) {
	if p.ID > q.ID {
		p, q = q, p
	}
	d := b.opts.Metric.Distance(p.Location, q.Location)
	risk := (p.Hazard + q.Hazard) / 2
	b.edges = append(b.edges, models.Edge{
		A:        p.ID,
		B:        q.ID,
		Distance: d,
		Weight:   d * (1 + b.opts.RiskFactor*risk),
	})
}

func (b *builder) finish() *Graph {
	sort.Slice(b.edges, func(i, j int) bool {
		if b.edges[i].A != b.edges[j].A {
			return b.edges[i].A < b.edges[j].A
		}
		return b.edges[i].B < b.edges[j].B
	})

	g := &Graph{
		points:     b.byID,
		ids:        make([]string, len(b.points)),
		adj:        make(map[string][]Neighbor, len(b.points)),
		edges:      b.edges,
		metric:     b.opts.Metric,
		riskFactor: b.opts.RiskFactor,
		index:      b.index,
	}
	for i, p := range b.points {
		g.ids[i] = p.ID
	}
	for _, e := range b.edges {
		g.adj[e.A] = append(g.adj[e.A], Neighbor{ID: e.B, Distance: e.Distance, Weight: e.Weight})
		g.adj[e.B] = append(g.adj[e.B], Neighbor{ID: e.A, Distance: e.Distance, Weight: e.Weight})
	}
	for id := range g.adj {
		list := g.adj[id]
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return g
}

func (r Proximity) connect(b *builder) error {
	if math.IsNaN(r.MaxDistance) || math.IsInf(r.MaxDistance, 0) || r.MaxDistance < 0 {
		return models.Invalid("", "max distance", "must be a non-negative real, got %v", r.MaxDistance)
	}

	// Radius queries are read-only and run in parallel; results are merged in id order
	partners := make([][]models.Point, len(b.points))
	errs := make([]error, len(b.points))

	numCPU := runtime.NumCPU()
	batchSize := (len(b.points) + numCPU - 1) / numCPU
	var wg sync.WaitGroup
	for start := 0; start < len(b.points); start += batchSize {
		end := start + batchSize
		if end > len(b.points) {
			end = len(b.points)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				p := b.points[i]
				found, err := b.index.QueryRadius(p.Location, r.MaxDistance, b.opts.Metric)
				if err != nil {
					errs[i] = err
					return
				}
				for _, q := range found {
					// Each pair is reported by both ends; keep the one seen from the smaller id
					if q.ID > p.ID {
						partners[i] = append(partners[i], q)
					}
				}
			}
		}(start, end)
	}
	wg.Wait()

	for i, p := range b.points {
		if errs[i] != nil {
			return errs[i]
		}
		for _, q := range partners[i] {
			b.addEdge(p, q)
		}
	}
	return nil
}

func (r Grid) connect(b *builder) error {
	if r.Rows <= 0 || r.Cols <= 0 {
		return models.Invalid("", "grid resolution", "rows and cols must be positive, got %dx%d", r.Rows, r.Cols)
	}

	lattice := grid.Lattice{Rows: r.Rows, Cols: r.Cols}
	byCell := make(map[models.Cell]models.Point, len(b.points))
	for _, p := range b.points {
		if p.Cell == nil {
			return models.Invalid(p.ID, "cell", "grid adjacency requires a cell")
		}
		c := *p.Cell
		if !lattice.Contains(c) {
			return models.Invalid(p.ID, "cell", "(%d,%d) outside %dx%d grid", c.Row, c.Col, r.Rows, r.Cols)
		}
		if other, dup := byCell[c]; dup {
			return models.Invalid(p.ID, "cell", "(%d,%d) already taken by %q", c.Row, c.Col, other.ID)
		}
		byCell[c] = p
	}

	for _, p := range b.points {
		c := *p.Cell
		for _, n := range lattice.Neighbors4(c) {
			// each orthogonal pair is linked once, from its lower cell
			if n.Row < c.Row || n.Col < c.Col {
				continue
			}
			if q, ok := byCell[n]; ok {
				b.addEdge(p, q)
			}
		}
	}
	return nil
}
