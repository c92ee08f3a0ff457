// Package rtree implements an R-Tree backed point index used to find
// proximity candidates and nearest points without scanning every pair.
package rtree

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/kass/go-saferoute/pkg/geo"
	"github.com/kass/go-saferoute/pkg/models"
)

const (
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialPoint wraps a point to implement rtreego.Spatial interface
type spatialPoint struct {
	point models.Point
	rect  rtreego.Rect
}

func (sp *spatialPoint) Bounds() rtreego.Rect {
	return sp.rect
}

// PointIndex is a thread-safe R-Tree over point locations
type PointIndex struct {
	tree      *rtreego.Rtree
	mu        sync.RWMutex
	itemCount atomic.Int64
}

// NewPointIndex creates an empty index
func NewPointIndex() *PointIndex {
	return &PointIndex{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// IndexPoints indexes a batch of points, wrapping them in parallel
func (g *PointIndex) IndexPoints(points []models.Point) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if !p.Location.Finite() {
			return models.Invalid(p.ID, "location", "coordinates must be finite")
		}
	}

	numCPU := runtime.NumCPU()
	items := make([]*spatialPoint, len(points))
	var wg sync.WaitGroup

	batchSize := (len(points) + numCPU - 1) / numCPU
	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for j := start; j < end; j++ {
				p := points[j]
				rtPoint := rtreego.Point{p.Location.Lat, p.Location.Lon}
				items[j] = &spatialPoint{point: p, rect: rtPoint.ToRect(tolerance)}
			}
		}(start, end)
	}
	wg.Wait()

	// Tree insertion is not safe for concurrent writers
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, item := range items {
		g.tree.Insert(item)
	}
	g.itemCount.Add(int64(len(items)))
	return nil
}

// QueryBox returns all points within the box, edges included
func (g *PointIndex) QueryBox(box models.BoundingBox) ([]models.Point, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.queryBox(box)
}

func (g *PointIndex) queryBox(box models.BoundingBox) ([]models.Point, error) {
	bounds, err := rtreego.NewRectFromPoints(
		rtreego.Point{box.BottomLeft.Lat - tolerance, box.BottomLeft.Lon - tolerance},
		rtreego.Point{box.TopRight.Lat + tolerance, box.TopRight.Lon + tolerance},
	)
	if err != nil {
		return nil, models.Invalid("", "bounding box", "%v", err)
	}

	results := g.tree.SearchIntersect(bounds)

	// Filter results to ensure they're strictly within bounds
	points := make([]models.Point, 0, len(results))
	for _, result := range results {
		item, ok := result.(*spatialPoint)
		if !ok {
			continue
		}
		if box.Contains(item.point.Location) {
			points = append(points, item.point)
		}
	}
	return points, nil
}

// QueryRadius returns all points whose metric distance from center is <= radius.
// The R-Tree narrows candidates to the metric's search box, the metric decides.
func (g *PointIndex) QueryRadius(center models.Location, radius float64, metric geo.Metric) ([]models.Point, error) {
	if radius < 0 {
		return nil, models.Invalid("", "radius", "must be non-negative, got %v", radius)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	candidates, err := g.queryBox(metric.SearchBox(center, radius))
	if err != nil {
		return nil, err
	}

	points := candidates[:0]
	for _, p := range candidates {
		if metric.Distance(center, p.Location) <= radius {
			points = append(points, p)
		}
	}
	return points, nil
}

// NearestNeighbors returns up to n points closest to center in degree space,
// ordered by increasing distance and then by ID
func (g *PointIndex) NearestNeighbors(center models.Location, n int) []models.Point {
	if n <= 0 || g.Count() == 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	results := g.tree.NearestNeighbors(n, rtreego.Point{center.Lat, center.Lon})
	points := make([]models.Point, 0, len(results))
	for _, result := range results {
		if item, ok := result.(*spatialPoint); ok {
			points = append(points, item.point)
		}
	}

	planar := geo.Planar{}
	sort.SliceStable(points, func(i, j int) bool {
		di := planar.Distance(center, points[i].Location)
		dj := planar.Distance(center, points[j].Location)
		if di != dj {
			return di < dj
		}
		return points[i].ID < points[j].ID
	})
	return points
}

// Points returns every indexed point ordered by ID
func (g *PointIndex) Points() []models.Point {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// rtreego has no iterator; a box covering the whole coordinate plane collects everything
	all, err := rtreego.NewRectFromPoints(
		rtreego.Point{-maxCoordinate, -maxCoordinate},
		rtreego.Point{maxCoordinate, maxCoordinate},
	)
	if err != nil {
		return nil
	}

	results := g.tree.SearchIntersect(all)
	points := make([]models.Point, 0, len(results))
	for _, result := range results {
		if item, ok := result.(*spatialPoint); ok {
			points = append(points, item.point)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].ID < points[j].ID })
	return points
}

const maxCoordinate = 1e12

// Count returns the number of indexed points
func (g *PointIndex) Count() int64 {
	return g.itemCount.Load()
}

// Clear removes all points from the index
func (g *PointIndex) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tree = rtreego.NewTree(dimensions, minChildren, maxChildren)
	g.itemCount.Store(0)
}
