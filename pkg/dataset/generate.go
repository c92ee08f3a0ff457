package dataset

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/kass/go-saferoute/pkg/models"
)

// RandomPoints generates n points uniformly inside bounds with uniform
// hazards in [0,1]. Work is split into fixed ranges, one seeded generator
// per range, so the output depends only on n, bounds, seed and workers.
func RandomPoints(n int, bounds models.BoundingBox, seed int64, workers int) []models.Point {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	points := make([]models.Point, n)
	latSpan := bounds.TopRight.Lat - bounds.BottomLeft.Lat
	lonSpan := bounds.TopRight.Lon - bounds.BottomLeft.Lon

	perWorker := n / workers
	remainder := n % workers

	var wg sync.WaitGroup
	start := 0
	for w := 0; w < workers; w++ {
		size := perWorker
		if w < remainder {
			size++
		}

		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			// Each worker gets its own random generator to avoid contention
			r := rand.New(rand.NewSource(seed + int64(w)))
			for i := start; i < end; i++ {
				points[i] = models.Point{
					ID: fmt.Sprintf("point_%06d", i),
					Location: models.Location{
						Lat: bounds.BottomLeft.Lat + r.Float64()*latSpan,
						Lon: bounds.BottomLeft.Lon + r.Float64()*lonSpan,
					},
					Hazard: r.Float64(),
				}
			}
		}(w, start, start+size)
		start += size
	}
	wg.Wait()

	return points
}
