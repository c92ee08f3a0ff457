package main

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/kass/go-saferoute/pkg/dataset"
	"github.com/kass/go-saferoute/pkg/graph"
	"github.com/kass/go-saferoute/pkg/hazard"
	"github.com/kass/go-saferoute/pkg/models"
	"github.com/kass/go-saferoute/pkg/route"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time graph construction and route pairs on a point set",
	Long: `Builds the graph over --points (or --generate random points) and runs
--queries random start/end pairs through both searches on a worker pool.`,
	RunE: runBench,
}

// BenchmarkResult summarizes one benchmark run
type BenchmarkResult struct {
	Points        int           `json:"points"`
	Edges         int           `json:"edges"`
	BuildDuration time.Duration `json:"buildDuration"`
	TotalQueries  int           `json:"totalQueries"`
	NoPath        int           `json:"noPath"`
	TotalDuration time.Duration `json:"totalDuration"`
	AvgDuration   time.Duration `json:"avgDuration"`
	MinDuration   time.Duration `json:"minDuration"`
	MaxDuration   time.Duration `json:"maxDuration"`
	QueriesPerSec float64       `json:"queriesPerSec"`
	AvgVisited    float64       `json:"avgVisited"`
}

var (
	benchSource   pointSource
	benchGenerate int
	benchBounds   string
	benchQueries  int
	benchWorkers  int
	benchSeed     int64
)

func init() {
	benchCmd.Flags().StringVarP(&benchSource.file, "points", "p", "", "Point file (.json or .gob)")
	benchCmd.Flags().IntVarP(&benchGenerate, "generate", "n", 0, "Generate this many random points instead of reading --points")
	benchCmd.Flags().StringVar(&benchBounds, "bounds", "43.58,-79.64,43.86,-79.11", "Generation bounds minLat,minLon,maxLat,maxLon")
	benchCmd.Flags().IntVarP(&benchQueries, "queries", "q", 1000, "Number of route pairs to run")
	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 1, "Random seed")
	addGraphFlags(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	p, err := newPlanner(cmd)
	if err != nil {
		return err
	}

	var points []models.Point
	if benchGenerate > 0 {
		bounds, err := parseBox(benchBounds)
		if err != nil {
			return fmt.Errorf("--bounds: %w", err)
		}
		points = dataset.RandomPoints(benchGenerate, bounds, benchSeed, benchWorkers)
	} else if points, err = benchSource.load(); err != nil {
		return err
	}

	start := time.Now()
	g, err := p.BuildPoints(points, nil, hazard.Unit)
	if err != nil {
		return err
	}
	buildTime := time.Since(start)
	logger.Info("graph built", zap.Int("points", g.NumPoints()), zap.Int("edges", g.NumEdges()), zap.Duration("elapsed", buildTime))

	result := benchmarkRoutes(g, benchQueries, benchWorkers, benchSeed)
	result.BuildDuration = buildTime

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, titleStyle.Render("Benchmark Results"))
	fmt.Fprintf(w, "Graph: %d points, %d edges, built in %v\n", result.Points, result.Edges, result.BuildDuration)
	fmt.Fprintf(w, "Route pairs: %d (%d without a path)\n", result.TotalQueries, result.NoPath)
	fmt.Fprintf(w, "Total Duration: %v\n", result.TotalDuration)
	fmt.Fprintf(w, "Average Duration: %v\n", result.AvgDuration)
	fmt.Fprintf(w, "Min/Max Duration: %v / %v\n", result.MinDuration, result.MaxDuration)
	fmt.Fprintf(w, "Pairs/Second: %s\n", statStyle.Render(fmt.Sprintf("%.2f", result.QueriesPerSec)))
	fmt.Fprintf(w, "Avg points settled: %.1f\n", result.AvgVisited)
	return nil
}

// benchmarkRoutes runs both searches for random pairs on a worker pool
func benchmarkRoutes(g *graph.Graph, numQueries, workers int, seed int64) BenchmarkResult {
	result := BenchmarkResult{Points: g.NumPoints(), Edges: g.NumEdges(), TotalQueries: numQueries}
	ids := g.IDs()
	if len(ids) < 2 || numQueries <= 0 {
		return result
	}
	if workers <= 0 {
		workers = 1
	}

	// Pairs are drawn up front so the workload depends only on the seed
	r := rand.New(rand.NewSource(seed))
	type pair struct{ start, end string }
	pairs := make(chan pair, numQueries)
	for i := 0; i < numQueries; i++ {
		a := r.Intn(len(ids))
		b := r.Intn(len(ids) - 1)
		if b >= a {
			b++
		}
		pairs <- pair{ids[a], ids[b]}
	}
	close(pairs)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		total   time.Duration
		visited int
	)
	result.MinDuration = time.Hour

	startTime := time.Now()
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for q := range pairs {
				t := time.Now()
				risk, err := route.FindRoute(g, q.start, q.end, route.RiskWeighted)
				var short route.Result
				if err == nil {
					short, err = route.FindRoute(g, q.start, q.end, route.DistanceOnly)
				}
				d := time.Since(t)

				mu.Lock()
				total += d
				result.MinDuration = min(result.MinDuration, d)
				result.MaxDuration = max(result.MaxDuration, d)
				if errors.Is(err, models.ErrNoPathFound) {
					result.NoPath++
				} else if err == nil {
					visited += risk.Visited + short.Visited
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	result.TotalDuration = time.Since(startTime)
	result.AvgDuration = total / time.Duration(numQueries)
	result.QueriesPerSec = float64(numQueries) / result.TotalDuration.Seconds()
	if solved := numQueries - result.NoPath; solved > 0 {
		result.AvgVisited = float64(visited) / float64(2*solved)
	}
	return result
}
