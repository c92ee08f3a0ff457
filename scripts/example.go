package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kass/go-saferoute/pkg/geo"
	"github.com/kass/go-saferoute/pkg/graph"
	"github.com/kass/go-saferoute/pkg/hazard"
	"github.com/kass/go-saferoute/pkg/models"
	"github.com/kass/go-saferoute/pkg/route"
)

func main() {
	// Example 1: the unit square, sides only
	fmt.Println("=== Unit square ===")
	square := []models.Point{
		{ID: "P0", Location: models.Location{Lat: 0, Lon: 0}, Hazard: 0},
		{ID: "P1", Location: models.Location{Lat: 0, Lon: 1}, Hazard: 0.9},
		{ID: "P2", Location: models.Location{Lat: 1, Lon: 0}, Hazard: 0.1},
		{ID: "P3", Location: models.Location{Lat: 1, Lon: 1}, Hazard: 0},
	}
	g, err := graph.Build(square, graph.Proximity{MaxDistance: 1}, graph.WithMetric(geo.Planar{}))
	if err != nil {
		log.Fatal(err)
	}
	pair, err := route.FindBoth(context.Background(), g, "P0", "P3")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  risk-weighted: %v (weight %.2f)\n", pair.Risk.Path, pair.Risk.Cost)
	fmt.Printf("  distance-only: %v (distance %.2f)\n", pair.Shortest.Path, pair.Shortest.Cost)

	// Example 2: downtown Toronto intersections scored by a hazard model in [0,100]
	fmt.Println("\n=== Downtown intersections ===")
	intersections := []models.Point{
		{ID: "KING_BAY", Location: models.Location{Lat: 43.6487, Lon: -79.3806}},
		{ID: "KING_YONGE", Location: models.Location{Lat: 43.6490, Lon: -79.3780}},
		{ID: "QUEEN_BAY", Location: models.Location{Lat: 43.6525, Lon: -79.3816}},
		{ID: "QUEEN_YONGE", Location: models.Location{Lat: 43.6527, Lon: -79.3792}},
		{ID: "DUNDAS_BAY", Location: models.Location{Lat: 43.6556, Lon: -79.3839}},
		{ID: "DUNDAS_YONGE", Location: models.Location{Lat: 43.6561, Lon: -79.3807}},
	}
	scores := map[string]float64{
		"KING_YONGE":   35,
		"QUEEN_YONGE":  92,
		"QUEEN_BAY":    10,
		"DUNDAS_YONGE": 20,
	}
	scored, err := hazard.Apply(intersections, scores, hazard.Percent)
	if err != nil {
		log.Fatal(err)
	}

	g, err = graph.Build(scored, graph.Proximity{MaxDistance: 450})
	if err != nil {
		log.Fatal(err)
	}
	stats := g.Stats()
	fmt.Printf("  %d points, %d edges, connected=%t\n", stats.Points, stats.Edges, stats.Connected)

	pair, err = route.FindBoth(context.Background(), g, "KING_YONGE", "DUNDAS_YONGE")
	if errors.Is(err, models.ErrNoPathFound) {
		log.Fatal("intersections are not connected; raise MaxDistance")
	} else if err != nil {
		log.Fatal(err)
	}

	cmp, err := route.Compare(g, pair.Risk.Path, pair.Shortest.Path)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  safest:   %v  %.0f m, avg risk %.2f\n", pair.Risk.Path, cmp.Safest.TotalDistance, cmp.Safest.AvgRisk)
	fmt.Printf("  shortest: %v  %.0f m, avg risk %.2f\n", pair.Shortest.Path, cmp.Shortest.TotalDistance, cmp.Shortest.AvgRisk)
	fmt.Printf("  band %s, +%.1f%% distance for %.1f%% less risk\n", cmp.Band, cmp.ExtraDistancePct, cmp.RiskReductionPct)

	// Example 3: snap a coordinate to the closest intersection
	p, ok := g.NearestPoint(models.Location{Lat: 43.6530, Lon: -79.3820})
	if ok {
		fmt.Printf("\nNearest intersection to (43.6530, -79.3820): %s\n", p.ID)
	}
}
