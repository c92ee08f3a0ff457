package main

import (
	"github.com/kass/go-saferoute/pkg/hazard"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show size and connectivity of the graph over a point set",
	Long: `Builds the graph the route command would build and reports point, edge
and component counts. Useful for picking a --max-distance that connects the city.`,
	RunE: runStats,
}

var statsSource pointSource

func init() {
	statsCmd.Flags().StringVarP(&statsSource.file, "points", "p", "", "Point file (.json or .gob)")
	statsCmd.Flags().StringVar(&statsSource.box, "box", "", "PostGIS box minLat,minLon,maxLat,maxLon")
	addGraphFlags(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	p, err := newPlanner(cmd)
	if err != nil {
		return err
	}
	points, err := statsSource.load()
	if err != nil {
		return err
	}
	g, err := p.BuildPoints(points, nil, hazard.Unit)
	if err != nil {
		return err
	}
	return printStats(cmd.OutOrStdout(), g)
}
