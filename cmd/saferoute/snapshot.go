package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/kass/go-saferoute/pkg/dataset"
	"github.com/kass/go-saferoute/pkg/hazard"
	"github.com/kass/go-saferoute/pkg/models"
	"github.com/kass/go-saferoute/pkg/postgis"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write a point set to a gob snapshot",
	Long: `Reads points from --points (optionally applying --scores) or generates
--generate random points, and writes them to a gob snapshot for fast reloads.`,
	RunE: runSnapshot,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a point set into PostGIS",
	RunE:  runImport,
}

var (
	snapshotIn     string
	snapshotOut    string
	snapshotScores string
	generateCount  int
	generateSeed   int64
	generateBox    string
	numWorkers     int
	truncateFirst  bool
)

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotIn, "points", "p", "", "Point file (.json or .gob)")
	snapshotCmd.Flags().StringVarP(&snapshotScores, "scores", "s", "", "Hazard scores in [0,1] to apply before writing")
	snapshotCmd.Flags().StringVarP(&snapshotOut, "out", "o", "data/points.gob", "Output file path")
	snapshotCmd.Flags().IntVarP(&generateCount, "generate", "n", 0, "Generate this many random points instead of reading --points")
	snapshotCmd.Flags().Int64Var(&generateSeed, "seed", time.Now().UnixNano(), "Random seed")
	snapshotCmd.Flags().StringVar(&generateBox, "bounds", "43.58,-79.64,43.86,-79.11", "Generation bounds minLat,minLon,maxLat,maxLon")
	snapshotCmd.Flags().IntVarP(&numWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")

	importCmd.Flags().StringVarP(&snapshotIn, "points", "p", "", "Point file (.json or .gob)")
	importCmd.Flags().BoolVar(&truncateFirst, "truncate", false, "Remove stored points first")
	_ = importCmd.MarkFlagRequired("points")
}

func snapshotPoints() ([]models.Point, error) {
	if generateCount > 0 {
		bounds, err := parseBox(generateBox)
		if err != nil {
			return nil, fmt.Errorf("--bounds: %w", err)
		}
		return dataset.RandomPoints(generateCount, bounds, generateSeed, numWorkers), nil
	}
	if snapshotIn == "" {
		return nil, fmt.Errorf("--points or --generate is required")
	}

	points, err := dataset.Load(snapshotIn)
	if err != nil {
		return nil, err
	}
	if snapshotScores != "" {
		scores, err := dataset.LoadScores(snapshotScores)
		if err != nil {
			return nil, err
		}
		if points, err = hazard.Apply(points, scores, hazard.Unit); err != nil {
			return nil, err
		}
	}
	return points, nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	points, err := snapshotPoints()
	if err != nil {
		return err
	}

	start := time.Now()
	if err := dataset.SaveSnapshot(snapshotOut, points); err != nil {
		return err
	}
	logger.Info("snapshot written",
		zap.String("file", snapshotOut),
		zap.Int("points", len(points)),
		zap.Duration("elapsed", time.Since(start)))

	if fileInfo, err := os.Stat(snapshotOut); err == nil && !jsonOutput {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s points to %s (%.2f MB)\n",
			statStyle.Render(fmt.Sprintf("%d", len(points))), snapshotOut,
			float64(fileInfo.Size())/(1024*1024))
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	if !cfg.PostGIS.Enabled() {
		return fmt.Errorf("postgis is not configured; set postgis.dsn or SAFEROUTE_POSTGIS_DSN")
	}
	points, err := dataset.Load(snapshotIn)
	if err != nil {
		return err
	}

	store, err := postgis.Open(cfg.PostGIS.ConnString(), cfg.PostGIS.MaxConnections)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		return err
	}
	if truncateFirst {
		if err := store.Truncate(); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := store.BulkInsertPoints(points); err != nil {
		return err
	}
	stats, err := store.Stats()
	if err != nil {
		return err
	}
	logger.Info("imported points",
		zap.Int("points", len(points)),
		zap.Int64("rows", stats.Rows),
		zap.Duration("elapsed", time.Since(start)))

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), stats)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s points; table holds %d rows (%s, index %s)\n",
		statStyle.Render(fmt.Sprintf("%d", len(points))), stats.Rows, stats.TableSize, stats.IndexSize)
	return nil
}
