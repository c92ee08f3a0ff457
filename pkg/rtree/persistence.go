package rtree

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kass/go-saferoute/pkg/models"
)

const snapshotVersion = 1

// Snapshot is the gob form of a point set
type Snapshot struct {
	Version int
	Count   int64
	Bounds  models.BoundingBox
	Points  []models.Point
}

// SaveToFile writes every indexed point, hazards included, to a gob file.
// The file is written next to its destination and renamed into place.
func (g *PointIndex) SaveToFile(filename string) error {
	points := g.Points()
	snap := Snapshot{
		Version: snapshotVersion,
		Count:   int64(len(points)),
		Bounds:  boundsOf(points),
		Points:  points,
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := gob.NewEncoder(w).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), filename)
}

// LoadFromFile replaces the index content with the points stored in a gob file
func (g *PointIndex) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var snap Snapshot
	if err := gob.NewDecoder(bufio.NewReader(file)).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if int64(len(snap.Points)) != snap.Count {
		return fmt.Errorf("corrupt snapshot: header says %d points, found %d", snap.Count, len(snap.Points))
	}

	g.Clear()
	if err := g.IndexPoints(snap.Points); err != nil {
		return fmt.Errorf("failed to index points: %w", err)
	}
	return nil
}

func boundsOf(points []models.Point) models.BoundingBox {
	if len(points) == 0 {
		return models.BoundingBox{}
	}
	b := models.BoundingBox{BottomLeft: points[0].Location, TopRight: points[0].Location}
	for _, p := range points[1:] {
		b.BottomLeft.Lat = min(b.BottomLeft.Lat, p.Location.Lat)
		b.BottomLeft.Lon = min(b.BottomLeft.Lon, p.Location.Lon)
		b.TopRight.Lat = max(b.TopRight.Lat, p.Location.Lat)
		b.TopRight.Lon = max(b.TopRight.Lon, p.Location.Lon)
	}
	return b
}
