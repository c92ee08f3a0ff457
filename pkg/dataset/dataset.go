// Package dataset reads and writes the files the CLI works with: point sets,
// hazard model scores and incident records as JSON, and gob snapshots of
// indexed points.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kass/go-saferoute/pkg/hazard"
	"github.com/kass/go-saferoute/pkg/models"
	"github.com/kass/go-saferoute/pkg/rtree"
)

// PointRecord is the on-disk form of a point. Hazard is optional and
// defaults to 0 when the hazard model has not scored the point.
type PointRecord struct {
	ID     string       `json:"id"`
	Lat    float64      `json:"lat"`
	Lon    float64      `json:"lon"`
	Hazard *float64     `json:"hazard,omitempty"`
	Cell   *models.Cell `json:"cell,omitempty"`
}

// IncidentRecord is the on-disk form of an incident. A severity label fills
// the injury component when no numeric injury score is given.
type IncidentRecord struct {
	ID        string   `json:"id"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Severity  string   `json:"severity,omitempty"`
	Injury    *float64 `json:"injury,omitempty"`
	Road      float64  `json:"road"`
	Mechanism float64  `json:"mechanism"`
	TimeOfDay float64  `json:"time_of_day"`
	Surface   float64  `json:"surface"`
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadPoints reads a JSON array of point records
func LoadPoints(path string) ([]models.Point, error) {
	var records []PointRecord
	if err := readJSON(path, &records); err != nil {
		return nil, err
	}

	points := make([]models.Point, len(records))
	for i, r := range records {
		points[i] = models.Point{
			ID:       r.ID,
			Location: models.Location{Lat: r.Lat, Lon: r.Lon},
			Cell:     r.Cell,
		}
		if r.Hazard != nil {
			points[i].Hazard = *r.Hazard
		}
	}
	return points, nil
}

// SavePoints writes points as a JSON array of point records
func SavePoints(path string, points []models.Point) error {
	records := make([]PointRecord, len(points))
	for i, p := range points {
		h := p.Hazard
		records[i] = PointRecord{
			ID:     p.ID,
			Lat:    p.Location.Lat,
			Lon:    p.Location.Lon,
			Hazard: &h,
			Cell:   p.Cell,
		}
	}
	return writeJSON(path, records)
}

// LoadScores reads hazard model output: a JSON object from point id to score
func LoadScores(path string) (map[string]float64, error) {
	scores := make(map[string]float64)
	if err := readJSON(path, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// LoadModelOutputs reads raw classifier output: a JSON object from point id
// to {cluster_rank, clusters, probability, lighting}
func LoadModelOutputs(path string) (map[string]hazard.ModelOutput, error) {
	outputs := make(map[string]hazard.ModelOutput)
	if err := readJSON(path, &outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

// LoadIncidents reads a JSON array of incident records
func LoadIncidents(path string) ([]hazard.Incident, error) {
	var records []IncidentRecord
	if err := readJSON(path, &records); err != nil {
		return nil, err
	}

	incidents := make([]hazard.Incident, len(records))
	for i, r := range records {
		in := hazard.Incident{
			ID:        r.ID,
			Location:  models.Location{Lat: r.Lat, Lon: r.Lon},
			Road:      r.Road,
			Mechanism: r.Mechanism,
			TimeOfDay: r.TimeOfDay,
			Surface:   r.Surface,
		}
		switch {
		case r.Injury != nil:
			in.Injury = *r.Injury
		case r.Severity != "":
			v, ok := hazard.SeverityScore(r.Severity)
			if !ok {
				return nil, models.Invalid(r.ID, "severity", "unknown label %q", r.Severity)
			}
			in.Injury = v
		}
		incidents[i] = in
	}
	return incidents, nil
}

// SaveSnapshot indexes points and writes them to a gob snapshot
func SaveSnapshot(path string, points []models.Point) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	index := rtree.NewPointIndex()
	if err := index.IndexPoints(points); err != nil {
		return err
	}
	return index.SaveToFile(path)
}

// LoadSnapshot reads a gob snapshot back into points ordered by id
func LoadSnapshot(path string) ([]models.Point, error) {
	index := rtree.NewPointIndex()
	if err := index.LoadFromFile(path); err != nil {
		return nil, err
	}
	return index.Points(), nil
}

// Load picks the reader from the file extension: .gob snapshots or JSON
func Load(path string) ([]models.Point, error) {
	if filepath.Ext(path) == ".gob" {
		return LoadSnapshot(path)
	}
	return LoadPoints(path)
}
