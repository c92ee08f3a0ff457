package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kass/go-saferoute/pkg/dataset"
	"github.com/kass/go-saferoute/pkg/hazard"
	"github.com/kass/go-saferoute/pkg/models"
	"github.com/kass/go-saferoute/pkg/postgis"
	"go.uber.org/zap"
)

// pointSource flags shared by commands that read a point set
type pointSource struct {
	file string
	box  string
}

// load reads points from --points, or from PostGIS inside --box
func (s pointSource) load() ([]models.Point, error) {
	if s.file != "" {
		points, err := dataset.Load(s.file)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded points", zap.String("file", s.file), zap.Int("count", len(points)))
		return points, nil
	}

	if !cfg.PostGIS.Enabled() {
		return nil, fmt.Errorf("no point source: pass --points or configure postgis")
	}
	if s.box == "" {
		return nil, fmt.Errorf("--box is required when reading from postgis")
	}
	box, err := parseBox(s.box)
	if err != nil {
		return nil, err
	}

	store, err := postgis.Open(cfg.PostGIS.ConnString(), cfg.PostGIS.MaxConnections)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	points, err := store.QueryBox(box)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded points from postgis", zap.String("box", s.box), zap.Int("count", len(points)))
	return points, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

// parseLocation reads "lat,lon"
func parseLocation(s string) (models.Location, error) {
	v, err := parseFloats(s, 2)
	if err != nil {
		return models.Location{}, err
	}
	return models.Location{Lat: v[0], Lon: v[1]}, nil
}

// parseBox reads "minLat,minLon,maxLat,maxLon"
func parseBox(s string) (models.BoundingBox, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return models.BoundingBox{}, err
	}
	return models.BoundingBox{
		BottomLeft: models.Location{Lat: v[0], Lon: v[1]},
		TopRight:   models.Location{Lat: v[2], Lon: v[3]},
	}, nil
}

func parseScale(s string) (hazard.Scale, error) {
	switch strings.ToLower(s) {
	case "unit":
		return hazard.Unit, nil
	case "percent":
		return hazard.Percent, nil
	default:
		return hazard.Scale{}, fmt.Errorf("unknown score scale %q (want unit or percent)", s)
	}
}
