// Package config loads routing settings from YAML with environment overrides.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kass/go-saferoute/pkg/geo"
	"github.com/kass/go-saferoute/pkg/graph"
	"github.com/kass/go-saferoute/pkg/hazard"
	"gopkg.in/yaml.v3"
)

// Adjacency names accepted in graph.adjacency
const (
	AdjacencyProximity = "proximity"
	AdjacencyGrid      = "grid"
)

// Config holds every tunable of a routing run
type Config struct {
	Graph        GraphConfig         `yaml:"graph"`
	Grid         GridConfig          `yaml:"grid"`
	Coefficients hazard.Coefficients `yaml:"coefficients"`
	Fusion       hazard.Fusion       `yaml:"fusion"`
	Logging      LoggingConfig       `yaml:"logging"`
	PostGIS      PostGISConfig       `yaml:"postgis"`
}

// GraphConfig controls graph construction
type GraphConfig struct {
	Adjacency   string  `yaml:"adjacency"`
	Metric      string  `yaml:"metric"`
	MaxDistance float64 `yaml:"max_distance"`
	RiskFactor  float64 `yaml:"risk_factor"`
}

// GridConfig controls incident aggregation onto a lattice
type GridConfig struct {
	Rows      int     `yaml:"rows"`
	Cols      int     `yaml:"cols"`
	OutputMin float64 `yaml:"output_min"`
	OutputMax float64 `yaml:"output_max"`
}

// LoggingConfig selects the zap preset and level
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// PostGISConfig locates an optional point store. DSN wins over the
// individual fields; an empty DSN with an empty host disables the store.
type PostGISConfig struct {
	DSN            string `yaml:"dsn"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	MaxConnections int    `yaml:"max_connections"`
}

// Enabled reports whether a store is configured
func (p PostGISConfig) Enabled() bool {
	return p.DSN != "" || p.Host != ""
}

// ConnString returns the lib/pq connection string
func (p PostGISConfig) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.Database)
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			Adjacency:   AdjacencyProximity,
			Metric:      geo.Equirectangular{}.Name(),
			MaxDistance: 500,
			RiskFactor:  1,
		},
		Grid: GridConfig{
			Rows:      20,
			Cols:      20,
			OutputMin: hazard.Percent.Min,
			OutputMax: hazard.Percent.Max,
		},
		Coefficients: hazard.DefaultCoefficients(),
		Fusion:       hazard.DefaultFusion(),
		Logging: LoggingConfig{
			Level: "info",
		},
		PostGIS: PostGISConfig{
			Port:           5432,
			Database:       "geodb",
			MaxConnections: 25,
		},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("SAFEROUTE_MAX_DISTANCE"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SAFEROUTE_MAX_DISTANCE: %w", err)
		}
		c.Graph.MaxDistance = d
	}
	if v := os.Getenv("SAFEROUTE_METRIC"); v != "" {
		c.Graph.Metric = strings.ToLower(v)
	}
	if v := os.Getenv("SAFEROUTE_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SAFEROUTE_POSTGIS_DSN"); v != "" {
		c.PostGIS.DSN = v
	}
	return nil
}

// Validate checks every section
func (c *Config) Validate() error {
	switch c.Graph.Adjacency {
	case AdjacencyProximity, AdjacencyGrid:
	default:
		return fmt.Errorf("graph.adjacency: unknown rule %q", c.Graph.Adjacency)
	}
	if _, err := geo.MetricByName(c.Graph.Metric); err != nil {
		return fmt.Errorf("graph.metric: %w", err)
	}
	if !nonNegative(c.Graph.MaxDistance) {
		return fmt.Errorf("graph.max_distance: must be a non-negative number, got %v", c.Graph.MaxDistance)
	}
	if !nonNegative(c.Graph.RiskFactor) {
		return fmt.Errorf("graph.risk_factor: must be a non-negative number, got %v", c.Graph.RiskFactor)
	}

	if c.Grid.Rows <= 0 || c.Grid.Cols <= 0 {
		return fmt.Errorf("grid: rows and cols must be positive, got %dx%d", c.Grid.Rows, c.Grid.Cols)
	}
	if !(c.Grid.OutputMax > c.Grid.OutputMin) {
		return fmt.Errorf("grid: output_max must exceed output_min")
	}

	if err := c.Coefficients.Validate(); err != nil {
		return fmt.Errorf("coefficients: %w", err)
	}
	if err := c.Fusion.Validate(); err != nil {
		return fmt.Errorf("fusion: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	return nil
}

// Metric resolves graph.metric
func (c *Config) Metric() (geo.Metric, error) {
	return geo.MetricByName(c.Graph.Metric)
}

// OutputScale is the range aggregated cell scores are rescaled to
func (c *Config) OutputScale() hazard.Scale {
	return hazard.Scale{Min: c.Grid.OutputMin, Max: c.Grid.OutputMax}
}

// GraphOptions translates the graph section into build options
func (c *Config) GraphOptions() ([]graph.Option, error) {
	m, err := c.Metric()
	if err != nil {
		return nil, err
	}
	return []graph.Option{graph.WithMetric(m), graph.WithRiskFactor(c.Graph.RiskFactor)}, nil
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
