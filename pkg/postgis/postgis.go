// Package postgis stores scored points in PostGIS so large point sets can be
// cut down to a bounding box before a graph is built.
package postgis

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kass/go-saferoute/pkg/models"
	_ "github.com/lib/pq"
)

// PointStore is a PostGIS table of points with their hazard values
type PointStore struct {
	db *sql.DB
}

// Open connects to PostGIS with a lib/pq connection string
func Open(connStr string, maxConns int) (*PointStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 25
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PointStore{db: db}, nil
}

// InitSchema creates the points table and its spatial index if missing
func (p *PointStore) InitSchema() error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		`CREATE TABLE IF NOT EXISTS saferoute_points (
			id TEXT PRIMARY KEY,
			location GEOMETRY(POINT, 4326) NOT NULL,
			hazard DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (hazard >= 0 AND hazard <= 1)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saferoute_points_location ON saferoute_points USING GIST(location);`,
	}

	for _, query := range queries {
		if _, err := p.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// Truncate removes every stored point
func (p *PointStore) Truncate() error {
	if _, err := p.db.Exec(`TRUNCATE saferoute_points;`); err != nil {
		return fmt.Errorf("failed to truncate points: %w", err)
	}
	return nil
}

// batchSize is how many rows are committed per transaction
const batchSize = 10000

// BulkInsertPoints upserts points in batched transactions. Points are
// validated before anything is written.
func (p *PointStore) BulkInsertPoints(points []models.Point) error {
	for _, pt := range points {
		if pt.ID == "" {
			return models.Invalid("", "id", "point id must not be empty")
		}
		if !pt.Location.Finite() {
			return models.Invalid(pt.ID, "location", "coordinates must be finite")
		}
		if !(pt.Hazard >= 0 && pt.Hazard <= 1) {
			return models.Invalid(pt.ID, "hazard", "%v outside [0, 1]", pt.Hazard)
		}
	}

	stmt, err := p.db.Prepare(`
		INSERT INTO saferoute_points (id, location, hazard)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326), $4)
		ON CONFLICT (id) DO UPDATE SET location = EXCLUDED.location, hazard = EXCLUDED.hazard
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := p.insertBatch(stmt, points[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *PointStore) insertBatch(stmt *sql.Stmt, points []models.Point) error {
	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txStmt := tx.Stmt(stmt)

	for _, pt := range points {
		if _, err := txStmt.Exec(pt.ID, pt.Location.Lon, pt.Location.Lat, pt.Hazard); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert point %s: %w", pt.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// QueryBox returns the points inside box ordered by id
func (p *PointStore) QueryBox(box models.BoundingBox) ([]models.Point, error) {
	query := `
		SELECT id, ST_Y(location) AS lat, ST_X(location) AS lon, hazard
		FROM saferoute_points
		WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		ORDER BY id
	`

	rows, err := p.db.Query(query,
		box.BottomLeft.Lon, box.BottomLeft.Lat,
		box.TopRight.Lon, box.TopRight.Lat)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var results []models.Point
	for rows.Next() {
		var pt models.Point
		if err := rows.Scan(&pt.ID, &pt.Location.Lat, &pt.Location.Lon, &pt.Hazard); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

// Count returns the number of stored points
func (p *PointStore) Count() (int64, error) {
	var count int64
	if err := p.db.QueryRow("SELECT COUNT(*) FROM saferoute_points").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

// TableStats describes the storage used by the points table
type TableStats struct {
	DatabaseSize string `json:"databaseSize"`
	TableSize    string `json:"tableSize"`
	IndexSize    string `json:"indexSize"`
	Rows         int64  `json:"rows"`
}

// Stats reports database, table and index sizes
func (p *PointStore) Stats() (TableStats, error) {
	var s TableStats
	err := p.db.QueryRow(`
		SELECT
			pg_size_pretty(pg_database_size(current_database())),
			pg_size_pretty(pg_total_relation_size('saferoute_points')),
			pg_size_pretty(pg_indexes_size('saferoute_points'))
	`).Scan(&s.DatabaseSize, &s.TableSize, &s.IndexSize)
	if err != nil {
		return TableStats{}, fmt.Errorf("failed to get table stats: %w", err)
	}

	s.Rows, err = p.Count()
	if err != nil {
		return TableStats{}, err
	}
	return s, nil
}

// Close closes the database connection
func (p *PointStore) Close() error {
	return p.db.Close()
}
