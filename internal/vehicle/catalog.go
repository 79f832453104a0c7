// Package vehicle is the local vehicle-spec catalog: engine displacement
// and mass per model, backed by SQLite.
package vehicle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/randomizedcoder/go-obd-telemetry/internal/engine"
)

// ErrNotFound is returned when no vehicle matches.
var ErrNotFound = errors.New("vehicle not found")

// DefaultSearchLimit caps Search results when limit <= 0.
const DefaultSearchLimit = 20

// Store looks up vehicle specs by model name.
type Store interface {
	Get(ctx context.Context, model string) (Specs, error)
}

// Specs describes one vehicle model.
type Specs struct {
	Model           string
	DisplacementCC  int
	FuelType        string
	WeightKg        int
	DragCoefficient float64
}

// Profile returns the engine profile for the model's displacement.
func (s Specs) Profile() (engine.EngineProfile, error) {
	return engine.NewEngineProfile(float64(s.DisplacementCC) / 1000)
}

// Tonnage returns the vehicle mass in tonnes, or 0 if unknown.
func (s Specs) Tonnage() float64 {
	if s.WeightKg <= 0 {
		return 0
	}
	return float64(s.WeightKg) / 1000
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cars (
		model     TEXT PRIMARY KEY,
		cc        INTEGER NOT NULL,
		fuel      TEXT NOT NULL,
		weight_kg INTEGER NOT NULL,
		drag      REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

const activeModelKey = "active_model"

// Catalog is a SQLite-backed Store. Safe for concurrent use.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the catalog at path. An empty catalog
// is seeded with SampleCatalog.
func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open vehicle catalog %s: %w", path, err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db, path: path}
	if err := c.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) init(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create vehicle schema: %w", err)
		}
	}

	n, err := c.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return c.seed(ctx, SampleCatalog)
}

func (c *Catalog) seed(ctx context.Context, specs []Specs) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed vehicle catalog: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO cars (model, cc, fuel, weight_kg, drag) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("seed vehicle catalog: %w", err)
	}
	defer stmt.Close()

	for _, s := range specs {
		if _, err := stmt.ExecContext(ctx, s.Model, s.DisplacementCC, s.FuelType, s.WeightKg, s.DragCoefficient); err != nil {
			return fmt.Errorf("seed %q: %w", s.Model, err)
		}
	}
	return tx.Commit()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// Count returns the number of models in the catalog.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cars`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vehicles: %w", err)
	}
	return n, nil
}

// Search returns model names containing query, case-insensitively,
// sorted by name.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := c.db.QueryContext(ctx,
		`SELECT model FROM cars WHERE model LIKE ? ESCAPE '\' ORDER BY model LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search vehicles: %w", err)
	}
	defer rows.Close()

	var models []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("search vehicles: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Get returns the specs for an exact model name.
func (c *Catalog) Get(ctx context.Context, model string) (Specs, error) {
	var s Specs
	err := c.db.QueryRowContext(ctx,
		`SELECT model, cc, fuel, weight_kg, drag FROM cars WHERE model = ?`, model,
	).Scan(&s.Model, &s.DisplacementCC, &s.FuelType, &s.WeightKg, &s.DragCoefficient)
	if errors.Is(err, sql.ErrNoRows) {
		return Specs{}, fmt.Errorf("%q: %w", model, ErrNotFound)
	}
	if err != nil {
		return Specs{}, fmt.Errorf("get vehicle %q: %w", model, err)
	}
	return s, nil
}

// Upsert adds or replaces a model.
func (c *Catalog) Upsert(ctx context.Context, s Specs) error {
	if strings.TrimSpace(s.Model) == "" {
		return errors.New("vehicle model must not be empty")
	}
	if _, err := s.Profile(); err != nil {
		return fmt.Errorf("vehicle %q: %w", s.Model, err)
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cars (model, cc, fuel, weight_kg, drag) VALUES (?, ?, ?, ?, ?)`,
		s.Model, s.DisplacementCC, s.FuelType, s.WeightKg, s.DragCoefficient)
	if err != nil {
		return fmt.Errorf("upsert vehicle %q: %w", s.Model, err)
	}
	return nil
}

// SaveActive remembers model as the vehicle to load next run.
// The model must exist in the catalog.
func (c *Catalog) SaveActive(ctx context.Context, model string) error {
	if _, err := c.Get(ctx, model); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, activeModelKey, model)
	if err != nil {
		return fmt.Errorf("save active vehicle: %w", err)
	}
	return nil
}

// LastActive returns the vehicle saved by SaveActive. It returns
// ErrNotFound if none was saved or the model has since been removed.
func (c *Catalog) LastActive(ctx context.Context) (Specs, error) {
	var model string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, activeModelKey).Scan(&model)
	if errors.Is(err, sql.ErrNoRows) {
		return Specs{}, fmt.Errorf("no active vehicle: %w", ErrNotFound)
	}
	if err != nil {
		return Specs{}, fmt.Errorf("load active vehicle: %w", err)
	}
	return c.Get(ctx, model)
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
