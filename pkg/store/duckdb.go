package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
	"github.com/ajosegun/carbon-pulse/pkg/validate"
)

// ═══════════════════════════════════════════
// DuckDB Store
// ═══════════════════════════════════════════

// DuckDB is the single-node embedded store. Tables are created on Open;
// uniqueness on id and (zone, timestamp) is enforced by constraints, and
// colliding inserts are skipped with INSERT OR IGNORE.
type DuckDB struct {
	path string
	db   *sql.DB
}

// NewDuckDB creates a DuckDB store backed by the given database file.
func NewDuckDB(path string) *DuckDB {
	return &DuckDB{path: path}
}

const duckdbSchema = `
CREATE TABLE IF NOT EXISTS zones (
	zone VARCHAR PRIMARY KEY,
	name VARCHAR NOT NULL,
	country VARCHAR NOT NULL,
	latitude DOUBLE,
	longitude DOUBLE,
	timezone VARCHAR,
	created_at TIMESTAMP,
	updated_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS readings (
	id VARCHAR PRIMARY KEY,
	zone VARCHAR NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	carbon_intensity DOUBLE,
	fossil_fuel_percentage DOUBLE,
	renewable_percentage DOUBLE,
	nuclear_percentage DOUBLE,
	hydro_percentage DOUBLE,
	wind_percentage DOUBLE,
	solar_percentage DOUBLE,
	biomass_percentage DOUBLE,
	coal_percentage DOUBLE,
	gas_percentage DOUBLE,
	oil_percentage DOUBLE,
	unknown_percentage DOUBLE,
	total_production DOUBLE,
	total_consumption DOUBLE,
	created_at TIMESTAMP,
	carbon_intensity_category VARCHAR,
	total_renewable_percentage DOUBLE,
	zone_name VARCHAR,
	zone_country VARCHAR,
	zone_latitude DOUBLE,
	zone_longitude DOUBLE,
	zone_timezone VARCHAR,
	UNIQUE (zone, timestamp)
);
`

// readingColumns is the insert/select column order for the readings table.
const readingColumns = `id, zone, timestamp, carbon_intensity,
	fossil_fuel_percentage, renewable_percentage, nuclear_percentage,
	hydro_percentage, wind_percentage, solar_percentage, biomass_percentage,
	coal_percentage, gas_percentage, oil_percentage, unknown_percentage,
	total_production, total_consumption, created_at,
	carbon_intensity_category, total_renewable_percentage,
	zone_name, zone_country, zone_latitude, zone_longitude, zone_timezone`

// Open connects to the database file and ensures the schema exists.
func (d *DuckDB) Open(ctx context.Context) error {
	if dir := filepath.Dir(d.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("duckdb mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("duckdb", d.path)
	if err != nil {
		return fmt.Errorf("duckdb open %q: %w", d.path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("duckdb ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, duckdbSchema); err != nil {
		db.Close()
		return fmt.Errorf("duckdb create schema: %w", err)
	}

	d.db = db
	return nil
}

// Close shuts down the database connection.
func (d *DuckDB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DuckDB) UpsertZones(ctx context.Context, zones []v1.ZoneMetadata) error {
	if len(zones) == 0 {
		return nil
	}

	query := `INSERT INTO zones (zone, name, country, latitude, longitude, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (zone) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at`

	now := time.Now().UTC()
	for _, z := range zones {
		created := z.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := d.db.ExecContext(ctx, query,
			z.Zone, z.Name, z.Country, z.Latitude, z.Longitude, z.Timezone,
			created, now,
		); err != nil {
			return fmt.Errorf("duckdb upsert zone %s: %w", z.Zone, err)
		}
	}
	return nil
}

func (d *DuckDB) Zones(ctx context.Context) (map[string]v1.ZoneMetadata, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT zone, name, country, latitude, longitude, timezone, created_at, updated_at FROM zones`)
	if err != nil {
		return nil, fmt.Errorf("duckdb query zones: %w", err)
	}
	defer rows.Close()

	out := make(map[string]v1.ZoneMetadata)
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("duckdb scan zone: %w", err)
		}
		out[z.Zone] = *z
	}
	return out, rows.Err()
}

func (d *DuckDB) Zone(ctx context.Context, code string) (*v1.ZoneMetadata, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT zone, name, country, latitude, longitude, timezone, created_at, updated_at
		 FROM zones WHERE zone = ?`, code)
	z, err := scanZone(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("duckdb query zone %s: %w", code, err)
	}
	return z, nil
}

func (d *DuckDB) InsertReadings(ctx context.Context, readings []v1.TransformedReading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("duckdb begin tx: %w", err)
	}

	query := fmt.Sprintf(`INSERT OR IGNORE INTO readings (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		readingColumns)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("duckdb prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range readings {
		res, err := stmt.ExecContext(ctx, readingArgs(&readings[i])...)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("duckdb insert reading %s: %w", readings[i].ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("duckdb commit: %w", err)
	}
	return inserted, nil
}

func (d *DuckDB) Latest(ctx context.Context, zone string) (*v1.TransformedReading, error) {
	query := fmt.Sprintf(`SELECT %s FROM readings WHERE zone = ?
		ORDER BY timestamp DESC LIMIT 1`, readingColumns)

	row := d.db.QueryRowContext(ctx, query, zone)
	r, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("duckdb latest %s: %w", zone, err)
	}
	return r, nil
}

func (d *DuckDB) History(ctx context.Context, zone string, start, end time.Time) ([]v1.TransformedReading, error) {
	query := fmt.Sprintf(`SELECT %s FROM readings
		WHERE zone = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`, readingColumns)

	rows, err := d.db.QueryContext(ctx, query, zone, start, end)
	if err != nil {
		return nil, fmt.Errorf("duckdb history %s: %w", zone, err)
	}
	defer rows.Close()
	return collectReadings(rows)
}

func (d *DuckDB) Window(ctx context.Context, since time.Time) ([]v1.TransformedReading, error) {
	query := fmt.Sprintf(`SELECT %s FROM readings
		WHERE timestamp >= ? ORDER BY timestamp ASC`, readingColumns)

	rows, err := d.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("duckdb window: %w", err)
	}
	defer rows.Close()
	return collectReadings(rows)
}

func (d *DuckDB) Keys(ctx context.Context) (*validate.KeySet, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, zone, timestamp FROM readings`)
	if err != nil {
		return nil, fmt.Errorf("duckdb query keys: %w", err)
	}
	defer rows.Close()

	ks := validate.NewKeySet()
	for rows.Next() {
		var id, zone string
		var ts time.Time
		if err := rows.Scan(&id, &zone, &ts); err != nil {
			return nil, fmt.Errorf("duckdb scan key: %w", err)
		}
		ks.Add(id, zone, ts)
	}
	return ks, rows.Err()
}

// ═══════════════════════════════════════════
// Row mapping
// ═══════════════════════════════════════════

// readingArgs flattens a reading into the insert column order.
func readingArgs(r *v1.TransformedReading) []any {
	var createdAt any
	if !r.CreatedAt.IsZero() {
		createdAt = r.CreatedAt
	}
	return []any{
		r.ID, r.Zone, r.Timestamp.UTC(), r.CarbonIntensity,
		r.FossilFuelPercentage, r.RenewablePercentage, r.NuclearPercentage,
		r.HydroPercentage, r.WindPercentage, r.SolarPercentage, r.BiomassPercentage,
		r.CoalPercentage, r.GasPercentage, r.OilPercentage, r.UnknownPercentage,
		r.TotalProduction, r.TotalConsumption, createdAt,
		string(r.CarbonIntensityCategory), r.TotalRenewablePercentage,
		r.ZoneName, r.ZoneCountry, r.ZoneLatitude, r.ZoneLongitude, r.ZoneTimezone,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanZone reads one zones row. Every column past country is nullable:
// rows written outside SeedZones may carry NULL coordinates.
func scanZone(row rowScanner) (*v1.ZoneMetadata, error) {
	var z v1.ZoneMetadata
	var lat, long sql.NullFloat64
	var tz sql.NullString
	var created, updated sql.NullTime
	if err := row.Scan(&z.Zone, &z.Name, &z.Country, &lat, &long,
		&tz, &created, &updated); err != nil {
		return nil, err
	}
	z.Latitude = lat.Float64
	z.Longitude = long.Float64
	z.Timezone = tz.String
	z.CreatedAt = created.Time
	z.UpdatedAt = updated.Time
	return &z, nil
}

// scanReading reads one row in the readingColumns order.
func scanReading(row rowScanner) (*v1.TransformedReading, error) {
	var r v1.TransformedReading
	var category sql.NullString
	var createdAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.Zone, &r.Timestamp, &r.CarbonIntensity,
		&r.FossilFuelPercentage, &r.RenewablePercentage, &r.NuclearPercentage,
		&r.HydroPercentage, &r.WindPercentage, &r.SolarPercentage, &r.BiomassPercentage,
		&r.CoalPercentage, &r.GasPercentage, &r.OilPercentage, &r.UnknownPercentage,
		&r.TotalProduction, &r.TotalConsumption, &createdAt,
		&category, &r.TotalRenewablePercentage,
		&r.ZoneName, &r.ZoneCountry, &r.ZoneLatitude, &r.ZoneLongitude, &r.ZoneTimezone,
	)
	if err != nil {
		return nil, err
	}

	r.Timestamp = r.Timestamp.UTC()
	r.CreatedAt = createdAt.Time
	r.CarbonIntensityCategory = v1.Category(category.String)
	return &r, nil
}

func collectReadings(rows *sql.Rows) ([]v1.TransformedReading, error) {
	var out []v1.TransformedReading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
