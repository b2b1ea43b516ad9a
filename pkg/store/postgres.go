package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
	"github.com/ajosegun/carbon-pulse/pkg/validate"
)

// ═══════════════════════════════════════════
// PostgreSQL Store (pgx)
// ═══════════════════════════════════════════

// Postgres is the shared-deployment store, backed by a pgx connection
// pool. The DSN comes from the monitor spec or the POSTGRES_DSN
// environment variable.
type Postgres struct {
	dsn  string
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgreSQL store.
func NewPostgres(dsn string) *Postgres {
	if dsn == "" {
		dsn = os.Getenv("POSTGRES_DSN")
	}
	return &Postgres{dsn: dsn}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS zones (
	zone TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	country TEXT NOT NULL,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	timezone TEXT,
	created_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS readings (
	id TEXT PRIMARY KEY,
	zone TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	carbon_intensity DOUBLE PRECISION,
	fossil_fuel_percentage DOUBLE PRECISION,
	renewable_percentage DOUBLE PRECISION,
	nuclear_percentage DOUBLE PRECISION,
	hydro_percentage DOUBLE PRECISION,
	wind_percentage DOUBLE PRECISION,
	solar_percentage DOUBLE PRECISION,
	biomass_percentage DOUBLE PRECISION,
	coal_percentage DOUBLE PRECISION,
	gas_percentage DOUBLE PRECISION,
	oil_percentage DOUBLE PRECISION,
	unknown_percentage DOUBLE PRECISION,
	total_production DOUBLE PRECISION,
	total_consumption DOUBLE PRECISION,
	created_at TIMESTAMPTZ,
	carbon_intensity_category TEXT,
	total_renewable_percentage DOUBLE PRECISION,
	zone_name TEXT,
	zone_country TEXT,
	zone_latitude DOUBLE PRECISION,
	zone_longitude DOUBLE PRECISION,
	zone_timezone TEXT,
	UNIQUE (zone, timestamp)
);
`

// Open establishes the connection pool and ensures the schema exists.
func (p *Postgres) Open(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(p.dsn)
	if err != nil {
		return fmt.Errorf("postgres parse dsn: %w", err)
	}
	poolCfg.MinConns = 2
	poolCfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return fmt.Errorf("postgres create schema: %w", err)
	}

	p.pool = pool
	return nil
}

// Close shuts down the connection pool.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *Postgres) UpsertZones(ctx context.Context, zones []v1.ZoneMetadata) error {
	if len(zones) == 0 {
		return nil
	}

	query := `INSERT INTO zones (zone, name, country, latitude, longitude, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (zone) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, z := range zones {
		created := z.CreatedAt
		if created.IsZero() {
			created = now
		}
		batch.Queue(query, z.Zone, z.Name, z.Country, z.Latitude, z.Longitude, z.Timezone, created, now)
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range zones {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres upsert zones: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Zones(ctx context.Context) (map[string]v1.ZoneMetadata, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT zone, name, country, latitude, longitude, timezone, created_at, updated_at FROM zones`)
	if err != nil {
		return nil, fmt.Errorf("postgres query zones: %w", err)
	}
	defer rows.Close()

	out := make(map[string]v1.ZoneMetadata)
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres scan zone: %w", err)
		}
		out[z.Zone] = *z
	}
	return out, rows.Err()
}

func (p *Postgres) Zone(ctx context.Context, code string) (*v1.ZoneMetadata, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT zone, name, country, latitude, longitude, timezone, created_at, updated_at
		 FROM zones WHERE zone = $1`, code)
	z, err := scanZone(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres query zone %s: %w", code, err)
	}
	return z, nil
}

func (p *Postgres) InsertReadings(ctx context.Context, readings []v1.TransformedReading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`INSERT INTO readings (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT DO NOTHING`, readingColumns)

	batch := &pgx.Batch{}
	for i := range readings {
		batch.Queue(query, readingArgs(&readings[i])...)
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for i := range readings {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres insert reading %s: %w", readings[i].ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (p *Postgres) Latest(ctx context.Context, zone string) (*v1.TransformedReading, error) {
	query := fmt.Sprintf(`SELECT %s FROM readings WHERE zone = $1
		ORDER BY timestamp DESC LIMIT 1`, readingColumns)

	row := p.pool.QueryRow(ctx, query, zone)
	r, err := scanReading(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres latest %s: %w", zone, err)
	}
	return r, nil
}

func (p *Postgres) History(ctx context.Context, zone string, start, end time.Time) ([]v1.TransformedReading, error) {
	query := fmt.Sprintf(`SELECT %s FROM readings
		WHERE zone = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC`, readingColumns)

	rows, err := p.pool.Query(ctx, query, zone, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres history %s: %w", zone, err)
	}
	defer rows.Close()
	return collectPgxReadings(rows)
}

func (p *Postgres) Window(ctx context.Context, since time.Time) ([]v1.TransformedReading, error) {
	query := fmt.Sprintf(`SELECT %s FROM readings
		WHERE timestamp >= $1 ORDER BY timestamp ASC`, readingColumns)

	rows, err := p.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres window: %w", err)
	}
	defer rows.Close()
	return collectPgxReadings(rows)
}

func (p *Postgres) Keys(ctx context.Context) (*validate.KeySet, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, zone, timestamp FROM readings`)
	if err != nil {
		return nil, fmt.Errorf("postgres query keys: %w", err)
	}
	defer rows.Close()

	ks := validate.NewKeySet()
	for rows.Next() {
		var id, zone string
		var ts time.Time
		if err := rows.Scan(&id, &zone, &ts); err != nil {
			return nil, fmt.Errorf("postgres scan key: %w", err)
		}
		ks.Add(id, zone, ts)
	}
	return ks, rows.Err()
}

func collectPgxReadings(rows pgx.Rows) ([]v1.TransformedReading, error) {
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
