// Package v1 defines the Carbon Pulse data model and monitor specification.
//
// This is the declarative YAML DSL that deployments write to configure
// the validation-and-transformation pipeline.
//
// Example:
//
//	monitor:
//	  name: carbon-pulse
//	  thresholds:
//	    lowCarbon: 200
//	    highCarbon: 400
//	  storage:
//	    type: duckdb
//	    path: data/carbon_pulse.duckdb
package v1

import (
	"fmt"
	"time"
)

// ═══════════════════════════════════════════
// Readings — raw and transformed
// ═══════════════════════════════════════════

// RawReading is one ingested carbon-intensity measurement for a zone.
//
// Energy-mix percentages are independently nullable: a nil pointer means
// the upstream provider did not report that source category. An empty ID
// or zone, or a zero timestamp, represents null for the not-null rules.
type RawReading struct {
	ID              string    `json:"id"`
	Zone            string    `json:"zone"`
	Timestamp       time.Time `json:"timestamp"`
	CarbonIntensity *float64  `json:"carbon_intensity"` // gCO2eq/kWh

	FossilFuelPercentage *float64 `json:"fossil_fuel_percentage,omitempty"`
	RenewablePercentage  *float64 `json:"renewable_percentage,omitempty"`
	NuclearPercentage    *float64 `json:"nuclear_percentage,omitempty"`
	HydroPercentage      *float64 `json:"hydro_percentage,omitempty"`
	WindPercentage       *float64 `json:"wind_percentage,omitempty"`
	SolarPercentage      *float64 `json:"solar_percentage,omitempty"`
	BiomassPercentage    *float64 `json:"biomass_percentage,omitempty"`
	CoalPercentage       *float64 `json:"coal_percentage,omitempty"`
	GasPercentage        *float64 `json:"gas_percentage,omitempty"`
	OilPercentage        *float64 `json:"oil_percentage,omitempty"`
	UnknownPercentage    *float64 `json:"unknown_percentage,omitempty"`

	TotalProduction  *float64 `json:"total_production,omitempty"`  // MW
	TotalConsumption *float64 `json:"total_consumption,omitempty"` // MW

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Category is the carbon-intensity tier a reading falls into.
type Category string

const (
	CategoryLow    Category = "low"
	CategoryMedium Category = "medium"
	CategoryHigh   Category = "high"
)

// TransformedReading is a RawReading enriched with derived fields and
// left-joined zone display attributes. Immutable once created:
// reprocessing produces a new value, never mutates in place.
type TransformedReading struct {
	RawReading

	CarbonIntensityCategory  Category `json:"carbon_intensity_category"`
	TotalRenewablePercentage float64  `json:"total_renewable_percentage"`

	// Zone enrichment (nil when no ZoneMetadata exists for the zone).
	ZoneName      *string  `json:"zone_name,omitempty"`
	ZoneCountry   *string  `json:"zone_country,omitempty"`
	ZoneLatitude  *float64 `json:"zone_latitude,omitempty"`
	ZoneLongitude *float64 `json:"zone_longitude,omitempty"`
	ZoneTimezone  *string  `json:"zone_timezone,omitempty"`
}

// ═══════════════════════════════════════════
// Zone metadata
// ═══════════════════════════════════════════

// ZoneMetadata is the static reference record for a geographic zone.
// Created and updated by the zone discovery collaborator; read-only here.
type ZoneMetadata struct {
	Zone      string    `json:"zone"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Latitude  float64   `json:"latitude"`  // −90..90
	Longitude float64   `json:"longitude"` // −180..180
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ═══════════════════════════════════════════
// Validation
// ═══════════════════════════════════════════

// RuleFailure names one data-quality rule a reading violated.
type RuleFailure struct {
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`
}

// ValidationResult is the per-reading outcome of the validation gate.
// Failures lists every rule that failed, in rule-table order, not just
// the first. A reading is accepted iff Failures is empty.
type ValidationResult struct {
	Accepted bool          `json:"accepted"`
	Failures []RuleFailure `json:"failures,omitempty"`
}

// ═══════════════════════════════════════════
// Summaries
// ═══════════════════════════════════════════

// ZoneSummary is a per-zone rollup over a window of transformed readings.
// Always recomputed from the transformed set; never a source of truth.
// Percentage and aggregate fields are nil when DataPoints is zero.
type ZoneSummary struct {
	Zone        string  `json:"zone"`
	ZoneName    *string `json:"zone_name,omitempty"`
	ZoneCountry *string `json:"zone_country,omitempty"`

	DataPoints int `json:"data_points"`

	AvgCarbonIntensity *float64 `json:"avg_carbon_intensity,omitempty"`
	MinCarbonIntensity *float64 `json:"min_carbon_intensity,omitempty"`
	MaxCarbonIntensity *float64 `json:"max_carbon_intensity,omitempty"`

	AvgRenewablePercentage  *float64 `json:"avg_renewable_percentage,omitempty"`
	AvgFossilFuelPercentage *float64 `json:"avg_fossil_fuel_percentage,omitempty"`

	LowCarbonCount    int `json:"low_carbon_count"`
	MediumCarbonCount int `json:"medium_carbon_count"`
	HighCarbonCount   int `json:"high_carbon_count"`

	LowCarbonPercentage    *float64 `json:"low_carbon_percentage,omitempty"`
	MediumCarbonPercentage *float64 `json:"medium_carbon_percentage,omitempty"`
	HighCarbonPercentage   *float64 `json:"high_carbon_percentage,omitempty"`

	FirstReading *time.Time `json:"first_reading,omitempty"`
	LastReading  *time.Time `json:"last_reading,omitempty"`
}

// ═══════════════════════════════════════════
// Monitor specification (YAML DSL)
// ═══════════════════════════════════════════

// MonitorSpec is the top-level specification for a Carbon Pulse deployment.
type MonitorSpec struct {
	APIVersion string  `yaml:"apiVersion" json:"apiVersion"` // carbonpulse/v1
	Kind       string  `yaml:"kind" json:"kind"`             // Monitor
	Monitor    Monitor `yaml:"monitor" json:"monitor"`
}

// Monitor defines the complete deployment configuration.
type Monitor struct {
	Name       string      `yaml:"name" json:"name"`
	Owner      string      `yaml:"owner,omitempty" json:"owner,omitempty"`
	Thresholds Thresholds  `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	Zones      []string    `yaml:"zones,omitempty" json:"zones,omitempty"`
	Storage    Storage     `yaml:"storage,omitempty" json:"storage,omitempty"`
	Server     ServerSpec  `yaml:"server,omitempty" json:"server,omitempty"`
	Ingest     IngestSpec  `yaml:"ingest,omitempty" json:"ingest,omitempty"`
	Export     *ExportSpec `yaml:"export,omitempty" json:"export,omitempty"`
}

// Thresholds are the two configured carbon-intensity tier boundaries in
// gCO2eq/kWh. Boundary values belong to the upper bucket: a reading
// exactly at LowCarbon is medium, exactly at HighCarbon is high.
type Thresholds struct {
	LowCarbon  float64 `yaml:"lowCarbon" json:"lowCarbon"`
	HighCarbon float64 `yaml:"highCarbon" json:"highCarbon"`
}

// DefaultThresholds returns the deployment defaults {low: 200, high: 400}.
func DefaultThresholds() Thresholds {
	return Thresholds{LowCarbon: 200, HighCarbon: 400}
}

// Validate checks the thresholds once at startup. Invalid thresholds are
// a fatal configuration error, never a per-record failure.
func (t Thresholds) Validate() error {
	if t.LowCarbon <= 0 {
		return fmt.Errorf("thresholds: lowCarbon must be positive, got %g", t.LowCarbon)
	}
	if t.HighCarbon <= 0 {
		return fmt.Errorf("thresholds: highCarbon must be positive, got %g", t.HighCarbon)
	}
	if t.LowCarbon >= t.HighCarbon {
		return fmt.Errorf("thresholds: lowCarbon (%g) must be below highCarbon (%g)",
			t.LowCarbon, t.HighCarbon)
	}
	return nil
}

// Storage selects and configures the storage collaborator.
type Storage struct {
	Type StorageType `yaml:"type" json:"type"`
	Path string      `yaml:"path,omitempty" json:"path,omitempty"` // duckdb database file
	DSN  string      `yaml:"dsn,omitempty" json:"dsn,omitempty"`   // postgres connection string
}

type StorageType string

const (
	StorageDuckDB   StorageType = "duckdb"
	StoragePostgres StorageType = "postgres"
	StorageMemory   StorageType = "memory" // development and tests
)

// ServerSpec configures the serving collaborator (query API).
type ServerSpec struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

// IngestSpec configures batch ingestion.
type IngestSpec struct {
	BatchSize int `yaml:"batchSize,omitempty" json:"batchSize,omitempty"`
}

// ExportSpec configures archival export of transformed readings.
type ExportSpec struct {
	Path        string `yaml:"path" json:"path"`
	Format      string `yaml:"format,omitempty" json:"format,omitempty"`           // parquet|csv|jsonl
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty"` // snappy|zstd|gzip|none
}
