// Package config handles loading, parsing, and validating
// Carbon Pulse monitor YAML specifications.
package config

import (
	"fmt"
	"os"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
	"gopkg.in/yaml.v3"
)

// MajorZones is the default ingestion zone list, matching the zones the
// hourly collector watches.
var MajorZones = []string{
	"US", "DE", "FR", "GB", "CA", "AU", "JP", "CN", "IN", "BR",
	"IT", "ES", "NL", "SE", "NO", "DK", "FI", "CH", "AT", "BE",
}

// builtinZones is the reference metadata shipped for the major zones.
var builtinZones = map[string]v1.ZoneMetadata{
	"US": {Zone: "US", Name: "United States", Country: "United States", Latitude: 37.09, Longitude: -95.71, Timezone: "America/New_York"},
	"DE": {Zone: "DE", Name: "Germany", Country: "Germany", Latitude: 51.17, Longitude: 10.45, Timezone: "Europe/Berlin"},
	"FR": {Zone: "FR", Name: "France", Country: "France", Latitude: 46.23, Longitude: 2.21, Timezone: "Europe/Paris"},
	"GB": {Zone: "GB", Name: "Great Britain", Country: "United Kingdom", Latitude: 55.38, Longitude: -3.44, Timezone: "Europe/London"},
	"CA": {Zone: "CA", Name: "Canada", Country: "Canada", Latitude: 56.13, Longitude: -106.35, Timezone: "America/Toronto"},
	"AU": {Zone: "AU", Name: "Australia", Country: "Australia", Latitude: -25.27, Longitude: 133.78, Timezone: "Australia/Sydney"},
	"JP": {Zone: "JP", Name: "Japan", Country: "Japan", Latitude: 36.20, Longitude: 138.25, Timezone: "Asia/Tokyo"},
	"CN": {Zone: "CN", Name: "China", Country: "China", Latitude: 35.86, Longitude: 104.20, Timezone: "Asia/Shanghai"},
	"IN": {Zone: "IN", Name: "India", Country: "India", Latitude: 20.59, Longitude: 78.96, Timezone: "Asia/Kolkata"},
	"BR": {Zone: "BR", Name: "Brazil", Country: "Brazil", Latitude: -14.24, Longitude: -51.93, Timezone: "America/Sao_Paulo"},
	"IT": {Zone: "IT", Name: "Italy", Country: "Italy", Latitude: 41.87, Longitude: 12.57, Timezone: "Europe/Rome"},
	"ES": {Zone: "ES", Name: "Spain", Country: "Spain", Latitude: 40.46, Longitude: -3.75, Timezone: "Europe/Madrid"},
	"NL": {Zone: "NL", Name: "Netherlands", Country: "Netherlands", Latitude: 52.13, Longitude: 5.29, Timezone: "Europe/Amsterdam"},
	"SE": {Zone: "SE", Name: "Sweden", Country: "Sweden", Latitude: 60.13, Longitude: 18.64, Timezone: "Europe/Stockholm"},
	"NO": {Zone: "NO", Name: "Norway", Country: "Norway", Latitude: 60.47, Longitude: 8.47, Timezone: "Europe/Oslo"},
	"DK": {Zone: "DK", Name: "Denmark", Country: "Denmark", Latitude: 56.26, Longitude: 9.50, Timezone: "Europe/Copenhagen"},
	"FI": {Zone: "FI", Name: "Finland", Country: "Finland", Latitude: 61.92, Longitude: 25.75, Timezone: "Europe/Helsinki"},
	"CH": {Zone: "CH", Name: "Switzerland", Country: "Switzerland", Latitude: 46.82, Longitude: 8.23, Timezone: "Europe/Zurich"},
	"AT": {Zone: "AT", Name: "Austria", Country: "Austria", Latitude: 47.52, Longitude: 14.55, Timezone: "Europe/Vienna"},
	"BE": {Zone: "BE", Name: "Belgium", Country: "Belgium", Latitude: 50.50, Longitude: 4.47, Timezone: "Europe/Brussels"},
}

// SeedZones returns the built-in metadata for the requested zone codes,
// or for all major zones when codes is empty. Codes without built-in
// metadata get a minimal record so enrichment still has a join target.
func SeedZones(codes []string) []v1.ZoneMetadata {
	if len(codes) == 0 {
		codes = MajorZones
	}
	out := make([]v1.ZoneMetadata, 0, len(codes))
	for _, code := range codes {
		if z, ok := builtinZones[code]; ok {
			out = append(out, z)
			continue
		}
		out = append(out, v1.ZoneMetadata{Zone: code, Name: code, Country: code})
	}
	return out
}

// Load reads and parses a monitor YAML file.
func Load(path string) (*v1.MonitorSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML bytes into a MonitorSpec and applies defaults.
func Parse(data []byte) (*v1.MonitorSpec, error) {
	var spec v1.MonitorSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	applyDefaults(&spec)

	return &spec, nil
}

// ═══════════════════════════════════════════
// Validation
// ═══════════════════════════════════════════

// ValidationError represents a single configuration issue.
type ValidationError struct {
	Field    string
	Message  string
	Severity string // error|warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Field, e.Message)
}

// ValidationResult contains all configuration issues.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Err collapses the result into a single startup error, or nil when the
// spec is valid. Threshold misconfiguration is fatal at startup, never
// surfaced at per-record time.
func (r *ValidationResult) Err() error {
	if r.IsValid() {
		return nil
	}
	first := r.Errors[0]
	if len(r.Errors) == 1 {
		return fmt.Errorf("invalid configuration: %s: %s", first.Field, first.Message)
	}
	return fmt.Errorf("invalid configuration: %s: %s (and %d more)",
		first.Field, first.Message, len(r.Errors)-1)
}

func (r *ValidationResult) addError(field, msg string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: msg, Severity: "error"})
}

func (r *ValidationResult) addWarning(field, msg string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: msg, Severity: "warning"})
}

// Validate checks a MonitorSpec for correctness.
func Validate(spec *v1.MonitorSpec) *ValidationResult {
	result := &ValidationResult{}

	if spec.APIVersion != "" && spec.APIVersion != "carbonpulse/v1" {
		result.addError("apiVersion",
			fmt.Sprintf("unsupported version %q, expected carbonpulse/v1", spec.APIVersion))
	}

	m := spec.Monitor
	if m.Name == "" {
		result.addError("monitor.name", "required")
	} else if !isValidName(m.Name) {
		result.addError("monitor.name", "must be lowercase alphanumeric with hyphens (e.g., carbon-pulse)")
	}

	if err := m.Thresholds.Validate(); err != nil {
		result.addError("monitor.thresholds", err.Error())
	}

	validateStorage(result, &m.Storage)

	if m.Ingest.BatchSize < 0 {
		result.addError("monitor.ingest.batchSize", "must not be negative")
	}

	if m.Export != nil {
		validateExport(result, m.Export)
	}

	if m.Owner == "" {
		result.addWarning("monitor.owner", "recommended for governance (who owns this deployment?)")
	}
	if len(m.Zones) == 0 {
		result.addWarning("monitor.zones", "no zones configured; seed-zones will use the built-in major zone list")
	}

	return result
}

func validateStorage(r *ValidationResult, s *v1.Storage) {
	switch s.Type {
	case v1.StorageDuckDB:
		if s.Path == "" {
			r.addError("monitor.storage.path", "required for duckdb storage")
		}
	case v1.StoragePostgres:
		if s.DSN == "" && os.Getenv("POSTGRES_DSN") == "" {
			r.addError("monitor.storage.dsn",
				"required for postgres storage (set dsn or POSTGRES_DSN)")
		}
	case v1.StorageMemory:
		// nothing to configure
	default:
		r.addError("monitor.storage.type",
			fmt.Sprintf("unsupported type %q (duckdb|postgres|memory)", s.Type))
	}
}

func validateExport(r *ValidationResult, e *v1.ExportSpec) {
	if e.Path == "" {
		r.addError("monitor.export.path", "required")
	}

	validFormats := map[string]bool{"": true, "parquet": true, "csv": true, "jsonl": true}
	if !validFormats[e.Format] {
		r.addError("monitor.export.format",
			fmt.Sprintf("must be parquet|csv|jsonl, got %q", e.Format))
	}

	validCompression := map[string]bool{
		"": true, "snappy": true, "zstd": true, "gzip": true, "none": true,
	}
	if !validCompression[e.Compression] {
		r.addError("monitor.export.compression",
			fmt.Sprintf("must be snappy|zstd|gzip|none, got %q", e.Compression))
	}
}

// ═══════════════════════════════════════════
// Helpers
// ═══════════════════════════════════════════

func applyDefaults(spec *v1.MonitorSpec) {
	if spec.APIVersion == "" {
		spec.APIVersion = "carbonpulse/v1"
	}
	if spec.Kind == "" {
		spec.Kind = "Monitor"
	}

	m := &spec.Monitor

	if m.Thresholds == (v1.Thresholds{}) {
		m.Thresholds = v1.DefaultThresholds()
	}

	if m.Storage.Type == "" {
		m.Storage.Type = v1.StorageDuckDB
	}
	if m.Storage.Type == v1.StorageDuckDB && m.Storage.Path == "" {
		m.Storage.Path = "data/carbon_pulse.duckdb"
	}
	if m.Storage.Type == v1.StoragePostgres && m.Storage.DSN == "" {
		m.Storage.DSN = os.Getenv("POSTGRES_DSN")
	}

	if m.Server.Addr == "" {
		m.Server.Addr = ":8000"
	}
	if m.Ingest.BatchSize == 0 {
		m.Ingest.BatchSize = 500
	}
	if m.Export != nil && m.Export.Format == "" {
		m.Export.Format = "parquet"
	}
}

func isValidName(name string) bool {
	if len(name) == 0 || len(name) > 63 {
		return false
	}
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-') {
			return false
		}
	}
	return name[0] != '-' && name[len(name)-1] != '-'
}
