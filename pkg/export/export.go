// Package export archives transformed readings to Parquet, CSV, or
// JSONL files.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/parquet-go/parquet-go/compress/gzip"
	"github.com/parquet-go/parquet-go/compress/snappy"
	"github.com/parquet-go/parquet-go/compress/zstd"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
)

// WriteFile encodes readings per the export spec and writes them to the
// spec's path, creating parent directories as needed.
func WriteFile(spec v1.ExportSpec, readings []v1.TransformedReading) error {
	data, err := Encode(spec.Format, spec.Compression, readings)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(spec.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(spec.Path, data, 0o644); err != nil {
		return fmt.Errorf("export write %s: %w", spec.Path, err)
	}
	return nil
}

// Encode serializes readings in the requested format. Compression only
// applies to Parquet.
func Encode(format, compression string, readings []v1.TransformedReading) ([]byte, error) {
	switch format {
	case "", "parquet":
		return EncodeParquet(readings, compression)
	case "csv":
		return EncodeCSV(readings)
	case "jsonl":
		return EncodeJSONL(readings)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
}

// ═══════════════════════════════════════════
// Parquet
// ═══════════════════════════════════════════

// exportRow is the flat Parquet row shape. Timestamps are stored as
// RFC 3339 strings; optional numerics map to optional columns.
type exportRow struct {
	ID              string   `parquet:"id"`
	Zone            string   `parquet:"zone"`
	Timestamp       string   `parquet:"timestamp"`
	CarbonIntensity *float64 `parquet:"carbon_intensity,optional"`

	FossilFuelPercentage *float64 `parquet:"fossil_fuel_percentage,optional"`
	RenewablePercentage  *float64 `parquet:"renewable_percentage,optional"`
	NuclearPercentage    *float64 `parquet:"nuclear_percentage,optional"`
	HydroPercentage      *float64 `parquet:"hydro_percentage,optional"`
	WindPercentage       *float64 `parquet:"wind_percentage,optional"`
	SolarPercentage      *float64 `parquet:"solar_percentage,optional"`
	BiomassPercentage    *float64 `parquet:"biomass_percentage,optional"`
	CoalPercentage       *float64 `parquet:"coal_percentage,optional"`
	GasPercentage        *float64 `parquet:"gas_percentage,optional"`
	OilPercentage        *float64 `parquet:"oil_percentage,optional"`
	UnknownPercentage    *float64 `parquet:"unknown_percentage,optional"`

	TotalProduction  *float64 `parquet:"total_production,optional"`
	TotalConsumption *float64 `parquet:"total_consumption,optional"`
	CreatedAt        *string  `parquet:"created_at,optional"`

	CarbonIntensityCategory  string  `parquet:"carbon_intensity_category"`
	TotalRenewablePercentage float64 `parquet:"total_renewable_percentage"`

	ZoneName      *string  `parquet:"zone_name,optional"`
	ZoneCountry   *string  `parquet:"zone_country,optional"`
	ZoneLatitude  *float64 `parquet:"zone_latitude,optional"`
	ZoneLongitude *float64 `parquet:"zone_longitude,optional"`
	ZoneTimezone  *string  `parquet:"zone_timezone,optional"`
}

func toRow(r *v1.TransformedReading) exportRow {
	row := exportRow{
		ID:                       r.ID,
		Zone:                     r.Zone,
		Timestamp:                r.Timestamp.UTC().Format(time.RFC3339),
		CarbonIntensity:          r.CarbonIntensity,
		FossilFuelPercentage:     r.FossilFuelPercentage,
		RenewablePercentage:      r.RenewablePercentage,
		NuclearPercentage:        r.NuclearPercentage,
		HydroPercentage:          r.HydroPercentage,
		WindPercentage:           r.WindPercentage,
		SolarPercentage:          r.SolarPercentage,
		BiomassPercentage:        r.BiomassPercentage,
		CoalPercentage:           r.CoalPercentage,
		GasPercentage:            r.GasPercentage,
		OilPercentage:            r.OilPercentage,
		UnknownPercentage:        r.UnknownPercentage,
		TotalProduction:          r.TotalProduction,
		TotalConsumption:         r.TotalConsumption,
		CarbonIntensityCategory:  string(r.CarbonIntensityCategory),
		TotalRenewablePercentage: r.TotalRenewablePercentage,
		ZoneName:                 r.ZoneName,
		ZoneCountry:              r.ZoneCountry,
		ZoneLatitude:             r.ZoneLatitude,
		ZoneLongitude:            r.ZoneLongitude,
		ZoneTimezone:             r.ZoneTimezone,
	}
	if !r.CreatedAt.IsZero() {
		created := r.CreatedAt.UTC().Format(time.RFC3339)
		row.CreatedAt = &created
	}
	return row
}

// EncodeParquet writes readings into an in-memory Parquet buffer.
// Compression: "snappy" (default), "zstd", "gzip", "none".
func EncodeParquet(readings []v1.TransformedReading, compression string) ([]byte, error) {
	if len(readings) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	opts := []parquet.WriterOption{}
	if codec := selectCompression(compression); codec != nil {
		opts = append(opts, parquet.Compression(codec))
	}

	writer := parquet.NewGenericWriter[exportRow](&buf, opts...)
	for i := range readings {
		if _, err := writer.Write([]exportRow{toRow(&readings[i])}); err != nil {
			return nil, fmt.Errorf("parquet write row: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("parquet close: %w", err)
	}
	return buf.Bytes(), nil
}

func selectCompression(name string) compress.Codec {
	switch name {
	case "zstd":
		return &zstd.Codec{Level: zstd.DefaultLevel}
	case "gzip":
		return &gzip.Codec{}
	case "none", "uncompressed":
		return nil
	default:
		return &snappy.Codec{}
	}
}

// ═══════════════════════════════════════════
// CSV and JSONL
// ═══════════════════════════════════════════

var csvHeader = []string{
	"id", "zone", "timestamp", "carbon_intensity",
	"fossil_fuel_percentage", "renewable_percentage", "nuclear_percentage",
	"hydro_percentage", "wind_percentage", "solar_percentage",
	"biomass_percentage", "coal_percentage", "gas_percentage",
	"oil_percentage", "unknown_percentage",
	"total_production", "total_consumption", "created_at",
	"carbon_intensity_category", "total_renewable_percentage",
	"zone_name", "zone_country", "zone_latitude", "zone_longitude", "zone_timezone",
}

// EncodeCSV writes readings as RFC 4180 CSV with a fixed header. Null
// values become empty cells.
func EncodeCSV(readings []v1.TransformedReading) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("csv write header: %w", err)
	}

	for i := range readings {
		r := &readings[i]
		created := ""
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			r.ID, r.Zone, r.Timestamp.UTC().Format(time.RFC3339),
			floatCell(r.CarbonIntensity),
			floatCell(r.FossilFuelPercentage), floatCell(r.RenewablePercentage),
			floatCell(r.NuclearPercentage), floatCell(r.HydroPercentage),
			floatCell(r.WindPercentage), floatCell(r.SolarPercentage),
			floatCell(r.BiomassPercentage), floatCell(r.CoalPercentage),
			floatCell(r.GasPercentage), floatCell(r.OilPercentage),
			floatCell(r.UnknownPercentage),
			floatCell(r.TotalProduction), floatCell(r.TotalConsumption),
			created,
			string(r.CarbonIntensityCategory),
			strconv.FormatFloat(r.TotalRenewablePercentage, 'g', -1, 64),
			stringCell(r.ZoneName), stringCell(r.ZoneCountry),
			floatCell(r.ZoneLatitude), floatCell(r.ZoneLongitude),
			stringCell(r.ZoneTimezone),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("csv write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJSONL writes readings as newline-delimited JSON.
func EncodeJSONL(readings []v1.TransformedReading) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range readings {
		if err := enc.Encode(&readings[i]); err != nil {
			return nil, fmt.Errorf("jsonl encode: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func stringCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
