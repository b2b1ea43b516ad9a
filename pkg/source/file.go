// Package source reads raw reading batches from local files.
//
// Supported formats are JSONL (.jsonl, .ndjson, .json) and CSV (.csv),
// auto-detected from the extension. Structure is checked against the
// schema registry before any record is decoded: a file whose columns
// diverge from the registered reading schema is rejected as a whole.
package source

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
	"github.com/ajosegun/carbon-pulse/pkg/schema"
)

// maxLineBytes bounds a single JSONL line.
const maxLineBytes = 10 * 1024 * 1024

// Read loads raw readings from a path, which may be a single file or a
// glob pattern. Files are read in lexical order so batch order is
// deterministic.
func Read(path string) ([]v1.RawReading, error) {
	files := []string{path}
	if strings.ContainsAny(path, "*?[") {
		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, fmt.Errorf("source: invalid glob %q: %w", path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("source: no files matched %q", path)
		}
		sort.Strings(matches)
		files = matches
	}

	var out []v1.RawReading
	for _, file := range files {
		readings, err := ReadFile(file)
		if err != nil {
			return nil, err
		}
		out = append(out, readings...)
	}
	return out, nil
}

// ReadFile loads raw readings from one file, dispatching on extension.
func ReadFile(path string) ([]v1.RawReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		readings, err := ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", path, err)
		}
		return readings, nil
	case ".json", ".jsonl", ".ndjson":
		readings, err := ReadJSONL(f)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", path, err)
		}
		return readings, nil
	default:
		return nil, fmt.Errorf("source %s: unsupported format (use .csv or .jsonl)", path)
	}
}

// ═══════════════════════════════════════════
// JSONL
// ═══════════════════════════════════════════

// ReadJSONL decodes newline-delimited JSON readings. Every object is
// checked against the reading schema; an unknown field anywhere in the
// stream fails the whole batch.
func ReadJSONL(r io.Reader) ([]v1.RawReading, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []v1.RawReading
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}

		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := schema.CheckRecord(schema.KindReading, fields); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var reading v1.RawReading
		if err := json.Unmarshal(raw, &reading); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, reading)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line, err)
	}
	return out, nil
}

// ═══════════════════════════════════════════
// CSV
// ═══════════════════════════════════════════

// ReadCSV decodes a CSV file whose header must match the reading schema
// exactly. Empty cells decode as null.
func ReadCSV(r io.Reader) ([]v1.RawReading, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := schema.CheckHeader(schema.KindReading, header); err != nil {
		return nil, err
	}

	var out []v1.RawReading
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		reading, err := decodeCSVRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, reading)
	}
	return out, nil
}

// decodeCSVRecord maps one row in registry column order onto a reading.
func decodeCSVRecord(record []string) (v1.RawReading, error) {
	var r v1.RawReading
	var err error

	r.ID = record[0]
	r.Zone = record[1]
	if r.Timestamp, err = parseTime(record[2]); err != nil {
		return r, fmt.Errorf("timestamp: %w", err)
	}

	floats := []struct {
		dst  **float64
		name string
		cell string
	}{
		{&r.CarbonIntensity, "carbon_intensity", record[3]},
		{&r.FossilFuelPercentage, "fossil_fuel_percentage", record[4]},
		{&r.RenewablePercentage, "renewable_percentage", record[5]},
		{&r.NuclearPercentage, "nuclear_percentage", record[6]},
		{&r.HydroPercentage, "hydro_percentage", record[7]},
		{&r.WindPercentage, "wind_percentage", record[8]},
		{&r.SolarPercentage, "solar_percentage", record[9]},
		{&r.BiomassPercentage, "biomass_percentage", record[10]},
		{&r.CoalPercentage, "coal_percentage", record[11]},
		{&r.GasPercentage, "gas_percentage", record[12]},
		{&r.OilPercentage, "oil_percentage", record[13]},
		{&r.UnknownPercentage, "unknown_percentage", record[14]},
		{&r.TotalProduction, "total_production", record[15]},
		{&r.TotalConsumption, "total_consumption", record[16]},
	}
	for _, f := range floats {
		if *f.dst, err = parseFloat(f.cell); err != nil {
			return r, fmt.Errorf("%s: %w", f.name, err)
		}
	}

	if r.CreatedAt, err = parseTime(record[17]); err != nil {
		return r, fmt.Errorf("created_at: %w", err)
	}
	return r, nil
}

// parseFloat decodes an optional numeric cell; empty means null.
func parseFloat(cell string) (*float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parseTime decodes an optional RFC 3339 cell; empty means null.
func parseTime(cell string) (time.Time, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, cell)
}
