package source

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ajosegun/carbon-pulse/pkg/schema"
)

const readingHeader = "id,zone,timestamp,carbon_intensity," +
	"fossil_fuel_percentage,renewable_percentage,nuclear_percentage," +
	"hydro_percentage,wind_percentage,solar_percentage,biomass_percentage," +
	"coal_percentage,gas_percentage,oil_percentage,unknown_percentage," +
	"total_production,total_consumption,created_at"

func TestReadCSV_Valid(t *testing.T) {
	input := readingHeader + "\n" +
		"r-1,DE,2024-03-01T12:00:00Z,320.5,40,35,,,,,,,,,,,,2024-03-01T12:05:00Z\n" +
		"r-2,FR,2024-03-01T12:00:00Z,,,,,,,,,,,,,,,\n"

	readings, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(readings))
	}

	r := readings[0]
	if r.ID != "r-1" || r.Zone != "DE" {
		t.Errorf("identity = %s/%s", r.ID, r.Zone)
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", r.Timestamp, want)
	}
	if r.CarbonIntensity == nil || *r.CarbonIntensity != 320.5 {
		t.Errorf("carbon intensity = %v, want 320.5", r.CarbonIntensity)
	}
	if r.NuclearPercentage != nil {
		t.Error("empty cell must decode as null, not 0")
	}

	// Row with everything absent still decodes; the gate rejects it later.
	if readings[1].CarbonIntensity != nil || !readings[1].CreatedAt.IsZero() {
		t.Error("fully empty row must decode with nulls")
	}
}

func TestReadCSV_HeaderMismatchFailsBatch(t *testing.T) {
	// timestamp and zone swapped
	bad := strings.Replace(readingHeader, "zone,timestamp", "timestamp,zone", 1)
	input := bad + "\nr-1,2024-03-01T12:00:00Z,DE,320,,,,,,,,,,,,,,\n"

	_, err := ReadCSV(strings.NewReader(input))
	var mismatch *schema.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchError, got %v", err)
	}
	if mismatch.Position != 1 {
		t.Errorf("position = %d, want 1", mismatch.Position)
	}
}

func TestReadCSV_BadCellIsFatal(t *testing.T) {
	input := readingHeader + "\n" +
		"r-1,DE,2024-03-01T12:00:00Z,not-a-number,,,,,,,,,,,,,,\n"
	if _, err := ReadCSV(strings.NewReader(input)); err == nil {
		t.Fatal("expected error for unparseable numeric cell")
	}
}

func TestReadCSV_Empty(t *testing.T) {
	readings, err := ReadCSV(strings.NewReader(""))
	if err != nil || len(readings) != 0 {
		t.Fatalf("empty file = (%d, %v), want (0, nil)", len(readings), err)
	}
}

func TestReadJSONL_Valid(t *testing.T) {
	input := `{"id":"r-1","zone":"DE","timestamp":"2024-03-01T12:00:00Z","carbon_intensity":320.5,"renewable_percentage":35}

{"id":"r-2","zone":"FR","timestamp":"2024-03-01T12:00:00Z","carbon_intensity":45}
`
	readings, err := ReadJSONL(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2 (blank lines skipped)", len(readings))
	}
	if readings[0].RenewablePercentage == nil || *readings[0].RenewablePercentage != 35 {
		t.Errorf("renewable = %v, want 35", readings[0].RenewablePercentage)
	}
	if readings[1].RenewablePercentage != nil {
		t.Error("absent field must stay null")
	}
}

func TestReadJSONL_UnknownFieldFailsBatch(t *testing.T) {
	input := `{"id":"r-1","zone":"DE","timestamp":"2024-03-01T12:00:00Z","carbon_intensity":320}
{"id":"r-2","zone":"FR","timestamp":"2024-03-01T12:00:00Z","windiness":0.4}
`
	_, err := ReadJSONL(strings.NewReader(input))
	var mismatch *schema.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchError, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line: %v", err)
	}
}

func TestReadJSONL_MalformedLineIsFatal(t *testing.T) {
	input := `{"id":"r-1","zone":"DE","timestamp":"2024-03-01T12:00:00Z"}
{broken
`
	if _, err := ReadJSONL(strings.NewReader(input)); err == nil {
		t.Fatal("expected error for malformed JSON line")
	}
}

func TestReadFile_UnsupportedExtension(t *testing.T) {
	if _, err := ReadFile("readings.parquet"); err == nil {
		t.Fatal("expected error for unsupported input format")
	}
}
