package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
	"github.com/ajosegun/carbon-pulse/pkg/aggregate"
	"github.com/ajosegun/carbon-pulse/pkg/config"
	"github.com/ajosegun/carbon-pulse/pkg/pipeline"
	"github.com/ajosegun/carbon-pulse/pkg/source"
	"github.com/ajosegun/carbon-pulse/pkg/store"
)

// ═══════════════════════════════════════════
// Starter spec
// ═══════════════════════════════════════════

func TestStarterMonitorIsValid(t *testing.T) {
	spec, err := config.Parse([]byte(starterMonitor))
	if err != nil {
		t.Fatalf("starter spec must parse: %v", err)
	}
	if spec.Monitor.Name != "carbon-pulse" {
		t.Errorf("name = %q", spec.Monitor.Name)
	}

	result := config.Validate(spec)
	if !result.IsValid() {
		t.Fatalf("starter spec must validate: %v", result.Errors)
	}
	if spec.Monitor.Thresholds.LowCarbon != 200 || spec.Monitor.Thresholds.HighCarbon != 400 {
		t.Errorf("thresholds = %+v", spec.Monitor.Thresholds)
	}
	if spec.Monitor.Export == nil || spec.Monitor.Export.Format != "parquet" {
		t.Errorf("export = %+v", spec.Monitor.Export)
	}
}

func TestSeedZones_DefaultList(t *testing.T) {
	zones := config.SeedZones(nil)
	if len(zones) != len(config.MajorZones) {
		t.Fatalf("seeded %d zones, want %d", len(zones), len(config.MajorZones))
	}
	for _, z := range zones {
		if z.Name == "" || z.Country == "" {
			t.Errorf("zone %s missing reference data", z.Zone)
		}
	}
}

// ═══════════════════════════════════════════
// End-to-end: file → gate → transform → store → rollup
// ═══════════════════════════════════════════

func TestIngestFlowFromCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readings.csv")
	csv := "id,zone,timestamp,carbon_intensity," +
		"fossil_fuel_percentage,renewable_percentage,nuclear_percentage," +
		"hydro_percentage,wind_percentage,solar_percentage,biomass_percentage," +
		"coal_percentage,gas_percentage,oil_percentage,unknown_percentage," +
		"total_production,total_consumption,created_at\n" +
		"r-1,DE,2024-03-01T00:00:00Z,120,40,35,,,,,,,,,,,,\n" +
		"r-2,DE,2024-03-01T01:00:00Z,320,,,,,,,,,,,,,,\n" +
		"r-3,DE,2024-03-01T02:00:00Z,520,,,,,,,,,,,,,,\n" +
		"r-4,DE,2024-03-01T02:00:00Z,100,,,,,,,,,,,,,,\n" + // dup (zone, timestamp)
		",DE,2024-03-01T03:00:00Z,100,,,,,,,,,,,,,,\n" // null id
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	readings, err := source.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(readings) != 5 {
		t.Fatalf("decoded %d readings, want 5", len(readings))
	}

	ctx := context.Background()
	st := store.NewMemory()
	if err := st.UpsertZones(ctx, config.SeedZones([]string{"DE"})); err != nil {
		t.Fatal(err)
	}

	engine := pipeline.New(st, v1.DefaultThresholds())
	report, err := engine.Run(ctx, readings)
	if err != nil {
		t.Fatal(err)
	}
	if report.Accepted != 3 || report.Rejected != 2 || report.Inserted != 3 {
		t.Fatalf("report = %+v", report)
	}

	window, err := st.Window(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	zones, _ := st.Zones(ctx)
	summaries := aggregate.SummarizeAll(window, zones)
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}

	s := summaries[0]
	if s.Zone != "DE" || s.DataPoints != 3 {
		t.Fatalf("summary = %+v", s)
	}
	if s.LowCarbonCount != 1 || s.MediumCarbonCount != 1 || s.HighCarbonCount != 1 {
		t.Errorf("category counts = %d/%d/%d", s.LowCarbonCount, s.MediumCarbonCount, s.HighCarbonCount)
	}
	if s.ZoneName == nil || *s.ZoneName != "Germany" {
		t.Errorf("zone name = %v", s.ZoneName)
	}
}
