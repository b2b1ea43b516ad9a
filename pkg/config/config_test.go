package config

import (
	"strings"
	"testing"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
)

const sampleSpec = `
apiVersion: carbonpulse/v1
kind: Monitor
monitor:
  name: carbon-pulse
  owner: data-platform
  thresholds:
    lowCarbon: 150
    highCarbon: 350
  zones: [DE, FR]
  storage:
    type: memory
`

// ═══════════════════════════════════════════
// Parsing and defaults
// ═══════════════════════════════════════════

func TestParse_Sample(t *testing.T) {
	spec, err := Parse([]byte(sampleSpec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Monitor.Name != "carbon-pulse" {
		t.Errorf("name = %q", spec.Monitor.Name)
	}
	if spec.Monitor.Thresholds.LowCarbon != 150 || spec.Monitor.Thresholds.HighCarbon != 350 {
		t.Errorf("thresholds = %+v", spec.Monitor.Thresholds)
	}
	if len(spec.Monitor.Zones) != 2 {
		t.Errorf("zones = %v", spec.Monitor.Zones)
	}
}

func TestParse_Defaults(t *testing.T) {
	spec, err := Parse([]byte("monitor:\n  name: carbon-pulse\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := spec.Monitor
	if m.Thresholds != v1.DefaultThresholds() {
		t.Errorf("default thresholds not applied: %+v", m.Thresholds)
	}
	if m.Storage.Type != v1.StorageDuckDB || m.Storage.Path == "" {
		t.Errorf("default storage not applied: %+v", m.Storage)
	}
	if m.Server.Addr != ":8000" {
		t.Errorf("default server addr = %q", m.Server.Addr)
	}
	if m.Ingest.BatchSize != 500 {
		t.Errorf("default batch size = %d", m.Ingest.BatchSize)
	}
	if spec.APIVersion != "carbonpulse/v1" || spec.Kind != "Monitor" {
		t.Errorf("default apiVersion/kind not applied: %s/%s", spec.APIVersion, spec.Kind)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("monitor: [")); err == nil {
		t.Fatal("expected parse error for malformed yaml")
	}
}

// ═══════════════════════════════════════════
// Validation
// ═══════════════════════════════════════════

func TestValidate_Valid(t *testing.T) {
	spec, _ := Parse([]byte(sampleSpec))
	result := Validate(spec)
	if !result.IsValid() {
		t.Fatalf("expected valid, got errors: %v", result.Errors)
	}
	if err := result.Err(); err != nil {
		t.Fatalf("Err() on valid result = %v", err)
	}
}

func TestValidate_ThresholdsInverted(t *testing.T) {
	spec, _ := Parse([]byte(sampleSpec))
	spec.Monitor.Thresholds = v1.Thresholds{LowCarbon: 400, HighCarbon: 200}

	result := Validate(spec)
	if result.IsValid() {
		t.Fatal("low >= high must be a configuration error")
	}
	if err := result.Err(); err == nil || !strings.Contains(err.Error(), "monitor.thresholds") {
		t.Fatalf("Err() = %v, want thresholds error", err)
	}
}

func TestValidate_ThresholdsNonPositive(t *testing.T) {
	spec, _ := Parse([]byte(sampleSpec))
	spec.Monitor.Thresholds = v1.Thresholds{LowCarbon: -10, HighCarbon: 400}

	if Validate(spec).IsValid() {
		t.Fatal("non-positive threshold must be a configuration error")
	}
}

func TestValidate_NameRequired(t *testing.T) {
	spec, _ := Parse([]byte("monitor:\n  storage:\n    type: memory\n"))
	result := Validate(spec)
	if result.IsValid() {
		t.Fatal("missing name must fail")
	}
}

func TestValidate_BadName(t *testing.T) {
	spec, _ := Parse([]byte(sampleSpec))
	spec.Monitor.Name = "Carbon_Pulse"
	if Validate(spec).IsValid() {
		t.Fatal("uppercase/underscore names must fail")
	}
}

func TestValidate_UnsupportedStorage(t *testing.T) {
	spec, _ := Parse([]byte(sampleSpec))
	spec.Monitor.Storage.Type = "sqlite"
	if Validate(spec).IsValid() {
		t.Fatal("unsupported storage type must fail")
	}
}

func TestValidate_DuckDBRequiresPath(t *testing.T) {
	spec, _ := Parse([]byte(sampleSpec))
	spec.Monitor.Storage = v1.Storage{Type: v1.StorageDuckDB}
	if Validate(spec).IsValid() {
		t.Fatal("duckdb storage without path must fail")
	}
}

func TestValidate_ExportFormat(t *testing.T) {
	spec, _ := Parse([]byte(sampleSpec))
	spec.Monitor.Export = &v1.ExportSpec{Path: "out.avro", Format: "avro"}
	if Validate(spec).IsValid() {
		t.Fatal("unsupported export format must fail")
	}
}

func TestValidate_OwnerWarning(t *testing.T) {
	spec, _ := Parse([]byte(sampleSpec))
	spec.Monitor.Owner = ""
	result := Validate(spec)
	if !result.IsValid() {
		t.Fatalf("missing owner is only a warning, got errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for missing owner")
	}
}
