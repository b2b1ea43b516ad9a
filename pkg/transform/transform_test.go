package transform

import (
	"reflect"
	"testing"
	"time"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
)

func f(v float64) *float64 { return &v }

var thresholds = v1.DefaultThresholds()

// ═══════════════════════════════════════════
// Category derivation
// ═══════════════════════════════════════════

func TestCategory_Buckets(t *testing.T) {
	cases := []struct {
		intensity float64
		want      v1.Category
	}{
		{0, v1.CategoryLow},
		{199.99, v1.CategoryLow},
		{200, v1.CategoryMedium}, // boundary belongs to the upper bucket
		{350, v1.CategoryMedium},
		{399.99, v1.CategoryMedium},
		{400, v1.CategoryHigh}, // boundary belongs to the upper bucket
		{900, v1.CategoryHigh},
	}
	for _, tc := range cases {
		if got := Category(tc.intensity, thresholds); got != tc.want {
			t.Errorf("Category(%g) = %s, want %s", tc.intensity, got, tc.want)
		}
	}
}

func TestCategory_CustomThresholds(t *testing.T) {
	custom := v1.Thresholds{LowCarbon: 50, HighCarbon: 150}
	if got := Category(50, custom); got != v1.CategoryMedium {
		t.Fatalf("Category(50) with low=50 should be medium, got %s", got)
	}
	if got := Category(150, custom); got != v1.CategoryHigh {
		t.Fatalf("Category(150) with high=150 should be high, got %s", got)
	}
}

// ═══════════════════════════════════════════
// Renewable share
// ═══════════════════════════════════════════

func TestTotalRenewable_NullsContributeZero(t *testing.T) {
	r := v1.RawReading{
		RenewablePercentage: f(30),
		WindPercentage:      f(10),
		BiomassPercentage:   f(5),
		// hydro and solar absent
	}
	if got := TotalRenewable(r); got != 45 {
		t.Fatalf("TotalRenewable = %g, want 45", got)
	}
}

func TestTotalRenewable_AllAbsent(t *testing.T) {
	if got := TotalRenewable(v1.RawReading{}); got != 0 {
		t.Fatalf("TotalRenewable of empty reading = %g, want 0", got)
	}
}

func TestTotalRenewable_Unclamped(t *testing.T) {
	// Upstream double-counting may push the sum above 100; it is passed
	// through, not corrected.
	r := v1.RawReading{
		RenewablePercentage: f(80),
		HydroPercentage:     f(40),
		SolarPercentage:     f(15),
	}
	if got := TotalRenewable(r); got != 135 {
		t.Fatalf("TotalRenewable = %g, want 135 (no clamping)", got)
	}
}

func TestTotalRenewable_IgnoresNonRenewables(t *testing.T) {
	r := v1.RawReading{
		RenewablePercentage: f(20),
		NuclearPercentage:   f(40),
		CoalPercentage:      f(30),
		GasPercentage:       f(10),
	}
	if got := TotalRenewable(r); got != 20 {
		t.Fatalf("TotalRenewable = %g, want 20 (nuclear/coal/gas excluded)", got)
	}
}

// ═══════════════════════════════════════════
// Full transform
// ═══════════════════════════════════════════

func sampleReading() v1.RawReading {
	return v1.RawReading{
		ID:                  "r-1",
		Zone:                "DE",
		Timestamp:           time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		CarbonIntensity:     f(320),
		RenewablePercentage: f(35),
		WindPercentage:      f(12),
		CreatedAt:           time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC),
	}
}

func TestApply_WithZoneMetadata(t *testing.T) {
	zone := &v1.ZoneMetadata{
		Zone: "DE", Name: "Germany", Country: "Germany",
		Latitude: 51.16, Longitude: 10.45, Timezone: "Europe/Berlin",
	}
	out := Apply(sampleReading(), zone, thresholds)

	if out.CarbonIntensityCategory != v1.CategoryMedium {
		t.Errorf("category = %s, want medium", out.CarbonIntensityCategory)
	}
	if out.TotalRenewablePercentage != 47 {
		t.Errorf("total renewable = %g, want 47", out.TotalRenewablePercentage)
	}
	if out.ZoneName == nil || *out.ZoneName != "Germany" {
		t.Errorf("zone name not joined: %v", out.ZoneName)
	}
	if out.ZoneTimezone == nil || *out.ZoneTimezone != "Europe/Berlin" {
		t.Errorf("zone timezone not joined: %v", out.ZoneTimezone)
	}
}

func TestApply_LeftJoinMissingMetadata(t *testing.T) {
	out := Apply(sampleReading(), nil, thresholds)

	// Still transformed, enrichment fields stay nil.
	if out.CarbonIntensityCategory != v1.CategoryMedium {
		t.Errorf("category = %s, want medium", out.CarbonIntensityCategory)
	}
	if out.ZoneName != nil || out.ZoneCountry != nil || out.ZoneLatitude != nil {
		t.Error("enrichment fields must be nil without zone metadata")
	}
}

func TestApply_Deterministic(t *testing.T) {
	zone := &v1.ZoneMetadata{Zone: "DE", Name: "Germany", Country: "Germany"}
	a := Apply(sampleReading(), zone, thresholds)
	b := Apply(sampleReading(), zone, thresholds)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical input must produce identical output")
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	r := sampleReading()
	before := r
	Apply(r, nil, thresholds)
	if !reflect.DeepEqual(r, before) {
		t.Fatal("Apply must not mutate its input")
	}
}

func TestApplyBatch_ZoneIndex(t *testing.T) {
	zones := map[string]v1.ZoneMetadata{
		"DE": {Zone: "DE", Name: "Germany", Country: "Germany"},
	}
	fr := sampleReading()
	fr.ID = "r-2"
	fr.Zone = "FR" // not in the index

	out := ApplyBatch([]v1.RawReading{sampleReading(), fr}, zones, thresholds)
	if len(out) != 2 {
		t.Fatalf("expected 2 transformed readings, got %d", len(out))
	}
	if out[0].ZoneName == nil {
		t.Error("DE reading should be enriched")
	}
	if out[1].ZoneName != nil {
		t.Error("FR reading without metadata must stay unenriched")
	}
}
