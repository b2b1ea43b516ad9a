package validate

import (
	"testing"
	"time"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
)

func f(v float64) *float64 { return &v }

func validReading(id, zone string, ts time.Time) v1.RawReading {
	return v1.RawReading{
		ID:              id,
		Zone:            zone,
		Timestamp:       ts,
		CarbonIntensity: f(150),
	}
}

func failedRules(r v1.ValidationResult) []string {
	ids := make([]string, len(r.Failures))
	for i, fl := range r.Failures {
		ids[i] = fl.RuleID
	}
	return ids
}

func hasRule(r v1.ValidationResult, id string) bool {
	for _, fl := range r.Failures {
		if fl.RuleID == id {
			return true
		}
	}
	return false
}

// ═══════════════════════════════════════════
// Single-reading rules
// ═══════════════════════════════════════════

func TestValidate_Accepted(t *testing.T) {
	r := validReading("r-1", "DE", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	res := Validate(r, NewKeySet())
	if !res.Accepted {
		t.Fatalf("expected accepted, got failures: %v", failedRules(res))
	}
	if len(res.Failures) != 0 {
		t.Fatalf("accepted result must carry no failures, got %v", res.Failures)
	}
}

func TestValidate_NullFields(t *testing.T) {
	res := Validate(v1.RawReading{}, NewKeySet())
	if res.Accepted {
		t.Fatal("empty reading must be rejected")
	}
	for _, want := range []string{
		"id_not_null", "zone_not_null", "timestamp_not_null", "carbon_intensity_not_null",
	} {
		if !hasRule(res, want) {
			t.Errorf("expected %s in failures, got %v", want, failedRules(res))
		}
	}
}

func TestValidate_AccumulatesAllFailures(t *testing.T) {
	// Null id AND out-of-range intensity: both rules must be listed,
	// in rule-table order.
	r := v1.RawReading{
		Zone:            "FR",
		Timestamp:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		CarbonIntensity: f(1500),
	}
	res := Validate(r, NewKeySet())
	got := failedRules(res)
	want := []string{"id_not_null", "carbon_intensity_range"}
	if len(got) != len(want) {
		t.Fatalf("expected failures %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected failures %v in order, got %v", want, got)
		}
	}
}

func TestValidate_CarbonIntensityBounds(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		value    float64
		accepted bool
	}{
		{"zero is inclusive", 0, true},
		{"upper bound is inclusive", 1000, true},
		{"negative rejected", -0.1, false},
		{"above upper rejected", 1000.01, false},
	}
	for _, tc := range cases {
		r := validReading("r-1", "DE", ts)
		r.CarbonIntensity = f(tc.value)
		res := Validate(r, NewKeySet())
		if res.Accepted != tc.accepted {
			t.Errorf("%s: carbon_intensity=%g accepted=%v, want %v",
				tc.name, tc.value, res.Accepted, tc.accepted)
		}
	}
}

func TestValidate_OptionalPercentagesNilSafe(t *testing.T) {
	// Absent optional fields do not trip the range rules.
	r := validReading("r-1", "DE", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	r.RenewablePercentage = nil
	r.FossilFuelPercentage = nil
	res := Validate(r, NewKeySet())
	if !res.Accepted {
		t.Fatalf("nil optional percentages must pass, got %v", failedRules(res))
	}
}

func TestValidate_PercentageRange(t *testing.T) {
	r := validReading("r-1", "DE", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	r.RenewablePercentage = f(100.5)
	r.FossilFuelPercentage = f(-2)
	res := Validate(r, NewKeySet())
	if res.Accepted {
		t.Fatal("out-of-range percentages must be rejected")
	}
	if !hasRule(res, "renewable_percentage_range") || !hasRule(res, "fossil_fuel_percentage_range") {
		t.Fatalf("expected both range failures, got %v", failedRules(res))
	}
}

// ═══════════════════════════════════════════
// Uniqueness against the key snapshot
// ═══════════════════════════════════════════

func TestValidate_ZoneTimestampUnique(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	keys := NewKeySet()
	keys.Add("r-0", "DE", ts)

	dup := validReading("r-1", "DE", ts)
	res := Validate(dup, keys)
	if res.Accepted {
		t.Fatal("duplicate (zone, timestamp) must be rejected")
	}
	if !hasRule(res, "zone_timestamp_unique") {
		t.Fatalf("expected zone_timestamp_unique in failures, got %v", failedRules(res))
	}

	// Same zone, different timestamp: accepted.
	fresh := validReading("r-2", "DE", ts.Add(time.Hour))
	if res := Validate(fresh, keys); !res.Accepted {
		t.Fatalf("different timestamp must pass, got %v", failedRules(res))
	}
}

func TestValidate_TimestampNormalizedToUTC(t *testing.T) {
	utc := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	keys := NewKeySet()
	keys.Add("r-0", "DE", utc)

	paris := time.FixedZone("CET", 3600)
	sameInstant := validReading("r-1", "DE", time.Date(2024, 3, 1, 13, 0, 0, 0, paris))
	if res := Validate(sameInstant, keys); res.Accepted {
		t.Fatal("same instant in another zone offset must still collide")
	}
}

func TestValidate_IDUnique(t *testing.T) {
	keys := NewKeySet()
	keys.Add("r-0", "DE", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	r := validReading("r-0", "FR", time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC))
	res := Validate(r, keys)
	if res.Accepted {
		t.Fatal("duplicate id must be rejected")
	}
	if !hasRule(res, "id_unique") {
		t.Fatalf("expected id_unique in failures, got %v", failedRules(res))
	}
}

// ═══════════════════════════════════════════
// Batch validation
// ═══════════════════════════════════════════

func TestValidateBatch_DuplicateID(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []v1.RawReading{
		validReading("r-1", "DE", ts),
		validReading("r-1", "FR", ts),
	}
	results := ValidateBatch(batch, NewKeySet())
	if !results[0].Accepted {
		t.Fatalf("first occurrence must win, got %v", failedRules(results[0]))
	}
	if results[1].Accepted {
		t.Fatal("second occurrence of id must be rejected")
	}
	if !hasRule(results[1], "id_unique") {
		t.Fatalf("expected id_unique, got %v", failedRules(results[1]))
	}
}

func TestValidateBatch_DuplicateZoneTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []v1.RawReading{
		validReading("r-1", "DE", ts),
		validReading("r-2", "DE", ts),
		validReading("r-3", "DE", ts.Add(time.Hour)),
	}
	results := ValidateBatch(batch, NewKeySet())
	if !results[0].Accepted {
		t.Fatalf("first occurrence must win, got %v", failedRules(results[0]))
	}
	if results[1].Accepted || !hasRule(results[1], "zone_timestamp_unique") {
		t.Fatalf("second occurrence must fail zone_timestamp_unique, got %v", failedRules(results[1]))
	}
	if !results[2].Accepted {
		t.Fatalf("distinct timestamp must pass, got %v", failedRules(results[2]))
	}
}

func TestValidateBatch_RejectedRecordClaimsNoKeys(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bad := validReading("r-1", "DE", ts)
	bad.CarbonIntensity = nil // rejected, never persisted
	batch := []v1.RawReading{
		bad,
		validReading("r-2", "DE", ts), // same key as the rejected record
	}
	results := ValidateBatch(batch, NewKeySet())
	if results[0].Accepted {
		t.Fatal("record without carbon_intensity must be rejected")
	}
	if !results[1].Accepted {
		t.Fatalf("key of a rejected record must stay free, got %v", failedRules(results[1]))
	}
}

func TestValidateBatch_DoesNotMutateSnapshot(t *testing.T) {
	keys := NewKeySet()
	batch := []v1.RawReading{
		validReading("r-1", "DE", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	ValidateBatch(batch, keys)
	if keys.HasID("r-1") || keys.Len() != 0 {
		t.Fatal("caller snapshot must not be mutated by batch validation")
	}
}
