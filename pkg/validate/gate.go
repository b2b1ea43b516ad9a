// Package validate implements the data-quality gate for incoming readings.
//
// The gate is a rule engine: an ordered table of (id, message, predicate)
// tuples evaluated independently against each reading. All rules run and
// failures accumulate — the result lists every violated rule, not just
// the first. Adding a rule means adding a table row, not new control flow.
package validate

import (
	"fmt"
	"time"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
)

// ═══════════════════════════════════════════
// Key snapshot
// ═══════════════════════════════════════════

// Key is the natural uniqueness key of a reading.
type Key struct {
	Zone      string
	Timestamp time.Time
}

// KeySet is a snapshot of the ids and (zone, timestamp) pairs already
// accepted by the authoritative store. The gate treats it as read-only:
// it provides a pre-check, not a transactional guarantee — the store
// enforces uniqueness atomically at write time as the final authority.
type KeySet struct {
	ids  map[string]struct{}
	keys map[Key]struct{}
}

// NewKeySet returns an empty key snapshot.
func NewKeySet() *KeySet {
	return &KeySet{
		ids:  make(map[string]struct{}),
		keys: make(map[Key]struct{}),
	}
}

// Add registers a reading's id and (zone, timestamp) pair.
// Timestamps are normalized to UTC so equal instants collide.
func (s *KeySet) Add(id, zone string, ts time.Time) {
	if id != "" {
		s.ids[id] = struct{}{}
	}
	if zone != "" && !ts.IsZero() {
		s.keys[Key{Zone: zone, Timestamp: ts.UTC()}] = struct{}{}
	}
}

// HasID reports whether an id is already claimed.
func (s *KeySet) HasID(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// HasKey reports whether a (zone, timestamp) pair is already claimed.
func (s *KeySet) HasKey(zone string, ts time.Time) bool {
	_, ok := s.keys[Key{Zone: zone, Timestamp: ts.UTC()}]
	return ok
}

// Clone returns an independent copy, so batch validation can claim keys
// without mutating the caller's snapshot.
func (s *KeySet) Clone() *KeySet {
	c := NewKeySet()
	for id := range s.ids {
		c.ids[id] = struct{}{}
	}
	for k := range s.keys {
		c.keys[k] = struct{}{}
	}
	return c
}

// Len returns the number of claimed (zone, timestamp) pairs.
func (s *KeySet) Len() int {
	return len(s.keys)
}

// ═══════════════════════════════════════════
// Rule table
// ═══════════════════════════════════════════

// Rule is one data-quality constraint. Check returns true when the
// reading satisfies the rule.
type Rule struct {
	ID      string
	Message string
	Check   func(r *v1.RawReading, keys *KeySet) bool
}

// Carbon intensity and energy-mix bounds, matching the upstream
// expectation suite.
const (
	maxCarbonIntensity = 1000
	maxPercentage      = 100
)

// rules is the ordered gate table. Optional range rules pass when the
// field is absent: a nil percentage is not a range violation.
var rules = []Rule{
	{
		ID:      "id_not_null",
		Message: "id must not be null",
		Check: func(r *v1.RawReading, _ *KeySet) bool {
			return r.ID != ""
		},
	},
	{
		ID:      "zone_not_null",
		Message: "zone must not be null",
		Check: func(r *v1.RawReading, _ *KeySet) bool {
			return r.Zone != ""
		},
	},
	{
		ID:      "timestamp_not_null",
		Message: "timestamp must not be null",
		Check: func(r *v1.RawReading, _ *KeySet) bool {
			return !r.Timestamp.IsZero()
		},
	},
	{
		ID:      "carbon_intensity_not_null",
		Message: "carbon_intensity must not be null",
		Check: func(r *v1.RawReading, _ *KeySet) bool {
			return r.CarbonIntensity != nil
		},
	},
	{
		ID:      "carbon_intensity_range",
		Message: fmt.Sprintf("carbon_intensity must be between 0 and %d gCO2eq/kWh", maxCarbonIntensity),
		Check: func(r *v1.RawReading, _ *KeySet) bool {
			return inRange(r.CarbonIntensity, 0, maxCarbonIntensity)
		},
	},
	{
		ID:      "renewable_percentage_range",
		Message: fmt.Sprintf("renewable_percentage must be between 0 and %d", maxPercentage),
		Check: func(r *v1.RawReading, _ *KeySet) bool {
			return inRange(r.RenewablePercentage, 0, maxPercentage)
		},
	},
	{
		ID:      "fossil_fuel_percentage_range",
		Message: fmt.Sprintf("fossil_fuel_percentage must be between 0 and %d", maxPercentage),
		Check: func(r *v1.RawReading, _ *KeySet) bool {
			return inRange(r.FossilFuelPercentage, 0, maxPercentage)
		},
	},
	{
		ID:      "id_unique",
		Message: "id already exists",
		Check: func(r *v1.RawReading, keys *KeySet) bool {
			return r.ID == "" || !keys.HasID(r.ID)
		},
	},
	{
		ID:      "zone_timestamp_unique",
		Message: "a reading for this zone and timestamp already exists",
		Check: func(r *v1.RawReading, keys *KeySet) bool {
			if r.Zone == "" || r.Timestamp.IsZero() {
				return true
			}
			return !keys.HasKey(r.Zone, r.Timestamp)
		},
	},
}

// inRange is nil-safe: absent values satisfy range rules; the not-null
// rules own presence checks.
func inRange(v *float64, lo, hi float64) bool {
	if v == nil {
		return true
	}
	return *v >= lo && *v <= hi
}

// Rules returns the gate table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// ═══════════════════════════════════════════
// Gate evaluation
// ═══════════════════════════════════════════

// Validate evaluates one reading against the full rule table. Every rule
// runs; nothing short-circuits. Business-rule failures are reported in
// the result, never as an error.
func Validate(r v1.RawReading, keys *KeySet) v1.ValidationResult {
	if keys == nil {
		keys = NewKeySet()
	}

	var failures []v1.RuleFailure
	for _, rule := range rules {
		if !rule.Check(&r, keys) {
			failures = append(failures, v1.RuleFailure{RuleID: rule.ID, Message: rule.Message})
		}
	}
	return v1.ValidationResult{Accepted: len(failures) == 0, Failures: failures}
}

// ValidateBatch evaluates a batch in input order. Within-batch duplicate
// ids or (zone, timestamp) pairs fail on the second and later
// occurrence: each accepted record claims its keys in a working copy of
// the snapshot before the next record is checked. The caller's snapshot
// is never mutated.
func ValidateBatch(batch []v1.RawReading, keys *KeySet) []v1.ValidationResult {
	if keys == nil {
		keys = NewKeySet()
	}
	working := keys.Clone()

	results := make([]v1.ValidationResult, len(batch))
	for i := range batch {
		results[i] = Validate(batch[i], working)
		if results[i].Accepted {
			working.Add(batch[i].ID, batch[i].Zone, batch[i].Timestamp)
		}
	}
	return results
}
