// Package schema implements the Carbon Pulse schema registry.
//
// It declares the fixed column set and types for reading and zone
// records. The validation gate and the transformation engine both use it
// to fail fast on structural drift: a batch import whose columns diverge
// from the registered schema is rejected as a whole before any
// per-record rule runs.
package schema

import (
	"fmt"
	"sort"
)

// Kind identifies a registered entity schema.
type Kind string

const (
	KindReading Kind = "reading"
	KindZone    Kind = "zone"
)

// Column is one (name, type) entry in a registered schema.
// Types are logical: string, timestamp, double.
type Column struct {
	Name string
	Type string
}

// readingColumns is the fixed, ordered column set for a raw reading.
var readingColumns = []Column{
	{"id", "string"},
	{"zone", "string"},
	{"timestamp", "timestamp"},
	{"carbon_intensity", "double"},
	{"fossil_fuel_percentage", "double"},
	{"renewable_percentage", "double"},
	{"nuclear_percentage", "double"},
	{"hydro_percentage", "double"},
	{"wind_percentage", "double"},
	{"solar_percentage", "double"},
	{"biomass_percentage", "double"},
	{"coal_percentage", "double"},
	{"gas_percentage", "double"},
	{"oil_percentage", "double"},
	{"unknown_percentage", "double"},
	{"total_production", "double"},
	{"total_consumption", "double"},
	{"created_at", "timestamp"},
}

// zoneColumns is the fixed, ordered column set for a zone record.
var zoneColumns = []Column{
	{"zone", "string"},
	{"name", "string"},
	{"country", "string"},
	{"latitude", "double"},
	{"longitude", "double"},
	{"timezone", "string"},
	{"created_at", "timestamp"},
	{"updated_at", "timestamp"},
}

// Columns returns the ordered column set registered for a kind.
// The returned slice is a copy; callers may not mutate the registry.
func Columns(kind Kind) ([]Column, error) {
	var cols []Column
	switch kind {
	case KindReading:
		cols = readingColumns
	case KindZone:
		cols = zoneColumns
	default:
		return nil, fmt.Errorf("schema: unknown kind %q", kind)
	}
	out := make([]Column, len(cols))
	copy(out, cols)
	return out, nil
}

// ═══════════════════════════════════════════
// Structural checks
// ═══════════════════════════════════════════

// MismatchError reports the first position at which an incoming payload's
// structure diverges from the registered schema. It is fatal to the batch:
// the caller rejects the entire payload.
type MismatchError struct {
	Kind     Kind
	Position int    // zero-based index of the first divergence
	Want     string // expected column at Position ("" when payload has extra columns)
	Got      string // observed column at Position ("" when payload is short)
}

func (e *MismatchError) Error() string {
	switch {
	case e.Want == "":
		return fmt.Sprintf("schema mismatch for %s at position %d: unexpected column %q",
			e.Kind, e.Position, e.Got)
	case e.Got == "":
		return fmt.Sprintf("schema mismatch for %s at position %d: missing column %q",
			e.Kind, e.Position, e.Want)
	default:
		return fmt.Sprintf("schema mismatch for %s at position %d: want %q, got %q",
			e.Kind, e.Position, e.Want, e.Got)
	}
}

// CheckHeader verifies that an ordered list of column names (e.g. a CSV
// header) matches the registered schema exactly: same names, same order,
// same count. Returns a *MismatchError naming the first divergence.
func CheckHeader(kind Kind, names []string) error {
	want, err := Columns(kind)
	if err != nil {
		return err
	}
	for i := range want {
		if i >= len(names) {
			return &MismatchError{Kind: kind, Position: i, Want: want[i].Name}
		}
		if names[i] != want[i].Name {
			return &MismatchError{Kind: kind, Position: i, Want: want[i].Name, Got: names[i]}
		}
	}
	if len(names) > len(want) {
		return &MismatchError{Kind: kind, Position: len(want), Got: names[len(want)]}
	}
	return nil
}

// CheckColumns verifies names, types, order, and count against the
// registered schema. Type divergence at a matching name is still a
// mismatch at that position.
func CheckColumns(kind Kind, got []Column) error {
	want, err := Columns(kind)
	if err != nil {
		return err
	}
	for i := range want {
		if i >= len(got) {
			return &MismatchError{Kind: kind, Position: i, Want: describe(want[i])}
		}
		if got[i] != want[i] {
			return &MismatchError{
				Kind:     kind,
				Position: i,
				Want:     describe(want[i]),
				Got:      describe(got[i]),
			}
		}
	}
	if len(got) > len(want) {
		return &MismatchError{Kind: kind, Position: len(want), Got: describe(got[len(want)])}
	}
	return nil
}

func describe(c Column) string {
	return c.Name + " " + c.Type
}

// CheckRecord verifies that a decoded record (e.g. one JSONL object)
// carries no fields outside the registered schema. Field order is not
// observable in a decoded map, so only membership is checked; the first
// unknown field in lexical order is reported.
func CheckRecord(kind Kind, record map[string]any) error {
	want, err := Columns(kind)
	if err != nil {
		return err
	}
	known := make(map[string]int, len(want))
	for i, c := range want {
		known[c.Name] = i
	}

	var unknown []string
	for name := range record {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &MismatchError{Kind: kind, Position: len(want), Got: unknown[0]}
}
