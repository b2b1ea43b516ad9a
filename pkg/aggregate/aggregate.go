// Package aggregate computes per-zone rollups over transformed readings.
//
// The engine is stateless and holds no cache: every summary is
// recomputed from the readings passed in, so it tolerates being called
// repeatedly with overlapping windows.
package aggregate

import (
	"math"
	"sort"
	"time"

	v1 "github.com/ajosegun/carbon-pulse/api/v1"
)

// Summarize rolls one zone's transformed readings into a ZoneSummary.
//
// Callers typically pre-filter to one zone and a time window; the engine
// itself is group-agnostic and takes the zone code from the first
// reading when metadata is absent. Numeric aggregates skip nil fields
// rather than treating them as 0; an empty input produces a summary with
// DataPoints 0 and nil aggregate fields.
func Summarize(readings []v1.TransformedReading, zone *v1.ZoneMetadata) v1.ZoneSummary {
	summary := v1.ZoneSummary{DataPoints: len(readings)}

	if zone != nil {
		summary.Zone = zone.Zone
		name := zone.Name
		country := zone.Country
		summary.ZoneName = &name
		summary.ZoneCountry = &country
	} else if len(readings) > 0 {
		summary.Zone = readings[0].Zone
	}

	if len(readings) == 0 {
		return summary
	}

	var (
		intensity accumulator
		renewable accumulator
		fossil    accumulator
		first     time.Time
		last      time.Time
	)

	for i := range readings {
		r := &readings[i]

		intensity.observe(r.CarbonIntensity)
		renewable.observeValue(r.TotalRenewablePercentage)
		fossil.observe(r.FossilFuelPercentage)

		switch r.CarbonIntensityCategory {
		case v1.CategoryLow:
			summary.LowCarbonCount++
		case v1.CategoryMedium:
			summary.MediumCarbonCount++
		case v1.CategoryHigh:
			summary.HighCarbonCount++
		}

		ts := r.Timestamp
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}

	summary.AvgCarbonIntensity = intensity.avg()
	summary.MinCarbonIntensity = intensity.minimum()
	summary.MaxCarbonIntensity = intensity.maximum()
	summary.AvgRenewablePercentage = renewable.avg()
	summary.AvgFossilFuelPercentage = fossil.avg()

	n := float64(summary.DataPoints)
	summary.LowCarbonPercentage = pct(summary.LowCarbonCount, n)
	summary.MediumCarbonPercentage = pct(summary.MediumCarbonCount, n)
	summary.HighCarbonPercentage = pct(summary.HighCarbonCount, n)

	if !first.IsZero() {
		summary.FirstReading = &first
	}
	if !last.IsZero() {
		summary.LastReading = &last
	}

	return summary
}

// SummarizeAll groups a multi-zone window by zone and summarizes each
// group. Output is ordered by zone code for deterministic responses.
func SummarizeAll(readings []v1.TransformedReading, zones map[string]v1.ZoneMetadata) []v1.ZoneSummary {
	grouped := make(map[string][]v1.TransformedReading)
	for _, r := range readings {
		grouped[r.Zone] = append(grouped[r.Zone], r)
	}

	codes := make([]string, 0, len(grouped))
	for code := range grouped {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]v1.ZoneSummary, 0, len(codes))
	for _, code := range codes {
		var zone *v1.ZoneMetadata
		if z, ok := zones[code]; ok {
			zone = &z
		}
		out = append(out, Summarize(grouped[code], zone))
	}
	return out
}

// Round2 rounds to two decimal places with round-half-to-even, matching
// the reference query engine's round() semantics. The rounding mode is
// pinned here (and in tests) instead of left to a platform default.
func Round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

func pct(count int, total float64) *float64 {
	v := Round2(float64(count) * 100.0 / total)
	return &v
}

// ═══════════════════════════════════════════
// Nil-safe numeric accumulation
// ═══════════════════════════════════════════

// accumulator gathers sum/min/max over present values only. Absent
// fields are skipped, never counted as 0.
type accumulator struct {
	sum   float64
	count int
	min   float64
	max   float64
}

func (a *accumulator) observe(v *float64) {
	if v == nil {
		return
	}
	a.observeValue(*v)
}

func (a *accumulator) observeValue(v float64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.count++
}

func (a *accumulator) avg() *float64 {
	if a.count == 0 {
		return nil
	}
	v := a.sum / float64(a.count)
	return &v
}

func (a *accumulator) minimum() *float64 {
	if a.count == 0 {
		return nil
	}
	v := a.min
	return &v
}

func (a *accumulator) maximum() *float64 {
	if a.count == 0 {
		return nil
	}
	v := a.max
	return &v
}
