// Package transform implements the reading transformation engine.
//
// Each derivation is a pure function over a validated reading: same
// input and same threshold configuration always produce bit-identical
// output, so transformed readings can be re-derived at any time.
package transform

import (
	v1 "github.com/ajosegun/carbon-pulse/api/v1"
)

// renewableField names one member of the renewable energy family.
// The family is a data table, mirroring the gate's rule table, so the
// derivation can be extended without touching Apply.
type renewableField struct {
	name  string
	value func(r *v1.RawReading) *float64
}

// renewableFamily are the energy-mix categories summed into
// total_renewable_percentage.
var renewableFamily = []renewableField{
	{"renewable_percentage", func(r *v1.RawReading) *float64 { return r.RenewablePercentage }},
	{"hydro_percentage", func(r *v1.RawReading) *float64 { return r.HydroPercentage }},
	{"wind_percentage", func(r *v1.RawReading) *float64 { return r.WindPercentage }},
	{"solar_percentage", func(r *v1.RawReading) *float64 { return r.SolarPercentage }},
	{"biomass_percentage", func(r *v1.RawReading) *float64 { return r.BiomassPercentage }},
}

// TotalRenewable sums the renewable-family percentages, treating null
// as 0. The sum is deliberately NOT clamped to 100: upstream providers
// may double-count categories, and the overlap is passed through rather
// than silently corrected.
func TotalRenewable(r v1.RawReading) float64 {
	var total float64
	for _, field := range renewableFamily {
		if v := field.value(&r); v != nil {
			total += *v
		}
	}
	return total
}

// Category buckets a carbon intensity against the configured thresholds.
// Comparison is strict: boundary values belong to the upper bucket, so
// an intensity exactly at the low threshold is medium and exactly at the
// high threshold is high.
func Category(intensity float64, t v1.Thresholds) v1.Category {
	switch {
	case intensity < t.LowCarbon:
		return v1.CategoryLow
	case intensity < t.HighCarbon:
		return v1.CategoryMedium
	default:
		return v1.CategoryHigh
	}
}

// Apply derives a TransformedReading from a validated raw reading.
//
// Zone enrichment is a left join: when zone is nil the enrichment
// fields stay nil and the reading is still transformed — missing
// metadata never rejects a reading.
func Apply(r v1.RawReading, zone *v1.ZoneMetadata, t v1.Thresholds) v1.TransformedReading {
	out := v1.TransformedReading{
		RawReading:               r,
		TotalRenewablePercentage: TotalRenewable(r),
	}

	if r.CarbonIntensity != nil {
		out.CarbonIntensityCategory = Category(*r.CarbonIntensity, t)
	}

	if zone != nil {
		name := zone.Name
		country := zone.Country
		lat := zone.Latitude
		lon := zone.Longitude
		tz := zone.Timezone
		out.ZoneName = &name
		out.ZoneCountry = &country
		out.ZoneLatitude = &lat
		out.ZoneLongitude = &lon
		out.ZoneTimezone = &tz
	}

	return out
}

// ApplyBatch transforms a slice of validated readings against one zone
// metadata index. Readings whose zone is absent from the index are
// transformed without enrichment.
func ApplyBatch(readings []v1.RawReading, zones map[string]v1.ZoneMetadata, t v1.Thresholds) []v1.TransformedReading {
	out := make([]v1.TransformedReading, 0, len(readings))
	for _, r := range readings {
		var zone *v1.ZoneMetadata
		if z, ok := zones[r.Zone]; ok {
			zone = &z
		}
		out = append(out, Apply(r, zone, t))
	}
	return out
}
