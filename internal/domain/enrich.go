package domain

import "maps"

// Derived field names emitted by the Enricher.
const (
	FieldTemperatureFahrenheit     = "temperature_fahrenheit"
	FieldTemperatureKelvin         = "temperature_kelvin"
	FieldDewPoint                  = "dew_point"
	FieldHeartRatePercentage       = "heart_rate_percentage"
	FieldBodyTemperatureFahrenheit = "body_temperature_fahrenheit"
	FieldFlowRateM3PerHour         = "flow_rate_m3_per_hour"
	FieldPressurePSI               = "pressure_psi"
	FieldPricePerUnit              = "price_per_unit"
	FieldPopulationDensity         = "population_density"
)

// referenceMaxHeartRate is 220 minus a fixed reference age of 30.
const referenceMaxHeartRate = 220 - 30

// EnrichedData is the enrichment payload attached to a processed point. Nil
// pointers mean the value could not be resolved.
type EnrichedData struct {
	Country          *string
	Region           *string
	Timezone         *string
	NearestPlace     *string
	Cells            *CellSet
	ResolutionUsed   *int
	CalculatedFields map[string]float64
}

// NewEnrichedData returns an empty payload with an initialized field map.
func NewEnrichedData() EnrichedData {
	return EnrichedData{CalculatedFields: map[string]float64{}}
}

// Clone returns a deep copy so each processed point owns its payload.
func (e EnrichedData) Clone() EnrichedData {
	out := e
	out.Country = cloneString(e.Country)
	out.Region = cloneString(e.Region)
	out.Timezone = cloneString(e.Timezone)
	out.NearestPlace = cloneString(e.NearestPlace)
	if e.Cells != nil {
		cells := *e.Cells
		out.Cells = &cells
	}
	if e.ResolutionUsed != nil {
		res := *e.ResolutionUsed
		out.ResolutionUsed = &res
	}
	out.CalculatedFields = maps.Clone(e.CalculatedFields)
	if out.CalculatedFields == nil {
		out.CalculatedFields = map[string]float64{}
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Enricher combines a spatial lookup with category-specific derived fields.
type Enricher struct {
	locator Locator
}

// NewEnricher creates an Enricher. Pass a nil locator to skip spatial lookups.
func NewEnricher(locator Locator) Enricher {
	return Enricher{locator: locator}
}

// Enrich builds the enrichment payload for a reading.
func (e Enricher) Enrich(r Reading) EnrichedData {
	out := NewEnrichedData()

	if e.locator != nil {
		if loc, ok := e.locator.Resolve(r.Lat, r.Lon); ok {
			out.Country = &loc.Country
			out.Region = &loc.Region
			out.Timezone = &loc.Timezone
			out.NearestPlace = &loc.NearestPlace
			out.Cells = &loc.Cells
			out.ResolutionUsed = &loc.ResolutionUsed
		}
	}

	DeriveFields(r, out.CalculatedFields)
	return out
}

// DeriveFields writes the fixed-formula fields for r's category and variable
// into dst. Unlisted combinations add nothing.
func DeriveFields(r Reading, dst map[string]float64) {
	v := r.Value
	switch r.Category {
	case CategoryEnvironmental:
		switch r.Variable {
		case "temperature":
			dst[FieldTemperatureFahrenheit] = celsiusToFahrenheit(v)
			dst[FieldTemperatureKelvin] = v + 273.15
		case "humidity":
			dst[FieldDewPoint] = v - (100-v)/5
		}
	case CategoryHealth:
		switch r.Variable {
		case "heart_rate":
			dst[FieldHeartRatePercentage] = v / referenceMaxHeartRate * 100
		case "temperature":
			dst[FieldBodyTemperatureFahrenheit] = celsiusToFahrenheit(v)
		}
	case CategoryInfrastructure:
		switch r.Variable {
		case "flow_rate":
			dst[FieldFlowRateM3PerHour] = v * 3.6 / 1000
		case "pressure":
			dst[FieldPressurePSI] = v * 14.5038
		}
	case CategoryEconomic:
		if r.Variable == "price" {
			dst[FieldPricePerUnit] = v
		}
	case CategorySocial:
		if r.Variable == "population" {
			dst[FieldPopulationDensity] = v / 1000
		}
	}
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// UnitFor returns the unit tag for a derived field within a category, or
// "unknown" when the combination is not recognized.
func UnitFor(field string, category Category) string {
	var unit string
	switch category {
	case CategoryEnvironmental:
		switch field {
		case FieldTemperatureFahrenheit:
			unit = "fahrenheit"
		case FieldTemperatureKelvin:
			unit = "kelvin"
		case FieldDewPoint:
			unit = "celsius"
		}
	case CategoryHealth:
		switch field {
		case FieldBodyTemperatureFahrenheit:
			unit = "fahrenheit"
		case FieldHeartRatePercentage:
			unit = "percentage"
		}
	case CategoryInfrastructure:
		switch field {
		case FieldFlowRateM3PerHour:
			unit = "m³/h"
		case FieldPressurePSI:
			unit = "psi"
		}
	case CategoryEconomic:
		if field == FieldPricePerUnit {
			unit = "currency/unit"
		}
	case CategorySocial:
		if field == FieldPopulationDensity {
			unit = "people/km²"
		}
	}
	if unit == "" {
		return "unknown"
	}
	return unit
}
