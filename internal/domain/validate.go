package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidReading is wrapped by every validation failure.
var ErrInvalidReading = errors.New("invalid reading")

// ValidationError describes why a reading was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reading: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidReading }

func reject(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ValidationRules holds the configurable environmental ranges. All other
// category ranges are fixed.
type ValidationRules struct {
	TemperatureMin float64
	TemperatureMax float64
	HumidityMin    float64
	HumidityMax    float64
}

// DefaultValidationRules returns the ranges used when nothing is configured.
func DefaultValidationRules() ValidationRules {
	return ValidationRules{
		TemperatureMin: -100,
		TemperatureMax: 100,
		HumidityMin:    0,
		HumidityMax:    100,
	}
}

// Validator applies the per-category rule sets. The zero value is not useful;
// use NewValidator.
type Validator struct {
	rules ValidationRules
}

// NewValidator creates a Validator with the given environmental ranges.
func NewValidator(rules ValidationRules) Validator {
	return Validator{rules: rules}
}

// Validate returns nil when the reading is acceptable, or an error wrapping
// ErrInvalidReading naming the first failed check.
func (v Validator) Validate(r Reading) error {
	if r.Source == "" {
		return reject("source", "empty")
	}
	if r.Variable == "" {
		return reject("variable", "empty")
	}

	var err error
	switch r.Category {
	case CategoryEnvironmental:
		err = v.environmental(r.Variable, r.Value)
	case CategoryHealth:
		err = health(r.Variable, r.Value)
	case CategoryInfrastructure:
		err = infrastructure(r.Variable, r.Value)
	case CategoryEconomic:
		err = economic(r.Variable, r.Value)
	case CategorySocial:
		err = social(r.Variable, r.Value)
	default:
		return reject("category", "missing or unsupported")
	}
	if err != nil {
		return err
	}

	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return reject("value", "not a finite number")
	}
	if r.Lat < -90 || r.Lat > 90 {
		return reject("lat", "%.4f outside [-90, 90]", r.Lat)
	}
	if r.Lon < -180 || r.Lon > 180 {
		return reject("lon", "%.4f outside [-180, 180]", r.Lon)
	}
	return nil
}

func (v Validator) environmental(variable string, value float64) error {
	switch variable {
	case "temperature":
		return checkRange(variable, value, v.rules.TemperatureMin, v.rules.TemperatureMax)
	case "humidity":
		return checkRange(variable, value, v.rules.HumidityMin, v.rules.HumidityMax)
	case "air_quality", "pm2.5", "pm10":
		return checkNonNegative(variable, value)
	}
	return nil
}

func health(variable string, value float64) error {
	switch variable {
	case "heart_rate":
		return checkRange(variable, value, 30, 250)
	case "temperature":
		return checkRange(variable, value, 35, 42)
	}
	return nil
}

func infrastructure(variable string, value float64) error {
	switch variable {
	case "temperature":
		return checkRange(variable, value, -50, 200)
	case "pressure":
		if value <= 0 {
			return reject(variable, "%.2f must be positive", value)
		}
	case "flow_rate":
		return checkNonNegative(variable, value)
	}
	return nil
}

func economic(variable string, value float64) error {
	switch variable {
	case "price", "cost", "revenue":
		return checkNonNegative(variable, value)
	}
	return nil
}

func social(variable string, value float64) error {
	switch variable {
	case "population", "count":
		if err := checkNonNegative(variable, value); err != nil {
			return err
		}
		if value != math.Trunc(value) {
			return reject(variable, "%.4f is not a whole number", value)
		}
	case "percentage", "rate":
		return checkRange(variable, value, 0, 100)
	}
	return nil
}

func checkRange(variable string, value, lo, hi float64) error {
	if value < lo || value > hi {
		return reject(variable, "%.2f outside [%g, %g]", value, lo, hi)
	}
	return nil
}

func checkNonNegative(variable string, value float64) error {
	if value < 0 {
		return reject(variable, "%.2f is negative", value)
	}
	return nil
}
