// Package carbon provides pure calculation functions for solar carbon-credit
// proposals: capacity unit normalization, annual energy and credit estimates,
// and the tiered revenue split between client, agent, and platform.
//
// Everything in this package is deterministic and performs no I/O.
package carbon

import (
	"math"
	"strconv"
	"strings"
)

// Unit is a solar nameplate capacity unit.
type Unit string

const (
	UnitKWp Unit = "kWp"
	UnitMWp Unit = "MWp"
)

const (
	// SpecificYieldKWhPerKWp is the assumed annual energy yield per kWp installed.
	SpecificYieldKWhPerKWp = 1100.0

	// EmissionFactorKgPerKWh is the displaced grid emission factor.
	EmissionFactorKgPerKWh = 0.7
)

// sanitize clamps negative and NaN/Inf capacities to zero. Calculation
// functions must be total over all inputs; bad sizes never propagate.
func sanitize(kwp float64) float64 {
	if math.IsNaN(kwp) || math.IsInf(kwp, 0) || kwp < 0 {
		return 0
	}
	return kwp
}

// NormalizeToKWp converts a capacity value in the given unit to kWp.
// Unknown units are treated as kWp, so normalizing an already-normalized
// value is a no-op. Negative or NaN values normalize to zero.
func NormalizeToKWp(value float64, unit Unit) float64 {
	value = sanitize(value)
	if unit == UnitMWp {
		return value * 1000
	}
	return value
}

// ParseSystemSize parses a numeric system size string. Invalid, negative,
// or NaN input yields zero rather than an error; form inputs arrive as
// free text and a bad size must never block a calculation.
func ParseSystemSize(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return sanitize(v)
}

// AnnualEnergyKWh estimates the annual energy production of a system in kWh.
func AnnualEnergyKWh(kwp float64) float64 {
	return sanitize(kwp) * SpecificYieldKWhPerKWp
}

// AnnualCarbonCredits estimates the annual carbon credits (tCO2e) earned by
// a system, based on its displaced grid emissions.
func AnnualCarbonCredits(kwp float64) float64 {
	return AnnualEnergyKWh(kwp) * EmissionFactorKgPerKWh / 1000
}
