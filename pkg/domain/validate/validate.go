// Package validate maps raw sensor fields to validated, rounded values.
// The rule table below is the single source of truth: every call site goes
// through it, nothing re-checks ranges elsewhere.
package validate

import "math"

type Field string

const (
	FieldSpeed       Field = "speed"
	FieldPower       Field = "power"
	FieldCadence     Field = "cadence"
	FieldHeartRate   Field = "heart_rate"
	FieldTemperature Field = "temperature"
)

// CoordinateDecimals gives roughly 1.1 cm of precision. Rounding is applied
// exactly once before storage and is idempotent.
const CoordinateDecimals = 7

type rule struct {
	min      float64
	max      float64
	decimals int // -1 rounds to integer
}

var rules = map[Field]rule{
	FieldSpeed:       {min: 0, max: 200, decimals: 2},
	FieldPower:       {min: 0, max: 2000, decimals: -1},
	FieldCadence:     {min: 0, max: 300, decimals: -1},
	FieldHeartRate:   {min: 30, max: 250, decimals: -1},
	FieldTemperature: {min: -50, max: 60, decimals: 1},
}

// Float validates v against the field's range and returns the rounded value,
// or nil when v is missing, non-finite, or out of range. Boundary values are
// retained.
func Float(f Field, v *float64) *float64 {
	r, ok := rules[f]
	if !ok || v == nil || !isFinite(*v) {
		return nil
	}
	if *v < r.min || *v > r.max {
		return nil
	}
	out := Round(*v, r.decimals)
	return &out
}

// Int is Float for integer-valued fields (power, cadence, heart rate).
func Int(f Field, v *float64) *int {
	rounded := Float(f, v)
	if rounded == nil {
		return nil
	}
	out := int(*rounded)
	return &out
}

// Coordinate rounds a latitude or longitude to CoordinateDecimals digits.
// Coordinates have no range clamp: nil only for missing or non-finite input.
func Coordinate(v *float64) *float64 {
	if v == nil || !isFinite(*v) {
		return nil
	}
	out := Round(*v, CoordinateDecimals)
	return &out
}

// Round rounds half away from zero. decimals < 0 rounds to an integer.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
