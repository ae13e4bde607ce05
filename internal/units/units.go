// Package units converts the station's metric observations into the units
// the clientraw records use (knots, feet, kilometres, millimetres).
package units

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const (
	knotsPerMS = 1.943844
	feetPerM   = 3.28084
	mmPerCM    = 10.0
	mmPerInch  = 25.4
)

// MSToKnots converts metres per second to knots.
func MSToKnots(v float64) float64 { return v * knotsPerMS }

// MetersToFeet converts metres to feet.
func MetersToFeet(v float64) float64 { return v * feetPerM }

// Windrun returns the distance in km covered by an average speed (m/s) over
// the given number of seconds.
func Windrun(avgMS, seconds float64) float64 { return avgMS * seconds / 1000 }

// CMToMM converts centimetres to millimetres.
func CMToMM(v float64) float64 { return v * mmPerCM }

// InchToMM converts inches to millimetres.
func InchToMM(v float64) float64 { return v * mmPerInch }

// PerHourToPerMinute scales an hourly rate to a per-minute rate.
func PerHourToPerMinute(v float64) float64 { return v / 60 }

// ParseRain parses a manually configured rainfall amount such as "24.6 mm",
// "2.4cm", "1 in" or a bare number (millimetres) and returns millimetres.
func ParseRain(s string) (float64, error) {
	number, unit := strings.TrimSpace(s), ""
	if i := strings.IndexFunc(number, unicode.IsLetter); i >= 0 {
		number, unit = strings.TrimSpace(number[:i]), strings.TrimSpace(number[i:])
	}
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rainfall %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative rainfall %q", s)
	}
	switch strings.ToLower(unit) {
	case "":
		return v, nil
	case "mm":
		return v, nil
	case "cm":
		return CMToMM(v), nil
	case "in", "inch", "inches":
		return InchToMM(v), nil
	default:
		return 0, fmt.Errorf("unknown rainfall unit %q", unit)
	}
}
