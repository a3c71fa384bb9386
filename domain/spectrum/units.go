package spectrum

import (
	"fmt"
	"math"
)

// PSUnits identifies the power-spectrum unit convention of a measurement.
type PSUnits string

const (
	// UnitsMK2 is the internal convention: P(k) in mK^2 Mpc^3 (temperature squared).
	UnitsMK2 PSUnits = "mK2"
	// UnitsDeltaSq is the dimensionless convention: Delta^2(k) = k^3 P(k) / (2 pi^2).
	UnitsDeltaSq PSUnits = "delta_sq"
)

// ParsePSUnits maps the unit tags seen in measurement files onto PSUnits.
func ParsePSUnits(s string) (PSUnits, error) {
	switch s {
	case "mK2", "mk2", "mK^2":
		return UnitsMK2, nil
	case "delta_sq", "Delta2", "delta2", "dimensionless":
		return UnitsDeltaSq, nil
	default:
		return "", fmt.Errorf("unknown power spectrum units %q", s)
	}
}

// DeltaSqToPowerFactor returns the per-bin factor converting Delta^2(k) to
// P(k): P = Delta^2 * 2 pi^2 / k^3. Covariance entries scale by the product
// of the factors of the two bins involved.
func DeltaSqToPowerFactor(k float64) float64 {
	return 2 * math.Pi * math.Pi / (k * k * k)
}

// UnitConversion records a unit change applied during observation extraction.
type UnitConversion struct {
	From PSUnits `json:"from"`
	To   PSUnits `json:"to"`
}

func (c UnitConversion) Applied() bool {
	return c.From != "" && c.From != c.To
}
