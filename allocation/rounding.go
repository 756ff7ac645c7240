package allocation

import (
	"fmt"
	"math"
	"strings"
)

// RoundingMode controls how fractional quantities become whole units.
type RoundingMode string

const (
	RoundUp      RoundingMode = "up"
	RoundDown    RoundingMode = "down"
	RoundNearest RoundingMode = "nearest"
)

// ParseRoundingMode accepts up/down/nearest in any case. Empty means nearest.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch m := RoundingMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return RoundNearest, nil
	case RoundUp, RoundDown, RoundNearest:
		return m, nil
	default:
		return "", fmt.Errorf("%w: rounding mode %q", ErrInvalidParams, s)
	}
}

// Valid reports whether m is a known mode.
func (m RoundingMode) Valid() bool {
	return m == RoundUp || m == RoundDown || m == RoundNearest
}

// Apply rounds x: up is ceil, down is floor, nearest rounds half away from zero.
func (m RoundingMode) Apply(x float64) int {
	switch m {
	case RoundUp:
		return int(math.Ceil(x))
	case RoundDown:
		return int(math.Floor(x))
	default:
		return int(math.Round(x))
	}
}
