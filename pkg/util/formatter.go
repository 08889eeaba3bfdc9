package util

import (
	"fmt"
	"math"
	"strconv"
)

const (
	siDigits = 5
	minOrder = -15
	maxOrder = 12
)

// rounding pushes values that print as the next power of ten (999.996 at
// five digits) into the next prefix.
var siRound = 1 + 5*math.Pow(10, -siDigits)

var siPrefixes = map[int]string{
	-15: "f",
	-12: "p",
	-9:  "n",
	-6:  "u",
	-3:  "m",
	0:   "",
	3:   "k",
	6:   "M",
	9:   "G",
	12:  "T",
}

// FormatSI writes v with five significant digits and an SI prefix from f to
// T, e.g. 4700 -> "4.7k", 2.2e-8 -> "22n". NaN formats as "0".
func FormatSI(v float64) string {
	if math.IsNaN(v) {
		v = 0
	}
	order := math.Log10(math.Abs(v) * siRound)
	if order < -20 || math.IsInf(order, 0) {
		order = 0
	}
	prefix := int(math.Floor(order/3)) * 3
	prefix = max(min(prefix, maxOrder), minOrder)

	return strconv.FormatFloat(v/math.Pow(10, float64(prefix)), 'g', siDigits, 64) + siPrefixes[prefix]
}

func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	switch {
	case absValue >= 1e3:
		return fmt.Sprintf("%.3f k%s", value/1e3, unit)
	case absValue >= 1:
		return fmt.Sprintf("%.3f %s", value, unit)
	case absValue >= 1e-3:
		return fmt.Sprintf("%.3f m%s", value*1e3, unit)
	case absValue >= 1e-6:
		return fmt.Sprintf("%.3f u%s", value*1e6, unit)
	case absValue >= 1e-9:
		return fmt.Sprintf("%.3f n%s", value*1e9, unit)
	case absValue >= 1e-12:
		return fmt.Sprintf("%.3f p%s", value*1e12, unit)
	default:
		return fmt.Sprintf("%.3e %s", value, unit)
	}
}
