package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// Conversion factors into the two canonical units.
const (
	kgToLb = 2.20462
	gToOz  = 0.035274
)

// weightRe matches a quantity followed by a mass unit. The quantity may carry
// thousands or decimal separators and must start at a number boundary. The
// trailing group keeps "g" from matching the start of "gallon" and similar
// words.
var weightRe = regexp.MustCompile(`(?i)(?:^|[^\d.,])(\d(?:[\d,.]*\d)?|\.\d+)\s*(pounds?|lbs?|ounces?|oz|kilograms?|kgs?|grams?|g)\.?(?:[^A-Za-z]|$)`)

// NormalizeWeight extracts the first mass quantity in s and returns it as
// "<value> lb" or "<value> oz". Kilograms convert to pounds and grams to
// ounces, rounded to two decimals. ok is false when no unit is recognized.
func NormalizeWeight(s string) (string, bool) {
	w, err := ParseWeight(s)
	if err != nil {
		return "", false
	}
	return w, true
}

// ParseWeight is NormalizeWeight with the reason for a failure.
func ParseWeight(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", weightErr(s, "empty")
	}

	m := weightRe.FindStringSubmatch(s)
	if m == nil {
		return "", weightErr(s, "no recognized mass unit")
	}

	v, err := strconv.ParseFloat(canonicalAmount(m[1]), 64)
	if err != nil {
		return "", weightErr(s, err.Error())
	}

	unit := strings.ToLower(m[2])
	switch {
	case strings.HasPrefix(unit, "lb"), strings.HasPrefix(unit, "pound"):
		return formatQuantity(v) + " lb", nil
	case strings.HasPrefix(unit, "oz"), strings.HasPrefix(unit, "ounce"):
		return formatQuantity(v) + " oz", nil
	case strings.HasPrefix(unit, "k"):
		return formatQuantity(round2(v*kgToLb)) + " lb", nil
	default:
		return formatQuantity(round2(v*gToOz)) + " oz", nil
	}
}

// TrimBareNumber reformats a weight that is only a number, dropping a
// trailing ".0" ("10.0" → "10", "10.50" → "10.5"). Anything else is returned
// unchanged.
func TrimBareNumber(s string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return s
	}
	return strings.TrimSuffix(formatQuantity(v), ".0")
}

// formatQuantity prints v with the shortest exact representation but always
// with a fractional part, so 16 becomes "16.0" and 2.5 stays "2.5".
func formatQuantity(v float64) string {
	out := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func weightErr(input, reason string) error {
	return &model.ParseError{Field: "weight", Input: input, Reason: reason}
}
