package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// amountRe finds the first numeric amount in a currency string: digits with
// optional thousands/decimal separators, or a bare ".99".
var amountRe = regexp.MustCompile(`\.?\d(?:[\d,.]*\d)?`)

// NormalizePrice returns the numeric magnitude of a raw price. Numbers are
// returned as float64; strings may carry a currency symbol or code, thousands
// separators and a decimal point. ok is false when no amount can be found.
func NormalizePrice(raw any) (float64, bool) {
	v, err := ParsePrice(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParsePrice is NormalizePrice with the reason for a failure.
func ParsePrice(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, priceErr("", "empty")
	case float64:
		return finite(v, strconv.FormatFloat(v, 'g', -1, 64))
	case float32:
		return finite(float64(v), strconv.FormatFloat(float64(v), 'g', -1, 32))
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return parseAmountString(v.String())
	case string:
		return parseAmountString(v)
	case *float64:
		if v == nil {
			return 0, priceErr("", "empty")
		}
		return finite(*v, strconv.FormatFloat(*v, 'g', -1, 64))
	default:
		return 0, priceErr("", "unsupported type")
	}
}

func parseAmountString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, priceErr(s, "empty")
	}

	m := amountRe.FindString(s)
	if m == "" {
		return 0, priceErr(s, "no numeric amount")
	}

	v, err := strconv.ParseFloat(canonicalAmount(m), 64)
	if err != nil {
		return 0, priceErr(s, err.Error())
	}
	return finite(v, s)
}

// canonicalAmount rewrites an amount with arbitrary separators into a form
// strconv accepts. When both separators occur the later one is the decimal
// mark. A lone comma followed by exactly three digits is a thousands
// separator; otherwise it is a decimal comma. Repeated dots are thousands
// separators.
func canonicalAmount(m string) string {
	lastDot := strings.LastIndex(m, ".")
	lastComma := strings.LastIndex(m, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			m = strings.ReplaceAll(m, ".", "")
			return strings.Replace(m, ",", ".", 1)
		}
		return strings.ReplaceAll(m, ",", "")

	case lastComma >= 0:
		if strings.Count(m, ",") == 1 && len(m)-lastComma-1 != 3 {
			return strings.Replace(m, ",", ".", 1)
		}
		return strings.ReplaceAll(m, ",", "")

	case strings.Count(m, ".") > 1:
		return strings.ReplaceAll(m, ".", "")
	}
	return m
}

func finite(v float64, input string) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, priceErr(input, "not a finite number")
	}
	return v, nil
}

func priceErr(input, reason string) error {
	return &model.ParseError{Field: "price", Input: input, Reason: reason}
}
