package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Step is one named transformation of the product-name pipeline.
type Step struct {
	Name string
	Fn   func(string) string
}

// ProductNameSteps is the ordered pipeline applied by NormalizeProductName.
// Title-casing changes unit casing ("10 lb" becomes "10 Lb"), so the unit
// passes run a second time after it.
var ProductNameSteps = []Step{
	{"dimensions", NormalizeDimensions},
	{"units", NormalizeUnits},
	{"decimals", NormalizeDecimals},
	{"unit_periods", StripUnitPeriods},
	{"unit_casing", NormalizeUnitCasing},
	{"inch_spacing", EnsureInchSpacing},
	{"spacing", NormalizeSpacing},
	{"title_case", TitleCasePreserveBrand},
	{"units", NormalizeUnits},
	{"unit_casing", NormalizeUnitCasing},
	{"unit_periods", StripUnitPeriods},
	{"inch_spacing", EnsureInchSpacing},
	{"spacing", NormalizeSpacing},
}

// NormalizeProductName produces the display form of a product title.
func NormalizeProductName(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	for _, step := range ProductNameSteps {
		s = step.Fn(s)
	}
	return s
}

var (
	// A dimension separator is an x between two digits; the leading digit
	// is checked by index so "2x3x4" needs only one pass.
	dimensionRe = regexp.MustCompile(`\s*[xX]\s*\d`)

	// Unit tokens only count when they follow a digit, so words like "in"
	// or "USA" in running text are never touched.
	unitSynonymRe = regexp.MustCompile(`(?i)(\d)\s*(fluid\s+ounces?|fl\.?\s*oz|pounds|pound|lbs|lb|ounces|ounce|oz|count|ct|feet|foot|ft|inches|inch|in|liters|liter|litres|litre|l)\.?([^A-Za-z0-9]|$)`)
	inchQuoteRe   = regexp.MustCompile(`(\d)\s*"\s*`)

	decimalUnitRe = regexp.MustCompile(`(?i)(\d+\.\d+)(\s?)(fl oz|lb|oz|ct|in|ft|l)([^A-Za-z0-9]|$)`)
	unitPeriodRe  = regexp.MustCompile(`(?i)(\d\s?)(fl oz|lb|oz|ct|in|ft|l)\.`)
	unitCaseRe    = regexp.MustCompile(`(?i)(\d\s?)(fl oz|lb|oz|ct|in|ft|l)([^A-Za-z0-9]|$)`)
	inchPairRe    = regexp.MustCompile(`(?i)(\d+)\s*in\s*x\s*(\d+)\s*in([^A-Za-z0-9]|$)`)
	ampersandRe   = regexp.MustCompile(`\s*&\s*`)
)

// canonicalUnit maps a recognized unit spelling to its canonical token.
func canonicalUnit(u string) string {
	u = strings.ToLower(u)
	switch {
	case strings.HasPrefix(u, "fl"):
		return "fl oz"
	case strings.HasPrefix(u, "lb"), strings.HasPrefix(u, "pound"):
		return "lb"
	case strings.HasPrefix(u, "oz"), strings.HasPrefix(u, "ounce"):
		return "oz"
	case u == "ct", u == "count":
		return "ct"
	case u == "ft", u == "feet", u == "foot":
		return "ft"
	case strings.HasPrefix(u, "in"):
		return "in"
	case strings.HasPrefix(u, "l"):
		return "L"
	}
	return u
}

// NormalizeDimensions writes "2x3" and "10 x 8" as "2 X 3" and "10 X 8".
func NormalizeDimensions(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range dimensionRe.FindAllStringIndex(s, -1) {
		if loc[0] == 0 || !isDigit(s[loc[0]-1]) {
			continue
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(" X ")
		b.WriteByte(s[loc[1]-1])
		last = loc[1]
	}
	b.WriteString(s[last:])
	return strings.Join(strings.Fields(b.String()), " ")
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

// NormalizeUnits rewrites unit synonyms after a quantity to canonical
// tokens with a single separating space: "10lbs" → "10 lb", "5 oz." → "5 oz",
// "16 FL. OZ" → "16 fl oz", `12"` → "12 in".
func NormalizeUnits(s string) string {
	s = inchQuoteRe.ReplaceAllString(s, "$1 in ")
	s = unitSynonymRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := unitSynonymRe.FindStringSubmatch(m)
		return sub[1] + " " + canonicalUnit(sub[2]) + sub[3]
	})
	return strings.TrimRight(s, " ")
}

// NormalizeDecimals rounds quantities that precede a unit to two decimals and
// drops trailing zeros: "10.00 lb" → "10 lb", "2.50 oz" → "2.5 oz".
func NormalizeDecimals(s string) string {
	return decimalUnitRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := decimalUnitRe.FindStringSubmatch(m)
		v, err := strconv.ParseFloat(sub[1], 64)
		if err != nil {
			return m
		}
		return trimDecimal(v) + sub[2] + sub[3] + sub[4]
	})
}

func trimDecimal(v float64) string {
	out := strconv.FormatFloat(v, 'f', 2, 64)
	out = strings.TrimRight(out, "0")
	return strings.TrimSuffix(out, ".")
}

// StripUnitPeriods removes the period after an abbreviated unit: "5 oz." →
// "5 oz".
func StripUnitPeriods(s string) string {
	return unitPeriodRe.ReplaceAllString(s, "$1$2")
}

// NormalizeUnitCasing lowercases unit tokens after a quantity, except liters
// which are always "L".
func NormalizeUnitCasing(s string) string {
	return unitCaseRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := unitCaseRe.FindStringSubmatch(m)
		return sub[1] + canonicalUnit(sub[2]) + sub[3]
	})
}

// EnsureInchSpacing formats inch dimension pairs as "12 in X 8 in".
func EnsureInchSpacing(s string) string {
	return inchPairRe.ReplaceAllString(s, "$1 in X $2 in$3")
}

// NormalizeSpacing collapses whitespace and puts exactly one space on either
// side of "&" and of a dimension "X".
func NormalizeSpacing(s string) string {
	return NormalizeDimensions(ampersandRe.ReplaceAllString(s, " & "))
}

var lowerUnits = map[string]bool{"fl": true, "lb": true, "oz": true, "ct": true, "in": true, "ft": true}

// TitleCasePreserveBrand capitalizes each space-separated word. Words whose
// letters are all uppercase and number more than one ("ACANA", "USA") are
// kept as written, unless the whole name is uppercase, in which case the
// capitals carry no information and every word is capitalized.
func TitleCasePreserveBrand(s string) string {
	words := strings.Split(s, " ")
	shouting := isShouting(words)

	for i, w := range words {
		if !shouting && isUpperAcronym(w) {
			continue
		}
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func isShouting(words []string) bool {
	caps := 0
	for _, w := range words {
		letters := asciiLetters(w)
		if len(letters) < 2 || lowerUnits[letters] {
			continue
		}
		if letters != strings.ToUpper(letters) {
			return false
		}
		caps++
	}
	return caps > 1
}

func isUpperAcronym(w string) bool {
	letters := asciiLetters(w)
	return len(letters) > 1 && letters == strings.ToUpper(letters)
}

func asciiLetters(w string) string {
	var b strings.Builder
	for i := 0; i < len(w); i++ {
		c := w[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(w string) string {
	if w == "" {
		return w
	}
	runes := []rune(strings.ToLower(w))
	runes[0] = unicode.ToTitle(runes[0])
	return string(runes)
}
