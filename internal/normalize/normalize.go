// Package normalize canonicalizes codes, barcodes, labels and locale-formatted
// numbers read from untrusted spreadsheet cells.
//
// Every join between a product file and a stock file goes through these
// functions, so both sides of a join must be normalized with the same routine.
// None of the functions panic or return errors on malformed input: a bad cell
// yields an empty code or a zero quantity and the row is dealt with by the
// caller.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// maxExponent bounds scientific expansion. Barcodes have at most 14 digits.
const maxExponent = 30

var (
	// scientificRegex matches spreadsheet float artifacts such as "7.891234E+12".
	scientificRegex = regexp.MustCompile(`^[+-]?\d+(\.\d+)?[eE]([+-]?\d+)$`)

	// commaDecimalRegex matches "1.234,56" and "100,50": dot grouping, comma decimal.
	commaDecimalRegex = regexp.MustCompile(`^[+-]?\d+(\.\d+)*,\d+$`)

	// commaGroupedRegex matches "1,234.56" and "12,000": comma grouping, dot decimal.
	commaGroupedRegex = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

	// labelPrefixRegex matches categorical prefixes like "008 - " or "12. ".
	labelPrefixRegex = regexp.MustCompile(`^[0-9\s\-.]+`)
)

// Code canonicalizes a product code: trims, drops every non-digit character
// and strips leading zeros. An empty result means "no code".
//
// Code is idempotent: Code(Code(x)) == Code(x).
func Code(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return strings.TrimLeft(b.String(), "0")
}

// Scientific re-expands scientific-notation artifacts to their full digit
// string before applying Code. Spreadsheet tools turn long barcodes into
// floats ("7.891234E+12"); the expansion is exact and never grouped.
//
// Exponents beyond maxExponent cannot come from a barcode and yield "".
func Scientific(raw string) string {
	s := strings.TrimSpace(raw)
	m := scientificRegex.FindStringSubmatch(s)
	if m == nil {
		return Code(s)
	}

	exp, err := strconv.Atoi(m[2])
	if err != nil || exp > maxExponent || exp < -maxExponent {
		return ""
	}
	if d, err := decimal.NewFromString(s); err == nil {
		s = d.String()
	}
	return Code(s)
}

// LocaleNumber parses a quantity cell. It returns 0 for anything it cannot
// parse, since malformed cells must not abort a multi-thousand-row ingest.
func LocaleNumber(raw string) float64 {
	v, ok := ParseLocaleNumber(raw)
	if !ok {
		return 0
	}
	return v
}

// ParseLocaleNumber is the strict form of LocaleNumber. It accepts plain
// machine numbers, comma-decimal numbers with optional dot grouping
// ("1.234,56") and comma-grouped numbers with a dot decimal ("1,234.56").
// The boolean is false when the input is empty, malformed or not finite.
func ParseLocaleNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(Cell(raw))
	if s == "" {
		return 0, false
	}

	switch {
	case commaDecimalRegex.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case commaGroupedRegex.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Label strips a leading run of digits, spaces, dashes and dots and
// upper-cases the rest, for description-based lookups.
func Label(raw string) string {
	s := labelPrefixRegex.ReplaceAllString(strings.TrimSpace(raw), "")
	return strings.ToUpper(strings.TrimSpace(s))
}

// Cell removes common spreadsheet artifacts from a cell value:
//   - surrounding whitespace
//   - Excel formula prefix (="...")
//   - surrounding quotes
func Cell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// Round2 rounds v half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Equal2 reports whether a and b are equal once rounded to 2 decimal places.
func Equal2(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}

// Add2 sums a and b exactly and rounds the result to 2 decimal places.
func Add2(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}
