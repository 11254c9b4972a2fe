package exifmeta

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	// Unresolved means the field was absent or unparseable.
	Unresolved Kind = iota
	// Rational is an "a/b" value.
	Rational
	// Decimal is a plain number.
	Decimal
)

// Value is a numeric metadata field as reported by a source.
type Value struct {
	kind Kind
	raw  string
	num  float64
	den  float64
}

// ParseValue parses "a/b" or a plain number. Anything else is Unresolved.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}
	}

	if a, b, ok := strings.Cut(s, "/"); ok {
		num, err := parseFloat(a)
		if err != nil {
			return Value{}
		}
		den, err := parseFloat(b)
		if err != nil || den == 0 {
			return Value{}
		}
		return Value{kind: Rational, raw: s, num: num, den: den}
	}

	x, err := parseFloat(s)
	if err != nil {
		return Value{}
	}
	return Value{kind: Decimal, raw: s, num: x, den: 1}
}

func parseFloat(s string) (float64, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, strconv.ErrRange
	}
	return x, nil
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// Float returns the numeric value of v.
func (v Value) Float() (float64, bool) {
	if v.kind == Unresolved {
		return 0, false
	}
	return v.num / v.den, true
}

// String returns the text the value was parsed from.
func (v Value) String() string { return v.raw }

// oneDecimal rounds x to one decimal place and drops a trailing ".0".
func oneDecimal(x float64) string {
	s := strconv.FormatFloat(math.Round(x*10)/10, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}

// formatSeconds renders an exposure time: fractions below a second, "Ns" above.
func formatSeconds(t float64) string {
	if t <= 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return ""
	}
	if t < 1 {
		return "1/" + strconv.FormatInt(int64(math.Round(1/t)), 10)
	}
	return oneDecimal(t) + "s"
}
