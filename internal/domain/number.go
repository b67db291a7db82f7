package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Number is a numeric field as it appeared in the file together with its
// parsed value. Raw is kept so formatting defects stay detectable.
type Number struct {
	Raw   string
	Value float64
	Valid bool
}

// ParseNumber parses raw with ParseDecimal. An empty or unparsable value
// yields an invalid Number that still carries the raw text.
func ParseNumber(raw string) Number {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Number{}
	}
	v, err := ParseDecimal(raw)
	if err != nil {
		return Number{Raw: raw}
	}
	return Number{Raw: raw, Value: v, Valid: true}
}

// Int returns the value truncated toward zero.
func (n Number) Int() int64 { return int64(n.Value) }

// Floor returns the value rounded down.
func (n Number) Floor() int64 { return int64(math.Floor(n.Value)) }

// HasComma reports whether the raw text used a comma.
func (n Number) HasComma() bool { return strings.Contains(n.Raw, ",") }

// String returns the raw text.
func (n Number) String() string { return n.Raw }

// ParseDecimal parses a decimal number that may use ',' as the decimal
// separator. When more than one separator is present the last one is the
// decimal point and the others group thousands, so "1.000,50" is 1000.5.
// Spaces are ignored.
func ParseDecimal(raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	if n := strings.Count(s, "."); n > 1 {
		last := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	return v, nil
}

// FormatCost prints whole costs without decimals and fractional costs with
// two.
func FormatCost(cost float64) string {
	if cost == math.Trunc(cost) {
		return strconv.FormatInt(int64(cost), 10)
	}
	return strconv.FormatFloat(cost, 'f', 2, 64)
}

// ParseElectionDate parses a YYYY or DD.MM.YYYY date. A bare year is the
// first of January of that year.
func ParseElectionDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 4 {
		year, err := strconv.Atoi(raw)
		if err == nil {
			return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	t, err := time.Parse("02.01.2006", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t, nil
}
