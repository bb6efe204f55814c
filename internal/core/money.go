// Package core provides money parsing and handling utilities.
//
// Monetary amounts are held as integer cents to keep arithmetic exact.
// Whenever a division cannot be exact (averages, percentages) the result
// is rounded half-up; the same rule the decimal parser applies to a
// third fractional digit. All wire output uses fixed-point strings with
// two decimal places, never floats.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in cents.
type Money struct {
	Cents int64
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// String formats the amount as a fixed-point decimal, e.g. "1234.56".
func (m Money) String() string {
	return FormatCents(m.Cents)
}

// MarshalJSON renders money as a quoted decimal string so no float ever
// crosses the network boundary.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// FormatCents renders cents as a two-decimal string with sign.
func FormatCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + pad2(cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// ParseDecimalToCents converts a decimal string to cents with half-up
// rounding on the third fractional digit. Only strictly positive
// amounts are accepted.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1234, nil (rounds down)
//	ParseDecimalToCents("12.346") -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// DivideCents divides a cent amount by a positive count, rounding
// half-up (half away from zero for negative amounts).
func DivideCents(cents, n int64) int64 {
	if n <= 0 {
		return 0
	}
	if cents >= 0 {
		return (cents + n/2) / n
	}
	return -((-cents + n/2) / n)
}

// Percent computes 100*part/whole rounded half-up to two decimal
// places, as a float carrying at most two decimals. A zero whole yields
// zero, never an error.
func Percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	// Basis points keep the rounding in integer arithmetic.
	bp := (part*10000 + whole/2) / whole
	return float64(bp) / 100
}
