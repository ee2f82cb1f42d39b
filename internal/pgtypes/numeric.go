package pgtypes

import (
	"fmt"
	"math/big"
	"strings"
)

// Numeric values are stored as canonical decimal text (spec.md §4.5: "TEXT or
// INTEGER-encoded"; this system always uses TEXT so that precision is never
// lost to float64 rounding). All arithmetic goes through math/big.Rat via the
// decimal_* SQLite functions registered by package engine; this file holds
// the shared parse/format logic those functions and the wire codec both use.

// ParseDecimal parses a PostgreSQL NUMERIC literal into an exact rational.
func ParseDecimal(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("pgtypes: empty numeric literal")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("pgtypes: invalid numeric literal %q", s)
	}
	return r, nil
}

// FormatScale renders r with exactly `scale` digits after the decimal point,
// the way spec.md §4.6 requires ("NUMERIC(p,s): reformat to exactly s
// fractional digits") and §8 Scenario B ("1.00", "1.50").
func FormatScale(r *big.Rat, scale int) string {
	neg := r.Sign() < 0
	abs := new(big.Rat).Abs(r)

	scaleFactor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
	scaled := new(big.Rat).Mul(abs, new(big.Rat).SetInt(scaleFactor))

	// Round half away from zero, matching PostgreSQL's NUMERIC rounding.
	num := scaled.Num()
	den := scaled.Denom()
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	doubled := new(big.Int).Lsh(rem, 1)
	if doubled.CmpAbs(den) >= 0 {
		q.Add(q, big.NewInt(1))
	}

	digits := q.String()
	if scale > 0 {
		for len(digits) <= scale {
			digits = "0" + digits
		}
		intPart := digits[:len(digits)-scale]
		fracPart := digits[len(digits)-scale:]
		digits = intPart + "." + fracPart
	}
	if neg && q.Sign() != 0 {
		digits = "-" + digits
	}
	return digits
}

// FitsPrecisionScale reports whether r can be represented exactly in
// NUMERIC(precision,scale) without losing significant digits, i.e. whether
// storing it would silently truncate (spec.md §8: "NUMERIC(5,2) ... rejects
// 1.234 (scale)"). It does NOT reject values that merely need rounding at a
// scale finer than declared if the source had no further non-zero digits;
// it rejects when the literal's own scale exceeds the declared scale, and
// when the total number of digits needed exceeds precision.
func FitsPrecisionScale(literal string, precision, scale int) bool {
	s := strings.TrimSpace(literal)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if !hasFrac {
		fracPart = ""
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if len(fracPart) > scale {
		return false
	}
	intPart = strings.TrimLeft(intPart, "0")
	totalDigits := len(intPart) + scale
	if totalDigits > precision {
		return false
	}
	_ = neg
	return true
}
