package pgtypes_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
)

func TestEncodeText_Bool(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"true as int64 1", int64(1), "t"},
		{"false as int64 0", int64(0), "f"},
	}
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			got, err := pgtypes.EncodeText(pgtypes.Bool, pgtypes.NoTypmod, tt.raw)
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.Equals, tt.want)
		})
	}
}

func TestNumericFormatScale_Scenario(t *testing.T) {
	c := qt.New(t)

	// spec.md §8 Scenario B: NUMERIC(10,2) values 1 and 1.5 format as "1.00"
	// and "1.50".
	for _, tt := range []struct {
		literal string
		scale   int
		want    string
	}{
		{"1", 2, "1.00"},
		{"1.5", 2, "1.50"},
		{"-3.14159", 2, "-3.14"},
		{"0", 2, "0.00"},
	} {
		c.Run(tt.literal, func(c *qt.C) {
			r, err := pgtypes.ParseDecimal(tt.literal)
			c.Assert(err, qt.IsNil)
			c.Assert(pgtypes.FormatScale(r, tt.scale), qt.Equals, tt.want)
		})
	}
}

func TestFitsPrecisionScale(t *testing.T) {
	c := qt.New(t)

	// spec.md §8: NUMERIC(5,2) accepts 123.45, rejects 1234.5 (precision),
	// rejects 1.234 (scale).
	c.Assert(pgtypes.FitsPrecisionScale("123.45", 5, 2), qt.IsTrue)
	c.Assert(pgtypes.FitsPrecisionScale("1234.5", 5, 2), qt.IsFalse)
	c.Assert(pgtypes.FitsPrecisionScale("1.234", 5, 2), qt.IsFalse)
}

func TestDateRoundTrip(t *testing.T) {
	c := qt.New(t)

	want := "2024-03-15"
	d, err := time.Parse("2006-01-02", want)
	c.Assert(err, qt.IsNil)
	days := pgtypes.DaysFromDate(d)
	got, err := pgtypes.EncodeText(pgtypes.Date, pgtypes.NoTypmod, days)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, want)
}

func TestVarcharTypmodRoundTrip(t *testing.T) {
	c := qt.New(t)

	tm := pgtypes.NewVarcharTypmod(3)
	length, ok := tm.VarcharLength()
	c.Assert(ok, qt.IsTrue)
	c.Assert(length, qt.Equals, 3)
}

func TestNumericTypmodRoundTrip(t *testing.T) {
	c := qt.New(t)

	tm := pgtypes.NewNumericTypmod(10, 2)
	p, s, ok := tm.NumericPrecisionScale()
	c.Assert(ok, qt.IsTrue)
	c.Assert(p, qt.Equals, 10)
	c.Assert(s, qt.Equals, 2)
}
