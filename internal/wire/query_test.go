package wire

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestSplitStatements(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"single", "SELECT 1", []string{"SELECT 1"}},
		{"two", "SELECT 1; SELECT 2", []string{"SELECT 1", "SELECT 2"}},
		{"trailing semicolon", "SELECT 1;", []string{"SELECT 1"}},
		{"semicolon in string", "SELECT ';'; SELECT 2", []string{"SELECT ';'", "SELECT 2"}},
		{"empty", "", nil},
		{"only whitespace", "   ", nil},
	}
	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			c.Assert(splitStatements(tc.in), qt.DeepEquals, tc.want)
		})
	}
}

func TestFirstWordUpper(t *testing.T) {
	c := qt.New(t)

	c.Assert(firstWordUpper("begin"), qt.Equals, "BEGIN")
	c.Assert(firstWordUpper("  Commit"), qt.Equals, "COMMIT")
	c.Assert(firstWordUpper("ROLLBACK;"), qt.Equals, "ROLLBACK")
	c.Assert(firstWordUpper("select 1"), qt.Equals, "SELECT")
}

func TestLooksLikeSelect(t *testing.T) {
	c := qt.New(t)

	c.Assert(looksLikeSelect("SELECT 1"), qt.IsTrue)
	c.Assert(looksLikeSelect("  select * from t"), qt.IsTrue)
	c.Assert(looksLikeSelect("INSERT INTO t VALUES (1)"), qt.IsFalse)
	c.Assert(looksLikeSelect(""), qt.IsFalse)
}

func TestFormatFor(t *testing.T) {
	c := qt.New(t)

	c.Assert(formatFor(0, nil), qt.Equals, int16(0))
	c.Assert(formatFor(2, []int16{1}), qt.Equals, int16(1))
	c.Assert(formatFor(1, []int16{0, 1, 0}), qt.Equals, int16(1))
	c.Assert(formatFor(5, []int16{0, 1, 0}), qt.Equals, int16(0))
}
