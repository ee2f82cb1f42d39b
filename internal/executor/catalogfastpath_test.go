package executor

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCatalogFastPathRecognizesRelation(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		name     string
		sql      string
		wantRel  string
		wantMiss bool
	}{
		{"pg_class relname", `SELECT oid, relname FROM pg_catalog.pg_class WHERE relname = 'users'`, "pg_class", false},
		{"pg_attribute attrelid", `SELECT * FROM pg_attribute WHERE attrelid = 123`, "pg_attribute", false},
		{"join falls through", `SELECT * FROM pg_class c JOIN pg_attribute a ON a.attrelid = c.oid`, "", true},
		{"unrelated table", `SELECT * FROM users WHERE id = 1`, "", true},
	}

	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			m := reCatalogTable.FindStringSubmatch(tc.sql)
			isJoin := reNoJoin.MatchString(tc.sql)
			if tc.wantMiss {
				c.Assert(m == nil || isJoin, qt.IsTrue)
				return
			}
			c.Assert(m, qt.Not(qt.IsNil))
			c.Assert(m[1], qt.Equals, tc.wantRel)
		})
	}
}

func TestRelnameAndAttrelidExtraction(t *testing.T) {
	c := qt.New(t)

	rm := reRelnameEq.FindStringSubmatch(`WHERE relname = 'orders'`)
	c.Assert(rm, qt.Not(qt.IsNil))
	c.Assert(rm[1], qt.Equals, "orders")

	am := reAttrelidEq.FindStringSubmatch(`WHERE attrelid = 42`)
	c.Assert(am, qt.Not(qt.IsNil))
	c.Assert(am[1], qt.Equals, "42")
}
