package passes

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestStripComments(t *testing.T) {
	c := qt.New(t)

	out, err := StripComments("SELECT 1 -- trailing comment\nFROM t")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "SELECT 1 \nFROM t")

	out, err = StripComments("SELECT /* block */ 1 FROM t")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "SELECT  1 FROM t")

	out, err = StripComments("SELECT '-- not a comment' FROM t")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "SELECT '-- not a comment' FROM t")
}

func TestRegexOperators(t *testing.T) {
	c := qt.New(t)

	c.Assert(RegexOperators("SELECT * FROM t WHERE name ~ 'foo.*'"), qt.Equals,
		"SELECT * FROM t WHERE REGEXP('foo.*',name)")
	c.Assert(RegexOperators("SELECT * FROM t WHERE name !~* 'foo.*'"), qt.Equals,
		"SELECT * FROM t WHERE (NOT REGEXPI('foo.*',name))")
}

func TestSplitReturning(t *testing.T) {
	c := qt.New(t)

	stripped, fu, ok := SplitReturning(`INSERT INTO users (id, name) VALUES (1, 'a') RETURNING id, name`)
	c.Assert(ok, qt.IsTrue)
	c.Assert(stripped, qt.Equals, `INSERT INTO users (id, name) VALUES (1, 'a')`)
	c.Assert(fu.Kind, qt.Equals, "insert")
	c.Assert(fu.Table, qt.Equals, "users")
	c.Assert(fu.Columns, qt.Equals, "id, name")

	stripped, fu, ok = SplitReturning(`UPDATE users SET name = 'b' WHERE id = 1 RETURNING *`)
	c.Assert(ok, qt.IsTrue)
	c.Assert(stripped, qt.Equals, `UPDATE users SET name = 'b' WHERE id = 1`)
	c.Assert(fu.Kind, qt.Equals, "update")
	c.Assert(fu.Table, qt.Equals, "users")
	c.Assert(fu.PredicateSQL, qt.Equals, "id = 1")

	_, _, ok = SplitReturning(`SELECT * FROM users`)
	c.Assert(ok, qt.IsFalse)
}

func TestBuildFollowUpSelect(t *testing.T) {
	c := qt.New(t)

	sql := BuildFollowUpSelect(FollowUp{Kind: "insert", Columns: "id, name", Table: "users"}, 42)
	c.Assert(sql, qt.Equals, `SELECT id, name FROM "users" WHERE rowid = 42`)

	sql = BuildFollowUpSelect(FollowUp{Kind: "delete", Columns: "*", Table: "users", PredicateSQL: "id = 1"}, 0)
	c.Assert(sql, qt.Equals, `SELECT * FROM "users" WHERE id = 1`)
}
