package executor

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestFirstKeyword(t *testing.T) {
	c := qt.New(t)

	c.Assert(firstKeyword("SELECT 1"), qt.Equals, "select")
	c.Assert(firstKeyword("  insert into t values (1)"), qt.Equals, "insert")
	c.Assert(firstKeyword("\nUPDATE t SET a=1"), qt.Equals, "update")
	c.Assert(firstKeyword("DELETE FROM t"), qt.Equals, "delete")
	c.Assert(firstKeyword("CREATE TABLE t (id INTEGER)"), qt.Equals, "create")
}

func TestIsWrite(t *testing.T) {
	c := qt.New(t)

	c.Assert(isWrite("INSERT INTO t VALUES (1)"), qt.IsTrue)
	c.Assert(isWrite("UPDATE t SET a=1"), qt.IsTrue)
	c.Assert(isWrite("DELETE FROM t"), qt.IsTrue)
	c.Assert(isWrite("SELECT 1"), qt.IsFalse)
}

func TestWriteTag(t *testing.T) {
	c := qt.New(t)

	c.Assert(writeTag("insert", 1), qt.Equals, "INSERT 0 1")
	c.Assert(writeTag("update", 3), qt.Equals, "UPDATE 3")
	c.Assert(writeTag("delete", 0), qt.Equals, "DELETE 0")
}

func TestDDLTag(t *testing.T) {
	c := qt.New(t)

	c.Assert(ddlTag("CREATE TABLE t (id INTEGER)"), qt.Equals, "CREATE TABLE")
	c.Assert(ddlTag("DROP TABLE t"), qt.Equals, "DROP TABLE")
	c.Assert(ddlTag("ALTER TABLE t ADD COLUMN x INTEGER"), qt.Equals, "ALTER TABLE")
}
