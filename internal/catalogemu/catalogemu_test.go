package catalogemu

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestClassForTableDeterministic(t *testing.T) {
	c := qt.New(t)

	cat := &Catalog{}
	a := cat.ClassForTable("users")
	b := cat.ClassForTable("users")
	c.Assert(a.OID, qt.Equals, b.OID)
	c.Assert(a.OID, qt.Not(qt.Equals), int64(0))

	other := cat.ClassForTable("orders")
	c.Assert(a.OID, qt.Not(qt.Equals), other.OID)
	c.Assert(a.RelKind, qt.Equals, "r")
	c.Assert(a.RelNamespace, qt.Equals, publicNamespaceOID)
}
