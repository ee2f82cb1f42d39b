package fingerprint_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/pgsqlite/pgsqlite/internal/fingerprint"
)

func TestOf_WhitespaceAndCaseFold(t *testing.T) {
	c := qt.New(t)

	a := fingerprint.Of("select  id, name\nfrom   users where id = $1")
	b := fingerprint.Of("SELECT id, name FROM users WHERE id = $1")
	c.Assert(a, qt.Equals, b)
}

func TestOf_PreservesStringLiteralCase(t *testing.T) {
	c := qt.New(t)

	got := fingerprint.Of("select * from t where name = 'Alice'")
	c.Assert(got, qt.Equals, "SELECT * FROM T WHERE NAME = 'Alice'")
}

func TestOf_DistinguishesDifferentPlaceholders(t *testing.T) {
	c := qt.New(t)

	a := fingerprint.Of("select * from t where id = $1")
	b := fingerprint.Of("select * from t where id = $2")
	c.Assert(a, qt.Not(qt.Equals), b)
}
