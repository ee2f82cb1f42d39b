package constraints_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-extras/go-kit/must"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/constraints"
	"github.com/pgsqlite/pgsqlite/internal/engine"
	"github.com/pgsqlite/pgsqlite/internal/migrations"
	"github.com/pgsqlite/pgsqlite/internal/schemacache"
)

// openValidator builds a Validator backed by a real, migrated in-memory
// engine and a cache preloaded with one VARCHAR(5) and one NUMERIC(5,2)
// constraint, the way a CREATE TABLE would have recorded them.
func openValidator(t *testing.T) *constraints.Validator {
	t.Helper()
	db := must.Must(engine.Open(engine.Options{Path: ":memory:"}))
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	cat := catalog.New(db)
	noUserTables := func(context.Context) (bool, error) { return false, nil }
	if err := migrations.NewRunner(db).Open(ctx, false, false, noUserTables); err != nil {
		t.Fatal(err)
	}

	if err := cat.PutStringConstraint(ctx, catalog.StringConstraint{
		Table: "widgets", Column: "name", MaxLength: 5,
	}); err != nil {
		t.Fatal(err)
	}
	if err := cat.PutNumericConstraint(ctx, catalog.NumericConstraint{
		Table: "widgets", Column: "price", Precision: 5, Scale: 2,
	}); err != nil {
		t.Fatal(err)
	}

	cache := schemacache.New(cat)
	if err := cache.Reload(ctx); err != nil {
		t.Fatal(err)
	}

	return constraints.New(cache)
}

func TestValidateColumnAcceptsValueWithinLength(t *testing.T) {
	c := qt.New(t)
	v := openValidator(t)
	c.Assert(v.ValidateColumn("widgets", "name", "abc"), qt.IsNil)
}

func TestValidateColumnRejectsValueTooLong(t *testing.T) {
	c := qt.New(t)
	v := openValidator(t)
	err := v.ValidateColumn("widgets", "name", "abcdef")
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestValidateColumnCountsComposedAndPrecomposedFormsTheSame(t *testing.T) {
	c := qt.New(t)
	v := openValidator(t)

	// "café" with a combining acute accent (5 runes) must count the same as
	// its single precomposed form (4 runes): both display as 4 characters.
	composed := "café"
	precomposed := "café"
	c.Assert(len([]rune(composed)), qt.Equals, 5)
	c.Assert(len([]rune(precomposed)), qt.Equals, 4)

	// With one more letter the combining form is 6 runes against the
	// VARCHAR(5) limit, so it is accepted only if counted after
	// normalization, as the 5-rune precomposed form is.
	c.Assert(v.ValidateColumn("widgets", "name", precomposed+"s"), qt.IsNil)
	c.Assert(v.ValidateColumn("widgets", "name", composed+"s"), qt.IsNil)
}

func TestValidateColumnRejectsOutOfRangeNumeric(t *testing.T) {
	c := qt.New(t)
	v := openValidator(t)
	err := v.ValidateColumn("widgets", "price", "12345.67")
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestValidateColumnSkipsNilValue(t *testing.T) {
	c := qt.New(t)
	v := openValidator(t)
	c.Assert(v.ValidateColumn("widgets", "name", nil), qt.IsNil)
}

func TestValidateRowReportsFirstViolation(t *testing.T) {
	c := qt.New(t)
	v := openValidator(t)
	err := v.ValidateRow("widgets", map[string]any{"name": "way too long for five"})
	c.Assert(err, qt.ErrorMatches, "constraints: widgets.name:.*")
}
