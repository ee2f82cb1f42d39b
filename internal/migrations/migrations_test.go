package migrations_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-extras/go-kit/must"

	"github.com/pgsqlite/pgsqlite/internal/engine"
	"github.com/pgsqlite/pgsqlite/internal/migrations"
)

func openMemDB(t *testing.T) *engine.DB {
	t.Helper()
	db := must.Must(engine.Open(engine.Options{Path: ":memory:"}))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunnerOpenFreshDatabase(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	db := openMemDB(t)

	runner := migrations.NewRunner(db)
	noUserTables := func(context.Context) (bool, error) { return false, nil }

	err := runner.Open(ctx, false, false, noUserTables)
	c.Assert(err, qt.IsNil)

	version, err := runner.CurrentVersion(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(version, qt.Equals, 8)
}

func TestRunnerOpenIsIdempotent(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	db := openMemDB(t)

	runner := migrations.NewRunner(db)
	noUserTables := func(context.Context) (bool, error) { return false, nil }

	c.Assert(runner.Open(ctx, false, false, noUserTables), qt.IsNil)
	c.Assert(runner.Open(ctx, false, false, noUserTables), qt.IsNil)
}

func TestRunnerOpenRequiresMigrateFlagOnExistingDatabase(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	db := openMemDB(t)

	// Simulate a database with user tables and an older recorded version by
	// applying nothing yet and reporting a user table present: a pre-v1
	// database is treated as "not new" once it already holds user data.
	hasUserTables := func(context.Context) (bool, error) { return true, nil }

	runner := migrations.NewRunner(db)
	err := runner.Open(ctx, false, false, hasUserTables)
	c.Assert(err, qt.ErrorMatches, ".*require --migrate.*")

	err = runner.Open(ctx, true, false, hasUserTables)
	c.Assert(err, qt.IsNil)
}
