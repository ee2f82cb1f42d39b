// Package migrations is the Migration Runner (spec.md §4.2, C3): a
// versioned, checksummed, gap-free sequence of schema transformations
// against the `__pgsqlite_*` catalog and the user schema it describes.
//
// The control flow here — Initialize the bookkeeping table, read the
// current version, walk the registry applying anything newer inside one
// transaction per migration, record history — is lifted directly from the
// teacher's migration/migrator.Migrator.MigrateUp, generalized from ptah's
// arbitrary up/down SQL pairs to pgsqlite's fixed, numbered v1-v8 sequence
// and its checksum-verification requirement (spec.md §4.2: "MUST fail" if a
// database's recorded max version exceeds what this binary knows).
package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pgsqlite/pgsqlite/internal/engine"
)

// Migration is one versioned step in the registry. Up runs inside the
// transaction the Runner opens for this migration alone (spec.md §4.2:
// "apply pending under a single transaction per migration").
type Migration struct {
	Version  int
	Name     string
	Up       func(ctx context.Context, tx *sql.Tx) error
	Checksum string // sha256 of the migration's canonical SQL/description, hex-encoded
}

// Runner applies the fixed registry of migrations against a *engine.DB.
type Runner struct {
	db         *engine.DB
	registry   []Migration
	logger     *slog.Logger
	bootstrapped bool
}

// NewRunner builds a Runner over the standard v1-v8 registry (spec.md §4.2:
// "v1 base metadata, v2 enums, v3 datetime metadata columns, v4 convert all
// datetime columns to INTEGER storage, v5 catalog views/tables with
// synthetic OID hashing, v6 VARCHAR/CHAR constraints, v7 NUMERIC
// constraints, v8 array metadata + typarray in pg_type").
func NewRunner(db *engine.DB) *Runner {
	return &Runner{db: db, registry: standardRegistry(), logger: slog.Default()}
}

// WithLogger returns a copy of r using l for log output, following the
// teacher's WithLogger fluent-setter convention.
func (r *Runner) WithLogger(l *slog.Logger) *Runner {
	tmp := *r
	tmp.logger = l
	return &tmp
}

const bookkeepingDDL = `
CREATE TABLE IF NOT EXISTS __pgsqlite_migrations (
	version     INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	applied_at  TEXT NOT NULL DEFAULT (datetime('now'))
)`

// Initialize creates the bookkeeping table if it doesn't exist.
func (r *Runner) Initialize(ctx context.Context) error {
	if r.bootstrapped {
		return nil
	}
	if _, _, err := r.db.Execute(ctx, bookkeepingDDL, nil); err != nil {
		return fmt.Errorf("migrations: initialize bookkeeping table: %w", err)
	}
	r.bootstrapped = true
	return nil
}

// CurrentVersion returns the highest applied migration version, or 0 if none
// have been applied.
func (r *Runner) CurrentVersion(ctx context.Context) (int, error) {
	if err := r.Initialize(ctx); err != nil {
		return 0, err
	}
	rows, err := r.db.Query(ctx, true, `SELECT COALESCE(MAX(version), 0) FROM __pgsqlite_migrations`, nil)
	if err != nil {
		return 0, fmt.Errorf("migrations: current version: %w", err)
	}
	defer rows.Close()
	var version int
	if rows.Next() {
		if err := rows.Scan(&version); err != nil {
			return 0, fmt.Errorf("migrations: scan current version: %w", err)
		}
	}
	return version, rows.Err()
}

// VerifyNoGaps checks that applied versions form a contiguous 1..N sequence
// with matching checksums, per spec.md §4.2's invariant: "__pgsqlite_migrations.version
// is a strictly monotonic sequence with no gaps".
func (r *Runner) VerifyNoGaps(ctx context.Context) error {
	rows, err := r.db.Query(ctx, true, `SELECT version, checksum FROM __pgsqlite_migrations ORDER BY version`, nil)
	if err != nil {
		return fmt.Errorf("migrations: verify no gaps: %w", err)
	}
	defer rows.Close()

	expected := 1
	for rows.Next() {
		var version int
		var checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return fmt.Errorf("migrations: scan applied migration: %w", err)
		}
		if version != expected {
			return fmt.Errorf("migrations: gap in applied history: expected version %d, found %d", expected, version)
		}
		m, ok := byVersion(r.registry, version)
		if ok && m.Checksum != checksum {
			return fmt.Errorf("migrations: checksum mismatch for version %d: recorded %s, registry %s", version, checksum, m.Checksum)
		}
		expected++
	}
	return rows.Err()
}

func byVersion(reg []Migration, v int) (Migration, bool) {
	for _, m := range reg {
		if m.Version == v {
			return m, true
		}
	}
	return Migration{}, false
}

// Status reports what Open (spec.md §4.2 step-by-step) would decide.
type Status struct {
	NewDatabase     bool
	CurrentVersion  int
	LatestKnown     int
	PendingVersions []int
}

// Plan inspects the database and returns what action Open must take,
// without mutating anything.
func (r *Runner) Plan(ctx context.Context, hasUserTables func(context.Context) (bool, error)) (Status, error) {
	if err := r.Initialize(ctx); err != nil {
		return Status{}, err
	}
	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return Status{}, err
	}
	latest := r.latestKnown()

	var pending []int
	for _, m := range r.registry {
		if m.Version > current {
			pending = append(pending, m.Version)
		}
	}
	sort.Ints(pending)

	newDB := current == 0
	if newDB && hasUserTables != nil {
		has, err := hasUserTables(ctx)
		if err != nil {
			return Status{}, err
		}
		newDB = !has
	}

	return Status{
		NewDatabase:     newDB,
		CurrentVersion:  current,
		LatestKnown:     latest,
		PendingVersions: pending,
	}, nil
}

func (r *Runner) latestKnown() int {
	latest := 0
	for _, m := range r.registry {
		if m.Version > latest {
			latest = m.Version
		}
	}
	return latest
}

// Open implements spec.md §4.2's decision procedure:
//  1. new database (no user tables, no history) → apply everything.
//  2. pending migrations and allowMigrate is true → apply them, one
//     transaction per migration, recording history.
//  3. pending migrations and allowMigrate is false → fail with a clear
//     message (unless this is an in-memory database, which always
//     auto-migrates per spec.md §4.2 "in-memory DB always auto-migrates").
//  4. current version exceeds this binary's known registry → fail, the
//     database was written by a newer pgsqlite.
func (r *Runner) Open(ctx context.Context, allowMigrate bool, inMemory bool, hasUserTables func(context.Context) (bool, error)) error {
	status, err := r.Plan(ctx, hasUserTables)
	if err != nil {
		return err
	}

	if status.CurrentVersion > status.LatestKnown {
		return fmt.Errorf("migrations: database schema version %d is newer than this binary's registry (latest known %d)", status.CurrentVersion, status.LatestKnown)
	}

	if len(status.PendingVersions) == 0 {
		return r.VerifyNoGaps(ctx)
	}

	if !status.NewDatabase && !allowMigrate && !inMemory {
		return fmt.Errorf("migrations: %d pending migration(s) %v require --migrate to apply", len(status.PendingVersions), status.PendingVersions)
	}

	if err := r.applyPending(ctx, status.PendingVersions); err != nil {
		return err
	}
	return r.VerifyNoGaps(ctx)
}

func (r *Runner) applyPending(ctx context.Context, pending []int) error {
	for _, version := range pending {
		m, ok := byVersion(r.registry, version)
		if !ok {
			return fmt.Errorf("migrations: unknown pending version %d", version)
		}

		r.logger.Info("applying migration", "version", m.Version, "name", m.Name)

		err := r.db.WithLease(func(sqldb *sql.DB) error {
			tx, err := sqldb.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
			}
			if err := m.Up(ctx, tx); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("apply migration %d: %w", m.Version, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO __pgsqlite_migrations (version, name, checksum) VALUES (?, ?, ?)`, m.Version, m.Name, m.Checksum); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("record migration %d: %w", m.Version, err)
			}
			return tx.Commit()
		})
		if err != nil {
			return err
		}

		r.logger.Info("applied migration", "version", m.Version, "name", m.Name)
	}
	return nil
}

// checksumOf derives a deterministic checksum for a migration's fixed
// description, so a later binary can detect drift in the registry itself.
func checksumOf(name string, body string) string {
	sum := sha256.Sum256([]byte(name + "\x00" + body))
	return hex.EncodeToString(sum[:])
}
