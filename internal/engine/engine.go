// Package engine is the Storage Engine Adapter (spec.md §4.1, C1): the only
// code in this repository allowed to hold a *sql.DB against the embedded
// SQLite file. Every other component reaches SQLite through DB's Execute,
// Query, and Prepare methods, which serialize writers behind a single
// process-wide lease, exactly as spec.md §5 requires ("all SQL execution
// goes through a single exclusive lease protected by a fair mutex").
//
// The teacher (stokaro-ptah) wraps *sql.DB similarly in
// dbschema.DatabaseConnection, exposing ExecContext/QueryRowContext plus a
// Writer() that owns transaction boundaries; DB below follows the same
// shape, generalized to SQLite's single-writer constraint and the custom
// function registry spec.md §4.1 requires.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/sync/semaphore"

	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

const driverName = "sqlite3_pgsqlite"

var registerDriverOnce sync.Once

func ensureDriverRegistered() {
	registerDriverOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: registerFunctions,
		})
	})
}

// Options configures how DB opens the underlying SQLite file.
type Options struct {
	// Path is the SQLite file path, or ":memory:" for an in-memory database
	// (spec.md §6: "database path (file or :memory:)").
	Path string
	// JournalMode sets PRAGMA journal_mode (spec.md §6 configuration surface).
	// Defaults to "WAL" when empty.
	JournalMode string
	// ReadPoolSize, when > 0, enables a bounded pool of read-only leases
	// (spec.md §5: "Optionally, a pool of read-only engine leases may be
	// enabled"). Zero disables the pool: every statement serializes through
	// the single primary lease.
	ReadPoolSize int
	Logger       *slog.Logger
}

// DB is the single owner of the SQLite connection(s) backing one pgsqlite
// database. All mutation and, absent a read pool, all reads funnel through
// mu, a fair mutex in the sense that Go's sync.Mutex already grants waiters
// roughly FIFO access under contention — correctness here does not depend on
// the lock being stronger than that, only on it being the single
// serialization point (spec.md §4.1: "so correctness does not depend on the
// lock's strength, only on fairness").
type DB struct {
	sqldb      *sql.DB
	mu         sync.Mutex
	readSem    *semaphore.Weighted
	readPooled bool
	logger     *slog.Logger
	path       string
}

// Open opens (or creates) the SQLite database at opts.Path and registers the
// custom function set.
func Open(opts Options) (*DB, error) {
	ensureDriverRegistered()

	journalMode := opts.JournalMode
	if journalMode == "" {
		journalMode = "WAL"
	}

	dsn := opts.Path
	if opts.Path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_journal_mode=%s&_foreign_keys=on", opts.Path, journalMode)
	} else {
		dsn = "file::memory:?cache=shared&_foreign_keys=on"
	}

	sqldb, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", opts.Path, err)
	}

	// SQLite only supports one writer; a single underlying connection for
	// the primary lease avoids "database is locked" errors that would
	// otherwise come from database/sql's own pooling.
	sqldb.SetMaxOpenConns(1)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db := &DB{
		sqldb:  sqldb,
		logger: logger,
		path:   opts.Path,
	}

	if opts.ReadPoolSize > 0 {
		db.readSem = semaphore.NewWeighted(int64(opts.ReadPoolSize))
		db.readPooled = true
	}

	return db, nil
}

// Close closes the underlying database.
func (db *DB) Close() error { return db.sqldb.Close() }

// Path returns the file path (or ":memory:") this DB was opened with.
func (db *DB) Path() string { return db.path }

// Underlying exposes the raw *sql.DB for code that needs to pass it to a
// third-party helper (e.g. a migration's custom Go function). Most callers
// should prefer Execute/Query.
func (db *DB) Underlying() *sql.DB { return db.sqldb }

// WithLease runs fn while holding the primary write lease, the only place in
// this package a caller can batch multiple statements atomically (used by
// the migration runner to wrap a migration + bookkeeping row in one
// transaction, and by BEGIN/COMMIT/ROLLBACK handling in package session).
func (db *DB) WithLease(fn func(*sql.DB) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.sqldb)
}

// Execute runs a write statement (INSERT/UPDATE/DELETE/DDL) and returns rows
// affected and, for INSERT, the last insert rowid.
func (db *DB) Execute(ctx context.Context, sqlText string, args []any) (rowsAffected, lastInsertID int64, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.execWithRetry(ctx, sqlText, args, writeRetries)
	if err != nil {
		return 0, 0, pgerror.Classify(err)
	}
	ra, _ := res.RowsAffected()
	id, _ := res.LastInsertId()
	return ra, id, nil
}

// Query runs a read statement and returns the result set. When a read pool
// is enabled and the statement has been classified read-only by the caller
// (package translator provides that classification), Query acquires a
// semaphore slot instead of the primary lease, per spec.md §5.
func (db *DB) Query(ctx context.Context, readOnly bool, sqlText string, args []any) (*sql.Rows, error) {
	if readOnly && db.readPooled {
		if err := db.readSem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("engine: acquire read lease: %w", err)
		}
		rows, err := db.queryWithRetry(ctx, sqlText, args, readRetries)
		db.readSem.Release(1)
		if err != nil {
			return nil, pgerror.Classify(err)
		}
		return rows, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	rows, err := db.queryWithRetry(ctx, sqlText, args, readRetries)
	if err != nil {
		return nil, pgerror.Classify(err)
	}
	return rows, nil
}

const (
	writeRetries = 0 // spec.md §4.1: write busy/locked errors surface, they are not retried
	readRetries  = 5
)

func (db *DB) execWithRetry(ctx context.Context, sqlText string, args []any, retries int) (sql.Result, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		res, err := db.sqldb.ExecContext(ctx, sqlText, args...)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !isBusy(err) || attempt == retries {
			return nil, err
		}
		backoff(attempt)
	}
	return nil, lastErr
}

func (db *DB) queryWithRetry(ctx context.Context, sqlText string, args []any, retries int) (*sql.Rows, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		rows, err := db.sqldb.QueryContext(ctx, sqlText, args...)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if !isBusy(err) || attempt == retries {
			return nil, err
		}
		backoff(attempt)
	}
	return nil, lastErr
}

// backoff sleeps a bounded exponential delay with jitter, per spec.md §4.1:
// "Busy/locked are retried with bounded exponential backoff for SELECT".
func backoff(attempt int) {
	base := time.Duration(1<<uint(attempt)) * 2 * time.Millisecond
	if base > 50*time.Millisecond {
		base = 50 * time.Millisecond
	}
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	time.Sleep(base + jitter)
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if ok := asSQLiteErr(err, &sqliteErr); ok {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func asSQLiteErr(err error, target *sqlite3.Error) bool {
	for err != nil {
		if se, ok := err.(sqlite3.Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
