// Package schemacache is the Schema Cache (spec.md §4.3, C4): process-wide
// shared mutable state protected by a reader-preferring lock (spec.md §3:
// "protected by a reader-preferring lock; invalidated on DDL"), bulk-loaded
// from package catalog on first use and invalidated en bloc whenever a DDL
// statement or migration runs.
//
// This mirrors the teacher's in-process schema introspection caches (core's
// interface-registry patterns of building a map once and reusing it across
// requests), generalized to RWMutex-guarded maps keyed by (table, column)
// instead of by Go type.
package schemacache

import (
	"context"
	"strings"
	"sync"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
)

// ColumnInfo is what the cache stores per column: the declared PostgreSQL
// type plus its typmod, ready for the wire codec.
type ColumnInfo struct {
	PgType         pgtypes.PgType
	Typmod         pgtypes.Typmod
	DatetimeFormat string
	TimezoneOffset int32
}

// Cache is the process-wide Schema Cache. One Cache is shared by every
// session against the same *engine.DB.
type Cache struct {
	cat *catalog.Catalog

	mu           sync.RWMutex
	columns      map[string]map[string]ColumnInfo // table -> column -> info
	decimalTable map[string]bool                  // bloom filter: table has >=1 NUMERIC column
	stringCons   map[string]map[string]catalog.StringConstraint
	numericCons  map[string]map[string]catalog.NumericConstraint
	arrayTypes   map[string]map[string]catalog.ArrayType
	loaded       bool
}

// New wraps cat as a schema cache. The cache starts empty; call Preload (or
// let EnsureLoaded do it lazily) before the first lookup.
func New(cat *catalog.Catalog) *Cache {
	return &Cache{
		cat:          cat,
		columns:      make(map[string]map[string]ColumnInfo),
		decimalTable: make(map[string]bool),
		stringCons:   make(map[string]map[string]catalog.StringConstraint),
		numericCons:  make(map[string]map[string]catalog.NumericConstraint),
		arrayTypes:   make(map[string]map[string]catalog.ArrayType),
	}
}

// EnsureLoaded bulk-loads the cache once, at session open or first query
// against any table, per spec.md §4.3.
func (c *Cache) EnsureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Reload(ctx)
}

// Reload clears and rebuilds the cache from the catalog. Call this after any
// DDL or migration (spec.md §4.3: "invalidated en bloc on any DDL or
// migration").
func (c *Cache) Reload(ctx context.Context) error {
	allColumns, err := c.cat.AllColumnTypes(ctx)
	if err != nil {
		return err
	}

	columns := make(map[string]map[string]ColumnInfo)
	decimalTable := make(map[string]bool)
	tables := make(map[string]bool)

	for _, ct := range allColumns {
		tables[ct.Table] = true
		// The catalog stores the PgType tag ("int4", "enum", "array"), not
		// the DDL spelling; tags ParseDeclared does not know are kept as-is.
		pt, ok := pgtypes.ParseDeclared(strings.ToUpper(ct.PgType))
		if !ok {
			pt = pgtypes.PgType(ct.PgType)
		}
		typmod := pgtypes.Typmod(ct.TypeModifier)
		if ct.TypeModifier == 0 {
			typmod = pgtypes.NoTypmod
		}
		if columns[ct.Table] == nil {
			columns[ct.Table] = make(map[string]ColumnInfo)
		}
		columns[ct.Table][ct.Column] = ColumnInfo{
			PgType:         pt,
			Typmod:         typmod,
			DatetimeFormat: ct.DatetimeFormat,
			TimezoneOffset: ct.TimezoneOffset,
		}
		if pt.IsDecimal() {
			decimalTable[ct.Table] = true
		}
	}

	stringCons := make(map[string]map[string]catalog.StringConstraint)
	numericCons := make(map[string]map[string]catalog.NumericConstraint)
	arrayTypes := make(map[string]map[string]catalog.ArrayType)
	for table := range tables {
		scs, err := c.cat.StringConstraintsForTable(ctx, table)
		if err != nil {
			return err
		}
		if len(scs) > 0 {
			m := make(map[string]catalog.StringConstraint, len(scs))
			for _, sc := range scs {
				m[sc.Column] = sc
			}
			stringCons[table] = m
		}

		ncs, err := c.cat.NumericConstraintsForTable(ctx, table)
		if err != nil {
			return err
		}
		if len(ncs) > 0 {
			m := make(map[string]catalog.NumericConstraint, len(ncs))
			for _, nc := range ncs {
				m[nc.Column] = nc
			}
			numericCons[table] = m
		}

		ats, err := c.cat.ArrayTypesForTable(ctx, table)
		if err != nil {
			return err
		}
		if len(ats) > 0 {
			m := make(map[string]catalog.ArrayType, len(ats))
			for _, at := range ats {
				m[at.Column] = at
			}
			arrayTypes[table] = m
		}
	}

	c.mu.Lock()
	c.columns = columns
	c.decimalTable = decimalTable
	c.stringCons = stringCons
	c.numericCons = numericCons
	c.arrayTypes = arrayTypes
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// Invalidate marks the cache stale without reloading; the next EnsureLoaded
// (or an explicit Reload) will repopulate it. Useful for DDL handlers that
// want to defer the reload cost to the next query.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

// Column looks up a single column's cached type info.
func (c *Cache) Column(table, column string) (ColumnInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cols, ok := c.columns[table]
	if !ok {
		return ColumnInfo{}, false
	}
	ci, ok := cols[column]
	return ci, ok
}

// ColumnsForTable returns a copy of the cached columns for table, keyed by
// column name.
func (c *Cache) ColumnsForTable(table string) map[string]ColumnInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.columns[table]
	out := make(map[string]ColumnInfo, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// HasDecimalColumn is the bloom-style check pass 11 (the decimal rewriter)
// uses as an early-exit (spec.md §4.4: "Has an early-exit that consults the
// decimal-table bloom filter").
func (c *Cache) HasDecimalColumn(table string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.decimalTable[table]
}

// StringConstraint returns the VARCHAR/CHAR length constraint for a column,
// if any.
func (c *Cache) StringConstraint(table, column string) (catalog.StringConstraint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.stringCons[table]
	if !ok {
		return catalog.StringConstraint{}, false
	}
	sc, ok := m[column]
	return sc, ok
}

// NumericConstraint returns the NUMERIC(precision,scale) constraint for a
// column, if any.
func (c *Cache) NumericConstraint(table, column string) (catalog.NumericConstraint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.numericCons[table]
	if !ok {
		return catalog.NumericConstraint{}, false
	}
	nc, ok := m[column]
	return nc, ok
}

// ArrayType returns the declared element type/dimensions for an array
// column, if any.
func (c *Cache) ArrayType(table, column string) (catalog.ArrayType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.arrayTypes[table]
	if !ok {
		return catalog.ArrayType{}, false
	}
	at, ok := m[column]
	return at, ok
}
