// Package catalogemu is the pg_catalog Emulation Layer (spec.md §4.9, C10):
// it answers a client driver's introspection queries against
// pg_class/pg_attribute/pg_type/pg_enum without a real system
// catalog behind SQLite, by synthesizing rows from the Metadata Catalog and
// deterministic FNV-1a-hashed OIDs.
//
// The synthesized-row-builder shape here (one Builder type, one method per
// pg_catalog relation it knows how to fake) mirrors the teacher's
// dbschema readers: small, single-purpose types that turn live database
// state into a fixed Go struct shape for a caller to render.
package catalogemu

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
	"github.com/pgsqlite/pgsqlite/internal/schemacache"
	"github.com/pgsqlite/pgsqlite/internal/translator"
)

// ClassRow is a synthesized pg_class row: just enough for a client's \d /
// introspection query to identify a table and its OID.
type ClassRow struct {
	OID       int64
	RelName   string
	RelNamespace int64
	RelKind   string // "r" for ordinary table
}

// AttributeRow is a synthesized pg_attribute row.
type AttributeRow struct {
	AttRelID   int64
	AttName    string
	AttTypeID  uint32
	AttTypMod  int32
	AttNum     int16
	AttNotNull bool
}

// TypeRow is a synthesized pg_type row, used both for built-in types (whose
// OID is PostgreSQL's real stable one) and user-defined enum types (whose
// OID is this system's deterministic hash).
type TypeRow struct {
	OID      int64
	TypName  string
	TypType  string // "b" base, "e" enum
	TypArray int64
}

// EnumRow is a synthesized pg_enum row.
type EnumRow struct {
	OID       int64
	EnumTypID int64
	EnumLabel string
	EnumSortOrder float64
}

const publicNamespaceOID int64 = 2200 // PostgreSQL's real, stable OID for the "public" schema

// Catalog answers pg_catalog introspection queries by synthesizing rows from
// the Metadata Catalog and Schema Cache rather than SQLite's own
// sqlite_master, which has no concept of PostgreSQL types or namespaces.
type Catalog struct {
	cat   *catalog.Catalog
	cache *schemacache.Cache
}

// New builds a Catalog.
func New(cat *catalog.Catalog, cache *schemacache.Cache) *Catalog {
	return &Catalog{cat: cat, cache: cache}
}

// ClassForTable synthesizes the pg_class row for table, per spec.md §4.9:
// "a synthetic OID deterministically hashed from the table name".
func (c *Catalog) ClassForTable(table string) ClassRow {
	return ClassRow{
		OID:          translator.SyntheticOID(table),
		RelName:      table,
		RelNamespace: publicNamespaceOID,
		RelKind:      "r",
	}
}

// AttributesForTable synthesizes the pg_attribute rows for table's columns,
// in catalog insertion order (which matches declaration order, per
// package catalog's ColumnTypesForTable contract).
func (c *Catalog) AttributesForTable(ctx context.Context, table string) ([]AttributeRow, error) {
	cols, err := c.cat.ColumnTypesForTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("catalogemu: attributes for %s: %w", table, err)
	}

	relOID := translator.SyntheticOID(table)
	out := make([]AttributeRow, 0, len(cols))
	for i, col := range cols {
		pt, ok := pgtypes.ParseDeclared(strings.ToUpper(col.PgType))
		var typeOID uint32
		if ok {
			typeOID = uint32(pt.OID())
		} else {
			// Enum type: its pg_type OID is the catalog's stored enum OID,
			// not a statically known built-in one.
			et, ok, lookupErr := c.cat.EnumTypeByName(ctx, col.PgType)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if ok {
				typeOID = uint32(et.OID)
			}
		}
		out = append(out, AttributeRow{
			AttRelID:  relOID,
			AttName:   col.Column,
			AttTypeID: typeOID,
			AttTypMod: col.TypeModifier,
			AttNum:    int16(i + 1),
		})
	}
	return out, nil
}

// TypeForEnum synthesizes the pg_type row for a registered enum type.
func (c *Catalog) TypeForEnum(ctx context.Context, name string) (TypeRow, bool, error) {
	et, ok, err := c.cat.EnumTypeByName(ctx, name)
	if err != nil || !ok {
		return TypeRow{}, false, err
	}
	return TypeRow{OID: et.OID, TypName: et.Name, TypType: "e"}, true, nil
}

// EnumLabels synthesizes the pg_enum rows for a registered enum type, in
// declared order (spec.md: "ENUM comparisons follow declaration order").
func (c *Catalog) EnumLabels(ctx context.Context, typeOID int64) ([]EnumRow, error) {
	values, err := c.cat.EnumValues(ctx, typeOID)
	if err != nil {
		return nil, err
	}
	out := make([]EnumRow, len(values))
	for i, v := range values {
		out[i] = EnumRow{OID: translator.SyntheticOID(fmt.Sprintf("enumvalue:%d:%s", typeOID, v.Label)), EnumTypID: typeOID, EnumLabel: v.Label, EnumSortOrder: float64(v.SortOrder)}
	}
	return out, nil
}
