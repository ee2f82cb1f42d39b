package translator

import (
	"context"
	"hash/fnv"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
	"github.com/pgsqlite/pgsqlite/internal/translator/passes"
)

// CatalogRecorder adapts *catalog.Catalog to passes.SchemaRecorder, so the
// CREATE TABLE pass can persist what it learns without package passes
// importing package catalog directly.
type CatalogRecorder struct {
	cat *catalog.Catalog
}

// NewCatalogRecorder builds a CatalogRecorder over cat.
func NewCatalogRecorder(cat *catalog.Catalog) *CatalogRecorder {
	return &CatalogRecorder{cat: cat}
}

var _ passes.SchemaRecorder = (*CatalogRecorder)(nil)

func (r *CatalogRecorder) RecordColumn(ctx context.Context, table, column string, pgType pgtypes.PgType, typmod pgtypes.Typmod) error {
	return r.cat.PutColumnType(ctx, catalog.ColumnType{
		Table:        table,
		Column:       column,
		PgType:       string(pgType),
		TypeModifier: int32(typmod),
	})
}

func (r *CatalogRecorder) RecordStringConstraint(ctx context.Context, table, column string, maxLength int, isChar bool) error {
	return r.cat.PutStringConstraint(ctx, catalog.StringConstraint{
		Table: table, Column: column, MaxLength: int32(maxLength), IsCharType: isChar,
	})
}

func (r *CatalogRecorder) RecordNumericConstraint(ctx context.Context, table, column string, precision, scale int) error {
	return r.cat.PutNumericConstraint(ctx, catalog.NumericConstraint{
		Table: table, Column: column, Precision: int32(precision), Scale: int32(scale),
	})
}

func (r *CatalogRecorder) RecordArrayType(ctx context.Context, table, column, elementType string, dimensions int) error {
	return r.cat.PutArrayType(ctx, catalog.ArrayType{
		Table: table, Column: column, ElementType: elementType, Dimensions: int32(dimensions),
	})
}

func (r *CatalogRecorder) RecordEnumUsage(ctx context.Context, table, column, enumType string) error {
	oid, ok, err := r.cat.EnumTypeByName(ctx, enumType)
	if err != nil {
		return err
	}
	if !ok {
		// The CREATE TYPE ... AS ENUM statement that declares this type may
		// not have run yet in a statement batch where CREATE TABLE comes
		// first; register a placeholder entry with a deterministic OID so
		// later ALTER TYPE ... ADD VALUE calls have something to extend.
		newOID := SyntheticOID(enumType)
		if err := r.cat.PutEnumType(ctx, catalog.EnumType{OID: newOID, Name: enumType}); err != nil {
			return err
		}
	} else {
		_ = oid
	}
	return r.cat.PutEnumUsage(ctx, catalog.EnumUsage{Table: table, Column: column, EnumType: enumType})
}

func (r *CatalogRecorder) EnumOID(ctx context.Context, name string) (int64, bool, error) {
	et, ok, err := r.cat.EnumTypeByName(ctx, name)
	if err != nil || !ok {
		return 0, ok, err
	}
	return et.OID, true, nil
}

// SyntheticOID computes the deterministic FNV-1a based synthetic OID used
// for every catalog object pgsqlite invents (enum types, and the pg_catalog
// emulation layer's synthesized pg_class/pg_type rows), kept above
// PostgreSQL's reserved built-in OID range.
func SyntheticOID(name string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum32()&0x7fffffff) | 0x10000
}
