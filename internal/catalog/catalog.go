// Package catalog is the Metadata Catalog (spec.md §4.2, C2): the single
// writer of the `__pgsqlite_*` bookkeeping tables that record, for every
// user column, its true PostgreSQL type and any constraint that SQLite's
// native type affinity cannot enforce on its own. Every reader goes through
// package schemacache instead of querying these tables directly (spec.md
// §4.4: "The Metadata Catalog is the single writer... readers go through the
// Schema Cache").
//
// The shape of this package — a thin Go struct per table plus CRUD methods
// against a shared *engine.DB — follows the teacher's dbschema package,
// which keeps one reader type per catalog concept (TableInfo, ColumnInfo,
// ConstraintInfo, ...) instead of a single generic metadata blob.
package catalog

import (
	"context"
	"fmt"

	"github.com/pgsqlite/pgsqlite/internal/engine"
)

// ColumnType is one row of __pgsqlite_schema: the authoritative PostgreSQL
// type of a single column (spec.md §4.2).
type ColumnType struct {
	Table          string
	Column         string
	PgType         string
	TypeModifier   int32
	DatetimeFormat string
	TimezoneOffset int32
}

// EnumType is one row of __pgsqlite_enum_types.
type EnumType struct {
	OID  int64
	Name string
}

// EnumValue is one row of __pgsqlite_enum_values.
type EnumValue struct {
	TypeOID   int64
	Label     string
	SortOrder int32
}

// EnumUsage is one row of __pgsqlite_enum_usage.
type EnumUsage struct {
	Table    string
	Column   string
	EnumType string
}

// ArrayType is one row of __pgsqlite_array_types.
type ArrayType struct {
	Table       string
	Column      string
	ElementType string
	Dimensions  int32
}

// StringConstraint is one row of __pgsqlite_string_constraints.
type StringConstraint struct {
	Table      string
	Column     string
	MaxLength  int32
	IsCharType bool
}

// NumericConstraint is one row of __pgsqlite_numeric_constraints.
type NumericConstraint struct {
	Table     string
	Column    string
	Precision int32
	Scale     int32
}

// Catalog is the single writer of the __pgsqlite_* tables.
type Catalog struct {
	db *engine.DB
}

// New wraps db as a Catalog. The tables themselves are created by package
// migrations; Catalog never issues DDL on its own.
func New(db *engine.DB) *Catalog { return &Catalog{db: db} }

// PutColumnType inserts or replaces a column's recorded PostgreSQL type.
// spec.md §4.2: "Uniquely keyed by (table, column)".
func (c *Catalog) PutColumnType(ctx context.Context, ct ColumnType) error {
	_, _, err := c.db.Execute(ctx, `
		INSERT INTO __pgsqlite_schema (table_name, column_name, pg_type, type_modifier, datetime_format, timezone_offset)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(table_name, column_name) DO UPDATE SET
			pg_type = excluded.pg_type,
			type_modifier = excluded.type_modifier,
			datetime_format = excluded.datetime_format,
			timezone_offset = excluded.timezone_offset
	`, []any{ct.Table, ct.Column, ct.PgType, ct.TypeModifier, ct.DatetimeFormat, ct.TimezoneOffset})
	if err != nil {
		return fmt.Errorf("catalog: put column type %s.%s: %w", ct.Table, ct.Column, err)
	}
	return nil
}

// ColumnTypesForTable returns every recorded column type for table, in
// insertion order. Used by the Schema Cache's bulk preload (spec.md §4.4).
func (c *Catalog) ColumnTypesForTable(ctx context.Context, table string) ([]ColumnType, error) {
	rows, err := c.db.Query(ctx, true, `
		SELECT table_name, column_name, pg_type, type_modifier, datetime_format, timezone_offset
		FROM __pgsqlite_schema WHERE table_name = ? ORDER BY rowid
	`, []any{table})
	if err != nil {
		return nil, fmt.Errorf("catalog: column types for %s: %w", table, err)
	}
	defer rows.Close()

	var out []ColumnType
	for rows.Next() {
		var ct ColumnType
		var datetimeFormat *string
		var typeModifier, tzOffset *int32
		if err := rows.Scan(&ct.Table, &ct.Column, &ct.PgType, &typeModifier, &datetimeFormat, &tzOffset); err != nil {
			return nil, fmt.Errorf("catalog: scan column type: %w", err)
		}
		if typeModifier != nil {
			ct.TypeModifier = *typeModifier
		}
		if datetimeFormat != nil {
			ct.DatetimeFormat = *datetimeFormat
		}
		if tzOffset != nil {
			ct.TimezoneOffset = *tzOffset
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// AllColumnTypes returns every recorded column type across every table, for
// the Schema Cache's full bulk load on session open (spec.md §4.4: "On first
// query against a table, or on session open, bulk-load every row").
func (c *Catalog) AllColumnTypes(ctx context.Context) ([]ColumnType, error) {
	rows, err := c.db.Query(ctx, true, `
		SELECT table_name, column_name, pg_type, type_modifier, datetime_format, timezone_offset
		FROM __pgsqlite_schema ORDER BY table_name, rowid
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: all column types: %w", err)
	}
	defer rows.Close()

	var out []ColumnType
	for rows.Next() {
		var ct ColumnType
		var datetimeFormat *string
		var typeModifier, tzOffset *int32
		if err := rows.Scan(&ct.Table, &ct.Column, &ct.PgType, &typeModifier, &datetimeFormat, &tzOffset); err != nil {
			return nil, fmt.Errorf("catalog: scan column type: %w", err)
		}
		if typeModifier != nil {
			ct.TypeModifier = *typeModifier
		}
		if datetimeFormat != nil {
			ct.DatetimeFormat = *datetimeFormat
		}
		if tzOffset != nil {
			ct.TimezoneOffset = *tzOffset
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// DeleteColumnsForTable removes every __pgsqlite_schema row (and sibling
// constraint rows) for table, called when a DROP TABLE is translated.
func (c *Catalog) DeleteColumnsForTable(ctx context.Context, table string) error {
	stmts := []string{
		`DELETE FROM __pgsqlite_schema WHERE table_name = ?`,
		`DELETE FROM __pgsqlite_string_constraints WHERE table_name = ?`,
		`DELETE FROM __pgsqlite_numeric_constraints WHERE table_name = ?`,
		`DELETE FROM __pgsqlite_array_types WHERE table_name = ?`,
		`DELETE FROM __pgsqlite_enum_usage WHERE table_name = ?`,
	}
	for _, stmt := range stmts {
		if _, _, err := c.db.Execute(ctx, stmt, []any{table}); err != nil {
			return fmt.Errorf("catalog: delete columns for %s: %w", table, err)
		}
	}
	return nil
}

// PutEnumType registers a new ENUM type with its deterministic OID (spec.md
// §4.2: "OIDs are deterministic hashes of the name", computed by
// translator.SyntheticOID's FNV-1a hash and passed in here).
func (c *Catalog) PutEnumType(ctx context.Context, et EnumType) error {
	_, _, err := c.db.Execute(ctx, `
		INSERT INTO __pgsqlite_enum_types (oid, name) VALUES (?, ?)
		ON CONFLICT(oid) DO UPDATE SET name = excluded.name
	`, []any{et.OID, et.Name})
	if err != nil {
		return fmt.Errorf("catalog: put enum type %s: %w", et.Name, err)
	}
	return nil
}

// EnumTypeByName looks up an enum type's OID by name.
func (c *Catalog) EnumTypeByName(ctx context.Context, name string) (EnumType, bool, error) {
	rows, err := c.db.Query(ctx, true, `SELECT oid, name FROM __pgsqlite_enum_types WHERE name = ?`, []any{name})
	if err != nil {
		return EnumType{}, false, fmt.Errorf("catalog: enum type by name %s: %w", name, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return EnumType{}, false, rows.Err()
	}
	var et EnumType
	if err := rows.Scan(&et.OID, &et.Name); err != nil {
		return EnumType{}, false, fmt.Errorf("catalog: scan enum type: %w", err)
	}
	return et, true, nil
}

// PutEnumValue registers a single label of an enum type, in declaration
// order (sortOrder), so spec.md's membership and ordering semantics for
// ENUM comparisons can be reconstructed.
func (c *Catalog) PutEnumValue(ctx context.Context, ev EnumValue) error {
	_, _, err := c.db.Execute(ctx, `
		INSERT INTO __pgsqlite_enum_values (type_oid, label, sort_order) VALUES (?, ?, ?)
		ON CONFLICT(type_oid, label) DO UPDATE SET sort_order = excluded.sort_order
	`, []any{ev.TypeOID, ev.Label, ev.SortOrder})
	if err != nil {
		return fmt.Errorf("catalog: put enum value %s: %w", ev.Label, err)
	}
	return nil
}

// AppendEnumValue adds a new label to an existing enum type at the end of
// its current ordering (ALTER TYPE ... ADD VALUE).
func (c *Catalog) AppendEnumValue(ctx context.Context, typeOID int64, label string) error {
	rows, err := c.db.Query(ctx, true, `SELECT COALESCE(MAX(sort_order), -1) FROM __pgsqlite_enum_values WHERE type_oid = ?`, []any{typeOID})
	if err != nil {
		return fmt.Errorf("catalog: append enum value, max sort: %w", err)
	}
	var maxSort int32 = -1
	if rows.Next() {
		_ = rows.Scan(&maxSort)
	}
	rows.Close()
	return c.PutEnumValue(ctx, EnumValue{TypeOID: typeOID, Label: label, SortOrder: maxSort + 1})
}

// EnumValues returns the labels of typeOID in declared order.
func (c *Catalog) EnumValues(ctx context.Context, typeOID int64) ([]EnumValue, error) {
	rows, err := c.db.Query(ctx, true, `
		SELECT type_oid, label, sort_order FROM __pgsqlite_enum_values
		WHERE type_oid = ? ORDER BY sort_order
	`, []any{typeOID})
	if err != nil {
		return nil, fmt.Errorf("catalog: enum values for %d: %w", typeOID, err)
	}
	defer rows.Close()
	var out []EnumValue
	for rows.Next() {
		var ev EnumValue
		if err := rows.Scan(&ev.TypeOID, &ev.Label, &ev.SortOrder); err != nil {
			return nil, fmt.Errorf("catalog: scan enum value: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// PutEnumUsage records that table.column uses an enum type, so the
// CREATE TABLE translator's validation trigger can be regenerated when the
// type later gains a value (spec.md §4.2: "enables trigger regeneration when
// an enum gains a value").
func (c *Catalog) PutEnumUsage(ctx context.Context, u EnumUsage) error {
	_, _, err := c.db.Execute(ctx, `
		INSERT INTO __pgsqlite_enum_usage (table_name, column_name, enum_type) VALUES (?, ?, ?)
		ON CONFLICT(table_name, column_name) DO UPDATE SET enum_type = excluded.enum_type
	`, []any{u.Table, u.Column, u.EnumType})
	if err != nil {
		return fmt.Errorf("catalog: put enum usage %s.%s: %w", u.Table, u.Column, err)
	}
	return nil
}

// EnumUsagesForType returns every (table, column) using enumType, needed to
// regenerate all of their validation triggers on ALTER TYPE ... ADD VALUE.
func (c *Catalog) EnumUsagesForType(ctx context.Context, enumType string) ([]EnumUsage, error) {
	rows, err := c.db.Query(ctx, true, `
		SELECT table_name, column_name, enum_type FROM __pgsqlite_enum_usage WHERE enum_type = ?
	`, []any{enumType})
	if err != nil {
		return nil, fmt.Errorf("catalog: enum usages for %s: %w", enumType, err)
	}
	defer rows.Close()
	var out []EnumUsage
	for rows.Next() {
		var u EnumUsage
		if err := rows.Scan(&u.Table, &u.Column, &u.EnumType); err != nil {
			return nil, fmt.Errorf("catalog: scan enum usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// PutArrayType records a declared array column's element type and
// dimensionality (spec.md §4.2).
func (c *Catalog) PutArrayType(ctx context.Context, at ArrayType) error {
	_, _, err := c.db.Execute(ctx, `
		INSERT INTO __pgsqlite_array_types (table_name, column_name, element_type, dimensions) VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, column_name) DO UPDATE SET
			element_type = excluded.element_type, dimensions = excluded.dimensions
	`, []any{at.Table, at.Column, at.ElementType, at.Dimensions})
	if err != nil {
		return fmt.Errorf("catalog: put array type %s.%s: %w", at.Table, at.Column, err)
	}
	return nil
}

// ArrayTypesForTable returns every declared array column of table.
func (c *Catalog) ArrayTypesForTable(ctx context.Context, table string) ([]ArrayType, error) {
	rows, err := c.db.Query(ctx, true, `
		SELECT table_name, column_name, element_type, dimensions FROM __pgsqlite_array_types WHERE table_name = ?
	`, []any{table})
	if err != nil {
		return nil, fmt.Errorf("catalog: array types for %s: %w", table, err)
	}
	defer rows.Close()
	var out []ArrayType
	for rows.Next() {
		var at ArrayType
		if err := rows.Scan(&at.Table, &at.Column, &at.ElementType, &at.Dimensions); err != nil {
			return nil, fmt.Errorf("catalog: scan array type: %w", err)
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

// PutStringConstraint records VARCHAR/CHAR length enforcement data.
func (c *Catalog) PutStringConstraint(ctx context.Context, sc StringConstraint) error {
	_, _, err := c.db.Execute(ctx, `
		INSERT INTO __pgsqlite_string_constraints (table_name, column_name, max_length, is_char_type) VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, column_name) DO UPDATE SET
			max_length = excluded.max_length, is_char_type = excluded.is_char_type
	`, []any{sc.Table, sc.Column, sc.MaxLength, sc.IsCharType})
	if err != nil {
		return fmt.Errorf("catalog: put string constraint %s.%s: %w", sc.Table, sc.Column, err)
	}
	return nil
}

// StringConstraintsForTable returns every VARCHAR/CHAR constraint of table.
func (c *Catalog) StringConstraintsForTable(ctx context.Context, table string) ([]StringConstraint, error) {
	rows, err := c.db.Query(ctx, true, `
		SELECT table_name, column_name, max_length, is_char_type FROM __pgsqlite_string_constraints WHERE table_name = ?
	`, []any{table})
	if err != nil {
		return nil, fmt.Errorf("catalog: string constraints for %s: %w", table, err)
	}
	defer rows.Close()
	var out []StringConstraint
	for rows.Next() {
		var sc StringConstraint
		if err := rows.Scan(&sc.Table, &sc.Column, &sc.MaxLength, &sc.IsCharType); err != nil {
			return nil, fmt.Errorf("catalog: scan string constraint: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// PutNumericConstraint records NUMERIC(precision,scale) enforcement data.
func (c *Catalog) PutNumericConstraint(ctx context.Context, nc NumericConstraint) error {
	_, _, err := c.db.Execute(ctx, `
		INSERT INTO __pgsqlite_numeric_constraints (table_name, column_name, precision, scale) VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, column_name) DO UPDATE SET
			precision = excluded.precision, scale = excluded.scale
	`, []any{nc.Table, nc.Column, nc.Precision, nc.Scale})
	if err != nil {
		return fmt.Errorf("catalog: put numeric constraint %s.%s: %w", nc.Table, nc.Column, err)
	}
	return nil
}

// NumericConstraintsForTable returns every NUMERIC constraint of table.
func (c *Catalog) NumericConstraintsForTable(ctx context.Context, table string) ([]NumericConstraint, error) {
	rows, err := c.db.Query(ctx, true, `
		SELECT table_name, column_name, precision, scale FROM __pgsqlite_numeric_constraints WHERE table_name = ?
	`, []any{table})
	if err != nil {
		return nil, fmt.Errorf("catalog: numeric constraints for %s: %w", table, err)
	}
	defer rows.Close()
	var out []NumericConstraint
	for rows.Next() {
		var nc NumericConstraint
		if err := rows.Scan(&nc.Table, &nc.Column, &nc.Precision, &nc.Scale); err != nil {
			return nil, fmt.Errorf("catalog: scan numeric constraint: %w", err)
		}
		out = append(out, nc)
	}
	return out, rows.Err()
}

// HasUserTables reports whether any non-catalog table exists, used by the
// migration runner to decide "new database → apply all" (spec.md §4.2).
func (c *Catalog) HasUserTables(ctx context.Context) (bool, error) {
	rows, err := c.db.Query(ctx, true, `
		SELECT 1 FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE '__pgsqlite_%' AND name NOT LIKE 'sqlite_%'
		LIMIT 1
	`, nil)
	if err != nil {
		return false, fmt.Errorf("catalog: has user tables: %w", err)
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}
