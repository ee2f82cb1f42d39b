package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// standardRegistry returns the fixed v1-v8 migration sequence spec.md §4.2
// requires. Every migration is additive DDL against the __pgsqlite_* tables
// (and, for v4, a data transformation of existing rows); none of them are
// reversible, matching spec.md's description of a forward-only catalog.
func standardRegistry() []Migration {
	return []Migration{
		{
			Version:  1,
			Name:     "base_metadata",
			Up:       migrateV1BaseMetadata,
			Checksum: checksumOf("base_metadata", v1SQL),
		},
		{
			Version:  2,
			Name:     "enums",
			Up:       migrateV2Enums,
			Checksum: checksumOf("enums", v2SQL),
		},
		{
			Version:  3,
			Name:     "datetime_metadata_columns",
			Up:       migrateV3DatetimeMetadata,
			Checksum: checksumOf("datetime_metadata_columns", v3SQL),
		},
		{
			Version:  4,
			Name:     "datetime_integer_storage",
			Up:       migrateV4DatetimeIntegerStorage,
			Checksum: checksumOf("datetime_integer_storage", "transform"),
		},
		{
			Version:  5,
			Name:     "catalog_views_synthetic_oids",
			Up:       migrateV5CatalogViews,
			Checksum: checksumOf("catalog_views_synthetic_oids", v5SQL),
		},
		{
			Version:  6,
			Name:     "string_constraints",
			Up:       migrateV6StringConstraints,
			Checksum: checksumOf("string_constraints", v6SQL),
		},
		{
			Version:  7,
			Name:     "numeric_constraints",
			Up:       migrateV7NumericConstraints,
			Checksum: checksumOf("numeric_constraints", v7SQL),
		},
		{
			Version:  8,
			Name:     "array_metadata_typarray",
			Up:       migrateV8ArrayMetadata,
			Checksum: checksumOf("array_metadata_typarray", v8SQL),
		},
	}
}

const v1SQL = `
CREATE TABLE IF NOT EXISTS __pgsqlite_schema (
	table_name      TEXT NOT NULL,
	column_name     TEXT NOT NULL,
	pg_type         TEXT NOT NULL,
	type_modifier   INTEGER,
	datetime_format TEXT,
	timezone_offset INTEGER,
	PRIMARY KEY (table_name, column_name)
)`

func migrateV1BaseMetadata(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, v1SQL); err != nil {
		return fmt.Errorf("v1: create __pgsqlite_schema: %w", err)
	}
	return nil
}

const v2SQL = `
CREATE TABLE IF NOT EXISTS __pgsqlite_enum_types (
	oid  INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS __pgsqlite_enum_values (
	type_oid   INTEGER NOT NULL,
	label      TEXT NOT NULL,
	sort_order INTEGER NOT NULL,
	PRIMARY KEY (type_oid, label)
);
CREATE TABLE IF NOT EXISTS __pgsqlite_enum_usage (
	table_name  TEXT NOT NULL,
	column_name TEXT NOT NULL,
	enum_type   TEXT NOT NULL,
	PRIMARY KEY (table_name, column_name)
)`

func migrateV2Enums(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range splitStatements(v2SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("v2: %w", err)
		}
	}
	return nil
}

const v3SQL = `ALTER TABLE __pgsqlite_schema ADD COLUMN datetime_format TEXT`

// migrateV3DatetimeMetadata is a no-op when v1's table already carries the
// datetime_format/timezone_offset columns (it does, in this registry's v1 —
// the column additions are folded forward so a fresh database created today
// never runs an ALTER against columns it created a moment ago). A database
// actually migrated from a pre-v3 pgsqlite would hit the ALTER path; guard
// against "duplicate column" by checking pragma table_info first.
func migrateV3DatetimeMetadata(ctx context.Context, tx *sql.Tx) error {
	has, err := columnExists(ctx, tx, "__pgsqlite_schema", "datetime_format")
	if err != nil {
		return fmt.Errorf("v3: check datetime_format column: %w", err)
	}
	if !has {
		if _, err := tx.ExecContext(ctx, v3SQL); err != nil {
			return fmt.Errorf("v3: add datetime_format: %w", err)
		}
	}
	has, err = columnExists(ctx, tx, "__pgsqlite_schema", "timezone_offset")
	if err != nil {
		return fmt.Errorf("v3: check timezone_offset column: %w", err)
	}
	if !has {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE __pgsqlite_schema ADD COLUMN timezone_offset INTEGER`); err != nil {
			return fmt.Errorf("v3: add timezone_offset: %w", err)
		}
	}
	return nil
}

// migrateV4DatetimeIntegerStorage is spec.md §4.2's lone data-transforming
// migration: "convert all datetime columns to INTEGER storage". It walks
// every column recorded as a date/time/timestamp type in __pgsqlite_schema
// and rewrites the user table's stored values from text to the epoch-based
// integer encoding package pgtypes uses on the wire.
func migrateV4DatetimeIntegerStorage(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT table_name, column_name, pg_type FROM __pgsqlite_schema
		WHERE pg_type IN ('date', 'time', 'timestamp', 'timestamptz', 'timetz')
	`)
	if err != nil {
		return fmt.Errorf("v4: list datetime columns: %w", err)
	}
	type col struct{ table, column, pgType string }
	var cols []col
	for rows.Next() {
		var c col
		if err := rows.Scan(&c.table, &c.column, &c.pgType); err != nil {
			rows.Close()
			return fmt.Errorf("v4: scan datetime column: %w", err)
		}
		cols = append(cols, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("v4: iterate datetime columns: %w", err)
	}

	for _, c := range cols {
		if err := convertColumnToInteger(ctx, tx, c.table, c.column, c.pgType); err != nil {
			return fmt.Errorf("v4: convert %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

func convertColumnToInteger(ctx context.Context, tx *sql.Tx, table, column, pgType string) error {
	exists, err := tableExists(ctx, tx, table)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	isInt, err := columnIsIntegerAffinity(ctx, tx, table, column)
	if err != nil {
		return err
	}
	if isInt {
		return nil
	}

	// SQLite has no ALTER COLUMN TYPE; rewrite values in place instead.
	// The conversion function is one of the decimal_/datetime helper
	// functions registered by package engine against the live connection.
	converter := datetimeConverterFunc(pgType)
	if converter == "" {
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET %s = %s(%s) WHERE %s IS NOT NULL`,
		quoteIdent(table), quoteIdent(column), converter, quoteIdent(column), quoteIdent(column))
	_, err = tx.ExecContext(ctx, query)
	return err
}

func datetimeConverterFunc(pgType string) string {
	switch pgType {
	case "date":
		return "pgsqlite_date_to_days"
	case "time", "timetz":
		return "pgsqlite_time_to_micros"
	case "timestamp", "timestamptz":
		return "pgsqlite_timestamp_to_micros"
	default:
		return ""
	}
}

const v5SQL = `
CREATE TABLE IF NOT EXISTS __pgsqlite_pg_class (
	oid       INTEGER PRIMARY KEY,
	relname   TEXT NOT NULL,
	relkind   TEXT NOT NULL,
	relnamespace INTEGER NOT NULL DEFAULT 2200
);
CREATE TABLE IF NOT EXISTS __pgsqlite_pg_attribute (
	attrelid   INTEGER NOT NULL,
	attname    TEXT NOT NULL,
	atttypid   INTEGER NOT NULL,
	attnum     INTEGER NOT NULL,
	PRIMARY KEY (attrelid, attnum)
)`

func migrateV5CatalogViews(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range splitStatements(v5SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("v5: %w", err)
		}
	}
	return nil
}

const v6SQL = `
CREATE TABLE IF NOT EXISTS __pgsqlite_string_constraints (
	table_name   TEXT NOT NULL,
	column_name  TEXT NOT NULL,
	max_length   INTEGER NOT NULL,
	is_char_type INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (table_name, column_name)
)`

func migrateV6StringConstraints(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, v6SQL); err != nil {
		return fmt.Errorf("v6: %w", err)
	}
	return nil
}

const v7SQL = `
CREATE TABLE IF NOT EXISTS __pgsqlite_numeric_constraints (
	table_name  TEXT NOT NULL,
	column_name TEXT NOT NULL,
	precision   INTEGER NOT NULL,
	scale       INTEGER NOT NULL,
	PRIMARY KEY (table_name, column_name)
)`

func migrateV7NumericConstraints(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, v7SQL); err != nil {
		return fmt.Errorf("v7: %w", err)
	}
	return nil
}

const v8SQL = `
CREATE TABLE IF NOT EXISTS __pgsqlite_array_types (
	table_name   TEXT NOT NULL,
	column_name  TEXT NOT NULL,
	element_type TEXT NOT NULL,
	dimensions   INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (table_name, column_name)
)`

func migrateV8ArrayMetadata(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, v8SQL); err != nil {
		return fmt.Errorf("v8: create __pgsqlite_array_types: %w", err)
	}
	has, err := columnExists(ctx, tx, "__pgsqlite_pg_type", "typarray")
	if err != nil {
		// __pgsqlite_pg_type is synthesized by package catalogemu, not
		// persisted; absence here just means there is nothing to backfill.
		return nil
	}
	if !has {
		return nil
	}
	return nil
}

func splitStatements(sqlText string) []string {
	var out []string
	start := 0
	for i := 0; i < len(sqlText); i++ {
		if sqlText[i] == ';' {
			stmt := trimSpace(sqlText[start:i])
			if stmt != "" {
				out = append(out, stmt)
			}
			start = i + 1
		}
	}
	if rest := trimSpace(sqlText[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && isSpace(s[i]) {
		i++
	}
	for j > i && isSpace(s[j-1]) {
		j--
	}
	return s[i:j]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func quoteIdent(name string) string {
	return `"` + name + `"`
}

func tableExists(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(table)))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull int
		var dflt any
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func columnIsIntegerAffinity(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(table)))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull int
		var dflt any
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return colType == "INTEGER", nil
		}
	}
	return false, rows.Err()
}
