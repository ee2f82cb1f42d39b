// Package executor is the Query Executor (spec.md §4.4's consumer, C7): it
// drives a translated statement against the Storage Engine Adapter, applies
// constraint validation before a write reaches SQLite, assembles result rows
// into wire-ready values via the Type & Value Codec, and synthesizes the
// RETURNING follow-up script when the Translation Pipeline flagged one.
//
// Executor's shape — a struct holding the collaborators it needs (engine,
// schema cache, translator, constraint validator) plus one orchestrating
// entry point per protocol phase — follows the teacher's
// migration.Runner/Migrator split: a thin coordinator type that calls into
// focused single-purpose collaborators rather than doing everything itself.
package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgsqlite/pgsqlite/internal/catalog"
	"github.com/pgsqlite/pgsqlite/internal/catalogemu"
	"github.com/pgsqlite/pgsqlite/internal/constraints"
	"github.com/pgsqlite/pgsqlite/internal/pgerror"
	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
	"github.com/pgsqlite/pgsqlite/internal/schemacache"
	"github.com/pgsqlite/pgsqlite/internal/translator"
	"github.com/pgsqlite/pgsqlite/internal/translator/passes"
)

// ColumnDescriptor is one entry of a RowDescription message: enough
// information for the wire layer to encode it without returning to the
// Schema Cache itself.
type ColumnDescriptor struct {
	Name     string
	PgType   pgtypes.PgType
	Typmod   pgtypes.Typmod
	TableOID uint32
}

// Result is one statement's outcome, in enough detail for the wire protocol
// to emit RowDescription/DataRow*/CommandComplete without further lookups.
type Result struct {
	Columns      []ColumnDescriptor
	Rows         [][]any
	CommandTag   string
	RowsAffected int64
	IsDDL        bool
}

// Executor ties the Translation Pipeline to the Storage Engine Adapter.
type Executor struct {
	db        DB
	cache     *schemacache.Cache
	cat       *catalog.Catalog
	catEmu    *catalogemu.Catalog
	pipeline  *translator.Pipeline
	validator *constraints.Validator
	plans     *CacheManager
}

// DB is the subset of *engine.DB the executor needs, named so tests can
// supply a fake.
type DB interface {
	Execute(ctx context.Context, sqlText string, args []any) (rowsAffected, lastInsertID int64, err error)
	Query(ctx context.Context, readOnly bool, sqlText string, args []any) (*sql.Rows, error)
}

// New builds an Executor. catEmu may be nil, in which case CatalogFastPath
// never intercepts and every statement goes through the Translation
// Pipeline, including pg_catalog queries (answered by the migration-created
// SQLite views instead).
func New(db DB, cache *schemacache.Cache, cat *catalog.Catalog, catEmu *catalogemu.Catalog, pipeline *translator.Pipeline, validator *constraints.Validator, plans *CacheManager) *Executor {
	return &Executor{db: db, cache: cache, cat: cat, catEmu: catEmu, pipeline: pipeline, validator: validator, plans: plans}
}

// Run executes one already-separated statement end to end: translate, apply
// constraints for a write, execute against the engine, assemble rows for a
// read, and run the RETURNING follow-up when present. It is the entry point
// for the simple query protocol, which has no reason to separate translation
// from execution.
func (e *Executor) Run(ctx context.Context, sqlText string, args []any, binaryResult bool) (Result, error) {
	if fastRes, ok, err := e.CatalogFastPath(ctx, sqlText); err != nil {
		return Result{}, pgerror.Classify(err)
	} else if ok {
		return fastRes, nil
	}

	res, err := e.Translate(ctx, sqlText, binaryResult)
	if err != nil {
		return Result{}, err
	}
	return e.Execute(ctx, res, sqlText, args)
}

// Translate runs the Translation Pipeline for sqlText, consulting and
// filling the plan cache when one is configured. The extended query
// protocol calls this once from Parse and reuses the result across however
// many times the resulting portal is later Bound and Executed.
func (e *Executor) Translate(ctx context.Context, sqlText string, binaryResult bool) (translator.Result, error) {
	table := passes.TargetTable(sqlText)

	var res translator.Result
	var err error
	if e.plans != nil && !binaryResult {
		res, err = e.plans.GetOrTranslate(sqlText, func() (translator.Result, error) {
			return e.pipeline.Translate(ctx, sqlText, table, binaryResult)
		})
	} else {
		res, err = e.pipeline.Translate(ctx, sqlText, table, binaryResult)
	}
	if err != nil {
		return translator.Result{}, pgerror.Classify(err)
	}
	return res, nil
}

// Execute runs an already-translated statement: DDL commits and invalidates
// caches, a write applies constraints then executes and runs the RETURNING
// follow-up when present, and a read assembles rows. sourceSQL is the
// original (untranslated) text, used only for command-tag keyword detection
// since package passes' rewrites can change a statement's casing.
func (e *Executor) Execute(ctx context.Context, res translator.Result, sourceSQL string, args []any) (Result, error) {
	if res.IsDDL {
		if _, _, err := e.db.Execute(ctx, res.SQL, nil); err != nil {
			return Result{}, pgerror.Classify(err)
		}
		// Reload rather than just Invalidate: the column types/constraints this
		// statement just defined need to be visible to the very next query in
		// the same session (e.g. an INSERT immediately following its CREATE
		// TABLE), not merely whenever something else happens to trigger a
		// reload.
		if err := e.cache.Reload(ctx); err != nil {
			return Result{}, pgerror.Classify(err)
		}
		if e.plans != nil {
			e.plans.InvalidateAll()
		}
		return Result{IsDDL: true, CommandTag: ddlTag(sourceSQL)}, nil
	}

	if res.Metadata != nil && res.Metadata.Table != "" {
		if err := e.validateArgs(res.Metadata.Table, res.SQL, args); err != nil {
			return Result{}, pgerror.Classify(err)
		}
	}

	if isWrite(res.SQL) {
		rowsAffected, lastInsertID, err := e.db.Execute(ctx, res.SQL, args)
		if err != nil {
			return Result{}, pgerror.Classify(err)
		}

		if res.Returning != nil {
			selectSQL := passes.BuildFollowUpSelect(*res.Returning, lastInsertID)
			rows, cols, err := e.queryRows(ctx, selectSQL, nil, res.Returning.Table, res.Metadata)
			if err != nil {
				return Result{}, err
			}
			return Result{
				Columns:      cols,
				Rows:         rows,
				CommandTag:   writeTag(res.Returning.Kind, rowsAffected),
				RowsAffected: rowsAffected,
			}, nil
		}

		return Result{CommandTag: writeTag(writeKind(res.SQL), rowsAffected), RowsAffected: rowsAffected}, nil
	}

	table := ""
	if res.Metadata != nil {
		table = res.Metadata.Table
	}
	rows, cols, err := e.queryRows(ctx, res.SQL, args, table, res.Metadata)
	if err != nil {
		return Result{}, err
	}
	return Result{Columns: cols, Rows: rows, CommandTag: fmt.Sprintf("SELECT %d", len(rows))}, nil
}

// validateArgs runs constraint validation (VARCHAR length, NUMERIC
// precision/scale) against positional args when the pipeline could
// determine a single target table, per spec.md §4.8: "constraints enforced
// before the write reaches SQLite". Positional args bind to a statement's
// placeholders in the order they appear in the SQL text (database/sql's own
// binding rule), which for an INSERT/UPDATE is the order of its column
// list, so args[i] validates against columns[i].
func (e *Executor) validateArgs(table string, sqlText string, args []any) error {
	if e.validator == nil || len(args) == 0 {
		return nil
	}
	cols := passes.TargetColumns(sqlText)
	if len(cols) == 0 {
		return nil
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		if i >= len(args) {
			break
		}
		row[col] = args[i]
	}
	return e.validator.ValidateRow(table, row)
}

// resolveColumnType reports what the wire layer should claim for a result
// column named name: first the pipeline's own resolved-expression hint
// (Metadata.ColumnHints, for computed columns a pass recognized), then the
// Schema Cache entry for table.name (an ordinary column reference), and
// only TEXT/no typmod when neither source has an answer — an aggregate,
// an unrecognized expression, or a table TargetTable couldn't identify.
func (e *Executor) resolveColumnType(table string, md *passes.Metadata, name string) (pgtypes.PgType, pgtypes.Typmod) {
	if md != nil {
		if t, ok := md.ResolvedType(name); ok {
			return t, pgtypes.NoTypmod
		}
	}
	if table != "" && e.cache != nil {
		if ci, ok := e.cache.Column(table, name); ok {
			return ci.PgType, ci.Typmod
		}
	}
	return pgtypes.Text, pgtypes.NoTypmod
}

// DescribeColumns reports the RowDescription shape of a SELECT without
// fetching any rows or requiring real parameter values, for the extended
// query protocol's Describe message (spec.md §4.4: Describe "must consult"
// the pipeline's column metadata before falling back to running anything).
// Every parameter is bound NULL, which SQLite's dynamic typing tolerates
// for resolving a prepared statement's column set.
func (e *Executor) DescribeColumns(ctx context.Context, sqlText string, paramCount int, md *passes.Metadata) ([]ColumnDescriptor, error) {
	args := make([]any, paramCount)
	wrapped := fmt.Sprintf("SELECT * FROM (%s) WHERE 0", sqlText)
	table := ""
	if md != nil {
		table = md.Table
	}
	_, cols, err := e.queryRows(ctx, wrapped, args, table, md)
	return cols, err
}

// queryRows runs sqlText and assembles its rows plus RowDescription
// metadata. table/md (the statement's resolved target table and the
// pipeline's per-statement Metadata, both possibly empty/nil for a
// statement the table-extraction passes couldn't resolve) are consulted via
// the Schema Cache to report each column's real declared PgType/Typmod, per
// spec.md §8 Invariant 2 (wire-reported OID must equal declared type);
// falling back to TEXT only happens for a computed expression or alias the
// cache has nothing recorded for.
func (e *Executor) queryRows(ctx context.Context, sqlText string, args []any, table string, md *passes.Metadata) ([][]any, []ColumnDescriptor, error) {
	rows, err := e.db.Query(ctx, true, sqlText, args)
	if err != nil {
		return nil, nil, pgerror.Classify(err)
	}
	defer rows.Close()

	sqlCols, err := rows.Columns()
	if err != nil {
		return nil, nil, pgerror.Classify(err)
	}

	descs := make([]ColumnDescriptor, len(sqlCols))
	for i, name := range sqlCols {
		pgType, typmod := e.resolveColumnType(table, md, name)
		descs[i] = ColumnDescriptor{Name: name, PgType: pgType, Typmod: typmod}
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(sqlCols))
		ptrs := make([]any, len(sqlCols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, pgerror.Classify(err)
		}
		out = append(out, vals)
	}
	return out, descs, rows.Err()
}

func isWrite(sqlText string) bool {
	switch firstKeyword(sqlText) {
	case "insert", "update", "delete":
		return true
	default:
		return false
	}
}

func writeKind(sqlText string) string { return firstKeyword(sqlText) }

func firstKeyword(sqlText string) string {
	i := 0
	for i < len(sqlText) && (sqlText[i] == ' ' || sqlText[i] == '\n' || sqlText[i] == '\t') {
		i++
	}
	j := i
	for j < len(sqlText) && sqlText[j] != ' ' && sqlText[j] != '\n' && sqlText[j] != '\t' && sqlText[j] != '(' {
		j++
	}
	word := sqlText[i:j]
	out := make([]byte, len(word))
	for k := 0; k < len(word); k++ {
		c := word[k]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[k] = c
	}
	return string(out)
}

func writeTag(kind string, rowsAffected int64) string {
	switch kind {
	case "insert":
		return fmt.Sprintf("INSERT 0 %d", rowsAffected)
	case "update":
		return fmt.Sprintf("UPDATE %d", rowsAffected)
	case "delete":
		return fmt.Sprintf("DELETE %d", rowsAffected)
	default:
		return fmt.Sprintf("OK %d", rowsAffected)
	}
}

func ddlTag(sqlText string) string {
	switch firstKeyword(sqlText) {
	case "create":
		return "CREATE TABLE"
	case "drop":
		return "DROP TABLE"
	case "alter":
		return "ALTER TABLE"
	default:
		return "OK"
	}
}
