// Package passes implements the thirteen ordered rewrite passes of the
// Translation Pipeline (spec.md §4.4, C5). Each pass is a function over the
// SQL text; the few that need more also take *Metadata, a SchemaRecorder or
// schema lookup callbacks, and some return an error; package translator
// sequences them and owns the ultra-fast-path short circuit.
//
// Splitting each pass into its own file, named after what it rewrites,
// follows the teacher's core/renderer/dialects layout, where every SQL
// dialect concern (column DDL, constraint DDL, index DDL) gets its own file
// under a shared package rather than one monolithic renderer.
package passes

import "github.com/pgsqlite/pgsqlite/internal/pgtypes"

// ColumnTypeHint records what a pass learned about one output column, for
// Describe and the Query Executor's row assembly to consult (spec.md §4.4:
// "a mapping from output column alias to {source_column_type,
// expression_type_hint}").
type ColumnTypeHint struct {
	SourceColumnType pgtypes.PgType
	ExpressionType   pgtypes.PgType
	HasSource        bool
	HasExpression    bool
}

// Metadata accumulates everything the passes learn while rewriting one
// statement. It flows through the pipeline by pointer so later passes can
// see earlier passes' findings (spec.md §4.4: "accumulated translation
// metadata").
type Metadata struct {
	// ColumnHints maps an output column alias to its resolved type
	// information.
	ColumnHints map[string]ColumnTypeHint

	// IsDDL is true once the CREATE TABLE translator (pass 5) recognizes
	// this statement as DDL.
	IsDDL bool

	// Table is the primary table a DML statement targets, when
	// determinable syntactically; used by the RETURNING simulator and the
	// decimal rewriter's bloom-filter lookup.
	Table string

	// ReturningColumns holds the column list parsed out of a RETURNING
	// clause, stripped from the statement text, for pass 13 to act on.
	ReturningColumns []string

	// ReturningKind is "insert", "update", or "delete", set by the
	// RETURNING simulator so the executor knows which follow-up SELECT
	// strategy to use.
	ReturningKind string

	// HadReturning is true if the original statement carried RETURNING.
	HadReturning bool

	// ParamTypeHints records, for parameters seen as `$n`, a type inferred
	// from the column they were compared or bound against. Parse's
	// explicit param_oids list always takes precedence over this.
	ParamTypeHints map[int]pgtypes.PgType
}

// NewMetadata returns an empty Metadata ready for the pipeline to populate.
func NewMetadata() *Metadata {
	return &Metadata{
		ColumnHints:    make(map[string]ColumnTypeHint),
		ParamTypeHints: make(map[int]pgtypes.PgType),
	}
}

// SetSourceType records that output column alias comes directly from a
// column of the given PostgreSQL type.
func (m *Metadata) SetSourceType(alias string, t pgtypes.PgType) {
	h := m.ColumnHints[alias]
	h.SourceColumnType = t
	h.HasSource = true
	m.ColumnHints[alias] = h
}

// SetExpressionType records that output column alias is computed by an
// expression whose resolved type is t (e.g. arithmetic on a NUMERIC column).
func (m *Metadata) SetExpressionType(alias string, t pgtypes.PgType) {
	h := m.ColumnHints[alias]
	h.ExpressionType = t
	h.HasExpression = true
	m.ColumnHints[alias] = h
}

// ResolvedType returns the type Describe should report for alias: the
// expression type hint if set, else the source column type, else ok=false.
func (m *Metadata) ResolvedType(alias string) (pgtypes.PgType, bool) {
	h, ok := m.ColumnHints[alias]
	if !ok {
		return "", false
	}
	if h.HasExpression {
		return h.ExpressionType, true
	}
	if h.HasSource {
		return h.SourceColumnType, true
	}
	return "", false
}
