// Package translator is the Translation Pipeline (spec.md §4.4, C5): the
// fixed, ordered sequence of rewrite passes that turns a PostgreSQL
// statement into SQLite-executable SQL, short-circuited by an ultra-fast
// path for statements simple enough to need no rewriting at all.
//
// The pipeline shape — one Pipeline type holding references to
// collaborators (the schema cache, the catalog recorder), a single
// Translate entry point that threads a fixed sequence of sub-steps — mirrors
// the teacher's core/renderer.SQLRenderer, which dispatches a fixed set of
// rendering steps (columns, constraints, indexes) over a dialect in a fixed
// order.
package translator

import (
	"context"
	"regexp"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
	"github.com/pgsqlite/pgsqlite/internal/schemacache"
	"github.com/pgsqlite/pgsqlite/internal/translator/passes"
)

// Result is what Translate returns: the rewritten SQL (or, when Returning is
// set, the first statement of a two-step script), plus everything
// downstream components need.
type Result struct {
	SQL       string
	Metadata  *passes.Metadata
	Returning *passes.FollowUp
	UltraFast bool // true if the ultra-fast path classifier accepted this query unchanged
	IsDDL     bool
}

// Pipeline runs the thirteen passes against a schema-aware recorder and
// cache. Translate's table argument lets the caller (package executor, which already knows
// the statement's FROM/target table from parsing) tell the pipeline which
// table's column metadata to consult for array-vs-JSON operator dispatch and
// decimal-arithmetic detection, without the pipeline having to parse the
// table name out of the SQL text itself.
type Pipeline struct {
	cache *schemacache.Cache
	rec   passes.SchemaRecorder
}

// New builds a Pipeline.
func New(cache *schemacache.Cache, rec passes.SchemaRecorder) *Pipeline {
	return &Pipeline{cache: cache, rec: rec}
}

// Translate runs the full pipeline, or the ultra-fast path if the statement
// matches spec.md §4.4's ultra-fast-path pattern set and binaryResult is
// false (a binary-format result still needs RowDescription type resolution,
// so the ultra-fast path is text-result only).
func (p *Pipeline) Translate(ctx context.Context, sql string, table string, binaryResult bool) (Result, error) {
	stripped, err := passes.StripComments(sql)
	if err != nil {
		return Result{}, err
	}

	md := passes.NewMetadata()
	md.Table = table

	if !binaryResult && isUltraFastPath(stripped) {
		// A table with datetime, NUMERIC or array columns still needs the
		// literal (pass 6) and decimal (pass 11) rewrites.
		fast := true
		if p.cache != nil && table != "" {
			for _, ci := range p.cache.ColumnsForTable(table) {
				if ci.PgType.IsDateTime() || ci.PgType.IsDecimal() || ci.PgType == pgtypes.ArrayOf {
					fast = false
					break
				}
			}
		}
		if fast {
			return Result{SQL: stripped, Metadata: md, UltraFast: true}, nil
		}
	}

	rewritten := passes.StripSchemaPrefix(stripped)
	rewritten = passes.RegexOperators(rewritten)
	rewritten = passes.Casts(rewritten)

	if ct, isDDL, err := passes.CreateTable(ctx, rewritten, md, p.rec); err != nil {
		return Result{}, err
	} else if isDDL {
		return Result{SQL: ct, Metadata: md, IsDDL: true}, nil
	}

	rewritten = p.rewriteLiteralValues(rewritten, table)
	rewritten = passes.ArrayOps(rewritten)
	rewritten = passes.JSONOps(rewritten)
	rewritten = p.redispatchContainment(rewritten, table)
	rewritten = passes.DatetimeOps(rewritten)
	rewritten = passes.WrapNumericFormat(rewritten, p.scaleOf(table))
	rewritten = passes.RewriteDecimalArithmetic(rewritten, p.isNumericOperand(table))

	stripped2, followUp, hadReturning := passes.SplitReturning(rewritten)
	if hadReturning {
		md.HadReturning = true
		md.ReturningKind = followUp.Kind
		md.ReturningColumns = splitColumnList(followUp.Columns)
		md.Table = followUp.Table
		return Result{SQL: stripped2, Metadata: md, Returning: &followUp}, nil
	}

	return Result{SQL: rewritten, Metadata: md}, nil
}

var reContainsCall = regexp.MustCompile(`\b(array_contain(?:s|ed))\(([^,]+),(.+)\)`)

// redispatchContainment corrects ArrayOps' default guess for `@>`/`<@`
// (array_contains/array_contained) to the jsonb_* equivalents when the
// Schema Cache says the left operand is actually a JSON/JSONB column, not an
// array. Running ArrayOps first and correcting afterwards keeps both
// ArrayOps and JSONOps single-purpose regex passes.
func (p *Pipeline) redispatchContainment(sql, table string) string {
	if table == "" || p.cache == nil {
		return sql
	}
	if !strings.Contains(sql, "array_contains(") && !strings.Contains(sql, "array_contained(") {
		return sql
	}
	return reContainsCall.ReplaceAllStringFunc(sql, func(m string) string {
		parts := reContainsCall.FindStringSubmatch(m)
		fn, lhs, rhs := parts[1], strings.TrimSpace(parts[2]), parts[3]
		if !p.columnIsJSON(table, lhs) {
			return m
		}
		if fn == "array_contains" {
			return "jsonb_contains(" + lhs + "," + rhs + ")"
		}
		return "jsonb_contained(" + lhs + "," + rhs + ")"
	})
}

// rewriteLiteralValues runs pass 6 (spec.md §4.4: the INSERT/UPDATE value
// translator) against table's recorded column types. A statement with no
// resolved table (an unrecognized table-extraction shape, or one the
// Schema Cache has nothing recorded for) passes through unchanged, same as
// the other table-aware passes below.
func (p *Pipeline) rewriteLiteralValues(sql, table string) string {
	if table == "" || p.cache == nil {
		return sql
	}
	return passes.RewriteLiteralValues(sql, p.columnType(table), p.arrayElementType(table))
}

func (p *Pipeline) columnType(table string) passes.ColumnTypeFunc {
	return func(column string) (pgtypes.PgType, bool) {
		ci, ok := p.cache.Column(table, column)
		if !ok {
			return "", false
		}
		return ci.PgType, true
	}
}

func (p *Pipeline) arrayElementType(table string) passes.ArrayElementFunc {
	return func(column string) (pgtypes.PgType, bool) {
		at, ok := p.cache.ArrayType(table, column)
		if !ok {
			return "", false
		}
		et, ok := pgtypes.ParseDeclared(strings.ToUpper(at.ElementType))
		if !ok {
			return pgtypes.Text, true
		}
		return et, true
	}
}

func (p *Pipeline) columnIsJSON(table, column string) bool {
	ci, ok := p.cache.Column(table, column)
	if !ok {
		return false
	}
	return ci.PgType == pgtypes.JSON || ci.PgType == pgtypes.JSONB
}

func (p *Pipeline) scaleOf(table string) func(column string) (int, bool) {
	return func(column string) (int, bool) {
		if p.cache == nil {
			return 0, false
		}
		nc, ok := p.cache.NumericConstraint(table, column)
		if !ok {
			return 0, false
		}
		return int(nc.Scale), true
	}
}

func (p *Pipeline) isNumericOperand(table string) func(operand string) bool {
	return func(operand string) bool {
		operand = strings.TrimSpace(operand)
		if operand == "" || isNumericLiteral(operand) || strings.HasPrefix(operand, "$") {
			return false
		}
		if p.cache == nil || table == "" || !p.cache.HasDecimalColumn(table) {
			return false
		}
		ci, ok := p.cache.Column(table, operand)
		if !ok {
			return false
		}
		return ci.PgType.IsDecimal()
	}
}

func isNumericLiteral(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '-' && i == 0 {
			continue
		}
		if r == '.' {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func splitColumnList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}
