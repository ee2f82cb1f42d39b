package passes

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
)

var (
	reDoubleColonCast = regexp.MustCompile(`(?i)([\w."'\]\)]+)\s*::\s*([a-zA-Z_][a-zA-Z0-9_ ]*)`)
	reCastFunc        = regexp.MustCompile(`(?i)CAST\s*\(\s*(.+?)\s+AS\s+([a-zA-Z_][a-zA-Z0-9_ ]*)\s*\)`)
)

// Casts rewrites `expr::type` and `CAST(expr AS type)` (spec.md §4.4 pass 4).
// Casts to a type this system stores as SQLite TEXT/INTEGER/REAL collapse to
// the underlying SQLite conversion function; casts to an enum target are a
// no-op (enum membership is enforced by trigger, not by cast).
func Casts(sql string) string {
	sql = reDoubleColonCast.ReplaceAllStringFunc(sql, func(m string) string {
		parts := reDoubleColonCast.FindStringSubmatch(m)
		return rewriteCast(parts[1], parts[2])
	})
	sql = reCastFunc.ReplaceAllStringFunc(sql, func(m string) string {
		parts := reCastFunc.FindStringSubmatch(m)
		return rewriteCast(parts[1], parts[2])
	})
	return sql
}

func rewriteCast(expr, typeName string) string {
	typeName = strings.TrimSpace(typeName)
	normalized := strings.ToUpper(strings.Join(strings.Fields(typeName), " "))

	pt, ok := pgtypes.ParseDeclared(normalized)
	if !ok {
		// Unknown name: likely an enum or domain. Validation happens via
		// trigger on write, so the cast is semantically a no-op on read.
		return expr
	}

	switch pt {
	case pgtypes.Text, pgtypes.Varchar, pgtypes.Char:
		return fmt.Sprintf("CAST(%s AS TEXT)", expr)
	case pgtypes.Int2, pgtypes.Int4, pgtypes.Int8:
		return fmt.Sprintf("CAST(%s AS INTEGER)", expr)
	case pgtypes.Float4, pgtypes.Float8:
		return fmt.Sprintf("CAST(%s AS REAL)", expr)
	case pgtypes.Numeric:
		return fmt.Sprintf("decimal_from_text(CAST(%s AS TEXT))", expr)
	case pgtypes.Bool:
		return fmt.Sprintf("(CASE WHEN %s THEN 1 ELSE 0 END)", expr)
	default:
		return expr
	}
}
