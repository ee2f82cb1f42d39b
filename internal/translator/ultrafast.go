package translator

import "strings"

// forbiddenMarkers lists byte sequences whose presence means a statement
// might need one of the thirteen passes. isUltraFastPath must never accept a
// statement that actually needs rewriting, so this list errs wide: any
// marker merely associated with a pass's trigger condition disqualifies the
// fast path, even where a careful parse might prove it harmless (e.g. "::"
// inside a quoted string literal). A cheap false rejection just costs one
// statement the full pipeline; a false acceptance would be a correctness
// bug.
var forbiddenMarkers = []string{
	"::",       // cast
	"cast(",    // cast
	"join",     // multi-table query, out of scope for the fast path
	"with ",    // CTE
	"returning",
	"array[",
	"@>",
	"<@",
	"->>",
	"->",
	"#>",
	"~",
	"||",
	"now(",
	"current_timestamp",
	"current_date",
	"current_time",
	"extract(",
	"date_trunc(",
	"at time zone",
	"pg_catalog",
	"unnest(",
	"array_agg(",
	"numeric",
	"decimal",
}

// isUltraFastPath implements spec.md §4.4's ultra-fast path classifier: a
// byte-level scan over a lowercased copy of the statement for anything that
// might require translation. Only plain single-table SELECT/INSERT/
// UPDATE/DELETE statements with no casts, datetime functions, array/JSON
// operators, schema qualification, or RETURNING clauses pass.
func isUltraFastPath(sql string) bool {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "select "):
	case strings.HasPrefix(lower, "insert "):
	case strings.HasPrefix(lower, "update "):
	case strings.HasPrefix(lower, "delete "):
	default:
		return false
	}

	for _, marker := range forbiddenMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}

	return true
}
