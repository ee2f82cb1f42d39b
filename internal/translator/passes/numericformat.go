package passes

import (
	"fmt"
	"regexp"
)

var reNumericCastText = regexp.MustCompile(`(?i)CAST\s*\(\s*(\S+)\s+AS\s+TEXT\s*\)`)

// WrapNumericFormat implements spec.md §4.4 pass 10 for the columns scaleOf
// resolves: `numeric_col::text` (already rewritten by the cast pass to
// `CAST(numeric_col AS TEXT)`) becomes `numeric_format(numeric_col, scale)`
// so the declared scale is honored on output, instead of SQLite's default
// text rendering of whatever precision the TEXT storage happens to carry.
func WrapNumericFormat(sql string, scaleOf func(column string) (int, bool)) string {
	return reNumericCastText.ReplaceAllStringFunc(sql, func(m string) string {
		parts := reNumericCastText.FindStringSubmatch(m)
		col := parts[1]
		scale, ok := scaleOf(col)
		if !ok {
			return m
		}
		return fmt.Sprintf("numeric_format(%s,%d)", col, scale)
	})
}
