package passes

import "strings"

// TargetColumns reports an INSERT's column list, or an UPDATE's assigned
// columns, in the order their values are written in the SQL text. Since
// database/sql binds positional args to `$n`/`?` placeholders in the order
// they appear in the statement regardless of syntax, this order is also the
// order bound args arrive in, letting a caller zip args[i] with the column
// it targets for constraint validation (spec.md §4.8, C11).
func TargetColumns(sql string) []string {
	if m := reInsertColumns.FindStringSubmatch(sql); m != nil {
		var cols []string
		for _, c := range splitTopLevel(m[2]) {
			cols = append(cols, unquoteIdent(strings.TrimSpace(c)))
		}
		return cols
	}

	if loc := reUpdateTarget.FindStringIndex(sql); loc != nil {
		rest := sql[loc[1]:]
		end := len(rest)
		if idx := reWhereOrReturning.FindStringIndex(rest); idx != nil {
			end = idx[0]
		}
		var cols []string
		for _, a := range splitTopLevel(rest[:end]) {
			eq := strings.IndexByte(a, '=')
			if eq < 0 {
				continue
			}
			cols = append(cols, unquoteIdent(strings.TrimSpace(a[:eq])))
		}
		return cols
	}

	return nil
}
