package passes

import "regexp"

var (
	reArrayContains  = regexp.MustCompile(`(\S+)\s*@>\s*(\S+)`)
	reArrayContained = regexp.MustCompile(`(\S+)\s*<@\s*(\S+)`)
	reArrayOverlap   = regexp.MustCompile(`(\S+)\s*&&\s*(\S+)`)
	reArraySubscript = regexp.MustCompile(`([\w."]+)\[(\d+):(\d+)\]`)
	reArrayIndex     = regexp.MustCompile(`([\w."]+)\[(\d+)\]`)
	reAnyArray       = regexp.MustCompile(`(?i)(\S+)\s*(=|<>|!=|<|>|<=|>=)\s*ANY\s*\(\s*(\S+?)\s*\)`)
	reAllArray       = regexp.MustCompile(`(?i)(\S+)\s*(=|<>|!=|<|>|<=|>=)\s*ALL\s*\(\s*(\S+?)\s*\)`)
	reArrayAggDist   = regexp.MustCompile(`(?i)array_agg\s*\(\s*DISTINCT\s+(.+?)\)`)
	reUnnestOrd      = regexp.MustCompile(`(?i)unnest\s*\(\s*([^()]+?)\s*\)\s+WITH\s+ORDINALITY`)
	reUnnest         = regexp.MustCompile(`(?i)unnest\s*\(\s*([^()]+?)\s*\)`)
)

// ArrayOps implements spec.md §4.4 pass 7. Array concatenation `||` is
// NOT rewritten here or by any other pass: distinguishing array
// concatenation from string concatenation requires the type of the
// operands, and a blind `a || b` rewrite would wrongly capture every string
// concatenation, so `||` reaches SQLite unchanged.
func ArrayOps(sql string) string {
	sql = reArrayContains.ReplaceAllString(sql, `array_contains($1,$2)`)
	sql = reArrayContained.ReplaceAllString(sql, `array_contained($1,$2)`)
	sql = reArrayOverlap.ReplaceAllString(sql, `array_overlap($1,$2)`)
	sql = reArraySubscript.ReplaceAllString(sql, `array_slice($1,$2,$3)`)
	sql = reArrayIndex.ReplaceAllStringFunc(sql, func(m string) string {
		parts := reArrayIndex.FindStringSubmatch(m)
		return rewriteArrayIndex(parts[1], parts[2])
	})
	sql = reAnyArray.ReplaceAllStringFunc(sql, func(m string) string {
		p := reAnyArray.FindStringSubmatch(m)
		return anyExpr(p[1], p[2], p[3])
	})
	sql = reAllArray.ReplaceAllStringFunc(sql, func(m string) string {
		p := reAllArray.FindStringSubmatch(m)
		return allExpr(p[1], p[2], p[3])
	})
	sql = reArrayAggDist.ReplaceAllString(sql, `array_agg_distinct($1)`)
	sql = reUnnestOrd.ReplaceAllString(sql, `(SELECT value, key+1 AS ordinality FROM json_each($1))`)
	sql = reUnnest.ReplaceAllString(sql, `(SELECT value FROM json_each($1))`)
	return sql
}

// rewriteArrayIndex converts PostgreSQL's 1-based `a[i]` subscript into
// SQLite's 0-based json_extract path.
func rewriteArrayIndex(col, idx string) string {
	return "json_extract(" + col + ",'$[' || (" + idx + "-1) || ']')"
}

func anyExpr(lhs, op, arr string) string {
	return "EXISTS (SELECT 1 FROM json_each(" + arr + ") WHERE " + lhs + " " + op + " value)"
}

func allExpr(lhs, op, arr string) string {
	return "NOT EXISTS (SELECT 1 FROM json_each(" + arr + ") WHERE NOT (" + lhs + " " + op + " value))"
}
