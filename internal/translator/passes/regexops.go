package passes

import "regexp"

// Regex operator forms spec.md §4.4 pass 3 names, including the verbose
// `OPERATOR(pg_catalog.~)` spelling a client driver sometimes emits for
// schema-qualified operator resolution. Longer/more-specific patterns are
// listed first so the not-negated forms don't shadow the negated ones.
var (
	reNotIMatch = regexp.MustCompile(`(?i)(\S+)\s*(?:OPERATOR\(pg_catalog\.)?!~\*\)?\s*(\S+)`)
	reIMatch    = regexp.MustCompile(`(?i)(\S+)\s*(?:OPERATOR\(pg_catalog\.)?~\*\)?\s*(\S+)`)
	reNotMatch  = regexp.MustCompile(`(?i)(\S+)\s*(?:OPERATOR\(pg_catalog\.)?!~\)?\s*(\S+)`)
	reMatch     = regexp.MustCompile(`(?i)(\S+)\s*(?:OPERATOR\(pg_catalog\.)?~\)?\s*(\S+)`)
)

// RegexOperators rewrites PostgreSQL's regex match operators into the custom
// SQLite `REGEXP`/`REGEXPI` scalar functions registered by package engine
// (spec.md §4.4 pass 3). SQLite's argument order for a user function backing
// the REGEXP keyword is (pattern, subject); `a ~ b` means "does a match
// pattern b", so the rewritten call is REGEXP(b, a).
func RegexOperators(sql string) string {
	sql = reNotIMatch.ReplaceAllString(sql, `(NOT REGEXPI($2,$1))`)
	sql = reIMatch.ReplaceAllString(sql, `REGEXPI($2,$1)`)
	sql = reNotMatch.ReplaceAllString(sql, `(NOT REGEXP($2,$1))`)
	sql = reMatch.ReplaceAllString(sql, `REGEXP($2,$1)`)
	return sql
}
