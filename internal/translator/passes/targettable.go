package passes

import "regexp"

var reSelectFromTable = regexp.MustCompile(`(?is)^\s*SELECT\b.*?\bFROM\s+("?[\w.]+"?)`)

// TargetTable extracts the statement's primary table: the INSERT/UPDATE
// target, the DELETE FROM table, or a SELECT's first FROM table. Package
// executor calls it and passes the result to the Translation Pipeline as
// the table whose Schema Cache entries its table-aware passes consult.
// Joins and subqueries are not resolved, only the first FROM table is
// reported, which is all those passes need for a single-table statement.
func TargetTable(sql string) string {
	if m := reInsertInto.FindStringSubmatch(sql); m != nil {
		return unquoteIdent(m[1])
	}
	if m := reFromOrUpdateTable.FindStringSubmatch(sql); m != nil {
		return unquoteIdent(m[1])
	}
	if m := reSelectFromTable.FindStringSubmatch(sql); m != nil {
		return unquoteIdent(m[1])
	}
	return ""
}
