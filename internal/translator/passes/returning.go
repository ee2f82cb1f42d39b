package passes

import (
	"fmt"
	"regexp"
	"strings"
)

var reReturning = regexp.MustCompile(`(?is)^\s*(INSERT|UPDATE|DELETE)\b(.*?)\sRETURNING\s+(.+?)\s*;?\s*$`)

// FollowUp is the follow-up SELECT the Query Executor runs after the
// mutation to simulate RETURNING (spec.md §4.4 pass 13). Table is populated
// for all three kinds; PredicateSQL only for UPDATE/DELETE, where the original
// statement's WHERE clause (if any) is reused verbatim since the rows it
// matched before the mutation are exactly the rows RETURNING should report.
type FollowUp struct {
	Kind          string // "insert", "update", "delete"
	Columns       string // the column list between RETURNING and the statement end, as written
	Table         string
	PredicateSQL  string // WHERE clause text (without the WHERE keyword), empty if none
}

// SplitReturning implements spec.md §4.4 pass 13: it recognizes a trailing
// RETURNING clause, strips it from the statement, and returns enough
// information for package translator to build the follow-up SELECT
// ("executes the mutation, then runs a follow-up SELECT against the same
// predicate or last_insert_rowid()").
func SplitReturning(sql string) (stripped string, fu FollowUp, ok bool) {
	m := reReturning.FindStringSubmatch(sql)
	if m == nil {
		return sql, FollowUp{}, false
	}

	kind := strings.ToLower(m[1])
	body := m[2]
	columns := strings.TrimSpace(m[3])
	// tableAndWhere/insertTargetTable need the statement keyword back in
	// front of body (group 2 starts right after it was consumed), so match
	// against the reassembled, RETURNING-stripped statement rather than the
	// bare body.
	stripped = strings.TrimSpace(m[1] + body)

	fu = FollowUp{Kind: kind, Columns: columns}

	switch kind {
	case "update", "delete":
		fu.Table, fu.PredicateSQL = tableAndWhere(stripped)
	case "insert":
		fu.Table = insertTargetTable(stripped)
	}

	return stripped, fu, true
}

var reWhereClause = regexp.MustCompile(`(?is)\bWHERE\s+(.+)$`)
var reFromOrUpdateTable = regexp.MustCompile(`(?is)^\s*(?:UPDATE\s+|DELETE\s+FROM\s+)("?[\w.]+"?)`)
var reInsertInto = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+("?[\w.]+"?)`)

func tableAndWhere(body string) (table, where string) {
	if m := reFromOrUpdateTable.FindStringSubmatch(body); m != nil {
		table = unquoteIdent(m[1])
	}
	if m := reWhereClause.FindStringSubmatch(body); m != nil {
		where = strings.TrimSpace(m[1])
	}
	return table, where
}

func insertTargetTable(body string) string {
	if m := reInsertInto.FindStringSubmatch(body); m != nil {
		return unquoteIdent(m[1])
	}
	return ""
}

// BuildFollowUpSelect renders the follow-up SELECT statement for fu, given
// the last_insert_rowid() the mutation produced (used only for "insert",
// where spec.md prescribes falling back to last_insert_rowid() when no
// natural predicate exists).
func BuildFollowUpSelect(fu FollowUp, lastInsertRowID int64) string {
	switch fu.Kind {
	case "insert":
		return fmt.Sprintf(`SELECT %s FROM "%s" WHERE rowid = %d`, fu.Columns, fu.Table, lastInsertRowID)
	case "update", "delete":
		if fu.PredicateSQL == "" {
			return fmt.Sprintf(`SELECT %s FROM "%s"`, fu.Columns, fu.Table)
		}
		return fmt.Sprintf(`SELECT %s FROM "%s" WHERE %s`, fu.Columns, fu.Table, fu.PredicateSQL)
	default:
		return ""
	}
}
