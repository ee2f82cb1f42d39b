package passes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
)

// ConvertDatetimeLiteral implements the datetime half of spec.md §4.4 pass
// 6: a literal bound to a datetime column is converted to the INTEGER
// microseconds/days storage form before it ever reaches SQLite. Called by
// RewriteLiteralValues for each quoted string literal whose target column
// (known from the INSERT/UPDATE column list plus the Schema Cache) is a
// datetime type; bound parameters are not passed through it.
func ConvertDatetimeLiteral(pgType pgtypes.PgType, text string) (any, error) {
	switch pgType {
	case pgtypes.Date:
		t, err := parseAnyDate(text)
		if err != nil {
			return nil, err
		}
		return pgtypes.DaysFromDate(t), nil
	case pgtypes.Time, pgtypes.Timetz:
		t, err := parseAnyTime(text)
		if err != nil {
			return nil, err
		}
		return pgtypes.MicrosFromTimeOfDay(t), nil
	case pgtypes.Timestamp, pgtypes.Timestamptz:
		t, err := parseAnyTimestamp(text)
		if err != nil {
			return nil, err
		}
		return pgtypes.MicrosFromTimestamp(t), nil
	default:
		return text, nil
	}
}

// ConvertArrayLiteral implements the array half of pass 6: an `ARRAY[...]`
// or `'{...}'` literal bound to an array column is converted to the
// canonical JSON text this system stores array columns as.
func ConvertArrayLiteral(elements []any) (string, error) {
	return encodeCanonicalJSON(elements)
}

func encodeCanonicalJSON(elements []any) (string, error) {
	b, err := marshalJSON(elements)
	if err != nil {
		return "", fmt.Errorf("pgsqlite: encode array literal: %w", err)
	}
	return string(b), nil
}

// decodeArrayLiteral parses a PostgreSQL `{...}` array literal into its
// elements, typed according to elemType so ConvertArrayLiteral's JSON
// encoding round-trips numbers and booleans as JSON numbers/booleans rather
// than quoted strings. Reuses lib/pq's typed array Scanners (the read-side
// counterpart of pgtypes.EncodeArrayText's pq.GenericArray.Value write
// side) instead of hand-rolling `{...}` tokenizing.
func decodeArrayLiteral(elemType pgtypes.PgType, text string) ([]any, error) {
	switch elemType {
	case pgtypes.Bool:
		var elems pq.BoolArray
		if err := elems.Scan(text); err != nil {
			return nil, err
		}
		out := make([]any, len(elems))
		for i, v := range elems {
			out[i] = v
		}
		return out, nil
	case pgtypes.Int2, pgtypes.Int4, pgtypes.Int8:
		var elems pq.Int64Array
		if err := elems.Scan(text); err != nil {
			return nil, err
		}
		out := make([]any, len(elems))
		for i, v := range elems {
			out[i] = v
		}
		return out, nil
	case pgtypes.Float4, pgtypes.Float8:
		var elems pq.Float64Array
		if err := elems.Scan(text); err != nil {
			return nil, err
		}
		out := make([]any, len(elems))
		for i, v := range elems {
			out[i] = v
		}
		return out, nil
	default:
		var elems pq.StringArray
		if err := elems.Scan(text); err != nil {
			return nil, err
		}
		out := make([]any, len(elems))
		for i, v := range elems {
			out[i] = v
		}
		return out, nil
	}
}

// ColumnTypeFunc resolves a column's declared type from the statement's
// target table, consulting the Schema Cache. ArrayElementFunc is the same
// lookup for an array column's element type, recorded separately from the
// column's own ArrayOf marker type (spec.md §4.3: array columns carry a
// distinct element-type catalog row).
type ColumnTypeFunc func(column string) (pgtypes.PgType, bool)
type ArrayElementFunc func(column string) (pgtypes.PgType, bool)

var reInsertColumns = regexp.MustCompile(`(?is)^(\s*INSERT\s+INTO\s+"?[\w.]+"?\s*)\(([^()]*)\)(\s*VALUES\s*)(.*)$`)
var reUpdateTarget = regexp.MustCompile(`(?is)^\s*UPDATE\s+"?[\w.]+"?\s+SET\s+`)
var reWhereOrReturning = regexp.MustCompile(`(?i)\b(WHERE|RETURNING)\b`)

// RewriteLiteralValues implements spec.md §4.4 pass 6: INSERT ... VALUES and
// UPDATE ... SET literals bound to a datetime or array column are rewritten
// in place to the storage form the rest of the system expects (INTEGER
// day/microsecond counts for datetimes, canonical JSON for arrays), so a
// plain text literal never reaches SQLite unconverted. Anything this parser
// can't confidently recognize — parameter placeholders, expressions,
// literals for columns with no recorded type — is left exactly as written,
// the same conservative fallback CreateTable and SplitReturning use.
func RewriteLiteralValues(sql string, columnType ColumnTypeFunc, arrayElement ArrayElementFunc) string {
	if m := reInsertColumns.FindStringSubmatch(sql); m != nil {
		return rewriteInsertLiterals(m, columnType, arrayElement)
	}
	if reUpdateTarget.MatchString(sql) {
		return rewriteUpdateLiterals(sql, columnType, arrayElement)
	}
	return sql
}

func rewriteInsertLiterals(m []string, columnType ColumnTypeFunc, arrayElement ArrayElementFunc) string {
	prefix, colList, valuesKw, rest := m[1], m[2], m[3], m[4]

	var columns []string
	for _, c := range splitTopLevel(colList) {
		columns = append(columns, unquoteIdent(strings.TrimSpace(c)))
	}

	tuples, remainder := splitValueTuples(rest)
	if len(tuples) == 0 {
		return prefix + "(" + colList + ")" + valuesKw + rest
	}

	rewrittenTuples := make([]string, len(tuples))
	for ti, tuple := range tuples {
		values := splitTopLevel(tuple)
		for i := range values {
			if i >= len(columns) {
				break
			}
			values[i] = rewriteLiteralValue(values[i], columns[i], columnType, arrayElement)
		}
		rewrittenTuples[ti] = "(" + strings.Join(values, ", ") + ")"
	}

	return prefix + "(" + colList + ")" + valuesKw + strings.Join(rewrittenTuples, ", ") + remainder
}

// splitValueTuples splits a VALUES clause's body into its parenthesized
// tuples, returning whatever trails the last tuple (ON CONFLICT/RETURNING
// clauses, a stray semicolon) unparsed and untouched.
func splitValueTuples(s string) (tuples []string, remainder string) {
	i, n := 0, len(s)
	for {
		for i < n && isSQLSpace(s[i]) {
			i++
		}
		if i >= n || s[i] != '(' {
			break
		}
		start := i + 1
		depth := 1
		i++
		inQuote := byte(0)
		for i < n && depth > 0 {
			ch := s[i]
			if inQuote != 0 {
				if ch == inQuote {
					inQuote = 0
				}
				i++
				continue
			}
			switch ch {
			case '\'', '"':
				inQuote = ch
			case '(':
				depth++
			case ')':
				depth--
			}
			i++
		}
		if depth != 0 {
			return nil, s
		}
		tuples = append(tuples, s[start:i-1])

		j := i
		for j < n && isSQLSpace(s[j]) {
			j++
		}
		if j < n && s[j] == ',' {
			i = j + 1
			continue
		}
		break
	}
	return tuples, s[i:]
}

func isSQLSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func rewriteUpdateLiterals(sql string, columnType ColumnTypeFunc, arrayElement ArrayElementFunc) string {
	loc := reUpdateTarget.FindStringIndex(sql)
	if loc == nil {
		return sql
	}
	setStart := loc[1]
	rest := sql[setStart:]

	end := len(rest)
	if idx := reWhereOrReturning.FindStringIndex(rest); idx != nil {
		end = idx[0]
	}
	body := rest[:end]
	tail := rest[end:]

	assignments := splitTopLevel(body)
	for i, a := range assignments {
		eq := strings.IndexByte(a, '=')
		if eq < 0 {
			continue
		}
		col := unquoteIdent(strings.TrimSpace(a[:eq]))
		val := rewriteLiteralValue(a[eq+1:], col, columnType, arrayElement)
		assignments[i] = strings.TrimSpace(a[:eq]) + " = " + val
	}

	return sql[:setStart] + strings.Join(assignments, ", ") + tail
}

// rewriteLiteralValue converts a single VALUES/SET literal if its column
// resolves to a datetime or array type and the literal is a plain quoted
// string (not a placeholder, a function call, or an expression).
func rewriteLiteralValue(raw, column string, columnType ColumnTypeFunc, arrayElement ArrayElementFunc) string {
	trimmed := strings.TrimSpace(raw)
	text, ok := unquoteStringLiteral(trimmed)
	if !ok {
		return trimmed
	}

	pgType, ok := columnType(column)
	if !ok {
		return trimmed
	}

	switch {
	case pgType.IsDateTime():
		converted, err := ConvertDatetimeLiteral(pgType, text)
		if err != nil {
			return trimmed
		}
		return renderLiteral(converted)

	case pgType == pgtypes.ArrayOf:
		elemType, ok := arrayElement(column)
		if !ok {
			return trimmed
		}
		elements, err := decodeArrayLiteral(elemType, text)
		if err != nil {
			return trimmed
		}
		encoded, err := ConvertArrayLiteral(elements)
		if err != nil {
			return trimmed
		}
		return quoteStringLiteral(encoded)

	default:
		return trimmed
	}
}

func renderLiteral(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return quoteStringLiteral(x)
	default:
		return quoteStringLiteral(fmt.Sprintf("%v", x))
	}
}

// unquoteStringLiteral reports whether s is a single-quoted SQL string
// literal and, if so, returns its unescaped contents (`''` -> `'`). This is
// the value-literal counterpart of unquoteIdent, which unescapes
// double-quoted identifiers instead.
func unquoteStringLiteral(s string) (string, bool) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", false
	}
	return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), true
}

func quoteStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
