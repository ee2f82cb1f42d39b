package passes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
)

// SchemaRecorder is what the CREATE TABLE translator needs from the
// Metadata Catalog (package catalog) to persist what it learns about each
// column, without importing that package directly and risking a cycle with
// its own consumers.
type SchemaRecorder interface {
	RecordColumn(ctx context.Context, table, column string, pgType pgtypes.PgType, typmod pgtypes.Typmod) error
	RecordStringConstraint(ctx context.Context, table, column string, maxLength int, isChar bool) error
	RecordNumericConstraint(ctx context.Context, table, column string, precision, scale int) error
	RecordArrayType(ctx context.Context, table, column, elementType string, dimensions int) error
	RecordEnumUsage(ctx context.Context, table, column, enumType string) error
	EnumOID(ctx context.Context, name string) (int64, bool, error)
}

var createTableRE = regexp.MustCompile(`(?is)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?("?[\w.]+"?)\s*\((.*)\)\s*;?\s*$`)

// CreateTable implements spec.md §4.4 pass 5. It recognizes CREATE TABLE,
// parses the column list, maps each declared PostgreSQL type to its SQLite
// storage type per §4.5, records catalog metadata for every column, and
// emits the rewritten DDL. Non-CREATE-TABLE statements are returned
// unchanged with ok=false so the pipeline treats them as not-DDL. A column
// definition it cannot parse, or a failed catalog write, is returned as an
// error.
func CreateTable(ctx context.Context, sql string, md *Metadata, rec SchemaRecorder) (string, bool, error) {
	m := createTableRE.FindStringSubmatch(sql)
	if m == nil {
		return sql, false, nil
	}
	table := unquoteIdent(m[1])
	body := m[2]

	defs := splitTopLevel(body)
	var rewritten []string

	for _, def := range defs {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		if isTableConstraint(def) {
			rewritten = append(rewritten, def)
			continue
		}

		col, err := parseColumnDef(def)
		if err != nil {
			return sql, false, fmt.Errorf("pgsqlite: create table %s: %w", table, err)
		}

		storage, err := rewriteColumnType(ctx, table, col, rec)
		if err != nil {
			return sql, false, err
		}

		line := fmt.Sprintf(`"%s" %s`, col.name, storage)
		if col.isPrimaryKey && col.isSerial {
			line += " PRIMARY KEY AUTOINCREMENT"
		} else {
			if col.isPrimaryKey {
				line += " PRIMARY KEY"
			}
			if col.notNull {
				line += " NOT NULL"
			}
			if col.unique {
				line += " UNIQUE"
			}
			if col.defaultExpr != "" {
				line += " DEFAULT " + col.defaultExpr
			}
		}
		rewritten = append(rewritten, line)
	}

	md.IsDDL = true
	md.Table = table

	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (%s)`, table, strings.Join(rewritten, ", ")), true, nil
}

type columnDef struct {
	name         string
	typeName     string // normalized, e.g. "TIMESTAMP WITH TIME ZONE", "VARCHAR", "ENUM:status", "T[]"
	length       int
	hasLength    bool
	precision    int
	scale        int
	hasPrecScale bool
	arrayDims    int
	isSerial     bool
	isPrimaryKey bool
	notNull      bool
	unique       bool
	defaultExpr  string
}

var identOrQuoted = regexp.MustCompile(`^("(?:[^"]|"")+"|[A-Za-z_][A-Za-z0-9_]*)\s*(.*)$`)

func parseColumnDef(def string) (columnDef, error) {
	m := identOrQuoted.FindStringSubmatch(def)
	if m == nil {
		return columnDef{}, fmt.Errorf("cannot parse column definition %q", def)
	}
	col := columnDef{name: unquoteIdent(m[1])}
	rest := m[2]

	typeName, arrayDims, remainder := parseTypeName(rest)
	col.typeName = typeName
	col.arrayDims = arrayDims

	upperRemainder := strings.ToUpper(remainder)
	col.isSerial = strings.HasPrefix(strings.ToUpper(typeName), "SERIAL") || strings.HasPrefix(strings.ToUpper(typeName), "BIGSERIAL") || strings.HasPrefix(strings.ToUpper(typeName), "SMALLSERIAL")
	col.isPrimaryKey = strings.Contains(upperRemainder, "PRIMARY KEY")
	col.notNull = strings.Contains(upperRemainder, "NOT NULL")
	col.unique = strings.Contains(upperRemainder, "UNIQUE")

	if idx := strings.Index(upperRemainder, "DEFAULT "); idx >= 0 {
		tail := strings.TrimSpace(remainder[idx+len("DEFAULT "):])
		col.defaultExpr = firstToken(tail)
	}

	if lp := strings.IndexByte(typeName, '('); lp >= 0 {
		inner := typeName[lp+1 : len(typeName)-1]
		typeName = typeName[:lp]
		col.typeName = strings.TrimSpace(typeName)
		parts := strings.Split(inner, ",")
		if len(parts) == 2 {
			p, _ := strconv.Atoi(strings.TrimSpace(parts[0]))
			s, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
			col.precision, col.scale, col.hasPrecScale = p, s, true
		} else if len(parts) == 1 {
			n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
			if err == nil {
				col.length, col.hasLength = n, true
			}
		}
	}

	_ = remainder
	return col, nil
}

// multiWordTypes lists the declared type spellings that span more than one
// token, each listed before any shorter spelling it begins with (CHARACTER
// VARYING before CHARACTER) so the longest match wins (spec.md §4.4
// pass 5: "Multi-word types ... are parsed as a unit").
var multiWordTypes = []string{
	"TIMESTAMP WITH TIME ZONE", "TIMESTAMP WITHOUT TIME ZONE",
	"TIME WITH TIME ZONE", "TIME WITHOUT TIME ZONE",
	"DOUBLE PRECISION", "BIT VARYING", "CHARACTER VARYING", "CHARACTER",
}

func parseTypeName(rest string) (typeName string, arrayDims int, remainder string) {
	rest = strings.TrimSpace(rest)
	upper := strings.ToUpper(rest)

	for _, mw := range multiWordTypes {
		if strings.HasPrefix(upper, mw) {
			tail := strings.TrimSpace(rest[len(mw):])
			length, tail2 := consumeLengthSuffix(tail)
			name := mw
			if length != "" {
				name += "(" + length + ")"
			}
			dims, tail3 := consumeArraySuffix(tail2)
			return name, dims, tail3
		}
	}

	// Single-word type, optionally with (n) or (p,s), optionally array
	// brackets, followed by column constraints.
	i := 0
	for i < len(rest) && (isIdentByte(rest[i])) {
		i++
	}
	name := rest[:i]
	tail := rest[i:]

	length, tail2 := consumeLengthSuffix(tail)
	if length != "" {
		name += "(" + length + ")"
	}
	dims, tail3 := consumeArraySuffix(tail2)
	return name, dims, tail3
}

func consumeLengthSuffix(s string) (string, string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") {
		return "", s
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[1:i], strings.TrimSpace(s[i+1:])
			}
		}
	}
	return "", s
}

func consumeArraySuffix(s string) (int, string) {
	dims := 0
	s = strings.TrimSpace(s)
	for strings.HasPrefix(s, "[]") {
		dims++
		s = strings.TrimSpace(s[2:])
	}
	// PostgreSQL also allows ARRAY / "integer ARRAY[3]" style; treat bare
	// ARRAY keyword as one dimension.
	if strings.HasPrefix(strings.ToUpper(s), "ARRAY") {
		dims++
		s = strings.TrimSpace(s[len("ARRAY"):])
		if strings.HasPrefix(s, "[") {
			if end := strings.IndexByte(s, ']'); end >= 0 {
				s = strings.TrimSpace(s[end+1:])
			}
		}
	}
	return dims, s
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func firstToken(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	// Keep function-call defaults like now() or nextval('x') intact instead
	// of truncating at the first space inside parens.
	if depth := strings.Count(fields[0], "("); depth > strings.Count(fields[0], ")") {
		return strings.Join(fields, " ")
	}
	return strings.TrimRight(fields[0], ",")
}

func rewriteColumnType(ctx context.Context, table string, col columnDef, rec SchemaRecorder) (string, error) {
	baseType := strings.ToUpper(strings.Join(strings.Fields(col.typeName), " "))
	if lp := strings.IndexByte(baseType, '('); lp >= 0 {
		baseType = baseType[:lp]
	}

	if col.arrayDims > 0 {
		elementType := baseType
		if err := rec.RecordArrayType(ctx, table, col.name, strings.ToLower(elementType), col.arrayDims); err != nil {
			return "", err
		}
		if err := rec.RecordColumn(ctx, table, col.name, pgtypes.ArrayOf, pgtypes.NoTypmod); err != nil {
			return "", err
		}
		return "TEXT", nil
	}

	if col.isSerial {
		pt := pgtypes.Int4
		if strings.HasPrefix(baseType, "BIGSERIAL") {
			pt = pgtypes.Int8
		}
		if err := rec.RecordColumn(ctx, table, col.name, pt, pgtypes.NoTypmod); err != nil {
			return "", err
		}
		return "INTEGER", nil
	}

	pt, ok := pgtypes.ParseDeclared(baseType)
	if !ok {
		// Not a built-in: treat as a user-defined ENUM. Validation is a
		// trigger attached after table creation (package translator's
		// enum-trigger step, driven by this recorded usage).
		if err := rec.RecordEnumUsage(ctx, table, col.name, strings.ToLower(col.typeName)); err != nil {
			return "", err
		}
		if err := rec.RecordColumn(ctx, table, col.name, pgtypes.Enum, pgtypes.NoTypmod); err != nil {
			return "", err
		}
		return "TEXT", nil
	}

	typmod := pgtypes.NoTypmod
	switch pt {
	case pgtypes.Varchar, pgtypes.Char:
		if col.hasLength {
			typmod = pgtypes.NewVarcharTypmod(col.length)
			if err := rec.RecordStringConstraint(ctx, table, col.name, col.length, pt == pgtypes.Char); err != nil {
				return "", err
			}
		}
	case pgtypes.Numeric:
		if col.hasPrecScale {
			typmod = pgtypes.NewNumericTypmod(col.precision, col.scale)
			if err := rec.RecordNumericConstraint(ctx, table, col.name, col.precision, col.scale); err != nil {
				return "", err
			}
		}
	}

	if err := rec.RecordColumn(ctx, table, col.name, pt, typmod); err != nil {
		return "", err
	}
	return pt.SQLiteStorage(), nil
}

func isTableConstraint(def string) bool {
	upper := strings.ToUpper(strings.TrimSpace(def))
	for _, kw := range []string{"PRIMARY KEY", "FOREIGN KEY", "UNIQUE", "CHECK", "CONSTRAINT"} {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}

// splitTopLevel splits a comma-separated list, ignoring commas nested inside
// parentheses or quoted strings.
func splitTopLevel(s string) []string {
	var out []string
	depth := 0
	start := 0
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inQuote != 0 {
			if ch == inQuote {
				inQuote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			inQuote = ch
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func unquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}
