package executor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
	"github.com/pgsqlite/pgsqlite/internal/translator"
)

// The fixed WHERE-filter shapes this fast path recognizes, per spec.md
// §4.9: "column projection and WHERE filtering over a fixed operator set".
// Anything outside these shapes (including every JOIN) falls through to the
// Translation Pipeline and the migration-created SQLite views instead.
var (
	reNoJoin       = regexp.MustCompile(`(?i)\bjoin\b`)
	reCatalogTable = regexp.MustCompile(`(?is)^\s*SELECT\b.+?\bFROM\s+(?:pg_catalog\.)?(pg_class|pg_attribute|pg_type|pg_enum)\b(.*)$`)
	reRelnameEq    = regexp.MustCompile(`(?is)relname\s*=\s*'([^']*)'`)
	reAttrelidEq   = regexp.MustCompile(`(?is)attrelid\s*=\s*(\d+)`)
	reEnumTypOid   = regexp.MustCompile(`(?is)enumtypid\s*=\s*(\d+)`)
	reTypnameEq    = regexp.MustCompile(`(?is)typname\s*=\s*'([^']*)'`)
)

// oidTypeApprox stands in for PostgreSQL's "oid" type, which this system's
// closed PgType vocabulary (spec.md §4.6) does not enumerate separately;
// OID-valued catalog columns render identically to INT4 on the wire, so the
// approximation is invisible to a client.
const oidTypeApprox = pgtypes.Int4

// CatalogFastPath answers a single-table pg_catalog introspection query
// (spec.md §4.9) directly from the pg_catalog Emulation Layer, bypassing the
// Translation Pipeline and SQLite entirely. It returns ok=false when sqlText
// is not one of the recognized shapes, in which case the caller should fall
// through to the normal Translate+Execute path.
func (e *Executor) CatalogFastPath(ctx context.Context, sqlText string) (res Result, ok bool, err error) {
	if e.catEmu == nil || reNoJoin.MatchString(sqlText) {
		return Result{}, false, nil
	}
	m := reCatalogTable.FindStringSubmatch(sqlText)
	if m == nil {
		return Result{}, false, nil
	}
	relation, rest := strings.ToLower(m[1]), m[2]

	switch relation {
	case "pg_class":
		return e.fastPathClass(rest)
	case "pg_attribute":
		return e.fastPathAttribute(ctx, rest)
	case "pg_type":
		return e.fastPathType(ctx, rest)
	case "pg_enum":
		return e.fastPathEnum(ctx, rest)
	default:
		return Result{}, false, nil
	}
}

func classColumns() []ColumnDescriptor {
	return []ColumnDescriptor{
		{Name: "oid", PgType: oidTypeApprox},
		{Name: "relname", PgType: pgtypes.Text},
		{Name: "relnamespace", PgType: oidTypeApprox},
		{Name: "relkind", PgType: pgtypes.Char},
	}
}

func (e *Executor) fastPathClass(rest string) (Result, bool, error) {
	rm := reRelnameEq.FindStringSubmatch(rest)
	if rm == nil {
		return Result{}, false, nil
	}
	row := e.catEmu.ClassForTable(rm[1])
	return Result{
		Columns:    classColumns(),
		Rows:       [][]any{{row.OID, row.RelName, row.RelNamespace, row.RelKind}},
		CommandTag: "SELECT 1",
	}, true, nil
}

func attributeColumns() []ColumnDescriptor {
	return []ColumnDescriptor{
		{Name: "attrelid", PgType: oidTypeApprox},
		{Name: "attname", PgType: pgtypes.Text},
		{Name: "atttypid", PgType: oidTypeApprox},
		{Name: "atttypmod", PgType: pgtypes.Int4},
		{Name: "attnum", PgType: pgtypes.Int2},
		{Name: "attnotnull", PgType: pgtypes.Bool},
	}
}

func (e *Executor) fastPathAttribute(ctx context.Context, rest string) (Result, bool, error) {
	rm := reAttrelidEq.FindStringSubmatch(rest)
	if rm == nil {
		return Result{}, false, nil
	}
	relOID, err := strconv.ParseInt(rm[1], 10, 64)
	if err != nil {
		return Result{}, false, nil
	}

	table, found, err := e.tableForOID(ctx, relOID)
	if err != nil {
		return Result{}, false, err
	}
	if !found {
		return Result{Columns: attributeColumns(), CommandTag: "SELECT 0"}, true, nil
	}

	attrs, err := e.catEmu.AttributesForTable(ctx, table)
	if err != nil {
		return Result{}, false, err
	}
	rows := make([][]any, len(attrs))
	for i, a := range attrs {
		rows[i] = []any{a.AttRelID, a.AttName, int64(a.AttTypeID), int64(a.AttTypMod), int64(a.AttNum), a.AttNotNull}
	}
	return Result{Columns: attributeColumns(), Rows: rows, CommandTag: fmt.Sprintf("SELECT %d", len(rows))}, true, nil
}

func typeColumns() []ColumnDescriptor {
	return []ColumnDescriptor{
		{Name: "oid", PgType: oidTypeApprox},
		{Name: "typname", PgType: pgtypes.Text},
		{Name: "typtype", PgType: pgtypes.Char},
	}
}

func (e *Executor) fastPathType(ctx context.Context, rest string) (Result, bool, error) {
	rm := reTypnameEq.FindStringSubmatch(rest)
	if rm == nil {
		return Result{}, false, nil
	}
	row, found, err := e.catEmu.TypeForEnum(ctx, rm[1])
	if err != nil {
		return Result{}, false, err
	}
	if !found {
		return Result{Columns: typeColumns(), CommandTag: "SELECT 0"}, true, nil
	}
	return Result{
		Columns:    typeColumns(),
		Rows:       [][]any{{row.OID, row.TypName, row.TypType}},
		CommandTag: "SELECT 1",
	}, true, nil
}

func enumColumns() []ColumnDescriptor {
	return []ColumnDescriptor{
		{Name: "oid", PgType: oidTypeApprox},
		{Name: "enumtypid", PgType: oidTypeApprox},
		{Name: "enumlabel", PgType: pgtypes.Text},
		{Name: "enumsortorder", PgType: pgtypes.Float4},
	}
}

func (e *Executor) fastPathEnum(ctx context.Context, rest string) (Result, bool, error) {
	rm := reEnumTypOid.FindStringSubmatch(rest)
	if rm == nil {
		return Result{}, false, nil
	}
	typeOID, err := strconv.ParseInt(rm[1], 10, 64)
	if err != nil {
		return Result{}, false, nil
	}
	values, err := e.catEmu.EnumLabels(ctx, typeOID)
	if err != nil {
		return Result{}, false, err
	}
	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v.OID, v.EnumTypID, v.EnumLabel, v.EnumSortOrder}
	}
	return Result{Columns: enumColumns(), Rows: rows, CommandTag: fmt.Sprintf("SELECT %d", len(rows))}, true, nil
}

// tableForOID reverses translator.SyntheticOID by scanning every table
// known to the Metadata Catalog, since the hash itself is one-way. The
// number of user tables is small enough that a linear scan per lookup is
// not worth indexing.
func (e *Executor) tableForOID(ctx context.Context, oid int64) (string, bool, error) {
	cols, err := e.cat.AllColumnTypes(ctx)
	if err != nil {
		return "", false, err
	}
	seen := make(map[string]bool)
	for _, col := range cols {
		if seen[col.Table] {
			continue
		}
		seen[col.Table] = true
		if translator.SyntheticOID(col.Table) == oid {
			return col.Table, true, nil
		}
	}
	return "", false, nil
}
