package passes

import "regexp"

var (
	reJSONPathTextText = regexp.MustCompile(`(\S+)\s*#>>\s*('\{[^}]*\}'|\S+)`)
	reJSONPathJSON     = regexp.MustCompile(`(\S+)\s*#>\s*('\{[^}]*\}'|\S+)`)
	reJSONGetText      = regexp.MustCompile(`(\S+)\s*->>\s*(\S+)`)
	reJSONGetJSON      = regexp.MustCompile(`(\S+)\s*->\s*(\S+)`)
	reJSONBContains    = regexp.MustCompile(`(\S+)\s*@>\s*(\S+)`)
	reJSONBContained   = regexp.MustCompile(`(\S+)\s*<@\s*(\S+)`)
	reJSONHasKeyAny    = regexp.MustCompile(`(\S+)\s*\?\|\s*(\S+)`)
	reJSONHasKeyAll    = regexp.MustCompile(`(\S+)\s*\?&\s*(\S+)`)
	reJSONHasKey       = regexp.MustCompile(`(\S+)\s*\?\s*(\S+)`)
)

// JSONOps implements spec.md §4.4 pass 8. It does not touch `@>`/`<@`:
// package translator runs ArrayOps first, which rewrites both to
// array_contains/array_contained, and then redispatchContainment switches
// those calls to jsonb_contains/jsonb_contained when the Schema Cache says
// the left operand is a JSON/JSONB column.
func JSONOps(sql string) string {
	sql = reJSONPathTextText.ReplaceAllString(sql, `pgsqlite_json_path_text($1,$2)`)
	sql = reJSONPathJSON.ReplaceAllString(sql, `pgsqlite_json_path_json($1,$2)`)
	sql = reJSONGetText.ReplaceAllString(sql, `pgsqlite_json_get_text($1,$2)`)
	sql = reJSONGetJSON.ReplaceAllString(sql, `pgsqlite_json_get_json($1,$2)`)
	sql = reJSONHasKeyAny.ReplaceAllString(sql, `pgsqlite_json_has_key_any($1,$2)`)
	sql = reJSONHasKeyAll.ReplaceAllString(sql, `pgsqlite_json_has_key_all($1,$2)`)
	sql = reJSONHasKey.ReplaceAllString(sql, `pgsqlite_json_has_key($1,$2)`)
	return sql
}

// JSONContainment rewrites every `@>`/`<@` to the jsonb_* functions,
// whatever the operand types. The translator pipeline does not call it; it
// reaches the jsonb_* forms through redispatchContainment instead.
func JSONContainment(sql string) string {
	sql = reJSONBContains.ReplaceAllString(sql, `jsonb_contains($1,$2)`)
	sql = reJSONBContained.ReplaceAllString(sql, `jsonb_contained($1,$2)`)
	return sql
}
