package passes

import "regexp"

// pgCatalogPrefix matches `pg_catalog.` at a word boundary anywhere in the
// text. It is applied after comment stripping, so comments are gone, but
// it does not skip quoted strings: a `pg_catalog.` inside a string literal
// is removed too.
var pgCatalogPrefix = regexp.MustCompile(`(?i)\bpg_catalog\.`)

// StripSchemaPrefix removes `pg_catalog.` prefixes from identifiers (spec.md
// §4.4 pass 2: "this has no semantic effect because the catalog views live
// in the default namespace").
func StripSchemaPrefix(sql string) string {
	return pgCatalogPrefix.ReplaceAllString(sql, "")
}
