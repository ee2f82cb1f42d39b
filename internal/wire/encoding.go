package wire

import (
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// negotiateClientEncoding resolves the client_encoding startup parameter
// against golang.org/x/text's encoding registry (the teacher's go.mod
// already requires golang.org/x/text; this repurposes it from MySQL text
// collation to PostgreSQL's client_encoding negotiation). SQLite itself is
// UTF-8 only, so the server always reports client_encoding=UTF8 regardless;
// the returned bool tells the caller whether the client actually asked for
// something else, so it can be logged instead of silently ignored.
func negotiateClientEncoding(requested string) (name string, requestedNonUTF8 bool) {
	if requested == "" || strings.EqualFold(requested, "UTF8") {
		return "UTF8", false
	}
	enc, err := htmlindex.Get(requested)
	if err != nil {
		return "UTF8", true
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return "UTF8", true
	}
	return "UTF8", !strings.EqualFold(canonical, "utf-8")
}
