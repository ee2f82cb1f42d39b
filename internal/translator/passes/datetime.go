package passes

import "regexp"

var (
	reNow          = regexp.MustCompile(`(?i)\bNOW\s*\(\s*\)`)
	reCurrentTS    = regexp.MustCompile(`(?i)\bCURRENT_TIMESTAMP\b(?:\s*\(\s*\))?`)
	reCurrentDate  = regexp.MustCompile(`(?i)\bCURRENT_DATE\b`)
	reCurrentTime  = regexp.MustCompile(`(?i)\bCURRENT_TIME\b(?:\s*\(\s*\))?`)
	reExtract      = regexp.MustCompile(`(?i)EXTRACT\s*\(\s*(\w+)\s+FROM\s+(.+?)\)`)
	reDateTrunc    = regexp.MustCompile(`(?i)DATE_TRUNC\s*\(\s*'(\w+)'\s*,\s*(.+?)\)`)
	reAtTimeZone   = regexp.MustCompile(`(?i)(\S+)\s+AT\s+TIME\s+ZONE\s+('[^']*'|\S+)`)
)

// DatetimeOps implements spec.md §4.4 pass 9. NOW()/CURRENT_* resolve to the
// INTEGER microsecond/day representation this system stores dates in, via
// package engine's pgsqlite_now_micros/pgsqlite_today_days scalar functions,
// so a freshly computed "now" round-trips the same way a stored column value
// does.
func DatetimeOps(sql string) string {
	sql = reNow.ReplaceAllString(sql, `pgsqlite_now_micros()`)
	sql = reCurrentTS.ReplaceAllString(sql, `pgsqlite_now_micros()`)
	sql = reCurrentDate.ReplaceAllString(sql, `pgsqlite_today_days()`)
	sql = reCurrentTime.ReplaceAllString(sql, `pgsqlite_now_time_micros()`)
	sql = reExtract.ReplaceAllString(sql, `pgsqlite_extract('$1',$2)`)
	sql = reDateTrunc.ReplaceAllString(sql, `pgsqlite_date_trunc('$1',$2)`)
	sql = reAtTimeZone.ReplaceAllString(sql, `pgsqlite_at_time_zone($1,$2)`)
	return sql
}
