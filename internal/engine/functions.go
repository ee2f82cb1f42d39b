package engine

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
)

// registerFunctions attaches every custom scalar and aggregate function
// spec.md §4.1 requires onto a freshly opened SQLite connection. It is called
// from the driver's ConnectHook, once per underlying connection (mattn/go-sqlite3
// gives each pooled connection its own registration scope).
func registerFunctions(conn *sqlite3.SQLiteConn) error {
	scalarFuncs := map[string]any{
		"decimal_from_text":       decimalFromText,
		"decimal_add":             decimalAdd,
		"decimal_sub":             decimalSub,
		"decimal_mul":             decimalMul,
		"decimal_div":             decimalDiv,
		"decimal_cmp":             decimalCmp,
		"decimal_round":           decimalRound,
		"numeric_format":          numericFormat,
		"pgsqlite_json_get_text":  jsonGetText,
		"pgsqlite_json_get_json":  jsonGetJSON,
		"pgsqlite_json_path_text": jsonPathText,
		"pgsqlite_json_path_json": jsonPathJSON,
		"jsonb_contains":          jsonContains,
		"jsonb_contained":         jsonContained,
		"pgsqlite_json_has_key":      jsonHasKey,
		"pgsqlite_json_has_key_any":  jsonHasKeyAny,
		"pgsqlite_json_has_key_all":  jsonHasKeyAll,
		"array_contains":          arrayContains,
		"array_contained":         arrayContained,
		"array_overlap":           arrayOverlap,
		"array_cat":               arrayCat,
		"array_position":          arrayPosition,
		"array_remove":            arrayRemove,
		"array_replace":           arrayReplace,
		"array_slice":             arraySlice,
		"array_length":            arrayLength,
		"regexp":                  regexpMatch,  // backs the `~` operator via SQLite's REGEXP keyword
		"regexpi":                 iregexpMatch, // backs `~*`
		"oid_hash":                oidHash,
		"pgsqlite_bool_text":      boolText,
		"pgsqlite_date_to_days":        dateToDays,
		"pgsqlite_time_to_micros":      timeToMicros,
		"pgsqlite_timestamp_to_micros": timestampToMicros,
		"pgsqlite_now_micros":          nowMicros,
		"pgsqlite_today_days":          todayDays,
		"pgsqlite_now_time_micros":     nowTimeMicros,
		"pgsqlite_extract":             extractField,
		"pgsqlite_date_trunc":          dateTrunc,
		"pgsqlite_at_time_zone":        atTimeZone,
		"pgsqlite_format_type":         formatType,
		"pgsqlite_userbyid":            userByID,
		"pgsqlite_table_is_visible":    tableIsVisible,
	}

	for name, fn := range scalarFuncs {
		if err := conn.RegisterFunc(name, fn, true); err != nil {
			return fmt.Errorf("engine: registering scalar function %s: %w", name, err)
		}
	}

	if err := conn.RegisterAggregator("array_agg", newArrayAgg, false); err != nil {
		return fmt.Errorf("engine: registering array_agg: %w", err)
	}
	if err := conn.RegisterAggregator("array_agg_distinct", newArrayAggDistinct, false); err != nil {
		return fmt.Errorf("engine: registering array_agg_distinct: %w", err)
	}
	if err := conn.RegisterAggregator("array_agg_ordered", newArrayAggOrdered, false); err != nil {
		return fmt.Errorf("engine: registering array_agg_ordered: %w", err)
	}

	return nil
}

// --- decimal arithmetic (spec.md §4.1), backing pass 11's decimal_* rewrite ---

func decimalFromText(s string) (string, error) {
	r, err := pgtypes.ParseDecimal(s)
	if err != nil {
		return "", err
	}
	return pgtypes.FormatScale(r, decimalScale(s)), nil
}

func decimalAdd(a, b string) (string, error) { return decimalBinOp(a, b, (*bigRat).add) }
func decimalSub(a, b string) (string, error) { return decimalBinOp(a, b, (*bigRat).sub) }
func decimalMul(a, b string) (string, error) { return decimalBinOp(a, b, (*bigRat).mul) }
func decimalDiv(a, b string) (string, error) {
	rb, err := pgtypes.ParseDecimal(b)
	if err != nil {
		return "", err
	}
	if rb.Sign() == 0 {
		return "", fmt.Errorf("engine: division by zero")
	}
	return decimalBinOp(a, b, (*bigRat).div)
}

func decimalCmp(a, b string) (int64, error) {
	ra, err := pgtypes.ParseDecimal(a)
	if err != nil {
		return 0, err
	}
	rb, err := pgtypes.ParseDecimal(b)
	if err != nil {
		return 0, err
	}
	return int64(ra.Cmp(rb)), nil
}

func decimalRound(a string, scale int64) (string, error) {
	r, err := pgtypes.ParseDecimal(a)
	if err != nil {
		return "", err
	}
	return pgtypes.FormatScale(r, int(scale)), nil
}

// numericFormat backs pass 10 (numeric-formatting translator): reformat a
// stored NUMERIC value to its declared scale for ::text casts.
func numericFormat(a string, scale int64) (string, error) {
	return decimalRound(a, scale)
}

func decimalScale(s string) int {
	// Default display scale when none is declared: PostgreSQL's NUMERIC
	// without a modifier preserves the literal's own scale.
	return scaleOf(strings.TrimSpace(s))
}

// --- JSON path helpers (spec.md §4.1), avoiding SQLite json_extract's use of
// '$' which collides with the `$n` parameter placeholder syntax ---

func jsonGetText(doc, key string) (any, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, nil //nolint:nilerr // non-object input yields SQL NULL, not an error
	}
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	return rawToText(v), nil
}

func jsonGetJSON(doc, key string) (any, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, nil //nolint:nilerr
	}
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	return string(v), nil
}

func jsonPathText(doc, pathCSV string) (any, error) {
	v, err := jsonWalk(doc, splitCSV(pathCSV))
	if err != nil || v == nil {
		return nil, nil //nolint:nilerr
	}
	return rawToText(*v), nil
}

func jsonPathJSON(doc, pathCSV string) (any, error) {
	v, err := jsonWalk(doc, splitCSV(pathCSV))
	if err != nil || v == nil {
		return nil, nil //nolint:nilerr
	}
	return string(*v), nil
}

func jsonWalk(doc string, path []string) (*json.RawMessage, error) {
	cur := json.RawMessage(doc)
	for _, segment := range path {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(cur, &m); err != nil {
			return nil, nil //nolint:nilerr
		}
		v, ok := m[segment]
		if !ok {
			return nil, nil
		}
		cur = v
	}
	return &cur, nil
}

func rawToText(v json.RawMessage) string {
	s := strings.TrimSpace(string(v))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var unquoted string
		if err := json.Unmarshal(v, &unquoted); err == nil {
			return unquoted
		}
	}
	return s
}

func splitCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

func jsonContains(container, contained string) (bool, error) {
	var a, b any
	if err := json.Unmarshal([]byte(container), &a); err != nil {
		return false, nil //nolint:nilerr
	}
	if err := json.Unmarshal([]byte(contained), &b); err != nil {
		return false, nil //nolint:nilerr
	}
	return jsonValueContains(a, b), nil
}

func jsonContained(contained, container string) (bool, error) {
	return jsonContains(container, contained)
}

func jsonValueContains(container, contained any) bool {
	switch c := container.(type) {
	case map[string]any:
		sub, ok := contained.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range sub {
			cv, exists := c[k]
			if !exists || !jsonValueContains(cv, v) {
				return false
			}
		}
		return true
	case []any:
		sub, ok := contained.([]any)
		if !ok {
			return containsElement(c, contained)
		}
		for _, se := range sub {
			if !containsElement(c, se) {
				return false
			}
		}
		return true
	default:
		return fmt.Sprint(container) == fmt.Sprint(contained)
	}
}

func containsElement(arr []any, elem any) bool {
	for _, e := range arr {
		if jsonValueContains(e, elem) || fmt.Sprint(e) == fmt.Sprint(elem) {
			return true
		}
	}
	return false
}

func jsonHasKey(doc, key string) (bool, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return false, nil //nolint:nilerr
	}
	_, ok := m[key]
	return ok, nil
}

func jsonHasKeyAny(doc, keysCSV string) (bool, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return false, nil //nolint:nilerr
	}
	for _, k := range splitCSV(keysCSV) {
		if _, ok := m[k]; ok {
			return true, nil
		}
	}
	return false, nil
}

func jsonHasKeyAll(doc, keysCSV string) (bool, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return false, nil //nolint:nilerr
	}
	for _, k := range splitCSV(keysCSV) {
		if _, ok := m[k]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// --- array helpers (spec.md §4.1), operating on the canonical JSON-array
// storage form described in spec.md §3/§4.4 pass 7 ---

func decodeJSONArray(s string) ([]any, error) {
	var arr []any
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return nil, fmt.Errorf("engine: not a JSON array: %w", err)
	}
	return arr, nil
}

func encodeJSONArray(arr []any) (string, error) {
	b, err := json.Marshal(arr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func arrayContains(a, b string) (bool, error) {
	arrA, err := decodeJSONArray(a)
	if err != nil {
		return false, err
	}
	arrB, err := decodeJSONArray(b)
	if err != nil {
		return false, err
	}
	for _, be := range arrB {
		if !containsElement(arrA, be) {
			return false, nil
		}
	}
	return true, nil
}

func arrayContained(a, b string) (bool, error) { return arrayContains(b, a) }

func arrayOverlap(a, b string) (bool, error) {
	arrA, err := decodeJSONArray(a)
	if err != nil {
		return false, err
	}
	arrB, err := decodeJSONArray(b)
	if err != nil {
		return false, err
	}
	for _, be := range arrB {
		if containsElement(arrA, be) {
			return true, nil
		}
	}
	return false, nil
}

func arrayCat(a, b string) (string, error) {
	arrA, err := decodeJSONArray(a)
	if err != nil {
		return "", err
	}
	arrB, err := decodeJSONArray(b)
	if err != nil {
		return "", err
	}
	return encodeJSONArray(append(arrA, arrB...))
}

func arrayPosition(a, elem string) (any, error) {
	arr, err := decodeJSONArray(a)
	if err != nil {
		return nil, err
	}
	var target any
	_ = json.Unmarshal([]byte(elem), &target)
	for i, e := range arr {
		if fmt.Sprint(e) == fmt.Sprint(target) {
			return int64(i + 1), nil
		}
	}
	return nil, nil
}

func arrayRemove(a, elem string) (string, error) {
	arr, err := decodeJSONArray(a)
	if err != nil {
		return "", err
	}
	var target any
	_ = json.Unmarshal([]byte(elem), &target)
	out := make([]any, 0, len(arr))
	for _, e := range arr {
		if fmt.Sprint(e) != fmt.Sprint(target) {
			out = append(out, e)
		}
	}
	return encodeJSONArray(out)
}

func arrayReplace(a, oldElem, newElem string) (string, error) {
	arr, err := decodeJSONArray(a)
	if err != nil {
		return "", err
	}
	var oldV, newV any
	_ = json.Unmarshal([]byte(oldElem), &oldV)
	_ = json.Unmarshal([]byte(newElem), &newV)
	out := make([]any, len(arr))
	for i, e := range arr {
		if fmt.Sprint(e) == fmt.Sprint(oldV) {
			out[i] = newV
		} else {
			out[i] = e
		}
	}
	return encodeJSONArray(out)
}

func arraySlice(a string, lo, hi int64) (string, error) {
	arr, err := decodeJSONArray(a)
	if err != nil {
		return "", err
	}
	n := int64(len(arr))
	if lo < 1 {
		lo = 1
	}
	if hi > n {
		hi = n
	}
	if lo > hi {
		return encodeJSONArray([]any{})
	}
	return encodeJSONArray(arr[lo-1 : hi])
}

func arrayLength(a string, dim int64) (any, error) {
	arr, err := decodeJSONArray(a)
	if err != nil {
		return nil, err
	}
	if dim != 1 {
		return nil, nil
	}
	return int64(len(arr)), nil
}

// --- regex (spec.md §4.1): REGEXP is case-sensitive, REGEXPI case-insensitive ---

var regexCache sync.Map // string -> *regexp.Regexp

func compileCached(pattern string) (*regexp.Regexp, error) {
	if v, ok := regexCache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

func regexpMatch(pattern, s string) (bool, error) {
	re, err := compileCached(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

func iregexpMatch(pattern, s string) (bool, error) {
	re, err := compileCached("(?i)" + pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

// --- catalog hashing (spec.md §4.1): deterministic synthetic OIDs ---

func oidHash(name string) (int64, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	// Keep within the positive int32 range and above the range PostgreSQL
	// reserves for built-in OIDs (< 16384), so synthetic OIDs never collide
	// with a real system catalog OID.
	v := int64(h.Sum32()&0x7fffffff) | 0x10000
	return v, nil
}

func boolText(v int64) (string, error) {
	if v != 0 {
		return "1", nil
	}
	return "0", nil
}

// --- datetime integer-storage conversion (migration v4, spec.md §4.2) ---

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05.999999", time.RFC3339}

func dateToDays(s string) (int64, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtypes.DaysFromDate(t), nil
		}
	}
	return 0, fmt.Errorf("engine: cannot parse %q as a date", s)
}

var timeLayouts = []string{"15:04:05.999999", "15:04:05"}

func timeToMicros(s string) (int64, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtypes.MicrosFromTimeOfDay(t), nil
		}
	}
	return 0, fmt.Errorf("engine: cannot parse %q as a time", s)
}

var timestampLayouts = []string{"2006-01-02 15:04:05.999999", "2006-01-02 15:04:05", time.RFC3339}

func timestampToMicros(s string) (int64, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtypes.MicrosFromTimestamp(t), nil
		}
	}
	return 0, fmt.Errorf("engine: cannot parse %q as a timestamp", s)
}

// --- NOW()/CURRENT_*/EXTRACT/DATE_TRUNC/AT TIME ZONE (pass 9, spec.md §4.4) ---

func nowMicros() int64 {
	return pgtypes.MicrosFromTimestamp(time.Now().UTC())
}

func todayDays() int64 {
	return pgtypes.DaysFromDate(time.Now().UTC())
}

func nowTimeMicros() int64 {
	return pgtypes.MicrosFromTimeOfDay(time.Now().UTC())
}

func extractField(field string, microsSinceEpoch int64) (float64, error) {
	t := pgtypes.TimestampFromMicros(microsSinceEpoch)
	switch strings.ToLower(field) {
	case "year":
		return float64(t.Year()), nil
	case "month":
		return float64(t.Month()), nil
	case "day":
		return float64(t.Day()), nil
	case "hour":
		return float64(t.Hour()), nil
	case "minute":
		return float64(t.Minute()), nil
	case "second":
		return float64(t.Second()) + float64(t.Nanosecond())/1e9, nil
	case "dow":
		return float64(t.Weekday()), nil
	case "doy":
		return float64(t.YearDay()), nil
	case "epoch":
		return float64(microsSinceEpoch) / 1e6, nil
	default:
		return 0, fmt.Errorf("engine: unsupported EXTRACT field %q", field)
	}
}

func dateTrunc(field string, microsSinceEpoch int64) (int64, error) {
	t := pgtypes.TimestampFromMicros(microsSinceEpoch)
	var truncated time.Time
	switch strings.ToLower(field) {
	case "year":
		truncated = time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case "month":
		truncated = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case "day":
		truncated = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case "hour":
		truncated = t.Truncate(time.Hour)
	case "minute":
		truncated = t.Truncate(time.Minute)
	case "second":
		truncated = t.Truncate(time.Second)
	default:
		return 0, fmt.Errorf("engine: unsupported DATE_TRUNC field %q", field)
	}
	return pgtypes.MicrosFromTimestamp(truncated), nil
}

func atTimeZone(microsSinceEpoch int64, tz string) (int64, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return 0, fmt.Errorf("engine: unknown time zone %q: %w", tz, err)
	}
	t := pgtypes.TimestampFromMicros(microsSinceEpoch).In(loc)
	_, offset := t.Zone()
	return microsSinceEpoch + int64(offset)*1_000_000, nil
}

// --- array_agg / array_agg_distinct / array_agg_ordered aggregates ---

type arrayAgg struct {
	values []any
}

func newArrayAgg() *arrayAgg { return &arrayAgg{} }

func (a *arrayAgg) Step(v any) { a.values = append(a.values, v) }

func (a *arrayAgg) Done() (string, error) { return encodeJSONArray(a.values) }

type arrayAggDistinct struct {
	seen   map[string]bool
	values []any
}

func newArrayAggDistinct() *arrayAggDistinct {
	return &arrayAggDistinct{seen: make(map[string]bool)}
}

func (a *arrayAggDistinct) Step(v any) {
	key := fmt.Sprint(v)
	if a.seen[key] {
		return
	}
	a.seen[key] = true
	a.values = append(a.values, v)
}

func (a *arrayAggDistinct) Done() (string, error) { return encodeJSONArray(a.values) }

// arrayAggOrdered is the true sorting aggregate that closes the spec.md §9
// open item on array_agg(... ORDER BY col): it buffers (value, sortKey)
// pairs and sorts by sortKey in Done(), rather than depending on an outer
// ORDER BY to have already arranged rows correctly.
type arrayAggOrdered struct {
	values  []any
	sortKey []any
}

func newArrayAggOrdered() *arrayAggOrdered { return &arrayAggOrdered{} }

func (a *arrayAggOrdered) Step(v any, sortKey any) {
	a.values = append(a.values, v)
	a.sortKey = append(a.sortKey, sortKey)
}

func (a *arrayAggOrdered) Done() (string, error) {
	idx := make([]int, len(a.values))
	for i := range idx {
		idx[i] = i
	}
	// Numeric keys of the same kind compare by value; anything else by text.
	less := func(x, y any) bool {
		switch xv := x.(type) {
		case int64:
			if yv, ok := y.(int64); ok {
				return xv < yv
			}
		case float64:
			if yv, ok := y.(float64); ok {
				return xv < yv
			}
		}
		return fmt.Sprint(x) < fmt.Sprint(y)
	}
	sort.SliceStable(idx, func(i, j int) bool { return less(a.sortKey[idx[i]], a.sortKey[idx[j]]) })
	out := make([]any, len(a.values))
	for i, j := range idx {
		out[i] = a.values[j]
	}
	return encodeJSONArray(out)
}

// bigRat is a tiny dispatch shim so decimalAdd/Sub/Mul/Div can share one
// implementation via method values without importing math/big here twice.
type bigRat struct{}

func decimalBinOp(a, b string, op func(*bigRat, string, string) (string, error)) (string, error) {
	return op(&bigRat{}, a, b)
}

func (*bigRat) add(a, b string) (string, error) { return ratOp(a, b, '+') }
func (*bigRat) sub(a, b string) (string, error) { return ratOp(a, b, '-') }
func (*bigRat) mul(a, b string) (string, error) { return ratOp(a, b, '*') }
func (*bigRat) div(a, b string) (string, error) { return ratOp(a, b, '/') }

func ratOp(a, b string, op byte) (string, error) {
	ra, err := pgtypes.ParseDecimal(a)
	if err != nil {
		return "", err
	}
	rb, err := pgtypes.ParseDecimal(b)
	if err != nil {
		return "", err
	}
	result := ra
	switch op {
	case '+':
		result = result.Add(ra, rb)
	case '-':
		result = result.Sub(ra, rb)
	case '*':
		result = result.Mul(ra, rb)
	case '/':
		result = result.Quo(ra, rb)
	}
	scale := maxScale(a, b)
	return pgtypes.FormatScale(result, scale), nil
}

func maxScale(a, b string) int {
	sa := scaleOf(a)
	sb := scaleOf(b)
	if sa > sb {
		return sa
	}
	return sb
}

func scaleOf(s string) int {
	idx := strings.IndexByte(s, '.')
	if idx < 0 {
		return 0
	}
	return len(s) - idx - 1
}

// --- pg_catalog emulation scalars (spec.md §4.9) ---

// formatType backs format_type(oid, typmod): a client driver's canonical way
// to ask "what does this column's type look like as DDL text". Only
// statically known built-in OIDs are resolved here; enum and array OIDs are
// resolved by package catalogemu's Go-side row synthesis before a query ever
// reaches this function, since those require the runtime enum registry.
func formatType(typeOID int64, typmod int64) (string, error) {
	pt, ok := pgtypes.FromOID(uint32(typeOID))
	if !ok {
		return "unknown", nil
	}
	switch pt {
	case pgtypes.Varchar:
		if n, ok := pgtypes.Typmod(typmod).VarcharLength(); ok {
			return fmt.Sprintf("character varying(%d)", n), nil
		}
		return "character varying", nil
	case pgtypes.Numeric:
		if p, s, ok := pgtypes.Typmod(typmod).NumericPrecisionScale(); ok {
			return fmt.Sprintf("numeric(%d,%d)", p, s), nil
		}
		return "numeric", nil
	default:
		return string(pt), nil
	}
}

// userByID backs pg_get_userbyid(oid): this system has no multi-user
// concept, so every OID resolves to the single fixed superuser name a trust-
// auth-only server always reports.
func userByID(oid int64) (string, error) {
	return "postgres", nil
}

// tableIsVisible backs pg_table_is_visible(oid): every table lives in the
// single "public" schema this system emulates, so visibility is always true
// for a resolvable OID.
func tableIsVisible(oid int64) (int64, error) {
	return 1, nil
}
