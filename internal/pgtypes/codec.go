// Package pgtypes: text and binary wire codecs (spec.md §4.6).
package pgtypes

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// EncodeText renders a stored SQLite value as the PostgreSQL wire text form
// for the given declared type and typmod. `raw` is the value as returned by
// the storage engine adapter (package engine): int64, float64, string, []byte
// or nil.
func EncodeText(t PgType, typmod Typmod, raw any) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("pgtypes: EncodeText called with nil, caller must check for NULL first")
	}

	switch t {
	case Bool:
		switch v := raw.(type) {
		case int64:
			if v != 0 {
				return "t", nil
			}
			return "f", nil
		case bool:
			if v {
				return "t", nil
			}
			return "f", nil
		}
		return "", fmt.Errorf("pgtypes: bool encode: unexpected storage %T", raw)

	case Int2, Int4, Int8:
		return fmt.Sprintf("%d", asInt64(raw)), nil

	case Float4:
		return strconv.FormatFloat(asFloat64(raw), 'g', -1, 32), nil
	case Float8:
		return strconv.FormatFloat(asFloat64(raw), 'g', -1, 64), nil

	case Numeric:
		scale := 0
		if _, s, ok := typmod.NumericPrecisionScale(); ok {
			scale = s
		}
		r, err := ParseDecimal(asString(raw))
		if err != nil {
			return "", err
		}
		return FormatScale(r, scale), nil

	case Char, Varchar, Text, UUID, JSON, JSONB, Inet, Cidr, Macaddr, Macaddr8,
		Money, Bit, Varbit, Int4Range, Int8Range, NumRange, Tsvector, Tsquery, Enum:
		return asString(raw), nil

	case Date:
		return DateFromDays(asInt64(raw)).Format("2006-01-02"), nil

	case Time:
		return formatTimeOfDay(asInt64(raw)), nil

	case Timetz:
		return formatTimeOfDay(asInt64(raw)) + "+00", nil

	case Timestamp:
		return TimestampFromMicros(asInt64(raw)).Format("2006-01-02 15:04:05.999999"), nil

	case Timestamptz:
		return TimestampFromMicros(asInt64(raw)).Format("2006-01-02 15:04:05.999999") + "+00", nil

	case Interval:
		return formatInterval(asInt64(raw)), nil

	case Bytea:
		b := asBytes(raw)
		return `\x` + hex.EncodeToString(b), nil

	default:
		return asString(raw), nil
	}
}

// EncodeTextTZ is EncodeText for TIMESTAMPTZ/TIMETZ but honoring a session
// timezone offset, per spec.md §4.6: "if a session timezone is set, convert
// then format with offset."
func EncodeTextTZ(t PgType, typmod Typmod, raw any, loc *time.Location) (string, error) {
	switch t {
	case Timestamptz:
		ts := TimestampFromMicros(asInt64(raw)).In(loc)
		return ts.Format("2006-01-02 15:04:05.999999Z07"), nil
	case Timetz:
		base := TimeOfDayFromMicros(asInt64(raw))
		ts := time.Date(2000, 1, 1, base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), loc)
		return ts.Format("15:04:05.999999Z07"), nil
	default:
		return EncodeText(t, typmod, raw)
	}
}

func formatTimeOfDay(micros int64) string {
	t := TimeOfDayFromMicros(micros)
	return t.Format("15:04:05.999999")
}

func formatInterval(micros int64) string {
	neg := micros < 0
	if neg {
		micros = -micros
	}
	totalSeconds := micros / 1_000_000
	frac := micros % 1_000_000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	s := fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	if frac != 0 {
		s += fmt.Sprintf(".%06d", frac)
	}
	if neg {
		s = "-" + s
	}
	return s
}

// EncodeArrayText converts a column stored as canonical JSON (spec.md's
// array storage convention) into PostgreSQL's `{...}` textual array form,
// reusing lib/pq's array literal writer (pq.Array) instead of hand-rolling
// quoting/escaping rules for nested braces and NULL elements.
func EncodeArrayText(elements []any) (string, error) {
	val, err := pq.GenericArray{A: elements}.Value()
	if err != nil {
		return "", fmt.Errorf("pgtypes: array encode: %w", err)
	}
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("pgtypes: array encode: unexpected driver value %T", val)
	}
}

// EncodeBinary renders the binary wire form for the subset of types spec.md
// §4.6 lists as binary-capable: BOOLEAN, INT2/4/8, FLOAT4/8, TEXT, BYTEA.
// CHAR and VARCHAR are binary-capable too and use TEXT's byte form.
func EncodeBinary(t PgType, raw any) ([]byte, error) {
	if !t.BinaryCapable() {
		return nil, fmt.Errorf("pgtypes: %s has no binary codec", t)
	}
	switch t {
	case Bool:
		if asInt64(raw) != 0 {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case Int2:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(asInt64(raw)))
		return buf, nil
	case Int4:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(asInt64(raw)))
		return buf, nil
	case Int8:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(asInt64(raw)))
		return buf, nil
	case Float4:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(asFloat64(raw))))
		return buf, nil
	case Float8:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(asFloat64(raw)))
		return buf, nil
	case Text, Char, Varchar:
		return []byte(asString(raw)), nil
	case Bytea:
		return asBytes(raw), nil
	default:
		return nil, fmt.Errorf("pgtypes: unreachable binary type %s", t)
	}
}

// DecodeBinaryParam decodes a bound extended-protocol parameter from its
// binary wire form into the Go value the engine expects, strictly by OID
// (spec.md §4.6: "binary parameters decoded strictly by OID").
func DecodeBinaryParam(t PgType, data []byte) (any, error) {
	switch t {
	case Bool:
		if len(data) != 1 {
			return nil, fmt.Errorf("pgtypes: bool binary param: want 1 byte, got %d", len(data))
		}
		if data[0] != 0 {
			return int64(1), nil
		}
		return int64(0), nil
	case Int2:
		if len(data) != 2 {
			return nil, fmt.Errorf("pgtypes: int2 binary param: want 2 bytes, got %d", len(data))
		}
		return int64(int16(binary.BigEndian.Uint16(data))), nil
	case Int4:
		if len(data) != 4 {
			return nil, fmt.Errorf("pgtypes: int4 binary param: want 4 bytes, got %d", len(data))
		}
		return int64(int32(binary.BigEndian.Uint32(data))), nil
	case Int8:
		if len(data) != 8 {
			return nil, fmt.Errorf("pgtypes: int8 binary param: want 8 bytes, got %d", len(data))
		}
		return int64(binary.BigEndian.Uint64(data)), nil
	case Float4:
		if len(data) != 4 {
			return nil, fmt.Errorf("pgtypes: float4 binary param: want 4 bytes, got %d", len(data))
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(data))), nil
	case Float8:
		if len(data) != 8 {
			return nil, fmt.Errorf("pgtypes: float8 binary param: want 8 bytes, got %d", len(data))
		}
		return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
	case Text, Varchar, Char, JSON, JSONB, UUID:
		return string(data), nil
	case Bytea:
		return append([]byte(nil), data...), nil
	default:
		return nil, fmt.Errorf("pgtypes: no binary param decoder for %s", t)
	}
}

func asInt64(raw any) int64 {
	switch v := raw.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func asFloat64(raw any) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asBytes(raw any) []byte {
	switch v := raw.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}
