package wire

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/internal/executor"
	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
)

// rowDescription builds a RowDescription message from the Query Executor's
// column descriptors. formats holds a per-column requested wire format (0
// text, 1 binary); a nil slice means text for every column, a single entry
// applies to every column, and columns past the end of a longer slice get
// text, per the extended query protocol's format-code conventions.
func (c *conn) rowDescription(cols []executor.ColumnDescriptor, formats []int16) (*pgproto3.RowDescription, error) {
	fields := make([]pgproto3.FieldDescription, len(cols))
	for i, col := range cols {
		typmod := int32(col.Typmod)
		if col.Typmod == pgtypes.NoTypmod {
			typmod = -1
		}
		fields[i] = pgproto3.FieldDescription{
			Name:                 []byte(col.Name),
			TableOID:             col.TableOID,
			TableAttributeNumber: 0,
			DataTypeOID:          uint32(col.PgType.OID()),
			DataTypeSize:         typeSize(col.PgType),
			TypeModifier:         typmod,
			Format:               formatFor(i, formats),
		}
	}
	return &pgproto3.RowDescription{Fields: fields}, nil
}

func formatFor(i int, formats []int16) int16 {
	if len(formats) == 0 {
		return 0
	}
	if len(formats) == 1 {
		return formats[0]
	}
	if i < len(formats) {
		return formats[i]
	}
	return 0
}

func typeSize(t pgtypes.PgType) int16 {
	switch t {
	case pgtypes.Bool:
		return 1
	case pgtypes.Int2:
		return 2
	case pgtypes.Int4, pgtypes.Float4, pgtypes.Date:
		return 4
	case pgtypes.Int8, pgtypes.Float8, pgtypes.Time, pgtypes.Timestamp, pgtypes.Timestamptz, pgtypes.Interval:
		return 8
	default:
		return -1
	}
}

// encodeDataRow renders one result row as a DataRow message, encoding each
// non-null value via the Type & Value Codec in the format requested for
// that column (text unless the client's Bind asked for binary and the type
// is binary-capable, per spec.md §4.6).
func encodeDataRow(cols []executor.ColumnDescriptor, row []any, formats []int16) (*pgproto3.DataRow, error) {
	values := make([][]byte, len(cols))
	for i, col := range cols {
		if i >= len(row) || row[i] == nil {
			values[i] = nil
			continue
		}
		if formatFor(i, formats) == 1 && col.PgType.BinaryCapable() {
			b, err := pgtypes.EncodeBinary(col.PgType, row[i])
			if err != nil {
				return nil, fmt.Errorf("wire: encode binary column %s: %w", col.Name, err)
			}
			values[i] = b
			continue
		}
		s, err := pgtypes.EncodeText(col.PgType, col.Typmod, row[i])
		if err != nil {
			return nil, fmt.Errorf("wire: encode column %s: %w", col.Name, err)
		}
		values[i] = []byte(s)
	}
	return &pgproto3.DataRow{Values: values}, nil
}
