package wire

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/pgsqlite/pgsqlite/internal/executor"
	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
)

func TestTypeSize(t *testing.T) {
	c := qt.New(t)

	c.Assert(typeSize(pgtypes.Bool), qt.Equals, int16(1))
	c.Assert(typeSize(pgtypes.Int4), qt.Equals, int16(4))
	c.Assert(typeSize(pgtypes.Int8), qt.Equals, int16(8))
	c.Assert(typeSize(pgtypes.Text), qt.Equals, int16(-1))
	c.Assert(typeSize(pgtypes.Numeric), qt.Equals, int16(-1))
}

func TestEncodeDataRowNulls(t *testing.T) {
	c := qt.New(t)

	cols := []executor.ColumnDescriptor{
		{Name: "id", PgType: pgtypes.Int4, Typmod: pgtypes.NoTypmod},
		{Name: "name", PgType: pgtypes.Text, Typmod: pgtypes.NoTypmod},
	}
	row := []any{int64(7), nil}

	dr, err := encodeDataRow(cols, row, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(dr.Values, qt.HasLen, 2)
	c.Assert(string(dr.Values[0]), qt.Equals, "7")
	c.Assert(dr.Values[1], qt.IsNil)
}

func TestEncodeDataRowBinary(t *testing.T) {
	c := qt.New(t)

	cols := []executor.ColumnDescriptor{
		{Name: "id", PgType: pgtypes.Int4, Typmod: pgtypes.NoTypmod},
	}
	row := []any{int64(258)}

	dr, err := encodeDataRow(cols, row, []int16{1})
	c.Assert(err, qt.IsNil)
	c.Assert(dr.Values, qt.HasLen, 1)
	c.Assert(dr.Values[0], qt.DeepEquals, []byte{0, 0, 1, 2})
}
