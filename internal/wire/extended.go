package wire

import (
	"context"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/internal/executor"
	"github.com/pgsqlite/pgsqlite/internal/pgerror"
	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
	"github.com/pgsqlite/pgsqlite/internal/session"
	"github.com/pgsqlite/pgsqlite/internal/translator"
	"github.com/pgsqlite/pgsqlite/internal/translator/passes"
)

// handleParse implements the extended query protocol's Parse step: run the
// Translation Pipeline once and register a PreparedStatement under the given
// name (spec.md §4.2, §4.4: "Parse: parameter count/type inference").
//
// A translation error is recorded in pendingErr rather than sent
// immediately, since the protocol requires the backend to keep consuming
// messages up to the next Sync before reporting an error.
func (c *conn) handleParse(m *pgproto3.Parse) {
	ctx := context.Background()

	if fastRes, ok, err := c.exec.CatalogFastPath(ctx, m.Query); err != nil {
		c.pendingErr = pgerror.Classify(err)
		return
	} else if ok {
		c.sess.AddStatement(&session.PreparedStatement{
			Name:           m.Name,
			SourceSQL:      m.Query,
			ParamOIDs:      append([]uint32(nil), m.ParameterOIDs...),
			FastPathResult: &fastRes,
		})
		buf := (&pgproto3.ParseComplete{}).Encode(nil)
		if _, werr := c.netConn.Write(buf); werr != nil {
			c.pendingErr = pgerror.New(pgerror.CodeConnectionException, werr.Error())
		}
		return
	}

	res, err := c.exec.Translate(ctx, m.Query, false)
	if err != nil {
		c.pendingErr = pgerror.Classify(err)
		return
	}

	st := &session.PreparedStatement{
		Name:          m.Name,
		SourceSQL:     m.Query,
		TranslatedSQL: res.SQL,
		ParamOIDs:     append([]uint32(nil), m.ParameterOIDs...),
		Metadata:      res.Metadata,
		Returning:     res.Returning,
		IsDDL:         res.IsDDL,
	}
	c.sess.AddStatement(st)

	buf := (&pgproto3.ParseComplete{}).Encode(nil)
	if _, werr := c.netConn.Write(buf); werr != nil {
		c.pendingErr = pgerror.New(pgerror.CodeConnectionException, werr.Error())
	}
}

// handleBind implements Bind: resolve the named (or unnamed) prepared
// statement, decode each parameter per its resolved type and the client's
// declared parameter format, and register a Portal.
func (c *conn) handleBind(m *pgproto3.Bind) {
	if c.pendingErr != nil {
		return
	}

	st, ok := c.sess.Statement(m.PreparedStatement)
	if !ok {
		c.pendingErr = pgerror.Newf(pgerror.CodeSyntaxError, "prepared statement %q does not exist", m.PreparedStatement)
		return
	}

	params := make([]any, len(m.Parameters))
	for i, raw := range m.Parameters {
		if raw == nil {
			params[i] = nil
			continue
		}
		pt := st.ResolveParamType(i)
		format := parameterFormatFor(i, m.ParameterFormatCodes)
		if format == 1 && pt.BinaryCapable() {
			v, err := pgtypes.DecodeBinaryParam(pt, raw)
			if err != nil {
				c.pendingErr = pgerror.Newf(pgerror.CodeInvalidTextRepr, "%s", err)
				return
			}
			params[i] = v
		} else {
			params[i] = string(raw)
		}
	}

	resultFormats := append([]int16(nil), m.ResultFormatCodes...)

	c.sess.AddPortal(&session.Portal{
		Name:          m.DestinationPortal,
		Statement:     st,
		Params:        params,
		ResultFormats: resultFormats,
	})

	buf := (&pgproto3.BindComplete{}).Encode(nil)
	if _, werr := c.netConn.Write(buf); werr != nil {
		c.pendingErr = pgerror.New(pgerror.CodeConnectionException, werr.Error())
	}
}

func parameterFormatFor(i int, codes []int16) int16 {
	if len(codes) == 0 {
		return 0
	}
	if len(codes) == 1 {
		return codes[0]
	}
	if i < len(codes) {
		return codes[i]
	}
	return 0
}

// handleDescribe implements Describe for both a prepared statement ('S') and
// a portal ('P'): it reports ParameterDescription (statement only) and
// RowDescription (or NoData for a statement with no result columns), per
// spec.md §4.4's Describe contract, without actually running the statement.
func (c *conn) handleDescribe(ctx context.Context, m *pgproto3.Describe) error {
	if c.pendingErr != nil {
		return nil
	}

	switch m.ObjectType {
	case 'S':
		st, ok := c.sess.Statement(m.Name)
		if !ok {
			c.pendingErr = pgerror.Newf(pgerror.CodeSyntaxError, "prepared statement %q does not exist", m.Name)
			return nil
		}
		oids := make([]uint32, len(st.ParamOIDs))
		for i := range oids {
			oids[i] = uint32(st.ResolveParamType(i).OID())
		}
		buf := (&pgproto3.ParameterDescription{ParameterOIDs: oids}).Encode(nil)
		if _, err := c.netConn.Write(buf); err != nil {
			return err
		}
		if st.FastPathResult != nil {
			return c.sendRowDescription(st.FastPathResult.Columns, nil)
		}
		return c.describeResultShape(ctx, st.TranslatedSQL, st.IsDDL, len(st.ParamOIDs), nil, st.Metadata)

	case 'P':
		p, ok := c.sess.Portal(m.Name)
		if !ok {
			c.pendingErr = pgerror.Newf(pgerror.CodeSyntaxError, "portal %q does not exist", m.Name)
			return nil
		}
		if p.Statement.FastPathResult != nil {
			return c.sendRowDescription(p.Statement.FastPathResult.Columns, p.ResultFormats)
		}
		return c.describeResultShape(ctx, p.Statement.TranslatedSQL, p.Statement.IsDDL, len(p.Params), p.ResultFormats, p.Statement.Metadata)

	default:
		c.pendingErr = pgerror.New(pgerror.CodeProtocolViolation, "invalid Describe target")
		return nil
	}
}

// describeResultShape reports RowDescription/NoData for a statement that
// has not run yet, by querying the underlying SQLite statement's own column
// metadata — the same path queryRows later uses to populate ColumnDescriptor
// — against a zero-row execution so Describe never has side effects.
func (c *conn) describeResultShape(ctx context.Context, translatedSQL string, isDDL bool, paramCount int, formats []int16, md *passes.Metadata) error {
	if isDDL || !looksLikeSelect(translatedSQL) {
		buf := (&pgproto3.NoData{}).Encode(nil)
		_, err := c.netConn.Write(buf)
		return err
	}

	cols, err := c.exec.DescribeColumns(ctx, translatedSQL, paramCount, md)
	if err != nil {
		c.pendingErr = pgerror.Classify(err)
		buf := (&pgproto3.NoData{}).Encode(nil)
		_, werr := c.netConn.Write(buf)
		return werr
	}

	return c.sendRowDescription(cols, formats)
}

func (c *conn) sendRowDescription(cols []executor.ColumnDescriptor, formats []int16) error {
	rd, err := c.rowDescription(cols, formats)
	if err != nil {
		return err
	}
	buf := rd.Encode(nil)
	_, werr := c.netConn.Write(buf)
	return werr
}

func looksLikeSelect(sqlText string) bool {
	i := 0
	for i < len(sqlText) && (sqlText[i] == ' ' || sqlText[i] == '\n' || sqlText[i] == '\t') {
		i++
	}
	return i+6 <= len(sqlText) && equalFoldASCII(sqlText[i:i+6], "select")
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// handleExecute implements Execute: run the bound portal's statement against
// its parameters and send DataRow*/CommandComplete, or PortalSuspended if
// maxRows cut the result set short.
func (c *conn) handleExecute(ctx context.Context, m *pgproto3.Execute) error {
	if c.pendingErr != nil {
		return nil
	}

	p, ok := c.sess.Portal(m.Portal)
	if !ok {
		c.pendingErr = pgerror.Newf(pgerror.CodeSyntaxError, "portal %q does not exist", m.Portal)
		return nil
	}

	if p.Statement.FastPathResult != nil {
		return c.sendPortalRows(*p.Statement.FastPathResult, p.ResultFormats, false)
	}

	// Parse already ran the Translation Pipeline once; reuse its output
	// rather than translating the same statement text again on every
	// Execute of a re-bound portal.
	res := translator.Result{
		SQL:       p.Statement.TranslatedSQL,
		Metadata:  p.Statement.Metadata,
		Returning: p.Statement.Returning,
		IsDDL:     p.Statement.IsDDL,
	}

	result, err := c.exec.Execute(ctx, res, p.Statement.SourceSQL, p.Params)
	if err != nil {
		c.pendingErr = pgerror.Classify(err)
		c.sess.MarkFailed()
		return nil
	}

	if m.MaxRows > 0 && int64(len(result.Rows)) > int64(m.MaxRows) {
		result.Rows = result.Rows[:m.MaxRows]
		return c.sendPortalRows(result, p.ResultFormats, true)
	}

	return c.sendPortalRows(result, p.ResultFormats, false)
}

func (c *conn) sendPortalRows(res executor.Result, formats []int16, suspended bool) error {
	var buf []byte
	for _, row := range res.Rows {
		dr, err := encodeDataRow(res.Columns, row, formats)
		if err != nil {
			return err
		}
		buf = dr.Encode(buf)
	}

	if suspended {
		buf = (&pgproto3.PortalSuspended{}).Encode(buf)
	} else {
		tag := res.CommandTag
		if tag == "" {
			tag = "OK"
		}
		buf = (&pgproto3.CommandComplete{CommandTag: []byte(tag)}).Encode(buf)
	}

	_, err := c.netConn.Write(buf)
	return err
}

