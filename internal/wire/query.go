package wire

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/pgsqlite/pgsqlite/internal/executor"
	"github.com/pgsqlite/pgsqlite/internal/pgerror"
)

// handleOne reads and dispatches exactly one frontend message. The extended
// query protocol's Parse/Bind/Describe/Execute/Close/Flush messages update
// session state and, for Execute, run the statement; only Sync flushes a
// ReadyForQuery, per the wire protocol's batching contract.
func (c *conn) handleOne(ctx context.Context) error {
	msg, err := c.backend.Receive()
	if err != nil {
		return fmt.Errorf("wire: receive: %w", err)
	}

	switch m := msg.(type) {
	case *pgproto3.Query:
		return c.handleSimpleQuery(ctx, m.String)
	case *pgproto3.Parse:
		c.handleParse(m)
	case *pgproto3.Bind:
		c.handleBind(m)
	case *pgproto3.Describe:
		return c.handleDescribe(ctx, m)
	case *pgproto3.Execute:
		return c.handleExecute(ctx, m)
	case *pgproto3.Close:
		c.handleClose(m)
	case *pgproto3.Flush:
		return c.flush()
	case *pgproto3.Sync:
		return c.handleSync()
	case *pgproto3.Terminate:
		return errTerminate
	default:
		return c.sendError(pgerror.New(pgerror.CodeProtocolViolation, fmt.Sprintf("unsupported message type %T", m)))
	}
	return nil
}

// handleSimpleQuery implements the simple query protocol: one or more
// semicolon-separated statements run in sequence, each ending with its own
// CommandComplete, the whole batch ending with one ReadyForQuery (spec.md
// §4.2: "the simple query protocol ... followed by ReadyForQuery").
func (c *conn) handleSimpleQuery(ctx context.Context, sql string) error {
	first := firstWordUpper(sql)
	if err := c.sess.CheckReady(first == "COMMIT" || first == "END" || first == "ROLLBACK"); err != nil {
		if pgErr, ok := err.(*pgerror.Error); ok {
			if werr := c.sendError(pgErr); werr != nil {
				return werr
			}
			return c.sendReadyForQuery()
		}
	}

	for _, stmt := range splitStatements(sql) {
		if stmt == "" {
			continue
		}
		c.trackTxControl(stmt)

		res, err := c.exec.Run(ctx, stmt, nil, false)
		if err != nil {
			c.sess.MarkFailed()
			if pgErr := pgerror.Classify(err); pgErr != nil {
				if werr := c.sendError(pgErr); werr != nil {
					return werr
				}
			}
			break
		}

		if err := c.sendResult(res); err != nil {
			return err
		}
	}

	return c.sendReadyForQuery()
}

// trackTxControl updates the transaction state machine for BEGIN/COMMIT/
// ROLLBACK, which this system's translation pipeline passes through to
// SQLite unchanged but whose effect on ReadyForQuery's status byte the wire
// layer must still track itself (spec.md §4.3).
func (c *conn) trackTxControl(stmt string) {
	switch firstWordUpper(stmt) {
	case "BEGIN", "START":
		c.sess.BeginIfNeeded()
	case "COMMIT", "END", "ROLLBACK":
		c.sess.EndTransaction()
	}
}

func (c *conn) sendReadyForQuery() error {
	buf := (&pgproto3.ReadyForQuery{TxStatus: byte(c.sess.TxState)}).Encode(nil)
	_, err := c.netConn.Write(buf)
	return err
}

func (c *conn) sendError(pgErr *pgerror.Error) error {
	buf := (&pgproto3.ErrorResponse{
		Severity: pgErr.Severity,
		Code:     pgErr.Code,
		Message:  pgErr.Message,
		Detail:   pgErr.Detail,
	}).Encode(nil)
	_, err := c.netConn.Write(buf)
	return err
}

// sendResult encodes one executor.Result as RowDescription (when there are
// columns)/DataRow*/CommandComplete.
func (c *conn) sendResult(res executor.Result) error {
	var buf []byte

	if len(res.Columns) > 0 {
		rd, err := c.rowDescription(res.Columns, nil)
		if err != nil {
			return err
		}
		buf = rd.Encode(buf)

		for _, row := range res.Rows {
			dr, err := encodeDataRow(res.Columns, row, nil)
			if err != nil {
				return err
			}
			buf = dr.Encode(buf)
		}
	}

	tag := res.CommandTag
	if tag == "" {
		tag = "OK"
	}
	buf = (&pgproto3.CommandComplete{CommandTag: []byte(tag)}).Encode(buf)

	_, err := c.netConn.Write(buf)
	return err
}

func (c *conn) handleClose(m *pgproto3.Close) {
	switch m.ObjectType {
	case 'S':
		c.sess.CloseStatement(m.Name)
	case 'P':
		c.sess.ClosePortal(m.Name)
	}
	buf := (&pgproto3.CloseComplete{}).Encode(nil)
	c.netConn.Write(buf)
}

func (c *conn) flush() error {
	_, err := c.netConn.Write(nil)
	return err
}

// handleSync ends one extended-query message batch: report a pending error
// once, then always emit ReadyForQuery, per spec.md §4.2.
func (c *conn) handleSync() error {
	if c.pendingErr != nil {
		err := c.pendingErr
		c.pendingErr = nil
		if werr := c.sendError(err); werr != nil {
			return werr
		}
	}
	return c.sendReadyForQuery()
}

func firstWordUpper(stmt string) string {
	i := 0
	for i < len(stmt) && (stmt[i] == ' ' || stmt[i] == '\t' || stmt[i] == '\n') {
		i++
	}
	j := i
	for j < len(stmt) && stmt[j] != ' ' && stmt[j] != '\t' && stmt[j] != '\n' && stmt[j] != ';' {
		j++
	}
	word := stmt[i:j]
	out := make([]byte, len(word))
	for k := 0; k < len(word); k++ {
		ch := word[k]
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		out[k] = ch
	}
	return string(out)
}

// splitStatements splits a simple-query message body on top-level semicolons,
// ignoring semicolons inside single-quoted string literals, the same
// quote-tracking shape package passes uses for comment stripping.
func splitStatements(sql string) []string {
	var out []string
	var cur []byte
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case ch == '\'':
			inString = !inString
			cur = append(cur, ch)
		case ch == ';' && !inString:
			out = append(out, trimSpaceASCII(string(cur)))
			cur = cur[:0]
		default:
			cur = append(cur, ch)
		}
	}
	if s := trimSpaceASCII(string(cur)); s != "" {
		out = append(out, s)
	}
	return out
}

func trimSpaceASCII(s string) string {
	start := 0
	for start < len(s) && isSpaceByte(s[start]) {
		start++
	}
	end := len(s)
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
