// Package session holds per-connection state: the transaction state machine
// (spec.md §4.3, C3), and the prepared-statement and portal tables the
// extended query protocol manipulates.
//
// Session mirrors the teacher's migration Runner in spirit — a small struct
// holding mutable state plus a handful of state-transition methods — rather
// than a channel-driven actor, since every caller (package wire) already
// serializes access to one Session per TCP connection.
package session

import (
	"fmt"

	"github.com/pgsqlite/pgsqlite/internal/executor"
	"github.com/pgsqlite/pgsqlite/internal/pgerror"
	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
	"github.com/pgsqlite/pgsqlite/internal/translator/passes"
)

// TxState is the three-state transaction status spec.md §4.3 requires
// ReadyForQuery to report accurately after every request.
type TxState byte

const (
	TxIdle TxState = 'I'
	TxInTransaction TxState = 'T'
	TxFailed TxState = 'E'
)

// PreparedStatement is what Parse registers: the original SQL text, its
// translated form, and enough metadata for Describe/Bind/Execute to resolve
// parameter and result types without re-running the Translation Pipeline.
type PreparedStatement struct {
	Name           string
	SourceSQL      string
	TranslatedSQL  string
	ParamOIDs      []uint32 // explicit OIDs from Parse, 0 where unspecified
	Metadata       *passes.Metadata
	Returning      *passes.FollowUp
	IsDDL          bool

	// FastPathResult is set when Parse resolved the statement directly
	// against the pg_catalog Emulation Layer (spec.md §4.9) instead of the
	// Translation Pipeline. Execute then replays it without touching SQLite.
	FastPathResult *executor.Result
}

// Portal is what Bind produces: a prepared statement plus bound parameter
// values and the client's requested result-column formats.
type Portal struct {
	Name           string
	Statement      *PreparedStatement
	Params         []any
	ResultFormats  []int16 // 0 = text, 1 = binary, per column (or a single shared entry)
	MaxRows        int32
}

// Session is the mutable state of one client connection.
type Session struct {
	TxState TxState

	statements map[string]*PreparedStatement
	portals    map[string]*Portal

	// Result formats live on each Portal (ResultFormats) and default to
	// text (0) until Bind specifies otherwise, per the wire protocol's
	// format-code conventions.
}

// New returns a Session in the Idle transaction state with empty statement
// and portal tables.
func New() *Session {
	return &Session{
		TxState:    TxIdle,
		statements: make(map[string]*PreparedStatement),
		portals:    make(map[string]*Portal),
	}
}

// CheckReady returns an InFailedTransaction error (25P02) if the session is
// in a failed transaction and stmt is not one of the few commands allowed to
// proceed anyway (COMMIT, ROLLBACK), per spec.md §4.3: "reject all further
// statements in that transaction except ROLLBACK (and COMMIT, treated as
// ROLLBACK) with SQLSTATE 25P02".
func (s *Session) CheckReady(isTxControl bool) error {
	if s.TxState == TxFailed && !isTxControl {
		return pgerror.New(pgerror.CodeInFailedTransaction, "current transaction is aborted, commands ignored until end of transaction block")
	}
	return nil
}

// BeginIfNeeded transitions Idle -> InTransaction. Idempotent: PostgreSQL's
// simple query protocol wraps an implicit transaction around the whole
// message when autocommit applies; this system's single-writer engine lease
// makes every top-level statement implicitly transactional already, so
// BeginIfNeeded only tracks the client-visible state for explicit BEGIN.
func (s *Session) BeginIfNeeded() {
	if s.TxState == TxIdle {
		s.TxState = TxInTransaction
	}
}

// MarkFailed transitions InTransaction -> Failed after a statement errors
// mid-transaction, per spec.md §4.3.
func (s *Session) MarkFailed() {
	if s.TxState == TxInTransaction {
		s.TxState = TxFailed
	}
}

// EndTransaction transitions back to Idle on COMMIT or ROLLBACK.
func (s *Session) EndTransaction() {
	s.TxState = TxIdle
}

// AddStatement registers a prepared statement, replacing any unnamed
// statement under the same name (per the wire protocol, re-using the
// unnamed statement name "" implicitly closes the previous one).
func (s *Session) AddStatement(stmt *PreparedStatement) {
	s.statements[stmt.Name] = stmt
}

// Statement looks up a prepared statement by name.
func (s *Session) Statement(name string) (*PreparedStatement, bool) {
	st, ok := s.statements[name]
	return st, ok
}

// CloseStatement removes a prepared statement, per the Close message.
func (s *Session) CloseStatement(name string) {
	delete(s.statements, name)
}

// AddPortal registers a bound portal.
func (s *Session) AddPortal(p *Portal) {
	s.portals[p.Name] = p
}

// Portal looks up a bound portal by name.
func (s *Session) Portal(name string) (*Portal, bool) {
	p, ok := s.portals[name]
	return p, ok
}

// ClosePortal removes a portal, per the Close message.
func (s *Session) ClosePortal(name string) {
	delete(s.portals, name)
}

// ResolveParamType returns the PostgreSQL type to use when decoding
// parameter index i (0-based): the explicit OID from Parse if given,
// otherwise the pipeline's inferred hint, otherwise Unknown (sent as text
// and left for SQLite's dynamic typing).
func (st *PreparedStatement) ResolveParamType(i int) pgtypes.PgType {
	if i < len(st.ParamOIDs) && st.ParamOIDs[i] != 0 {
		if pt, ok := pgtypes.FromOID(st.ParamOIDs[i]); ok {
			return pt
		}
	}
	if st.Metadata != nil {
		if pt, ok := st.Metadata.ParamTypeHints[i+1]; ok {
			return pt
		}
	}
	return pgtypes.Unknown
}

func (s *TxState) String() string {
	switch *s {
	case TxIdle:
		return "idle"
	case TxInTransaction:
		return "in transaction"
	case TxFailed:
		return "failed transaction"
	default:
		return fmt.Sprintf("unknown(%c)", byte(*s))
	}
}
