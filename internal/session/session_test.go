package session_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/pgsqlite/pgsqlite/internal/pgtypes"
	"github.com/pgsqlite/pgsqlite/internal/session"
	"github.com/pgsqlite/pgsqlite/internal/translator/passes"
)

func TestTxStateTransitions(t *testing.T) {
	c := qt.New(t)
	s := session.New()
	c.Assert(s.TxState, qt.Equals, session.TxIdle)

	s.BeginIfNeeded()
	c.Assert(s.TxState, qt.Equals, session.TxInTransaction)

	s.BeginIfNeeded() // idempotent
	c.Assert(s.TxState, qt.Equals, session.TxInTransaction)

	s.MarkFailed()
	c.Assert(s.TxState, qt.Equals, session.TxFailed)

	s.MarkFailed() // no-op once already failed
	c.Assert(s.TxState, qt.Equals, session.TxFailed)

	s.EndTransaction()
	c.Assert(s.TxState, qt.Equals, session.TxIdle)
}

func TestCheckReadyRejectsAfterFailure(t *testing.T) {
	c := qt.New(t)
	s := session.New()
	s.BeginIfNeeded()
	s.MarkFailed()

	err := s.CheckReady(false)
	c.Assert(err, qt.Not(qt.IsNil))

	c.Assert(s.CheckReady(true), qt.IsNil) // tx-control commands still allowed
}

func TestStatementAndPortalLifecycle(t *testing.T) {
	c := qt.New(t)
	s := session.New()

	st := &session.PreparedStatement{Name: "s1", SourceSQL: "SELECT 1"}
	s.AddStatement(st)

	got, ok := s.Statement("s1")
	c.Assert(ok, qt.IsTrue)
	c.Assert(got, qt.Equals, st)

	s.AddPortal(&session.Portal{Name: "p1", Statement: st})
	p, ok := s.Portal("p1")
	c.Assert(ok, qt.IsTrue)
	c.Assert(p.Statement, qt.Equals, st)

	s.CloseStatement("s1")
	_, ok = s.Statement("s1")
	c.Assert(ok, qt.IsFalse)

	s.ClosePortal("p1")
	_, ok = s.Portal("p1")
	c.Assert(ok, qt.IsFalse)
}

func TestResolveParamTypePrefersExplicitOID(t *testing.T) {
	c := qt.New(t)

	st := &session.PreparedStatement{
		ParamOIDs: []uint32{uint32(pgtypes.Int4.OID())},
		Metadata:  &passes.Metadata{ParamTypeHints: map[int]pgtypes.PgType{1: pgtypes.Text}},
	}
	c.Assert(st.ResolveParamType(0), qt.Equals, pgtypes.Int4)
}

func TestResolveParamTypeFallsBackToMetadataHint(t *testing.T) {
	c := qt.New(t)

	st := &session.PreparedStatement{
		ParamOIDs: []uint32{0},
		Metadata:  &passes.Metadata{ParamTypeHints: map[int]pgtypes.PgType{1: pgtypes.Text}},
	}
	c.Assert(st.ResolveParamType(0), qt.Equals, pgtypes.Text)
}

func TestResolveParamTypeDefaultsToUnknown(t *testing.T) {
	c := qt.New(t)

	st := &session.PreparedStatement{}
	c.Assert(st.ResolveParamType(0), qt.Equals, pgtypes.Unknown)
}
