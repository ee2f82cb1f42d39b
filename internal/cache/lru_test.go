package cache

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestLRUBasic(t *testing.T) {
	c := qt.New(t)

	l := NewLRU[int](2, 0)
	l.Put("a", 1)
	l.Put("b", 2)

	v, ok := l.Get("a")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, 1)

	l.Put("c", 3) // evicts "b", the least recently used after the Get("a") above
	_, ok = l.Get("b")
	c.Assert(ok, qt.IsFalse)

	v, ok = l.Get("c")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, 3)
}

func TestLRUTTLExpiry(t *testing.T) {
	c := qt.New(t)

	l := NewLRU[string](10, time.Millisecond)
	fakeNow := time.Now()
	l.now = func() time.Time { return fakeNow }

	l.Put("k", "v")
	v, ok := l.Get("k")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "v")

	fakeNow = fakeNow.Add(2 * time.Millisecond)
	_, ok = l.Get("k")
	c.Assert(ok, qt.IsFalse)
}

func TestLRUClear(t *testing.T) {
	c := qt.New(t)

	l := NewLRU[int](10, 0)
	l.Put("a", 1)
	l.Clear()
	c.Assert(l.Len(), qt.Equals, 0)
	_, ok := l.Get("a")
	c.Assert(ok, qt.IsFalse)
}
