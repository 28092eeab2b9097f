package ktfmap

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testElem struct {
	elem  Elem
	freed bool
	order int
}

func newTestElem(t *testing.T, key string) *testElem {
	t.Helper()
	te := &testElem{}
	te.elem.Value = te
	require.NoError(t, InitElem(&te.elem, []byte(key)))
	return te
}

func TestMapOrdering(t *testing.T) {
	m := New(nil, nil)
	keys := []string{"foo", "bar", "zax"}

	elems := make([]*testElem, len(keys))
	for i, k := range keys {
		elems[i] = newTestElem(t, k)
		assert.Equal(t, i, m.Size())
		require.NoError(t, m.Insert(&elems[i].elem))
	}
	assert.Equal(t, len(keys), m.Size())

	// Sorted alphabetically, so "bar" comes back first.
	require.NotNil(t, m.FindFirst())
	assert.Same(t, &elems[1].elem, m.FindFirst())

	var visited []string
	m.ForEach(func(e *Elem) bool {
		visited = append(visited, e.KeyString())
		return true
	})
	assert.Equal(t, []string{"bar", "foo", "zax"}, visited)

	for i, te := range elems {
		assert.Equal(t, len(keys)-i, m.Size())
		got, err := m.Remove(te.elem.Key())
		require.NoError(t, err)
		assert.Same(t, &te.elem, got)
	}
	assert.Equal(t, 0, m.Size())

	_, err := m.Remove([]byte("foo"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMapFind(t *testing.T) {
	m := New(nil, nil)
	te := newTestElem(t, "foo")
	require.NoError(t, m.Insert(&te.elem))

	assert.Same(t, &te.elem, m.Find([]byte("foo")))
	assert.Nil(t, m.Find([]byte("bar")))
	// A borrowed lookup must not move the refcount.
	assert.Equal(t, 2, te.elem.RefCount())
}

func TestMapRefCounting(t *testing.T) {
	m := New(nil, func(e *Elem) {
		e.Value.(*testElem).freed = true
	})

	elems := make([]*testElem, 3)
	for i, k := range []string{"foo", "bar", "zax"} {
		elems[i] = newTestElem(t, k)
		require.NoError(t, m.Insert(&elems[i].elem))
		// Drop our reference; the map still holds its own.
		elems[i].elem.Put()
	}

	// Traversal takes and drops a reference per element, net zero.
	m.ForEach(func(e *Elem) bool {
		e.Value.(*testElem).freed = false
		return true
	})

	for _, te := range elems {
		got, err := m.Remove(te.elem.Key())
		require.NoError(t, err)
		assert.False(t, te.freed, "free callback must not fire on remove alone")
		// Releasing the transferred reference fires the callback.
		got.Put()
		assert.True(t, te.freed)
	}

	m.DeleteAll()
	assert.Equal(t, 0, m.Size())
}

func TestMapCustomComparator(t *testing.T) {
	intCmp := func(a, b []byte) int {
		va := binary.LittleEndian.Uint64(a)
		vb := binary.LittleEndian.Uint64(b)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	}

	m := New(intCmp, nil)

	const nelems = 3
	elems := make([]*testElem, nelems)
	for i := range elems {
		elems[i] = &testElem{order: nelems - i}
		var key [8]byte
		binary.LittleEndian.PutUint64(key[:], uint64(elems[i].order))
		elems[i].elem.Value = elems[i]
		require.NoError(t, InitElem(&elems[i].elem, key[:]))
		require.NoError(t, m.Insert(&elems[i].elem))
	}

	// Inserted with order values 3, 2, 1; traversal must yield 1, 2, 3.
	want := 1
	m.ForEach(func(e *Elem) bool {
		assert.Equal(t, want, e.Value.(*testElem).order)
		want++
		return true
	})
	assert.Equal(t, nelems+1, want)

	m.DeleteAll()
	assert.Equal(t, 0, m.Size())
}

func TestMapKeyTruncation(t *testing.T) {
	jumbo := bytes.Repeat([]byte{'x'}, MaxName+2)

	var e Elem
	require.NoError(t, InitElem(&e, jumbo))
	assert.Equal(t, bytes.Repeat([]byte{'x'}, MaxName), e.Key())
	assert.Len(t, e.Key(), MaxName)
}

func TestInitElemNilKey(t *testing.T) {
	var e Elem
	assert.ErrorIs(t, InitElem(&e, nil), ErrNilKey)
}

func TestMapInsertDuplicate(t *testing.T) {
	m := New(nil, nil)
	a := newTestElem(t, "foo")
	b := newTestElem(t, "foo")

	require.NoError(t, m.Insert(&a.elem))
	assert.ErrorIs(t, m.Insert(&b.elem), ErrDuplicateKey)
	assert.Equal(t, 1, m.Size())
	// The rejected element keeps only the caller's reference.
	assert.Equal(t, 1, b.elem.RefCount())
}

func TestMapDeleteAll(t *testing.T) {
	freed := 0
	m := New(nil, func(e *Elem) { freed++ })

	const n = 5
	for i := 0; i < n; i++ {
		e, err := NewElem([]byte{byte('a' + i)}, nil)
		require.NoError(t, err)
		require.NoError(t, m.Insert(e))
		e.Put()
	}

	m.DeleteAll()
	assert.Equal(t, n, freed, "free callback fires exactly once per element")
	assert.Equal(t, 0, m.Size())

	m.DeleteAll()
	assert.Equal(t, n, freed, "delete on empty map is a no-op")
}

func TestMapSizeAccounting(t *testing.T) {
	m := New(nil, nil)
	inserted, removed := 0, 0

	for _, k := range []string{"d", "b", "e", "a", "c"} {
		te := newTestElem(t, k)
		require.NoError(t, m.Insert(&te.elem))
		inserted++
	}
	for _, k := range []string{"b", "d"} {
		_, err := m.Remove([]byte(k))
		require.NoError(t, err)
		removed++
	}

	assert.Equal(t, inserted-removed, m.Size())

	// Remaining traversal is monotonically non-decreasing.
	var prev string
	m.ForEach(func(e *Elem) bool {
		assert.LessOrEqual(t, prev, e.KeyString())
		prev = e.KeyString()
		return true
	})
}
