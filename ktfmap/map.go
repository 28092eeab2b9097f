// Package ktfmap provides the reference-counted sorted container that backs
// the framework's bookkeeping: handles, contexts, coverage entries and
// tracked allocations are all kept in these maps. Elements carry an explicit
// refcount; the container holds exactly one reference per contained element,
// acquired at Insert and handed back to the caller by Remove.
package ktfmap

import (
	"bytes"
	"errors"
	"sync/atomic"

	"github.com/google/btree"
)

// MaxName is the key capacity of an element. Longer keys are silently
// truncated to exactly MaxName bytes at init time, never rejected.
const MaxName = 64

var (
	ErrNilKey       = errors.New("ktfmap: nil key")
	ErrDuplicateKey = errors.New("ktfmap: duplicate key")
	ErrNotFound     = errors.New("ktfmap: key not found")
)

// CompareFunc orders two keys. It operates on the raw stored key bytes, so a
// caller may encode a fixed-size binary key (an integer, an address pair) and
// supply a comparator that reinterprets it.
type CompareFunc func(a, b []byte) int

// FreeFunc is invoked at most once per element, when and only when the
// element's refcount drops to zero. The element must not be used afterwards.
type FreeFunc func(e *Elem)

// Elem is the bookkeeping record for one map entry. Embed it in a payload
// struct or hang the payload off Value; the map never looks at Value.
type Elem struct {
	key  [MaxName]byte
	klen int
	refs atomic.Int32
	m    *Map // owning map, set by Insert; nil until then
	// Value is the caller-owned payload.
	Value any
}

// InitElem initialises e with key, truncating to MaxName bytes if needed,
// and sets the refcount to 1 (the caller's reference).
func InitElem(e *Elem, key []byte) error {
	if key == nil {
		return ErrNilKey
	}
	e.klen = copy(e.key[:], key)
	e.refs.Store(1)
	return nil
}

// NewElem allocates and initialises an element carrying value.
func NewElem(key []byte, value any) (*Elem, error) {
	e := &Elem{Value: value}
	if err := InitElem(e, key); err != nil {
		return nil, err
	}
	return e, nil
}

// Key returns the stored (possibly truncated) key bytes.
func (e *Elem) Key() []byte {
	return e.key[:e.klen]
}

// KeyString returns the stored key as a string.
func (e *Elem) KeyString() string {
	return string(e.key[:e.klen])
}

// Get acquires an additional reference and returns e for chaining.
func (e *Elem) Get() *Elem {
	e.refs.Add(1)
	return e
}

// Put releases one reference. When the count reaches zero the owning map's
// free callback fires, if one was configured. An element that was never
// inserted has no owning map and is simply left to the garbage collector.
func (e *Elem) Put() {
	if e.refs.Add(-1) == 0 {
		if e.m != nil && e.m.free != nil {
			e.m.free(e)
		}
	}
}

// RefCount reports the current reference count.
func (e *Elem) RefCount() int {
	return int(e.refs.Load())
}

// Map is a sorted collection of elements ordered by an injected comparator.
// It is not internally locked: callers serialise their own mutations.
// Refcounts are atomic, so ForEach's pin holds against a Remove+Put pair
// issued by the single writer while a visit runs.
type Map struct {
	tree *btree.BTreeG[*Elem]
	cmp  CompareFunc
	free FreeFunc
}

// New creates a map. A nil cmp defaults to byte-wise ascending comparison of
// the stored keys; free, if non-nil, is called once per element when its
// refcount hits zero.
func New(cmp CompareFunc, free FreeFunc) *Map {
	if cmp == nil {
		cmp = bytes.Compare
	}
	m := &Map{cmp: cmp, free: free}
	m.tree = btree.NewG(2, func(a, b *Elem) bool {
		return m.cmp(a.Key(), b.Key()) < 0
	})
	return m
}

// Insert links e into the map at the position dictated by the comparator and
// takes the container's own reference, distinct from the one the initialising
// caller holds. Equal keys are rejected, not overwritten.
func (m *Map) Insert(e *Elem) error {
	if _, ok := m.tree.Get(e); ok {
		return ErrDuplicateKey
	}
	e.m = m
	e.Get()
	m.tree.ReplaceOrInsert(e)
	return nil
}

func (m *Map) probe(key []byte) *Elem {
	p := &Elem{}
	p.klen = copy(p.key[:], key)
	return p
}

// Find returns the element matching key, or nil. The returned reference is
// borrowed: the caller must not Put it.
func (m *Map) Find(key []byte) *Elem {
	e, ok := m.tree.Get(m.probe(key))
	if !ok {
		return nil
	}
	return e
}

// FindFirst returns the element with the minimum key per the comparator, or
// nil on an empty map. Borrowed, like Find.
func (m *Map) FindFirst() *Elem {
	e, ok := m.tree.Min()
	if !ok {
		return nil
	}
	return e
}

// Remove unlinks the element matching key and transfers the container's
// reference to the caller: the refcount is unchanged, but the caller now owns
// that reference and must eventually Put it.
func (m *Map) Remove(key []byte) (*Elem, error) {
	e, ok := m.tree.Delete(m.probe(key))
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// ForEach visits elements in ascending comparator order. Each element is
// pinned with a temporary reference for the duration of its visit, so a
// concurrent Remove+Put cannot free it mid-visit; the traversal is net-zero
// on every refcount. Return false from fn to stop early.
func (m *Map) ForEach(fn func(e *Elem) bool) {
	m.tree.Ascend(func(e *Elem) bool {
		e.Get()
		cont := fn(e)
		e.Put()
		return cont
	})
}

// DeleteAll unlinks every remaining element and releases the container's
// reference to each, firing the free callback for elements whose count
// reaches zero. Calling it on an empty map is a no-op.
func (m *Map) DeleteAll() {
	for {
		e, ok := m.tree.DeleteMin()
		if !ok {
			return
		}
		e.Put()
	}
}

// Size returns the exact current element count.
func (m *Map) Size() int {
	return m.tree.Len()
}
