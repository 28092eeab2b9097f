// Package coverage models the coverage and allocation tracker the core
// consumes: per-function call counters and a table of currently-live tracked
// allocations keyed by (address, size). Tracking is scoped: counters and
// allocations only move while their scope is enabled.
package coverage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sebfabre/ktf/ktfmap"
)

// Opts selects optional tracking features for a scope.
type Opts uint32

const (
	// OptMem enables live-allocation tracking within the scope.
	OptMem Opts = 1 << iota
)

var ErrUnknownScope = errors.New("coverage: scope not enabled")

// Entry is a per-function call counter.
type Entry struct {
	Scope string
	Name  string
	Count int
}

// Allocation is one tracked live allocation. Addresses are synthetic: the
// tracker models an allocator, it does not wrap a real one.
type Allocation struct {
	Address uint64
	Size    uint64
}

// memKey encodes (address, size) as a fixed 16-byte big-endian binary key.
func memKey(a Allocation) []byte {
	var k [16]byte
	binary.BigEndian.PutUint64(k[:8], a.Address)
	binary.BigEndian.PutUint64(k[8:], a.Size)
	return k[:]
}

func memDecode(k []byte) Allocation {
	return Allocation{
		Address: binary.BigEndian.Uint64(k[:8]),
		Size:    binary.BigEndian.Uint64(k[8:]),
	}
}

// memCompare orders allocation keys by address, then size, reinterpreting
// the raw key bytes as the two fixed-size integers they encode.
func memCompare(a, b []byte) int {
	aa, ba := binary.BigEndian.Uint64(a[:8]), binary.BigEndian.Uint64(b[:8])
	switch {
	case aa < ba:
		return -1
	case aa > ba:
		return 1
	}
	as, bs := binary.BigEndian.Uint64(a[8:]), binary.BigEndian.Uint64(b[8:])
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

// Tracker holds per-scope function counters and the live-allocation table.
// Like the maps beneath it, it assumes a single logical writer.
type Tracker struct {
	scopes   map[string]Opts
	entries  *ktfmap.Map // key scope+"."+fn, Value *Entry
	mem      *ktfmap.Map // binary (address, size) keys
	nextAddr uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		scopes:  make(map[string]Opts),
		entries: ktfmap.New(nil, nil),
		mem:     ktfmap.New(memCompare, nil),
	}
}

func entryKey(scope, fn string) []byte {
	return []byte(scope + "." + fn)
}

// RegisterFunction declares fn as instrumentable within scope, analogous to
// the symbol scan a real tracker performs at enable time. The counter exists
// (at zero) from registration on.
func (t *Tracker) RegisterFunction(scope, fn string) error {
	e, err := ktfmap.NewElem(entryKey(scope, fn), &Entry{Scope: scope, Name: fn})
	if err != nil {
		return err
	}
	if err := t.entries.Insert(e); err != nil {
		return fmt.Errorf("coverage: registering %s.%s: %w", scope, fn, err)
	}
	e.Put()
	return nil
}

// Enable activates tracking for scope with the given options.
func (t *Tracker) Enable(scope string, opts Opts) {
	t.scopes[scope] = opts
}

// Disable stops tracking for scope. Counters and live allocations recorded
// while enabled remain queryable.
func (t *Tracker) Disable(scope string) {
	delete(t.scopes, scope)
}

func (t *Tracker) enabled(scope string) (Opts, bool) {
	opts, ok := t.scopes[scope]
	return opts, ok
}

// RecordEntry counts one call of fn. Calls are only counted while the scope
// is enabled.
func (t *Tracker) RecordEntry(scope, fn string) {
	if _, ok := t.enabled(scope); !ok {
		return
	}
	if e := t.entries.Find(entryKey(scope, fn)); e != nil {
		e.Value.(*Entry).Count++
	}
}

// FindEntry returns the counter for fn within scope.
func (t *Tracker) FindEntry(scope, fn string) (*Entry, bool) {
	e := t.entries.Find(entryKey(scope, fn))
	if e == nil {
		return nil, false
	}
	return e.Value.(*Entry), true
}

// Alloc models an allocation of size bytes attributed to scope. The
// allocation enters the live table only when the scope is enabled with
// OptMem; it is returned either way so callers can free it uniformly.
func (t *Tracker) Alloc(scope string, size uint64) Allocation {
	t.nextAddr += size + 16 // synthetic, non-overlapping
	a := Allocation{Address: t.nextAddr, Size: size}
	if opts, ok := t.enabled(scope); ok && opts&OptMem != 0 {
		if e, err := ktfmap.NewElem(memKey(a), nil); err == nil {
			if t.mem.Insert(e) == nil {
				e.Put()
			}
		}
	}
	return a
}

// Free releases a. Every free is checked against the live table, whether or
// not the allocation was tracked.
func (t *Tracker) Free(a Allocation) {
	if e, err := t.mem.Remove(memKey(a)); err == nil {
		e.Put()
	}
}

// ForEachAllocation visits the currently-live tracked allocations in
// (address, size) order.
func (t *Tracker) ForEachAllocation(fn func(a Allocation) bool) {
	t.mem.ForEach(func(e *ktfmap.Elem) bool {
		return fn(memDecode(e.Key()))
	})
}

// LiveAllocations returns the size of the live table.
func (t *Tracker) LiveAllocations() int {
	return t.mem.Size()
}
