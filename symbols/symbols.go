// Package symbols is the in-memory symbol table the registry resolves
// against. Live symbol-table lookup belongs to the platform; this table is
// the narrow contract the core consumes.
package symbols

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sebfabre/ktf/ktfmap"
)

var ErrNotFound = errors.New("symbols: no unique match")

// Table maps module-qualified symbol names to addresses (opaque values).
type Table struct {
	syms *ktfmap.Map
}

// NewTable creates an empty symbol table.
func NewTable() *Table {
	return &Table{syms: ktfmap.New(nil, nil)}
}

func key(module, name string) []byte {
	return []byte(module + "." + name)
}

// Register adds a symbol under module. Re-registering the same
// module-qualified name is rejected.
func (t *Table) Register(module, name string, addr any) error {
	e, err := ktfmap.NewElem(key(module, name), addr)
	if err != nil {
		return err
	}
	if err := t.syms.Insert(e); err != nil {
		return fmt.Errorf("symbols: registering %s.%s: %w", module, name, err)
	}
	e.Put()
	return nil
}

// Resolve looks up an address by name. With module supplied it requires an
// exact match within that module; without it the whole table is searched and
// the match must be unique.
func (t *Table) Resolve(module, name string) (any, error) {
	if module != "" {
		e := t.syms.Find(key(module, name))
		if e == nil {
			return nil, fmt.Errorf("%w: %s.%s", ErrNotFound, module, name)
		}
		return e.Value, nil
	}

	suffix := "." + name
	var (
		found   any
		matches int
	)
	t.syms.ForEach(func(e *ktfmap.Elem) bool {
		if strings.HasSuffix(e.KeyString(), suffix) {
			found = e.Value
			matches++
		}
		return true
	})
	if matches != 1 {
		return nil, fmt.Errorf("%w: %s (%d matches)", ErrNotFound, name, matches)
	}
	return found, nil
}

// Size returns the number of registered symbols.
func (t *Table) Size() int {
	return t.syms.Size()
}
