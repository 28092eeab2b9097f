package registry

import (
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/sebfabre/ktf/ktfmap"
	"github.com/sebfabre/ktf/types"
)

// FrameworkVersion is the version tag of the running framework. Handles
// created without an explicit version declare this one.
const FrameworkVersion = "v0.9.0"

// Handle is a named, versioned grouping of contexts and bound tests. A test
// bound to a handle runs once per registered context, in context traversal
// order.
type Handle struct {
	name     string
	version  string
	contexts *ktfmap.Map
	tests    []types.TestMetadata
}

// NewHandle creates a handle declaring the running framework version.
func NewHandle(name string) *Handle {
	return NewHandleWithVersion(name, FrameworkVersion)
}

// NewHandleWithVersion creates a handle declaring an explicit version tag.
// Tests bound to a handle whose version does not gate against the running
// version are skipped without executing.
func NewHandleWithVersion(name, version string) *Handle {
	return &Handle{
		name:     name,
		version:  version,
		contexts: ktfmap.New(nil, nil),
	}
}

// Name returns the handle name.
func (h *Handle) Name() string { return h.name }

// Version returns the handle's declared version tag.
func (h *Handle) Version() string { return h.version }

// VersionOK reports whether the handle's declared version is compatible with
// the running version. Compatibility is major.minor equality; patch
// differences do not gate.
func (h *Handle) VersionOK(running string) bool {
	return semver.MajorMinor(h.version) == semver.MajorMinor(running)
}

// AddContext binds value under name within the handle. Names are unique per
// handle; a duplicate is rejected with ktfmap.ErrDuplicateKey.
func (h *Handle) AddContext(name string, value any) error {
	e, err := ktfmap.NewElem([]byte(name), value)
	if err != nil {
		return fmt.Errorf("registry: context in handle %q: %w", h.name, err)
	}
	if err := h.contexts.Insert(e); err != nil {
		return fmt.Errorf("registry: context %q in handle %q: %w", name, h.name, err)
	}
	e.Put()
	return nil
}

// RemoveContext unbinds the named context, releasing the registry's
// reference to it.
func (h *Handle) RemoveContext(name string) error {
	e, err := h.contexts.Remove([]byte(name))
	if err != nil {
		return fmt.Errorf("registry: context %q in handle %q: %w", name, h.name, err)
	}
	e.Put()
	return nil
}

// RemoveAllContexts unbinds every context.
func (h *Handle) RemoveAllContexts() {
	h.contexts.DeleteAll()
}

// ContextCount returns the number of bound contexts.
func (h *Handle) ContextCount() int {
	return h.contexts.Size()
}

// Contexts returns the bound contexts in container traversal order, which is
// also dispatch order.
func (h *Handle) Contexts() []types.Context {
	out := make([]types.Context, 0, h.contexts.Size())
	h.contexts.ForEach(func(e *ktfmap.Elem) bool {
		out = append(out, types.Context{Name: e.KeyString(), Value: e.Value})
		return true
	})
	return out
}

// Tests returns the tests bound to the handle, in registration order.
func (h *Handle) Tests() []types.TestMetadata {
	return h.tests
}
