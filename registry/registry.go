// Package registry is the bookkeeping layer between test declarations and
// the runner: it groups named contexts under versioned handles, binds tests
// to handles (or to the global catalog), and resolves symbols through the
// externally supplied table. Mutations follow a single-writer-during-init
// discipline; the runner only reads.
package registry

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/sebfabre/ktf/ktfmap"
	"github.com/sebfabre/ktf/symbols"
	"github.com/sebfabre/ktf/types"
)

// Config contains registry configuration.
type Config struct {
	Log     log.Logger
	Version string         // running framework version; defaults to FrameworkVersion
	Symbols *symbols.Table // symbol table collaborator; defaults to an empty table
	// CatalogFile optionally declares handles and contexts from YAML.
	CatalogFile string
}

// Registry manages handles, their contexts and the test catalog.
type Registry struct {
	config  Config
	handles *ktfmap.Map // Value *Handle
	global  []types.TestMetadata
}

// New creates a registry, applying the catalog file when configured.
func New(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Version == "" {
		cfg.Version = FrameworkVersion
	}
	if cfg.Symbols == nil {
		cfg.Symbols = symbols.NewTable()
	}

	r := &Registry{
		config:  cfg,
		handles: ktfmap.New(nil, nil),
	}

	if cfg.CatalogFile != "" {
		if err := r.loadCatalog(cfg.CatalogFile); err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	cfg.Log.Debug("Registry created", "version", cfg.Version, "handles", r.handles.Size())
	return r, nil
}

// Version returns the running framework version the gate compares against.
func (r *Registry) Version() string {
	return r.config.Version
}

// AddHandle registers h. Handle names are unique.
func (r *Registry) AddHandle(h *Handle) error {
	e, err := ktfmap.NewElem([]byte(h.Name()), h)
	if err != nil {
		return fmt.Errorf("registry: handle: %w", err)
	}
	if err := r.handles.Insert(e); err != nil {
		return fmt.Errorf("registry: handle %q: %w", h.Name(), err)
	}
	e.Put()
	return nil
}

// Handle returns the named handle.
func (r *Registry) Handle(name string) (*Handle, bool) {
	e := r.handles.Find([]byte(name))
	if e == nil {
		return nil, false
	}
	return e.Value.(*Handle), true
}

// ForEachHandle visits handles in name order.
func (r *Registry) ForEachHandle(fn func(h *Handle) bool) {
	r.handles.ForEach(func(e *ktfmap.Elem) bool {
		return fn(e.Value.(*Handle))
	})
}

// BindTest associates a test body with h, or with the global catalog when h
// is nil. Unbound tests run once with no context.
func (r *Registry) BindTest(h *Handle, name string, fn types.TestFunc) {
	meta := types.TestMetadata{Name: name, Func: fn}
	if h == nil {
		r.global = append(r.global, meta)
		return
	}
	meta.Handle = h.Name()
	h.tests = append(h.tests, meta)
}

// GlobalTests returns the tests bound to no handle, in registration order.
func (r *Registry) GlobalTests() []types.TestMetadata {
	return r.global
}

// TestCount returns the number of registered test bodies (not invocations:
// multi-context dispatch multiplies invocations, not registrations).
func (r *Registry) TestCount() int {
	n := len(r.global)
	r.ForEachHandle(func(h *Handle) bool {
		n += len(h.tests)
		return true
	})
	return n
}

// ResolveSymbol looks up an address by name via the symbol table, preferring
// an exact match within module when supplied.
func (r *Registry) ResolveSymbol(module, name string) (any, error) {
	return r.config.Symbols.Resolve(module, name)
}

// Cleanup tears the registry down in shutdown order: contexts are removed
// from every handle first, then the handles themselves, then the catalog.
func (r *Registry) Cleanup() {
	r.ForEachHandle(func(h *Handle) bool {
		h.RemoveAllContexts()
		h.tests = nil
		return true
	})
	r.handles.DeleteAll()
	r.global = nil
	r.config.Log.Debug("Registry cleaned up")
}

// catalogFile is the YAML declaration of handles and contexts.
type catalogFile struct {
	Handles []handleConfig `yaml:"handles"`
}

type handleConfig struct {
	Name     string   `yaml:"name"`
	Version  string   `yaml:"version,omitempty"`
	Contexts []string `yaml:"contexts,omitempty"`
}

func (r *Registry) loadCatalog(path string) error {
	r.config.Log.Debug("Reading catalog file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading catalog file: %w", err)
	}

	var cat catalogFile
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return fmt.Errorf("parsing catalog file: %w", err)
	}

	for _, hc := range cat.Handles {
		if hc.Name == "" {
			return fmt.Errorf("catalog: handle with empty name")
		}
		h := NewHandle(hc.Name)
		if hc.Version != "" {
			h = NewHandleWithVersion(hc.Name, hc.Version)
		}
		for _, ctxName := range hc.Contexts {
			if err := h.AddContext(ctxName, nil); err != nil {
				return err
			}
		}
		if err := r.AddHandle(h); err != nil {
			return err
		}
	}
	return nil
}
