// Package interceptor models the function interception facility as an
// abstract capability: named targets whose calls can be observed on entry,
// have their return values rewritten, or be overridden entirely. The actual
// patching mechanism (binary/runtime) is a platform concern and lives
// outside this core; callers route through Call.
package interceptor

import (
	"errors"
	"fmt"

	"github.com/sebfabre/ktf/ktfmap"
)

var (
	ErrUnknownTarget     = errors.New("interceptor: unknown target")
	ErrAlreadyInstalled  = errors.New("interceptor: hook already installed")
	ErrNotInstalled      = errors.New("interceptor: hook not installed")
	ErrOverrideInstalled = errors.New("interceptor: override already installed")
)

// Func is the generic shape of an interceptable function.
type Func func(args []any) []any

// EntryHook observes a call's arguments on entry.
type EntryHook func(args []any)

// ReturnHook may read and rewrite the captured return values before the
// original caller observes them.
type ReturnHook func(ret *Return)

// Override replaces the target's body entirely.
type Override func(args []any) []any

// Return is the captured return of a call, mutable by return hooks.
type Return struct {
	values []any
}

// Value returns the i-th return value, or nil when out of range.
func (r *Return) Value(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

// SetValue rewrites the i-th return value.
func (r *Return) SetValue(i int, v any) {
	for len(r.values) <= i {
		r.values = append(r.values, nil)
	}
	r.values[i] = v
}

type namedEntry struct {
	name string
	hook EntryHook
}

type namedReturn struct {
	name string
	hook ReturnHook
}

type target struct {
	fn           Func
	entry        []namedEntry
	ret          []namedReturn
	override     Override
	overrideName string
}

// Interceptor manages targets and their installed hooks.
type Interceptor struct {
	targets *ktfmap.Map
}

// New creates an empty interceptor.
func New() *Interceptor {
	return &Interceptor{targets: ktfmap.New(nil, nil)}
}

// RegisterTarget makes fn interceptable under name.
func (i *Interceptor) RegisterTarget(name string, fn Func) error {
	e, err := ktfmap.NewElem([]byte(name), &target{fn: fn})
	if err != nil {
		return err
	}
	if err := i.targets.Insert(e); err != nil {
		return fmt.Errorf("interceptor: registering %s: %w", name, err)
	}
	e.Put()
	return nil
}

func (i *Interceptor) lookup(name string) (*target, error) {
	e := i.targets.Find([]byte(name))
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	return e.Value.(*target), nil
}

// Call invokes the named target through its installed hooks: an override
// replaces the body; otherwise entry hooks run first, then the body, then
// return hooks against the captured return.
func (i *Interceptor) Call(name string, args ...any) ([]any, error) {
	t, err := i.lookup(name)
	if err != nil {
		return nil, err
	}
	if t.override != nil {
		return t.override(args), nil
	}
	for _, h := range t.entry {
		h.hook(args)
	}
	ret := &Return{values: t.fn(args)}
	for _, h := range t.ret {
		h.hook(ret)
	}
	return ret.values, nil
}

// InstallEntryHook installs a named entry hook on target.
func (i *Interceptor) InstallEntryHook(targetName, hookName string, h EntryHook) error {
	t, err := i.lookup(targetName)
	if err != nil {
		return err
	}
	for _, existing := range t.entry {
		if existing.name == hookName {
			return fmt.Errorf("%w: %s on %s", ErrAlreadyInstalled, hookName, targetName)
		}
	}
	t.entry = append(t.entry, namedEntry{name: hookName, hook: h})
	return nil
}

// UninstallEntryHook removes a named entry hook from target.
func (i *Interceptor) UninstallEntryHook(targetName, hookName string) error {
	t, err := i.lookup(targetName)
	if err != nil {
		return err
	}
	for n, existing := range t.entry {
		if existing.name == hookName {
			t.entry = append(t.entry[:n], t.entry[n+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrNotInstalled, hookName, targetName)
}

// InstallReturnHook installs a named return hook on target.
func (i *Interceptor) InstallReturnHook(targetName, hookName string, h ReturnHook) error {
	t, err := i.lookup(targetName)
	if err != nil {
		return err
	}
	for _, existing := range t.ret {
		if existing.name == hookName {
			return fmt.Errorf("%w: %s on %s", ErrAlreadyInstalled, hookName, targetName)
		}
	}
	t.ret = append(t.ret, namedReturn{name: hookName, hook: h})
	return nil
}

// UninstallReturnHook removes a named return hook from target.
func (i *Interceptor) UninstallReturnHook(targetName, hookName string) error {
	t, err := i.lookup(targetName)
	if err != nil {
		return err
	}
	for n, existing := range t.ret {
		if existing.name == hookName {
			t.ret = append(t.ret[:n], t.ret[n+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrNotInstalled, hookName, targetName)
}

// InstallOverride replaces target's body. Only one override may be installed
// at a time.
func (i *Interceptor) InstallOverride(targetName, overrideName string, o Override) error {
	t, err := i.lookup(targetName)
	if err != nil {
		return err
	}
	if t.override != nil {
		return fmt.Errorf("%w: %s already has %s", ErrOverrideInstalled, targetName, t.overrideName)
	}
	t.override = o
	t.overrideName = overrideName
	return nil
}

// UninstallOverride removes the named override from target.
func (i *Interceptor) UninstallOverride(targetName, overrideName string) error {
	t, err := i.lookup(targetName)
	if err != nil {
		return err
	}
	if t.override == nil || t.overrideName != overrideName {
		return fmt.Errorf("%w: %s on %s", ErrNotInstalled, overrideName, targetName)
	}
	t.override = nil
	t.overrideName = ""
	return nil
}
