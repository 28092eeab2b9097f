// Package selftest exercises the framework through its own registry: map
// bookkeeping, reference counting, interceptor hooks, coverage tracking,
// worker assertions and symbol resolution.
package selftest

import (
	"encoding/binary"
	"fmt"

	"github.com/sebfabre/ktf/assertions"
	"github.com/sebfabre/ktf/coverage"
	"github.com/sebfabre/ktf/interceptor"
	"github.com/sebfabre/ktf/ktfmap"
	"github.com/sebfabre/ktf/registry"
	"github.com/sebfabre/ktf/runner"
	"github.com/sebfabre/ktf/symbols"
	"github.com/sebfabre/ktf/types"
)

// mapTestCtx is the per-context payload the parameterized map tests receive.
type mapTestCtx struct {
	name string
}

// Register binds the selftest catalog to reg: a dual handle with two
// contexts, a single handle with one, a handle declaring an incompatible
// version, and a set of unbound tests.
func Register(reg *registry.Registry) error {
	dual := registry.NewHandle("dual")
	single := registry.NewHandle("single")
	wrongversion := registry.NewHandleWithVersion("wrongversion", "v0.0.1")

	for _, h := range []*registry.Handle{dual, single, wrongversion} {
		if err := reg.AddHandle(h); err != nil {
			return fmt.Errorf("selftest: %w", err)
		}
	}

	for _, c := range []struct {
		h    *registry.Handle
		name string
	}{
		{dual, "map1"},
		{dual, "map2"},
		{single, "map3"},
	} {
		if err := c.h.AddContext(c.name, &mapTestCtx{name: c.name}); err != nil {
			return fmt.Errorf("selftest: %w", err)
		}
	}

	reg.BindTest(nil, "dummy", testDummy)
	reg.BindTest(dual, "simplemap", testSimpleMap)
	reg.BindTest(dual, "mapref", testMapRef)
	reg.BindTest(dual, "mapcmpfunc", testMapCmpFunc)
	reg.BindTest(nil, "map_keyoverflow", testMapKeyOverflow)

	// Bound to an incompatible version, so it must be skipped.
	reg.BindTest(wrongversion, "wrongversion", testWrongVersion)

	reg.BindTest(nil, "probeentry", testProbeEntry)
	reg.BindTest(nil, "probereturn", testProbeReturn)
	reg.BindTest(nil, "override", testOverride)
	reg.BindTest(nil, "cov", testCov)
	reg.BindTest(nil, "thread", testThread)
	reg.BindTest(nil, "symbol", testSymbol)
	return nil
}

type myElem struct {
	elem  ktfmap.Elem
	freed bool
	order int
}

func newMyElem(t *assertions.T, key []byte) *myElem {
	e := &myElem{}
	e.elem.Value = e
	t.ExpectNoError(ktfmap.InitElem(&e.elem, key))
	return e
}

func testDummy(t *assertions.T, ctx *types.Context) {
	t.Expect(true, "dummy")
}

func testWrongVersion(t *assertions.T, ctx *types.Context) {
	t.Logf("This test should never have run - wrong version!!!")
	t.Expect(false, "bound to an incompatible handle version")
}

// Simple insertion and removal test.
func testSimpleMap(t *assertions.T, ctx *types.Context) {
	if ctx != nil {
		t.Logf("ctx %s", ctx.Name)
	} else {
		t.Logf("ctx <none>")
	}

	tm := ktfmap.New(nil, nil)
	keys := []string{"foo", "bar", "zax"}
	elems := make([]*myElem, len(keys))
	for i, k := range keys {
		t.ExpectEqual(i, tm.Size())
		elems[i] = newMyElem(t, []byte(k))
		t.ExpectNoError(tm.Insert(&elems[i].elem))
	}
	t.ExpectEqual(len(keys), tm.Size())

	// Sorted alphabetically, so "bar" comes back first.
	t.ExpectEqual(&elems[1].elem, tm.FindFirst())

	for i, e := range elems {
		t.ExpectEqual(len(keys)-i, tm.Size())
		got, err := tm.Remove(e.elem.Key())
		t.ExpectNoError(err)
		t.ExpectEqual(&e.elem, got)
	}
	t.ExpectEqual(0, tm.Size())
}

// Reference counting test.
func testMapRef(t *assertions.T, ctx *types.Context) {
	tm := ktfmap.New(nil, func(e *ktfmap.Elem) {
		e.Value.(*myElem).freed = true
	})

	elems := make([]*myElem, 3)
	for i, k := range []string{"foo", "bar", "zax"} {
		elems[i] = newMyElem(t, []byte(k))
		t.ExpectNoError(tm.Insert(&elems[i].elem))
		// Drop our reference; the container still holds its own.
		elems[i].elem.Put()
	}

	// Traversal takes and drops a reference per element, net zero.
	tm.ForEach(func(e *ktfmap.Elem) bool {
		e.Value.(*myElem).freed = false
		return true
	})

	for _, e := range elems {
		got, err := tm.Remove(e.elem.Key())
		t.ExpectNoError(err)
		t.ExpectEqual(false, e.freed)
		// Releasing the transferred reference fires the free callback.
		got.Put()
		t.ExpectEqual(true, e.freed)
	}

	tm.DeleteAll()
	t.ExpectEqual(0, tm.Size())
}

// Compare function test: insert order values 3, 2, 1 under a numeric
// comparator and ensure retrieval order is 1, 2, 3.
func testMapCmpFunc(t *assertions.T, ctx *types.Context) {
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

	tm := ktfmap.New(intCmp, nil)

	const nelems = 3
	elems := make([]*myElem, nelems)
	for i := 0; i < nelems; i++ {
		key := make([]byte, 8)
		binary.LittleEndian.PutUint64(key, uint64(nelems-i))
		elems[i] = newMyElem(t, key)
		elems[i].order = nelems - i
		t.ExpectNoError(tm.Insert(&elems[i].elem))
	}

	i := 1
	tm.ForEach(func(e *ktfmap.Elem) bool {
		t.ExpectEqual(i, e.Value.(*myElem).order)
		i++
		return true
	})

	tm.DeleteAll()
	t.ExpectEqual(0, tm.Size())
}

// Verify that key names are truncated at MaxName length.
func testMapKeyOverflow(t *assertions.T, ctx *types.Context) {
	jumbokey := make([]byte, ktfmap.MaxName+2)
	for i := range jumbokey {
		jumbokey[i] = 'x'
	}
	e := newMyElem(t, jumbokey)
	t.ExpectEqual(ktfmap.MaxName, len(e.elem.Key()))
	t.ExpectEqual(string(jumbokey[:ktfmap.MaxName]), e.elem.KeyString())
}

func testProbeEntry(t *assertions.T, ctx *types.Context) {
	ic := interceptor.New()
	t.AssertNoError(ic.RegisterTarget("printk", func(args []any) []any {
		return []any{len(args[0].(string))}
	}))

	probecount := 0
	t.AssertNoError(ic.InstallEntryHook("printk", "printkhandler", func(args []any) {
		probecount++
	}))
	defer func() {
		t.ExpectNoError(ic.UninstallEntryHook("printk", "printkhandler"))
	}()

	t.Logf("Testing entry hook...")
	_, err := ic.Call("printk", "hello")
	t.AssertNoError(err)
	t.Assert(probecount > 0, "entry hook did not fire, count %d", probecount)
}

func testProbeReturn(t *assertions.T, ctx *types.Context) {
	ic := interceptor.New()
	t.AssertNoError(ic.RegisterTarget("printk", func(args []any) []any {
		return []any{len(args[0].(string))}
	}))
	t.AssertNoError(ic.RegisterTarget("probesum", func(args []any) []any {
		return []any{args[0].(int) + args[1].(int)}
	}))

	teststr := "Testing return hook..."
	proberet := -1
	t.AssertNoError(ic.InstallReturnHook("printk", "printkrethandler", func(ret *interceptor.Return) {
		proberet = ret.Value(0).(int)
	}))
	defer func() {
		t.ExpectNoError(ic.UninstallReturnHook("printk", "printkrethandler"))
	}()

	_, err := ic.Call("printk", teststr)
	t.AssertNoError(err)
	t.AssertEqual(len(teststr), proberet)

	// Now test modification of the return value.
	ret, err := ic.Call("probesum", 1, 1)
	t.AssertNoError(err)
	t.AssertEqual(2, ret[0])

	t.AssertNoError(ic.InstallReturnHook("probesum", "probesumhandler", func(r *interceptor.Return) {
		r.SetValue(0, -1)
	}))
	defer func() {
		t.ExpectNoError(ic.UninstallReturnHook("probesum", "probesumhandler"))
	}()

	ret, err = ic.Call("probesum", 1, 1)
	t.AssertNoError(err)
	t.AssertEqual(-1, ret[0])
}

func testOverride(t *assertions.T, ctx *types.Context) {
	ic := interceptor.New()

	overrideFailed := false
	t.AssertNoError(ic.RegisterTarget("myfunc", func(args []any) []any {
		overrideFailed = true
		return []any{args[0].(int)}
	}))

	t.AssertNoError(ic.InstallOverride("myfunc", "myfunc_override", func(args []any) []any {
		return []any{0}
	}))
	defer func() {
		t.ExpectNoError(ic.UninstallOverride("myfunc", "myfunc_override"))
	}()

	// Verify the override runs instead of the target body.
	_, err := ic.Call("myfunc", 0)
	t.AssertNoError(err)
	t.Assert(!overrideFailed, "target body ran despite override")

	// Verify the override replaces the return value.
	ret, err := ic.Call("myfunc", 100)
	t.AssertNoError(err)
	t.AssertEqual(0, ret[0])
	t.Assert(!overrideFailed, "target body ran despite override")
}

const covScope = "selftest"

// covCounted stands in for an instrumented function body.
func covCounted(t *assertions.T, tr *coverage.Tracker) {
	tr.RecordEntry(covScope, "cov_counted")
	t.Logf("got called!")
}

func testCov(t *assertions.T, ctx *types.Context) {
	tr := coverage.NewTracker()
	t.AssertNoError(tr.RegisterFunction(covScope, "cov_counted"))

	tr.Enable(covScope, coverage.OptMem)
	defer tr.Disable(covScope)

	e, ok := tr.FindEntry(covScope, "cov_counted")
	t.AssertEqual(true, ok)
	oldcount := e.Count

	covCounted(t, tr)

	e, ok = tr.FindEntry(covScope, "cov_counted")
	t.AssertEqual(true, ok)
	t.AssertEqual(oldcount+1, e.Count)

	p1 := tr.Alloc(covScope, 8)
	p2 := tr.Alloc(covScope, 16)
	p3 := tr.Alloc(covScope, 32)
	p4 := tr.Alloc(covScope, 32)
	defer tr.Free(p2)
	defer tr.Free(p3)

	found := func(a coverage.Allocation) bool {
		hit := false
		tr.ForEachAllocation(func(m coverage.Allocation) bool {
			if m == a {
				hit = true
				return false
			}
			return true
		})
		return hit
	}

	t.AssertEqual(true, found(p1))
	t.AssertEqual(true, found(p2))
	t.AssertEqual(true, found(p3))
	t.AssertEqual(true, found(p4))

	tr.Free(p1)
	tr.Free(p4)

	// p2 and p3 were not freed and must still be tracked.
	t.AssertEqual(false, found(p1))
	t.AssertEqual(true, found(p2))
	t.AssertEqual(true, found(p3))
	t.AssertEqual(false, found(p4))
}

const numTestWorkers = 20

func testThread(t *assertions.T, ctx *types.Context) {
	before := assertions.Count()

	workers := make([]*runner.Worker, numTestWorkers)
	for i := range workers {
		workers[i] = runner.NewWorker(fmt.Sprintf("test_worker_%d", i), t, func(wt *assertions.T) {
			// Assertions must work in worker context.
			wt.AssertEqual(1, 1)
		})
		workers[i].Run()
	}
	for _, w := range workers {
		w.WaitCompleted()
	}

	evaluated := assertions.Count() - before

	// Verify every worker assertion was tallied.
	t.AssertEqual(uint64(numTestWorkers), evaluated)
}

func testSymbol(t *assertions.T, ctx *types.Context) {
	moduleVar := 42

	table := symbols.NewTable()
	t.AssertNoError(table.Register("", "head_cache", &struct{}{}))
	t.AssertNoError(table.Register("selftest", "module_var", &moduleVar))

	// Core symbols resolve without a module qualifier.
	v, err := table.Resolve("", "head_cache")
	t.AssertNoError(err)
	t.AssertNotNil(v)

	// Module symbols resolve both with and without the module name.
	v, err = table.Resolve("", "module_var")
	t.AssertNoError(err)
	t.AssertEqual(&moduleVar, v)

	v, err = table.Resolve("selftest", "module_var")
	t.AssertNoError(err)
	t.AssertEqual(&moduleVar, v)
}
