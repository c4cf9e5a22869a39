package vm

import (
	"github.com/dolthub/swiss"

	"github.com/kristofer/ember/pkg/table"
	"github.com/kristofer/ember/pkg/value"
)

// Module is one imported (or the top-level entry) compilation unit's
// runtime state: its own global-variable table, the subset of those
// globals it has explicitly re-exported, and the path it was loaded
// from (used as the import cache key).
type Module struct {
	Path    string
	Globals *table.Table
	Exports *table.Table
	done    bool // true once the module body has finished running once
}

func newModule(path string) *Module {
	return &Module{Path: path, Globals: table.New(), Exports: table.New()}
}

// importCache maps a resolved module path to its already-executed
// Module, implemented with dolthub/swiss rather than a plain Go map:
// this is the one hot, string-keyed lookup in the VM's control flow
// (every IMPORT re-checks it) that isn't also required to support the
// GC's tombstone-aware weak-sweep semantics pkg/table provides for the
// intern pool and object tables, so it's a good fit for a
// probing-based map tuned for raw lookup speed instead.
type importCache struct {
	m *swiss.Map[string, *Module]
}

func newImportCache() *importCache {
	return &importCache{m: swiss.NewMap[string, *Module](8)}
}

func (c *importCache) get(path string) (*Module, bool) {
	return c.m.Get(path)
}

func (c *importCache) put(path string, m *Module) {
	c.m.Put(path, m)
}

// Loader resolves an import path to ember source text. The VM is
// constructed with one (see cmd/ember for the filesystem-backed
// implementation); tests typically supply an in-memory map.
type Loader interface {
	Load(path string) (string, error)
}

// moduleValue turns a module's export table into a first-class value,
// so `import "x"` can bind the imported module to a name and have
// `moduleName.export` resolve through GET_PROPERTY. Each call
// allocates a fresh, heap-tracked Import instance and copies the
// module's current exports into its fields; exports added to the
// module afterwards do not appear in an instance already built.
func (vm *VM) moduleValue(m *Module) value.Value {
	inst := vm.heap.NewInstance(vm.moduleClass)
	m.Exports.Each(func(k *value.String, v value.Value) {
		inst.Fields.Set(k, v)
	})
	return value.FromObj(inst)
}
