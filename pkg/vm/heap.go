// Package vm implements ember's stack-based bytecode interpreter: the
// call-frame stack, the heap allocator and its mark-sweep collector,
// the module/import system, the exception-propagation protocol, and
// the native method catalog bound into every built-in type.
package vm

import (
	"github.com/kristofer/ember/pkg/table"
	"github.com/kristofer/ember/pkg/value"
)

const (
	initialGCThreshold = 1 << 20 // 1 MiB before the first collection
	gcGrowthFactor     = 2
)

// Heap owns every allocated object's lifetime: it links new objects
// into an intrusive allocation list (via value.Header.Next), interns
// strings through a weak table, and triggers mark-sweep collection
// once estimated bytes allocated crosses an adaptively doubling
// threshold.
type Heap struct {
	objects        value.Obj // head of the intrusive allocation list
	strings        *table.Table
	bytesAllocated int
	nextGC         int
	shouldGC       bool // set mid-allocation-burst to force a collection at the next safepoint

	// enabled gates collection entirely. It is false during VM
	// bring-up and while a module's closure is being wired for import,
	// when freshly built objects are not yet reachable from any root
	// and a collection would sweep them.
	enabled bool

	vm *VM // back-reference for root marking
}

// NewHeap constructs an empty heap bound to vm (the VM supplies the GC
// roots: its value stack, call frames, and open upvalue list).
func NewHeap(vm *VM) *Heap {
	return &Heap{strings: table.New(), nextGC: initialGCThreshold, vm: vm}
}

// track links obj into the allocation list and accounts for its
// estimated size, possibly flagging that a collection is due. Every
// constructor below (NewString, NewList, ...) routes through this so
// nothing reachable from user code is ever allocated outside the GC's
// view.
func (h *Heap) track(obj value.Obj, size int) {
	obj.ObjHeader().Next = h.objects
	h.objects = obj
	h.bytesAllocated += size
	if h.bytesAllocated > h.nextGC {
		h.shouldGC = true
	}
}

const (
	sizeofString = 32
	sizeofList   = 24
	sizeofOther  = 48
)

// InternString returns the canonical *value.String for s, allocating
// and tracking a new one only if an equal string isn't already
// interned.
func (h *Heap) InternString(s string) *value.String {
	hash := value.HashString(s)
	candidate := &value.String{Chars: s, Hash: hash}
	if existing, ok := h.strings.Get(candidate); ok {
		return existing.AsObj().(*value.String)
	}
	str := value.NewString(s)
	h.track(str, sizeofString+len(s))
	h.strings.Set(str, value.FromObj(str))
	return str
}

// NewList allocates and tracks a fresh list.
func (h *Heap) NewList(items []value.Value) *value.List {
	l := value.NewList(items)
	h.track(l, sizeofList+len(items)*16)
	return l
}

// NewFunction allocates and tracks a fresh function shell (the
// compiler fills in its chunk as it compiles the body).
func (h *Heap) NewFunction(name string) *value.Function {
	fn := value.NewFunction(name)
	h.track(fn, sizeofOther)
	return fn
}

// NewClosure allocates and tracks a closure over fn.
func (h *Heap) NewClosure(fn *value.Function, module *Module) *value.Closure {
	cl := value.NewClosure(fn, module)
	h.track(cl, sizeofOther)
	return cl
}

// NewUpvalue allocates and tracks an open upvalue over a stack slot.
func (h *Heap) NewUpvalue(slot int) *value.Upvalue {
	u := value.NewUpvalue(slot)
	h.track(u, sizeofOther)
	return u
}

// NewClass allocates and tracks a fresh class with an empty method table.
func (h *Heap) NewClass(name string) *value.Class {
	cls := value.NewClass(name, table.New())
	h.track(cls, sizeofOther)
	return cls
}

// NewInstance allocates and tracks a fresh instance of class.
func (h *Heap) NewInstance(class *value.Class) *value.Instance {
	inst := value.NewInstance(class, table.New())
	h.track(inst, sizeofOther)
	return inst
}

// NewBoundMethod allocates and tracks a bound method.
func (h *Heap) NewBoundMethod(receiver value.Value, method *value.Closure) *value.BoundMethod {
	bm := value.NewBoundMethod(receiver, method)
	h.track(bm, sizeofOther)
	return bm
}

// NewNative allocates and tracks a native function/method descriptor.
// Unlike the other constructors this is normally called once per
// built-in at startup, not per call (see natives_*.go).
func (h *Heap) NewNative(name string, arity int, varargs bool, fn value.NativeFn) *value.Native {
	n := value.NewNative(name, arity, varargs, fn)
	h.track(n, sizeofOther)
	return n
}
