package vm

import "github.com/kristofer/ember/pkg/value"

// collect runs one full mark-sweep cycle: mark every object reachable
// from a root, sweep the string-intern weak table of anything left
// unmarked, then walk the general allocation list freeing (unlinking)
// anything still unmarked. Roots: the value stack, every active call
// frame's closure, the open-upvalue list, every module's globals and
// exports, the built-in classes, the native method tables and global
// natives, and any in-flight exception.
func (vm *VM) collect() {
	if vm.gcLog != nil {
		vm.gcLog.Debug("gc: beginning collection")
	}
	vm.markRoots()
	vm.traceReferences()
	vm.heap.strings.RemoveUnmarked(func(s *value.String) bool { return s.Marked })
	before := vm.heap.bytesAllocated
	vm.sweep()
	vm.heap.nextGC = vm.heap.bytesAllocated * gcGrowthFactor
	if vm.heap.nextGC < initialGCThreshold {
		vm.heap.nextGC = initialGCThreshold
	}
	vm.heap.shouldGC = false
	if vm.gcLog != nil {
		vm.gcLog.WithField("freed_bytes", before-vm.heap.bytesAllocated).
			WithField("next_gc", vm.heap.nextGC).Debug("gc: collection complete")
	}
}

func (vm *VM) markRoots() {
	for i := 0; i < vm.sp; i++ {
		vm.markValue(vm.stack[i])
	}
	for _, f := range vm.frames[:vm.frameCount] {
		vm.markObject(f.closure)
	}
	for u := vm.openUpvalues; u != nil; u = u.Next {
		vm.markObject(u)
	}
	for _, m := range vm.modules {
		m.Globals.Each(func(k *value.String, v value.Value) {
			vm.markObject(k)
			vm.markValue(v)
		})
		m.Exports.Each(func(k *value.String, v value.Value) {
			vm.markObject(k)
			vm.markValue(v)
		})
	}
	for _, c := range vm.builtinClasses {
		vm.markObject(c)
	}
	// The built-in method tables and the global-native registry hold
	// heap-tracked Natives that are reachable nowhere else; without
	// these the first collection would sweep every built-in method.
	for _, methods := range []map[string]*value.Native{
		vm.stringMethods, vm.listMethods, vm.objectMethods, vm.iteratorMethods,
	} {
		for _, n := range methods {
			vm.markObject(n)
		}
	}
	for _, n := range vm.globalNatives {
		vm.markObject(n)
	}
	if vm.pendingException.IsObj() {
		vm.markValue(vm.pendingException)
	}
}

func (vm *VM) markValue(v value.Value) {
	if v.IsObj() {
		vm.markObject(v.AsObj())
	}
}

func (vm *VM) markObject(obj value.Obj) {
	if obj == nil {
		return
	}
	h := obj.ObjHeader()
	if h.Marked {
		return
	}
	h.Marked = true
	vm.grayStack = append(vm.grayStack, obj)
}

// traceReferences drains the gray stack, marking each object's own
// children (a list's elements, a closure's upvalues and function, an
// instance's class and fields, ...) until nothing new turns gray.
func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		obj := vm.grayStack[len(vm.grayStack)-1]
		vm.grayStack = vm.grayStack[:len(vm.grayStack)-1]
		vm.blacken(obj)
	}
}

func (vm *VM) blacken(obj value.Obj) {
	switch o := obj.(type) {
	case *value.List:
		for _, item := range o.Items {
			vm.markValue(item)
		}
	case *value.Function:
		for _, k := range o.Chunk.Constants {
			vm.markValue(k)
		}
	case *value.Closure:
		vm.markObject(o.Fn)
		for _, u := range o.Upvalues {
			vm.markObject(u)
		}
		if mod, ok := o.Module.(*Module); ok && mod != nil {
			// Modules are rooted independently (vm.modules) but marking
			// here too costs nothing and protects against a closure
			// outliving its module's entry in vm.modules (e.g. a
			// dynamically unloaded module, not currently supported but
			// harmless to guard against).
			mod.Globals.Each(func(k *value.String, v value.Value) {
				vm.markObject(k)
				vm.markValue(v)
			})
		}
	case *value.Upvalue:
		vm.markValue(vm.upvalueGet(o))
	case *value.Class:
		o.Methods.Each(func(k *value.String, v value.Value) {
			vm.markObject(k)
			vm.markValue(v)
		})
		if o.Superclass != nil {
			vm.markObject(o.Superclass)
		}
	case *value.Instance:
		vm.markObject(o.Class)
		o.Fields.Each(func(k *value.String, v value.Value) {
			vm.markObject(k)
			vm.markValue(v)
		})
	case *value.BoundMethod:
		vm.markValue(o.Receiver)
		vm.markObject(o.Method)
	case *value.Native:
		if o.HasReceiver {
			vm.markValue(o.Receiver)
		}
	case *value.String:
		// no children
	}
}

// sweep walks the full allocation list, unlinking and discarding every
// object that survived tracing unmarked, and clears the mark bit on
// everything that remains for the next cycle.
func (vm *VM) sweep() {
	var previous value.Obj
	obj := vm.heap.objects
	for obj != nil {
		h := obj.ObjHeader()
		if h.Marked {
			h.Marked = false
			previous = obj
			obj = h.Next
			continue
		}
		unreached := obj
		obj = h.Next
		if previous != nil {
			previous.ObjHeader().Next = obj
		} else {
			vm.heap.objects = obj
		}
		vm.heap.bytesAllocated -= sizeOf(unreached)
	}
}

func sizeOf(obj value.Obj) int {
	switch o := obj.(type) {
	case *value.String:
		return sizeofString + len(o.Chars)
	case *value.List:
		return sizeofList + len(o.Items)*16
	default:
		return sizeofOther
	}
}

// maybeCollect runs a collection if the byte-allocated threshold has
// been crossed since the last check and collection is enabled. The VM
// calls this at dispatch-loop safepoints rather than on every single
// allocation, amortizing the check across the interpreter loop.
func (vm *VM) maybeCollect() {
	if vm.heap.enabled && vm.heap.shouldGC {
		vm.collect()
	}
}
