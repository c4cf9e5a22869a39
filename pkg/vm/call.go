package vm

import (
	"github.com/pkg/errors"

	"github.com/kristofer/ember/pkg/compiler"
	"github.com/kristofer/ember/pkg/value"
)

// callValue dispatches a CALL or implicit constructor-call instruction
// against whatever the callee turned out to be: a closure, a native, a
// bound method, or a class (constructing an instance and invoking its
// constructor, if any). argCount values plus the callee itself sit on
// top of the stack; on success the callee's frame (or, for natives,
// its result) replaces them. Returns false with vm.pendingException
// set when dispatch failed.
func (vm *VM) callValue(callee value.Value, argCount int) bool {
	if !callee.IsObj() {
		return vm.failCall(vm.runtimeErrorf("TypeException", "%s is not callable", callee.TypeName()))
	}
	switch c := callee.AsObj().(type) {
	case *value.Closure:
		return vm.callClosure(c, argCount)
	case *value.Native:
		return vm.callNative(c, argCount)
	case *value.BoundMethod:
		vm.stack[vm.sp-argCount-1] = c.Receiver
		return vm.callClosure(c.Method, argCount)
	case *value.Class:
		inst := vm.heap.NewInstance(c)
		vm.stack[vm.sp-argCount-1] = value.FromObj(inst)
		if ctor, ok := c.FindMethod(vm.heap.InternString("constructor")); ok {
			return vm.callClosure(ctor, argCount)
		}
		if c == vm.builtinClasses["Iterator"] {
			if ctor, ok := vm.iteratorMethod("constructor"); ok {
				return vm.callNative(ctor.BindReceiver(value.FromObj(inst)), argCount)
			}
		}
		if vm.isExceptionClass(c) {
			return vm.constructException(inst, argCount)
		}
		if argCount != 0 {
			return vm.failCall(vm.runtimeErrorf("ArityException", "%s takes no arguments", c.Name))
		}
		return true
	default:
		return vm.failCall(vm.runtimeErrorf("TypeException", "%s is not callable", callee.TypeName()))
	}
}

func (vm *VM) failCall(exc value.Value) bool {
	vm.pendingException = exc
	vm.hasException = true
	return false
}

// isExceptionClass reports whether c descends from the built-in
// Exception class, whose instances get the implicit one-argument
// message constructor.
func (vm *VM) isExceptionClass(c *value.Class) bool {
	base := vm.builtinClasses["Exception"]
	for ; c != nil; c = c.Superclass {
		if c == base {
			return true
		}
	}
	return false
}

// constructException implements the implicit constructor every
// Exception subclass shares: an optional message argument (default
// "") stored in the instance's message field, plus an empty stack
// trace that throwing later overwrites.
func (vm *VM) constructException(inst *value.Instance, argCount int) bool {
	if argCount > 1 {
		return vm.failCall(vm.runtimeErrorf("ArityException", "%s expects at most 1 argument, got %d", inst.Class.Name, argCount))
	}
	message := ""
	if argCount == 1 {
		arg := vm.pop()
		s, err := vm.stringify(arg)
		if err != nil {
			return vm.failCall(raisedValue(err))
		}
		message = s
	}
	inst.Fields.Set(vm.heap.InternString("message"), value.FromObj(vm.heap.InternString(message)))
	inst.Fields.Set(vm.heap.InternString("stackTrace"), value.FromObj(vm.heap.NewList(nil)))
	return true
}

// callClosure pushes a new frame for closure. Arity is enforced per
// the function's flags: plain functions match exactly, varargs
// functions need arity-1 fixed arguments and pack the surplus into a
// list bound to the last parameter, and lambdas are lax — missing
// arguments become null, extras are dropped.
func (vm *VM) callClosure(closure *value.Closure, argCount int) bool {
	fn := closure.Fn
	required := fn.Arity
	if fn.Varargs {
		required = fn.Arity - 1
	}

	if fn.IsLambda {
		for argCount < required {
			vm.push(value.Null)
			argCount++
		}
		if !fn.Varargs {
			for argCount > fn.Arity {
				vm.pop()
				argCount--
			}
		}
	} else if argCount < required || (!fn.Varargs && argCount > fn.Arity) {
		return vm.failCall(vm.runtimeErrorf("ArityException",
			"%s expects %s%d argument(s), got %d", displayName(fn.Name), arityWord(fn.Varargs), required, argCount))
	}

	if fn.Varargs {
		extra := argCount - required
		items := make([]value.Value, extra)
		copy(items, vm.stack[vm.sp-extra:vm.sp])
		vm.sp -= extra
		vm.push(value.FromObj(vm.heap.NewList(items)))
		argCount = fn.Arity
	}

	if vm.frameCount == framesMax {
		return vm.failCall(vm.runtimeErrorf("StackOverflowException", "call stack overflow"))
	}
	vm.growForCall()
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.base = vm.sp - argCount - 1
	frame.handlers = frame.handlers[:0]
	return true
}

// growForCall doubles the frame array (up to the hard cap) when the
// next frame would not fit, and keeps the value stack sized to
// slotsPerFrame headroom past the current stack pointer. Upvalues
// address the stack by slot index, so the backing array moving here is
// safe.
func (vm *VM) growForCall() {
	if vm.frameCount == len(vm.frames) {
		next := len(vm.frames) * 2
		if next > framesMax {
			next = framesMax
		}
		frames := make([]callFrame, next)
		copy(frames, vm.frames)
		vm.frames = frames
	}
	if vm.sp+slotsPerFrame > len(vm.stack) {
		stack := make([]value.Value, len(vm.stack)*2)
		copy(stack, vm.stack)
		vm.stack = stack
	}
}

func displayName(name string) string {
	if name == "" {
		return "<anonymous function>"
	}
	return name
}

func arityWord(varargs bool) string {
	if varargs {
		return "at least "
	}
	return ""
}

// callNative invokes a built-in synchronously. A varargs native
// accepts any count at or above its declared arity; otherwise the
// count must match exactly. A native failure surfaces either as a
// *raised (an exception value to rethrow as-is) or as a plain Go
// error, thrown as a bare string of its message.
func (vm *VM) callNative(n *value.Native, argCount int) bool {
	if argCount < n.Arity || (!n.Varargs && argCount > n.Arity) {
		return vm.failCall(vm.runtimeErrorf("ArityException",
			"%s expects %s%d argument(s), got %d", displayName(n.Name), arityWord(n.Varargs), n.Arity, argCount))
	}
	args := make([]value.Value, argCount)
	copy(args, vm.stack[vm.sp-argCount:vm.sp])
	result, err := n.Call(args)
	vm.sp -= argCount + 1
	if err != nil {
		return vm.failCall(raisedValue(err))
	}
	vm.push(result)
	return true
}

// callClosureValue runs callee to completion with args and returns
// its result synchronously, for natives that need to invoke a
// language-level callback (list.map, list.filter, sort comparators,
// instance toString, module bodies). It re-enters run() with the
// current frame depth as the floor, so an exception the callback
// doesn't catch comes back here as a *raised error rather than
// unwinding the native's own caller's frames.
func (vm *VM) callClosureValue(callee value.Value, args []value.Value) (value.Value, error) {
	floor := vm.frameCount
	vm.push(callee)
	for _, a := range args {
		vm.push(a)
	}
	if !vm.callValue(callee, len(args)) {
		return value.Null, &raised{Exc: vm.takeException()}
	}
	if vm.frameCount == floor {
		// Dispatched straight to a native (or an argument-less
		// construction): it already ran synchronously and left its
		// result on top of the stack, no frame to run out.
		return vm.pop(), nil
	}
	return vm.run(floor)
}

// invoke fuses GET_PROPERTY+CALL into one step for `recv.name(args)`
// call sites; it is implemented as exactly that fusion rather than a
// specialized fast path straight to a class's method table, trading a
// little speed for one dispatch path shared with plain property
// access (see getProperty).
func (vm *VM) invoke(name *value.String, argCount int) bool {
	recv := vm.peek(argCount)
	v, exc, ok := vm.getProperty(recv, name)
	if !ok {
		vm.sp -= argCount + 1
		return vm.failCall(exc)
	}
	vm.stack[vm.sp-argCount-1] = v
	return vm.callValue(v, argCount)
}

// getProperty resolves recv.name: an instance's own field, then its
// class's method table (bound into a BoundMethod), then (for an
// Iterator instance) the iterator native table, then the Object
// native table every instance inherits; a string or list receiver
// resolves against its own native method table, bound via
// Native.BindReceiver. Returns ok=false with an exception value when
// nothing matches.
func (vm *VM) getProperty(recv value.Value, name *value.String) (value.Value, value.Value, bool) {
	if inst, ok := asInstance(recv); ok {
		if v, ok := inst.Fields.Get(name); ok {
			return v, value.Null, true
		}
		if method, ok := inst.Class.FindMethod(name); ok {
			return value.FromObj(vm.heap.NewBoundMethod(recv, method)), value.Null, true
		}
		if inst.Class == vm.builtinClasses["Iterator"] {
			if n, ok := vm.iteratorMethod(name.Chars); ok {
				return value.FromObj(n.BindReceiver(recv)), value.Null, true
			}
		}
		if n, ok := vm.objectMethod(name.Chars); ok {
			return value.FromObj(n.BindReceiver(recv)), value.Null, true
		}
		return value.Null, vm.runtimeErrorf("PropertyException", "undefined property '%s'", name.Chars), false
	}
	if recv.Is(value.TypeString) {
		if n, ok := vm.stringMethod(name.Chars); ok {
			return value.FromObj(n.BindReceiver(recv)), value.Null, true
		}
	}
	if recv.Is(value.TypeList) {
		if n, ok := vm.listMethod(name.Chars); ok {
			return value.FromObj(n.BindReceiver(recv)), value.Null, true
		}
	}
	return value.Null, vm.runtimeErrorf("TypeException", "%s has no property '%s'", recv.TypeName(), name.Chars), false
}

func (vm *VM) getIndex(recv, idxVal value.Value) (value.Value, value.Value, bool) {
	switch r := recv.AsObj().(type) {
	case *value.List:
		if !idxVal.IsNumber() {
			return value.Null, vm.runtimeErrorf("TypeException", "list index must be a number"), false
		}
		i, ok := value.NormalizeIndex(int(idxVal.AsNumber()), len(r.Items))
		if !ok {
			return value.Null, vm.runtimeErrorf("IndexException", "list index out of range"), false
		}
		return r.Items[i], value.Null, true
	case *value.String:
		if !idxVal.IsNumber() {
			return value.Null, vm.runtimeErrorf("TypeException", "string index must be a number"), false
		}
		i, ok := value.NormalizeIndex(int(idxVal.AsNumber()), len(r.Chars))
		if !ok {
			return value.Null, vm.runtimeErrorf("IndexException", "string index out of range"), false
		}
		return value.FromObj(vm.heap.InternString(string(r.Chars[i]))), value.Null, true
	}
	return value.Null, vm.runtimeErrorf("TypeException", "%s is not indexable", recv.TypeName()), false
}

func (vm *VM) setIndex(recv, idxVal, val value.Value) (value.Value, bool) {
	l, ok := recv.AsObj().(*value.List)
	if !recv.IsObj() || !ok {
		return vm.runtimeErrorf("TypeException", "%s is not index-assignable", recv.TypeName()), false
	}
	if !idxVal.IsNumber() {
		return vm.runtimeErrorf("TypeException", "list index must be a number"), false
	}
	i, inRange := value.NormalizeIndex(int(idxVal.AsNumber()), len(l.Items))
	if !inRange {
		return vm.runtimeErrorf("IndexException", "list index out of range"), false
	}
	l.Items[i] = val
	return value.Null, true
}

// loadModule resolves an import: the cache first, else read, compile
// and run the module's body to completion in native mode before
// copying its exports. A failed file read comes back as the
// non-catchable *ImportIOError; a failure inside the module body (a
// compile error or an exception its top level didn't catch)
// propagates as a normal catchable error.
func (vm *VM) loadModule(path string) (*Module, error) {
	if cached, ok := vm.importCache.get(path); ok {
		return cached, nil
	}
	if vm.loader == nil {
		return nil, &RuntimeError{Message: "no module loader configured"}
	}
	source, err := vm.loader.Load(path)
	if err != nil {
		return nil, &ImportIOError{Path: path, Cause: errors.Wrap(err, "read")}
	}
	mod := newModule(path)
	vm.seedModuleGlobals(mod, path)
	vm.modules[path] = mod

	fn, err := compiler.Compile(source, vm.heap.InternString, vm.log)
	if err != nil {
		return nil, errors.Wrapf(err, "compile %s", path)
	}
	vm.heap.enabled = false
	closure := vm.heap.NewClosure(fn, mod)
	vm.heap.enabled = true
	prevModule := vm.currentModule
	vm.currentModule = mod
	defer func() { vm.currentModule = prevModule }()

	if _, err := vm.callClosureValue(value.FromObj(closure), nil); err != nil {
		return nil, err
	}
	mod.done = true
	// Cached only after the body ran to completion, so a module whose
	// top level failed is re-attempted (and its failure re-raised) on
	// the next import rather than served half-initialized.
	vm.importCache.put(path, mod)
	return mod, nil
}
