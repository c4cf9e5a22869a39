package vm

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/compiler"
	"github.com/kristofer/ember/pkg/value"
)

const (
	initialFrames = 64
	framesMax     = 1024
	slotsPerFrame = 256
)

// VM is one instance of the bytecode interpreter: its value stack,
// call-frame stack, heap, loaded modules, and built-in class table. It
// is not safe for concurrent use by multiple goroutines; run one VM
// per fiber of execution.
type VM struct {
	stack []value.Value
	sp    int

	frames     []callFrame
	frameCount int

	openUpvalues *value.Upvalue

	heap *Heap

	modules       map[string]*Module
	importCache   *importCache
	loader        Loader
	currentModule *Module

	builtinClasses  map[string]*value.Class
	markerClasses   map[string]*value.Class
	moduleClass     *value.Class
	stringMethods   map[string]*value.Native
	listMethods     map[string]*value.Native
	objectMethods   map[string]*value.Native
	iteratorMethods map[string]*value.Native
	globalNatives   []*value.Native

	pendingException value.Value
	hasException     bool

	grayStack []value.Obj

	stdout Writer

	log   *logrus.Entry
	gcLog *logrus.Entry
}

// Writer is the minimal sink print and friends write to; os.Stdout
// satisfies it, tests hand in a buffer.
type Writer interface {
	Write(p []byte) (int, error)
}

// New constructs a VM with no loaded modules. loader resolves import
// paths (typically to files on disk — see cmd/ember); log receives
// warnings during compilation, gcLog (may be nil to silence it)
// receives DEBUG-level collection tracing.
func New(loader Loader, log, gcLog *logrus.Entry) *VM {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	vm := &VM{
		stack:          make([]value.Value, slotsPerFrame*initialFrames),
		frames:         make([]callFrame, initialFrames),
		modules:        make(map[string]*Module),
		importCache:    newImportCache(),
		loader:         loader,
		builtinClasses: make(map[string]*value.Class),
		markerClasses:  make(map[string]*value.Class),
		log:            log,
		gcLog:          gcLog,
	}
	vm.heap = NewHeap(vm)
	// Collection stays off until the VM's own structures — built-in
	// classes, native tables — are all reachable from roots; a cycle
	// in the middle of bring-up would sweep half-built tables.
	vm.registerBuiltinClasses()
	vm.registerGlobalNatives()
	vm.heap.enabled = true
	return vm
}

// SetStdout redirects print/input prompt output, primarily for tests.
func (vm *VM) SetStdout(w Writer) { vm.stdout = w }

func (vm *VM) push(v value.Value) {
	if vm.sp == len(vm.stack) {
		grown := make([]value.Value, len(vm.stack)*2)
		copy(grown, vm.stack)
		vm.stack = grown
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.sp-1-distance]
}

// Interpret compiles and runs source as the entry module at path,
// returning the top-level script's result (usually null) or the error
// an uncaught exception or compile failure produced.
func (vm *VM) Interpret(path, source string) (value.Value, error) {
	mod, ok := vm.modules[path]
	if !ok {
		mod = newModule(path)
		vm.seedModuleGlobals(mod, "$main$")
		vm.modules[path] = mod
	}
	vm.currentModule = mod

	fn, err := compiler.Compile(source, vm.heap.InternString, vm.log)
	if err != nil {
		return value.Null, err
	}
	vm.heap.enabled = false
	closure := vm.heap.NewClosure(fn, mod)
	vm.push(value.FromObj(closure))
	vm.heap.enabled = true
	if !vm.callValue(value.FromObj(closure), 0) {
		vm.hasException = false
		vm.sp = 0
		return value.Null, vm.uncaughtError(vm.pendingException)
	}
	result, err := vm.run(vm.frameCount - 1)
	if err != nil {
		// A REPL keeps the same VM alive across failed lines; drop
		// whatever the aborted run left behind.
		vm.frameCount = 0
		vm.sp = 0
		if r, ok := err.(*raised); ok {
			return value.Null, vm.uncaughtError(r.Exc)
		}
	}
	return result, err
}

// run executes bytecode until the frame at floor returns, yielding its
// result, or until an exception escapes every frame above floor (in
// which case the error is a *raised carrying the exception value, so
// a native caller can rethrow it into its own caller's frames).
func (vm *VM) run(floor int) (value.Value, error) {
	for {
		frame := &vm.frames[vm.frameCount-1]
		code := frame.closure.Fn.Chunk.Code

		op := chunk.Op(code[frame.ip])
		frame.ip++

		switch op {
		case chunk.OpConstant:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			vm.push(frame.closure.Fn.Chunk.Constants[idx])

		case chunk.OpNull:
			vm.push(value.Null)
		case chunk.OpTrue:
			vm.push(value.Bool(true))
		case chunk.OpFalse:
			vm.push(value.Bool(false))

		case chunk.OpObject:
			vm.push(value.FromObj(vm.heap.NewInstance(vm.builtinClasses["Object"])))

		case chunk.OpList:
			n := int(code[frame.ip])
			frame.ip++
			items := make([]value.Value, n)
			copy(items, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			vm.push(value.FromObj(vm.heap.NewList(items)))

		case chunk.OpRange:
			end := vm.pop()
			start := vm.pop()
			if !start.IsNumber() || !end.IsNumber() {
				if vm.raise(vm.runtimeErrorf("TypeException", "range bounds must be numbers"), floor) {
					return vm.escape(floor)
				}
				continue
			}
			lo, hi := int(start.AsNumber()), int(end.AsNumber())
			var items []value.Value
			if lo <= hi {
				for i := lo; i <= hi; i++ {
					items = append(items, value.Number(float64(i)))
				}
			} else {
				for i := lo; i >= hi; i-- {
					items = append(items, value.Number(float64(i)))
				}
			}
			vm.push(value.FromObj(vm.heap.NewList(items)))

		case chunk.OpPop:
			vm.pop()
		case chunk.OpDup:
			vm.push(vm.peek(0))
		case chunk.OpDupX2:
			// [a b] -> [a b a b]: duplicate an object/index pair so a
			// compound index assignment reads and writes without
			// re-evaluating either operand.
			a, b := vm.peek(1), vm.peek(0)
			vm.push(a)
			vm.push(b)
		case chunk.OpSwap:
			vm.stack[vm.sp-1], vm.stack[vm.sp-2] = vm.stack[vm.sp-2], vm.stack[vm.sp-1]

		case chunk.OpGetGlobal:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			v, ok := vm.moduleOf(frame).Globals.Get(name)
			if !ok {
				if vm.raise(vm.runtimeErrorf("UndefinedVariableException", "undefined variable '%s'", name.Chars), floor) {
					return vm.escape(floor)
				}
				continue
			}
			vm.push(v)

		case chunk.OpDefineGlobal:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			vm.moduleOf(frame).Globals.Set(name, vm.pop())

		case chunk.OpSetGlobal:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			if vm.moduleOf(frame).Globals.Set(name, vm.peek(0)) {
				vm.moduleOf(frame).Globals.Delete(name)
				if vm.raise(vm.runtimeErrorf("UndefinedVariableException", "undefined variable '%s'", name.Chars), floor) {
					return vm.escape(floor)
				}
				continue
			}

		case chunk.OpGetLocal:
			slot := int(code[frame.ip])
			frame.ip++
			vm.push(vm.stack[frame.base+slot])

		case chunk.OpSetLocal:
			slot := int(code[frame.ip])
			frame.ip++
			vm.stack[frame.base+slot] = vm.peek(0)

		case chunk.OpGetUpvalue:
			slot := int(code[frame.ip])
			frame.ip++
			vm.push(vm.upvalueGet(frame.closure.Upvalues[slot]))

		case chunk.OpSetUpvalue:
			slot := int(code[frame.ip])
			frame.ip++
			vm.upvalueSet(frame.closure.Upvalues[slot], vm.peek(0))

		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.sp - 1)
			vm.pop()

		case chunk.OpGetProperty:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			recv := vm.pop()
			v, exc, ok := vm.getProperty(recv, name)
			if !ok {
				if vm.raise(exc, floor) {
					return vm.escape(floor)
				}
				continue
			}
			vm.push(v)

		case chunk.OpSetProperty:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			val := vm.pop()
			recv := vm.pop()
			inst, ok := asInstance(recv)
			if !ok {
				if vm.raise(vm.runtimeErrorf("TypeException", "cannot set properties on a %s", recv.TypeName()), floor) {
					return vm.escape(floor)
				}
				continue
			}
			inst.Fields.Set(name, val)
			vm.push(val)

		case chunk.OpSetPropertyKV:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			val := vm.pop()
			obj := vm.peek(0)
			inst, _ := asInstance(obj)
			inst.Fields.Set(name, val)

		case chunk.OpGetIndex:
			idxVal := vm.pop()
			recv := vm.pop()
			v, exc, ok := vm.getIndex(recv, idxVal)
			if !ok {
				if vm.raise(exc, floor) {
					return vm.escape(floor)
				}
				continue
			}
			vm.push(v)

		case chunk.OpSetIndex:
			val := vm.pop()
			idxVal := vm.pop()
			recv := vm.pop()
			exc, ok := vm.setIndex(recv, idxVal, val)
			if !ok {
				if vm.raise(exc, floor) {
					return vm.escape(floor)
				}
				continue
			}
			vm.push(val)

		case chunk.OpGetSuper:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			super := vm.pop().AsObj().(*value.Class)
			this := vm.pop()
			method, ok := super.FindMethod(name)
			if !ok {
				if vm.raise(vm.runtimeErrorf("PropertyException", "undefined method '%s'", name.Chars), floor) {
					return vm.escape(floor)
				}
				continue
			}
			vm.push(value.FromObj(vm.heap.NewBoundMethod(this, method)))

		case chunk.OpNegate:
			v := vm.pop()
			if !v.IsNumber() {
				if vm.raise(vm.runtimeErrorf("TypeException", "operand must be a number"), floor) {
					return vm.escape(floor)
				}
				continue
			}
			vm.push(value.Number(-v.AsNumber()))

		case chunk.OpNot:
			vm.push(value.Bool(vm.pop().Falsey()))

		case chunk.OpBitNot:
			v := vm.pop()
			if !v.IsIntegral() {
				if vm.raise(vm.runtimeErrorf("TypeException", "bitwise operand must be an integer"), floor) {
					return vm.escape(floor)
				}
				continue
			}
			vm.push(value.Number(float64(^int64(v.AsNumber()))))

		case chunk.OpAdd:
			if exc, ok := vm.add(); !ok {
				if vm.raise(exc, floor) {
					return vm.escape(floor)
				}
				continue
			}

		case chunk.OpSub, chunk.OpMul, chunk.OpDiv, chunk.OpMod:
			if exc, ok := vm.arith(op); !ok {
				if vm.raise(exc, floor) {
					return vm.escape(floor)
				}
				continue
			}

		case chunk.OpBitAnd, chunk.OpBitOr, chunk.OpBitXor, chunk.OpShl, chunk.OpAShr, chunk.OpShr:
			if exc, ok := vm.bitwise(op); !ok {
				if vm.raise(exc, floor) {
					return vm.escape(floor)
				}
				continue
			}

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpNotEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(!value.Equal(a, b)))
		case chunk.OpIs:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Identity(a, b)))

		case chunk.OpGreater, chunk.OpGreaterEqual, chunk.OpLess, chunk.OpLessEqual:
			if exc, ok := vm.compare(op); !ok {
				if vm.raise(exc, floor) {
					return vm.escape(floor)
				}
				continue
			}

		case chunk.OpIn:
			needle := vm.pop()
			hay := vm.pop()
			found, exc, ok := vm.contains(hay, needle)
			if !ok {
				if vm.raise(exc, floor) {
					return vm.escape(floor)
				}
				continue
			}
			vm.push(value.Bool(found))

		case chunk.OpInstanceof:
			classVal := vm.pop()
			v := vm.pop()
			if !isClass(classVal) {
				if vm.raise(vm.runtimeErrorf("TypeException", "right operand of instanceof must be a class"), floor) {
					return vm.escape(floor)
				}
				continue
			}
			vm.push(value.Bool(vm.isInstanceOf(v, classVal)))

		case chunk.OpTypeof:
			vm.push(value.FromObj(vm.heap.InternString(vm.pop().TypeName())))

		case chunk.OpJump:
			offset := chunk.Uint16(code, frame.ip)
			frame.ip += 2 + int(offset)
		case chunk.OpLoop:
			offset := chunk.Uint16(code, frame.ip)
			frame.ip = frame.ip + 2 - int(offset)
		case chunk.OpJumpIfFalse:
			offset := chunk.Uint16(code, frame.ip)
			frame.ip += 2
			if vm.pop().Falsey() {
				frame.ip += int(offset)
			}
		case chunk.OpJumpIfFalseSC:
			offset := chunk.Uint16(code, frame.ip)
			frame.ip += 2
			if vm.peek(0).Falsey() {
				frame.ip += int(offset)
			}

		case chunk.OpCall:
			argCount := int(code[frame.ip])
			frame.ip++
			if !vm.callValue(vm.peek(argCount), argCount) {
				if vm.raise(vm.takeException(), floor) {
					return vm.escape(floor)
				}
				continue
			}

		case chunk.OpClosure:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			fn := frame.closure.Fn.Chunk.Constants[idx].AsObj().(*value.Function)
			closure := vm.heap.NewClosure(fn, vm.moduleOf(frame))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := code[frame.ip]
				frame.ip++
				index := code[frame.ip]
				frame.ip++
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.base + int(index))
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
			vm.push(value.FromObj(closure))

		case chunk.OpClass:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			class := vm.heap.NewClass(name.Chars)
			class.Superclass = vm.builtinClasses["Object"]
			vm.push(value.FromObj(class))

		case chunk.OpInherit:
			subVal := vm.pop()
			// The superclass stays on the stack: it is the `super` local
			// the class body's scope declared, which method closures
			// capture for SUPER_INVOKE/GET_SUPER.
			superVal := vm.peek(0)
			super, ok := superVal.AsObj().(*value.Class)
			if !superVal.IsObj() || !ok {
				if vm.raise(vm.runtimeErrorf("TypeException", "superclass must be a class"), floor) {
					return vm.escape(floor)
				}
				continue
			}
			sub := subVal.AsObj().(*value.Class)
			sub.Superclass = super
			super.Methods.Each(func(k *value.String, v value.Value) {
				sub.Methods.Set(k, v)
			})

		case chunk.OpMethod:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			method := vm.pop()
			class := vm.peek(0).AsObj().(*value.Class)
			class.Methods.Set(name, method)

		case chunk.OpInvoke:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			argCount := int(code[frame.ip])
			frame.ip++
			if !vm.invoke(name, argCount) {
				if vm.raise(vm.takeException(), floor) {
					return vm.escape(floor)
				}
				continue
			}

		case chunk.OpSuperInvoke:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			argCount := int(code[frame.ip])
			frame.ip++
			super := vm.pop().AsObj().(*value.Class)
			method, ok := super.FindMethod(name)
			if !ok {
				if vm.raise(vm.runtimeErrorf("PropertyException", "undefined method '%s'", name.Chars), floor) {
					return vm.escape(floor)
				}
				continue
			}
			if !vm.callValue(value.FromObj(method), argCount) {
				if vm.raise(vm.takeException(), floor) {
					return vm.escape(floor)
				}
				continue
			}

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.base)
			vm.frameCount--
			vm.sp = frame.base
			if vm.frameCount == floor {
				return result, nil
			}
			vm.push(result)

		case chunk.OpThrow:
			v := vm.pop()
			if vm.raise(v, floor) {
				return vm.escape(floor)
			}

		case chunk.OpTryBegin:
			offset := chunk.Uint16(code, frame.ip)
			frame.ip += 2
			frame.handlers = append(frame.handlers, handler{catchIP: frame.ip + int(offset), stackDepth: vm.sp})

		case chunk.OpTryEnd:
			frame.handlers = frame.handlers[:len(frame.handlers)-1]

		case chunk.OpImport:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			path := constString(frame, idx)
			mod, err := vm.loadModule(path.Chars)
			if err != nil {
				if ioErr, ok := err.(*ImportIOError); ok {
					return value.Null, ioErr
				}
				if r, ok := err.(*raised); ok {
					if vm.raise(r.Exc, floor) {
						return vm.escape(floor)
					}
					continue
				}
				if vm.raise(vm.runtimeErrorf("Exception", "%s", err.Error()), floor) {
					return vm.escape(floor)
				}
				continue
			}
			vm.push(vm.moduleValue(mod))

		case chunk.OpExport:
			idx, next := chunk.ULEB128(code, frame.ip)
			frame.ip = next
			name := constString(frame, idx)
			mod := vm.moduleOf(frame)
			mod.Exports.Set(name, vm.pop())

		default:
			if vm.raise(vm.runtimeErrorf("Exception", "unknown opcode %d", op), floor) {
				return vm.escape(floor)
			}
		}

		vm.maybeCollect()
	}
}

func constString(frame *callFrame, idx uint64) *value.String {
	return frame.closure.Fn.Chunk.Constants[idx].AsObj().(*value.String)
}

func asInstance(v value.Value) (*value.Instance, bool) {
	if !v.IsObj() {
		return nil, false
	}
	inst, ok := v.AsObj().(*value.Instance)
	return inst, ok
}

func isClass(v value.Value) bool {
	if !v.IsObj() {
		return false
	}
	_, ok := v.AsObj().(*value.Class)
	return ok
}

func (vm *VM) moduleOf(frame *callFrame) *Module {
	mod, _ := frame.closure.Module.(*Module)
	if mod == nil {
		return vm.currentModule
	}
	return mod
}

// takeException reads and clears the pending exception left behind by
// a failed callValue/invoke dispatch.
func (vm *VM) takeException() value.Value {
	vm.hasException = false
	return vm.pendingException
}

// raise implements the throw protocol: walk frames from the top,
// collecting a stack trace (runs of identical function/line entries
// are collapsed), popping frames that hold no try handler. Finding a
// handler restores the stack to the handler's depth, jumps the frame
// to its catch target, and leaves the exception on top of the stack —
// raise returns false and execution resumes inline. With no handler
// above floor every frame is popped and raise returns true; the
// caller returns through escape so a native-mode driver can rethrow.
func (vm *VM) raise(exc value.Value, floor int) bool {
	var lines []value.Value
	lastEntry := ""
	repeats := 0
	flush := func() {
		if repeats > 0 {
			lines = append(lines, value.FromObj(vm.heap.InternString(
				fmt.Sprintf("[Previous × %d]", repeats+1))))
		}
		repeats = 0
	}
	note := func(f *callFrame) {
		name := f.closure.Fn.Name
		if name == "" {
			name = "<script>"
		}
		entry := fmt.Sprintf("at %s [line %d]", name, f.closure.Fn.Chunk.LineAt(f.ip))
		if entry == lastEntry {
			repeats++
			return
		}
		flush()
		lastEntry = entry
		lines = append(lines, value.FromObj(vm.heap.InternString(entry)))
	}
	attach := func() {
		flush()
		if inst, ok := asInstance(exc); ok {
			inst.Fields.Set(vm.heap.InternString("stackTrace"), value.FromObj(vm.heap.NewList(lines)))
		}
	}

	for vm.frameCount > floor {
		frame := &vm.frames[vm.frameCount-1]
		note(frame)
		if len(frame.handlers) > 0 {
			h := frame.handlers[len(frame.handlers)-1]
			frame.handlers = frame.handlers[:len(frame.handlers)-1]
			attach()
			vm.closeUpvalues(h.stackDepth)
			vm.sp = h.stackDepth
			frame.ip = h.catchIP
			vm.push(exc)
			return false
		}
		vm.closeUpvalues(frame.base)
		vm.frameCount--
		vm.sp = frame.base
	}
	attach()
	vm.pendingException = exc
	vm.hasException = true
	return true
}

// escape packages the pending exception as the error run returns when
// no handler exists above its floor.
func (vm *VM) escape(floor int) (value.Value, error) {
	vm.hasException = false
	return value.Null, &raised{Exc: vm.pendingException}
}

func (vm *VM) captureUpvalue(slot int) *value.Upvalue {
	var prev *value.Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Slot > slot {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.IsOpen && cur.Slot == slot {
		return cur
	}
	created := vm.heap.NewUpvalue(slot)
	created.Next = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

func (vm *VM) closeUpvalues(fromSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= fromSlot {
		u := vm.openUpvalues
		u.CloseWith(vm.stack[u.Slot])
		vm.openUpvalues = u.Next
	}
}

func (vm *VM) upvalueGet(u *value.Upvalue) value.Value {
	if u.IsOpen {
		return vm.stack[u.Slot]
	}
	return u.Closed()
}

func (vm *VM) upvalueSet(u *value.Upvalue, v value.Value) {
	if u.IsOpen {
		vm.stack[u.Slot] = v
		return
	}
	u.SetClosed(v)
}

// contains implements `in`: list membership, substring, or — for an
// instance — has-field, in which case the key must be a string.
func (vm *VM) contains(hay, needle value.Value) (bool, value.Value, bool) {
	if hay.IsObj() {
		switch h := hay.AsObj().(type) {
		case *value.List:
			for _, item := range h.Items {
				if value.Equal(item, needle) {
					return true, value.Null, true
				}
			}
			return false, value.Null, true
		case *value.String:
			s, ok := needle.AsObj().(*value.String)
			if !needle.IsObj() || !ok {
				return false, vm.runtimeErrorf("TypeException", "substring test requires a string, got %s", needle.TypeName()), false
			}
			return substringIndex(h.Chars, s.Chars) >= 0, value.Null, true
		case *value.Instance:
			key, ok := needle.AsObj().(*value.String)
			if !needle.IsObj() || !ok {
				return false, vm.runtimeErrorf("TypeException", "field test requires a string key, got %s", needle.TypeName()), false
			}
			_, found := h.Fields.Get(key)
			return found, value.Null, true
		}
	}
	return false, vm.runtimeErrorf("TypeException", "%s is not a container", hay.TypeName()), false
}

func substringIndex(s, sub string) int {
	if len(sub) == 0 {
		return 0
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// isInstanceOf walks an instance's superclass chain; for non-instance
// values it tests against the marker class for the value's type, so
// `5 instanceof Number` holds.
func (vm *VM) isInstanceOf(v, classVal value.Value) bool {
	class, ok := classVal.AsObj().(*value.Class)
	if !ok {
		return false
	}
	if inst, ok := asInstance(v); ok {
		for c := inst.Class; c != nil; c = c.Superclass {
			if c == class {
				return true
			}
		}
		return false
	}
	return vm.markerClasses[v.TypeName()] == class
}

// add implements `+`: appending to a list, string concatenation
// (either operand being a string coerces the other to its display
// text, running an instance's toString), or numeric addition.
func (vm *VM) add() (value.Value, bool) {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.Is(value.TypeList):
		al := a.AsObj().(*value.List)
		var items []value.Value
		if bl, ok := b.AsObj().(*value.List); b.IsObj() && ok {
			items = make([]value.Value, 0, len(al.Items)+len(bl.Items))
			items = append(items, al.Items...)
			items = append(items, bl.Items...)
		} else {
			items = make([]value.Value, 0, len(al.Items)+1)
			items = append(items, al.Items...)
			items = append(items, b)
		}
		vm.sp -= 2
		vm.push(value.FromObj(vm.heap.NewList(items)))
		return value.Null, true
	case a.Is(value.TypeString) || b.Is(value.TypeString):
		// Stringify left-to-right so an instance toString with side
		// effects runs in source order.
		as, err := vm.stringify(a)
		if err != nil {
			return raisedValue(err), false
		}
		bs, err := vm.stringify(b)
		if err != nil {
			return raisedValue(err), false
		}
		vm.sp -= 2
		vm.push(value.FromObj(vm.heap.InternString(as + bs)))
		return value.Null, true
	case a.IsNumber() && b.IsNumber():
		vm.sp -= 2
		vm.push(value.Number(a.AsNumber() + b.AsNumber()))
		return value.Null, true
	default:
		return vm.runtimeErrorf("TypeException", "cannot add %s and %s", a.TypeName(), b.TypeName()), false
	}
}

func (vm *VM) arith(op chunk.Op) (value.Value, bool) {
	b := vm.peek(0)
	a := vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeErrorf("TypeException", "operands must be numbers"), false
	}
	vm.sp -= 2
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case chunk.OpSub:
		vm.push(value.Number(x - y))
	case chunk.OpMul:
		vm.push(value.Number(x * y))
	case chunk.OpDiv:
		vm.push(value.Number(x / y))
	case chunk.OpMod:
		vm.push(value.Number(math.Mod(x, y)))
	}
	return value.Null, true
}

func (vm *VM) bitwise(op chunk.Op) (value.Value, bool) {
	b := vm.peek(0)
	a := vm.peek(1)
	if !a.IsIntegral() || !b.IsIntegral() {
		return vm.runtimeErrorf("TypeException", "bitwise operands must be integers"), false
	}
	x, y := int64(a.AsNumber()), int64(b.AsNumber())
	switch op {
	case chunk.OpShl, chunk.OpAShr, chunk.OpShr:
		if y < 0 {
			return vm.runtimeErrorf("TypeException", "negative shift count"), false
		}
	}
	vm.sp -= 2
	switch op {
	case chunk.OpBitAnd:
		vm.push(value.Number(float64(x & y)))
	case chunk.OpBitOr:
		vm.push(value.Number(float64(x | y)))
	case chunk.OpBitXor:
		vm.push(value.Number(float64(x ^ y)))
	case chunk.OpShl:
		vm.push(value.Number(float64(x << uint(y))))
	case chunk.OpAShr:
		vm.push(value.Number(float64(x >> uint(y))))
	case chunk.OpShr:
		vm.push(value.Number(float64(uint64(x) >> uint(y))))
	}
	return value.Null, true
}

func (vm *VM) compare(op chunk.Op) (value.Value, bool) {
	b := vm.peek(0)
	a := vm.peek(1)
	if a.IsNumber() && b.IsNumber() {
		vm.sp -= 2
		x, y := a.AsNumber(), b.AsNumber()
		switch op {
		case chunk.OpGreater:
			vm.push(value.Bool(x > y))
		case chunk.OpGreaterEqual:
			vm.push(value.Bool(x >= y))
		case chunk.OpLess:
			vm.push(value.Bool(x < y))
		case chunk.OpLessEqual:
			vm.push(value.Bool(x <= y))
		}
		return value.Null, true
	}
	as, aok := a.AsObj().(*value.String)
	bs, bok := b.AsObj().(*value.String)
	if a.IsObj() && b.IsObj() && aok && bok {
		vm.sp -= 2
		switch op {
		case chunk.OpGreater:
			vm.push(value.Bool(as.Chars > bs.Chars))
		case chunk.OpGreaterEqual:
			vm.push(value.Bool(as.Chars >= bs.Chars))
		case chunk.OpLess:
			vm.push(value.Bool(as.Chars < bs.Chars))
		case chunk.OpLessEqual:
			vm.push(value.Bool(as.Chars <= bs.Chars))
		}
		return value.Null, true
	}
	return vm.runtimeErrorf("TypeException", "cannot compare %s and %s", a.TypeName(), b.TypeName()), false
}
