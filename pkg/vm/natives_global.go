package vm

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/kristofer/ember/pkg/value"
)

// registerGlobalNatives installs every bare (non-method) built-in
// function, plus the per-type native method tables: list, string,
// Object (inherited by every instance) and Iterator.
func (vm *VM) registerGlobalNatives() {
	vm.globalNative("print", 0, true, vm.nativePrint)
	vm.globalNative("input", 0, true, vm.nativeInput)
	vm.globalNative("clock", 0, false, vm.nativeClock)
	vm.globalNative("toString", 1, false, vm.nativeToString)
	vm.globalNative("repr", 1, false, vm.nativeRepr)
	vm.globalNative("sqrt", 1, false, vm.nativeSqrt)

	vm.stringMethods = map[string]*value.Native{}
	vm.listMethods = map[string]*value.Native{}
	vm.objectMethods = map[string]*value.Native{}
	vm.iteratorMethods = map[string]*value.Native{}
	vm.registerStringMethods()
	vm.registerListMethods()
	vm.registerObjectMethods()
	vm.registerIteratorMethods()
}

// globalNative allocates a Native and records it so every module
// created afterward (see seedModuleGlobals) starts with it already
// bound in its Globals table.
func (vm *VM) globalNative(name string, arity int, varargs bool, fn value.NativeFn) {
	n := vm.heap.NewNative(name, arity, varargs, fn)
	vm.globalNatives = append(vm.globalNatives, n)
}

// seedModuleGlobals installs every registered global native plus NaN,
// Infinity and THIS_MODULE into mod's Globals table, called once per
// module as it is created. thisModule is "$main$" for the entry module
// and the import path for an imported one.
func (vm *VM) seedModuleGlobals(mod *Module, thisModule string) {
	for _, n := range vm.globalNatives {
		mod.Globals.Set(vm.heap.InternString(n.Name), value.FromObj(n))
	}
	mod.Globals.Set(vm.heap.InternString("NaN"), value.Number(math.NaN()))
	mod.Globals.Set(vm.heap.InternString("Infinity"), value.Number(math.Inf(1)))
	mod.Globals.Set(vm.heap.InternString("THIS_MODULE"), value.FromObj(vm.heap.InternString(thisModule)))
	for name, class := range vm.builtinClasses {
		mod.Globals.Set(vm.heap.InternString(name), value.FromObj(class))
	}
}

func (vm *VM) out() Writer {
	if vm.stdout != nil {
		return vm.stdout
	}
	return os.Stdout
}

func (vm *VM) nativePrint(n *value.Native, args []value.Value) (value.Value, error) {
	var line []byte
	for i, a := range args {
		if i > 0 {
			line = append(line, ' ')
		}
		s, err := vm.stringify(a)
		if err != nil {
			return value.Null, err
		}
		line = append(line, s...)
	}
	line = append(line, '\n')
	if _, err := vm.out().Write(line); err != nil {
		return value.Null, err
	}
	return value.Null, nil
}

func (vm *VM) nativeInput(n *value.Native, args []value.Value) (value.Value, error) {
	if len(args) > 0 {
		s, err := vm.stringify(args[0])
		if err != nil {
			return value.Null, err
		}
		fmt.Fprint(vm.out(), s)
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return value.FromObj(vm.heap.InternString("")), nil
	}
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	return value.FromObj(vm.heap.InternString(line)), nil
}

// nativeClock reports seconds of wall-clock time with sub-millisecond
// precision, for timing scripts.
func (vm *VM) nativeClock(n *value.Native, args []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func (vm *VM) nativeToString(n *value.Native, args []value.Value) (value.Value, error) {
	s, err := vm.stringify(args[0])
	if err != nil {
		return value.Null, err
	}
	return value.FromObj(vm.heap.InternString(s)), nil
}

func (vm *VM) nativeRepr(n *value.Native, args []value.Value) (value.Value, error) {
	s, err := vm.repr(args[0])
	if err != nil {
		return value.Null, err
	}
	return value.FromObj(vm.heap.InternString(s)), nil
}

func (vm *VM) nativeSqrt(n *value.Native, args []value.Value) (value.Value, error) {
	v := args[0]
	if !v.IsNumber() {
		return value.Null, vm.raiseNativef("TypeException", "sqrt expects a number, got %s", v.TypeName())
	}
	return value.Number(math.Sqrt(v.AsNumber())), nil
}
