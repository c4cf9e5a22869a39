package vm

import (
	"strconv"
	"strings"

	"github.com/kristofer/ember/pkg/value"
)

// registerStringMethods installs string's native method catalog:
// length, concat, endsWith, indexOf, lastIndexOf,
// iterator, parseNumber, repeat, startsWith, substring.
func (vm *VM) registerStringMethods() {
	vm.stringMethod1("length", 0, false, vm.strLength)
	vm.stringMethod1("concat", 1, false, vm.strConcat)
	vm.stringMethod1("endsWith", 1, false, vm.strEndsWith)
	vm.stringMethod1("indexOf", 1, false, vm.strIndexOf)
	vm.stringMethod1("lastIndexOf", 1, false, vm.strLastIndexOf)
	vm.stringMethod1("iterator", 0, false, vm.strIterator)
	vm.stringMethod1("parseNumber", 0, false, vm.strParseNumber)
	vm.stringMethod1("repeat", 1, false, vm.strRepeat)
	vm.stringMethod1("startsWith", 1, false, vm.strStartsWith)
	vm.stringMethod1("substring", 2, false, vm.strSubstring)
}

func (vm *VM) stringMethod1(name string, arity int, varargs bool, fn value.NativeFn) {
	vm.stringMethods[name] = vm.heap.NewNative(name, arity, varargs, fn)
}

func receiverString(n *value.Native) string {
	return n.Receiver.AsObj().(*value.String).Chars
}

func (vm *VM) strLength(n *value.Native, args []value.Value) (value.Value, error) {
	return value.Number(float64(len(receiverString(n)))), nil
}

func (vm *VM) strConcat(n *value.Native, args []value.Value) (value.Value, error) {
	s, err := vm.stringify(args[0])
	if err != nil {
		return value.Null, err
	}
	return value.FromObj(vm.heap.InternString(receiverString(n) + s)), nil
}

func (vm *VM) strIndexOf(n *value.Native, args []value.Value) (value.Value, error) {
	sub, ok := args[0].AsObj().(*value.String)
	if !args[0].IsObj() || !ok {
		return value.Null, vm.raiseNativef("TypeException", "indexOf expects a string")
	}
	return value.Number(float64(strings.Index(receiverString(n), sub.Chars))), nil
}

func (vm *VM) strLastIndexOf(n *value.Native, args []value.Value) (value.Value, error) {
	sub, ok := args[0].AsObj().(*value.String)
	if !args[0].IsObj() || !ok {
		return value.Null, vm.raiseNativef("TypeException", "lastIndexOf expects a string")
	}
	return value.Number(float64(strings.LastIndex(receiverString(n), sub.Chars))), nil
}

// iterator wraps the receiver in a fresh Iterator instance walking its
// characters front-to-back as one-character strings.
func (vm *VM) strIterator(n *value.Native, args []value.Value) (value.Value, error) {
	s := receiverString(n)
	items := make([]value.Value, len(s))
	for i := range s {
		items[i] = value.FromObj(vm.heap.InternString(string(s[i])))
	}
	return value.FromObj(vm.newIterator(items)), nil
}

func (vm *VM) strParseNumber(n *value.Native, args []value.Value) (value.Value, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(receiverString(n)), 64)
	if err != nil {
		return value.Null, vm.raiseNativef("TypeException", "cannot parse '%s' as a number", receiverString(n))
	}
	return value.Number(f), nil
}

func (vm *VM) strRepeat(n *value.Native, args []value.Value) (value.Value, error) {
	if !args[0].IsNumber() {
		return value.Null, vm.raiseNativef("TypeException", "repeat expects a number")
	}
	count := int(args[0].AsNumber())
	if count < 0 {
		return value.Null, vm.raiseNativef("TypeException", "repeat expects a non-negative count")
	}
	return value.FromObj(vm.heap.InternString(strings.Repeat(receiverString(n), count))), nil
}

func (vm *VM) strStartsWith(n *value.Native, args []value.Value) (value.Value, error) {
	prefix, ok := args[0].AsObj().(*value.String)
	if !args[0].IsObj() || !ok {
		return value.Null, vm.raiseNativef("TypeException", "startsWith expects a string")
	}
	return value.Bool(strings.HasPrefix(receiverString(n), prefix.Chars)), nil
}

func (vm *VM) strEndsWith(n *value.Native, args []value.Value) (value.Value, error) {
	suffix, ok := args[0].AsObj().(*value.String)
	if !args[0].IsObj() || !ok {
		return value.Null, vm.raiseNativef("TypeException", "endsWith expects a string")
	}
	return value.Bool(strings.HasSuffix(receiverString(n), suffix.Chars)), nil
}

func (vm *VM) strSubstring(n *value.Native, args []value.Value) (value.Value, error) {
	s := receiverString(n)
	if !args[0].IsNumber() || !args[1].IsNumber() {
		return value.Null, vm.raiseNativef("TypeException", "substring expects numeric bounds")
	}
	start, ok := value.NormalizeIndex(int(args[0].AsNumber()), len(s)+1)
	if !ok {
		start = 0
	}
	end, ok := value.NormalizeIndex(int(args[1].AsNumber()), len(s)+1)
	if !ok || end < start {
		end = start
	}
	return value.FromObj(vm.heap.InternString(s[start:end])), nil
}
