package vm

import (
	"strings"

	"github.com/kristofer/ember/pkg/value"
)

// stringify renders v as its display text, the conversion print,
// string concatenation, and the toString native all share. For an
// instance it runs the toString protocol — a toString field or class
// method wins over the built-in rendering — which can execute user
// code, so the result is (string, error): the error is a *raised if
// the toString call threw or returned a non-string.
func (vm *VM) stringify(v value.Value) (string, error) {
	if inst, ok := asInstance(v); ok {
		return vm.instanceToString(inst, v)
	}
	if v.IsObj() {
		switch o := v.AsObj().(type) {
		case *value.String:
			return o.Chars, nil
		case *value.List:
			return vm.listToString(o)
		}
	}
	return v.GoString(), nil
}

// listToString renders a list as "[e1, e2, ...]" with each element in
// repr form, so nested strings stay quoted and a list's display text
// reads back as a literal.
func (vm *VM) listToString(l *value.List) (string, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range l.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		s, err := vm.repr(item)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteByte(']')
	return b.String(), nil
}

// instanceToString resolves and runs an instance's toString — its own
// field first, then the class method chain — and requires a string
// result. An instance with neither falls back to the built-in Object
// rendering.
func (vm *VM) instanceToString(inst *value.Instance, recv value.Value) (string, error) {
	name := vm.heap.InternString("toString")
	var callee value.Value
	if v, ok := inst.Fields.Get(name); ok {
		callee = v
	} else if method, ok := inst.Class.FindMethod(name); ok {
		callee = value.FromObj(vm.heap.NewBoundMethod(recv, method))
	} else {
		return "<" + inst.Class.Name + " instance>", nil
	}
	result, err := vm.callClosureValue(callee, nil)
	if err != nil {
		return "", err
	}
	s, ok := result.AsObj().(*value.String)
	if !result.IsObj() || !ok {
		return "", vm.raiseNativef("TypeException", "toString must return a string, got %s", result.TypeName())
	}
	return s.Chars, nil
}

// repr renders v as a literal that, where possible, could be re-read
// as source: strings quoted, lists bracketed with repr'd elements,
// everything else as its display text.
func (vm *VM) repr(v value.Value) (string, error) {
	if v.IsObj() {
		switch o := v.AsObj().(type) {
		case *value.String:
			return "\"" + strings.ReplaceAll(o.Chars, "\"", "\\\"") + "\"", nil
		case *value.List:
			return vm.listToString(o)
		}
	}
	return vm.stringify(v)
}
