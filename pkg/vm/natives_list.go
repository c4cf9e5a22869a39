package vm

import (
	"golang.org/x/exp/slices"

	"github.com/kristofer/ember/pkg/value"
)

// registerListMethods installs list's native method catalog:
// length, push, pop, concat, extend, clear, filter,
// fill, forEach, indexOf, lastIndexOf, iterator, map, ofLength,
// reduce, reverse, sort, any, every.
func (vm *VM) registerListMethods() {
	vm.listMethod1("length", 0, false, vm.listLength)
	vm.listMethod1("push", 1, false, vm.listPush)
	vm.listMethod1("pop", 0, false, vm.listPop)
	vm.listMethod1("concat", 1, false, vm.listConcat)
	vm.listMethod1("extend", 1, false, vm.listExtend)
	vm.listMethod1("clear", 0, false, vm.listClear)
	vm.listMethod1("filter", 1, false, vm.listFilter)
	vm.listMethod1("fill", 1, true, vm.listFill)
	vm.listMethod1("forEach", 1, false, vm.listForEach)
	vm.listMethod1("indexOf", 1, false, vm.listIndexOf)
	vm.listMethod1("lastIndexOf", 1, false, vm.listLastIndexOf)
	vm.listMethod1("iterator", 0, false, vm.listIterator)
	vm.listMethod1("map", 1, false, vm.listMap)
	vm.listMethod1("ofLength", 1, true, vm.listOfLength)
	vm.listMethod1("reduce", 2, false, vm.listReduce)
	vm.listMethod1("reverse", 0, false, vm.listReverse)
	vm.listMethod1("sort", 0, true, vm.listSort)
	vm.listMethod1("any", 1, false, vm.listAny)
	vm.listMethod1("every", 1, false, vm.listEvery)
}

func (vm *VM) listMethod1(name string, arity int, varargs bool, fn value.NativeFn) {
	vm.listMethods[name] = vm.heap.NewNative(name, arity, varargs, fn)
}

func receiverList(n *value.Native) *value.List {
	return n.Receiver.AsObj().(*value.List)
}

func (vm *VM) listLength(n *value.Native, args []value.Value) (value.Value, error) {
	return value.Number(float64(len(receiverList(n).Items))), nil
}

func (vm *VM) listPush(n *value.Native, args []value.Value) (value.Value, error) {
	l := receiverList(n)
	l.Items = append(l.Items, args[0])
	return n.Receiver, nil
}

func (vm *VM) listPop(n *value.Native, args []value.Value) (value.Value, error) {
	l := receiverList(n)
	if len(l.Items) == 0 {
		return value.Null, vm.raiseNativef("IndexException", "pop on an empty list")
	}
	last := l.Items[len(l.Items)-1]
	l.Items = l.Items[:len(l.Items)-1]
	return last, nil
}

// concat returns a new list: the receiver's items followed by other's.
func (vm *VM) listConcat(n *value.Native, args []value.Value) (value.Value, error) {
	other, ok := args[0].AsObj().(*value.List)
	if !args[0].IsObj() || !ok {
		return value.Null, vm.raiseNativef("TypeException", "concat expects a list")
	}
	l := receiverList(n)
	items := make([]value.Value, 0, len(l.Items)+len(other.Items))
	items = append(items, l.Items...)
	items = append(items, other.Items...)
	return value.FromObj(vm.heap.NewList(items)), nil
}

// extend appends other's items onto the receiver in place.
func (vm *VM) listExtend(n *value.Native, args []value.Value) (value.Value, error) {
	other, ok := args[0].AsObj().(*value.List)
	if !args[0].IsObj() || !ok {
		return value.Null, vm.raiseNativef("TypeException", "extend expects a list")
	}
	l := receiverList(n)
	l.Items = append(l.Items, other.Items...)
	return n.Receiver, nil
}

func (vm *VM) listClear(n *value.Native, args []value.Value) (value.Value, error) {
	l := receiverList(n)
	l.Items = l.Items[:0]
	return value.Null, nil
}

// fill sets every slot of the receiver to args[0]; an optional second
// argument narrows the range (start, defaulting to 0) and a third
// (end, defaulting to length).
func (vm *VM) listFill(n *value.Native, args []value.Value) (value.Value, error) {
	l := receiverList(n)
	start, end := 0, len(l.Items)
	if len(args) > 1 && args[1].IsNumber() {
		if i, ok := value.NormalizeIndex(int(args[1].AsNumber()), len(l.Items)+1); ok {
			start = i
		}
	}
	if len(args) > 2 && args[2].IsNumber() {
		if i, ok := value.NormalizeIndex(int(args[2].AsNumber()), len(l.Items)+1); ok {
			end = i
		}
	}
	for i := start; i < end; i++ {
		l.Items[i] = args[0]
	}
	return n.Receiver, nil
}

func (vm *VM) listIndexOf(n *value.Native, args []value.Value) (value.Value, error) {
	for i, item := range receiverList(n).Items {
		if value.Equal(item, args[0]) {
			return value.Number(float64(i)), nil
		}
	}
	return value.Number(-1), nil
}

func (vm *VM) listLastIndexOf(n *value.Native, args []value.Value) (value.Value, error) {
	items := receiverList(n).Items
	for i := len(items) - 1; i >= 0; i-- {
		if value.Equal(items[i], args[0]) {
			return value.Number(float64(i)), nil
		}
	}
	return value.Number(-1), nil
}

// iterator wraps the receiver in a fresh Iterator instance walking its
// items front-to-back (the foreach lowering calls this).
func (vm *VM) listIterator(n *value.Native, args []value.Value) (value.Value, error) {
	items := make([]value.Value, len(receiverList(n).Items))
	copy(items, receiverList(n).Items)
	return value.FromObj(vm.newIterator(items)), nil
}

func (vm *VM) listReverse(n *value.Native, args []value.Value) (value.Value, error) {
	l := receiverList(n)
	items := make([]value.Value, len(l.Items))
	for i, item := range l.Items {
		items[len(items)-1-i] = item
	}
	return value.FromObj(vm.heap.NewList(items)), nil
}

// sort returns a new, stably-sorted list. With no argument it compares
// numbers and strings natively; with a comparator function, it calls
// comparator(a, b) for each ordering decision, expecting a negative,
// zero or positive number back.
func (vm *VM) listSort(n *value.Native, args []value.Value) (value.Value, error) {
	l := receiverList(n)
	items := make([]value.Value, len(l.Items))
	copy(items, l.Items)
	var sortErr error
	less := func(a, b value.Value) bool {
		if a.IsNumber() && b.IsNumber() {
			return a.AsNumber() < b.AsNumber()
		}
		as, aok := a.AsObj().(*value.String)
		bs, bok := b.AsObj().(*value.String)
		if a.IsObj() && aok && b.IsObj() && bok {
			return as.Chars < bs.Chars
		}
		sortErr = vm.raiseNativef("TypeException", "sort requires elements of the same comparable type")
		return false
	}
	if len(args) > 0 && callable(args[0]) {
		less = func(a, b value.Value) bool {
			result, err := vm.callClosureValue(args[0], []value.Value{a, b})
			if err != nil {
				sortErr = err
				return false
			}
			if !result.IsNumber() {
				sortErr = vm.raiseNativef("TypeException", "sort comparator must return a number")
				return false
			}
			return result.AsNumber() < 0
		}
	}
	slices.SortStableFunc(items, func(a, b value.Value) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		default:
			return 0
		}
	})
	if sortErr != nil {
		return value.Null, sortErr
	}
	return value.FromObj(vm.heap.NewList(items)), nil
}

// callable type-checks args[0] as a callable (closure, bound method,
// or native) before vm.callClosureValue invokes it; list natives that
// take a function argument all share this check.
func callable(v value.Value) bool {
	if !v.IsObj() {
		return false
	}
	switch v.AsObj().(type) {
	case *value.Closure, *value.BoundMethod, *value.Native:
		return true
	default:
		return false
	}
}

func (vm *VM) listMap(n *value.Native, args []value.Value) (value.Value, error) {
	if !callable(args[0]) {
		return value.Null, vm.raiseNativef("TypeException", "map expects a function")
	}
	l := receiverList(n)
	items := make([]value.Value, len(l.Items))
	for i, item := range l.Items {
		result, err := vm.callClosureValue(args[0], []value.Value{item})
		if err != nil {
			return value.Null, err
		}
		items[i] = result
	}
	return value.FromObj(vm.heap.NewList(items)), nil
}

// ofLength builds a fresh list of the given length, each slot set to
// an optional fill value (defaulting to null).
func (vm *VM) listOfLength(n *value.Native, args []value.Value) (value.Value, error) {
	if !args[0].IsNumber() {
		return value.Null, vm.raiseNativef("TypeException", "ofLength expects a number")
	}
	length := int(args[0].AsNumber())
	if length < 0 {
		return value.Null, vm.raiseNativef("IndexException", "ofLength expects a non-negative length")
	}
	fill := value.Null
	if len(args) > 1 {
		fill = args[1]
	}
	items := make([]value.Value, length)
	for i := range items {
		items[i] = fill
	}
	return value.FromObj(vm.heap.NewList(items)), nil
}

func (vm *VM) listFilter(n *value.Native, args []value.Value) (value.Value, error) {
	if !callable(args[0]) {
		return value.Null, vm.raiseNativef("TypeException", "filter expects a function")
	}
	l := receiverList(n)
	var items []value.Value
	for _, item := range l.Items {
		result, err := vm.callClosureValue(args[0], []value.Value{item})
		if err != nil {
			return value.Null, err
		}
		if result.Truthy() {
			items = append(items, item)
		}
	}
	return value.FromObj(vm.heap.NewList(items)), nil
}

func (vm *VM) listReduce(n *value.Native, args []value.Value) (value.Value, error) {
	if !callable(args[0]) {
		return value.Null, vm.raiseNativef("TypeException", "reduce expects a function")
	}
	acc := args[1]
	for _, item := range receiverList(n).Items {
		result, err := vm.callClosureValue(args[0], []value.Value{acc, item})
		if err != nil {
			return value.Null, err
		}
		acc = result
	}
	return acc, nil
}

func (vm *VM) listForEach(n *value.Native, args []value.Value) (value.Value, error) {
	if !callable(args[0]) {
		return value.Null, vm.raiseNativef("TypeException", "forEach expects a function")
	}
	for _, item := range receiverList(n).Items {
		if _, err := vm.callClosureValue(args[0], []value.Value{item}); err != nil {
			return value.Null, err
		}
	}
	return value.Null, nil
}

func (vm *VM) listAny(n *value.Native, args []value.Value) (value.Value, error) {
	if !callable(args[0]) {
		return value.Null, vm.raiseNativef("TypeException", "any expects a function")
	}
	for _, item := range receiverList(n).Items {
		result, err := vm.callClosureValue(args[0], []value.Value{item})
		if err != nil {
			return value.Null, err
		}
		if result.Truthy() {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func (vm *VM) listEvery(n *value.Native, args []value.Value) (value.Value, error) {
	if !callable(args[0]) {
		return value.Null, vm.raiseNativef("TypeException", "every expects a function")
	}
	for _, item := range receiverList(n).Items {
		result, err := vm.callClosureValue(args[0], []value.Value{item})
		if err != nil {
			return value.Null, err
		}
		if !result.Truthy() {
			return value.Bool(false), nil
		}
	}
	return value.Bool(true), nil
}
