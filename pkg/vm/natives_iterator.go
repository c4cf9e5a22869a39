package vm

import "github.com/kristofer/ember/pkg/value"

// registerIteratorMethods installs Iterator's native method catalog:
// constructor(data), iterator, next, more. An
// Iterator instance carries two hidden fields, "data" (the list being
// walked) and "index" (the next position to yield), set up by
// newIterator for list.iterator()/string.iterator() and by the
// constructor for `Iterator(someList)` called directly from source.
func (vm *VM) registerIteratorMethods() {
	vm.iteratorMethod1("constructor", 1, false, vm.iteratorConstructor)
	vm.iteratorMethod1("iterator", 0, false, vm.iteratorSelf)
	vm.iteratorMethod1("next", 0, false, vm.iteratorNext)
	vm.iteratorMethod1("more", 0, false, vm.iteratorMore)
}

func (vm *VM) iteratorMethod1(name string, arity int, varargs bool, fn value.NativeFn) {
	vm.iteratorMethods[name] = vm.heap.NewNative(name, arity, varargs, fn)
}

// newIterator allocates an Iterator instance walking items front to
// back; list.iterator() and string.iterator() both funnel through it.
func (vm *VM) newIterator(items []value.Value) *value.Instance {
	inst := vm.heap.NewInstance(vm.builtinClasses["Iterator"])
	inst.Fields.Set(vm.heap.InternString("data"), value.FromObj(vm.heap.NewList(items)))
	inst.Fields.Set(vm.heap.InternString("index"), value.Number(0))
	return inst
}

func (vm *VM) iteratorConstructor(n *value.Native, args []value.Value) (value.Value, error) {
	l, ok := args[0].AsObj().(*value.List)
	if !args[0].IsObj() || !ok {
		return value.Null, vm.raiseNativef("TypeException", "Iterator expects a list")
	}
	inst := receiverInstance(n)
	inst.Fields.Set(vm.heap.InternString("data"), value.FromObj(l))
	inst.Fields.Set(vm.heap.InternString("index"), value.Number(0))
	return n.Receiver, nil
}

func (vm *VM) iteratorSelf(n *value.Native, args []value.Value) (value.Value, error) {
	return n.Receiver, nil
}

func (vm *VM) iteratorData(inst *value.Instance) ([]value.Value, int) {
	data, _ := inst.Fields.Get(vm.heap.InternString("data"))
	l := data.AsObj().(*value.List)
	idx, _ := inst.Fields.Get(vm.heap.InternString("index"))
	return l.Items, int(idx.AsNumber())
}

func (vm *VM) iteratorMore(n *value.Native, args []value.Value) (value.Value, error) {
	items, idx := vm.iteratorData(receiverInstance(n))
	return value.Bool(idx < len(items)), nil
}

func (vm *VM) iteratorNext(n *value.Native, args []value.Value) (value.Value, error) {
	inst := receiverInstance(n)
	items, idx := vm.iteratorData(inst)
	if idx >= len(items) {
		return value.Null, vm.raiseNativef("IndexException", "iterator exhausted")
	}
	inst.Fields.Set(vm.heap.InternString("index"), value.Number(float64(idx+1)))
	return items[idx], nil
}
