package vm

import "github.com/kristofer/ember/pkg/value"

// registerObjectMethods installs Object's native method catalog,
// inherited by every instance whose class's own method
// table (and, for Iterator instances, the iterator table) doesn't
// shadow the name: keys, values, entries, hasProperty, toString.
func (vm *VM) registerObjectMethods() {
	vm.objectMethod1("keys", 0, false, vm.objectKeys)
	vm.objectMethod1("values", 0, false, vm.objectValues)
	vm.objectMethod1("entries", 0, false, vm.objectEntries)
	vm.objectMethod1("hasProperty", 1, false, vm.objectHasProperty)
	vm.objectMethod1("toString", 0, false, vm.objectToString)
}

func (vm *VM) objectMethod1(name string, arity int, varargs bool, fn value.NativeFn) {
	vm.objectMethods[name] = vm.heap.NewNative(name, arity, varargs, fn)
}

func receiverInstance(n *value.Native) *value.Instance {
	return n.Receiver.AsObj().(*value.Instance)
}

func (vm *VM) objectKeys(n *value.Native, args []value.Value) (value.Value, error) {
	var items []value.Value
	receiverInstance(n).Fields.Each(func(key *value.String, v value.Value) {
		items = append(items, value.FromObj(key))
	})
	return value.FromObj(vm.heap.NewList(items)), nil
}

func (vm *VM) objectValues(n *value.Native, args []value.Value) (value.Value, error) {
	var items []value.Value
	receiverInstance(n).Fields.Each(func(key *value.String, v value.Value) {
		items = append(items, v)
	})
	return value.FromObj(vm.heap.NewList(items)), nil
}

func (vm *VM) objectEntries(n *value.Native, args []value.Value) (value.Value, error) {
	var items []value.Value
	receiverInstance(n).Fields.Each(func(key *value.String, v value.Value) {
		items = append(items, value.FromObj(vm.heap.NewList([]value.Value{value.FromObj(key), v})))
	})
	return value.FromObj(vm.heap.NewList(items)), nil
}

func (vm *VM) objectHasProperty(n *value.Native, args []value.Value) (value.Value, error) {
	name, ok := args[0].AsObj().(*value.String)
	if !args[0].IsObj() || !ok {
		return value.Bool(false), nil
	}
	inst := receiverInstance(n)
	if _, ok := inst.Fields.Get(name); ok {
		return value.Bool(true), nil
	}
	_, ok = inst.Class.FindMethod(name)
	return value.Bool(ok), nil
}

func (vm *VM) objectToString(n *value.Native, args []value.Value) (value.Value, error) {
	inst := receiverInstance(n)
	return value.FromObj(vm.heap.InternString("<" + inst.Class.Name + " instance>")), nil
}
