package vm

import "github.com/kristofer/ember/pkg/value"

// exceptionClasses lists every built-in exception subclass; all
// descend directly from Exception, which itself descends from Object.
var exceptionClasses = []string{
	"TypeException",
	"ArityException",
	"PropertyException",
	"IndexException",
	"UndefinedVariableException",
	"StackOverflowException",
}

// markerTypeNames maps typeof results to the global marker class bound
// under the corresponding capitalized name, so `x instanceof Number`
// (and the `is` pattern in switch) can test primitive values against a
// class the way instances are tested against theirs.
var markerTypeNames = map[string]string{
	"number":   "Number",
	"string":   "String",
	"boolean":  "Boolean",
	"list":     "List",
	"function": "Function",
}

// registerBuiltinClasses creates Object (the root every instance and
// exception ultimately descends from), the exception hierarchy, the
// Iterator class, the Import class an import's result is wrapped as,
// and the primitive-type marker classes.
func (vm *VM) registerBuiltinClasses() {
	object := vm.heap.NewClass("Object")
	vm.builtinClasses["Object"] = object

	exception := vm.heap.NewClass("Exception")
	exception.Superclass = object
	vm.builtinClasses["Exception"] = exception
	for _, name := range exceptionClasses {
		c := vm.heap.NewClass(name)
		c.Superclass = exception
		vm.builtinClasses[name] = c
	}

	iter := vm.heap.NewClass("Iterator")
	iter.Superclass = object
	vm.builtinClasses["Iterator"] = iter

	vm.moduleClass = vm.heap.NewClass("Import")
	vm.moduleClass.Superclass = object
	vm.builtinClasses["Import"] = vm.moduleClass

	for typeName, className := range markerTypeNames {
		c := vm.heap.NewClass(className)
		vm.builtinClasses[className] = c
		vm.markerClasses[typeName] = c
	}
}

func (vm *VM) stringMethod(name string) (*value.Native, bool) {
	n, ok := vm.stringMethods[name]
	return n, ok
}

func (vm *VM) listMethod(name string) (*value.Native, bool) {
	n, ok := vm.listMethods[name]
	return n, ok
}

func (vm *VM) objectMethod(name string) (*value.Native, bool) {
	n, ok := vm.objectMethods[name]
	return n, ok
}

func (vm *VM) iteratorMethod(name string) (*value.Native, bool) {
	n, ok := vm.iteratorMethods[name]
	return n, ok
}
