package vm

import (
	"fmt"
	"strings"

	"github.com/kristofer/ember/pkg/value"
)

// raised carries a language-level exception value across the Go call
// boundary between the interpreter loop and native code: a native
// callback that throws hands the exception back to its calling opcode
// as this error, and the opcode rethrows it into the calling frames.
type raised struct {
	Exc value.Value
}

func (e *raised) Error() string {
	if inst, ok := asInstance(e.Exc); ok {
		return "uncaught " + inst.Class.Name
	}
	return "uncaught exception"
}

// raisedValue unwraps the exception value from an error produced on
// the native path; a plain Go error (an os-level failure inside a
// native, say) becomes a bare string value holding its message, not
// an Exception instance. Used at every point the VM converts a
// native's error return back into a throwable value.
func raisedValue(err error) value.Value {
	if r, ok := err.(*raised); ok {
		return r.Exc
	}
	// No heap access here: the instance is built by the caller via
	// runtimeErrorf in every internal path, so this fallback only
	// fires for foreign errors, which are thrown as the string itself;
	// uncaughtError reports such a value under the name Exception.
	return value.FromObj(value.NewString(err.Error()))
}

// raiseNativef lets native method bodies fail with a typed exception:
// it builds an instance of the named built-in exception class and
// wraps it as a *raised for the native call path to rethrow.
func (vm *VM) raiseNativef(className, format string, args ...interface{}) error {
	return &raised{Exc: vm.runtimeErrorf(className, format, args...)}
}

// RuntimeError is what an uncaught exception surfaces as to the Go
// caller (the CLI maps it to exit code 122): the exception's class and
// message plus its formatted stack trace.
type RuntimeError struct {
	Message    string
	StackTrace []string
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.StackTrace) > 0 {
		b.WriteString("\nStack trace:")
		for _, line := range e.StackTrace {
			b.WriteString("\n  ")
			b.WriteString(line)
		}
	}
	return b.String()
}

// ImportIOError marks a failure to read an imported module's source
// file as non-catchable (unlike every other runtime failure, which
// raises a catchable exception): the driver should abort with exit
// 120, the same code a missing entry script exits with, rather than
// print an "uncaught exception".
type ImportIOError struct {
	Path  string
	Cause error
}

func (e *ImportIOError) Error() string {
	return fmt.Sprintf("cannot import %q: %s", e.Path, e.Cause)
}

func (e *ImportIOError) Unwrap() error { return e.Cause }

// uncaughtError converts an exception value that escaped every frame
// into the RuntimeError the embedding layer reports, pulling the
// message and stackTrace fields off the instance.
func (vm *VM) uncaughtError(exc value.Value) error {
	msg := "uncaught exception"
	name := "Exception"
	var trace []string
	if inst, ok := asInstance(exc); ok {
		name = inst.Class.Name
		if m, ok := inst.Fields.Get(vm.heap.InternString("message")); ok {
			msg = m.GoString()
		}
		if t, ok := inst.Fields.Get(vm.heap.InternString("stackTrace")); ok {
			if l, ok := t.AsObj().(*value.List); t.IsObj() && ok {
				for _, line := range l.Items {
					trace = append(trace, line.GoString())
				}
			}
		}
	} else if exc.IsObj() {
		if s, ok := exc.AsObj().(*value.String); ok {
			msg = s.Chars
		}
	}
	return &RuntimeError{Message: fmt.Sprintf("%s: %s", name, msg), StackTrace: trace}
}

// newException builds an instance of the named built-in exception
// class (falling back to the Exception base if the name is unknown)
// with its message field set; throwing it later fills in stackTrace.
func (vm *VM) newException(className, message string) value.Value {
	class, ok := vm.builtinClasses[className]
	if !ok {
		class = vm.builtinClasses["Exception"]
	}
	inst := vm.heap.NewInstance(class)
	inst.Fields.Set(vm.heap.InternString("message"), value.FromObj(vm.heap.InternString(message)))
	inst.Fields.Set(vm.heap.InternString("stackTrace"), value.FromObj(vm.heap.NewList(nil)))
	return value.FromObj(inst)
}

// runtimeErrorf builds a built-in exception of className with a
// formatted message; the one chokepoint every VM-internal failure
// site raises through.
func (vm *VM) runtimeErrorf(className, format string, args ...interface{}) value.Value {
	return vm.newException(className, fmt.Sprintf(format, args...))
}
