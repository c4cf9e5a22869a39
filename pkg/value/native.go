package value

// NativeFn is the signature every built-in method and function
// implements. args excludes the receiver; a native that needs its
// receiver reads n.Receiver (see Native.BindReceiver) rather than
// taking it as a parameter, so that non-method natives (e.g. a bare
// global function) share the same signature.
//
// A non-nil error is turned into a thrown value by the VM's call site
// (callNative in vm/call.go): an error carrying an exception value
// rethrows that value as-is, any other error is thrown as a string of
// its message.
type NativeFn func(n *Native, args []Value) (Value, error)

// Native wraps a Go-implemented function or method: its name (for
// error messages and stack traces), declared arity, a varargs flag
// (when set, Arity is the minimum argument count and
// any extra positional arguments are collected, mirroring how the
// compiler treats a declared function's trailing `rest...` parameter),
// and a bound-receiver slot.
//
// Receiver is set only on the copies BindReceiver returns, so a native
// method sees its receiver without every call site having to thread
// it through args; the shared natives in the VM's method tables never
// carry one, and a bare (unbound) native function simply never has
// HasReceiver set.
type Native struct {
	Header
	Name        string
	Arity       int
	Varargs     bool
	Fn          NativeFn
	Receiver    Value
	HasReceiver bool
}

// NewNative allocates a native function/method descriptor.
func NewNative(name string, arity int, varargs bool, fn NativeFn) *Native {
	return &Native{Header: Header{Type: TypeNative}, Name: name, Arity: arity, Varargs: varargs, Fn: fn}
}

// BindReceiver returns a shallow copy of n with its receiver slot set,
// used when a native is looked up as a method on some Value
// (GET_PROPERTY on a built-in type). Copying rather than
// mutating the shared *Native avoids a race if the same native is ever
// invoked reentrantly (e.g. a callback natively invoking another
// method on the same built-in class) during its own call.
func (n *Native) BindReceiver(receiver Value) *Native {
	bound := *n
	bound.Receiver = receiver
	bound.HasReceiver = true
	return &bound
}

// Call invokes the native with args, which must already satisfy the
// declared arity (the VM's CALL/INVOKE handling checks this before
// calling in).
func (n *Native) Call(args []Value) (Value, error) {
	return n.Fn(n, args)
}
