package value

// Function is a compiled function body: its chunk, declared arity,
// number of upvalues it closes over, optional name (empty for the
// top-level script and for unnamed lambdas), and the two
// arity-relaxation flags the VM's call protocol honors: IsLambda
// (missing arguments become null, extras are dropped) and Varargs
// (surplus arguments are packed into a list bound to the last
// parameter).
type Function struct {
	Header
	Chunk        *Chunk
	Arity        int
	UpvalueCount int
	Name         string
	IsLambda     bool
	Varargs      bool
}

// NewFunction allocates a Function wrapping a fresh, empty Chunk.
func NewFunction(name string) *Function {
	return &Function{Header: Header{Type: TypeFunction}, Chunk: &Chunk{}, Name: name}
}

// Closure pairs a Function with the upvalues it captured at creation
// time and the module it was defined in (so GET/SET/DEFINE_GLOBAL
// always resolve against the closure's owner module's globals table).
type Closure struct {
	Header
	Fn       *Function
	Upvalues []*Upvalue
	Module   interface{} // *vm.Module; untyped here to avoid value->vm import cycle
}

// NewClosure allocates a Closure over fn with fn.UpvalueCount empty
// upvalue slots.
func NewClosure(fn *Function, module interface{}) *Closure {
	return &Closure{
		Header:   Header{Type: TypeClosure},
		Fn:       fn,
		Upvalues: make([]*Upvalue, fn.UpvalueCount),
		Module:   module,
	}
}

// Upvalue is either open (Slot indexes the still-live cell in the
// VM's value stack) or closed (the value has been moved off the stack
// into the upvalue's own storage). Open upvalues form an intrusive
// list, sorted by stack slot with the deepest (highest) slot at the
// head, threaded through Next; the VM owns that list and is the one
// that reads and writes through Slot, since only it holds the stack
// (and the stack's backing array may move when it grows, so an open
// upvalue must not hold a pointer into it).
type Upvalue struct {
	Header
	Slot   int
	IsOpen bool
	Next   *Upvalue

	closed Value
}

// NewUpvalue allocates an open upvalue over the given stack slot.
func NewUpvalue(slot int) *Upvalue {
	return &Upvalue{Header: Header{Type: TypeUpvalue}, Slot: slot, IsOpen: true}
}

// CloseWith moves v (the value read from the upvalue's stack slot at
// close time) into the upvalue's own storage, converting it from open
// to closed.
func (u *Upvalue) CloseWith(v Value) {
	if !u.IsOpen {
		return
	}
	u.closed = v
	u.IsOpen = false
}

// Closed reads the captured value of a closed upvalue.
func (u *Upvalue) Closed() Value { return u.closed }

// SetClosed overwrites the captured value of a closed upvalue.
func (u *Upvalue) SetClosed(v Value) { u.closed = v }
