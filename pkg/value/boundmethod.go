package value

// BoundMethod pairs a receiver value with the closure looked up for
// it, produced by GET_PROPERTY when the property name resolves to a
// method rather than a field. Calling a bound method
// pushes Receiver into local slot 0 in place of the usual call
// convention's implicit receiver slot.
type BoundMethod struct {
	Header
	Receiver Value
	Method   *Closure
}

// NewBoundMethod allocates a bound method.
func NewBoundMethod(receiver Value, method *Closure) *BoundMethod {
	return &BoundMethod{Header: Header{Type: TypeBoundMethod}, Receiver: receiver, Method: method}
}
