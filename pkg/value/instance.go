package value

// Instance is a runtime object created from a Class: the class it was
// constructed from, plus its own field table. Fields are untyped and
// created on first assignment (SET_PROPERTY_KV and
// object-literal OP_OBJECT both define fields lazily).
type Instance struct {
	Header
	Class  *Class
	Fields Table
}

// NewInstance allocates an instance of class with the given (empty or
// pre-populated) field table.
func NewInstance(class *Class, fields Table) *Instance {
	return &Instance{Header: Header{Type: TypeInstance}, Class: class, Fields: fields}
}
