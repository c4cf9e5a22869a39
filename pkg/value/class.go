package value

// Class is a runtime class object: its name, its own method table
// (methods declared directly on it, each value a *Closure), and an
// optional superclass pointer. Inheritance is implemented by copying
// the superclass's method table into the subclass's at INHERIT time
// so method lookup here never has to walk a chain.
type Class struct {
	Header
	Name       string
	Methods    Table
	Superclass *Class
}

// NewClass allocates an empty class with the given name and method
// table backing store. The VM supplies the table (via table.New()) so
// this package doesn't need to import package table, which in turn
// imports this package for *String — see table's doc comment.
func NewClass(name string, methods Table) *Class {
	return &Class{Header: Header{Type: TypeClass}, Name: name, Methods: methods}
}

// FindMethod looks up name directly on c's own method table (already
// populated with inherited methods by INHERIT, so this never consults
// Superclass itself).
func (c *Class) FindMethod(name *String) (*Closure, bool) {
	v, ok := c.Methods.Get(name)
	if !ok {
		return nil, false
	}
	closure, ok := v.obj.(*Closure)
	return closure, ok
}
