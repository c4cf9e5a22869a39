package value

// Table is the narrow view of package table's hash table that this
// package needs: just enough for method tables, field tables, and
// module globals/exports to be typed without value importing table
// (which imports value for *String and Value, and would cycle).
//
// The VM constructs the concrete *table.Table and hands it in wherever
// a Table is needed (NewClass, NewInstance, module construction).
type Table interface {
	Get(key *String) (Value, bool)
	Set(key *String, v Value) bool
	Delete(key *String) bool
	Len() int
	Each(fn func(key *String, v Value))
}
