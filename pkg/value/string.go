package value

// String is an immutable, interned byte sequence. All ember strings
// with identical bytes share one String object; this lets every hash-table lookup and every `==`/`is` comparison
// on strings be a pointer compare instead of a byte compare.
//
// Hash is computed once at construction with FNV-1a and cached. We
// hand-roll FNV-1a here rather than reaching for hash/fnv or a
// third-party hasher (e.g. dolthub/maphash, which reaches this module
// only as an indirect dependency of dolthub/swiss) because the hash must be cached *on
// the object itself* as part of the interning invariant, and the
// algorithm is fixed so that two independent implementations of this
// language hash identically.
type String struct {
	Header
	Chars string
	Hash  uint32
}

const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
)

// HashString computes the FNV-1a hash of a byte sequence. Exported so
// the VM's intern-table lookup can hash a candidate []byte/string
// before it has allocated a String object for it.
func HashString(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// NewString constructs a String header for s. It does not intern —
// interning (so that equal bytes share one object) is the heap
// allocator's job, since only the heap knows whether an equal string
// already exists.
func NewString(s string) *String {
	return &String{Header: Header{Type: TypeString}, Chars: s, Hash: HashString(s)}
}
