package vm

import "github.com/kristofer/ember/pkg/value"

// handler records one active TRY_BEGIN's catch target within a frame,
// so THROW can unwind the value stack back to the handler's base
// before jumping to its catch offset.
type handler struct {
	catchIP    int
	stackDepth int // vm.sp to restore to before entering the catch block
}

// callFrame is one activation of a closure: its own base stack slot,
// instruction pointer into its chunk, the closure being run, and the
// stack of try/catch handlers currently active within it. Unlike a
// register machine's frame, locals live directly on the shared value
// stack starting at Base — GET_LOCAL/SET_LOCAL address them relative
// to this frame's Base.
type callFrame struct {
	closure  *value.Closure
	ip       int
	base     int
	handlers []handler
}
