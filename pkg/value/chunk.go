package value

import "github.com/kristofer/ember/pkg/chunk"

// lineRun run-length-encodes a contiguous span of bytecode offsets
// that originated from the same source line.
type lineRun struct {
	line  int
	count int
}

// Chunk is the compiled bytecode for one function: an opcode byte
// stream, the pool of constants it indexes into via ULEB-128 operands,
// and a line table for error reporting.
//
// Chunk lives in package value, not package chunk, because its
// Constants slice holds Values, and a Value can itself be a Function
// wrapping another Chunk (one function's constant pool holds its
// nested functions' compiled bodies) — putting Chunk in the leaf
// chunk package, which Value depends on, would be a cycle.
type Chunk struct {
	Code      []byte
	Constants []Value
	lines     []lineRun
}

// Write appends one raw instruction byte (an opcode or an operand
// byte) at the given source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.noteLine(line)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op chunk.Op, line int) {
	c.Write(byte(op), line)
}

func (c *Chunk) noteLine(line int) {
	c.noteLineN(line, 1)
}

func (c *Chunk) noteLineN(line, n int) {
	if ln := len(c.lines); ln > 0 && c.lines[ln-1].line == line {
		c.lines[ln-1].count += n
		return
	}
	c.lines = append(c.lines, lineRun{line: line, count: n})
}

// WriteBytes appends raw bytes (e.g. a ULEB-128 or big-endian operand
// encoding) all attributed to the same source line.
func (c *Chunk) WriteBytes(b []byte, line int) {
	c.Code = append(c.Code, b...)
	c.noteLineN(line, len(b))
}

// AddConstant appends v to the constant pool and returns its index.
// The compiler is responsible for deduplication (see DESIGN.md); this
// method always appends.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// WriteConstant emits OpConstant followed by the ULEB-128 encoded
// index of v in the constant pool, adding v to the pool first.
func (c *Chunk) WriteConstant(v Value, line int) {
	idx := c.AddConstant(v)
	c.WriteOp(chunk.OpConstant, line)
	c.WriteBytes(chunk.PutULEB128(nil, uint64(idx)), line)
}

// WriteULEB128 appends the ULEB-128 encoding of x, e.g. for opcodes
// like OpInvoke that take a constant-pool index operand without an
// accompanying OpConstant.
func (c *Chunk) WriteULEB128(x uint64, line int) {
	c.WriteBytes(chunk.PutULEB128(nil, x), line)
}

// WriteUint16 appends a big-endian 2-byte jump operand, returning the
// byte offset of the first of the two bytes so the compiler can patch
// it once the jump target is known.
func (c *Chunk) WriteUint16(x uint16, line int) int {
	at := len(c.Code)
	c.WriteBytes(chunk.PutUint16(nil, x), line)
	return at
}

// PatchUint16 overwrites the 2-byte big-endian operand at the given
// code offset, used to back-patch forward jumps once their target is
// known.
func (c *Chunk) PatchUint16(at int, x uint16) {
	c.Code[at] = byte(x >> 8)
	c.Code[at+1] = byte(x)
}

// LineAt returns the source line that produced the instruction at the
// given bytecode offset, by walking the run-length table.
func (c *Chunk) LineAt(offset int) int {
	remaining := offset
	for _, run := range c.lines {
		if remaining < run.count {
			return run.line
		}
		remaining -= run.count
	}
	if len(c.lines) > 0 {
		return c.lines[len(c.lines)-1].line
	}
	return 0
}

// Len returns the current length of the code byte stream, useful for
// computing jump targets during compilation.
func (c *Chunk) Len() int { return len(c.Code) }
