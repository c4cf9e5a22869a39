// Package chunk defines ember's bytecode instruction set and the
// low-level byte-stream encoding helpers (ULEB-128 constant indices,
// big-endian 2-byte jump offsets) used to write and read it.
//
// It deliberately knows nothing about value.Value or about chunks
// themselves (the compiled-function container, Chunk, lives in
// package value alongside Function — see value/chunk.go — since a
// chunk's constant pool holds Values and Values can hold Functions,
// which would otherwise be an import cycle). This package is the
// leaf: both pkg/value and pkg/vm depend on it, it depends on
// nothing but the standard library.
package chunk

// Op is a single bytecode opcode, one byte wide.
type Op byte

const (
	// Literals and stack.
	OpConstant Op = iota
	OpNull
	OpTrue
	OpFalse
	OpObject
	OpList  // operand: 1 byte element count
	OpRange // pops end, start; pushes inclusive integer list
	OpPop
	OpDup
	OpDupX2
	OpSwap

	// Variables.
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpGetLocal  // operand: 1 byte slot
	OpSetLocal  // operand: 1 byte slot
	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue

	// Properties and indexing.
	OpGetProperty
	OpSetProperty
	OpSetPropertyKV
	OpGetIndex
	OpSetIndex
	OpGetSuper

	// Arithmetic / logic / compare.
	OpNegate
	OpNot
	OpBitNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpAShr // arithmetic (signed) shift right
	OpShr  // logical (unsigned) shift right
	OpEqual
	OpNotEqual
	OpIs
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpIn
	OpInstanceof
	OpTypeof

	// Control flow. Jump operands are 2 bytes, big-endian, relative
	// forward for OpJump/OpJumpIfFalse/OpJumpIfFalseSC, backward for
	// OpLoop.
	OpJump
	OpLoop
	OpJumpIfFalse   // pops
	OpJumpIfFalseSC // peeks (short-circuit)

	// Calls and classes.
	OpCall // operand: 1 byte argCount
	OpClosure
	OpClass
	OpInherit
	OpMethod
	OpInvoke     // operand: ULEB128 name constant index, then 1 byte argCount
	OpSuperInvoke
	OpReturn

	// Exceptions.
	OpThrow
	OpTryBegin // operand: 2 byte big-endian catch offset
	OpTryEnd

	// Modules.
	OpImport
	OpExport
)

var names = [...]string{
	OpConstant:      "CONSTANT",
	OpNull:          "NULL",
	OpTrue:          "TRUE",
	OpFalse:         "FALSE",
	OpObject:        "OBJECT",
	OpList:          "LIST",
	OpRange:         "RANGE",
	OpPop:           "POP",
	OpDup:           "DUP",
	OpDupX2:         "DUP_X2",
	OpSwap:          "SWAP",
	OpGetGlobal:     "GET_GLOBAL",
	OpDefineGlobal:  "DEFINE_GLOBAL",
	OpSetGlobal:     "SET_GLOBAL",
	OpGetLocal:      "GET_LOCAL",
	OpSetLocal:      "SET_LOCAL",
	OpGetUpvalue:    "GET_UPVALUE",
	OpSetUpvalue:    "SET_UPVALUE",
	OpCloseUpvalue:  "CLOSE_UPVALUE",
	OpGetProperty:   "GET_PROPERTY",
	OpSetProperty:   "SET_PROPERTY",
	OpSetPropertyKV: "SET_PROPERTY_KV",
	OpGetIndex:      "GET_INDEX",
	OpSetIndex:      "SET_INDEX",
	OpGetSuper:      "GET_SUPER",
	OpNegate:        "NEGATE",
	OpNot:           "NOT",
	OpBitNot:        "BIT_NOT",
	OpAdd:           "ADD",
	OpSub:           "SUB",
	OpMul:           "MUL",
	OpDiv:           "DIV",
	OpMod:           "MOD",
	OpBitAnd:        "AND",
	OpBitOr:         "OR",
	OpBitXor:        "XOR",
	OpShl:           "LSH",
	OpAShr:          "ASH",
	OpShr:           "RSH",
	OpEqual:         "EQUAL",
	OpNotEqual:      "NOT_EQUAL",
	OpIs:            "IS",
	OpGreater:       "GREATER",
	OpGreaterEqual:  "GREATER_EQ",
	OpLess:          "LESS",
	OpLessEqual:     "LESS_EQ",
	OpIn:            "IN",
	OpInstanceof:    "INSTANCEOF",
	OpTypeof:        "TYPEOF",
	OpJump:          "JUMP",
	OpLoop:          "LOOP",
	OpJumpIfFalse:   "JUMP_IF_FALSE",
	OpJumpIfFalseSC: "JUMP_IF_FALSE_SC",
	OpCall:          "CALL",
	OpClosure:       "CLOSURE",
	OpClass:         "CLASS",
	OpInherit:       "INHERIT",
	OpMethod:        "METHOD",
	OpInvoke:        "INVOKE",
	OpSuperInvoke:   "SUPER_INVOKE",
	OpReturn:        "RETURN",
	OpThrow:         "THROW",
	OpTryBegin:      "TRY_BEGIN",
	OpTryEnd:        "TRY_END",
	OpImport:        "IMPORT",
	OpExport:        "EXPORT",
}

// String renders an opcode's mnemonic, used by the disassembler.
func (o Op) String() string {
	if int(o) < len(names) && names[o] != "" {
		return names[o]
	}
	return "UNKNOWN"
}
