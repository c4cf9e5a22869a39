// Package compiler implements the single-pass compiler: it walks
// scanner tokens directly into bytecode with a Pratt/precedence-
// climbing expression parser. There is deliberately no separate parse
// tree: every construct is compiled as it is recognized, one token of
// lookahead at a time.
package compiler

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/scanner"
	"github.com/kristofer/ember/pkg/value"
)

// InternFunc interns a Go string into the shared string-intern pool,
// returning the canonical *value.String for it. The compiler never
// allocates its own strings table — interning is a heap/GC concern
// owned by the VM (see vm/heap.go) — so the VM hands in this callback
// at Compile time.
type InternFunc func(string) *value.String

// CompileError distinguishes a syntax failure from a runtime one, so a
// driver can tell apart the two non-zero exit codes the CLI surface
// documents (compile error vs. an uncaught runtime exception).
type CompileError struct {
	msg string
}

func (e *CompileError) Error() string { return e.msg }

// FuncType distinguishes the kind of function currently being
// compiled, since methods, constructors, and lambdas each get slightly
// different implicit-return and `this`-binding treatment.
type FuncType int

const (
	TypeScript FuncType = iota
	TypeFunction
	TypeMethod
	TypeInitializer
	TypeLambda
)

const (
	maxLocals   = 256
	maxUpvalues = 256
)

type local struct {
	name       string
	depth      int // -1 while uninitialized (shadows not yet visible to their own initializer)
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

// loopCtx tracks a single enclosing loop's break/continue patch sites,
// so `break`/`continue` inside nested blocks can find the loop they
// belong to without threading state through every statement method.
type loopCtx struct {
	continueTarget int
	scopeDepth     int
	breakJumps     []int
}

type classCtx struct {
	enclosing     *classCtx
	hasSuperclass bool
}

// funcState is one activation of the compiler, one per function body
// being compiled (nested function/lambda/method literals push a new
// funcState and pop it back to the enclosing one on completion),
// mirroring the call-frame stack the VM itself uses at run time.
type funcState struct {
	enclosing *funcState
	fn        *value.Function
	fnType    FuncType

	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
	loops      []*loopCtx

	// consts deduplicates number and interned-string constants within
	// this function's pool, so repeated literals and identifier names
	// share one index.
	consts *swiss.Map[value.Value, int]
}

// Compiler compiles one source file into a top-level *value.Function
// (the "script" function, called with no arguments to run the module).
type Compiler struct {
	sc        *scanner.Scanner
	current   scanner.Token
	previous  scanner.Token
	hadError  bool
	panicMode bool

	fs     *funcState
	class  *classCtx
	intern InternFunc
	log    *logrus.Entry
	errs   []string
}

// Compile compiles source into a callable top-level function, or
// returns an error aggregating every syntax error panic-mode recovery
// found (compilation does not stop at the first error).
func Compile(source string, intern InternFunc, log *logrus.Entry) (*value.Function, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Compiler{sc: scanner.New(source), intern: intern, log: log}
	c.fs = newFuncState(nil, value.NewFunction(""), TypeScript)

	c.advance()
	for !c.match(scanner.TokenEOF) {
		c.declaration()
	}
	fn, _ := c.endFunction()

	if c.hadError {
		return nil, &CompileError{msg: joinErrs(c.errs)}
	}
	return fn, nil
}

// newFuncState reserves stack slot 0 the way the VM's call protocol
// lays frames out: the callee value itself sits in slot 0, named
// `this` for receivers (methods, constructors) and for the script
// frame, and unnamed (unaddressable from source) for plain functions
// and lambdas.
func newFuncState(enclosing *funcState, fn *value.Function, fnType FuncType) *funcState {
	fs := &funcState{
		enclosing: enclosing,
		fn:        fn,
		fnType:    fnType,
		consts:    swiss.NewMap[value.Value, int](8),
	}
	slot0 := local{depth: 0}
	if fnType == TypeMethod || fnType == TypeInitializer || fnType == TypeScript {
		slot0.name = "this"
	}
	fs.locals = append(fs.locals, slot0)
	return fs
}

func joinErrs(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "\n"
		}
		out += e
	}
	return out
}

// --- token stream -----------------------------------------------------

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.sc.Next()
		if c.current.Type != scanner.TokenError {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(t scanner.TokenType) bool { return c.current.Type == t }

func (c *Compiler) match(t scanner.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t scanner.TokenType, msg string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(tok scanner.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	where := tok.Lexeme
	if tok.Type == scanner.TokenEOF {
		where = "end"
	}
	entry := fmt.Sprintf("[%d] Error at %s: %s", tok.Line, where, msg)
	c.errs = append(c.errs, entry)
	c.log.WithField("line", tok.Line).Debug(entry)
}

// synchronize discards tokens in panic mode until it reaches a likely
// statement boundary, so one error doesn't cascade into dozens.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != scanner.TokenEOF {
		if c.previous.Type == scanner.TokenSemicolon {
			return
		}
		switch c.current.Type {
		case scanner.TokenClass, scanner.TokenFunction, scanner.TokenVar,
			scanner.TokenFor, scanner.TokenForeach, scanner.TokenIf,
			scanner.TokenWhile, scanner.TokenReturn, scanner.TokenSwitch,
			scanner.TokenTry, scanner.TokenThrow, scanner.TokenImport,
			scanner.TokenExport:
			return
		}
		c.advance()
	}
}

// --- bytecode emission -------------------------------------------------

func (c *Compiler) chunk() *value.Chunk { return c.fs.fn.Chunk }

func (c *Compiler) emitByte(b byte)    { c.chunk().Write(b, c.previous.Line) }
func (c *Compiler) emitOp(op chunk.Op) { c.chunk().WriteOp(op, c.previous.Line) }

func (c *Compiler) emitConstant(v value.Value) {
	idx := c.addConstant(v)
	c.emitOp(chunk.OpConstant)
	c.chunk().WriteULEB128(uint64(idx), c.previous.Line)
}

// addConstant appends v to the current function's constant pool,
// reusing an existing index for an equal number or interned string so
// hot literals and identifier names don't bloat the pool.
func (c *Compiler) addConstant(v value.Value) int {
	dedupable := v.IsNumber() || v.Is(value.TypeString)
	if dedupable {
		if idx, ok := c.fs.consts.Get(v); ok {
			return idx
		}
	}
	idx := c.chunk().AddConstant(v)
	if dedupable {
		c.fs.consts.Put(v, idx)
	}
	return idx
}

func (c *Compiler) emitJump(op chunk.Op) int {
	c.emitOp(op)
	return c.chunk().WriteUint16(0xFFFF, c.previous.Line)
}

// patchJump back-fills the 2-byte operand written by emitJump with the
// forward distance from the byte after the operand to the current end
// of the chunk, which is where the jump should land.
func (c *Compiler) patchJump(offset int) {
	jump := c.chunk().Len() - offset - 2
	if jump > 0xFFFF {
		c.error("jump target too far")
	}
	c.chunk().PatchUint16(offset, uint16(jump))
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := c.chunk().Len() - loopStart + 2
	if offset > 0xFFFF {
		c.error("loop body too large")
	}
	c.chunk().WriteUint16(uint16(offset), c.previous.Line)
}

func (c *Compiler) emitReturn() {
	if c.fs.fnType == TypeInitializer {
		c.emitOp(chunk.OpGetLocal)
		c.emitByte(0)
	} else {
		c.emitOp(chunk.OpNull)
	}
	c.emitOp(chunk.OpReturn)
}

// endFunction finalizes the current funcState's function body and
// returns it along with its resolved upvalue plan; it does NOT pop
// c.fs back to the enclosing activation — callers that pushed a nested
// funcState (see function() in functions.go) do that themselves once
// they've read the upvalue plan needed to emit OP_CLOSURE's operands.
func (c *Compiler) endFunction() (*value.Function, []upvalueRef) {
	c.emitReturn()
	fn := c.fs.fn
	fn.UpvalueCount = len(c.fs.upvalues)
	return fn, c.fs.upvalues
}

// --- scopes and locals ---------------------------------------------

func (c *Compiler) beginScope() { c.fs.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fs.scopeDepth--
	for len(c.fs.locals) > 0 && c.fs.locals[len(c.fs.locals)-1].depth > c.fs.scopeDepth {
		last := c.fs.locals[len(c.fs.locals)-1]
		if last.isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.fs.locals = c.fs.locals[:len(c.fs.locals)-1]
	}
}

func (c *Compiler) declareVariable(name string) {
	if c.fs.scopeDepth == 0 {
		return
	}
	for i := len(c.fs.locals) - 1; i >= 0; i-- {
		l := c.fs.locals[i]
		if l.depth != -1 && l.depth < c.fs.scopeDepth {
			break
		}
		if l.name == name {
			c.error("variable with this name already declared in this scope")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name string) {
	if len(c.fs.locals) >= maxLocals {
		c.error("too many local variables in function")
		return
	}
	c.fs.locals = append(c.fs.locals, local{name: name, depth: -1})
}

func (c *Compiler) markInitialized() {
	if c.fs.scopeDepth == 0 {
		return
	}
	c.fs.locals[len(c.fs.locals)-1].depth = c.fs.scopeDepth
}

// resolveLocalHere resolves name in the current activation, rejecting
// a read of a local whose initializer is still being compiled
// (`var x = x;`).
func (c *Compiler) resolveLocalHere(name string) int {
	slot := resolveLocal(c.fs, name)
	if slot != -1 && c.fs.locals[slot].depth == -1 {
		c.error("cannot read local variable in its own initializer")
	}
	return slot
}

func resolveLocal(fs *funcState, name string) int {
	if name == "" {
		return -1
	}
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i
		}
	}
	return -1
}

func resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if local := resolveLocal(fs.enclosing, name); local != -1 {
		fs.enclosing.locals[local].isCaptured = true
		return addUpvalue(fs, byte(local), true)
	}
	if up := resolveUpvalue(fs.enclosing, name); up != -1 {
		return addUpvalue(fs, byte(up), false)
	}
	return -1
}

func addUpvalue(fs *funcState, index byte, isLocal bool) int {
	if at := slices.IndexFunc(fs.upvalues, func(u upvalueRef) bool {
		return u.index == index && u.isLocal == isLocal
	}); at != -1 {
		return at
	}
	if len(fs.upvalues) >= maxUpvalues {
		return -1
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fs.upvalues) - 1
}

// identifierConstant interns name and adds it to the constant pool,
// returning its index — used for global names and property names,
// which the VM resolves by name rather than by stack slot.
func (c *Compiler) identifierConstant(name string) int {
	return c.addConstant(value.FromObj(c.intern(name)))
}

func (c *Compiler) declareAndDefine(name string) (global int, isLocal bool) {
	if c.fs.scopeDepth > 0 {
		c.declareVariable(name)
		c.markInitialized()
		return 0, true
	}
	return c.identifierConstant(name), false
}

func (c *Compiler) defineVariable(global int, isLocal bool) {
	if isLocal {
		return
	}
	c.emitOp(chunk.OpDefineGlobal)
	c.chunk().WriteULEB128(uint64(global), c.previous.Line)
}
