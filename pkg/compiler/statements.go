package compiler

import (
	"strings"

	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/scanner"
)

func (c *Compiler) declaration() {
	switch {
	case c.match(scanner.TokenClass):
		c.classDeclaration()
	case c.match(scanner.TokenFunction):
		c.funDeclaration()
	case c.match(scanner.TokenVar):
		c.varDeclaration()
	case c.match(scanner.TokenImport):
		c.importStatement()
	case c.match(scanner.TokenExport):
		c.exportStatement()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(scanner.TokenIf):
		c.ifStatement()
	case c.match(scanner.TokenWhile):
		c.whileStatement()
	case c.match(scanner.TokenFor):
		c.forStatement()
	case c.match(scanner.TokenForeach):
		c.foreachStatement()
	case c.match(scanner.TokenReturn):
		c.returnStatement()
	case c.match(scanner.TokenBreak):
		c.breakStatement()
	case c.match(scanner.TokenContinue):
		c.continueStatement()
	case c.match(scanner.TokenThrow):
		c.throwStatement()
	case c.match(scanner.TokenTry):
		c.tryStatement()
	case c.match(scanner.TokenSwitch):
		c.switchStatement()
	case c.match(scanner.TokenLBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(scanner.TokenRBrace) && !c.check(scanner.TokenEOF) {
		c.declaration()
	}
	c.consume(scanner.TokenRBrace, "expected '}' after block")
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(scanner.TokenSemicolon, "expected ';' after expression")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) varDeclaration() string {
	c.consume(scanner.TokenIdentifier, "expected variable name")
	name := c.previous.Lexeme
	global, isLocal := c.declareAndDefine(name)
	if isLocal {
		// Re-mark uninitialized until the initializer has compiled, so
		// `var x = x;` resolves the right-hand x to an enclosing scope
		// (or fails) rather than reading the half-declared local.
		c.fs.locals[len(c.fs.locals)-1].depth = -1
	}

	if c.match(scanner.TokenEqual) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNull)
	}
	c.consume(scanner.TokenSemicolon, "expected ';' after variable declaration")
	if isLocal {
		c.markInitialized()
	}
	c.defineVariable(global, isLocal)
	return name
}

func (c *Compiler) ifStatement() {
	c.consume(scanner.TokenLParen, "expected '(' after 'if'")
	c.expression()
	c.consume(scanner.TokenRParen, "expected ')' after condition")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.statement()
	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)

	if c.match(scanner.TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) pushLoop() *loopCtx {
	l := &loopCtx{scopeDepth: c.fs.scopeDepth}
	c.fs.loops = append(c.fs.loops, l)
	return l
}

func (c *Compiler) popLoop() {
	l := c.fs.loops[len(c.fs.loops)-1]
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]
	for _, j := range l.breakJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) whileStatement() {
	loopStart := c.chunk().Len()
	l := c.pushLoop()
	l.continueTarget = loopStart

	c.consume(scanner.TokenLParen, "expected '(' after 'while'")
	c.expression()
	c.consume(scanner.TokenRParen, "expected ')' after condition")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.popLoop()
}

// forStatement compiles the classic three-clause C-style loop:
// for (init; condition; increment) body.
func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(scanner.TokenLParen, "expected '(' after 'for'")

	switch {
	case c.match(scanner.TokenSemicolon):
		// no initializer
	case c.match(scanner.TokenVar):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.chunk().Len()
	exitJump := -1
	if !c.check(scanner.TokenSemicolon) {
		c.expression()
		c.consume(scanner.TokenSemicolon, "expected ';' after loop condition")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
	} else {
		c.advance()
	}

	if !c.check(scanner.TokenRParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := c.chunk().Len()
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(scanner.TokenRParen, "expected ')' after for clauses")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	} else {
		c.advance()
	}

	l := c.pushLoop()
	l.continueTarget = loopStart
	c.statement()
	c.emitLoop(loopStart)
	if exitJump != -1 {
		c.patchJump(exitJump)
	}
	c.popLoop()
	c.endScope()
}

// foreachStatement compiles `foreach (var name in iterable) body` by
// desugaring to the iterator protocol: evaluate the iterable, call its
// .iterator(), then drive the loop by calling .more() for the
// condition and .next() to bind the loop variable each pass.
func (c *Compiler) foreachStatement() {
	c.consume(scanner.TokenLParen, "expected '(' after 'foreach'")
	c.match(scanner.TokenVar) // the declaring `var` is conventional but optional
	c.consume(scanner.TokenIdentifier, "expected loop variable name")
	varName := c.previous.Lexeme
	c.consume(scanner.TokenIn, "expected 'in' in foreach")

	c.beginScope()
	c.expression()
	c.emitOp(chunk.OpInvoke)
	c.chunk().WriteULEB128(uint64(c.identifierConstant("iterator")), c.previous.Line)
	c.emitByte(0)
	c.addLocal(" iterator")
	c.markInitialized()
	iterSlot := len(c.fs.locals) - 1

	c.consume(scanner.TokenRParen, "expected ')' after foreach clause")

	loopStart := c.chunk().Len()
	l := c.pushLoop()
	l.continueTarget = loopStart

	c.emitGetLocal(byte(iterSlot))
	c.emitOp(chunk.OpInvoke)
	c.chunk().WriteULEB128(uint64(c.identifierConstant("more")), c.previous.Line)
	c.emitByte(0)
	exitJump := c.emitJump(chunk.OpJumpIfFalse)

	c.beginScope()
	c.emitGetLocal(byte(iterSlot))
	c.emitOp(chunk.OpInvoke)
	c.chunk().WriteULEB128(uint64(c.identifierConstant("next")), c.previous.Line)
	c.emitByte(0)
	c.addLocal(varName)
	c.markInitialized()
	c.statement()
	c.endScope()

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.popLoop()
	c.endScope()
}

func (c *Compiler) breakStatement() {
	if len(c.fs.loops) == 0 {
		c.error("'break' outside a loop")
		return
	}
	c.consume(scanner.TokenSemicolon, "expected ';' after 'break'")
	c.closeLocalsToLoopScope()
	jump := c.emitJump(chunk.OpJump)
	l := c.fs.loops[len(c.fs.loops)-1]
	l.breakJumps = append(l.breakJumps, jump)
}

func (c *Compiler) continueStatement() {
	if len(c.fs.loops) == 0 {
		c.error("'continue' outside a loop")
		return
	}
	c.consume(scanner.TokenSemicolon, "expected ';' after 'continue'")
	c.closeLocalsToLoopScope()
	l := c.fs.loops[len(c.fs.loops)-1]
	c.emitLoop(l.continueTarget)
}

// closeLocalsToLoopScope pops (without touching fs.locals bookkeeping,
// since the enclosing endScope() will still run) every local declared
// since the nearest enclosing loop's own scope, so break/continue
// don't leak the loop body's locals onto the stack past the jump.
func (c *Compiler) closeLocalsToLoopScope() {
	if len(c.fs.loops) == 0 {
		return
	}
	target := c.fs.loops[len(c.fs.loops)-1].scopeDepth
	for i := len(c.fs.locals) - 1; i >= 0 && c.fs.locals[i].depth > target; i-- {
		if c.fs.locals[i].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
	}
}

func (c *Compiler) returnStatement() {
	if c.fs.fnType == TypeScript {
		c.error("cannot return from top-level code")
	}
	if c.match(scanner.TokenSemicolon) {
		c.emitReturn()
		return
	}
	if c.fs.fnType == TypeInitializer {
		c.error("cannot return a value from a constructor")
	}
	c.expression()
	c.consume(scanner.TokenSemicolon, "expected ';' after return value")
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) throwStatement() {
	c.expression()
	c.consume(scanner.TokenSemicolon, "expected ';' after thrown value")
	c.emitOp(chunk.OpThrow)
}

// tryStatement compiles try { } catch [(name)] { } finally { }.
// TRY_BEGIN carries a 2-byte offset to the catch handler; if the
// guarded block runs to completion the matching TRY_END pops the
// handler entry before falling through. The catch clause's binding is
// optional: with no `(name)` the thrown value is popped unused. A
// finally block simply follows textually on both paths.
func (c *Compiler) tryStatement() {
	tryBegin := c.emitJump(chunk.OpTryBegin)
	c.consume(scanner.TokenLBrace, "expected '{' after 'try'")
	c.beginScope()
	c.block()
	c.endScope()
	c.emitOp(chunk.OpTryEnd)
	endJump := c.emitJump(chunk.OpJump)

	c.patchJump(tryBegin)
	hasCatch := c.match(scanner.TokenCatch)
	if !hasCatch {
		// try/finally with no catch clause: the handler still receives
		// the thrown value; discard it and fall through into the
		// finally block.
		c.emitOp(chunk.OpPop)
	}
	if hasCatch {
		c.beginScope()
		if c.match(scanner.TokenLParen) {
			c.consume(scanner.TokenIdentifier, "expected exception variable name")
			c.addLocal(c.previous.Lexeme)
			c.markInitialized()
			c.consume(scanner.TokenRParen, "expected ')' after catch variable")
		} else {
			c.emitOp(chunk.OpPop) // no binding: discard the thrown value
		}
		c.consume(scanner.TokenLBrace, "expected '{' after catch clause")
		c.block()
		c.endScope()
	}
	c.patchJump(endJump)

	if c.match(scanner.TokenFinally) {
		c.consume(scanner.TokenLBrace, "expected '{' after 'finally'")
		c.beginScope()
		c.block()
		c.endScope()
	} else if !hasCatch {
		c.error("'try' must have a 'catch' or 'finally' clause")
	}
}

// switchStatement compiles the statement form of switch: each arm's
// body is a statement and the whole construct leaves nothing on the
// stack.
func (c *Compiler) switchStatement() {
	c.compileSwitch(false)
}

// switchExpression compiles the expression form (`var r = switch(x)
// {...};`): each arm's body is an expression and exactly one value —
// the matched arm's, or null when nothing matched — is left on the
// stack.
func (c *Compiler) switchExpression(canAssign bool) {
	c.compileSwitch(true)
}

// compileSwitch compiles `switch (subject) { patterns -> body; ... }`.
// The subject stays on the stack while arms test it; each arm lists
// one or more patterns (a match of any enters the arm), the arm body
// pops the subject, and all arms share one exit landing.
func (c *Compiler) compileSwitch(isExpression bool) {
	c.consume(scanner.TokenLParen, "expected '(' after 'switch'")
	c.expression()
	c.consume(scanner.TokenRParen, "expected ')' after switch subject")
	c.consume(scanner.TokenLBrace, "expected '{' before switch body")

	var endJumps []int
	for !c.check(scanner.TokenRBrace) && !c.check(scanner.TokenEOF) {
		if c.match(scanner.TokenElse) {
			c.consume(scanner.TokenArrow, "expected '->' after switch pattern")
			c.emitOp(chunk.OpPop) // discard the subject
			c.switchArmBody(isExpression)
			endJumps = append(endJumps, c.emitJump(chunk.OpJump))
			continue
		}

		// One or more comma-separated patterns guard this arm; any
		// match jumps to the body, exhausting them all falls through to
		// the next arm.
		var bodyJumps []int
		var nextArm int
		for {
			c.switchPattern()
			last := !c.check(scanner.TokenComma)
			if last {
				nextArm = c.emitJump(chunk.OpJumpIfFalse)
				break
			}
			c.advance() // consume ','
			skip := c.emitJump(chunk.OpJumpIfFalse)
			bodyJumps = append(bodyJumps, c.emitJump(chunk.OpJump))
			c.patchJump(skip)
		}
		for _, j := range bodyJumps {
			c.patchJump(j)
		}
		c.emitOp(chunk.OpPop) // discard the subject before the body runs
		c.switchArmBody(isExpression)
		endJumps = append(endJumps, c.emitJump(chunk.OpJump))
		c.patchJump(nextArm)
	}
	// No arm matched: drop the subject (and, in expression form, yield
	// null in its place).
	c.emitOp(chunk.OpPop)
	if isExpression {
		c.emitOp(chunk.OpNull)
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.consume(scanner.TokenRBrace, "expected '}' after switch body")
}

// switchArmBody compiles what follows an arm's `->`: an expression
// (whose value the expression form yields) or, in statement form, a
// statement. Arms are separated by semicolons; a statement body that
// consumed its own terminator (a block, an if, ...) may omit the
// separator.
func (c *Compiler) switchArmBody(isExpression bool) {
	if isExpression {
		c.expression()
		c.consume(scanner.TokenSemicolon, "expected ';' after switch arm")
		return
	}
	c.statement()
	c.match(scanner.TokenSemicolon)
}

// switchPattern compiles one pattern test against the subject on top
// of the stack, leaving the subject in place with the boolean result
// above it:
//
//	in e     membership: subject in e
//	is e     type/class test: subject instanceof e
//	|> e     predicate: e(subject) truthy
//	!pat     negation of any pattern
//	e        plain expression, compared with ==
func (c *Compiler) switchPattern() {
	switch {
	case c.match(scanner.TokenIn):
		c.emitOp(chunk.OpDup)
		c.expression()
		c.emitOp(chunk.OpIn)
	case c.match(scanner.TokenIs):
		c.emitOp(chunk.OpDup)
		c.expression()
		c.emitOp(chunk.OpInstanceof)
	case c.match(scanner.TokenPipeGreater):
		c.emitOp(chunk.OpDup)
		c.parsePrecedence(precPipe + 1)
		c.emitOp(chunk.OpSwap)
		c.emitOp(chunk.OpCall)
		c.emitByte(1)
	case c.match(scanner.TokenBang):
		c.switchPattern()
		c.emitOp(chunk.OpNot)
	default:
		c.emitOp(chunk.OpDup)
		c.expression()
		c.emitOp(chunk.OpEqual)
	}
}

// importStatement compiles `import "path";`: OP_IMPORT runs (or finds
// cached) the module and pushes its Import instance, which is then
// bound as a global named after the path's final segment, so
// `import "collections/list";` makes `list` usable in the importing
// module.
func (c *Compiler) importStatement() {
	c.consume(scanner.TokenString, "expected module path string after 'import'")
	raw := c.previous.Lexeme
	path := raw[1 : len(raw)-1]
	c.consume(scanner.TokenSemicolon, "expected ';' after import path")
	c.emitOp(chunk.OpImport)
	c.chunk().WriteULEB128(uint64(c.identifierConstant(path)), c.previous.Line)

	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	c.emitOp(chunk.OpDefineGlobal)
	c.chunk().WriteULEB128(uint64(c.identifierConstant(base)), c.previous.Line)
}

// exportStatement compiles `export name;` — the named variable's value
// is pushed and OP_EXPORT moves it into the module's exports table —
// plus the declaration-sugar forms `export var/function/class ...`,
// which declare first and then export the declared name.
func (c *Compiler) exportStatement() {
	switch {
	case c.match(scanner.TokenFunction):
		c.emitExport(c.funDeclarationNamed())
	case c.match(scanner.TokenClass):
		c.emitExport(c.classDeclarationNamed())
	case c.match(scanner.TokenVar):
		c.emitExport(c.varDeclaration())
	case c.match(scanner.TokenIdentifier):
		name := c.previous.Lexeme
		c.consume(scanner.TokenSemicolon, "expected ';' after export")
		c.emitExport(name)
	default:
		c.error("expected a name or declaration after 'export'")
	}
}

// emitExport pushes name's current value and emits OP_EXPORT, which
// binds it into the module's exports table and pops it.
func (c *Compiler) emitExport(name string) {
	c.namedVariableByName(name)
	c.emitOp(chunk.OpExport)
	c.chunk().WriteULEB128(uint64(c.identifierConstant(name)), c.previous.Line)
}

func (c *Compiler) emitGetLocal(slot byte) {
	c.emitOp(chunk.OpGetLocal)
	c.emitByte(slot)
}
