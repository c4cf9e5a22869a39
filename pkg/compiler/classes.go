package compiler

import (
	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/scanner"
)

func (c *Compiler) classDeclaration() {
	c.classDeclarationNamed()
}

// classDeclarationNamed compiles `class Name [: Super] { methods }`.
// Each method compiles to a closure that OP_METHOD adds to the class
// object, which is reloaded onto the stack by name once OP_CLASS's
// value has been bound to the class's variable; "constructor" is compiled with
// an implicit `return this`. A class with no superclass clause
// implicitly descends from the built-in Object class (the VM's
// OP_CLASS handler wires that up).
func (c *Compiler) classDeclarationNamed() string {
	c.consume(scanner.TokenIdentifier, "expected class name")
	name := c.previous.Lexeme
	nameConstant := c.identifierConstant(name)
	global, isLocal := c.declareAndDefine(name)

	c.emitOp(chunk.OpClass)
	c.chunk().WriteULEB128(uint64(nameConstant), c.previous.Line)
	c.defineVariable(global, isLocal)

	cc := &classCtx{enclosing: c.class}
	c.class = cc

	if c.match(scanner.TokenColon) {
		c.consume(scanner.TokenIdentifier, "expected superclass name")
		c.namedVariable(c.previous, false) // push the superclass onto the stack
		if c.previous.Lexeme == name {
			c.error("a class cannot inherit from itself")
		}

		c.beginScope()
		c.addLocal("super")
		c.markInitialized()

		c.namedVariableByName(name) // push the subclass
		c.emitOp(chunk.OpInherit)
		cc.hasSuperclass = true
	}

	c.namedVariableByName(name) // leave the class on the stack for OP_METHOD
	c.consume(scanner.TokenLBrace, "expected '{' before class body")
	for !c.check(scanner.TokenRBrace) && !c.check(scanner.TokenEOF) {
		c.method()
	}
	c.consume(scanner.TokenRBrace, "expected '}' after class body")
	c.emitOp(chunk.OpPop) // discard the class reference pushed above

	if cc.hasSuperclass {
		c.endScope()
	}
	c.class = cc.enclosing
	return name
}

func (c *Compiler) method() {
	c.consume(scanner.TokenIdentifier, "expected method name")
	name := c.previous.Lexeme
	nameConstant := c.identifierConstant(name)

	fnType := TypeMethod
	if name == "constructor" {
		fnType = TypeInitializer
	}
	c.function(fnType, name)

	c.emitOp(chunk.OpMethod)
	c.chunk().WriteULEB128(uint64(nameConstant), c.previous.Line)
}

func (c *Compiler) this(canAssign bool) {
	if c.class == nil {
		c.error("'this' used outside a method")
		return
	}
	c.namedVariableByName("this")
}

func (c *Compiler) super(canAssign bool) {
	if c.class == nil {
		c.error("'super' used outside a method")
		return
	}
	if !c.class.hasSuperclass {
		c.error("'super' used in a class with no superclass")
	}
	c.consume(scanner.TokenDot, "expected '.' after 'super'")
	c.consume(scanner.TokenIdentifier, "expected superclass method name")
	name := c.identifierConstant(c.previous.Lexeme)

	c.namedVariableByName("this")
	if c.match(scanner.TokenLParen) {
		argCount := c.argumentList()
		c.namedVariableByName("super")
		c.emitOp(chunk.OpSuperInvoke)
		c.chunk().WriteULEB128(uint64(name), c.previous.Line)
		c.emitByte(argCount)
		return
	}
	c.namedVariableByName("super")
	c.emitOp(chunk.OpGetSuper)
	c.chunk().WriteULEB128(uint64(name), c.previous.Line)
}

// namedVariableByName resolves and emits a read of a variable known by
// name only (not a scanner.Token), used for the compiler-synthesized
// references to "this", "super", and a just-declared class name.
func (c *Compiler) namedVariableByName(name string) {
	c.namedVariable(scanner.Token{Type: scanner.TokenIdentifier, Lexeme: name}, false)
}
