package compiler

import (
	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/scanner"
	"github.com/kristofer/ember/pkg/value"
)

func (c *Compiler) funDeclaration() {
	c.funDeclarationNamed()
}

// funDeclarationNamed compiles `function name(params) { body }` as
// sugar for `var name = <closure>`, returning the declared name so
// exportStatement can re-use it.
func (c *Compiler) funDeclarationNamed() string {
	c.consume(scanner.TokenIdentifier, "expected function name")
	name := c.previous.Lexeme
	global, isLocal := c.declareAndDefine(name)
	c.function(TypeFunction, name)
	c.defineVariable(global, isLocal)
	return name
}

// function compiles a parenthesized parameter list and braced body
// into a nested funcState, pushing a new compiler activation and
// popping it back once the body is fully compiled, then emits
// OP_CLOSURE so the enclosing code captures whatever upvalues the body
// needs. A trailing parameter written `name...` makes the function
// variadic: surplus call arguments are packed into a list bound to it.
func (c *Compiler) function(fnType FuncType, name string) {
	enclosing := c.fs
	c.fs = newFuncState(enclosing, value.NewFunction(name), fnType)
	c.beginScope()

	c.consume(scanner.TokenLParen, "expected '(' after function name")
	if !c.check(scanner.TokenRParen) {
		for {
			c.parameter()
			if c.fs.fn.Varargs || !c.match(scanner.TokenComma) {
				break
			}
		}
	}
	c.consume(scanner.TokenRParen, "expected ')' after parameters")
	c.consume(scanner.TokenLBrace, "expected '{' before function body")
	c.block()

	c.finishFunction(enclosing)
}

// parameter compiles one parameter name, flagging the function
// variadic when the name is followed by `...` (which must close the
// list).
func (c *Compiler) parameter() {
	c.fs.fn.Arity++
	if c.fs.fn.Arity > 255 {
		c.errorAtCurrent("cannot have more than 255 parameters")
	}
	c.consume(scanner.TokenIdentifier, "expected parameter name")
	name := c.previous.Lexeme
	if c.match(scanner.TokenDotDotDot) {
		c.fs.fn.Varargs = true
	}
	c.declareVariable(name)
	c.markInitialized()
}

// finishFunction ends the nested funcState begun by function()/
// lambda(), restores the enclosing activation, and emits OP_CLOSURE
// with the resolved upvalue plan.
func (c *Compiler) finishFunction(enclosing *funcState) {
	fn, upvalues := c.endFunction()
	c.fs = enclosing

	c.emitOp(chunk.OpClosure)
	idx := c.addConstant(value.FromObj(fn))
	c.chunk().WriteULEB128(uint64(idx), c.previous.Line)
	for _, u := range upvalues {
		if u.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(u.index)
	}
}

// lambda compiles `|params| expr`, `|params| { body }` and the
// zero-parameter `|| expr` form as a primary expression. Lambdas have
// lax arity at run time (missing arguments are null, extras dropped),
// which the IsLambda flag tells the VM's call protocol about.
func (c *Compiler) lambda(canAssign bool) {
	zeroParams := c.previous.Type == scanner.TokenPipePipe

	enclosing := c.fs
	c.fs = newFuncState(enclosing, value.NewFunction(""), TypeLambda)
	c.fs.fn.IsLambda = true
	c.beginScope()

	if !zeroParams {
		if !c.check(scanner.TokenPipe) {
			for {
				c.parameter()
				if c.fs.fn.Varargs || !c.match(scanner.TokenComma) {
					break
				}
			}
		}
		c.consume(scanner.TokenPipe, "expected '|' after lambda parameters")
	}

	if c.match(scanner.TokenLBrace) {
		c.block()
	} else {
		// Expression-bodied lambda: the expression's value is the
		// implicit return value.
		c.expression()
		c.emitOp(chunk.OpReturn)
	}

	c.finishFunction(enclosing)
}

func (c *Compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitOp(chunk.OpCall)
	c.emitByte(argCount)
}

func (c *Compiler) argumentList() byte {
	var count int
	if !c.check(scanner.TokenRParen) {
		for {
			c.expression()
			count++
			if count > 255 {
				c.error("cannot have more than 255 arguments")
			}
			if !c.match(scanner.TokenComma) {
				break
			}
		}
	}
	c.consume(scanner.TokenRParen, "expected ')' after arguments")
	return byte(count)
}
