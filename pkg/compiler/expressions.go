package compiler

import (
	"strconv"
	"strings"

	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/scanner"
	"github.com/kristofer/ember/pkg/value"
)

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	rule := c.getRule(c.previous.Type)
	if rule.prefix == nil {
		c.error("expected an expression")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(c, canAssign)

	for prec <= c.getRule(c.current.Type).precedence {
		c.advance()
		infix := c.getRule(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.matchAny(assignOps...) {
		c.error("Invalid assignment target")
	}
}

var assignOps = []scanner.TokenType{
	scanner.TokenEqual, scanner.TokenPlusEqual, scanner.TokenMinusEqual,
	scanner.TokenStarEqual, scanner.TokenSlashEqual, scanner.TokenPercentEqual,
	scanner.TokenAmpEqual, scanner.TokenPipeEqual, scanner.TokenCaretEqual,
	scanner.TokenLessLessEqual, scanner.TokenGreaterGreaterEqual,
	scanner.TokenGreaterGreaterGreaterEqual,
}

func (c *Compiler) matchAny(types ...scanner.TokenType) bool {
	for _, t := range types {
		if c.match(t) {
			return true
		}
	}
	return false
}

// compoundOp maps a compound-assignment token to the arithmetic opcode
// it desugars to: `x += y` compiles as `x = x + y` with the left-hand
// side evaluated exactly once (the DUP/DUP_X2 protocol for property
// and index targets handles this for the non-trivial cases).
func compoundOp(t scanner.TokenType) (chunk.Op, bool) {
	switch t {
	case scanner.TokenPlusEqual:
		return chunk.OpAdd, true
	case scanner.TokenMinusEqual:
		return chunk.OpSub, true
	case scanner.TokenStarEqual:
		return chunk.OpMul, true
	case scanner.TokenSlashEqual:
		return chunk.OpDiv, true
	case scanner.TokenPercentEqual:
		return chunk.OpMod, true
	case scanner.TokenAmpEqual:
		return chunk.OpBitAnd, true
	case scanner.TokenPipeEqual:
		return chunk.OpBitOr, true
	case scanner.TokenCaretEqual:
		return chunk.OpBitXor, true
	case scanner.TokenLessLessEqual:
		return chunk.OpShl, true
	case scanner.TokenGreaterGreaterEqual:
		return chunk.OpAShr, true
	case scanner.TokenGreaterGreaterGreaterEqual:
		return chunk.OpShr, true
	default:
		return 0, false
	}
}

func (c *Compiler) number(canAssign bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.error("invalid number literal")
		return
	}
	c.emitConstant(value.Number(n))
}

// stringLit un-escapes the common backslash escapes and emits the
// result as an interned string constant.
func (c *Compiler) stringLit(canAssign bool) {
	raw := c.previous.Lexeme
	inner := raw[1 : len(raw)-1]
	c.emitConstant(value.FromObj(c.intern(unescape(inner))))
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case '\'':
			b.WriteByte('\'')
		case '0':
			b.WriteByte(0)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Type {
	case scanner.TokenTrue:
		c.emitOp(chunk.OpTrue)
	case scanner.TokenFalse:
		c.emitOp(chunk.OpFalse)
	case scanner.TokenNull:
		c.emitOp(chunk.OpNull)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(scanner.TokenRParen, "expected ')' after expression")
}

func (c *Compiler) unary(canAssign bool) {
	op := c.previous.Type
	c.parsePrecedence(precUnary)
	switch op {
	case scanner.TokenMinus:
		c.emitOp(chunk.OpNegate)
	case scanner.TokenBang:
		c.emitOp(chunk.OpNot)
	case scanner.TokenTilde:
		c.emitOp(chunk.OpBitNot)
	case scanner.TokenTypeof:
		c.emitOp(chunk.OpTypeof)
	}
}

func (c *Compiler) binary(canAssign bool) {
	op := c.previous.Type
	rule := c.getRule(op)
	c.parsePrecedence(rule.precedence + 1)
	switch op {
	case scanner.TokenPlus:
		c.emitOp(chunk.OpAdd)
	case scanner.TokenMinus:
		c.emitOp(chunk.OpSub)
	case scanner.TokenStar:
		c.emitOp(chunk.OpMul)
	case scanner.TokenSlash:
		c.emitOp(chunk.OpDiv)
	case scanner.TokenPercent:
		c.emitOp(chunk.OpMod)
	case scanner.TokenAmp:
		c.emitOp(chunk.OpBitAnd)
	case scanner.TokenPipe:
		c.emitOp(chunk.OpBitOr)
	case scanner.TokenCaret:
		c.emitOp(chunk.OpBitXor)
	case scanner.TokenLessLess:
		c.emitOp(chunk.OpShl)
	case scanner.TokenGreaterGreater:
		c.emitOp(chunk.OpAShr)
	case scanner.TokenGreaterGreaterGreater:
		c.emitOp(chunk.OpShr)
	case scanner.TokenEqualEqual:
		c.emitOp(chunk.OpEqual)
	case scanner.TokenBangEqual:
		c.emitOp(chunk.OpNotEqual)
	case scanner.TokenIs:
		c.emitOp(chunk.OpIs)
	case scanner.TokenGreater:
		c.emitOp(chunk.OpGreater)
	case scanner.TokenGreaterEqual:
		c.emitOp(chunk.OpGreaterEqual)
	case scanner.TokenLess:
		c.emitOp(chunk.OpLess)
	case scanner.TokenLessEqual:
		c.emitOp(chunk.OpLessEqual)
	case scanner.TokenIn:
		c.emitOp(chunk.OpIn)
	case scanner.TokenInstanceof:
		c.emitOp(chunk.OpInstanceof)
	}
}

// and/or short-circuit using OP_JUMP_IF_FALSE_SC, which peeks rather
// than pops so the surviving operand is left on the stack as the
// expression's result.
func (c *Compiler) and(canAssign bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalseSC)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(canAssign bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalseSC)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) ternary(canAssign bool) {
	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.parsePrecedence(precAssignment)
	c.consume(scanner.TokenColon, "expected ':' in ternary expression")
	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.parsePrecedence(precAssignment)
	c.patchJump(elseJump)
}

// rangeExpr compiles `start..end` into OP_RANGE, which the VM
// materializes as the inclusive integer sequence between the bounds,
// ascending or descending.
func (c *Compiler) rangeExpr(canAssign bool) {
	c.parsePrecedence(precRange + 1)
	c.emitOp(chunk.OpRange)
}

// pipe compiles `value |> fn` as sugar for `fn(value)`: evaluate the
// callee, swap it under the already-evaluated left-hand value, call
// with one argument.
func (c *Compiler) pipe(canAssign bool) {
	c.parsePrecedence(precPipe + 1)
	c.emitOp(chunk.OpSwap)
	c.emitOp(chunk.OpCall)
	c.emitByte(1)
}

func (c *Compiler) listLiteral(canAssign bool) {
	var count int
	if !c.check(scanner.TokenRBracket) {
		for {
			c.expression()
			count++
			if !c.match(scanner.TokenComma) {
				break
			}
			if c.check(scanner.TokenRBracket) {
				break
			}
		}
	}
	c.consume(scanner.TokenRBracket, "expected ']' after list elements")
	if count > 255 {
		c.error("list literal has too many elements")
	}
	c.emitOp(chunk.OpList)
	c.emitByte(byte(count))
}

// objectLiteral compiles `{ key: value, ... }`. Keys may be bare
// identifiers or string literals; OP_OBJECT starts with an empty
// instance of the base Object class and each pair is then written
// with OP_SET_PROPERTY_KV, which (unlike OP_SET_PROPERTY) leaves the
// object, not the value, on the stack so the pairs can chain. A bare
// identifier key with no `:` is shorthand for `key: key`.
func (c *Compiler) objectLiteral(canAssign bool) {
	c.emitOp(chunk.OpObject)
	if !c.check(scanner.TokenRBrace) {
		for {
			var key string
			wasIdent := false
			switch {
			case c.match(scanner.TokenIdentifier):
				key = c.previous.Lexeme
				wasIdent = true
			case c.match(scanner.TokenString):
				key = keyLexeme(c.previous)
			default:
				c.errorAtCurrent("expected property name")
			}
			if c.match(scanner.TokenColon) {
				c.expression()
			} else if wasIdent {
				c.namedVariableByName(key)
			} else {
				c.consume(scanner.TokenColon, "expected ':' after property name")
			}
			c.emitOp(chunk.OpSetPropertyKV)
			c.chunk().WriteULEB128(uint64(c.identifierConstant(key)), c.previous.Line)
			if !c.match(scanner.TokenComma) {
				break
			}
			if c.check(scanner.TokenRBrace) {
				break
			}
		}
	}
	c.consume(scanner.TokenRBrace, "expected '}' after object literal")
}

func keyLexeme(tok scanner.Token) string {
	if tok.Type == scanner.TokenString {
		return unescape(tok.Lexeme[1 : len(tok.Lexeme)-1])
	}
	return tok.Lexeme
}

func (c *Compiler) index(canAssign bool) {
	c.expression()
	c.consume(scanner.TokenRBracket, "expected ']' after index")

	if op, ok := compoundOp(c.current.Type); canAssign && ok {
		c.advance()
		c.emitOp(chunk.OpDupX2)
		c.emitOp(chunk.OpGetIndex)
		c.parsePrecedence(precAssignment)
		c.emitOp(op)
		c.emitOp(chunk.OpSetIndex)
		return
	}
	if canAssign && c.match(scanner.TokenEqual) {
		c.expression()
		c.emitOp(chunk.OpSetIndex)
		return
	}
	c.emitOp(chunk.OpGetIndex)
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(scanner.TokenIdentifier, "expected property name after '.'")
	name := c.identifierConstant(c.previous.Lexeme)

	if op, ok := compoundOp(c.current.Type); canAssign && ok {
		c.advance()
		c.emitOp(chunk.OpDup)
		c.emitOp(chunk.OpGetProperty)
		c.chunk().WriteULEB128(uint64(name), c.previous.Line)
		c.parsePrecedence(precAssignment)
		c.emitOp(op)
		c.emitOp(chunk.OpSetProperty)
		c.chunk().WriteULEB128(uint64(name), c.previous.Line)
		return
	}
	if canAssign && c.match(scanner.TokenEqual) {
		c.expression()
		c.emitOp(chunk.OpSetProperty)
		c.chunk().WriteULEB128(uint64(name), c.previous.Line)
		return
	}
	if c.match(scanner.TokenLParen) {
		argCount := c.argumentList()
		c.emitOp(chunk.OpInvoke)
		c.chunk().WriteULEB128(uint64(name), c.previous.Line)
		c.emitByte(argCount)
		return
	}
	c.emitOp(chunk.OpGetProperty)
	c.chunk().WriteULEB128(uint64(name), c.previous.Line)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

// namedVariable resolves name as local, upvalue, or global (in that
// order) and emits either a plain read or, if canAssign and an
// assignment operator follows, a write (or compound read-modify-write
// for += etc).
func (c *Compiler) namedVariable(name scanner.Token, canAssign bool) {
	var getOp, setOp chunk.Op
	var operand int
	var wide bool

	if slot := c.resolveLocalHere(name.Lexeme); slot != -1 {
		getOp, setOp, operand = chunk.OpGetLocal, chunk.OpSetLocal, slot
	} else if slot := resolveUpvalue(c.fs, name.Lexeme); slot != -1 {
		getOp, setOp, operand = chunk.OpGetUpvalue, chunk.OpSetUpvalue, slot
	} else {
		getOp, setOp, operand, wide = chunk.OpGetGlobal, chunk.OpSetGlobal, c.identifierConstant(name.Lexeme), true
	}

	if op, ok := compoundOp(c.current.Type); canAssign && ok {
		c.advance()
		c.emitGetOrGlobal(getOp, operand, wide)
		c.parsePrecedence(precAssignment)
		c.emitOp(op)
		c.emitSetOrGlobal(setOp, operand, wide)
		return
	}
	if canAssign && c.match(scanner.TokenEqual) {
		c.expression()
		c.emitSetOrGlobal(setOp, operand, wide)
		return
	}
	c.emitGetOrGlobal(getOp, operand, wide)
}

func (c *Compiler) emitGetOrGlobal(op chunk.Op, operand int, wide bool) {
	c.emitOp(op)
	if wide {
		c.chunk().WriteULEB128(uint64(operand), c.previous.Line)
	} else {
		c.emitByte(byte(operand))
	}
}

func (c *Compiler) emitSetOrGlobal(op chunk.Op, operand int, wide bool) {
	c.emitOp(op)
	if wide {
		c.chunk().WriteULEB128(uint64(operand), c.previous.Line)
	} else {
		c.emitByte(byte(operand))
	}
}
