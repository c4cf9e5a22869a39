package compiler

import "github.com/kristofer/ember/pkg/scanner"

// precedence mirrors the classic Pratt-parser ladder: each level binds
// tighter than the one above it.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // = += -= etc., right-assoc
	precTernary               // ?:
	precPipe                  // |>
	precOr                    // ||
	precAnd                   // &&
	precBitOr                 // |
	precBitXor                // ^
	precBitAnd                // &
	precEquality              // == != is
	precComparison            // < > <= >= in instanceof
	precShift                 // << >> >>>
	precTerm                  // + -
	precFactor                // * / %
	precRange                 // ..
	precUnary                 // ! - ~ typeof
	precCall                  // . () []
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[scanner.TokenType]parseRule

func init() {
	rules = map[scanner.TokenType]parseRule{
		scanner.TokenLParen:   {(*Compiler).grouping, (*Compiler).call, precCall},
		scanner.TokenLBracket: {(*Compiler).listLiteral, (*Compiler).index, precCall},
		scanner.TokenLBrace:   {(*Compiler).objectLiteral, nil, precNone},
		scanner.TokenDot:      {nil, (*Compiler).dot, precCall},
		scanner.TokenMinus:    {(*Compiler).unary, (*Compiler).binary, precTerm},
		scanner.TokenPlus:     {nil, (*Compiler).binary, precTerm},
		scanner.TokenSlash:    {nil, (*Compiler).binary, precFactor},
		scanner.TokenStar:     {nil, (*Compiler).binary, precFactor},
		scanner.TokenPercent:  {nil, (*Compiler).binary, precFactor},
		scanner.TokenBang:     {(*Compiler).unary, nil, precNone},
		scanner.TokenTilde:    {(*Compiler).unary, nil, precNone},

		scanner.TokenBangEqual:             {nil, (*Compiler).binary, precEquality},
		scanner.TokenEqualEqual:            {nil, (*Compiler).binary, precEquality},
		scanner.TokenIs:                    {nil, (*Compiler).binary, precEquality},
		scanner.TokenGreater:               {nil, (*Compiler).binary, precComparison},
		scanner.TokenGreaterEqual:          {nil, (*Compiler).binary, precComparison},
		scanner.TokenLess:                  {nil, (*Compiler).binary, precComparison},
		scanner.TokenLessEqual:             {nil, (*Compiler).binary, precComparison},
		scanner.TokenIn:                    {nil, (*Compiler).binary, precComparison},
		scanner.TokenInstanceof:            {nil, (*Compiler).binary, precComparison},
		scanner.TokenAmp:                   {nil, (*Compiler).binary, precBitAnd},
		scanner.TokenCaret:                 {nil, (*Compiler).binary, precBitXor},
		scanner.TokenLessLess:              {nil, (*Compiler).binary, precShift},
		scanner.TokenGreaterGreater:        {nil, (*Compiler).binary, precShift},
		scanner.TokenGreaterGreaterGreater: {nil, (*Compiler).binary, precShift},

		// `|` and `||` are both lambda openers in prefix position and
		// operators in infix position; the rule table carries both
		// readings and parsePrecedence picks by position.
		scanner.TokenPipe:        {(*Compiler).lambda, (*Compiler).binary, precBitOr},
		scanner.TokenPipePipe:    {(*Compiler).lambda, (*Compiler).or, precOr},
		scanner.TokenAmpAmp:      {nil, (*Compiler).and, precAnd},
		scanner.TokenPipeGreater: {nil, (*Compiler).pipe, precPipe},
		scanner.TokenQuestion:    {nil, (*Compiler).ternary, precTernary},
		scanner.TokenDotDot:      {nil, (*Compiler).rangeExpr, precRange},

		scanner.TokenTypeof:     {(*Compiler).unary, nil, precNone},
		scanner.TokenNumber:     {(*Compiler).number, nil, precNone},
		scanner.TokenString:     {(*Compiler).stringLit, nil, precNone},
		scanner.TokenIdentifier: {(*Compiler).variable, nil, precNone},
		scanner.TokenTrue:       {(*Compiler).literal, nil, precNone},
		scanner.TokenFalse:      {(*Compiler).literal, nil, precNone},
		scanner.TokenNull:       {(*Compiler).literal, nil, precNone},
		scanner.TokenThis:       {(*Compiler).this, nil, precNone},
		scanner.TokenSuper:      {(*Compiler).super, nil, precNone},
		scanner.TokenSwitch:     {(*Compiler).switchExpression, nil, precNone},
	}
}

func (c *Compiler) getRule(t scanner.TokenType) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{}
}
