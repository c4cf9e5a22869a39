package scanner

import "testing"

func collect(src string) []Token {
	s := New(src)
	var toks []Token
	for {
		tok := s.Next()
		toks = append(toks, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return toks
}

func expectTypes(t *testing.T, toks []Token, want []TokenType) {
	t.Helper()
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d (%q): got %v, want %v", i, toks[i].Lexeme, toks[i].Type, tt)
		}
	}
}

func TestScannerPunctuationAndOperators(t *testing.T) {
	toks := collect(`+= -> .. ... |> >>> <<`)
	expectTypes(t, toks, []TokenType{
		TokenPlusEqual, TokenArrow, TokenDotDot, TokenDotDotDot,
		TokenPipeGreater, TokenGreaterGreaterGreater, TokenLessLess, TokenEOF,
	})
}

func TestScannerCompoundShiftAssignments(t *testing.T) {
	toks := collect(`<<= >>= >>>= &= |= ^=`)
	expectTypes(t, toks, []TokenType{
		TokenLessLessEqual, TokenGreaterGreaterEqual, TokenGreaterGreaterGreaterEqual,
		TokenAmpEqual, TokenPipeEqual, TokenCaretEqual, TokenEOF,
	})
}

func TestScannerLogicalVsBitwise(t *testing.T) {
	toks := collect(`a && b || c & d | e`)
	expectTypes(t, toks, []TokenType{
		TokenIdentifier, TokenAmpAmp, TokenIdentifier, TokenPipePipe,
		TokenIdentifier, TokenAmp, TokenIdentifier, TokenPipe,
		TokenIdentifier, TokenEOF,
	})
}

func TestScannerKeywordsVsIdentifiers(t *testing.T) {
	toks := collect(`var foo function bar foreach typeof instanceof`)
	expectTypes(t, toks, []TokenType{
		TokenVar, TokenIdentifier, TokenFunction, TokenIdentifier,
		TokenForeach, TokenTypeof, TokenInstanceof, TokenEOF,
	})
}

func TestScannerClassInheritanceTokens(t *testing.T) {
	toks := collect(`class B : A`)
	expectTypes(t, toks, []TokenType{
		TokenClass, TokenIdentifier, TokenColon, TokenIdentifier, TokenEOF,
	})
}

func TestScannerNumbers(t *testing.T) {
	toks := collect(`42 3.14 1e3 2.5e-2`)
	for i := 0; i < 4; i++ {
		if toks[i].Type != TokenNumber {
			t.Errorf("token %d: got %v, want TokenNumber", i, toks[i].Type)
		}
	}
	if toks[4].Type != TokenEOF {
		t.Fatalf("trailing token: %+v", toks[4])
	}
}

func TestScannerStringLiteral(t *testing.T) {
	toks := collect(`"double" 'single' "with \" escape"`)
	for i := 0; i < 3; i++ {
		if toks[i].Type != TokenString {
			t.Errorf("token %d: got %v, want TokenString", i, toks[i].Type)
		}
	}
}

func TestScannerUnterminatedString(t *testing.T) {
	toks := collect(`"unterminated`)
	if toks[0].Type != TokenError {
		t.Fatalf("got %v, want TokenError", toks[0].Type)
	}
	if toks[0].Lexeme != "unterminated string" {
		t.Fatalf("error token message = %q", toks[0].Lexeme)
	}
}

func TestScannerComments(t *testing.T) {
	toks := collect("// line comment\n/* block\ncomment */ foo")
	if len(toks) != 2 || toks[0].Type != TokenIdentifier || toks[0].Lexeme != "foo" {
		t.Fatalf("got %+v", toks)
	}
}

func TestScannerLineTracking(t *testing.T) {
	toks := collect("a\nb\n\nc")
	lines := []int{1, 2, 4, 4}
	for i, want := range lines {
		if toks[i].Line != want {
			t.Errorf("token %d: line = %d, want %d", i, toks[i].Line, want)
		}
	}
}
