package compiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/value"
)

func compile(t *testing.T, source string) *value.Function {
	t.Helper()
	fn, err := Compile(source, value.NewString, nil)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", source, err)
	}
	return fn
}

func compileErr(t *testing.T, source string) error {
	t.Helper()
	_, err := Compile(source, value.NewString, nil)
	if err == nil {
		t.Fatalf("Compile(%q) succeeded, want error", source)
	}
	return err
}

// ops disassembles a chunk's opcode stream into its mnemonics,
// skipping operand bytes, so tests can assert on shape without
// hand-decoding ULEB128/uint16 operands for every case.
func ops(c *value.Chunk) []chunk.Op {
	var out []chunk.Op
	code := c.Code
	for ip := 0; ip < len(code); {
		op := chunk.Op(code[ip])
		out = append(out, op)
		ip++
		switch op {
		case chunk.OpConstant:
			_, next := uleb(code, ip)
			ip = next
		case chunk.OpGetGlobal, chunk.OpDefineGlobal, chunk.OpSetGlobal,
			chunk.OpInvoke, chunk.OpSuperInvoke, chunk.OpGetProperty,
			chunk.OpSetProperty, chunk.OpSetPropertyKV, chunk.OpGetSuper,
			chunk.OpClosure, chunk.OpMethod, chunk.OpClass, chunk.OpImport,
			chunk.OpExport:
			_, next := uleb(code, ip)
			ip = next
			if op == chunk.OpInvoke || op == chunk.OpSuperInvoke {
				ip++ // argCount byte
			}
		case chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetUpvalue,
			chunk.OpSetUpvalue, chunk.OpCall, chunk.OpList:
			ip++
		case chunk.OpJump, chunk.OpLoop, chunk.OpJumpIfFalse,
			chunk.OpJumpIfFalseSC, chunk.OpTryBegin:
			ip += 2
		}
	}
	return out
}

func uleb(code []byte, ip int) (uint64, int) {
	return chunk.ULEB128(code, ip)
}

func containsOp(ops []chunk.Op, want chunk.Op) bool {
	for _, o := range ops {
		if o == want {
			return true
		}
	}
	return false
}

func countOp(ops []chunk.Op, want chunk.Op) int {
	n := 0
	for _, o := range ops {
		if o == want {
			n++
		}
	}
	return n
}

func lastOp(ops []chunk.Op) chunk.Op {
	if len(ops) == 0 {
		return chunk.Op(255)
	}
	return ops[len(ops)-1]
}

// innerFunction digs the first compiled function body out of a chunk's
// constant pool.
func innerFunction(c *value.Chunk) *value.Function {
	for _, k := range c.Constants {
		if f, ok := k.AsObj().(*value.Function); ok {
			return f
		}
	}
	return nil
}

func TestCompileNumberLiteral(t *testing.T) {
	fn := compile(t, "42;")
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpConstant) {
		t.Fatalf("expected CONSTANT in %v", got)
	}
	if !containsOp(got, chunk.OpPop) {
		t.Fatalf("expression statement should pop its value: %v", got)
	}
	if len(fn.Chunk.Constants) != 1 || fn.Chunk.Constants[0].AsNumber() != 42 {
		t.Fatalf("constant pool = %v, want [42]", fn.Chunk.Constants)
	}
}

func TestCompileImplicitReturnIsNull(t *testing.T) {
	fn := compile(t, "")
	got := ops(fn.Chunk)
	if len(got) != 2 || got[0] != chunk.OpNull || got[1] != chunk.OpReturn {
		t.Fatalf("empty script should compile to NULL; RETURN, got %v", got)
	}
}

func TestCompileStringLiteral(t *testing.T) {
	fn := compile(t, `"hello";`)
	if len(fn.Chunk.Constants) != 1 {
		t.Fatalf("want one constant, got %d", len(fn.Chunk.Constants))
	}
	s, ok := fn.Chunk.Constants[0].AsObj().(*value.String)
	if !ok || s.Chars != "hello" {
		t.Fatalf("constant = %v, want string \"hello\"", fn.Chunk.Constants[0])
	}
}

func TestCompileStringEscapes(t *testing.T) {
	fn := compile(t, `"line1\nline2\t\"quoted\"";`)
	s, ok := fn.Chunk.Constants[0].AsObj().(*value.String)
	if !ok || s.Chars != "line1\nline2\t\"quoted\"" {
		t.Fatalf("constant = %q, want unescaped string", s.Chars)
	}
}

func TestCompileArithmeticPrecedence(t *testing.T) {
	// 1 + 2 * 3 must multiply before adding: CONSTANT CONSTANT
	// CONSTANT MUL ADD, not the left-to-right order.
	fn := compile(t, "1 + 2 * 3;")
	got := ops(fn.Chunk)
	mulAt, addAt := -1, -1
	for i, o := range got {
		if o == chunk.OpMul {
			mulAt = i
		}
		if o == chunk.OpAdd {
			addAt = i
		}
	}
	if mulAt == -1 || addAt == -1 || mulAt > addAt {
		t.Fatalf("expected MUL before ADD, got %v", got)
	}
}

func TestCompileShiftBindsTighterThanComparison(t *testing.T) {
	// a << 1 < b must shift before comparing.
	fn := compile(t, "a << 1 < b;")
	got := ops(fn.Chunk)
	shlAt, lessAt := -1, -1
	for i, o := range got {
		if o == chunk.OpShl {
			shlAt = i
		}
		if o == chunk.OpLess {
			lessAt = i
		}
	}
	if shlAt == -1 || lessAt == -1 || shlAt > lessAt {
		t.Fatalf("expected LSH before LESS, got %v", got)
	}
}

func TestCompileUnaryAndBitwise(t *testing.T) {
	fn := compile(t, "-x; !y; ~z;")
	got := ops(fn.Chunk)
	for _, want := range []chunk.Op{chunk.OpNegate, chunk.OpNot, chunk.OpBitNot} {
		if !containsOp(got, want) {
			t.Fatalf("expected %s in %v", want, got)
		}
	}
}

func TestCompileVarDeclarationGlobal(t *testing.T) {
	fn := compile(t, "var x = 1;")
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpDefineGlobal) {
		t.Fatalf("top-level var should DEFINE_GLOBAL, got %v", got)
	}
}

func TestCompileVarDeclarationLocal(t *testing.T) {
	// Inside a block, a var is a local slot: no DEFINE_GLOBAL, and the
	// end of the block pops it back off.
	fn := compile(t, "{ var x = 1; x; }")
	got := ops(fn.Chunk)
	if containsOp(got, chunk.OpDefineGlobal) {
		t.Fatalf("block-scoped var should not DEFINE_GLOBAL, got %v", got)
	}
	if !containsOp(got, chunk.OpGetLocal) {
		t.Fatalf("expected GET_LOCAL reading x back, got %v", got)
	}
}

func TestCompileShadowingRedeclarationIsError(t *testing.T) {
	compileErr(t, "{ var x = 1; var x = 2; }")
}

func TestCompileCompoundAssignments(t *testing.T) {
	fn := compile(t, "{ var x = 1; x += 2; x <<= 1; x >>>= 1; }")
	got := ops(fn.Chunk)
	for _, want := range []chunk.Op{chunk.OpAdd, chunk.OpShl, chunk.OpShr, chunk.OpSetLocal} {
		if !containsOp(got, want) {
			t.Fatalf("expected %s in %v", want, got)
		}
	}
}

func TestCompileCompoundPropertyAssignmentDups(t *testing.T) {
	fn := compile(t, "o.n += 1;")
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpDup) {
		t.Fatalf("compound property assignment should DUP the receiver, got %v", got)
	}
}

func TestCompileCompoundIndexAssignmentDupsPair(t *testing.T) {
	fn := compile(t, "xs[0] += 1;")
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpDupX2) {
		t.Fatalf("compound index assignment should DUP_X2 the object/index pair, got %v", got)
	}
}

func TestCompileInvalidAssignmentTarget(t *testing.T) {
	err := compileErr(t, "1 + 2 = 3;")
	if !strings.Contains(err.Error(), "Invalid assignment target") {
		t.Fatalf("error = %q, want it to name the invalid assignment target", err)
	}
}

func TestCompileIfElse(t *testing.T) {
	fn := compile(t, "if (true) { 1; } else { 2; }")
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpJumpIfFalse) || !containsOp(got, chunk.OpJump) {
		t.Fatalf("if/else should emit JUMP_IF_FALSE and a skip JUMP, got %v", got)
	}
}

func TestCompileWhileLoop(t *testing.T) {
	fn := compile(t, "while (true) { break; }")
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpLoop) {
		t.Fatalf("while should emit a backward LOOP, got %v", got)
	}
}

func TestCompileForLoop(t *testing.T) {
	fn := compile(t, "for (var i = 0; i < 10; i += 1) { print(i); }")
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpLoop) || !containsOp(got, chunk.OpLess) {
		t.Fatalf("expected a LOOP and a LESS comparison, got %v", got)
	}
}

func TestCompileForeachDesugarsToIteratorProtocol(t *testing.T) {
	fn := compile(t, "foreach (var item in [1, 2, 3]) { print(item); }")
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpList) {
		t.Fatalf("expected the literal list to be built, got %v", got)
	}
	if !containsOp(got, chunk.OpLoop) {
		t.Fatalf("foreach should desugar into a backward-branching loop, got %v", got)
	}
	// one INVOKE each for .iterator(), .more() and .next(); print(item)
	// is a plain call (no receiver), so it compiles to CALL, not INVOKE.
	if countOp(got, chunk.OpInvoke) < 3 {
		t.Fatalf("expected iterator()/more()/next() invoke sites in %v", got)
	}
}

func TestCompileBreakOutsideLoopIsError(t *testing.T) {
	compileErr(t, "break;")
}

func TestCompileContinueOutsideLoopIsError(t *testing.T) {
	compileErr(t, "continue;")
}

func TestCompileFunctionDeclaration(t *testing.T) {
	fn := compile(t, "function add(a, b) { return a + b; }")
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpClosure) {
		t.Fatalf("function declaration should emit CLOSURE, got %v", got)
	}
	inner := innerFunction(fn.Chunk)
	if inner == nil {
		t.Fatal("expected the function body in the constant pool")
	}
	if inner.Arity != 2 {
		t.Fatalf("add arity = %d, want 2", inner.Arity)
	}
	if inner.IsLambda {
		t.Fatal("a declared function must not be flagged as a lambda")
	}
	if lastOp(ops(inner.Chunk)) != chunk.OpReturn {
		t.Fatalf("function body should end in RETURN, got %v", ops(inner.Chunk))
	}
}

func TestCompileVarargsFunction(t *testing.T) {
	fn := compile(t, "function sum(first, rest...) { return rest; }")
	inner := innerFunction(fn.Chunk)
	if inner == nil || !inner.Varargs {
		t.Fatal("expected sum to be compiled with Varargs=true")
	}
	if inner.Arity != 2 {
		t.Fatalf("sum arity = %d, want 2 (the rest parameter occupies a slot)", inner.Arity)
	}
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	fn := compile(t, `
		function outer() {
			var x = 1;
			function inner() { return x; }
			return inner;
		}
	`)
	var outer *value.Function
	for _, c := range fn.Chunk.Constants {
		if f, ok := c.AsObj().(*value.Function); ok && f.Name == "outer" {
			outer = f
		}
	}
	if outer == nil {
		t.Fatal("expected outer in the constant pool")
	}
	var inner *value.Function
	for _, c := range outer.Chunk.Constants {
		if f, ok := c.AsObj().(*value.Function); ok && f.Name == "inner" {
			inner = f
		}
	}
	if inner == nil {
		t.Fatal("expected inner nested in outer's constant pool")
	}
	if inner.UpvalueCount != 1 {
		t.Fatalf("inner.UpvalueCount = %d, want 1", inner.UpvalueCount)
	}
	if !containsOp(ops(inner.Chunk), chunk.OpGetUpvalue) {
		t.Fatalf("inner body should read x via GET_UPVALUE, got %v", ops(inner.Chunk))
	}
}

func TestCompileLambdaExpressionBody(t *testing.T) {
	fn := compile(t, "var square = |x| x * x;")
	inner := innerFunction(fn.Chunk)
	if inner == nil || !inner.IsLambda {
		t.Fatal("expected an IsLambda function in the constant pool")
	}
	if inner.Arity != 1 {
		t.Fatalf("lambda arity = %d, want 1", inner.Arity)
	}
	body := ops(inner.Chunk)
	if !containsOp(body, chunk.OpMul) || !containsOp(body, chunk.OpReturn) {
		t.Fatalf("lambda body should multiply and return, got %v", body)
	}
}

func TestCompileLambdaBlockBody(t *testing.T) {
	fn := compile(t, "var f = |a, b| { return a + b; };")
	inner := innerFunction(fn.Chunk)
	if inner == nil || !inner.IsLambda || inner.Arity != 2 {
		t.Fatalf("expected a two-parameter lambda, got %+v", inner)
	}
}

func TestCompileZeroParamLambda(t *testing.T) {
	fn := compile(t, "var f = || 42;")
	inner := innerFunction(fn.Chunk)
	if inner == nil || !inner.IsLambda || inner.Arity != 0 {
		t.Fatalf("expected a zero-parameter lambda, got %+v", inner)
	}
}

func TestCompileClassWithMethodsAndInheritance(t *testing.T) {
	fn := compile(t, `
		class Animal {
			speak() { return "..."; }
		}
		class Dog : Animal {
			speak() { return "woof"; }
		}
	`)
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpClass) {
		t.Fatalf("expected CLASS, got %v", got)
	}
	if !containsOp(got, chunk.OpInherit) {
		t.Fatalf("expected INHERIT for Dog : Animal, got %v", got)
	}
	if !containsOp(got, chunk.OpMethod) {
		t.Fatalf("expected METHOD bindings, got %v", got)
	}
}

func TestCompileConstructorForbidsReturnValue(t *testing.T) {
	compileErr(t, `
		class A {
			constructor() { return 1; }
		}
	`)
}

func TestCompileSuperCall(t *testing.T) {
	fn := compile(t, `
		class Animal {
			speak() { return "..."; }
		}
		class Dog : Animal {
			speak() { return super.speak(); }
		}
	`)
	var dogSpeak *value.Function
	for _, c := range fn.Chunk.Constants {
		if f, ok := c.AsObj().(*value.Function); ok && f.Name == "speak" {
			dogSpeak = f
		}
	}
	if dogSpeak == nil {
		t.Fatal("expected a speak method in the constant pool")
	}
	if !containsOp(ops(dogSpeak.Chunk), chunk.OpSuperInvoke) && !containsOp(ops(dogSpeak.Chunk), chunk.OpGetSuper) {
		t.Fatalf("super.speak() should compile to SUPER_INVOKE (or GET_SUPER+CALL), got %v", ops(dogSpeak.Chunk))
	}
}

func TestCompileSuperOutsideClassIsError(t *testing.T) {
	compileErr(t, "function f() { return super.speak(); }")
}

func TestCompileThisOutsideMethodIsError(t *testing.T) {
	compileErr(t, "function f() { return this; }")
}

func TestCompileReturnAtTopLevelIsError(t *testing.T) {
	compileErr(t, "return 1;")
}

func TestCompileTryCatch(t *testing.T) {
	fn := compile(t, `
		try {
			throw "boom";
		} catch (e) {
			print(e);
		}
	`)
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpTryBegin) || !containsOp(got, chunk.OpTryEnd) {
		t.Fatalf("expected TRY_BEGIN/TRY_END, got %v", got)
	}
	if !containsOp(got, chunk.OpThrow) {
		t.Fatalf("expected THROW, got %v", got)
	}
}

func TestCompileCatchWithoutBindingPops(t *testing.T) {
	fn := compile(t, `
		try {
			throw "boom";
		} catch {
			print("caught");
		}
	`)
	if !containsOp(ops(fn.Chunk), chunk.OpTryBegin) {
		t.Fatal("expected TRY_BEGIN")
	}
}

func TestCompileTryWithOnlyFinally(t *testing.T) {
	fn := compile(t, `
		try {
			1;
		} finally {
			2;
		}
	`)
	if !containsOp(ops(fn.Chunk), chunk.OpTryBegin) {
		t.Fatal("expected TRY_BEGIN")
	}
}

func TestCompileBareTryIsError(t *testing.T) {
	compileErr(t, "try { 1; }")
}

func TestCompileThrowOutsideTryStillCompiles(t *testing.T) {
	// throw is legal anywhere, not just inside try; propagation is a
	// runtime concern, not a compile-time scoping rule.
	fn := compile(t, `throw "boom";`)
	if !containsOp(ops(fn.Chunk), chunk.OpThrow) {
		t.Fatal("expected THROW")
	}
}

func TestCompileSwitchStatementPatterns(t *testing.T) {
	fn := compile(t, `
		switch (x) {
			1, 2 -> print("small");
			in xs -> print("member");
			is Number -> print("numeric");
			else -> print("other");
		}
	`)
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpEqual) {
		t.Fatalf("plain patterns should compile to equality checks, got %v", got)
	}
	if !containsOp(got, chunk.OpIn) {
		t.Fatalf("`in` pattern should compile to IN, got %v", got)
	}
	if !containsOp(got, chunk.OpInstanceof) {
		t.Fatalf("`is` pattern should compile to INSTANCEOF, got %v", got)
	}
	if !containsOp(got, chunk.OpDup) {
		t.Fatalf("each pattern should DUP the subject, got %v", got)
	}
}

func TestCompileSwitchExpressionYieldsValue(t *testing.T) {
	fn := compile(t, `var r = switch (n) { 1 -> "one"; else -> "other"; };`)
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpDefineGlobal) {
		t.Fatalf("switch expression result should feed the var definition, got %v", got)
	}
	// The no-match path of a switch expression pushes null.
	if !containsOp(got, chunk.OpNull) {
		t.Fatalf("switch expression should have a null fallback, got %v", got)
	}
}

func TestCompileSwitchNegatedPattern(t *testing.T) {
	fn := compile(t, `
		switch (x) {
			!1 -> print("not one");
		}
	`)
	if !containsOp(ops(fn.Chunk), chunk.OpNot) {
		t.Fatalf("negated pattern should compile to NOT, got %v", ops(fn.Chunk))
	}
}

func TestCompilePredicatePattern(t *testing.T) {
	fn := compile(t, `
		switch (x) {
			|> isEven -> print("even");
		}
	`)
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpSwap) || !containsOp(got, chunk.OpCall) {
		t.Fatalf("predicate pattern should swap-then-call, got %v", got)
	}
}

func TestCompileListLiteralAndIndex(t *testing.T) {
	fn := compile(t, "var xs = [1, 2, 3]; xs[0];")
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpList) {
		t.Fatalf("expected LIST, got %v", got)
	}
	if !containsOp(got, chunk.OpGetIndex) {
		t.Fatalf("expected GET_INDEX, got %v", got)
	}
}

func TestCompileIndexAssignment(t *testing.T) {
	fn := compile(t, "var xs = [1]; xs[0] = 2;")
	if !containsOp(ops(fn.Chunk), chunk.OpSetIndex) {
		t.Fatalf("expected SET_INDEX, got %v", ops(fn.Chunk))
	}
}

func TestCompileListLiteralTooLong(t *testing.T) {
	var b strings.Builder
	b.WriteString("var xs = [")
	for i := 0; i < 256; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", i)
	}
	b.WriteString("];")
	compileErr(t, b.String())
}

func TestCompileObjectLiteral(t *testing.T) {
	fn := compile(t, `var o = { name: "a", age: 1 };`)
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpObject) {
		t.Fatalf("expected OBJECT, got %v", got)
	}
	if countOp(got, chunk.OpSetPropertyKV) != 2 {
		t.Fatalf("expected two SET_PROPERTY_KV, got %v", got)
	}
}

func TestCompileObjectLiteralShorthand(t *testing.T) {
	// `{ name }` is shorthand for `{ name: name }`: the value is read
	// from the variable of the same name.
	fn := compile(t, `var o = { name };`)
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpSetPropertyKV) {
		t.Fatalf("expected SET_PROPERTY_KV, got %v", got)
	}
	if !containsOp(got, chunk.OpGetGlobal) {
		t.Fatalf("shorthand should read the variable, got %v", got)
	}
}

func TestCompilePropertyAccessAndAssignment(t *testing.T) {
	fn := compile(t, `o.name; o.name = "b";`)
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpGetProperty) {
		t.Fatalf("expected GET_PROPERTY, got %v", got)
	}
	if !containsOp(got, chunk.OpSetProperty) {
		t.Fatalf("expected SET_PROPERTY, got %v", got)
	}
}

func TestCompileMethodCallFusesInvoke(t *testing.T) {
	fn := compile(t, `o.greet("hi");`)
	if !containsOp(ops(fn.Chunk), chunk.OpInvoke) {
		t.Fatalf("o.greet(\"hi\") should compile to INVOKE, got %v", ops(fn.Chunk))
	}
}

func TestCompileRangeExpression(t *testing.T) {
	fn := compile(t, "var r = 1..5;")
	if !containsOp(ops(fn.Chunk), chunk.OpRange) {
		t.Fatalf("expected RANGE, got %v", ops(fn.Chunk))
	}
}

func TestCompilePipeOperator(t *testing.T) {
	// x |> f evaluates x, then f, then swaps so f is the callee with x
	// as its single argument.
	fn := compile(t, "x |> f;")
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpSwap) || !containsOp(got, chunk.OpCall) {
		t.Fatalf("pipe should swap-then-call, got %v", got)
	}
}

func TestCompileTernary(t *testing.T) {
	fn := compile(t, "var y = true ? 1 : 2;")
	if !containsOp(ops(fn.Chunk), chunk.OpJumpIfFalse) {
		t.Fatalf("ternary should branch, got %v", ops(fn.Chunk))
	}
}

func TestCompileLogicalAndOrShortCircuit(t *testing.T) {
	fn := compile(t, "a && b; a || b;")
	if !containsOp(ops(fn.Chunk), chunk.OpJumpIfFalseSC) {
		t.Fatalf("&&/|| should use the short-circuiting peek variant, got %v", ops(fn.Chunk))
	}
}

func TestCompileTypeofInstanceofIn(t *testing.T) {
	fn := compile(t, "typeof x; x instanceof Foo; x in xs;")
	got := ops(fn.Chunk)
	for _, want := range []chunk.Op{chunk.OpTypeof, chunk.OpInstanceof, chunk.OpIn} {
		if !containsOp(got, want) {
			t.Fatalf("expected %s in %v", want, got)
		}
	}
}

func TestCompileImportBindsBasename(t *testing.T) {
	fn := compile(t, `import "collections/list";`)
	got := ops(fn.Chunk)
	if !containsOp(got, chunk.OpImport) {
		t.Fatalf("expected IMPORT, got %v", got)
	}
	if !containsOp(got, chunk.OpDefineGlobal) {
		t.Fatalf("import should bind the module under its basename, got %v", got)
	}
	// The path constant must carry no surrounding quotes.
	var sawPath bool
	for _, c := range fn.Chunk.Constants {
		if s, ok := c.AsObj().(*value.String); ok && s.Chars == "collections/list" {
			sawPath = true
		}
	}
	if !sawPath {
		t.Fatalf("expected the bare path in the constant pool, got %v", fn.Chunk.Constants)
	}
}

func TestCompileExportForms(t *testing.T) {
	fn := compile(t, `var x = 1; export x; export var y = 2; export function f() { return 0; }`)
	got := ops(fn.Chunk)
	if countOp(got, chunk.OpExport) != 3 {
		t.Fatalf("expected three EXPORTs, got %v", got)
	}
}

func TestCompileConstantPoolDedupsLiterals(t *testing.T) {
	// The same identifier and the same number appearing repeatedly
	// should collapse to one pool entry each (given an interning
	// callback that returns one canonical string per name).
	seen := map[string]*value.String{}
	intern := func(s string) *value.String {
		if v, ok := seen[s]; ok {
			return v
		}
		v := value.NewString(s)
		seen[s] = v
		return v
	}
	fn, err := Compile("var x = 1; x; x; 1; 1;", intern, nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	var xCount, oneCount int
	for _, c := range fn.Chunk.Constants {
		if s, ok := c.AsObj().(*value.String); ok && s.Chars == "x" {
			xCount++
		}
		if c.IsNumber() && c.AsNumber() == 1 {
			oneCount++
		}
	}
	if xCount != 1 {
		t.Fatalf("x appears %d times in the pool, want 1", xCount)
	}
	if oneCount != 1 {
		t.Fatalf("1 appears %d times in the pool, want 1", oneCount)
	}
}

func TestCompileSyntaxErrorFormat(t *testing.T) {
	err := compileErr(t, "var = ;")
	if !strings.Contains(err.Error(), "Error at") {
		t.Fatalf("error = %q, want the [line] Error at token: message format", err)
	}
}

func TestCompileSyntaxErrorReportsAllPanicModeRecoveries(t *testing.T) {
	err := compileErr(t, "var = ; var = ;")
	if got := strings.Count(err.Error(), "Error at"); got < 2 {
		t.Fatalf("expected both statements' errors after resync, got %q", err)
	}
}

func TestCompileTooManyLocalsIsError(t *testing.T) {
	var b strings.Builder
	b.WriteString("{\n")
	for i := 0; i <= maxLocals; i++ {
		fmt.Fprintf(&b, "var a%d = 0;\n", i)
	}
	b.WriteString("}\n")
	compileErr(t, b.String())
}

func TestCompileTooManyArgumentsIsError(t *testing.T) {
	var b strings.Builder
	b.WriteString("f(")
	for i := 0; i < 256; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("0")
	}
	b.WriteString(");")
	compileErr(t, b.String())
}
