package vm

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/ember/pkg/value"
)

type mapLoader map[string]string

func (m mapLoader) Load(path string) (string, error) {
	src, ok := m[path]
	if !ok {
		return "", fmt.Errorf("no module %q", path)
	}
	return src, nil
}

func newTestVM(modules mapLoader) (*VM, *bytes.Buffer) {
	machine := New(modules, nil, nil)
	var buf bytes.Buffer
	machine.SetStdout(&buf)
	return machine, &buf
}

// run interprets src and returns everything it printed.
func run(t *testing.T, src string) string {
	t.Helper()
	machine, buf := newTestVM(nil)
	_, err := machine.Interpret("test", src)
	require.NoError(t, err, "source: %s", src)
	return buf.String()
}

// runFail interprets src expecting an uncaught exception and returns
// the resulting error.
func runFail(t *testing.T, src string) error {
	t.Helper()
	machine, _ := newTestVM(nil)
	_, err := machine.Interpret("test", src)
	require.Error(t, err, "source: %s", src)
	return err
}

func TestListMapLambda(t *testing.T) {
	out := run(t, `var a = [1,2,3]; print(a.map(|x| x*x));`)
	assert.Equal(t, "[1, 4, 9]\n", out)
}

func TestVarargsPackSurplus(t *testing.T) {
	out := run(t, `function f(a, b...) { return b; } print(f(1,2,3,4));`)
	assert.Equal(t, "[2, 3, 4]\n", out)
}

func TestVarargsEmptySurplus(t *testing.T) {
	out := run(t, `function f(a, b...) { return b; } print(f(1));`)
	assert.Equal(t, "[]\n", out)
}

func TestClassConstructorAndToString(t *testing.T) {
	out := run(t, `
		class A {
			constructor(x) { this.x = x; }
			toString() { return "A(" + this.x + ")"; }
		}
		print(A(7));
	`)
	assert.Equal(t, "A(7)\n", out)
}

func TestThrowCatchBuiltinException(t *testing.T) {
	out := run(t, `try { throw TypeException("boom"); } catch (e) { print(e.message); }`)
	assert.Equal(t, "boom\n", out)
}

func TestForLoopStringConcat(t *testing.T) {
	out := run(t, `var s = ""; for (var i=0;i<3;i+=1) s = s + i; print(s);`)
	assert.Equal(t, "012\n", out)
}

func TestForeachOverString(t *testing.T) {
	out := run(t, `foreach (var c in "ab") print(c);`)
	assert.Equal(t, "a\nb\n", out)
}

func TestRangeAscendingAndDescending(t *testing.T) {
	assert.Equal(t, "[1, 2, 3, 4, 5]\n", run(t, `print(1..5);`))
	assert.Equal(t, "[3, 2, 1]\n", run(t, `print(3..1);`))
}

func TestSwitchExpressionPatterns(t *testing.T) {
	out := run(t, `var n = 5; var r = switch(n){ 1,2 -> "lo"; is Number -> "num"; else -> "?"; }; print(r);`)
	assert.Equal(t, "num\n", out)
}

func TestSwitchStatementMultiPattern(t *testing.T) {
	out := run(t, `
		var n = 2;
		switch (n) {
			1, 2 -> print("lo");
			else -> print("hi");
		}
	`)
	assert.Equal(t, "lo\n", out)
}

func TestSwitchExpressionNoMatchYieldsNull(t *testing.T) {
	out := run(t, `var r = switch(9){ 1 -> "one"; }; print(r == null);`)
	assert.Equal(t, "true\n", out)
}

func TestSwitchPredicatePattern(t *testing.T) {
	out := run(t, `
		var isEven = |x| x % 2 == 0;
		var r = switch (4) { |> isEven -> "even"; else -> "odd"; };
		print(r);
	`)
	assert.Equal(t, "even\n", out)
}

func TestLambdaLaxArity(t *testing.T) {
	out := run(t, `
		var f = |a, b| [a, b];
		print(f(1));
		print(f(1, 2, 3));
	`)
	assert.Equal(t, "[1, null]\n[1, 2]\n", out)
}

func TestFunctionArityIsExact(t *testing.T) {
	err := runFail(t, `function f(a) { return a; } f(1, 2);`)
	assert.Contains(t, err.Error(), "ArityException")
}

func TestClosureCapturesAndCloses(t *testing.T) {
	out := run(t, `
		function counter() {
			var n = 0;
			return || { n = n + 1; return n; };
		}
		var c = counter();
		print(c()); print(c()); print(c());
	`)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestClosedUpvalueKeepsValueAtClose(t *testing.T) {
	out := run(t, `
		var fs = [];
		for (var i = 0; i < 3; i += 1) {
			var j = i;
			fs = fs + [|| j];
		}
		print(fs[0]()); print(fs[1]()); print(fs[2]());
	`)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestNegativeIndexFromEnd(t *testing.T) {
	out := run(t, `var xs = [10, 20, 30]; print(xs[-1]); print(xs[-3]);`)
	assert.Equal(t, "30\n10\n", out)
}

func TestIndexOutOfRangeRaises(t *testing.T) {
	out := run(t, `
		var xs = [1];
		try { xs[5]; } catch (e) { print(e instanceof IndexException); }
	`)
	assert.Equal(t, "true\n", out)
}

func TestPropertyOnNonInstanceRaisesTypeException(t *testing.T) {
	out := run(t, `try { (1).foo; } catch (e) { print(e instanceof TypeException); }`)
	assert.Equal(t, "true\n", out)
}

func TestUndefinedVariableRaises(t *testing.T) {
	out := run(t, `try { missing; } catch (e) { print(e instanceof UndefinedVariableException); }`)
	assert.Equal(t, "true\n", out)
}

func TestStackOverflowRaises(t *testing.T) {
	err := runFail(t, `function f() { return f(); } f();`)
	assert.Contains(t, err.Error(), "StackOverflowException")
}

func TestStackOverflowIsCatchable(t *testing.T) {
	out := run(t, `
		function f() { return f(); }
		try { f(); } catch (e) { print(e instanceof StackOverflowException); }
	`)
	assert.Equal(t, "true\n", out)
}

func TestNegativeShiftRaisesTypeException(t *testing.T) {
	out := run(t, `try { 1 << -1; } catch (e) { print(e instanceof TypeException); }`)
	assert.Equal(t, "true\n", out)
}

func TestFractionalBitwiseOperandRaises(t *testing.T) {
	out := run(t, `try { 1.5 & 1; } catch (e) { print(e instanceof TypeException); }`)
	assert.Equal(t, "true\n", out)
}

func TestUnsignedShiftRight(t *testing.T) {
	out := run(t, `print(-1 >>> 32);`)
	assert.Equal(t, "4294967295\n", out)
}

func TestArithmeticShiftRight(t *testing.T) {
	out := run(t, `print(-8 >> 1);`)
	assert.Equal(t, "-4\n", out)
}

func TestTypeofNames(t *testing.T) {
	out := run(t, `
		print(typeof true);
		print(typeof null);
		print(typeof 1);
		print(typeof "s");
		print(typeof []);
		print(typeof print);
		print(typeof Object);
		print(typeof {});
	`)
	assert.Equal(t, "boolean\nnull\nnumber\nstring\nlist\nfunction\nclass\ninstance\n", out)
}

func TestInOperator(t *testing.T) {
	out := run(t, `
		print(2 in [1, 2, 3]);
		print("ell" in "hello");
		var o = { a: 1 };
		print("a" in o);
		print("b" in o);
	`)
	assert.Equal(t, "true\ntrue\ntrue\nfalse\n", out)
}

func TestListEqualityIsElementwise(t *testing.T) {
	out := run(t, `
		print([1, 2] == [1, 2]);
		print([1, 2] is [1, 2]);
		var xs = [1]; print(xs is xs);
	`)
	assert.Equal(t, "true\nfalse\ntrue\n", out)
}

func TestPlusAppendsToList(t *testing.T) {
	out := run(t, `print([1, 2] + 3); print([1] + [2, 3]);`)
	assert.Equal(t, "[1, 2, 3]\n[1, 2, 3]\n", out)
}

func TestConcatenationRunsToStringLeftToRight(t *testing.T) {
	out := run(t, `
		class Loud {
			toString() { print("side"); return "x"; }
		}
		print(Loud() + "!");
	`)
	assert.Equal(t, "side\nx!\n", out)
}

func TestNonStringToStringRaises(t *testing.T) {
	out := run(t, `
		class Bad { toString() { return 1; } }
		try { "" + Bad(); } catch (e) { print(e instanceof TypeException); }
	`)
	assert.Equal(t, "true\n", out)
}

func TestInheritanceAndSuper(t *testing.T) {
	out := run(t, `
		class Animal {
			speak() { return "..."; }
			kind() { return "animal"; }
		}
		class Dog : Animal {
			speak() { return super.speak() + "woof"; }
		}
		var d = Dog();
		print(d.speak());
		print(d.kind());
		print(d instanceof Dog);
		print(d instanceof Animal);
		print(d instanceof Object);
	`)
	assert.Equal(t, "...woof\nanimal\ntrue\ntrue\ntrue\n", out)
}

func TestFieldsShadowMethods(t *testing.T) {
	out := run(t, `
		class A { f() { return "method"; } }
		var a = A();
		a.f = || "field";
		print(a.f());
	`)
	assert.Equal(t, "field\n", out)
}

func TestObjectNativeMethods(t *testing.T) {
	out := run(t, `
		var o = { a: 1, b: 2 };
		print(o.hasProperty("a"));
		print(o.keys().length() == 2);
		print(o.values().length() == 2);
	`)
	assert.Equal(t, "true\ntrue\ntrue\n", out)
}

func TestStringNativeMethods(t *testing.T) {
	out := run(t, `
		print("hello".length());
		print("hello".substring(1, 3));
		print("ab".repeat(2));
		print("hello".startsWith("he"));
		print("hello".endsWith("lo"));
		print("42".parseNumber() + 1);
	`)
	assert.Equal(t, "5\nel\nabab\ntrue\ntrue\n43\n", out)
}

func TestListNativeMethods(t *testing.T) {
	out := run(t, `
		var xs = [3, 1, 2];
		print(xs.sort());
		print(xs.sort(|a, b| b - a));
		print(xs.reduce(|acc, x| acc + x, 0));
		print(xs.filter(|x| x > 1));
		print(xs.indexOf(2));
		print([1, 2].concat([3]));
		print(xs.any(|x| x == 3));
		print(xs.every(|x| x > 0));
	`)
	assert.Equal(t, "[1, 2, 3]\n[3, 2, 1]\n6\n[3, 2]\n2\n[1, 2, 3]\ntrue\ntrue\n", out)
}

func TestIteratorClassDirectly(t *testing.T) {
	out := run(t, `
		var it = Iterator([1, 2]);
		print(it.more());
		print(it.next());
		print(it.next());
		print(it.more());
	`)
	assert.Equal(t, "true\n1\n2\nfalse\n", out)
}

func TestTernaryAndPipe(t *testing.T) {
	out := run(t, `
		var double = |x| x * 2;
		print(3 |> double);
		print(true ? "y" : "n");
	`)
	assert.Equal(t, "6\ny\n", out)
}

func TestShortCircuitEvaluation(t *testing.T) {
	out := run(t, `
		function boom() { throw Exception("no"); }
		print(false && boom());
		print(true || boom());
	`)
	assert.Equal(t, "false\ntrue\n", out)
}

func TestCompoundIndexAssignmentEvaluatesOnce(t *testing.T) {
	out := run(t, `
		var calls = 0;
		var xs = [10];
		function pick() { calls += 1; return xs; }
		pick()[0] += 5;
		print(xs[0]);
		print(calls);
	`)
	assert.Equal(t, "15\n1\n", out)
}

func TestFinallyRunsAfterCatch(t *testing.T) {
	out := run(t, `
		try {
			throw Exception("x");
		} catch (e) {
			print("caught");
		} finally {
			print("finally");
		}
	`)
	assert.Equal(t, "caught\nfinally\n", out)
}

func TestNestedTryRethrow(t *testing.T) {
	out := run(t, `
		try {
			try {
				throw TypeException("inner");
			} catch (e) {
				throw e;
			}
		} catch (e) {
			print(e.message);
		}
	`)
	assert.Equal(t, "inner\n", out)
}

func TestExceptionCrossesNativeCallback(t *testing.T) {
	// A throw inside a map callback must unwind through the native
	// frame into the enclosing try.
	out := run(t, `
		try {
			[1].map(|x| { throw IndexException("from callback"); });
		} catch (e) {
			print(e.message);
		}
	`)
	assert.Equal(t, "from callback\n", out)
}

func TestUncaughtExceptionCarriesStackTrace(t *testing.T) {
	err := runFail(t, `
		function inner() { throw Exception("deep"); }
		function outer() { inner(); }
		outer();
	`)
	msg := err.Error()
	assert.Contains(t, msg, "deep")
	assert.Contains(t, msg, "inner")
}

func TestStackTraceCollapsesRepeatedFrames(t *testing.T) {
	out := run(t, `
		var depth = 0;
		function rec() {
			depth += 1;
			if (depth < 50) { rec(); }
			else { throw Exception("done"); }
		}
		try { rec(); } catch (e) { print(e.stackTrace.length() < 10); }
	`)
	assert.Equal(t, "true\n", out)
}

func TestUserExceptionSubclass(t *testing.T) {
	out := run(t, `
		class ParseError : Exception {}
		try {
			throw ParseError("bad token");
		} catch (e) {
			print(e instanceof ParseError);
			print(e instanceof Exception);
			print(e.message);
		}
	`)
	assert.Equal(t, "true\ntrue\nbad token\n", out)
}

func TestThrowNonInstanceIsCatchable(t *testing.T) {
	out := run(t, `try { throw "bare"; } catch (e) { print(e); }`)
	assert.Equal(t, "bare\n", out)
}

func TestReprIdempotentForPlainValues(t *testing.T) {
	out := run(t, `
		print(repr("a"));
		print(repr([1, "b"]));
		print(repr(null));
		print(toString(repr(1.5)) == repr(1.5));
	`)
	assert.Equal(t, "\"a\"\n[1, \"b\"]\nnull\ntrue\n", out)
}

func TestGlobalsSeeded(t *testing.T) {
	out := run(t, `
		print(THIS_MODULE);
		print(NaN != NaN);
		print(Infinity > 1e308);
		print(sqrt(9));
	`)
	assert.Equal(t, "$main$\ntrue\ntrue\n3\n", out)
}

func TestImportModuleExports(t *testing.T) {
	machine, buf := newTestVM(mapLoader{
		"mathx": `
			export function double(x) { return x * 2; }
			export var name = "mathx";
			print(THIS_MODULE);
		`,
	})
	_, err := machine.Interpret("test", `
		import "mathx";
		print(mathx.double(21));
		print(mathx.name);
	`)
	require.NoError(t, err)
	assert.Equal(t, "mathx\n42\nmathx\n", buf.String())
}

func TestImportIsCachedSingleInstance(t *testing.T) {
	machine, buf := newTestVM(mapLoader{
		"counter": `print("ran"); export var x = 1;`,
	})
	_, err := machine.Interpret("test", `
		import "counter";
		import "counter";
		print(counter.x);
	`)
	require.NoError(t, err)
	assert.Equal(t, "ran\n1\n", buf.String())
}

func TestImportReadFailureIsNotCatchable(t *testing.T) {
	machine, _ := newTestVM(mapLoader{})
	_, err := machine.Interpret("test", `
		try { import "missing"; } catch (e) { print("caught"); }
	`)
	require.Error(t, err)
	_, ok := err.(*ImportIOError)
	assert.True(t, ok, "expected *ImportIOError, got %T", err)
}

func TestImportBodyExceptionIsCatchable(t *testing.T) {
	machine, buf := newTestVM(mapLoader{
		"bad": `throw TypeException("module blew up");`,
	})
	_, err := machine.Interpret("test", `
		try { import "bad"; } catch (e) { print(e.message); }
	`)
	require.NoError(t, err)
	assert.Equal(t, "module blew up\n", buf.String())
}

func TestModuleGlobalsAreIsolated(t *testing.T) {
	machine, buf := newTestVM(mapLoader{
		"lib": `var hidden = "secret"; export var shown = "ok";`,
	})
	_, err := machine.Interpret("test", `
		import "lib";
		print(lib.shown);
		try { print(hidden); } catch (e) { print("isolated"); }
	`)
	require.NoError(t, err)
	assert.Equal(t, "ok\nisolated\n", buf.String())
}

func TestStringInterningIdentity(t *testing.T) {
	machine, _ := newTestVM(nil)
	a := machine.heap.InternString("shared")
	b := machine.heap.InternString("shared")
	assert.Same(t, a, b)
	c := machine.heap.InternString("other")
	assert.NotSame(t, a, c)
}

func TestConcatenatedStringsCompareByIdentity(t *testing.T) {
	out := run(t, `print(("ab" + "c") is "abc");`)
	assert.Equal(t, "true\n", out)
}

func TestGCPreservesReachableObjects(t *testing.T) {
	machine, buf := newTestVM(nil)
	_, err := machine.Interpret("test", `
		var keep = [];
		for (var i = 0; i < 100; i += 1) {
			keep = keep + [toString(i)];
			var garbage = [1, 2, 3, i];
		}
		print(keep.length());
		print(keep[99]);
	`)
	require.NoError(t, err)
	// Force a full cycle with the survivors rooted in module globals.
	machine.collect()
	_, err = machine.Interpret("test", `print(keep[0] + keep[99]);`)
	require.NoError(t, err)
	assert.Equal(t, "100\n99\n099\n", buf.String())
}

func TestGCSweepsUnreachableStrings(t *testing.T) {
	machine, _ := newTestVM(nil)
	_, err := machine.Interpret("test", `var x = "kept-string";`)
	require.NoError(t, err)
	machine.heap.InternString("doomed-string-nobody-references")
	before := machine.heap.strings.Len()
	machine.collect()
	after := machine.heap.strings.Len()
	assert.Less(t, after, before, "unreferenced interned string should be swept")
	// The rooted one must survive.
	kept, _ := machine.currentModule.Globals.Get(machine.heap.InternString("x"))
	s, ok := kept.AsObj().(*value.String)
	require.True(t, ok)
	assert.Equal(t, "kept-string", s.Chars)
}

func TestDeterministicEvaluation(t *testing.T) {
	src := `print((1 + 2 * 3) .. 10);`
	assert.Equal(t, run(t, src), run(t, src))
}

func TestReplStyleSequentialInterprets(t *testing.T) {
	machine, buf := newTestVM(nil)
	_, err := machine.Interpret("<repl>", `var x = 1;`)
	require.NoError(t, err)
	_, err = machine.Interpret("<repl>", `print(x + 1);`)
	require.NoError(t, err)
	assert.Equal(t, "2\n", buf.String())
}

func TestObjectLiteralShorthand(t *testing.T) {
	out := run(t, `
		var name = "ember";
		var o = { name, version: 1 };
		print(o.name);
		print(o.version);
	`)
	assert.Equal(t, "ember\n1\n", out)
}

func TestExportBareName(t *testing.T) {
	machine, buf := newTestVM(mapLoader{
		"lib": `
			function helper() { return "helped"; }
			export helper;
		`,
	})
	_, err := machine.Interpret("test", `
		import "lib";
		print(lib.helper());
	`)
	require.NoError(t, err)
	assert.Equal(t, "helped\n", buf.String())
}

func TestGCKeepsNativeMethodTables(t *testing.T) {
	// The built-in method tables are roots: a collection with nothing
	// else alive must not sweep the natives out of them.
	machine, buf := newTestVM(nil)
	machine.collect()
	_, err := machine.Interpret("test", `print([2, 1].sort()); print("ab".length());`)
	require.NoError(t, err)
	assert.Equal(t, "[1, 2]\n2\n", buf.String())
	for _, n := range machine.listMethods {
		assert.False(t, n.Marked, "mark bits should be clear after sweep")
	}
}
