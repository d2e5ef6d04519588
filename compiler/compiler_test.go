package compiler_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nand2vm/jackc/compiler"
	"github.com/nand2vm/jackc/lexer"
	"github.com/nand2vm/jackc/vmwriter"
)

func compile(t *testing.T, source string) string {
	t.Helper()
	lex, err := lexer.New(strings.NewReader(source))
	require.NoError(t, err)

	var buf bytes.Buffer
	vw := vmwriter.New(&buf)
	engine := compiler.New(lex, vw)

	require.NoError(t, engine.CompileClass())
	require.NoError(t, vw.Close())
	return buf.String()
}

func lines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestCompileClass_EndToEndScenarios(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   []string
	}{
		{
			name:   "void return",
			source: `class X { function void m() { return; } }`,
			want: []string{
				"function X.m 0",
				"push constant 0",
				"return",
			},
		},
		{
			name:   "int literal return",
			source: `class X { function int m() { return 7; } }`,
			want: []string{
				"function X.m 0",
				"push constant 7",
				"return",
			},
		},
		{
			name:   "constructor allocation",
			source: `class X { field int a; constructor X new() { let a = 3; return this; } }`,
			want: []string{
				"function X.new 0",
				"push constant 1",
				"call Memory.alloc 1",
				"pop pointer 0",
				"push constant 3",
				"pop this 0",
				"push pointer 0",
				"return",
			},
		},
		{
			name:   "left to right, no precedence",
			source: `class X { function int m() { return 1+2*3; } }`,
			want: []string{
				"function X.m 0",
				"push constant 1",
				"push constant 2",
				"add",
				"push constant 3",
				"call Math.multiply 2",
				"return",
			},
		},
		{
			name:   "do discards return value",
			source: `class X { function void m() { do Y.f(1,2); return; } }`,
			want: []string{
				"function X.m 0",
				"push constant 1",
				"push constant 2",
				"call Y.f 2",
				"pop temp 0",
				"push constant 0",
				"return",
			},
		},
		{
			name:   "array store, idx first, that last",
			source: `class X { field Array a; method void s(int i, int v) { let a[i] = v; return; } }`,
			want: []string{
				"function X.s 0",
				"push argument 0",
				"pop pointer 0",
				"push this 0",
				"push argument 1",
				"add",
				"push argument 2",
				"pop temp 0",
				"pop pointer 1",
				"push temp 0",
				"pop that 0",
				"push constant 0",
				"return",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := compile(t, tc.source)
			assert.Equal(t, tc.want, lines(got))
		})
	}
}

func TestCompileClass_ArrayRead(t *testing.T) {
	source := `class X { field Array a; method int get(int i) { return a[i]; } }`
	want := []string{
		"function X.get 0",
		"push argument 0",
		"pop pointer 0",
		"push this 0",
		"push argument 1",
		"add",
		"pop pointer 1",
		"push that 0",
		"return",
	}
	assert.Equal(t, want, lines(compile(t, source)))
}

func TestCompileClass_MethodCallOnVariable(t *testing.T) {
	source := `class X { function void m() { var Y y; do y.run(); return; } }`
	want := []string{
		"function X.m 1",
		"push local 0",
		"call Y.run 1",
		"pop temp 0",
		"push constant 0",
		"return",
	}
	assert.Equal(t, want, lines(compile(t, source)))
}

func TestCompileClass_ImplicitSelfCall(t *testing.T) {
	source := `class X { method void m() { do helper(); return; } }`
	want := []string{
		"function X.m 0",
		"push argument 0",
		"pop pointer 0",
		"push pointer 0",
		"call X.helper 1",
		"pop temp 0",
		"push constant 0",
		"return",
	}
	assert.Equal(t, want, lines(compile(t, source)))
}

func TestCompileClass_IfElse(t *testing.T) {
	source := `class X { function void m() { if (true) { do f(); } else { do g(); } } }`
	got := lines(compile(t, source))
	require.Len(t, got, 14)
	assert.Equal(t, "function X.m 0", got[0])
	assert.Equal(t, "push constant 1", got[1])
	assert.Equal(t, "neg", got[2])
	assert.Equal(t, "not", got[3])
	assert.Contains(t, got[4], "if-goto X_IF_ELSE_0")
	assert.Equal(t, "push pointer 0", got[5])
	assert.Equal(t, "call X.f 1", got[6])
	assert.Equal(t, "pop temp 0", got[7])
	assert.Contains(t, got[8], "goto X_IF_END_1")
	assert.Contains(t, got[9], "label X_IF_ELSE_0")
	assert.Equal(t, "push pointer 0", got[10])
	assert.Equal(t, "call X.g 1", got[11])
	assert.Equal(t, "pop temp 0", got[12])
	assert.Contains(t, got[13], "label X_IF_END_1")
}

func TestCompileClass_While(t *testing.T) {
	source := `class X { function void m() { while (false) { do f(); } return; } }`
	got := lines(compile(t, source))
	assert.Equal(t, "label X_WHILE_START_0", got[1])
	assert.Equal(t, "push constant 0", got[2])
	assert.Equal(t, "not", got[3])
	assert.Equal(t, "if-goto X_WHILE_END_1", got[4])
	assert.Equal(t, "push pointer 0", got[5])
	assert.Equal(t, "call X.f 1", got[6])
	assert.Equal(t, "pop temp 0", got[7])
	assert.Equal(t, "goto X_WHILE_START_0", got[8])
	assert.Equal(t, "label X_WHILE_END_1", got[9])
}

func TestCompileClass_StringConstant(t *testing.T) {
	source := `class X { function void m() { do Output.printString("Hi"); return; } }`
	got := lines(compile(t, source))
	assert.Equal(t, []string{
		"function X.m 0",
		"push constant 2",
		"call String.new 1",
		"push constant 72",
		"call String.appendChar 2",
		"push constant 105",
		"call String.appendChar 2",
		"call Output.printString 1",
		"pop temp 0",
		"push constant 0",
		"return",
	}, got)
}

func TestCompileClass_ComparisonOperators(t *testing.T) {
	source := `class X { function boolean m() { return 1<=2; } }`
	got := lines(compile(t, source))
	assert.Equal(t, []string{
		"function X.m 0",
		"push constant 1",
		"push constant 2",
		"gt",
		"not",
		"return",
	}, got)
}

func TestCompileClass_UnaryMinusBindsToTerm(t *testing.T) {
	source := `class X { function int m() { return -1+2; } }`
	got := lines(compile(t, source))
	assert.Equal(t, []string{
		"function X.m 0",
		"push constant 1",
		"neg",
		"push constant 2",
		"add",
		"return",
	}, got)
}

func TestCompileClass_LabelsAreUniquePerClass(t *testing.T) {
	source := `class X {
		function void a() { var int x; while (true) { let x = 1; } return; }
		function void b() { var int x; while (true) { let x = 1; } return; }
	}`
	got := compile(t, source)
	first := strings.Count(got, "label X_WHILE_START_0")
	second := strings.Count(got, "label X_WHILE_START_2")
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestCompileClass_UndefinedVariableIsLookupError(t *testing.T) {
	lex, err := lexer.New(strings.NewReader(`class X { function void m() { let y = 1; return; } }`))
	require.NoError(t, err)

	var buf bytes.Buffer
	vw := vmwriter.New(&buf)
	engine := compiler.New(lex, vw)

	err = engine.CompileClass()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "y")
}

func TestCompileClass_UnexpectedTokenIsParseError(t *testing.T) {
	lex, err := lexer.New(strings.NewReader(`class X { function void m() { retrun; } }`))
	require.NoError(t, err)

	var buf bytes.Buffer
	vw := vmwriter.New(&buf)
	engine := compiler.New(lex, vw)

	err = engine.CompileClass()
	require.Error(t, err)
}

func TestCompileClass_Deterministic(t *testing.T) {
	source := `class X { function int m() { return 1+2*3; } }`
	a := compile(t, source)
	b := compile(t, source)
	assert.Equal(t, a, b)
}
