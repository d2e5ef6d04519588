// Package compiler is the recursive-descent CompilationEngine: it drives
// parsing and emits VM instructions directly while parsing, consuming
// tokens from the lexer and maintaining a per-class symbol table. There is
// no intermediate syntax tree.
package compiler

import (
	"fmt"

	"github.com/nand2vm/jackc/lexer"
	"github.com/nand2vm/jackc/symboltable"
	"github.com/nand2vm/jackc/token"
	"github.com/nand2vm/jackc/vmwriter"
)

// TokenSource is the pull interface the engine consumes tokens from.
type TokenSource interface {
	Advance() bool
	Token() lexer.Token
	Err() error
}

// Engine holds the label counter and current-class/current-subroutine
// context for one class's compilation. Construct a fresh Engine per class.
type Engine struct {
	src TokenSource
	cur token.Token

	syms *symboltable.Table
	out  *vmwriter.Writer

	className         string
	currentSubroutine string
	nextLabel         int
}

// New constructs an Engine reading from src and emitting to out.
func New(src TokenSource, out *vmwriter.Writer) *Engine {
	return &Engine{
		src:  src,
		syms: symboltable.New(),
		out:  out,
	}
}

// CompileClass is the engine's one public operation: it drives the whole
// translation of one class. Any parse, lookup, or lex fault aborts the
// translation and is returned as an error rather than propagated as a
// panic, so a batch driver can move on to the next file.
func (e *Engine) CompileClass() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if asErr, ok := r.(error); ok {
				err = asErr
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()

	e.advance()
	e.compileClass()
	return nil
}

func (e *Engine) advance() token.Token {
	if !e.src.Advance() {
		if lexErr := e.src.Err(); lexErr != nil {
			panic(lexErr)
		}
	}
	e.cur = e.src.Token()
	return e.cur
}

// consume checks the current token against each expected terminal in turn,
// advancing past it. With no arguments it unconditionally advances one
// token (used where the caller already validated the terminal via a
// lookahead switch).
func (e *Engine) consume(expected ...string) {
	if len(expected) == 0 {
		e.advance()
		return
	}
	for _, want := range expected {
		if !e.cur.Is(want) {
			panic(&ParseError{Line: e.cur.Line, Expected: fmt.Sprintf("%q", want), Actual: e.cur.String()})
		}
		e.advance()
	}
}

func (e *Engine) expectIdentifier() string {
	if e.cur.Kind != token.IdentifierTok {
		panic(&ParseError{Line: e.cur.Line, Expected: "identifier", Actual: e.cur.String()})
	}
	return e.cur.Literal
}

func (e *Engine) parseType() string {
	if e.cur.Kind == token.KeywordTok && (e.cur.Keyword == token.Int || e.cur.Keyword == token.Char || e.cur.Keyword == token.Boolean) {
		return e.cur.Literal
	}
	if e.cur.Kind == token.IdentifierTok {
		return e.cur.Literal
	}
	panic(&ParseError{Line: e.cur.Line, Expected: "type", Actual: e.cur.String()})
}

func (e *Engine) parseReturnType() string {
	if e.cur.Is("void") {
		return "void"
	}
	return e.parseType()
}

func (e *Engine) newLabel(prefix string) string {
	n := e.nextLabel
	e.nextLabel++
	return fmt.Sprintf("%s_%s_%d", e.className, prefix, n)
}

// class ::= 'class' IDENT '{' classVarDec* subroutine* '}'
func (e *Engine) compileClass() {
	e.consume("class")
	e.className = e.expectIdentifier()
	e.advance()
	e.consume("{")

	for e.tryCompileClassVarDec() {
	}
	for e.tryCompileSubroutineDec() {
	}

	e.consume("}")
	if e.cur.Kind != token.EOF {
		panic(&ParseError{Line: e.cur.Line, Expected: "end of class", Actual: e.cur.String()})
	}
}

// classVarDec ::= ('static'|'field') type IDENT (',' IDENT)* ';'
func (e *Engine) tryCompileClassVarDec() bool {
	switch {
	case e.cur.Is("static"):
		e.consume("static")
		e.compileVarSequence(symboltable.Static)
		return true
	case e.cur.Is("field"):
		e.consume("field")
		e.compileVarSequence(symboltable.Field)
		return true
	default:
		return false
	}
}

// compileVarSequence parses "type name (',' name)* ';'" and defines each
// name at kind in the symbol table, returning how many were declared.
func (e *Engine) compileVarSequence(kind symboltable.Kind) int {
	typ := e.parseType()
	e.advance()

	count := 0
	for {
		name := e.expectIdentifier()
		e.advance()
		e.syms.Define(name, typ, kind)
		count++

		if e.cur.Is(",") {
			e.consume(",")
			continue
		}
		break
	}
	e.consume(";")
	return count
}

// subroutine ::= ('constructor'|'function'|'method') ('void'|type) IDENT '(' params ')' subroutineBody
func (e *Engine) tryCompileSubroutineDec() bool {
	if !e.cur.Is("constructor") && !e.cur.Is("function") && !e.cur.Is("method") {
		return false
	}
	subroutineKind := e.cur.Literal

	e.syms.StartSubroutine()
	if subroutineKind == "method" {
		// Implicit argument 0 so user parameter indices stay correct.
		e.syms.Define("this", e.className, symboltable.Argument)
	}
	e.advance()

	returnType := e.parseReturnType()
	e.advance()

	name := e.expectIdentifier()
	e.advance()

	e.currentSubroutine = e.className + "." + name
	e.syms.DefineMethod(e.currentSubroutine, returnType)

	e.consume("(")
	if !e.cur.Is(")") {
		e.compileParameterList()
	}
	e.consume(")")

	e.compileSubroutineBody(name, subroutineKind)
	return true
}

// params ::= (type IDENT (',' type IDENT)*)?
func (e *Engine) compileParameterList() {
	for {
		typ := e.parseType()
		e.advance()
		name := e.expectIdentifier()
		e.advance()
		e.syms.Define(name, typ, symboltable.Argument)

		if e.cur.Is(",") {
			e.consume(",")
			continue
		}
		break
	}
}

func (e *Engine) compileSubroutineBody(name, subroutineKind string) {
	e.consume("{")

	nLocals := 0
	for e.cur.Is("var") {
		e.consume("var")
		nLocals += e.compileVarSequence(symboltable.Local)
	}

	e.out.WriteFunction(e.className+"."+name, nLocals)

	switch subroutineKind {
	case "constructor":
		nFields := e.syms.VarCount(symboltable.Field)
		e.out.WritePush(vmwriter.Constant, nFields)
		e.out.WriteCall("Memory.alloc", 1)
		e.out.WritePop(vmwriter.Pointer, 0)
	case "method":
		e.out.WritePush(vmwriter.Argument, 0)
		e.out.WritePop(vmwriter.Pointer, 0)
	}

	e.compileStatements()
	e.consume("}")
}

// statements ::= (let|if|while|do|return)*
func (e *Engine) compileStatements() {
	for {
		switch {
		case e.cur.Is("let"):
			e.compileLet()
		case e.cur.Is("if"):
			e.compileIf()
		case e.cur.Is("while"):
			e.compileWhile()
		case e.cur.Is("do"):
			e.compileDo()
		case e.cur.Is("return"):
			e.compileReturn()
		default:
			return
		}
	}
}

// let has two forms: "let name = expr;" and "let name[idx] = expr;". The
// array form follows the canonical idx-first, that-last sequence: the RHS
// must be evaluated before the destination address is committed to the
// that-pointer register, since the RHS may itself index an array and
// clobber that register.
func (e *Engine) compileLet() {
	e.consume("let")
	name := e.expectIdentifier()
	e.advance()

	if e.cur.Is("[") {
		e.consume("[")
		seg, idx := e.varSegment(name)
		e.out.WritePush(seg, idx)
		e.compileExpression()
		e.out.WriteArithmetic(vmwriter.Add)
		e.consume("]")

		e.consume("=")
		e.compileExpression()
		e.consume(";")

		e.out.WritePop(vmwriter.Temp, 0)
		e.out.WritePop(vmwriter.Pointer, 1)
		e.out.WritePush(vmwriter.Temp, 0)
		e.out.WritePop(vmwriter.That, 0)
		return
	}

	e.consume("=")
	e.compileExpression()
	e.consume(";")

	seg, idx := e.varSegment(name)
	e.out.WritePop(seg, idx)
}

func (e *Engine) compileIf() {
	e.consume("if")
	elseLabel := e.newLabel("IF_ELSE")
	endLabel := e.newLabel("IF_END")

	e.consume("(")
	e.compileExpression()
	e.consume(")")

	e.out.WriteArithmetic(vmwriter.Not)
	e.out.WriteIfGoto(elseLabel)

	e.consume("{")
	e.compileStatements()
	e.consume("}")

	e.out.WriteGoto(endLabel)
	e.out.WriteLabel(elseLabel)

	if e.cur.Is("else") {
		e.consume("else")
		e.consume("{")
		e.compileStatements()
		e.consume("}")
	}

	e.out.WriteLabel(endLabel)
}

func (e *Engine) compileWhile() {
	e.consume("while")
	startLabel := e.newLabel("WHILE_START")
	endLabel := e.newLabel("WHILE_END")

	e.out.WriteLabel(startLabel)

	e.consume("(")
	e.compileExpression()
	e.consume(")")

	e.out.WriteArithmetic(vmwriter.Not)
	e.out.WriteIfGoto(endLabel)

	e.consume("{")
	e.compileStatements()
	e.consume("}")

	e.out.WriteGoto(startLabel)
	e.out.WriteLabel(endLabel)
}

func (e *Engine) compileDo() {
	e.consume("do")
	e.compileSubroutineCall("")
	e.out.WritePop(vmwriter.Temp, 0)
	e.consume(";")
}

func (e *Engine) compileReturn() {
	e.consume("return")
	if e.cur.Is(";") {
		e.out.WritePush(vmwriter.Constant, 0)
	} else {
		e.compileExpression()
	}
	e.out.WriteReturn()
	e.consume(";")
}

// expr ::= term (op term)*, strict left-to-right with no precedence: each
// binary operator is emitted only after both its operand terms have been
// compiled.
func (e *Engine) compileExpression() {
	e.compileTerm()
	for isBinaryOp(e.cur) {
		op := e.cur
		e.advance()
		e.compileTerm()
		e.emitBinaryOp(op)
	}
}

func isBinaryOp(t token.Token) bool {
	if t.Kind != token.SymbolTok {
		return false
	}
	switch t.Literal {
	case "+", "-", "*", "/", "&", "|", "<", ">", "=", "<=", ">=":
		return true
	}
	return false
}

func (e *Engine) emitBinaryOp(t token.Token) {
	switch t.Literal {
	case "+":
		e.out.WriteArithmetic(vmwriter.Add)
	case "-":
		e.out.WriteArithmetic(vmwriter.Sub)
	case "*":
		e.out.WriteCall("Math.multiply", 2)
	case "/":
		e.out.WriteCall("Math.divide", 2)
	case "&":
		e.out.WriteArithmetic(vmwriter.And)
	case "|":
		e.out.WriteArithmetic(vmwriter.Or)
	case "<":
		e.out.WriteArithmetic(vmwriter.Lt)
	case ">":
		e.out.WriteArithmetic(vmwriter.Gt)
	case "=":
		e.out.WriteArithmetic(vmwriter.Eq)
	case "<=":
		e.out.WriteArithmetic(vmwriter.Gt)
		e.out.WriteArithmetic(vmwriter.Not)
	case ">=":
		e.out.WriteArithmetic(vmwriter.Lt)
		e.out.WriteArithmetic(vmwriter.Not)
	}
}

func isUnaryOp(t token.Token) bool {
	return t.Kind == token.SymbolTok && (t.Literal == "-" || t.Literal == "~")
}

func (e *Engine) emitUnaryOp(t token.Token) {
	switch t.Literal {
	case "-":
		e.out.WriteArithmetic(vmwriter.Neg)
	case "~":
		e.out.WriteArithmetic(vmwriter.Not)
	}
}

// expressionList ::= (expr (',' expr)*)?
func (e *Engine) compileExpressionList() int {
	if e.cur.Is(")") {
		return 0
	}
	n := 1
	e.compileExpression()
	for e.cur.Is(",") {
		e.consume(",")
		e.compileExpression()
		n++
	}
	return n
}

// compileSubroutineCall handles both call forms. name is the already-read
// leading identifier when the caller has one (a term beginning with a bare
// identifier); pass "" to have it read its own.
func (e *Engine) compileSubroutineCall(name string) {
	if name == "" {
		name = e.expectIdentifier()
		e.advance()
	}

	switch {
	case e.cur.Is("."):
		e.consume(".")
		methodName := e.expectIdentifier()
		e.advance()

		var qualified string
		nargs := 0
		if entry, err := e.syms.Lookup(name); err == nil {
			nargs = 1
			e.out.WritePush(segmentFor(entry.Kind), entry.Index)
			qualified = entry.Type + "." + methodName
		} else {
			qualified = name + "." + methodName
		}

		e.consume("(")
		nargs += e.compileExpressionList()
		e.consume(")")

		e.out.WriteCall(qualified, nargs)
	case e.cur.Is("("):
		e.out.WritePush(vmwriter.Pointer, 0)
		e.consume("(")
		nargs := 1 + e.compileExpressionList()
		e.consume(")")
		e.out.WriteCall(e.className+"."+name, nargs)
	default:
		panic(&ParseError{Line: e.cur.Line, Expected: "\"(\" or \".\"", Actual: e.cur.String()})
	}
}

func segmentFor(kind symboltable.Kind) vmwriter.Segment {
	switch kind {
	case symboltable.Static:
		return vmwriter.Static
	case symboltable.Field:
		return vmwriter.This
	case symboltable.Argument:
		return vmwriter.Argument
	case symboltable.Local:
		return vmwriter.Local
	default:
		panic(fmt.Sprintf("unresolvable symbol kind %v", kind))
	}
}

func (e *Engine) varSegment(name string) (vmwriter.Segment, int) {
	entry, err := e.syms.Lookup(name)
	if err != nil {
		panic(err)
	}
	return segmentFor(entry.Kind), entry.Index
}

// term ::= intConst | stringConst | keywordConst | varName | varName '[' expr ']' |
//          subroutineCall | '(' expr ')' | unaryOp term
func (e *Engine) compileTerm() {
	switch {
	case e.cur.Kind == token.IntConstTok:
		e.out.WritePush(vmwriter.Constant, int(e.cur.IntValue))
		e.advance()
	case e.cur.Kind == token.StringConstTok:
		e.compileStringConstant(e.cur.Str)
		e.advance()
	case e.cur.Kind == token.KeywordTok:
		e.compileKeywordConstant()
	case e.cur.Is("("):
		e.consume("(")
		e.compileExpression()
		e.consume(")")
	case isUnaryOp(e.cur):
		op := e.cur
		e.advance()
		e.compileTerm()
		e.emitUnaryOp(op)
	case e.cur.Kind == token.IdentifierTok:
		e.compileIdentifierTerm()
	default:
		panic(&ParseError{Line: e.cur.Line, Expected: "term", Actual: e.cur.String()})
	}
}

func (e *Engine) compileKeywordConstant() {
	switch e.cur.Keyword {
	case token.True:
		e.out.WritePush(vmwriter.Constant, 1)
		e.out.WriteArithmetic(vmwriter.Neg)
	case token.False, token.Null:
		e.out.WritePush(vmwriter.Constant, 0)
	case token.This:
		e.out.WritePush(vmwriter.Pointer, 0)
	default:
		panic(&ParseError{Line: e.cur.Line, Expected: "keyword constant", Actual: e.cur.String()})
	}
	e.advance()
}

// compileStringConstant allocates the string at runtime and appends each
// character in turn; String.appendChar returns its receiver so the object
// stays on top of stack between appends without any scratch register.
func (e *Engine) compileStringConstant(s string) {
	e.out.WritePush(vmwriter.Constant, len(s))
	e.out.WriteCall("String.new", 1)
	for _, c := range s {
		e.out.WritePush(vmwriter.Constant, int(c))
		e.out.WriteCall("String.appendChar", 2)
	}
}

func (e *Engine) compileIdentifierTerm() {
	name := e.cur.Literal
	e.advance()

	switch {
	case e.cur.Is("["):
		e.consume("[")
		seg, idx := e.varSegment(name)
		e.out.WritePush(seg, idx)
		e.compileExpression()
		e.out.WriteArithmetic(vmwriter.Add)
		e.consume("]")

		e.out.WritePop(vmwriter.Pointer, 1)
		e.out.WritePush(vmwriter.That, 0)
	case e.cur.Is("(") || e.cur.Is("."):
		e.compileSubroutineCall(name)
	default:
		seg, idx := e.varSegment(name)
		e.out.WritePush(seg, idx)
	}
}
