// Package vmwriter is the pure sink that writes the textual stack-VM
// language: one operation in, one line out, no buffering contract beyond
// flush-on-close.
package vmwriter

import (
	"bufio"
	"fmt"
	"io"
)

// Segment is one of the VM language's eight addressable register files.
type Segment string

const (
	Constant Segment = "constant"
	Argument Segment = "argument"
	Local    Segment = "local"
	Static   Segment = "static"
	This     Segment = "this"
	That     Segment = "that"
	Pointer  Segment = "pointer"
	Temp     Segment = "temp"
)

// Op is an arithmetic or logical opcode that stands alone on a line.
type Op string

const (
	Add Op = "add"
	Sub Op = "sub"
	Neg Op = "neg"
	Eq  Op = "eq"
	Gt  Op = "gt"
	Lt  Op = "lt"
	And Op = "and"
	Or  Op = "or"
	Not Op = "not"
)

// Writer emits one VM command per call, terminated by "\n".
type Writer struct {
	w *bufio.Writer
}

// New wraps w for line-oriented VM emission.
func New(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (vw *Writer) line(s string) {
	vw.w.WriteString(s)
	vw.w.WriteByte('\n')
}

// WritePush emits "push <segment> <index>".
func (vw *Writer) WritePush(seg Segment, index int) {
	vw.line(fmt.Sprintf("push %s %d", seg, index))
}

// WritePop emits "pop <segment> <index>".
func (vw *Writer) WritePop(seg Segment, index int) {
	vw.line(fmt.Sprintf("pop %s %d", seg, index))
}

// WriteArithmetic emits the bare opcode.
func (vw *Writer) WriteArithmetic(op Op) {
	vw.line(string(op))
}

// WriteLabel emits "label <name>".
func (vw *Writer) WriteLabel(name string) {
	vw.line("label " + name)
}

// WriteGoto emits "goto <name>".
func (vw *Writer) WriteGoto(name string) {
	vw.line("goto " + name)
}

// WriteIfGoto emits "if-goto <name>".
func (vw *Writer) WriteIfGoto(name string) {
	vw.line("if-goto " + name)
}

// WriteCall emits "call <name> <nArgs>".
func (vw *Writer) WriteCall(name string, nArgs int) {
	vw.line(fmt.Sprintf("call %s %d", name, nArgs))
}

// WriteFunction emits "function <name> <nLocals>".
func (vw *Writer) WriteFunction(name string, nLocals int) {
	vw.line(fmt.Sprintf("function %s %d", name, nLocals))
}

// WriteReturn emits "return".
func (vw *Writer) WriteReturn() {
	vw.line("return")
}

// Close flushes any buffered output. It does not close the underlying
// writer: ownership of the file handle belongs to the caller.
func (vw *Writer) Close() error {
	return vw.w.Flush()
}
