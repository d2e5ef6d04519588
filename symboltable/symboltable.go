// Package symboltable implements the per-class symbol table: a class-scope
// table (static/field) that persists for the whole class, a subroutine-scope
// table (argument/local) cleared at each subroutine, and a flat registry of
// subroutine return types. The compiler fills the registry but does not
// consult it: a do-statement always discards the call's value.
package symboltable

import "fmt"

// Kind classifies a declared name.
type Kind int

const (
	None Kind = iota
	Static
	Field
	Argument
	Local
)

// Entry is one symbol table record: its declared type, kind, and the
// zero-based index within its kind's segment.
type Entry struct {
	Type  string
	Kind  Kind
	Index int
}

// LookupError reports use of an undefined name where a symbol is required.
type LookupError struct {
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("undefined symbol %q", e.Name)
}

const unknownReturnType = "unknown"

// Table is the two-scope symbol table for one class.
type Table struct {
	class      map[string]Entry
	subroutine map[string]Entry

	classCounts      map[Kind]int
	subroutineCounts map[Kind]int

	methodReturnTypes map[string]string
}

// New returns an empty table, ready for one class's compilation.
func New() *Table {
	return &Table{
		class:             make(map[string]Entry),
		subroutine:        make(map[string]Entry),
		classCounts:       make(map[Kind]int),
		subroutineCounts:  make(map[Kind]int),
		methodReturnTypes: make(map[string]string),
	}
}

// StartSubroutine clears the subroutine scope and resets its counters. Class
// scope and the method-return-type registry are untouched.
func (t *Table) StartSubroutine() {
	t.subroutine = make(map[string]Entry)
	t.subroutineCounts = make(map[Kind]int)
}

// Define inserts name into the scope implied by kind (class scope for
// Static/Field, subroutine scope for Argument/Local) at the next available
// index for that kind. Redefining a name already present in that scope
// overwrites the prior entry, matching observed source behavior.
func (t *Table) Define(name, typ string, kind Kind) Entry {
	counts := t.countsFor(kind)
	index := counts[kind]
	counts[kind] = index + 1

	entry := Entry{Type: typ, Kind: kind, Index: index}
	t.scopeFor(kind)[name] = entry
	return entry
}

func (t *Table) countsFor(kind Kind) map[Kind]int {
	if kind == Static || kind == Field {
		return t.classCounts
	}
	return t.subroutineCounts
}

func (t *Table) scopeFor(kind Kind) map[string]Entry {
	if kind == Static || kind == Field {
		return t.class
	}
	return t.subroutine
}

// VarCount returns the number of Define calls for kind in the scope that
// owns that kind (class scope for Static/Field, current subroutine for
// Argument/Local). A same-name redefinition counts again.
func (t *Table) VarCount(kind Kind) int {
	return t.countsFor(kind)[kind]
}

func (t *Table) lookup(name string) (Entry, bool) {
	if e, ok := t.subroutine[name]; ok {
		return e, true
	}
	if e, ok := t.class[name]; ok {
		return e, true
	}
	return Entry{}, false
}

// KindOf returns the kind of name, or None if it is not defined in either
// scope. Unlike TypeOf/IndexOf it never errors: an undefined name simply has
// kind None.
func (t *Table) KindOf(name string) Kind {
	e, ok := t.lookup(name)
	if !ok {
		return None
	}
	return e.Kind
}

// TypeOf returns the declared type of name.
func (t *Table) TypeOf(name string) (string, error) {
	e, ok := t.lookup(name)
	if !ok {
		return "", &LookupError{Name: name}
	}
	return e.Type, nil
}

// IndexOf returns the segment index of name.
func (t *Table) IndexOf(name string) (int, error) {
	e, ok := t.lookup(name)
	if !ok {
		return 0, &LookupError{Name: name}
	}
	return e.Index, nil
}

// Lookup returns the full entry for name in one call, for callers (the
// compiler) that need type, kind and index together.
func (t *Table) Lookup(name string) (Entry, error) {
	e, ok := t.lookup(name)
	if !ok {
		return Entry{}, &LookupError{Name: name}
	}
	return e, nil
}

// DefineMethod records the declared return type of a qualified subroutine
// name ("ClassName.subroutineName") for the current class.
func (t *Table) DefineMethod(qualifiedName, returnType string) {
	t.methodReturnTypes[qualifiedName] = returnType
}

// ReturnTypeOf returns the recorded return type of a qualified subroutine
// name, or the sentinel "unknown" if it was never declared in this class.
func (t *Table) ReturnTypeOf(qualifiedName string) string {
	if rt, ok := t.methodReturnTypes[qualifiedName]; ok {
		return rt
	}
	return unknownReturnType
}
