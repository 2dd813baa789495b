package ast

import (
	"github.com/ciathefed/nyx/internal/diag"
	"github.com/pkg/errors"
)

// SectionKind selects one of the two sections a bytecode image is built
// from: Text (executable code) or Data (static initialized bytes).
type SectionKind uint8

const (
	TextSection SectionKind = iota
	DataSection
)

func (k SectionKind) String() string {
	if k == DataSection {
		return "data"
	}
	return "text"
}

// Stmt is a single line of assembly after preprocessing: a directive, a
// label definition, or an instruction with its operand expressions. Every
// alternative carries the source Span it was parsed from, so the
// assembler's diagnostics point back at the original line. Grounded on
// original_source's parser::ast::Statement, expressed as an interface with
// one concrete type per variant rather than a tagged struct, matching the
// Expr split above.
type Stmt interface {
	stmtNode()
	Span() diag.Span
}

// LabelStmt defines a label at the current position: `name:`.
type LabelStmt struct {
	base
	Name int // interned identifier
}

func (LabelStmt) stmtNode() {}

func NewLabelStmt(name int, span diag.Span) LabelStmt { return LabelStmt{base{span}, name} }

// SectionStmt switches the active section: `.text` / `.data`.
type SectionStmt struct {
	base
	Kind SectionKind
}

func (SectionStmt) stmtNode() {}

func NewSectionStmt(kind SectionKind, span diag.Span) SectionStmt {
	return SectionStmt{base{span}, kind}
}

// EntryStmt marks where the VM should begin execution: `.entry EXPR`. Target
// is an IntegerLiteral for an absolute address or an Identifier for a label
// resolved at link time; later `.entry` statements override earlier ones.
type EntryStmt struct {
	base
	Target Expr
}

func (EntryStmt) stmtNode() {}

func NewEntryStmt(target Expr, span diag.Span) EntryStmt { return EntryStmt{base{span}, target} }

// ExternStmt declares a native extension symbol usable by call_ex: `.extern name`.
type ExternStmt struct {
	base
	Name int
}

func (ExternStmt) stmtNode() {}

func NewExternStmt(name int, span diag.Span) ExternStmt { return ExternStmt{base{span}, name} }

// DefineStmt binds an identifier to a value expression: `#define NAME VALUE`.
// A bare `#define NAME` with no trailing expression binds Value to an empty
// string literal, a presence marker for `#ifdef`.
type DefineStmt struct {
	base
	Name  int
	Value Expr
}

func (DefineStmt) stmtNode() {}

func NewDefineStmt(name int, value Expr, span diag.Span) DefineStmt {
	return DefineStmt{base{span}, name, value}
}

// IncludeStmt splices another file's statements in place: `#include "path"`.
type IncludeStmt struct {
	base
	Path int // interned string id
}

func (IncludeStmt) stmtNode() {}

func NewIncludeStmt(path int, span diag.Span) IncludeStmt { return IncludeStmt{base{span}, path} }

// CondKind distinguishes `#ifdef` from `#ifndef` so a later `#else` inverts
// the right test.
type CondKind uint8

const (
	CondIfdef CondKind = iota
	CondIfndef
)

// IfDefStmt opens a conditional block: `#ifdef NAME` / `#ifndef NAME`.
type IfDefStmt struct {
	base
	Name int
	Kind CondKind
}

func (IfDefStmt) stmtNode() {}

func NewIfDefStmt(name int, kind CondKind, span diag.Span) IfDefStmt {
	return IfDefStmt{base{span}, name, kind}
}

// ElseStmt inverts the enclosing conditional block: `#else`.
type ElseStmt struct{ base }

func (ElseStmt) stmtNode() {}

func NewElseStmt(span diag.Span) ElseStmt { return ElseStmt{base{span}} }

// EndIfStmt closes the innermost conditional block: `#endif`.
type EndIfStmt struct{ base }

func (EndIfStmt) stmtNode() {}

func NewEndIfStmt(span diag.Span) EndIfStmt { return EndIfStmt{base{span}} }

// ErrorStmt unconditionally fails preprocessing with a message: `#error EXPR`.
type ErrorStmt struct {
	base
	Message Expr
}

func (ErrorStmt) stmtNode() {}

func NewErrorStmt(message Expr, span diag.Span) ErrorStmt { return ErrorStmt{base{span}, message} }

// DataStmt emits one or more immediates of a fixed width into the current
// section: `db`, `dw`, `dd`, `dq` (also used, tagged Float/Double, for
// float/double literal data).
type DataStmt struct {
	base
	Size   DataSize
	Values []Expr
}

func (DataStmt) stmtNode() {}

func NewDataStmt(size DataSize, values []Expr, span diag.Span) DataStmt {
	return DataStmt{base{span}, size, values}
}

// AsciiStmt emits a string literal's bytes, optionally NUL-terminated
// (`ascii` vs `asciz`), into the current section.
type AsciiStmt struct {
	base
	String        int // interned string id
	NullTerminate bool
}

func (AsciiStmt) stmtNode() {}

func NewAsciiStmt(s int, nullTerminate bool, span diag.Span) AsciiStmt {
	return AsciiStmt{base{span}, s, nullTerminate}
}

// ResStmt reserves n uninitialized units of the given size (`resb`, `resw`, ...).
type ResStmt struct {
	base
	Size  DataSize
	Count Expr
}

func (ResStmt) stmtNode() {}

func NewResStmt(size DataSize, count Expr, span diag.Span) ResStmt {
	return ResStmt{base{span}, size, count}
}

// Opcode identifies the mnemonic of an InstrStmt as written in source. One
// source mnemonic may resolve to several concrete WireOp encodings
// depending on its operands' shapes (see asm.resolveWireOp); Opcode ordinal
// values are therefore internal bookkeeping only and carry no wire meaning.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpMov
	OpLdr
	OpStr
	OpSti
	OpPush
	OpPop
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpCmp
	OpJmp
	OpJeq
	OpJne
	OpJlt
	OpJgt
	OpJle
	OpJge
	OpCall
	OpRet
	OpInc
	OpDec
	OpNeg
	OpSyscall
	OpCallEx
	OpLoadExternal
	OpHlt
)

var opcodeNames = [...]string{
	"nop", "mov", "ldr", "str", "sti", "push", "pop",
	"add", "sub", "mul", "div", "and", "or", "xor", "shl", "shr",
	"cmp", "jmp", "jeq", "jne", "jlt", "jgt", "jle", "jge",
	"call", "ret", "inc", "dec", "neg", "syscall", "call_ex", "load_external", "hlt",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "invalid"
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for i, n := range opcodeNames {
		m[n] = Opcode(i)
	}
	return m
}()

// ParseOpcode resolves a mnemonic such as "mov" or "call_ex" to its Opcode.
func ParseOpcode(s string) (Opcode, error) {
	if op, ok := opcodeByName[s]; ok {
		return op, nil
	}
	return 0, errors.Errorf("unknown mnemonic %q", s)
}

// InstrStmt is a single decoded instruction with its operand expressions,
// in source (not yet encoded) form.
type InstrStmt struct {
	base
	Op       Opcode
	Operands []Expr
}

func (InstrStmt) stmtNode() {}

func NewInstrStmt(op Opcode, operands []Expr, span diag.Span) InstrStmt {
	return InstrStmt{base{span}, op, operands}
}
