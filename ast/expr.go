package ast

import "github.com/ciathefed/nyx/internal/diag"

// Interner assigns stable integer IDs to interned strings (identifiers and
// string literals), per spec.md §3 ("Identifiers and strings are interned
// to stable integer IDs"). The zero value is ready to use.
type Interner struct {
	ids     map[string]int
	strings []string
}

// Intern returns the stable ID for s, allocating one on first use.
func (in *Interner) Intern(s string) int {
	if in.ids == nil {
		in.ids = make(map[string]int)
	}
	if id, ok := in.ids[s]; ok {
		return id
	}
	id := len(in.strings)
	in.ids[s] = id
	in.strings = append(in.strings, s)
	return id
}

// Lookup returns the string behind an interned ID.
func (in *Interner) Lookup(id int) string {
	if id < 0 || id >= len(in.strings) {
		return ""
	}
	return in.strings[id]
}

// BinaryOperator is one of the seven binary operators the preprocessor's
// constant folder and the assembler's expression evaluator understand.
type BinaryOperator uint8

const (
	Add BinaryOperator = iota
	Sub
	Mul
	Div
	BitOr
	BitAnd
	BitXor
)

func (op BinaryOperator) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case BitOr:
		return "|"
	case BitAnd:
		return "&"
	case BitXor:
		return "^"
	default:
		return "?"
	}
}

// UnaryOperator negates or complements a single operand expression.
type UnaryOperator uint8

const (
	Neg UnaryOperator = iota
	BitNot
)

func (op UnaryOperator) String() string {
	if op == BitNot {
		return "~"
	}
	return "-"
}

// Expr is a node in an operand's expression tree. Each concrete type
// carries a Span for diagnostics. Grounded on original_source's
// parser::ast::Expression, expressed in Go as an interface + concrete
// types (as go/ast does) rather than a single tagged struct, since Nyx's
// AST is owned by value (no arena needed: expression trees are shallow
// and never cyclic per spec.md §9).
type Expr interface {
	exprNode()
	Span() diag.Span
}

type base struct{ span diag.Span }

func (b base) Span() diag.Span { return b.span }

// Identifier is an interned name: a label, a #define'd symbol, an .extern
// name, or (until substitution) a preprocessor macro use.
type Identifier struct {
	base
	ID int
}

func (Identifier) exprNode() {}

// NewIdentifier builds an Identifier expression.
func NewIdentifier(id int, span diag.Span) Identifier { return Identifier{base{span}, id} }

// RegisterExpr names one of the 99 registers.
type RegisterExpr struct {
	base
	Reg Register
}

func (RegisterExpr) exprNode() {}

func NewRegisterExpr(r Register, span diag.Span) RegisterExpr { return RegisterExpr{base{span}, r} }

// IntegerLiteral is a signed 64-bit integer constant.
type IntegerLiteral struct {
	base
	Value int64
}

func (IntegerLiteral) exprNode() {}

func NewIntegerLiteral(v int64, span diag.Span) IntegerLiteral {
	return IntegerLiteral{base{span}, v}
}

// FloatLiteral is a 64-bit floating point constant.
type FloatLiteral struct {
	base
	Value float64
}

func (FloatLiteral) exprNode() {}

func NewFloatLiteral(v float64, span diag.Span) FloatLiteral { return FloatLiteral{base{span}, v} }

// StringLiteral is an interned string constant (already escape-processed).
type StringLiteral struct {
	base
	ID int
}

func (StringLiteral) exprNode() {}

func NewStringLiteral(id int, span diag.Span) StringLiteral { return StringLiteral{base{span}, id} }

// DataSizeExpr names one of the six data-size keywords, used as the
// explicit size operand of push/pop/sti.
type DataSizeExpr struct {
	base
	Size DataSize
}

func (DataSizeExpr) exprNode() {}

func NewDataSizeExpr(sz DataSize, span diag.Span) DataSizeExpr {
	return DataSizeExpr{base{span}, sz}
}

// Address is `[base]` or `[base + offset]`: a memory operand. Base is
// typically a RegisterExpr (register-relative) or an IntegerLiteral /
// Identifier (absolute/label-relative); Offset is nil when omitted.
type Address struct {
	base
	Base   Expr
	Offset Expr // nil if omitted
}

func (Address) exprNode() {}

func NewAddress(bexpr Expr, offset Expr, span diag.Span) Address {
	return Address{base{span}, bexpr, offset}
}

// UnaryOp applies a unary operator to a single operand.
type UnaryOp struct {
	base
	Op      UnaryOperator
	Operand Expr
}

func (UnaryOp) exprNode() {}

func NewUnaryOp(op UnaryOperator, operand Expr, span diag.Span) UnaryOp {
	return UnaryOp{base{span}, op, operand}
}

// BinaryOp applies a binary operator to two operands.
type BinaryOp struct {
	base
	Op          BinaryOperator
	Left, Right Expr
}

func (BinaryOp) exprNode() {}

func NewBinaryOp(op BinaryOperator, left, right Expr, span diag.Span) BinaryOp {
	return BinaryOp{base{span}, op, left, right}
}
