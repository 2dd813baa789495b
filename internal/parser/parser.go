// Package parser turns a token stream from internal/lexer into the
// []ast.Stmt program the asm package's bytecode builder consumes.
//
// Grounded on original_source/src/parser/mod.rs's recursive-descent shape
// (one statement per line, postfix `[base + offset]` addressing, a single
// level of unary minus/bitwise not, and flat left-to-right binary constant
// folding with no operator precedence) but written the way
// db47h/ngaro's asm/parser.go drives a text/scanner.Scanner directly
// rather than building a separate token slice first.
package parser

import (
	"io"
	"strconv"

	"github.com/ciathefed/nyx/ast"
	"github.com/ciathefed/nyx/internal/diag"
	"github.com/ciathefed/nyx/internal/lexer"
)

// Parser consumes tokens from a lexer.Lexer and interns identifiers and
// strings through a shared ast.Interner.
type Parser struct {
	lex      *lexer.Lexer
	filename string
	interner *ast.Interner
	tok      lexer.Token
	peeked   bool
}

// New builds a Parser reading filename's source from r.
// Interner may be shared across multiple files compiled into the same
// program so labels and strings get stable, non-colliding IDs.
func New(filename string, r io.Reader, interner *ast.Interner) *Parser {
	return &Parser{
		lex:      lexer.New(filename, r),
		filename: filename,
		interner: interner,
	}
}

func (p *Parser) next() lexer.Token {
	if p.peeked {
		p.peeked = false
		return p.tok
	}
	return p.lex.Next()
}

func (p *Parser) peek() lexer.Token {
	if !p.peeked {
		p.tok = p.lex.Next()
		p.peeked = true
	}
	return p.tok
}

func (p *Parser) span(t lexer.Token) diag.Span { return t.Span }

// Source returns the full buffered source text, for callers (such as the
// assembler) that need to build their own diagnostics against the same
// positions the parser used.
func (p *Parser) Source() string { return p.lex.Source() }

func (p *Parser) errf(t lexer.Token, format string, args ...interface{}) error {
	return diag.New(p.lex.Source(), p.span(t), format, args...)
}

// ParseProgram parses every statement in the input, skipping blank lines,
// until EOF.
func (p *Parser) ParseProgram() ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for {
		p.skipBlankLines()
		if p.peek().Kind == lexer.EOF {
			break
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		if err := p.expectEOL(); err != nil {
			return nil, err
		}
	}
	return stmts, nil
}

func (p *Parser) skipBlankLines() {
	for p.peek().Kind == lexer.Punct && p.peek().Text == "\n" {
		p.next()
	}
}

func (p *Parser) expectEOL() error {
	t := p.next()
	if t.Kind == lexer.EOF {
		return nil
	}
	if t.Kind == lexer.Punct && t.Text == "\n" {
		return nil
	}
	return p.errf(t, "expected end of line, got %q", t.Text)
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	t := p.next()
	if t.Kind != lexer.Ident {
		return nil, p.errf(t, "expected statement, got %q", t.Text)
	}

	// label definition: `name:`
	if p.peek().Kind == lexer.Punct && p.peek().Text == ":" {
		p.next()
		return ast.NewLabelStmt(p.interner.Intern(t.Text), t.Span), nil
	}

	switch t.Text {
	case ".text":
		return ast.NewSectionStmt(ast.TextSection, t.Span), nil
	case ".data":
		return ast.NewSectionStmt(ast.DataSection, t.Span), nil
	case ".section":
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		switch name.Text {
		case "text":
			return ast.NewSectionStmt(ast.TextSection, t.Span), nil
		case "data":
			return ast.NewSectionStmt(ast.DataSection, t.Span), nil
		default:
			return nil, p.errf(name, "expected \"text\" or \"data\", got %q", name.Text)
		}
	case ".entry":
		target, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return ast.NewEntryStmt(target, t.Span), nil
	case ".extern":
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.NewExternStmt(p.interner.Intern(name.Text), t.Span), nil
	case "db", "dw", "dd", "dq":
		return p.parseDataStmt(t)
	case "resb", "resw", "resd", "resq":
		return p.parseResStmt(t)
	case "ascii", "asciz":
		return p.parseAsciiStmt(t)
	case "#define":
		return p.parseDefineStmt(t)
	case "#include":
		return p.parseIncludeStmt(t)
	case "#ifdef":
		return p.parseIfDefStmt(t, ast.CondIfdef)
	case "#ifndef":
		return p.parseIfDefStmt(t, ast.CondIfndef)
	case "#else":
		return ast.NewElseStmt(t.Span), nil
	case "#endif":
		return ast.NewEndIfStmt(t.Span), nil
	case "#error":
		msg, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return ast.NewErrorStmt(msg, t.Span), nil
	}

	if op, err := ast.ParseOpcode(t.Text); err == nil {
		return p.parseInstrStmt(t, op)
	}

	return nil, p.errf(t, "unknown directive or mnemonic %q", t.Text)
}

func dataSizeFor(mnemonic string) ast.DataSize {
	switch mnemonic {
	case "db", "resb":
		return ast.Byte
	case "dw", "resw":
		return ast.Word
	case "dd", "resd":
		return ast.DWord
	default:
		return ast.QWord
	}
}

func (p *Parser) parseDataStmt(t lexer.Token) (ast.Stmt, error) {
	var values []ast.Expr
	for {
		v, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.peek().Kind == lexer.Punct && p.peek().Text == "," {
			p.next()
			continue
		}
		break
	}
	return ast.NewDataStmt(dataSizeFor(t.Text), values, t.Span), nil
}

func (p *Parser) parseResStmt(t lexer.Token) (ast.Stmt, error) {
	count, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return ast.NewResStmt(dataSizeFor(t.Text), count, t.Span), nil
}

func (p *Parser) parseAsciiStmt(t lexer.Token) (ast.Stmt, error) {
	s := p.next()
	if s.Kind != lexer.String {
		return nil, p.errf(s, "expected string literal, got %q", s.Text)
	}
	unquoted, err := strconv.Unquote(s.Text)
	if err != nil {
		return nil, p.errf(s, "invalid string literal: %s", err)
	}
	return ast.NewAsciiStmt(p.interner.Intern(unquoted), t.Text == "asciz", t.Span), nil
}

func (p *Parser) parseInstrStmt(t lexer.Token, op ast.Opcode) (ast.Stmt, error) {
	var operands []ast.Expr
	for {
		nt := p.peek()
		if nt.Kind == lexer.EOF || (nt.Kind == lexer.Punct && nt.Text == "\n") {
			break
		}
		v, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		operands = append(operands, v)
		if p.peek().Kind == lexer.Punct && p.peek().Text == "," {
			p.next()
			continue
		}
		break
	}
	return ast.NewInstrStmt(op, operands, t.Span), nil
}

// parseDefineStmt parses `#define NAME` (a bare presence marker, bound to
// an empty string literal) or `#define NAME VALUE`.
func (p *Parser) parseDefineStmt(t lexer.Token) (ast.Stmt, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	nt := p.peek()
	if nt.Kind == lexer.EOF || (nt.Kind == lexer.Punct && nt.Text == "\n") {
		empty := ast.NewStringLiteral(p.interner.Intern(""), t.Span)
		return ast.NewDefineStmt(p.interner.Intern(name.Text), empty, t.Span), nil
	}
	value, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return ast.NewDefineStmt(p.interner.Intern(name.Text), value, t.Span), nil
}

func (p *Parser) parseIncludeStmt(t lexer.Token) (ast.Stmt, error) {
	s := p.next()
	if s.Kind != lexer.String {
		return nil, p.errf(s, "expected string literal, got %q", s.Text)
	}
	unquoted, err := strconv.Unquote(s.Text)
	if err != nil {
		return nil, p.errf(s, "invalid string literal: %s", err)
	}
	return ast.NewIncludeStmt(p.interner.Intern(unquoted), t.Span), nil
}

func (p *Parser) parseIfDefStmt(t lexer.Token, kind ast.CondKind) (ast.Stmt, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return ast.NewIfDefStmt(p.interner.Intern(name.Text), kind, t.Span), nil
}

func (p *Parser) expectIdent() (lexer.Token, error) {
	t := p.next()
	if t.Kind != lexer.Ident {
		return t, p.errf(t, "expected identifier, got %q", t.Text)
	}
	return t, nil
}

// parseOperand parses a primary expression, then folds in any trailing
// binary operators (+ - * / & | ^) left to right with no precedence
// distinction between them, mirroring the preprocessor's own flat,
// single-operator-at-a-time constant folder. Only used at operand
// position (db/dw/dd/dq values, resb/resw/resd/resq counts, instruction
// operands); address base/offset parsing calls parseExpr directly so
// `[base + offset]`'s `+`/`-` keeps its own dedicated meaning.
func (p *Parser) parseOperand() (ast.Expr, error) {
	left, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.Kind != lexer.Punct {
			return left, nil
		}
		var op ast.BinaryOperator
		switch t.Text {
		case "+":
			op = ast.Add
		case "-":
			op = ast.Sub
		case "*":
			op = ast.Mul
		case "/":
			op = ast.Div
		case "&":
			op = ast.BitAnd
		case "|":
			op = ast.BitOr
		case "^":
			op = ast.BitXor
		default:
			return left, nil
		}
		opTok := p.next()
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(op, left, right, opTok.Span)
	}
}

// parseExpr parses one operand: an address `[base]`/`[base + offset]`, a
// register, a data-size keyword, a unary-prefixed or bare literal, or an
// identifier (label/constant reference).
func (p *Parser) parseExpr() (ast.Expr, error) {
	t := p.next()

	switch {
	case t.Kind == lexer.Punct && t.Text == "[":
		return p.parseAddress(t)
	case t.Kind == lexer.Punct && (t.Text == "-" || t.Text == "~"):
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		op := ast.Neg
		if t.Text == "~" {
			op = ast.BitNot
		}
		return ast.NewUnaryOp(op, operand, t.Span), nil
	case t.Kind == lexer.Int:
		n, err := strconv.ParseInt(t.Text, 0, 64)
		if err != nil {
			return nil, p.errf(t, "invalid integer literal %q: %s", t.Text, err)
		}
		return ast.NewIntegerLiteral(n, t.Span), nil
	case t.Kind == lexer.Float:
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, p.errf(t, "invalid float literal %q: %s", t.Text, err)
		}
		return ast.NewFloatLiteral(f, t.Span), nil
	case t.Kind == lexer.String:
		unquoted, err := strconv.Unquote(t.Text)
		if err != nil {
			return nil, p.errf(t, "invalid string literal: %s", err)
		}
		return ast.NewStringLiteral(p.interner.Intern(unquoted), t.Span), nil
	case t.Kind == lexer.Ident:
		if reg, err := ast.ParseRegister(t.Text); err == nil {
			return ast.NewRegisterExpr(reg, t.Span), nil
		}
		if size, err := ast.ParseDataSize(t.Text); err == nil {
			return ast.NewDataSizeExpr(size, t.Span), nil
		}
		return ast.NewIdentifier(p.interner.Intern(t.Text), t.Span), nil
	default:
		return nil, p.errf(t, "expected operand, got %q", t.Text)
	}
}

func (p *Parser) parseAddress(open lexer.Token) (ast.Expr, error) {
	base, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var offset ast.Expr
	if p.peek().Kind == lexer.Punct && (p.peek().Text == "+" || p.peek().Text == "-") {
		signTok := p.next()
		off, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if signTok.Text == "-" {
			off = ast.NewUnaryOp(ast.Neg, off, signTok.Span)
		}
		offset = off
	}
	close := p.next()
	if !(close.Kind == lexer.Punct && close.Text == "]") {
		return nil, p.errf(close, "expected ']', got %q", close.Text)
	}
	return ast.NewAddress(base, offset, open.Span), nil
}
