// Package preprocessor expands #define/#include/#ifdef-style directives
// over an already-parsed Nyx assembly statement list, the last stage before
// the assembler sees it.
//
// Grounded on original_source/src/preprocessor/mod.rs's Preprocessor::process,
// which operates on a parsed Vec<Statement> in three passes: definitions and
// includes are collected first (unconditionally, regardless of any enclosing
// #ifdef/#ifndef nesting), conditional blocks are then pruned against the
// resulting definition table, and finally every remaining statement's
// expression trees are substituted and constant-folded. Translated from
// Rust's Result<Vec<Statement>, Error>-returning recursive function into a
// Go Preprocessor value that accumulates state (defines, visited include
// paths, per-file source text for diagnostics) across a single Process
// call, the way db47h/ngaro's asm parser accumulates label/const state
// across Parse.
package preprocessor

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ciathefed/nyx/ast"
	"github.com/ciathefed/nyx/internal/diag"
	"github.com/ciathefed/nyx/internal/parser"
	"github.com/pkg/errors"
)

// condFrame tracks one open #ifdef/#ifndef block while pruneConditionals
// walks a statement list.
type condFrame struct {
	included bool // whether the body between here and #else/#endif is active
	seenElse bool
	kind     ast.CondKind
}

// Preprocessor expands directives over one or more parsed statement lists,
// keeping #define bindings and predefined platform identifiers alive across
// every file it touches.
type Preprocessor struct {
	interner *ast.Interner
	defines  map[int]ast.Expr // interned name id -> bound expression
	visited  map[string]bool  // absolute paths seen anywhere in this Process call; never shrinks
	srcs     map[string]string

	// IncludeDirs is searched, in order, for #include "..." targets not
	// found relative to the including file.
	IncludeDirs []string
}

// New builds a Preprocessor sharing interner with the parser that produced
// the statements it will process, with the platform-predefined identifiers
// set per runtime.GOARCH/runtime.GOOS, each bound to an empty string
// literal (a presence marker, per spec: predefined definitions carry no
// value, only existence for #ifdef).
func New(interner *ast.Interner) *Preprocessor {
	p := &Preprocessor{
		interner: interner,
		defines:  make(map[int]ast.Expr),
		visited:  make(map[string]bool),
		srcs:     make(map[string]string),
	}
	p.definePlatform()
	return p
}

func (p *Preprocessor) definePlatform() {
	archMacros := map[string]string{
		"amd64": "__X86_64__",
		"arm64": "__AARCH64__",
		"386":   "__X86__",
		"arm":   "__ARM__",
	}
	if m, ok := archMacros[runtime.GOARCH]; ok {
		p.defineEmpty(m)
	}
	osMacros := map[string]string{
		"linux":   "__LINUX__",
		"darwin":  "__MACOS__",
		"windows": "__WINDOWS__",
	}
	if m, ok := osMacros[runtime.GOOS]; ok {
		p.defineEmpty(m)
	}
}

func (p *Preprocessor) defineEmpty(name string) {
	p.defines[p.interner.Intern(name)] = ast.NewStringLiteral(p.interner.Intern(""), diag.Span{})
}

// Define binds name to value as though by a `#define name value` line
// appearing before the processed source, for embedders that want to seed
// definitions without writing a literal #define statement.
func (p *Preprocessor) Define(name string, value ast.Expr) {
	p.defines[p.interner.Intern(name)] = value
}

// ProcessFile parses and preprocesses the named file's statements, resolving
// its own #include directives relative to its directory.
func (p *Preprocessor) ProcessFile(path string) ([]ast.Stmt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "preprocess %s", path)
	}
	defer f.Close()
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}
	return p.processReader(abs, f)
}

// Process preprocesses stmts, an already-parsed statement list for one
// file. name identifies the file for #include resolution, cycle detection
// and diagnostics; src is that file's full source text, used to resolve
// line/column positions in error messages.
func (p *Preprocessor) Process(name, src string, stmts []ast.Stmt) ([]ast.Stmt, error) {
	return p.processStmts(name, src, stmts)
}

func (p *Preprocessor) processReader(path string, r io.Reader) ([]ast.Stmt, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read failed", path)
	}
	src := string(data)
	ps := parser.New(path, strings.NewReader(src), p.interner)
	stmts, err := ps.ParseProgram()
	if err != nil {
		return nil, err
	}
	return p.processStmts(path, src, stmts)
}

// processStmts runs the three-phase pipeline over one file's statements.
// visited is checked and set here, and is never cleared: re-entering an
// already-fully-processed path anywhere in the same top-level Process/
// ProcessFile call is a fatal circular include, matching
// original_source's included_files set, which only ever grows via extend.
func (p *Preprocessor) processStmts(path, src string, stmts []ast.Stmt) ([]ast.Stmt, error) {
	if p.visited[path] {
		return nil, errors.Errorf("include cycle detected at %s", path)
	}
	p.visited[path] = true
	p.srcs[path] = src

	collected, err := p.collectDefinesAndIncludes(path, stmts)
	if err != nil {
		return nil, err
	}
	pruned, err := p.pruneConditionals(path, collected)
	if err != nil {
		return nil, err
	}
	return p.substituteAll(path, pruned)
}

func (p *Preprocessor) errf(path string, span diag.Span, format string, args ...interface{}) error {
	return diag.New(p.srcs[path], span, format, args...)
}

// collectDefinesAndIncludes runs the first pass: #define and #include are
// consumed unconditionally, regardless of any enclosing #ifdef/#ifndef
// nesting (matching original_source's Preprocessor::process, whose first
// loop over self.program has no active-conditional check at all); every
// other statement, including the conditional directives themselves, passes
// through for pruneConditionals to act on.
func (p *Preprocessor) collectDefinesAndIncludes(path string, stmts []ast.Stmt) ([]ast.Stmt, error) {
	var out []ast.Stmt
	for _, s := range stmts {
		switch st := s.(type) {
		case ast.DefineStmt:
			p.defines[st.Name] = st.Value
		case ast.IncludeStmt:
			spliced, err := p.processInclude(path, st)
			if err != nil {
				return nil, err
			}
			out = append(out, spliced...)
		default:
			out = append(out, s)
		}
	}
	return out, nil
}

func (p *Preprocessor) processInclude(fromPath string, st ast.IncludeStmt) ([]ast.Stmt, error) {
	target := p.interner.Lookup(st.Path)
	resolved, err := p.resolveInclude(fromPath, target)
	if err != nil {
		return nil, p.errf(fromPath, st.Span(), "#include %q: %s", target, err)
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, p.errf(fromPath, st.Span(), "#include %q: %s", target, err)
	}
	defer f.Close()
	return p.processReader(resolved, f)
}

func (p *Preprocessor) resolveInclude(fromPath, target string) (string, error) {
	if filepath.IsAbs(target) {
		return target, nil
	}
	candidate := filepath.Join(filepath.Dir(fromPath), target)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	for _, dir := range p.IncludeDirs {
		candidate = filepath.Join(dir, target)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.Errorf("include target %q not found", target)
}

// pruneConditionals runs the second pass: #ifdef/#ifndef push a frame,
// #else inverts the innermost frame's result, #endif pops it, and every
// other statement is kept only if all enclosing frames are active.
func (p *Preprocessor) pruneConditionals(path string, stmts []ast.Stmt) ([]ast.Stmt, error) {
	var out []ast.Stmt
	var stack []condFrame
	for _, s := range stmts {
		switch st := s.(type) {
		case ast.IfDefStmt:
			_, defined := p.defines[st.Name]
			included := defined
			if st.Kind == ast.CondIfndef {
				included = !defined
			}
			stack = append(stack, condFrame{included: included, kind: st.Kind})
		case ast.ElseStmt:
			if len(stack) == 0 {
				return nil, p.errf(path, st.Span(), "#else without matching #ifdef/#ifndef")
			}
			top := &stack[len(stack)-1]
			if top.seenElse {
				return nil, p.errf(path, st.Span(), "duplicate #else")
			}
			top.seenElse = true
			top.included = !top.included
		case ast.EndIfStmt:
			if len(stack) == 0 {
				return nil, p.errf(path, st.Span(), "#endif without matching #ifdef/#ifndef")
			}
			stack = stack[:len(stack)-1]
		default:
			if conditionalActive(stack) {
				out = append(out, s)
			}
		}
	}
	if len(stack) != 0 {
		return nil, errors.Errorf("%s: unterminated #ifdef/#ifndef (missing #endif)", path)
	}
	return out, nil
}

func conditionalActive(stack []condFrame) bool {
	for _, f := range stack {
		if !f.included {
			return false
		}
	}
	return true
}

// substituteAll runs the third pass: every remaining statement's expression
// fields are walked through substituteExpr and rebuilt; #error fires as
// soon as it's reached.
func (p *Preprocessor) substituteAll(path string, stmts []ast.Stmt) ([]ast.Stmt, error) {
	var out []ast.Stmt
	for _, s := range stmts {
		switch st := s.(type) {
		case ast.ErrorStmt:
			msg, err := p.substituteExpr(path, st.Message)
			if err != nil {
				return nil, err
			}
			return nil, p.errf(path, st.Span(), "#error %s", exprText(p.interner, msg))
		case ast.EntryStmt:
			target, err := p.substituteExpr(path, st.Target)
			if err != nil {
				return nil, err
			}
			out = append(out, ast.NewEntryStmt(target, st.Span()))
		case ast.DataStmt:
			values := make([]ast.Expr, len(st.Values))
			for i, v := range st.Values {
				sv, err := p.substituteExpr(path, v)
				if err != nil {
					return nil, err
				}
				values[i] = sv
			}
			out = append(out, ast.NewDataStmt(st.Size, values, st.Span()))
		case ast.ResStmt:
			count, err := p.substituteExpr(path, st.Count)
			if err != nil {
				return nil, err
			}
			out = append(out, ast.NewResStmt(st.Size, count, st.Span()))
		case ast.InstrStmt:
			operands := make([]ast.Expr, len(st.Operands))
			for i, v := range st.Operands {
				sv, err := p.substituteExpr(path, v)
				if err != nil {
					return nil, err
				}
				operands[i] = sv
			}
			out = append(out, ast.NewInstrStmt(st.Op, operands, st.Span()))
		case ast.DefineStmt, ast.IncludeStmt, ast.IfDefStmt, ast.ElseStmt, ast.EndIfStmt:
			// consumed by earlier passes; unreachable here.
		default:
			out = append(out, s)
		}
	}
	return out, nil
}

func exprText(interner *ast.Interner, e ast.Expr) string {
	switch v := e.(type) {
	case ast.StringLiteral:
		return interner.Lookup(v.ID)
	case ast.Identifier:
		return interner.Lookup(v.ID)
	default:
		return ""
	}
}

// substituteExpr walks e's tree, expanding bound identifiers to a fixed
// point, recursing into address base/offset and unary/binary operands, and
// folding a binary op whose two (already substituted) sides are both
// integer or both float literals. Grounded on original_source's
// substitute_expr; UnaryOp has no equivalent there (Expression has no
// UnaryOp variant, the original parser resolves unary minus to a literal
// directly), so its fold is Nyx's own addition, following the same
// literal-fold-else-rebuild shape as the binary case.
func (p *Preprocessor) substituteExpr(path string, e ast.Expr) (ast.Expr, error) {
	switch v := e.(type) {
	case ast.Identifier:
		if bound, ok := p.defines[v.ID]; ok {
			return p.substituteExpr(path, bound)
		}
		return v, nil
	case ast.Address:
		base, err := p.substituteExpr(path, v.Base)
		if err != nil {
			return nil, err
		}
		var offset ast.Expr
		if v.Offset != nil {
			offset, err = p.substituteExpr(path, v.Offset)
			if err != nil {
				return nil, err
			}
		}
		return ast.NewAddress(base, offset, v.Span()), nil
	case ast.UnaryOp:
		operand, err := p.substituteExpr(path, v.Operand)
		if err != nil {
			return nil, err
		}
		return p.foldUnary(path, v.Op, operand, v.Span())
	case ast.BinaryOp:
		left, err := p.substituteExpr(path, v.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.substituteExpr(path, v.Right)
		if err != nil {
			return nil, err
		}
		return p.foldBinary(path, v.Op, left, right, v.Span())
	default:
		return v, nil
	}
}

func (p *Preprocessor) foldUnary(path string, op ast.UnaryOperator, operand ast.Expr, span diag.Span) (ast.Expr, error) {
	switch lit := operand.(type) {
	case ast.IntegerLiteral:
		if op == ast.BitNot {
			return ast.NewIntegerLiteral(^lit.Value, span), nil
		}
		return ast.NewIntegerLiteral(-lit.Value, span), nil
	case ast.FloatLiteral:
		if op == ast.BitNot {
			return nil, p.errf(path, span, "bitwise not is not defined for floats")
		}
		return ast.NewFloatLiteral(-lit.Value, span), nil
	default:
		return ast.NewUnaryOp(op, operand, span), nil
	}
}

func (p *Preprocessor) foldBinary(path string, op ast.BinaryOperator, left, right ast.Expr, span diag.Span) (ast.Expr, error) {
	if li, ok := left.(ast.IntegerLiteral); ok {
		if ri, ok := right.(ast.IntegerLiteral); ok {
			return p.foldIntPair(path, op, li.Value, ri.Value, span)
		}
	}
	if lf, ok := left.(ast.FloatLiteral); ok {
		if rf, ok := right.(ast.FloatLiteral); ok {
			return p.foldFloatPair(path, op, lf.Value, rf.Value, span)
		}
	}
	return ast.NewBinaryOp(op, left, right, span), nil
}

func (p *Preprocessor) foldIntPair(path string, op ast.BinaryOperator, l, r int64, span diag.Span) (ast.Expr, error) {
	switch op {
	case ast.Add:
		return ast.NewIntegerLiteral(l+r, span), nil
	case ast.Sub:
		return ast.NewIntegerLiteral(l-r, span), nil
	case ast.Mul:
		return ast.NewIntegerLiteral(l*r, span), nil
	case ast.Div:
		if r == 0 {
			return nil, p.errf(path, span, "division by zero in constant expression")
		}
		return ast.NewIntegerLiteral(l/r, span), nil
	case ast.BitOr:
		return ast.NewIntegerLiteral(l|r, span), nil
	case ast.BitAnd:
		return ast.NewIntegerLiteral(l&r, span), nil
	case ast.BitXor:
		return ast.NewIntegerLiteral(l^r, span), nil
	default:
		return nil, p.errf(path, span, "unknown binary operator %s", op)
	}
}

func (p *Preprocessor) foldFloatPair(path string, op ast.BinaryOperator, l, r float64, span diag.Span) (ast.Expr, error) {
	switch op {
	case ast.Add:
		return ast.NewFloatLiteral(l+r, span), nil
	case ast.Sub:
		return ast.NewFloatLiteral(l-r, span), nil
	case ast.Mul:
		return ast.NewFloatLiteral(l*r, span), nil
	case ast.Div:
		return ast.NewFloatLiteral(l/r, span), nil
	default:
		return nil, p.errf(path, span, "operator %s is not defined for floats", op)
	}
}
