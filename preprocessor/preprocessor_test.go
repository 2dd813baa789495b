package preprocessor

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ciathefed/nyx/ast"
	"github.com/ciathefed/nyx/internal/parser"
)

// mustParse parses src with a fresh interner and returns its statements.
func mustParse(t *testing.T, interner *ast.Interner, name, src string) []ast.Stmt {
	t.Helper()
	p := parser.New(name, strings.NewReader(src), interner)
	stmts, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return stmts
}

// movImmValue returns the integer value of the second operand of the sole
// mov instruction in stmts, failing the test if that shape isn't found.
func movImmValue(t *testing.T, stmts []ast.Stmt) int64 {
	t.Helper()
	for _, s := range stmts {
		instr, ok := s.(ast.InstrStmt)
		if !ok || instr.Op != ast.OpMov || len(instr.Operands) != 2 {
			continue
		}
		lit, ok := instr.Operands[1].(ast.IntegerLiteral)
		if !ok {
			t.Fatalf("mov's second operand is %T, not an integer literal", instr.Operands[1])
		}
		return lit.Value
	}
	t.Fatalf("no mov instruction found in %d statement(s)", len(stmts))
	return 0
}

func hasHlt(stmts []ast.Stmt) bool {
	for _, s := range stmts {
		if instr, ok := s.(ast.InstrStmt); ok && instr.Op == ast.OpHlt {
			return true
		}
	}
	return false
}

func TestDefineAndSubstitute(t *testing.T) {
	interner := &ast.Interner{}
	src := "#define STACK_SIZE 4096\nmov q0, STACK_SIZE\n"
	stmts := mustParse(t, interner, "test.nyx", src)
	p := New(interner)
	out, err := p.Process("test.nyx", src, stmts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v := movImmValue(t, out); v != 4096 {
		t.Errorf("expected macro expansion to 4096, got %d", v)
	}
}

func TestDefineBareBindsToEmptyString(t *testing.T) {
	interner := &ast.Interner{}
	src := "#define DEBUG\n#ifdef DEBUG\nhlt\n#endif\n"
	stmts := mustParse(t, interner, "test.nyx", src)
	p := New(interner)
	out, err := p.Process("test.nyx", src, stmts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !hasHlt(out) {
		t.Errorf("expected bare #define to satisfy #ifdef, got %v", out)
	}
}

func TestIfdefElseEndif(t *testing.T) {
	interner := &ast.Interner{}
	src := "#define FOO 1\n#ifdef FOO\nmov q0, 1\n#else\nmov q0, 2\n#endif\n"
	stmts := mustParse(t, interner, "test.nyx", src)
	p := New(interner)
	out, err := p.Process("test.nyx", src, stmts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v := movImmValue(t, out); v != 1 {
		t.Errorf("expected only the #ifdef branch, got mov value %d", v)
	}
}

func TestIfndefTakesElseWhenDefined(t *testing.T) {
	interner := &ast.Interner{}
	src := "#define FOO 1\n#ifndef FOO\nmov q0, 1\n#else\nmov q0, 2\n#endif\n"
	stmts := mustParse(t, interner, "test.nyx", src)
	p := New(interner)
	out, err := p.Process("test.nyx", src, stmts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v := movImmValue(t, out); v != 2 {
		t.Errorf("expected only the #else branch, got mov value %d", v)
	}
}

func TestUnterminatedIfdefIsError(t *testing.T) {
	interner := &ast.Interner{}
	src := "#ifdef FOO\nmov q0, 1\n"
	stmts := mustParse(t, interner, "test.nyx", src)
	p := New(interner)
	if _, err := p.Process("test.nyx", src, stmts); err == nil {
		t.Fatal("expected error for missing #endif")
	}
}

func TestErrorDirective(t *testing.T) {
	interner := &ast.Interner{}
	src := "#error \"something is wrong\"\n"
	stmts := mustParse(t, interner, "test.nyx", src)
	p := New(interner)
	if _, err := p.Process("test.nyx", src, stmts); err == nil {
		t.Fatal("expected #error to fail preprocessing")
	}
}

func TestErrorDirectiveSkippedWhenInactive(t *testing.T) {
	interner := &ast.Interner{}
	src := "#ifdef NOPE\n#error \"should not fire\"\n#endif\nhlt\n"
	stmts := mustParse(t, interner, "test.nyx", src)
	p := New(interner)
	out, err := p.Process("test.nyx", src, stmts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !hasHlt(out) {
		t.Errorf("expected hlt to survive, got %v", out)
	}
}

func TestIncludeCycleDetected(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.nyx")
	b := filepath.Join(dir, "b.nyx")
	if err := os.WriteFile(a, []byte("#include \"b.nyx\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("#include \"a.nyx\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	p := New(&ast.Interner{})
	if _, err := p.ProcessFile(a); err == nil {
		t.Fatal("expected include cycle error")
	}
}

// TestDiamondIncludeIsFatal exercises A including both B and C, which both
// include D: since visited paths are never released, D is already visited
// by the time C reaches it, and the whole ProcessFile call fails, matching
// original_source's included_files set, which only ever grows.
func TestDiamondIncludeIsFatal(t *testing.T) {
	dir := t.TempDir()
	d := filepath.Join(dir, "d.nyx")
	b := filepath.Join(dir, "b.nyx")
	c := filepath.Join(dir, "c.nyx")
	main := filepath.Join(dir, "main.nyx")
	if err := os.WriteFile(d, []byte("#define ANSWER 42\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("#include \"d.nyx\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c, []byte("#include \"d.nyx\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(main, []byte("#include \"b.nyx\"\n#include \"c.nyx\"\nmov q0, ANSWER\n"), 0644); err != nil {
		t.Fatal(err)
	}
	p := New(&ast.Interner{})
	if _, err := p.ProcessFile(main); err == nil {
		t.Fatal("expected re-including an already-visited path via a diamond to fail")
	}
}

func TestIncludeResolvesRelativeToIncludingFile(t *testing.T) {
	dir := t.TempDir()
	inc := filepath.Join(dir, "consts.inc")
	main := filepath.Join(dir, "main.nyx")
	if err := os.WriteFile(inc, []byte("#define ANSWER 42\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(main, []byte("#include \"consts.inc\"\nmov q0, ANSWER\n"), 0644); err != nil {
		t.Fatal(err)
	}
	p := New(&ast.Interner{})
	out, err := p.ProcessFile(main)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if v := movImmValue(t, out); v != 42 {
		t.Errorf("expected included define to expand, got %d", v)
	}
}

func TestFoldConstants(t *testing.T) {
	interner := &ast.Interner{}
	src := "mov q0, 1 + 2\n"
	stmts := mustParse(t, interner, "test.nyx", src)
	p := New(interner)
	out, err := p.Process("test.nyx", src, stmts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v := movImmValue(t, out); v != 3 {
		t.Errorf("expected constant fold to 3, got %d", v)
	}
}

func TestFoldConstantsIsRecursiveToAFixedPoint(t *testing.T) {
	interner := &ast.Interner{}
	src := "#define A 1 + 2\n#define B A * 10\nmov q0, B\n"
	stmts := mustParse(t, interner, "test.nyx", src)
	p := New(interner)
	out, err := p.Process("test.nyx", src, stmts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v := movImmValue(t, out); v != 30 {
		t.Errorf("expected recursively substituted and folded value 30, got %d", v)
	}
}

func TestOutputContainsNoBinaryOpNode(t *testing.T) {
	interner := &ast.Interner{}
	src := "mov q0, 1 + 2\n"
	stmts := mustParse(t, interner, "test.nyx", src)
	p := New(interner)
	out, err := p.Process("test.nyx", src, stmts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, s := range out {
		instr, ok := s.(ast.InstrStmt)
		if !ok {
			continue
		}
		for _, operand := range instr.Operands {
			if _, ok := operand.(ast.BinaryOp); ok {
				t.Errorf("preprocessor output still contains a binary_op node: %v", operand)
			}
		}
	}
}

func TestPlatformMacroForCurrentOS(t *testing.T) {
	interner := &ast.Interner{}
	p := New(interner)
	osMacros := map[string]string{"linux": "__LINUX__", "darwin": "__MACOS__", "windows": "__WINDOWS__"}
	want, ok := osMacros[runtime.GOOS]
	if !ok {
		t.Skipf("no predefined macro for GOOS %q", runtime.GOOS)
	}
	if _, defined := p.defines[interner.Intern(want)]; !defined {
		t.Errorf("expected %s to be predefined on %s", want, runtime.GOOS)
	}
}
