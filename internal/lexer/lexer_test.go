package lexer

import (
	"strings"
	"testing"
)

func collect(t *testing.T, src string) []Token {
	t.Helper()
	l := New("test.nyx", strings.NewReader(src))
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == EOF {
			break
		}
	}
	if err := l.Err(); err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	return toks
}

func TestLexerBasicInstruction(t *testing.T) {
	toks := collect(t, "mov q0, 42\n")
	kinds := make([]TokenKind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	want := []TokenKind{Ident, Ident, Punct, Int, Punct, EOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(kinds), toks, len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d kind = %v, want %v (text %q)", i, kinds[i], want[i], toks[i].Text)
		}
	}
}

func TestLexerNewlineIsPunct(t *testing.T) {
	toks := collect(t, "nop\nhlt\n")
	if toks[1].Kind != Punct || toks[1].Text != "\n" {
		t.Fatalf("expected newline token, got %+v", toks[1])
	}
}

func TestLexerLabelColon(t *testing.T) {
	toks := collect(t, "loop:\n")
	if toks[0].Kind != Ident || toks[0].Text != "loop" {
		t.Fatalf("expected ident 'loop', got %+v", toks[0])
	}
	if toks[1].Kind != Punct || toks[1].Text != ":" {
		t.Fatalf("expected ':' punct, got %+v", toks[1])
	}
}

func TestLexerDirectiveDot(t *testing.T) {
	toks := collect(t, ".text\n")
	if toks[0].Kind != Ident || toks[0].Text != ".text" {
		t.Fatalf("expected ident '.text', got %+v", toks[0])
	}
}

func TestLexerStringLiteral(t *testing.T) {
	toks := collect(t, `ascii "hello\n"` + "\n")
	if toks[1].Kind != String {
		t.Fatalf("expected string literal, got %+v", toks[1])
	}
}

func TestLexerFloatLiteral(t *testing.T) {
	toks := collect(t, "mov ff0, 3.5\n")
	if toks[3].Kind != Float || toks[3].Text != "3.5" {
		t.Fatalf("expected float literal '3.5', got %+v", toks[3])
	}
}

func TestLexerAddressBrackets(t *testing.T) {
	toks := collect(t, "ldr q0, [q1 + 8]\n")
	var punct []string
	for _, tok := range toks {
		if tok.Kind == Punct && tok.Text != "\n" {
			punct = append(punct, tok.Text)
		}
	}
	want := []string{",", "[", "+", "]"}
	if len(punct) != len(want) {
		t.Fatalf("got puncts %v, want %v", punct, want)
	}
	for i := range want {
		if punct[i] != want[i] {
			t.Errorf("punct %d = %q, want %q", i, punct[i], want[i])
		}
	}
}
