// Package lexer tokenizes Nyx assembly source. Grounded on
// github.com/db47h/ngaro's asm/parser.go, which drives a text/scanner.Scanner
// configured with a custom IsIdentRune so that identifiers can include the
// punctuation an assembly mnemonic set needs (`.text`, `#`, register-size
// suffixes); Nyx's syntax is closer to a conventional assembler than
// ngaro's Forth-like words, so IsIdentRune here only widens idents to
// include a handful of punctuation used by directives.
package lexer

import (
	"io"
	"strings"
	"text/scanner"

	"github.com/ciathefed/nyx/internal/diag"
)

// TokenKind classifies a scanned token.
type TokenKind int

const (
	EOF TokenKind = iota
	Ident
	Int
	Float
	String
	Char
	Punct
)

// Token is one lexical unit plus its source span.
type Token struct {
	Kind TokenKind
	Text string
	Span diag.Span
}

func isIdentRune(ch rune, i int) bool {
	switch {
	case ch == '.' || ch == '_':
		return true
	case ch == '#':
		return i == 0
	case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z':
		return true
	case '0' <= ch && ch <= '9':
		return i > 0
	default:
		return false
	}
}

// Lexer wraps a text/scanner.Scanner configured for Nyx source.
type Lexer struct {
	s        scanner.Scanner
	filename string
	src      string
	err      error
}

// New builds a Lexer reading from r. filename is used in diagnostics; the
// source is buffered up front (assembly files are small) both so
// diag.Position can resolve line/column and so the assembler and CLI can
// print the offending line on error.
func New(filename string, r io.Reader) *Lexer {
	l := &Lexer{filename: filename}
	buf, err := io.ReadAll(r)
	if err != nil {
		l.err = diag.New("", diag.Span{Filename: filename}, "read failed: %s", err)
		buf = nil
	}
	l.src = string(buf)
	l.s.Init(strings.NewReader(l.src))
	l.s.Filename = filename
	l.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanChars | scanner.ScanStrings | scanner.ScanComments | scanner.SkipComments
	l.s.IsIdentRune = isIdentRune
	// Exclude '\n' from whitespace so it surfaces as its own Punct token:
	// Nyx assembly is one statement per line, and the parser needs an
	// explicit end-of-line marker the way a semicolon would serve in a
	// free-form grammar.
	l.s.Whitespace = 1<<'\t' | 1<<'\r' | 1<<' '
	l.s.Error = func(s *scanner.Scanner, msg string) {
		if l.err == nil {
			l.err = diag.New(l.src, l.spanAt(s.Pos()), "%s", msg)
		}
	}
	return l
}

func (l *Lexer) spanAt(pos scanner.Position) diag.Span {
	return diag.Span{Filename: l.filename, Start: pos.Offset, End: pos.Offset}
}

// Err returns the first scan error encountered, if any.
func (l *Lexer) Err() error { return l.err }

// Source returns the full buffered source text, for resolving diagnostic
// spans into line/column.
func (l *Lexer) Source() string { return l.src }

// Next scans and returns the next token. At end of input it returns a
// Token with Kind == EOF.
func (l *Lexer) Next() Token {
	tok := l.s.Scan()
	text := l.s.TokenText()
	span := l.spanAt(l.s.Position)
	span.End = span.Start + len(text)

	switch tok {
	case scanner.EOF:
		return Token{Kind: EOF, Span: span}
	case scanner.Ident:
		return Token{Kind: Ident, Text: text, Span: span}
	case scanner.Int:
		return Token{Kind: Int, Text: text, Span: span}
	case scanner.Float:
		return Token{Kind: Float, Text: text, Span: span}
	case scanner.String, scanner.RawString:
		return Token{Kind: String, Text: text, Span: span}
	case scanner.Char:
		return Token{Kind: Char, Text: text, Span: span}
	default:
		return Token{Kind: Punct, Text: text, Span: span}
	}
}
