package diag

import (
	"errors"
	"testing"
)

func TestPosition(t *testing.T) {
	src := "mov q0, 1\nadd q0, q1\nhlt\n"
	tests := []struct {
		offset   int
		line     int
		col      int
	}{
		{0, 1, 1},
		{4, 1, 5},
		{10, 2, 1},
		{len(src), 4, 1},
	}
	for _, tt := range tests {
		line, col := Position(src, tt.offset)
		if line != tt.line || col != tt.col {
			t.Errorf("Position(src, %d) = (%d, %d), want (%d, %d)", tt.offset, line, col, tt.line, tt.col)
		}
	}
}

func TestNewFormatsLineCol(t *testing.T) {
	src := "mov q0, 1\nbadop q0\n"
	span := Span{Filename: "test.nyx", Start: 10, End: 15}
	err := New(src, span, "unknown mnemonic %q", "badop")
	want := "test.nyx:2:1: error: unknown mnemonic \"badop\""
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewWithoutSourceOmitsPosition(t *testing.T) {
	err := New("", Span{Filename: "test.nyx"}, "read failed")
	want := "test.nyx: error: read failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, "", Span{Filename: "f.nyx"}, "write failed")
	if !errors.Is(err, cause) {
		t.Error("Wrap should preserve cause for errors.Is")
	}
}
