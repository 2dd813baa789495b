// Package ast defines the data model shared by the preprocessor, the
// assembler and the VM: statements and expressions produced by the
// (out-of-scope) lexer/parser, data sizes, immediates and registers.
//
// Grounded on github.com/db47h/ngaro's vm.Cell/vm.Register split, widened
// from a single-width Forth cell to the six-width, 99-register model
// spec.md's data model calls for.
package ast

import (
	"strings"

	"github.com/pkg/errors"
)

// DataSize is one of the six operand widths. The numeric value is the
// wire encoding used both in the register-id byte and in encoded operand
// streams (spec.md §6): 0=byte, 1=word, 2=dword, 3=qword, 4=float, 5=double.
type DataSize uint8

const (
	Byte DataSize = iota
	Word
	DWord
	QWord
	Float
	Double
)

func (d DataSize) String() string {
	switch d {
	case Byte:
		return "byte"
	case Word:
		return "word"
	case DWord:
		return "dword"
	case QWord:
		return "qword"
	case Float:
		return "float"
	case Double:
		return "double"
	default:
		return "invalid"
	}
}

// SizeInBytes returns the number of bytes this data size occupies, on the
// wire and in an Immediate.
func (d DataSize) SizeInBytes() int {
	switch d {
	case Byte:
		return 1
	case Word:
		return 2
	case DWord:
		return 4
	case QWord:
		return 8
	case Float:
		return 4
	case Double:
		return 8
	default:
		return 0
	}
}

// ParseDataSize resolves a case-insensitive keyword ("byte", "word", ...)
// to a DataSize.
func ParseDataSize(s string) (DataSize, error) {
	switch strings.ToLower(s) {
	case "byte":
		return Byte, nil
	case "word":
		return Word, nil
	case "dword":
		return DWord, nil
	case "qword":
		return QWord, nil
	case "float":
		return Float, nil
	case "double":
		return Double, nil
	default:
		return 0, errors.Errorf("unknown data size %q", s)
	}
}

// DataSizeFromByte decodes the wire encoding of a DataSize. Any value
// beyond Double is invalid.
func DataSizeFromByte(b byte) (DataSize, error) {
	if b > byte(Double) {
		return 0, errors.Errorf("invalid data size byte: %d", b)
	}
	return DataSize(b), nil
}
