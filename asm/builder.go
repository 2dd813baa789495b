// This file is part of nyx, a small register machine and toolchain.
//
// The bytecode builder: two append-only byte buffers (text and data) plus
// in-place patch operations, grounded on ngaro's parser.write growable
// slice (asm/parser.go's `for p.pc >= len(p.i) { p.i = append(...) }`)
// but split by section and widened to byte granularity since Nyx operands
// are variable-width rather than fixed-width Forth cells.

package asm

import (
	"encoding/binary"

	"github.com/ciathefed/nyx/ast"
)

// builder accumulates the encoded text and data sections of a program
// under construction. Addresses its methods take and return are offsets
// within the named section's own buffer; Finalize places text at the start
// of the image body (after the 8-byte header) and data immediately after
// the last text byte.
type builder struct {
	text []byte
	data []byte
}

func (b *builder) sectionBuf(kind ast.SectionKind) *[]byte {
	if kind == ast.DataSection {
		return &b.data
	}
	return &b.text
}

// Len returns the current address one past the last byte written to kind.
func (b *builder) Len(kind ast.SectionKind) uint64 {
	return uint64(len(*b.sectionBuf(kind)))
}

// WriteByte appends a single byte to the given section and returns the
// address it was written at.
func (b *builder) WriteByte(kind ast.SectionKind, v byte) uint64 {
	buf := b.sectionBuf(kind)
	addr := uint64(len(*buf))
	*buf = append(*buf, v)
	return addr
}

// Write appends p to the given section and returns the address the first
// byte was written at.
func (b *builder) Write(kind ast.SectionKind, p []byte) uint64 {
	buf := b.sectionBuf(kind)
	addr := uint64(len(*buf))
	*buf = append(*buf, p...)
	return addr
}

// Grow appends n zero bytes to the given section (used by resb/resw/...)
// and returns the address of the first byte.
func (b *builder) Grow(kind ast.SectionKind, n uint64) uint64 {
	buf := b.sectionBuf(kind)
	addr := uint64(len(*buf))
	*buf = append(*buf, make([]byte, n)...)
	return addr
}

// PatchAt overwrites size.SizeInBytes() bytes at addr (in the given
// section) with v, little-endian, truncating v to size. Used to back-patch
// a fixup once its label's final address is known; per spec.md §4.2,
// fixups are only ever byte/word/dword/qword-wide.
func (b *builder) PatchAt(kind ast.SectionKind, addr uint64, size ast.DataSize, v uint64) {
	buf := b.sectionBuf(kind)
	n := size.SizeInBytes()
	for i := 0; i < n; i++ {
		(*buf)[addr+uint64(i)] = byte(v)
		v >>= 8
	}
}

// Finalize concatenates the header (8-byte little-endian entry offset),
// text and data sections into the final image bytes. entry must already be
// expressed as an absolute address into the concatenated text||data body
// (i.e. data-section addresses are offset by len(text)).
func (b *builder) Finalize(entry uint64) []byte {
	out := make([]byte, 8+len(b.text)+len(b.data))
	binary.LittleEndian.PutUint64(out[:8], entry)
	copy(out[8:], b.text)
	copy(out[8+len(b.text):], b.data)
	return out
}
