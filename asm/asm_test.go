package asm

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/ciathefed/nyx/ast"
)

func TestAssembleSimpleProgram(t *testing.T) {
	src := ".text\n.entry start\nstart:\nmov q0, 5\nhlt\n"
	img, err := Assemble("test.nyx", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(img) < 8 {
		t.Fatalf("image too short: %d bytes", len(img))
	}
	entry := binary.LittleEndian.Uint64(img[:8])
	if entry != 0 {
		t.Errorf("entry = %d, want 0 (start is the first instruction)", entry)
	}
	body := img[8:]
	if ast.WireOp(body[0]) != ast.WMovRegImm {
		t.Errorf("first opcode = %v, want WMovRegImm", ast.WireOp(body[0]))
	}
}

func TestAssembleUndefinedLabelFails(t *testing.T) {
	src := ".text\njmp nowhere\n"
	if _, err := Assemble("test.nyx", strings.NewReader(src)); err == nil {
		t.Fatal("expected error for undefined label")
	}
}

func TestAssembleForwardJumpFixup(t *testing.T) {
	src := ".text\njmp skip\nhlt\nskip:\nhlt\n"
	img, err := Assemble("test.nyx", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	body := img[8:]
	// jmp_imm opcode(1) + 8-byte qword target
	target := binary.LittleEndian.Uint64(body[1:9])
	// skip: comes after jmp(9 bytes) + hlt(1 byte) = offset 10
	if target != 10 {
		t.Errorf("forward jump target = %d, want 10", target)
	}
}

func TestAssembleLabelRedefinitionFails(t *testing.T) {
	src := ".text\nfoo:\nfoo:\nhlt\n"
	if _, err := Assemble("test.nyx", strings.NewReader(src)); err == nil {
		t.Fatal("expected error for redefined label")
	}
}

func TestAssembleDataLabelReference(t *testing.T) {
	src := ".text\nldr q0, [msg]\nhlt\n.data\nmsg:\ndb 1, 2, 3\n"
	img, err := Assemble("test.nyx", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	// text is: ldr(1) + reg(1) + addr-mode(1) + 8-byte base + 8-byte offset = 19 bytes, then hlt(1) = 20
	body := img[8:]
	base := binary.LittleEndian.Uint64(body[3:11])
	if base != 20 {
		t.Errorf("data label address = %d, want 20 (start of data section)", base)
	}
}

func TestAssembleThenDisassembleRoundTrip(t *testing.T) {
	src := ".text\nmov q0, 5\nadd q0, q0, q1\nhlt\n"
	img, err := Assemble("test.nyx", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var out strings.Builder
	if err := DisassembleAll(img[8:], &out); err != nil {
		t.Fatalf("DisassembleAll: %v", err)
	}
	text := out.String()
	for _, want := range []string{"mov_reg_imm", "add_reg_reg_reg", "hlt"} {
		if !strings.Contains(text, want) {
			t.Errorf("disassembly missing %q:\n%s", want, text)
		}
	}
}

func TestAssembleAsciiAndAsciz(t *testing.T) {
	src := ".data\nascii \"ab\"\nasciz \"c\"\n"
	img, err := Assemble("test.nyx", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	data := img[8:] // text section is empty
	want := []byte{'a', 'b', 'c', 0}
	if len(data) != len(want) {
		t.Fatalf("data = %v, want %v", data, want)
	}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("data[%d] = %d, want %d", i, data[i], want[i])
		}
	}
}

func TestAssembleWrongOperandCountFails(t *testing.T) {
	src := ".text\nmov q0\n"
	if _, err := Assemble("test.nyx", strings.NewReader(src)); err == nil {
		t.Fatal("expected error for wrong operand count")
	}
}

func TestAssembleConstantExpression(t *testing.T) {
	src := ".text\nmov q0, 2 * 3 + 1\nhlt\n"
	img, err := Assemble("test.nyx", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	body := img[8:]
	// mov_reg_imm opcode(1) reg(1) then 8-byte qword value, sized from q0
	v := binary.LittleEndian.Uint64(body[2:10])
	if v != 7 {
		t.Errorf("constant expression = %d, want 7", v)
	}
}

func TestAssembleExternCallRewrite(t *testing.T) {
	src := ".text\n.extern square\ncall square\nhlt\n"
	img, err := Assemble("test.nyx", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	body := img[8:]
	if ast.WireOp(body[0]) != ast.WCallEx {
		t.Fatalf("first opcode = %v, want WCallEx", ast.WireOp(body[0]))
	}
	name := string(body[1:7])
	if name != "square" {
		t.Errorf("call_ex name = %q, want %q", name, "square")
	}
	if body[7] != 0 {
		t.Errorf("call_ex name not NUL-terminated: %v", body[1:8])
	}
}

func TestAssemblePushPopExplicitSize(t *testing.T) {
	src := ".text\npush qword, q0\npop qword, q1\nhlt\n"
	img, err := Assemble("test.nyx", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	body := img[8:]
	if ast.WireOp(body[0]) != ast.WPushReg {
		t.Fatalf("first opcode = %v, want WPushReg", ast.WireOp(body[0]))
	}
	if ast.DataSize(body[1]) != ast.QWord {
		t.Errorf("push size tag = %v, want QWord", ast.DataSize(body[1]))
	}
	// push_reg opcode(1) + size(1) + reg(1) = 3 bytes
	if ast.WireOp(body[3]) != ast.WPopReg {
		t.Fatalf("second opcode = %v, want WPopReg", ast.WireOp(body[3]))
	}
}
