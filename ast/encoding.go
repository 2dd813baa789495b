package ast

// OperandKind tags how one operand slot of a wire instruction is encoded,
// shared by the assembler's encoder and the VM's decoder so the two can
// never disagree about an instruction's shape.
type OperandKind byte

const (
	OperandNone OperandKind = iota
	// OperandRegister is a single register-id byte.
	OperandRegister
	// OperandAddress is an Address operand: mode byte, base, Imm[8] offset.
	OperandAddress
	// OperandDataSize is a single explicit size-tag byte (the `S` operand
	// of push/pop/sti). Decoding it also sets the "current size" used by a
	// later OperandImmSize in the same instruction.
	OperandDataSize
	// OperandImmDest is a raw, non-self-describing immediate whose size
	// equals that of the first Register operand already decoded earlier in
	// the same instruction (mov_reg_imm's dest, *_reg_reg_imm's dest,
	// cmp_reg_imm's lhs).
	OperandImmDest
	// OperandImmSize is a raw immediate whose size equals the value of a
	// preceding OperandDataSize operand in the same instruction
	// (push_imm's Imm[S], sti's Imm[S]).
	OperandImmSize
	// OperandImm8 is a fixed raw 8-byte immediate (jmp/call absolute
	// targets).
	OperandImm8
	// OperandCString is a NUL-terminated string embedded directly in the
	// instruction stream (load_external's path, call_ex's symbol name).
	OperandCString
)

// AddressingMode is the first byte of an encoded Address operand: it
// selects whether the base that follows is a register id or a raw
// little-endian qword immediate.
type AddressingMode byte

const (
	AddrRegisterBase  AddressingMode = 0x00
	AddrImmediateBase AddressingMode = 0x01
)

// OperandSpec describes the shape of one instruction's operand list.
type OperandSpec struct {
	Kinds []OperandKind
}

// WireOp is the concrete, on-the-wire instruction opcode: one entry per
// operand shape listed in spec.md §6's opcode byte map. A source mnemonic
// such as `mov` or `add` resolves to one of several WireOp values depending
// on its operands' shapes (RegisterExpr vs. everything else); that
// resolution is the assembler's job (see resolveWireOp in package asm). The
// VM only ever sees WireOp bytes.
type WireOp uint8

const (
	WNop WireOp = iota
	WLoadExternal
	WMovRegReg
	WMovRegImm
	WLdr
	WStr
	WSti
	WPushImm
	WPushReg
	WPushAddr
	WPopReg
	WPopAddr
	WAddRegRegReg
	WAddRegRegImm
	WSubRegRegReg
	WSubRegRegImm
	WMulRegRegReg
	WMulRegRegImm
	WDivRegRegReg
	WDivRegRegImm
	WAndRegRegReg
	WAndRegRegImm
	WOrRegRegReg
	WOrRegRegImm
	WXorRegRegReg
	WXorRegRegImm
	WShlRegRegReg
	WShlRegRegImm
	WShrRegRegReg
	WShrRegRegImm
	WCmpRegReg
	WCmpRegImm
	WJmpImm
	WJmpReg
	WJeqImm
	WJeqReg
	WJneImm
	WJneReg
	WJltImm
	WJltReg
	WJgtImm
	WJgtReg
	WJleImm
	WJleReg
	WJgeImm
	WJgeReg
	WCallImm
	WCallReg
	WCallEx
	WRet
	WInc
	WDec
	WNeg
	WSyscall
	WHlt
)

var wireOpNames = [...]string{
	"nop", "load_external", "mov_reg_reg", "mov_reg_imm", "ldr", "str", "sti",
	"push_imm", "push_reg", "push_addr", "pop_reg", "pop_addr",
	"add_reg_reg_reg", "add_reg_reg_imm", "sub_reg_reg_reg", "sub_reg_reg_imm",
	"mul_reg_reg_reg", "mul_reg_reg_imm", "div_reg_reg_reg", "div_reg_reg_imm",
	"and_reg_reg_reg", "and_reg_reg_imm", "or_reg_reg_reg", "or_reg_reg_imm",
	"xor_reg_reg_reg", "xor_reg_reg_imm", "shl_reg_reg_reg", "shl_reg_reg_imm",
	"shr_reg_reg_reg", "shr_reg_reg_imm",
	"cmp_reg_reg", "cmp_reg_imm",
	"jmp_imm", "jmp_reg", "jeq_imm", "jeq_reg", "jne_imm", "jne_reg",
	"jlt_imm", "jlt_reg", "jgt_imm", "jgt_reg", "jle_imm", "jle_reg",
	"jge_imm", "jge_reg",
	"call_imm", "call_reg", "call_ex", "ret",
	"inc", "dec", "neg", "syscall", "hlt",
}

func (w WireOp) String() string {
	if int(w) < len(wireOpNames) {
		return wireOpNames[w]
	}
	return "invalid"
}

// InstrEncoding maps each WireOp to its operand shape: the single shared
// contract between the assembler's encoder (asm.encodeInstr) and the VM's
// decoder (vm.fetchOperands). Every valid opcode has an entry (an empty one
// if it takes no operands); a byte with no entry is rejected as invalid.
var InstrEncoding = map[WireOp]OperandSpec{
	WNop:           {},
	WLoadExternal:  {[]OperandKind{OperandCString}},
	WMovRegReg:     {[]OperandKind{OperandRegister, OperandRegister}},
	WMovRegImm:     {[]OperandKind{OperandRegister, OperandImmDest}},
	WLdr:           {[]OperandKind{OperandRegister, OperandAddress}},
	WStr:           {[]OperandKind{OperandRegister, OperandAddress}},
	WSti:           {[]OperandKind{OperandDataSize, OperandImmSize, OperandAddress}},
	WPushImm:       {[]OperandKind{OperandDataSize, OperandImmSize}},
	WPushReg:       {[]OperandKind{OperandDataSize, OperandRegister}},
	WPushAddr:      {[]OperandKind{OperandDataSize, OperandAddress}},
	WPopReg:        {[]OperandKind{OperandDataSize, OperandRegister}},
	WPopAddr:       {[]OperandKind{OperandDataSize, OperandAddress}},
	WAddRegRegReg:  {[]OperandKind{OperandRegister, OperandRegister, OperandRegister}},
	WAddRegRegImm:  {[]OperandKind{OperandRegister, OperandRegister, OperandImmDest}},
	WSubRegRegReg:  {[]OperandKind{OperandRegister, OperandRegister, OperandRegister}},
	WSubRegRegImm:  {[]OperandKind{OperandRegister, OperandRegister, OperandImmDest}},
	WMulRegRegReg:  {[]OperandKind{OperandRegister, OperandRegister, OperandRegister}},
	WMulRegRegImm:  {[]OperandKind{OperandRegister, OperandRegister, OperandImmDest}},
	WDivRegRegReg:  {[]OperandKind{OperandRegister, OperandRegister, OperandRegister}},
	WDivRegRegImm:  {[]OperandKind{OperandRegister, OperandRegister, OperandImmDest}},
	WAndRegRegReg:  {[]OperandKind{OperandRegister, OperandRegister, OperandRegister}},
	WAndRegRegImm:  {[]OperandKind{OperandRegister, OperandRegister, OperandImmDest}},
	WOrRegRegReg:   {[]OperandKind{OperandRegister, OperandRegister, OperandRegister}},
	WOrRegRegImm:   {[]OperandKind{OperandRegister, OperandRegister, OperandImmDest}},
	WXorRegRegReg:  {[]OperandKind{OperandRegister, OperandRegister, OperandRegister}},
	WXorRegRegImm:  {[]OperandKind{OperandRegister, OperandRegister, OperandImmDest}},
	WShlRegRegReg:  {[]OperandKind{OperandRegister, OperandRegister, OperandRegister}},
	WShlRegRegImm:  {[]OperandKind{OperandRegister, OperandRegister, OperandImmDest}},
	WShrRegRegReg:  {[]OperandKind{OperandRegister, OperandRegister, OperandRegister}},
	WShrRegRegImm:  {[]OperandKind{OperandRegister, OperandRegister, OperandImmDest}},
	WCmpRegReg:     {[]OperandKind{OperandRegister, OperandRegister}},
	WCmpRegImm:     {[]OperandKind{OperandRegister, OperandImmDest}},
	WJmpImm:        {[]OperandKind{OperandImm8}},
	WJmpReg:        {[]OperandKind{OperandRegister}},
	WJeqImm:        {[]OperandKind{OperandImm8}},
	WJeqReg:        {[]OperandKind{OperandRegister}},
	WJneImm:        {[]OperandKind{OperandImm8}},
	WJneReg:        {[]OperandKind{OperandRegister}},
	WJltImm:        {[]OperandKind{OperandImm8}},
	WJltReg:        {[]OperandKind{OperandRegister}},
	WJgtImm:        {[]OperandKind{OperandImm8}},
	WJgtReg:        {[]OperandKind{OperandRegister}},
	WJleImm:        {[]OperandKind{OperandImm8}},
	WJleReg:        {[]OperandKind{OperandRegister}},
	WJgeImm:        {[]OperandKind{OperandImm8}},
	WJgeReg:        {[]OperandKind{OperandRegister}},
	WCallImm:       {[]OperandKind{OperandImm8}},
	WCallReg:       {[]OperandKind{OperandRegister}},
	WCallEx:        {[]OperandKind{OperandCString}},
	WRet:           {},
	WInc:           {[]OperandKind{OperandRegister}},
	WDec:           {[]OperandKind{OperandRegister}},
	WNeg:           {[]OperandKind{OperandRegister}},
	WSyscall:       {},
	WHlt:           {},
}

// jumpWireOps maps each branch mnemonic to its {imm, reg} WireOp pair, used
// by both the assembler's resolver and disassembly.
var jumpWireOps = map[Opcode][2]WireOp{
	OpJmp: {WJmpImm, WJmpReg},
	OpJeq: {WJeqImm, WJeqReg},
	OpJne: {WJneImm, WJneReg},
	OpJlt: {WJltImm, WJltReg},
	OpJgt: {WJgtImm, WJgtReg},
	OpJle: {WJleImm, WJleReg},
	OpJge: {WJgeImm, WJgeReg},
}

// JumpWireOps exposes jumpWireOps to package asm.
func JumpWireOps(op Opcode) (imm, reg WireOp, ok bool) {
	pair, ok := jumpWireOps[op]
	return pair[0], pair[1], ok
}

// arithWireOps maps each arithmetic/bitwise mnemonic to its
// {reg_reg_reg, reg_reg_imm} WireOp pair.
var arithWireOps = map[Opcode][2]WireOp{
	OpAdd: {WAddRegRegReg, WAddRegRegImm},
	OpSub: {WSubRegRegReg, WSubRegRegImm},
	OpMul: {WMulRegRegReg, WMulRegRegImm},
	OpDiv: {WDivRegRegReg, WDivRegRegImm},
	OpAnd: {WAndRegRegReg, WAndRegRegImm},
	OpOr:  {WOrRegRegReg, WOrRegRegImm},
	OpXor: {WXorRegRegReg, WXorRegRegImm},
	OpShl: {WShlRegRegReg, WShlRegRegImm},
	OpShr: {WShrRegRegReg, WShrRegRegImm},
}

// ArithWireOps exposes arithWireOps to package asm.
func ArithWireOps(op Opcode) (regreg, regimm WireOp, ok bool) {
	pair, ok := arithWireOps[op]
	return pair[0], pair[1], ok
}

// ArithWireOpKind reports whether w is one of the reg_reg_reg / reg_reg_imm
// arithmetic-family wire opcodes, and if so which base operation it is.
func ArithWireOpKind(w WireOp) (op Opcode, isRegImm bool, ok bool) {
	for base, pair := range arithWireOps {
		if w == pair[0] {
			return base, false, true
		}
		if w == pair[1] {
			return base, true, true
		}
	}
	return 0, false, false
}
