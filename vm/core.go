// This file is part of nyx, a small register machine and toolchain.
//
// The fetch/decode/dispatch loop, grounded on ngaro's vm.Instance.Run
// (recover-wrapped switch over an opcode Cell, PC advanced per-case) but
// widened from a single-width Forth cell machine to Nyx's
// register/address/immediate operand encoding. Instruction shapes are
// shared with the assembler via ast.InstrEncoding, keyed by ast.WireOp
// rather than the source-level ast.Opcode.

package vm

import (
	"github.com/ciathefed/nyx/ast"
	"github.com/pkg/errors"
)

type decodedOperand struct {
	kind OperandKind
	reg  ast.Register
	imm  ast.Immediate
	addr uint64
	size ast.DataSize
	str  string
}

// decodeState mirrors asm.encodeState: it carries the size context an
// OperandImmDest/OperandImmSize needs while fetching an instruction's
// operand list off the wire.
type decodeState struct {
	haveReg  bool
	regSize  ast.DataSize
	haveSize bool
	curSize  ast.DataSize
}

func (i *Instance) fetchByte() (byte, error) {
	b, err := i.Mem.ReadByte(i.Regs.IP())
	if err != nil {
		return 0, err
	}
	i.Regs.SetIP(i.Regs.IP() + 1)
	return b, nil
}

func (i *Instance) fetchBytes(n uint64) ([]byte, error) {
	b, err := i.Mem.ReadBytes(i.Regs.IP(), n)
	if err != nil {
		return nil, err
	}
	i.Regs.SetIP(i.Regs.IP() + n)
	return b, nil
}

func (i *Instance) fetchRegister() (ast.Register, error) {
	b, err := i.fetchByte()
	if err != nil {
		return 0, err
	}
	return ast.RegisterFromByte(b)
}

// fetchRawImmediate reads exactly size.SizeInBytes() raw bytes: unlike a
// self-describing operand, no size tag precedes the value, since the
// caller already knows size from a preceding register or size-tag operand.
func (i *Instance) fetchRawImmediate(size ast.DataSize) (ast.Immediate, error) {
	buf, err := i.fetchBytes(uint64(size.SizeInBytes()))
	if err != nil {
		return ast.Immediate{}, err
	}
	return ast.ImmediateFromBytes(size, buf), nil
}

// fetchCString reads bytes from the instruction stream until a NUL
// terminator, consuming the terminator without including it in the result.
func (i *Instance) fetchCString() (string, error) {
	var buf []byte
	for {
		b, err := i.fetchByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

// fetchAddress decodes an Address operand and resolves it to a concrete
// byte address: mode byte, base (register id or qword immediate), and an
// always-present signed 8-byte offset.
func (i *Instance) fetchAddress() (uint64, error) {
	modeByte, err := i.fetchByte()
	if err != nil {
		return 0, err
	}
	var base uint64
	switch AddressingMode(modeByte) {
	case AddrRegisterBase:
		reg, err := i.fetchRegister()
		if err != nil {
			return 0, err
		}
		base = i.Regs.Get(reg).AsU64()
	case AddrImmediateBase:
		buf, err := i.fetchBytes(8)
		if err != nil {
			return 0, err
		}
		base = ast.ImmediateFromBytes(ast.QWord, buf).AsU64()
	default:
		return 0, errors.Errorf("invalid addressing mode byte: %#02x", modeByte)
	}
	buf, err := i.fetchBytes(8)
	if err != nil {
		return 0, err
	}
	offset := ast.ImmediateFromBytes(ast.QWord, buf).AsI64()
	return uint64(int64(base) + offset), nil
}

func (i *Instance) fetchOperand(kind OperandKind, st *decodeState) (decodedOperand, error) {
	switch kind {
	case OperandRegister:
		r, err := i.fetchRegister()
		if err != nil {
			return decodedOperand{}, err
		}
		if !st.haveReg {
			st.haveReg = true
			st.regSize = r.Size()
		}
		return decodedOperand{kind: kind, reg: r}, nil
	case OperandAddress:
		a, err := i.fetchAddress()
		return decodedOperand{kind: kind, addr: a}, err
	case OperandDataSize:
		b, err := i.fetchByte()
		if err != nil {
			return decodedOperand{}, err
		}
		size, err := ast.DataSizeFromByte(b)
		if err != nil {
			return decodedOperand{}, err
		}
		st.haveSize = true
		st.curSize = size
		return decodedOperand{kind: kind, size: size}, nil
	case OperandImmDest:
		if !st.haveReg {
			return decodedOperand{}, errors.New("fetchOperand: immediate operand with no preceding register")
		}
		v, err := i.fetchRawImmediate(st.regSize)
		return decodedOperand{kind: kind, imm: v}, err
	case OperandImmSize:
		if !st.haveSize {
			return decodedOperand{}, errors.New("fetchOperand: immediate operand with no preceding size tag")
		}
		v, err := i.fetchRawImmediate(st.curSize)
		return decodedOperand{kind: kind, imm: v}, err
	case OperandImm8:
		v, err := i.fetchRawImmediate(ast.QWord)
		return decodedOperand{kind: kind, imm: v}, err
	case OperandCString:
		s, err := i.fetchCString()
		return decodedOperand{kind: kind, str: s}, err
	default:
		return decodedOperand{}, errors.New("fetchOperand: OperandNone")
	}
}

func (i *Instance) fetchOperands(op ast.WireOp) ([]decodedOperand, error) {
	spec, ok := instrEncoding[op]
	if !ok {
		return nil, errors.Errorf("no encoding for opcode %s", op)
	}
	ops := make([]decodedOperand, len(spec.Kinds))
	var st decodeState
	for idx, k := range spec.Kinds {
		o, err := i.fetchOperand(k, &st)
		if err != nil {
			return nil, err
		}
		ops[idx] = o
	}
	return ops, nil
}

// Push writes val onto the stack, growing it downward from the top of
// memory, per spec: SP is decremented by val's size before the write.
func (i *Instance) Push(val ast.Immediate) error {
	n := uint64(val.Size().SizeInBytes())
	sp := i.Regs.SP() - n
	buf := make([]byte, n)
	val.WriteInto(buf)
	if err := i.Mem.WriteBytes(sp, buf); err != nil {
		return errors.Wrap(err, "push")
	}
	i.Regs.SetSP(sp)
	return nil
}

// Pop reads and removes the top-of-stack value of the given size.
func (i *Instance) Pop(size ast.DataSize) (ast.Immediate, error) {
	sp := i.Regs.SP()
	n := uint64(size.SizeInBytes())
	buf, err := i.Mem.ReadBytes(sp, n)
	if err != nil {
		return ast.Immediate{}, errors.Wrap(err, "pop")
	}
	i.Regs.SetSP(sp + n)
	return ast.ImmediateFromBytes(size, buf), nil
}

// Run executes instructions until a `hlt`, an `exit` syscall, or an error.
// On error, the instruction pointer is left where decoding or execution of
// the failing instruction stopped, past the bytes already fetched for it.
func (i *Instance) Run() (err error) {
	defer func() {
		if e := recover(); e != nil {
			switch e := e.(type) {
			case error:
				err = errors.Wrapf(e, "recovered panic @ip=%#x, insCount=%d", i.Regs.IP(), i.insCount)
			default:
				panic(e)
			}
		}
	}()

	for !i.halted {
		if err := i.Step(); err != nil {
			return err
		}
	}
	return nil
}

// branchTaken reports whether a jump family opcode's condition holds,
// independent of whether its target is an immediate or a register.
func (i *Instance) branchTaken(op ast.WireOp) bool {
	switch op {
	case ast.WJmpImm, ast.WJmpReg:
		return true
	case ast.WJeqImm, ast.WJeqReg:
		return i.eq
	case ast.WJneImm, ast.WJneReg:
		return !i.eq
	case ast.WJltImm, ast.WJltReg:
		return i.lt
	case ast.WJgtImm, ast.WJgtReg:
		return !i.lt && !i.eq
	case ast.WJleImm, ast.WJleReg:
		return i.lt || i.eq
	case ast.WJgeImm, ast.WJgeReg:
		return !i.lt || i.eq
	default:
		return false
	}
}

// Step decodes and executes a single instruction.
func (i *Instance) Step() error {
	opByte, err := i.fetchByte()
	if err != nil {
		return err
	}
	op, err := wireOpFromByte(opByte)
	if err != nil {
		return err
	}
	ops, err := i.fetchOperands(op)
	if err != nil {
		return err
	}

	switch op {
	case ast.WNop:
	case ast.WLoadExternal:
		if err := i.loadExternal(ops[0].str); err != nil {
			return err
		}
	case ast.WMovRegReg:
		i.Regs.Set(ops[0].reg, i.Regs.Get(ops[1].reg))
	case ast.WMovRegImm:
		i.Regs.Set(ops[0].reg, ops[1].imm)
	case ast.WLdr:
		buf, err := i.Mem.ReadBytes(ops[1].addr, uint64(ops[0].reg.Size().SizeInBytes()))
		if err != nil {
			return errors.Wrap(err, "ldr")
		}
		i.Regs.Set(ops[0].reg, ast.ImmediateFromBytes(ops[0].reg.Size(), buf))
	case ast.WStr:
		v := i.Regs.Get(ops[0].reg)
		buf := make([]byte, v.Size().SizeInBytes())
		v.WriteInto(buf)
		if err := i.Mem.WriteBytes(ops[1].addr, buf); err != nil {
			return errors.Wrap(err, "str")
		}
	case ast.WSti:
		imm := ops[1].imm
		buf := make([]byte, imm.Size().SizeInBytes())
		imm.WriteInto(buf)
		if err := i.Mem.WriteBytes(ops[2].addr, buf); err != nil {
			return errors.Wrap(err, "sti")
		}
	case ast.WPushImm:
		if err := i.Push(ops[1].imm); err != nil {
			return err
		}
	case ast.WPushReg:
		if err := i.Push(i.Regs.Get(ops[1].reg)); err != nil {
			return err
		}
	case ast.WPushAddr:
		buf, err := i.Mem.ReadBytes(ops[1].addr, uint64(ops[0].size.SizeInBytes()))
		if err != nil {
			return errors.Wrap(err, "push")
		}
		if err := i.Push(ast.ImmediateFromBytes(ops[0].size, buf)); err != nil {
			return err
		}
	case ast.WPopReg:
		v, err := i.Pop(ops[0].size)
		if err != nil {
			return err
		}
		i.Regs.Set(ops[1].reg, v)
	case ast.WPopAddr:
		v, err := i.Pop(ops[0].size)
		if err != nil {
			return err
		}
		buf := make([]byte, v.Size().SizeInBytes())
		v.WriteInto(buf)
		if err := i.Mem.WriteBytes(ops[1].addr, buf); err != nil {
			return errors.Wrap(err, "pop")
		}
	case ast.WCmpRegReg:
		i.execCmp(ops[0].reg, i.Regs.Get(ops[1].reg))
	case ast.WCmpRegImm:
		i.execCmp(ops[0].reg, ops[1].imm)
	case ast.WJmpImm, ast.WJeqImm, ast.WJneImm, ast.WJltImm, ast.WJgtImm, ast.WJleImm, ast.WJgeImm:
		if i.branchTaken(op) {
			i.Regs.SetIP(ops[0].imm.AsU64())
		}
	case ast.WJmpReg, ast.WJeqReg, ast.WJneReg, ast.WJltReg, ast.WJgtReg, ast.WJleReg, ast.WJgeReg:
		target := i.Regs.Get(ops[0].reg).AsU64()
		if i.branchTaken(op) {
			i.Regs.SetIP(target)
		}
	case ast.WCallImm:
		if err := i.Push(ast.QWordImm(i.Regs.IP())); err != nil {
			return err
		}
		i.Regs.SetIP(ops[0].imm.AsU64())
	case ast.WCallReg:
		target := i.Regs.Get(ops[0].reg).AsU64()
		if err := i.Push(ast.QWordImm(i.Regs.IP())); err != nil {
			return err
		}
		i.Regs.SetIP(target)
	case ast.WCallEx:
		if err := i.dispatchCallEx(ops[0].str); err != nil {
			return err
		}
	case ast.WRet:
		ret, err := i.Pop(ast.QWord)
		if err != nil {
			return err
		}
		i.Regs.SetIP(ret.AsU64())
	case ast.WInc:
		i.Regs.Set(ops[0].reg, addImmediate(i.Regs.Get(ops[0].reg), 1))
	case ast.WDec:
		i.Regs.Set(ops[0].reg, addImmediate(i.Regs.Get(ops[0].reg), -1))
	case ast.WNeg:
		i.Regs.Set(ops[0].reg, negImmediate(i.Regs.Get(ops[0].reg)))
	case ast.WSyscall:
		if err := i.dispatchSyscall(); err != nil {
			return err
		}
	case ast.WHlt:
		i.halted = true
	default:
		if base, isRegImm, ok := ast.ArithWireOpKind(op); ok {
			var src2 ast.Immediate
			if isRegImm {
				src2 = ops[2].imm
			} else {
				src2 = i.Regs.Get(ops[2].reg)
			}
			if err := i.execArith(base, ops[0].reg, ops[1].reg, src2); err != nil {
				return err
			}
			break
		}
		return errors.Errorf("unimplemented opcode %s", op)
	}

	i.insCount++
	return nil
}
