// This file is part of nyx, a small register machine and toolchain.
//
// The two-pass assembler: a label table, a fixup table of patch sites
// (section, byte offset, size, label) recorded during a single left-to-right
// walk of the statement list, and a second pass that back-patches every
// fixup once every label's final address is known. Grounded on
// db47h/ngaro's asm/parser.go label/labelSite bookkeeping
// (useLabel/labels[name].uses), widened from single-width Forth cell
// patches to Nyx's variable-width operand encoding.
package asm

import (
	"encoding/binary"

	"github.com/ciathefed/nyx/ast"
	"github.com/ciathefed/nyx/internal/diag"
)

type labelInfo struct {
	defined bool
	section ast.SectionKind
	addr    uint64
	span    diag.Span
}

type fixup struct {
	section ast.SectionKind
	addr    uint64 // byte offset within that section's buffer
	size    ast.DataSize
	label   int
	span    diag.Span
}

// assembler walks a preprocessed, parsed statement list and produces a
// final image (header || text || data).
type assembler struct {
	interner *ast.Interner
	src      string // full source text, for diagnostics; may be empty
	filename string

	b       builder
	section ast.SectionKind
	labels  map[int]*labelInfo
	fixups  []fixup
	externs map[int]bool

	hasEntry     bool
	entryIsLabel bool
	entryName    int
	entryAddr    uint64
	entrySpan    diag.Span
}

func newAssembler(interner *ast.Interner, filename, src string) *assembler {
	return &assembler{
		interner: interner,
		src:      src,
		filename: filename,
		labels:   make(map[int]*labelInfo),
		externs:  make(map[int]bool),
	}
}

func (a *assembler) errf(span diag.Span, format string, args ...interface{}) error {
	return diag.New(a.src, span, format, args...)
}

// Assemble encodes stmts into a final linked image. Extern declarations are
// pre-scanned before the main encoding pass so that `call NAME` resolves to
// call_ex regardless of whether `.extern NAME` appears before or after the
// call site.
func (a *assembler) Assemble(stmts []ast.Stmt) ([]byte, error) {
	for _, s := range stmts {
		if ext, ok := s.(ast.ExternStmt); ok {
			a.externs[ext.Name] = true
		}
	}

	for _, s := range stmts {
		if err := a.encodeStmt(s); err != nil {
			return nil, err
		}
	}

	dataBase := a.b.Len(ast.TextSection)
	finalAddr := func(l *labelInfo) uint64 {
		if l.section == ast.DataSection {
			return l.addr + dataBase
		}
		return l.addr
	}

	for name, l := range a.labels {
		if !l.defined {
			return nil, a.errf(l.span, "undefined label %q", a.interner.Lookup(name))
		}
	}
	for _, fx := range a.fixups {
		l := a.labels[fx.label]
		a.b.PatchAt(fx.section, fx.addr, fx.size, finalAddr(l))
	}

	var entry uint64
	if a.hasEntry {
		if a.entryIsLabel {
			l, ok := a.labels[a.entryName]
			if !ok || !l.defined {
				return nil, a.errf(a.entrySpan, "undefined entry label %q", a.interner.Lookup(a.entryName))
			}
			entry = finalAddr(l)
		} else {
			entry = a.entryAddr
		}
	}

	return a.b.Finalize(entry), nil
}

func (a *assembler) defineLabel(name int, span diag.Span) error {
	l, ok := a.labels[name]
	if !ok {
		l = &labelInfo{}
		a.labels[name] = l
	}
	if l.defined {
		return a.errf(span, "label %q redefined (first defined at byte %d)", a.interner.Lookup(name), l.addr)
	}
	l.defined = true
	l.section = a.section
	l.addr = a.b.Len(a.section)
	l.span = span
	return nil
}

// useLabel records a pending reference to name, allocating its labelInfo
// on first use (address resolved later, possibly never if it's undefined).
func (a *assembler) useLabel(name int, span diag.Span) *labelInfo {
	l, ok := a.labels[name]
	if !ok {
		l = &labelInfo{span: span}
		a.labels[name] = l
	}
	return l
}

func (a *assembler) encodeStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case ast.LabelStmt:
		return a.defineLabel(st.Name, st.Span())
	case ast.SectionStmt:
		a.section = st.Kind
	case ast.EntryStmt:
		return a.setEntry(st)
	case ast.ExternStmt:
		a.externs[st.Name] = true
	case ast.DataStmt:
		return a.encodeData(st)
	case ast.AsciiStmt:
		return a.encodeAscii(st)
	case ast.ResStmt:
		return a.encodeRes(st)
	case ast.InstrStmt:
		return a.encodeInstr(st)
	default:
		return a.errf(s.Span(), "unhandled statement type %T", s)
	}
	return nil
}

// setEntry records `.entry EXPR`: an Identifier defers to the label table at
// link time, anything else must fold to a constant absolute address
// immediately. A later `.entry` statement always overrides an earlier one.
func (a *assembler) setEntry(st ast.EntryStmt) error {
	a.hasEntry = true
	a.entrySpan = st.Span()
	if id, ok := st.Target.(ast.Identifier); ok {
		a.entryIsLabel = true
		a.entryName = id.ID
		a.useLabel(id.ID, st.Span())
		return nil
	}
	addr, err := a.evalConstInt(st.Target)
	if err != nil {
		return err
	}
	a.entryIsLabel = false
	a.entryAddr = uint64(addr)
	return nil
}

func (a *assembler) encodeData(st ast.DataStmt) error {
	for _, v := range st.Values {
		if err := a.encodeSizedValue(a.section, st.Size, v); err != nil {
			return err
		}
	}
	return nil
}

func (a *assembler) encodeAscii(st ast.AsciiStmt) error {
	s := a.interner.Lookup(st.String)
	buf := []byte(s)
	if st.NullTerminate {
		buf = append(buf, 0)
	}
	a.b.Write(a.section, buf)
	return nil
}

func (a *assembler) encodeRes(st ast.ResStmt) error {
	n, err := a.evalConstInt(st.Count)
	if err != nil {
		return err
	}
	a.b.Grow(a.section, uint64(n)*uint64(st.Size.SizeInBytes()))
	return nil
}

// encodeSizedValue writes one value of the given size, either as a literal
// constant or, for identifiers, as a fixed-up qword address (identifiers
// are only meaningful as label references, so only QWord-sized data
// statements may reference one).
func (a *assembler) encodeSizedValue(kind ast.SectionKind, size ast.DataSize, v ast.Expr) error {
	if id, ok := v.(ast.Identifier); ok {
		if size != ast.QWord {
			return a.errf(v.Span(), "label reference must be qword-sized, got %s", size)
		}
		a.useLabel(id.ID, v.Span())
		addr := a.b.Grow(kind, 8)
		a.fixups = append(a.fixups, fixup{section: kind, addr: addr, size: ast.QWord, label: id.ID, span: v.Span()})
		return nil
	}
	imm, err := a.evalConstImmediate(v, size)
	if err != nil {
		return err
	}
	buf := make([]byte, size.SizeInBytes())
	imm.WriteInto(buf)
	a.b.Write(kind, buf)
	return nil
}

// encodeState carries the local context a single instruction's operand list
// accumulates as it's encoded left to right: the size of the first register
// operand seen (sizes an OperandImmDest that follows) and the value of a
// preceding OperandDataSize tag (sizes an OperandImmSize that follows).
type encodeState struct {
	haveReg  bool
	regSize  ast.DataSize
	haveSize bool
	curSize  ast.DataSize
}

// resolveWireOp picks the concrete WireOp a source instruction encodes to,
// based on its mnemonic and its operands' shapes. This is the one place a
// source mnemonic like `mov` or `add` is widened into the several distinct
// wire encodings spec.md §6 lists for it.
func (a *assembler) resolveWireOp(st ast.InstrStmt) (ast.WireOp, error) {
	switch st.Op {
	case ast.OpNop:
		return ast.WNop, nil
	case ast.OpRet:
		return ast.WRet, nil
	case ast.OpSyscall:
		return ast.WSyscall, nil
	case ast.OpHlt:
		return ast.WHlt, nil
	case ast.OpLoadExternal:
		return ast.WLoadExternal, nil
	case ast.OpCallEx:
		return ast.WCallEx, nil
	case ast.OpLdr:
		return ast.WLdr, nil
	case ast.OpStr:
		return ast.WStr, nil
	case ast.OpSti:
		return ast.WSti, nil
	case ast.OpInc:
		return ast.WInc, nil
	case ast.OpDec:
		return ast.WDec, nil
	case ast.OpNeg:
		return ast.WNeg, nil
	case ast.OpMov:
		if isRegisterOperand(st, 1) {
			return ast.WMovRegReg, nil
		}
		return ast.WMovRegImm, nil
	case ast.OpCmp:
		if isRegisterOperand(st, 1) {
			return ast.WCmpRegReg, nil
		}
		return ast.WCmpRegImm, nil
	case ast.OpPush:
		return a.resolvePush(st)
	case ast.OpPop:
		return a.resolvePop(st)
	case ast.OpCall:
		return a.resolveCall(st)
	}
	if regreg, regimm, ok := ast.ArithWireOps(st.Op); ok {
		if isRegisterOperand(st, 2) {
			return regreg, nil
		}
		return regimm, nil
	}
	if immOp, regOp, ok := ast.JumpWireOps(st.Op); ok {
		if isRegisterOperand(st, 0) {
			return regOp, nil
		}
		return immOp, nil
	}
	return 0, a.errf(st.Span(), "unknown opcode %s", st.Op)
}

func isRegisterOperand(st ast.InstrStmt, idx int) bool {
	if idx >= len(st.Operands) {
		return false
	}
	_, ok := st.Operands[idx].(ast.RegisterExpr)
	return ok
}

func (a *assembler) resolvePush(st ast.InstrStmt) (ast.WireOp, error) {
	if len(st.Operands) != 2 {
		return 0, a.errf(st.Span(), "push expects a size and a value, got %d operand(s)", len(st.Operands))
	}
	switch st.Operands[1].(type) {
	case ast.RegisterExpr:
		return ast.WPushReg, nil
	case ast.Address:
		return ast.WPushAddr, nil
	default:
		return ast.WPushImm, nil
	}
}

func (a *assembler) resolvePop(st ast.InstrStmt) (ast.WireOp, error) {
	if len(st.Operands) != 2 {
		return 0, a.errf(st.Span(), "pop expects a size and a destination, got %d operand(s)", len(st.Operands))
	}
	switch st.Operands[1].(type) {
	case ast.RegisterExpr:
		return ast.WPopReg, nil
	case ast.Address:
		return ast.WPopAddr, nil
	default:
		return 0, a.errf(st.Span(), "pop destination must be a register or an address")
	}
}

// resolveCall additionally rewrites `call NAME` to call_ex when NAME was
// declared `.extern`, per spec.md §4.2's "External calls" rule.
func (a *assembler) resolveCall(st ast.InstrStmt) (ast.WireOp, error) {
	if len(st.Operands) != 1 {
		return 0, a.errf(st.Span(), "call expects 1 operand, got %d", len(st.Operands))
	}
	switch v := st.Operands[0].(type) {
	case ast.RegisterExpr:
		return ast.WCallReg, nil
	case ast.Identifier:
		if a.externs[v.ID] {
			return ast.WCallEx, nil
		}
		return ast.WCallImm, nil
	default:
		return ast.WCallImm, nil
	}
}

func (a *assembler) encodeInstr(st ast.InstrStmt) error {
	wop, err := a.resolveWireOp(st)
	if err != nil {
		return err
	}

	// `call NAME` where NAME is an extern bypasses the generic operand
	// encoder entirely: the wire form is call_ex followed directly by the
	// extern's own name bytes, not the StringLiteral OperandCString spec
	// (that shape is reserved for `call_ex "name"` written directly, or
	// `load_external "path"`).
	if wop == ast.WCallEx && st.Op == ast.OpCall {
		id := st.Operands[0].(ast.Identifier)
		a.b.WriteByte(a.section, byte(ast.WCallEx))
		a.b.Write(a.section, append([]byte(a.interner.Lookup(id.ID)), 0))
		return nil
	}

	spec, ok := ast.InstrEncoding[wop]
	if !ok {
		return a.errf(st.Span(), "unknown wire opcode %s", wop)
	}
	if len(spec.Kinds) != len(st.Operands) {
		return a.errf(st.Span(), "%s expects %d operand(s), got %d", st.Op, len(spec.Kinds), len(st.Operands))
	}
	a.b.WriteByte(a.section, byte(wop))
	var es encodeState
	for idx, kind := range spec.Kinds {
		if err := a.encodeOperand(kind, st.Operands[idx], &es); err != nil {
			return err
		}
	}
	return nil
}

func (a *assembler) encodeOperand(kind ast.OperandKind, e ast.Expr, es *encodeState) error {
	switch kind {
	case ast.OperandRegister:
		reg, ok := e.(ast.RegisterExpr)
		if !ok {
			return a.errf(e.Span(), "expected register operand")
		}
		a.b.WriteByte(a.section, byte(reg.Reg))
		if !es.haveReg {
			es.haveReg = true
			es.regSize = reg.Reg.Size()
		}
		return nil
	case ast.OperandAddress:
		return a.encodeAddressOperand(e)
	case ast.OperandDataSize:
		ds, ok := e.(ast.DataSizeExpr)
		if !ok {
			return a.errf(e.Span(), "expected a data size keyword")
		}
		a.b.WriteByte(a.section, byte(ds.Size))
		es.haveSize = true
		es.curSize = ds.Size
		return nil
	case ast.OperandImmDest:
		if !es.haveReg {
			return a.errf(e.Span(), "internal: no preceding register operand to size this immediate")
		}
		return a.encodeRawImmediate(e, es.regSize)
	case ast.OperandImmSize:
		if !es.haveSize {
			return a.errf(e.Span(), "internal: no preceding size operand to size this immediate")
		}
		return a.encodeRawImmediate(e, es.curSize)
	case ast.OperandImm8:
		return a.encodeRawImmediate(e, ast.QWord)
	case ast.OperandCString:
		s, ok := e.(ast.StringLiteral)
		if !ok {
			return a.errf(e.Span(), "expected a string literal")
		}
		a.b.Write(a.section, append([]byte(a.interner.Lookup(s.ID)), 0))
		return nil
	default:
		return a.errf(e.Span(), "unsupported operand kind")
	}
}

// encodeRawImmediate writes exactly size.SizeInBytes() raw bytes: an
// identifier is a forward/backward label fixup of that width, anything else
// is a constant coerced to size. Unlike a self-describing operand, no size
// tag precedes the value; the caller (or an earlier OperandDataSize/
// OperandRegister in the same instruction) already fixed the width.
func (a *assembler) encodeRawImmediate(e ast.Expr, size ast.DataSize) error {
	if id, ok := e.(ast.Identifier); ok {
		a.useLabel(id.ID, e.Span())
		addr := a.b.Grow(a.section, uint64(size.SizeInBytes()))
		a.fixups = append(a.fixups, fixup{section: a.section, addr: addr, size: size, label: id.ID, span: e.Span()})
		return nil
	}
	imm, err := a.evalConstImmediate(e, size)
	if err != nil {
		return err
	}
	buf := make([]byte, size.SizeInBytes())
	imm.WriteInto(buf)
	a.b.Write(a.section, buf)
	return nil
}

// encodeAddressOperand writes an Address operand: mode byte, base (register
// id byte or 8-byte immediate), and an 8-byte signed offset (zero when the
// source omitted `+ offset`), matching spec.md §6's Addr grammar exactly.
func (a *assembler) encodeAddressOperand(e ast.Expr) error {
	addr, ok := e.(ast.Address)
	if !ok {
		return a.errf(e.Span(), "expected address operand")
	}
	switch base := addr.Base.(type) {
	case ast.RegisterExpr:
		a.b.WriteByte(a.section, byte(ast.AddrRegisterBase))
		a.b.WriteByte(a.section, byte(base.Reg))
	default:
		a.b.WriteByte(a.section, byte(ast.AddrImmediateBase))
		if id, ok := addr.Base.(ast.Identifier); ok {
			a.useLabel(id.ID, addr.Base.Span())
			off := a.b.Grow(a.section, 8)
			a.fixups = append(a.fixups, fixup{section: a.section, addr: off, size: ast.QWord, label: id.ID, span: addr.Base.Span()})
		} else {
			v, err := a.evalConstImmediate(addr.Base, ast.QWord)
			if err != nil {
				return err
			}
			buf := make([]byte, 8)
			v.WriteInto(buf)
			a.b.Write(a.section, buf)
		}
	}
	var off int64
	if addr.Offset != nil {
		v, err := a.evalConstInt(addr.Offset)
		if err != nil {
			return err
		}
		off = v
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(off))
	a.b.Write(a.section, buf)
	return nil
}

// evalConstInt evaluates a compile-time-constant integer expression:
// literals and +,-,*,/,&,|,^ combinations thereof (unary and binary), with
// no label references (labels are not known to be constant until link
// time, and resb/offset counts must be resolvable immediately).
func (a *assembler) evalConstInt(e ast.Expr) (int64, error) {
	switch v := e.(type) {
	case ast.IntegerLiteral:
		return v.Value, nil
	case ast.UnaryOp:
		x, err := a.evalConstInt(v.Operand)
		if err != nil {
			return 0, err
		}
		if v.Op == ast.BitNot {
			return ^x, nil
		}
		return -x, nil
	case ast.BinaryOp:
		l, err := a.evalConstInt(v.Left)
		if err != nil {
			return 0, err
		}
		r, err := a.evalConstInt(v.Right)
		if err != nil {
			return 0, err
		}
		switch v.Op {
		case ast.Add:
			return l + r, nil
		case ast.Sub:
			return l - r, nil
		case ast.Mul:
			return l * r, nil
		case ast.Div:
			if r == 0 {
				return 0, a.errf(e.Span(), "division by zero in constant expression")
			}
			return l / r, nil
		case ast.BitAnd:
			return l & r, nil
		case ast.BitOr:
			return l | r, nil
		case ast.BitXor:
			return l ^ r, nil
		}
	}
	return 0, a.errf(e.Span(), "expected a constant integer expression")
}

// evalConstImmediate evaluates e as a constant and coerces it to size.
func (a *assembler) evalConstImmediate(e ast.Expr, size ast.DataSize) (ast.Immediate, error) {
	if fl, ok := e.(ast.FloatLiteral); ok {
		if size == ast.Float {
			return ast.FloatImm(float32(fl.Value)), nil
		}
		return ast.DoubleImm(fl.Value), nil
	}
	if ds, ok := e.(ast.DataSizeExpr); ok {
		return ast.ByteImm(byte(ds.Size)), nil
	}
	n, err := a.evalConstInt(e)
	if err != nil {
		return ast.Immediate{}, err
	}
	return ast.QWordImm(uint64(n)).Coerce(size), nil
}
