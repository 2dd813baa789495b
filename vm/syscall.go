// This file is part of nyx, a small register machine and toolchain.
//
// The syscall table: number in register q15 selects a handler, arguments
// are passed in q0/q1/q2 and a status or result is returned in q0.
// Grounded on original_source's collect_syscalls table (open/close/read/
// write) and widened per spec with malloc/free/exit the way ngaro's
// io.go binds default IN/OUT port handlers at New time (registerDefaultSyscalls
// mirrors ngaro's per-port default handler loop in vm.New).

package vm

import (
	"os"

	"github.com/ciathefed/nyx/ast"
	"github.com/pkg/errors"
)

const (
	SyscallOpen  uint64 = 0x00
	SyscallClose uint64 = 0x01
	SyscallRead  uint64 = 0x02
	SyscallWrite uint64 = 0x03
	SyscallMalloc uint64 = 0x04
	SyscallFree  uint64 = 0x05
	SyscallExit  uint64 = 0xFF
)

// fileHandle is either a real OS file (opened by SyscallOpen) or one of
// the three inherited standard streams.
type fileHandle struct {
	f *os.File
}

func registerDefaultSyscalls(i *Instance) {
	i.files[0] = fileHandle{os.Stdin}
	i.files[1] = fileHandle{os.Stdout}
	i.files[2] = fileHandle{os.Stderr}

	i.syscalls[SyscallOpen] = (*Instance).sysOpen
	i.syscalls[SyscallClose] = (*Instance).sysClose
	i.syscalls[SyscallRead] = (*Instance).sysRead
	i.syscalls[SyscallWrite] = (*Instance).sysWrite
	i.syscalls[SyscallMalloc] = (*Instance).sysMalloc
	i.syscalls[SyscallFree] = (*Instance).sysFree
	i.syscalls[SyscallExit] = (*Instance).sysExit
}

// bankRegister returns the register that views bank's general-purpose
// storage the way view does (e.g. bankRegister(ast.D0, 1) is d1): register
// ids cycle byte/word/dword/qword/float/double every 6 ids per bank.
func bankRegister(view ast.Register, bank int) ast.Register {
	return ast.Register(int(view) + bank*6)
}

// argQ, argD, argW and argB read the qword/dword/word/byte view of the
// given general-purpose bank, per spec.md's syscall argument table: each
// syscall's arguments have a fixed, sometimes mixed, width per bank rather
// than always being read as a full qword.
func (i *Instance) argQ(bank int) ast.Immediate {
	return i.Regs.Get(bankRegister(ast.Q0, bank))
}

func (i *Instance) argD(bank int) ast.Immediate {
	return i.Regs.Get(bankRegister(ast.D0, bank))
}

func (i *Instance) argW(bank int) ast.Immediate {
	return i.Regs.Get(bankRegister(ast.W0, bank))
}

func (i *Instance) argB(bank int) ast.Immediate {
	return i.Regs.Get(bankRegister(ast.B0, bank))
}

func (i *Instance) setReturn(v ast.Immediate) {
	i.Regs.Set(ast.Q0, v)
}

// dispatchSyscall reads the syscall number out of q15 and invokes the
// matching handler, or fails if none is registered.
func (i *Instance) dispatchSyscall() error {
	n := i.Regs.Get(ast.Q15).AsU64()
	h, ok := i.syscalls[n]
	if !ok {
		return errors.Errorf("unimplemented syscall %#x", n)
	}
	return h(i)
}

// readCString reads a NUL-terminated string starting at addr.
func (i *Instance) readCString(addr uint64) (string, error) {
	var buf []byte
	for {
		b, err := i.Mem.ReadByte(addr)
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
		addr++
	}
	return string(buf), nil
}

// sysOpen reads a path pointer from q0, open(2) flags from d1 and a mode
// from w2, per spec.md's syscall argument table.
func (i *Instance) sysOpen() error {
	path, err := i.readCString(i.argQ(0).AsU64())
	if err != nil {
		return errors.Wrap(err, "sys_open")
	}
	flags := int(i.argD(1).AsU64())
	mode := os.FileMode(i.argW(2).AsU64())
	f, err := os.OpenFile(path, flags, mode)
	if err != nil {
		i.setReturn(ast.QWordImm(^uint64(0)))
		return nil
	}
	fd := i.nextFD
	i.nextFD++
	i.files[fd] = fileHandle{f}
	i.setReturn(ast.QWordImm(fd))
	return nil
}

func (i *Instance) sysClose() error {
	fd := i.argD(0).AsU64()
	fh, ok := i.files[fd]
	if !ok {
		i.setReturn(ast.QWordImm(^uint64(0)))
		return nil
	}
	delete(i.files, fd)
	if fh.f != os.Stdin && fh.f != os.Stdout && fh.f != os.Stderr {
		fh.f.Close()
	}
	i.setReturn(ast.QWordImm(0))
	return nil
}

func (i *Instance) sysRead() error {
	fd := i.argD(0).AsU64()
	addr := i.argQ(1).AsU64()
	length := i.argQ(2).AsU64()
	fh, ok := i.files[fd]
	if !ok {
		i.setReturn(ast.QWordImm(^uint64(0)))
		return nil
	}
	buf := make([]byte, length)
	n, err := fh.f.Read(buf)
	if n > 0 {
		if werr := i.Mem.WriteBytes(addr, buf[:n]); werr != nil {
			return errors.Wrap(werr, "sys_read")
		}
	}
	if err != nil && n == 0 {
		i.setReturn(ast.QWordImm(0))
		return nil
	}
	i.setReturn(ast.QWordImm(uint64(n)))
	return nil
}

func (i *Instance) sysWrite() error {
	fd := i.argD(0).AsU64()
	addr := i.argQ(1).AsU64()
	length := i.argQ(2).AsU64()
	fh, ok := i.files[fd]
	if !ok {
		i.setReturn(ast.QWordImm(^uint64(0)))
		return nil
	}
	buf, err := i.Mem.ReadBytes(addr, length)
	if err != nil {
		return errors.Wrap(err, "sys_write")
	}
	n, err := fh.f.Write(buf)
	if err != nil {
		i.setReturn(ast.QWordImm(^uint64(0)))
		return nil
	}
	i.setReturn(ast.QWordImm(uint64(n)))
	return nil
}

func (i *Instance) sysMalloc() error {
	size := i.argQ(0).AsU64()
	if i.heap == nil || i.heapNext+size > i.heapBase+i.heap.Size() {
		i.setReturn(ast.QWordImm(0))
		return nil
	}
	addr := i.heapNext
	i.heapNext += size
	i.setReturn(ast.QWordImm(addr))
	return nil
}

// sysFree is a no-op: the heap is a bump allocator with no free list, the
// way a small VM's toolchain sample keeps its runtime obvious. Documented
// as an accepted limitation rather than a real allocator.
func (i *Instance) sysFree() error {
	i.setReturn(ast.QWordImm(0))
	return nil
}

func (i *Instance) sysExit() error {
	i.exitCode = int32(i.argB(0).AsU64())
	i.halted = true
	return nil
}
