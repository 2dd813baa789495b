package vm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ciathefed/nyx/ast"
)

func newTestInstance(t *testing.T, opts ...Option) *Instance {
	t.Helper()
	allOpts := append([]Option{WithMemorySize(1 << 12)}, opts...)
	inst, err := New(allOpts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return inst
}

func TestSyscallMallocBumpsForward(t *testing.T) {
	inst := newTestInstance(t, WithHeapSize(64))
	inst.Regs.Set(ast.Q0, ast.QWordImm(16))
	if err := inst.sysMalloc(); err != nil {
		t.Fatalf("sysMalloc: %v", err)
	}
	first := inst.Regs.Get(ast.Q0).AsU64()
	inst.Regs.Set(ast.Q0, ast.QWordImm(16))
	if err := inst.sysMalloc(); err != nil {
		t.Fatalf("sysMalloc: %v", err)
	}
	second := inst.Regs.Get(ast.Q0).AsU64()
	if second != first+16 {
		t.Errorf("second alloc = %#x, want %#x", second, first+16)
	}
}

func TestSyscallMallocFailsWithoutHeap(t *testing.T) {
	inst := newTestInstance(t)
	inst.Regs.Set(ast.Q0, ast.QWordImm(8))
	if err := inst.sysMalloc(); err != nil {
		t.Fatalf("sysMalloc: %v", err)
	}
	if got := inst.Regs.Get(ast.Q0).AsU64(); got != 0 {
		t.Errorf("malloc without a heap bus should return 0, got %#x", got)
	}
}

func TestSyscallMallocExhaustion(t *testing.T) {
	inst := newTestInstance(t, WithHeapSize(8))
	inst.Regs.Set(ast.Q0, ast.QWordImm(100))
	if err := inst.sysMalloc(); err != nil {
		t.Fatalf("sysMalloc: %v", err)
	}
	if got := inst.Regs.Get(ast.Q0).AsU64(); got != 0 {
		t.Errorf("over-sized allocation should return 0, got %#x", got)
	}
}

func TestSyscallOpenWriteCloseReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	inst := newTestInstance(t)
	pathAddr := uint64(0)
	pathBytes := append([]byte(path), 0)
	if err := inst.Mem.WriteBytes(pathAddr, pathBytes); err != nil {
		t.Fatalf("write path bytes: %v", err)
	}
	msgAddr := uint64(256)
	msg := []byte("hello")
	if err := inst.Mem.WriteBytes(msgAddr, msg); err != nil {
		t.Fatalf("write message bytes: %v", err)
	}

	inst.Regs.Set(ast.Q0, ast.QWordImm(pathAddr))
	inst.Regs.Set(ast.D1, ast.DWordImm(uint32(os.O_CREATE|os.O_WRONLY|os.O_TRUNC)))
	inst.Regs.Set(ast.W2, ast.WordImm(0644))
	if err := inst.sysOpen(); err != nil {
		t.Fatalf("sysOpen: %v", err)
	}
	fd := inst.Regs.Get(ast.Q0).AsU64()
	if fd < 3 {
		t.Fatalf("fd = %d, want >= 3", fd)
	}

	inst.Regs.Set(ast.D0, ast.DWordImm(uint32(fd)))
	inst.Regs.Set(ast.Q1, ast.QWordImm(msgAddr))
	inst.Regs.Set(ast.Q2, ast.QWordImm(uint64(len(msg))))
	if err := inst.sysWrite(); err != nil {
		t.Fatalf("sysWrite: %v", err)
	}
	if n := inst.Regs.Get(ast.Q0).AsU64(); n != uint64(len(msg)) {
		t.Errorf("sysWrite returned %d, want %d", n, len(msg))
	}

	inst.Regs.Set(ast.D0, ast.DWordImm(uint32(fd)))
	if err := inst.sysClose(); err != nil {
		t.Fatalf("sysClose: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("file contents = %q, want %q", got, "hello")
	}
}

func TestSyscallReadUnknownFDFails(t *testing.T) {
	inst := newTestInstance(t)
	inst.Regs.Set(ast.D0, ast.DWordImm(999))
	inst.Regs.Set(ast.Q1, ast.QWordImm(0))
	inst.Regs.Set(ast.Q2, ast.QWordImm(1))
	if err := inst.sysRead(); err != nil {
		t.Fatalf("sysRead: %v", err)
	}
	if got := inst.Regs.Get(ast.Q0).AsU64(); got != ^uint64(0) {
		t.Errorf("sysRead on unknown fd = %#x, want -1", got)
	}
}

func TestSyscallExitReadsByteStatus(t *testing.T) {
	inst := newTestInstance(t)
	inst.Regs.Set(ast.B0, ast.ByteImm(7))
	if err := inst.sysExit(); err != nil {
		t.Fatalf("sysExit: %v", err)
	}
	if inst.ExitCode() != 7 {
		t.Errorf("ExitCode() = %d, want 7", inst.ExitCode())
	}
	if !inst.Halted() {
		t.Error("sysExit should halt the instance")
	}
}
