// This file is part of nyx, a small register machine and toolchain.
//
// Adapted from github.com/db47h/ngaro's vm.Instance/Option pattern: a
// struct built by New plus functional options, widened from a single flat
// Cell image and I/O port bank to a multi-bus MMU, a wide register file
// and a syscall table.

package vm

import (
	"github.com/pkg/errors"
)

// SyscallHandler implements one entry of the syscall table dispatched by
// the `syscall` instruction, selected by the value of register q15.
type SyscallHandler func(i *Instance) error

// Instance is a Nyx virtual machine instance: register file, address
// space and syscall table, plus the bookkeeping the fetch/decode/dispatch
// loop in core.go needs.
type Instance struct {
	Regs      Registers
	Mem       MMU
	insCount  int64
	eq, lt    bool
	halted    bool
	exitCode  int32
	syscalls  map[uint64]SyscallHandler
	libraries []extensionLibrary

	heap     *PlainBlock
	heapBase uint64
	heapNext uint64

	files  map[uint64]fileHandle
	nextFD uint64
}

// Option configures an Instance at construction time.
type Option func(*Instance) error

// WithMemorySize appends a zero-filled PlainBlock of the given size named
// "main" to the instance's address space. Call New without this option to
// build an instance whose buses you add yourself (e.g. for tests that want
// to inspect a specific PlainBlock).
func WithMemorySize(size uint64) Option {
	return func(i *Instance) error {
		i.Mem.AddBus(NewPlainBlock("main", size))
		return nil
	}
}

// WithSyscall registers a handler for the given syscall number, overriding
// any default registered by New.
func WithSyscall(n uint64, h SyscallHandler) Option {
	return func(i *Instance) error {
		i.syscalls[n] = h
		return nil
	}
}

// WithHeapSize appends a zero-filled PlainBlock named "heap" after the
// current address space and makes it available to the malloc/free
// syscalls as a bump allocator. Without this option, malloc always fails.
func WithHeapSize(size uint64) Option {
	return func(i *Instance) error {
		i.heapBase = i.Mem.Size()
		i.heap = NewPlainBlock("heap", size)
		i.Mem.AddBus(i.heap)
		i.heapNext = i.heapBase
		return nil
	}
}

// WithExtension registers a native extension function under name, callable
// from assembly via `.extern name` + `call` (rewritten to `call_ex` at
// assembly time) or a direct `call_ex "name"`. Normally extensions are
// discovered from a shared object with LoadExtension/load_external; this
// option exists so tests and embedders can register Go functions directly,
// as one more library searched by call_ex alongside any loaded plugins.
func WithExtension(name string, fn ExtensionFunc) Option {
	return func(i *Instance) error {
		for _, lib := range i.libraries {
			if fl, ok := lib.(funcLibrary); ok {
				fl[name] = fn
				return nil
			}
		}
		i.libraries = append(i.libraries, funcLibrary{name: fn})
		return nil
	}
}

// New builds a Nyx VM instance ready to load a program into. The entry
// point (Regs.SetIP) and stack pointer (Regs.SetSP, conventionally
// initialized to the memory size so the stack grows down from the top of
// memory) are left at zero; callers use Load or set them explicitly.
func New(opts ...Option) (*Instance, error) {
	i := &Instance{
		syscalls: make(map[uint64]SyscallHandler),
		files:    make(map[uint64]fileHandle),
		nextFD:   3, // 0, 1, 2 reserved for stdin/stdout/stderr
	}
	registerDefaultSyscalls(i)
	if err := i.SetOptions(opts...); err != nil {
		return nil, err
	}
	return i, nil
}

// SetOptions applies additional options to an already constructed Instance.
func (i *Instance) SetOptions(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return err
		}
	}
	return nil
}

// Load places an assembled image's text||data payload at address 0 of the
// instance's memory, sets the instruction pointer to the image's entry
// offset, and initializes the stack pointer to the top of memory.
func (i *Instance) Load(entry uint64, payload []byte) error {
	if uint64(len(payload)) > i.Mem.Size() {
		return errors.Errorf("image size %d exceeds memory size %d", len(payload), i.Mem.Size())
	}
	if err := i.Mem.WriteBytes(0, payload); err != nil {
		return errors.Wrap(err, "load image")
	}
	i.Regs.SetIP(entry)
	i.Regs.SetSP(i.Mem.Size())
	return nil
}

// InstructionCount returns the number of instructions executed so far.
func (i *Instance) InstructionCount() int64 { return i.insCount }

// ExitCode returns the value passed to the exit syscall, or 0 if the VM
// halted via `hlt` or has not yet stopped.
func (i *Instance) ExitCode() int32 { return i.exitCode }

// Halted reports whether the run loop has stopped.
func (i *Instance) Halted() bool { return i.halted }
