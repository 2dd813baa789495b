// Package vm implements the Nyx virtual machine: a 16-bank general purpose
// and floating point register file, a bus-addressed memory management
// unit, and a fetch/decode/dispatch loop over the bytecode the asm
// package produces.
//
// A minimal program:
//
//	entry, payload, err := vm.LoadImageFile("hello.nyxbin")
//	if err != nil {
//		log.Fatal(err)
//	}
//	inst, err := vm.New(vm.WithMemorySize(1 << 20))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := inst.Load(entry, payload); err != nil {
//		log.Fatal(err)
//	}
//	if err := inst.Run(); err != nil {
//		log.Fatal(err)
//	}
//
// The instruction pointer is not incremented in a single place: each
// operand fetch in core.go advances it as bytes are consumed, the same way
// ngaro's PC bookkeeping is spread across its opcode switch rather than
// computed up front.
package vm
