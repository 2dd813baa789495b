// Package asm lexes, parses, preprocesses and assembles Nyx assembly source
// into a linked bytecode image, and disassembles one back into readable
// mnemonics.
//
// Supported mnemonics:
//
//	nop			no operation
//	mov reg, imm/reg	load an immediate or another register into a register
//	ldr reg, [addr]		load memory at addr into a register
//	str reg, [addr]		store a register into memory at addr
//	sti size, imm, [addr]	store a sized immediate into memory at addr
//	push size, reg/imm	push a sized value onto the stack
//	pop size, reg		pop a sized value off the stack into a register
//	add/sub/mul/div dst,src1,src2	arithmetic, dst = src1 OP src2
//	and/or/xor/shl/shr dst,src1,src2	bitwise operations
//	cmp reg, reg/imm	set the eq/lt condition flags
//	jmp/jeq/jne/jlt/jgt/jle/jge imm	branch on the condition flags
//	call imm / ret		subroutine call and return
//	inc reg / dec reg / neg reg	increment, decrement, negate in place
//	syscall			dispatch on the syscall table, selected by register q15
//	call_ex "name"		dispatch a native extension by name
//	load_external "path"	load a shared object's extensions at runtime
//	hlt			stop execution
//
// call to a name declared with .extern is rewritten at assembly time to
// call_ex, carrying the extension's name as a NUL-terminated string in the
// instruction stream rather than a register, so the assembled image needs
// no relocation for it.
//
// Directives:
//
//	.section text|data	switch the active section (.text/.data are aliases)
//	.entry label/addr	set the entry point to a label or an absolute address
//	.extern name		declare a native extension name usable by call
//	db/dw/dd/dq value, ...	emit one or more immediates of a fixed width
//	resb/resw/resd/resq n	reserve n uninitialized units
//	ascii "..." / asciz "..."	emit a string's bytes, asciz NUL-terminated
//
// A later .entry overrides an earlier one. Preprocessor directives
// (#define, #include, #ifdef/#ifndef/#else/#endif, #error) are parsed as
// ordinary statements alongside these and are consumed by the preprocessor
// package before encodeStmt ever sees them; see that package's docs.
//
// Assembling is a two-pass process: encodeStmt walks the parsed statement
// list once, emitting bytes into a text and a data buffer while recording
// a fixup for every operand that names a label whose address isn't known
// yet (a forward jump, a `dq label` pointing at a later definition, ...).
// Once every statement has been encoded, every label's final address is
// known, and a second pass patches every fixup in place.
//
//	img, err := asm.Assemble("hello.nyx", src)
//	if err != nil {
//		log.Fatal(err)
//	}
//	os.WriteFile("hello.nyxbin", img, 0644)
//
// The resulting image is header (8-byte little-endian entry offset) || text
// || data, ready to be handed to vm.LoadImage.
package asm
