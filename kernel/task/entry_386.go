package task

import "unsafe"

// taskTrampoline is the first code every new task executes. The synthetic
// interrupt frame built by Create unwinds to it with the task's entry
// address as the only word on the stack; the trampoline enables interrupts,
// pops the address, calls it and falls into Exit if the entry ever returns.
// Implemented in entry_386.s.
func taskTrampoline()

// trampolinePC returns the address of taskTrampoline for use as the initial
// instruction pointer of a synthetic frame. Implemented in entry_386.s.
func trampolinePC() uint32

// funcPC extracts the code pointer from a func value. The value must not be
// a closure: the trampoline invokes the address directly without a closure
// context.
func funcPC(fn func()) uint32 {
	return uint32(**(**uintptr)(unsafe.Pointer(&fn)))
}
