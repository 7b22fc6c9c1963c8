package main

import "github.com/itisrazza/ClankerOS/kernel/kmain"

var (
	multibootMagic   uint32
	multibootInfoPtr uintptr
	kernelStart      uintptr
	kernelEnd        uintptr
)

// main makes a dummy call to the actual kernel main entrypoint function. It
// is intentionally defined to prevent the Go compiler from optimizing away the
// real kernel code.
//
// Global variables are passed as arguments to Kmain to prevent the compiler
// from inlining the actual call and removing Kmain from the generated .o file.
//
// The rt0 assembly code never calls main; it sets up a 16K stack, pushes the
// multiboot registers and the kernel image bounds and jumps directly to Kmain.
func main() {
	kmain.Kmain(multibootMagic, multibootInfoPtr, kernelStart, kernelEnd)
}
