// Package sync provides the mutual-exclusion primitive for a single-CPU
// kernel: on one processor whose only preemption source is the timer
// interrupt, masking interrupts across a critical section is sufficient.
package sync

import "github.com/itisrazza/ClankerOS/kernel/cpu"

// eflagsIF is the interrupt-enable bit of the FLAGS register.
const eflagsIF = uint32(1 << 9)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	readEFlagsFn        = cpu.ReadEFlags
	enableInterruptsFn  = cpu.EnableInterrupts
	disableInterruptsFn = cpu.DisableInterrupts
)

// InterruptGuard remembers whether interrupts were enabled when a critical
// section was entered so that nested sections restore the right state.
type InterruptGuard struct {
	wasEnabled bool
}

// Disable enters a critical section by masking interrupts and returns a
// guard capturing the previous interrupt state.
func Disable() InterruptGuard {
	guard := InterruptGuard{wasEnabled: readEFlagsFn()&eflagsIF != 0}
	disableInterruptsFn()
	return guard
}

// Restore leaves the critical section, unmasking interrupts only if they
// were enabled when the guard was created.
func (g InterruptGuard) Restore() {
	if g.wasEnabled {
		enableInterruptsFn()
	}
}

// WithInterruptsDisabled runs fn inside a critical section.
func WithInterruptsDisabled(fn func()) {
	guard := Disable()
	fn()
	guard.Restore()
}
