// Package pit drives the 8253/8254 programmable interval timer. Channel 0 is
// programmed as a square-wave generator raising IRQ 0 at a fixed rate; the
// resulting tick stream is what drives preemptive scheduling.
package pit

import (
	"github.com/itisrazza/ClankerOS/kernel/cpu"
	"github.com/itisrazza/ClankerOS/kernel/irq"
	"github.com/itisrazza/ClankerOS/kernel/sync"
)

const (
	// baseFrequency is the PIT input clock in Hz.
	baseFrequency = 1193182

	channel0DataPort = uint16(0x40)
	commandPort      = uint16(0x43)

	// cmdSquareWave selects channel 0, lobyte/hibyte access, mode 3
	// (square wave generator), binary counting.
	cmdSquareWave = uint8(0x36)

	// timerLine is the hardware interrupt line the PIT is wired to.
	timerLine = uint8(0)
)

// TickHandler is the signature for the timer's tick sink. The handler
// receives the mutable interrupt frame of the tick so it can switch the
// interrupted context.
type TickHandler func(*irq.Frame)

var (
	ticks       uint64
	frequency   uint32
	tickHandler TickHandler

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	portWriteByteFn      = cpu.PortWriteByte
	handleIRQWithFrameFn = irq.HandleIRQWithFrame
	enableIRQFn          = irq.EnableIRQ
	criticalFn           = sync.WithInterruptsDisabled
)

// Init programs the timer to interrupt at the requested frequency, registers
// its interrupt handler on IRQ 0 and unmasks the line. The divisor derived
// from the requested frequency is clamped to [1, 65535]; the actual
// programmed frequency is returned.
func Init(freqHz uint32) uint32 {
	divisor := uint32(1)
	if freqHz != 0 {
		divisor = baseFrequency / freqHz
	}
	if divisor < 1 {
		divisor = 1
	}
	if divisor > 65535 {
		divisor = 65535
	}

	frequency = baseFrequency / divisor

	portWriteByteFn(commandPort, cmdSquareWave)
	portWriteByteFn(channel0DataPort, uint8(divisor&0xFF))
	portWriteByteFn(channel0DataPort, uint8((divisor>>8)&0xFF))

	handleIRQWithFrameFn(timerLine, tickISR)
	enableIRQFn(timerLine)

	return frequency
}

// SetTickHandler registers the single tick sink invoked on every timer
// interrupt, replacing any previous registration.
func SetTickHandler(handler TickHandler) {
	tickHandler = handler
}

// Ticks returns the number of timer interrupts observed since boot. The
// 64-bit counter cannot be read in one instruction on this CPU, so the read
// is done with the timer interrupt masked.
func Ticks() uint64 {
	var snapshot uint64
	criticalFn(func() {
		snapshot = ticks
	})
	return snapshot
}

// Frequency returns the actual programmed timer frequency in Hz.
func Frequency() uint32 {
	return frequency
}

// tickISR runs in interrupt context with interrupts masked.
func tickISR(frame *irq.Frame) {
	ticks++

	if tickHandler != nil {
		tickHandler(frame)
	}
}
