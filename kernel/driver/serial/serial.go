// Package serial implements the COM1 serial sink used for early kernel
// diagnostics. The sink stays disabled unless the "earlycon" command line
// flag is present, in which case every write is mirrored to the port.
package serial

import "github.com/itisrazza/ClankerOS/kernel/cpu"

// COM1 base port and register offsets.
const (
	com1Port = uint16(0x3F8)

	regData          = 0 // data register (DLAB=0)
	regIntEnable     = 1 // interrupt enable (DLAB=0), divisor high (DLAB=1)
	regFifoCtrl      = 2
	regLineCtrl      = 3
	regModemCtrl     = 4
	regLineStatus    = 5
	lineStatusTxIdle = 1 << 5
)

var (
	enabled bool

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
)

// Init programs COM1 for 38400 baud, 8 data bits, no parity, one stop bit
// and enables the sink.
func Init() {
	portWriteByteFn(com1Port+regIntEnable, 0x00)  // disable interrupts
	portWriteByteFn(com1Port+regLineCtrl, 0x80)   // enable DLAB
	portWriteByteFn(com1Port+regData, 0x03)       // divisor low byte: 38400 baud
	portWriteByteFn(com1Port+regIntEnable, 0x00)  // divisor high byte
	portWriteByteFn(com1Port+regLineCtrl, 0x03)   // 8 bits, no parity, one stop bit
	portWriteByteFn(com1Port+regFifoCtrl, 0xC7)   // enable FIFO, clear, 14-byte threshold
	portWriteByteFn(com1Port+regModemCtrl, 0x0B)  // OUT2 (IRQ gate), RTS and DTR set

	enabled = true
}

// Enabled returns true if the serial sink has been initialized.
func Enabled() bool {
	return enabled
}

// Writer is the kfmt-compatible sink for the serial port. The zero value is
// ready to use.
type Writer struct{}

// PutChar writes a single byte to COM1, translating \n to \r\n for terminal
// display. Writes are dropped while the sink is disabled.
func (Writer) PutChar(c byte) {
	if !enabled {
		return
	}

	if c == '\n' {
		waitTxIdle()
		portWriteByteFn(com1Port+regData, '\r')
	}

	waitTxIdle()
	portWriteByteFn(com1Port+regData, c)
}

func waitTxIdle() {
	for portReadByteFn(com1Port+regLineStatus)&lineStatusTxIdle == 0 {
	}
}
