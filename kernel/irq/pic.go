package irq

import "github.com/itisrazza/ClankerOS/kernel/cpu"

// 8259 programmable interrupt controller ports.
const (
	picMasterCommand = uint16(0x20)
	picMasterData    = uint16(0x21)
	picSlaveCommand  = uint16(0xA0)
	picSlaveData     = uint16(0xA1)

	// ioDelayPort is an unused port; writing to it gives the PIC time to
	// latch each initialization word on older hardware.
	ioDelayPort = uint16(0x80)

	picEOI = uint8(0x20)

	icw1Init = uint8(0x10)
	icw1ICW4 = uint8(0x01)
	icw48086 = uint8(0x01)

	// irqBaseVector is the CPU vector hardware line 0 is remapped to.
	irqBaseVector = 32
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
)

// picInit remaps the two cascaded 8259 controllers so that hardware lines
// 0-15 raise CPU vectors 32-47 and masks every line. Lines are unmasked
// individually via EnableIRQ once a handler is in place.
func picInit() {
	portWriteByteFn(picMasterCommand, icw1Init|icw1ICW4)
	ioWait()
	portWriteByteFn(picSlaveCommand, icw1Init|icw1ICW4)
	ioWait()

	// ICW2: vector offsets.
	portWriteByteFn(picMasterData, irqBaseVector)
	ioWait()
	portWriteByteFn(picSlaveData, irqBaseVector+8)
	ioWait()

	// ICW3: master has a slave on line 2; the slave's cascade identity is 2.
	portWriteByteFn(picMasterData, 0x04)
	ioWait()
	portWriteByteFn(picSlaveData, 0x02)
	ioWait()

	// ICW4: 8086 mode.
	portWriteByteFn(picMasterData, icw48086)
	ioWait()
	portWriteByteFn(picSlaveData, icw48086)
	ioWait()

	// Mask all lines.
	portWriteByteFn(picMasterData, 0xFF)
	portWriteByteFn(picSlaveData, 0xFF)
}

// picEOISignal acknowledges an interrupt on the given hardware line: always
// to the master controller and additionally to the slave for lines >= 8.
func picEOISignal(line uint8) {
	if line >= 8 {
		portWriteByteFn(picSlaveCommand, picEOI)
	}
	portWriteByteFn(picMasterCommand, picEOI)
}

// EnableIRQ unmasks a hardware interrupt line. Unknown lines are ignored.
func EnableIRQ(line uint8) {
	if line >= numIRQLines {
		return
	}

	port := picMasterData
	if line >= 8 {
		port = picSlaveData
		line -= 8
	}

	portWriteByteFn(port, portReadByteFn(port) & ^(uint8(1)<<line))
}

// DisableIRQ masks a hardware interrupt line. Unknown lines are ignored.
func DisableIRQ(line uint8) {
	if line >= numIRQLines {
		return
	}

	port := picMasterData
	if line >= 8 {
		port = picSlaveData
		line -= 8
	}

	portWriteByteFn(port, portReadByteFn(port)|uint8(1)<<line)
}

func ioWait() {
	portWriteByteFn(ioDelayPort, 0)
}
