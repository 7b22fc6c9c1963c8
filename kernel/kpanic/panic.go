// Package kpanic implements the kernel's fatal-error sink. A panic disables
// interrupts, reports the failure location and message on both the text-mode
// console and the serial port and halts the CPU forever.
//
// The formatting code in this package is deliberately self-contained: it
// uses only stack buffers and direct per-byte sink writes so that a panic
// message still reaches the operator when the heap is corrupted, paging is
// partially set up or the regular formatter's state is inconsistent.
package kpanic

import (
	"unsafe"

	"github.com/itisrazza/ClankerOS/kernel/cpu"
	"github.com/itisrazza/ClankerOS/kernel/irq"
	"github.com/itisrazza/ClankerOS/kernel/kfmt"
)

var (
	textSink   kfmt.Writer
	serialSink kfmt.Writer

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	disableInterruptsFn = cpu.DisableInterrupts
	haltFn              = cpu.Halt
)

const bannerLine = "================================================================================\n"
const bannerText = "!!!                          KERNEL PANIC                                   !!!\n"

// SetOutputs registers the text-mode and serial sinks panic messages are
// written to. Either sink may be nil.
func SetOutputs(text, serial kfmt.Writer) {
	textSink = text
	serialSink = serial
}

// InstallExceptionHandlers makes this package the default sink for CPU
// exception vectors that have no registered handler.
func InstallExceptionHandlers() {
	irq.SetUnhandledExceptionHandler(unhandledException)
}

func unhandledException(frame *irq.Frame) {
	PanicRegs("kernel/kpanic/panic.go", 46, frame,
		"Unhandled CPU Exception: %s (INT %u)", irq.ExceptionName(frame.IntNo), frame.IntNo)
}

// Panic reports a fatal kernel error and halts. It never returns.
func Panic(file string, line int, format string, args ...interface{}) {
	panicCommon(file, line, nil, format, args)
}

// PanicRegs behaves like Panic but additionally dumps the supplied interrupt
// frame: the full register set to the serial sink and a short summary to the
// text sink.
func PanicRegs(file string, line int, frame *irq.Frame, format string, args ...interface{}) {
	panicCommon(file, line, frame, format, args)
}

func panicCommon(file string, line int, frame *irq.Frame, format string, args []interface{}) {
	disableInterruptsFn()

	emit(textSink, "\n\n!!! KERNEL PANIC !!!\n")
	emit(serialSink, "\n\n")
	emit(serialSink, bannerLine)
	emit(serialSink, bannerText)
	emit(serialSink, bannerLine)

	emitBoth("Location: ")
	emitBoth(file)
	emitBoth(":")
	var numBuf [12]byte
	emitBoth(formatDec(numBuf[:], int64(line)))
	emitBoth("\n")

	emitBoth("Message: ")
	formatMessage(format, args)
	emitBoth("\n")

	if frame != nil {
		dumpRegisters(frame)
	}

	emit(textSink, "\nSystem halted.\n")
	emit(serialSink, "\nSystem halted. CPU in halt state.\n")
	emit(serialSink, bannerLine)

	haltFn()
}

// formatMessage interprets a minimal subset of printf verbs: %s, %d, %u and
// %x. Width digits after '%' are skipped so forms like %08x stay in sync
// with their argument list; any other character after '%' is emitted as-is.
func formatMessage(format string, args []interface{}) {
	var (
		numBuf       [12]byte
		nextArgIndex int
	)

	nextArg := func() interface{} {
		if nextArgIndex >= len(args) {
			return nil
		}
		arg := args[nextArgIndex]
		nextArgIndex++
		return arg
	}

	for index := 0; index < len(format); index++ {
		ch := format[index]
		if ch != '%' || index+1 == len(format) {
			putBoth(ch)
			continue
		}

		index++
		for index < len(format) && format[index] >= '0' && format[index] <= '9' {
			index++
		}
		if index == len(format) {
			break
		}

		switch format[index] {
		case 's':
			if s, ok := nextArg().(string); ok {
				emitBoth(s)
			} else {
				emitBoth("(null)")
			}
		case 'd', 'u':
			emitBoth(formatDec(numBuf[:], argToInt(nextArg())))
		case 'x':
			emitBoth(formatHex(numBuf[:], argToUint(nextArg()), 8))
		default:
			putBoth(format[index])
		}
	}
}

func dumpRegisters(frame *irq.Frame) {
	var numBuf [12]byte

	emit(serialSink, "\nCPU Register Dump:\n")

	emit(serialSink, "  EIP: 0x")
	emit(serialSink, formatHex(numBuf[:], frame.EIP, 8))
	emit(serialSink, "  CS:  0x")
	emit(serialSink, formatHex(numBuf[:], frame.CS, 4))
	emit(serialSink, "  EFLAGS: 0x")
	emit(serialSink, formatHex(numBuf[:], frame.EFlags, 8))
	emit(serialSink, "\n")

	emit(serialSink, "  EAX: 0x")
	emit(serialSink, formatHex(numBuf[:], frame.EAX, 8))
	emit(serialSink, "  EBX: 0x")
	emit(serialSink, formatHex(numBuf[:], frame.EBX, 8))
	emit(serialSink, "  ECX: 0x")
	emit(serialSink, formatHex(numBuf[:], frame.ECX, 8))
	emit(serialSink, "  EDX: 0x")
	emit(serialSink, formatHex(numBuf[:], frame.EDX, 8))
	emit(serialSink, "\n")

	emit(serialSink, "  ESP: 0x")
	emit(serialSink, formatHex(numBuf[:], frame.ESP, 8))
	emit(serialSink, "  EBP: 0x")
	emit(serialSink, formatHex(numBuf[:], frame.EBP, 8))
	emit(serialSink, "  ESI: 0x")
	emit(serialSink, formatHex(numBuf[:], frame.ESI, 8))
	emit(serialSink, "  EDI: 0x")
	emit(serialSink, formatHex(numBuf[:], frame.EDI, 8))
	emit(serialSink, "\n")

	emit(serialSink, "  DS:  0x")
	emit(serialSink, formatHex(numBuf[:], frame.DS, 4))
	emit(serialSink, "  SS:  0x")
	emit(serialSink, formatHex(numBuf[:], frame.SS, 4))
	emit(serialSink, "\n")

	emit(serialSink, "  INT: ")
	emit(serialSink, formatDec(numBuf[:], int64(frame.IntNo)))
	emit(serialSink, "  ERR: 0x")
	emit(serialSink, formatHex(numBuf[:], frame.ErrCode, 8))
	emit(serialSink, "\n")

	// The text console only gets a short summary.
	emit(textSink, "EIP: 0x")
	emit(textSink, formatHex(numBuf[:], frame.EIP, 8))
	emit(textSink, "  ESP: 0x")
	emit(textSink, formatHex(numBuf[:], frame.ESP, 8))
	emit(textSink, "\n(See serial for full dump)\n")
}

func emit(w kfmt.Writer, s string) {
	if w == nil {
		return
	}
	for i := 0; i < len(s); i++ {
		w.PutChar(s[i])
	}
}

func emitBoth(s string) {
	emit(textSink, s)
	emit(serialSink, s)
}

func putBoth(c byte) {
	if textSink != nil {
		textSink.PutChar(c)
	}
	if serialSink != nil {
		serialSink.PutChar(c)
	}
}

// formatDec renders v as signed decimal into buf and returns the resulting
// string, which aliases buf.
func formatDec(buf []byte, v int64) string {
	if v == 0 {
		buf[0] = '0'
		return asString(buf[:1])
	}

	var (
		tmp      [20]byte
		tmpLen   int
		negative = v < 0
	)
	if negative {
		v = -v
	}

	for v > 0 {
		tmp[tmpLen] = byte('0' + v%10)
		tmpLen++
		v /= 10
	}

	pos := 0
	if negative {
		buf[pos] = '-'
		pos++
	}
	for tmpLen > 0 {
		tmpLen--
		buf[pos] = tmp[tmpLen]
		pos++
	}

	return asString(buf[:pos])
}

// formatHex renders the low width nibbles of v into buf and returns the
// resulting string, which aliases buf.
func formatHex(buf []byte, v uint32, width int) string {
	const hexDigits = "0123456789abcdef"
	for i := width - 1; i >= 0; i-- {
		buf[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return asString(buf[:width])
}

// asString views a byte slice as a string without copying. The result
// aliases the slice and must be consumed before the slice is reused.
func asString(b []byte) string {
	return unsafe.String(&b[0], len(b))
}

func argToInt(arg interface{}) int64 {
	switch v := arg.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint:
		return int64(v)
	case uintptr:
		return int64(v)
	default:
		return 0
	}
}

func argToUint(arg interface{}) uint32 {
	switch v := arg.(type) {
	case uint:
		return uint32(v)
	case uint8:
		return uint32(v)
	case uint16:
		return uint32(v)
	case uint32:
		return v
	case uint64:
		return uint32(v)
	case uintptr:
		return uint32(v)
	case int:
		return uint32(v)
	case int32:
		return uint32(v)
	default:
		return 0
	}
}
