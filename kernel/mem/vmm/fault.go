package vmm

import (
	"github.com/itisrazza/ClankerOS/kernel/cpu"
	"github.com/itisrazza/ClankerOS/kernel/irq"
	"github.com/itisrazza/ClankerOS/kernel/kpanic"
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	readCR2Fn   = cpu.ReadCR2
	panicRegsFn = kpanic.PanicRegs
)

// Page-fault error code bits: bit 0 distinguishes protection violations from
// non-present pages, bit 1 reads from writes and bit 2 user from kernel mode.
func faultReason(errCode uint32) string {
	switch errCode {
	case 0:
		return "Read from non-present page"
	case 1:
		return "Page protection violation (read)"
	case 2:
		return "Write to non-present page"
	case 3:
		return "Page protection violation (write)"
	case 4, 5, 6, 7:
		return "Page fault in user mode"
	default:
		return "Unknown page fault"
	}
}

// pageFaultHandler reports the faulting address and access kind and halts.
// There is no demand paging; every page fault is fatal.
func pageFaultHandler(frame *irq.Frame) {
	faultAddr := readCR2Fn()

	panicRegsFn("kernel/mem/vmm/fault.go", 40, frame,
		"Page Fault at 0x%08x - %s", uint32(faultAddr), faultReason(frame.ErrCode))
}
