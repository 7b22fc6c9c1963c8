package cpu

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt disables interrupts and stops instruction execution. It never returns.
func Halt()

// WaitForInterrupt enables interrupts and suspends instruction execution
// until the next interrupt arrives.
func WaitForInterrupt()

// ReadEFlags returns the contents of the FLAGS register.
func ReadEFlags() uint32

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr

// EnablePaging sets the paging bit (bit 31) of the CR0 register. A valid page
// directory must have been loaded via SwitchPDT before calling this.
func EnablePaging()

// ReadCR2 returns the value stored in the CR2 register.
func ReadCR2() uintptr

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8
